package transform

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"plant-telemetry-pipeline/internal/models"
)

// Accepted timestamp layouts, tried in order
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

// ToReadingRows projects sensor readings. Fully-null readings are dropped,
// unparseable timestamps become nil, numbers are rounded to 3 decimal
// places and timestamps to the nearest second.
func ToReadingRows(flat []models.FlatRecord) ([]models.ReadingRow, error) {
	if len(flat) == 0 {
		return nil, fmt.Errorf("reading: %w", ErrEmptyInput)
	}

	rows := make([]models.ReadingRow, 0, len(flat))
	for _, f := range flat {
		if f.PlantID == nil {
			slog.Warn("skipping reading without plant_id")
			continue
		}
		if f.SoilMoisture == nil && f.Temperature == nil && f.RecordingTaken == nil && f.LastWatered == nil {
			continue
		}

		rows = append(rows, models.ReadingRow{
			PlantID:        *f.PlantID,
			SoilMoisture:   round3(f.SoilMoisture),
			Temperature:    round3(f.Temperature),
			RecordingTaken: ParseTimestamp(f.RecordingTaken),
			LastWatered:    ParseTimestamp(f.LastWatered),
		})
	}
	return rows, nil
}

// ParseTimestamp parses an API timestamp as UTC rounded to the second.
// Returns nil for missing or unparseable input.
func ParseTimestamp(s *string) *time.Time {
	if s == nil {
		return nil
	}
	value := strings.TrimSpace(*s)
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			t = t.UTC().Round(time.Second)
			return &t
		}
	}
	return nil
}

func round3(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	r := math.Round(*v*1000) / 1000
	return &r
}
