// Package summary rolls plant readings up into per-plant daily statistics.
package summary

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"plant-telemetry-pipeline/internal/models"
)

const dateLayout = "2006-01-02"

type groupKey struct {
	date           string
	plantID        int
	plantName      nullString
	scientificName nullString
	botanistName   nullString
	botanistEmail  nullString
	botanistPhone  nullString
}

type nullString struct {
	value string
	valid bool
}

func newNullString(s *string) nullString {
	if s == nil {
		return nullString{}
	}
	return nullString{value: *s, valid: true}
}

type group struct {
	key          groupKey
	first        models.SummaryInput
	date         time.Time
	temperatures []float64
	moistures    []float64
	wateredDays  map[string]struct{}
}

// Summarize groups readings by UTC calendar day, plant and botanist, and
// computes statistics for each group. Rows are ordered by date descending
// then plant ID ascending.
func Summarize(rows []models.SummaryInput) []models.DailySummary {
	groups := make(map[groupKey]*group)
	order := make([]groupKey, 0)

	for _, r := range rows {
		taken := r.RecordingTaken.UTC()
		day := time.Date(taken.Year(), taken.Month(), taken.Day(), 0, 0, 0, 0, time.UTC)
		key := groupKey{
			date:           day.Format(dateLayout),
			plantID:        r.PlantID,
			plantName:      newNullString(r.PlantName),
			scientificName: newNullString(r.ScientificName),
			botanistName:   newNullString(r.BotanistName),
			botanistEmail:  newNullString(r.BotanistEmail),
			botanistPhone:  newNullString(r.BotanistPhone),
		}

		g, ok := groups[key]
		if !ok {
			g = &group{key: key, first: r, date: day, wateredDays: make(map[string]struct{})}
			groups[key] = g
			order = append(order, key)
		}

		if r.Temperature != nil && !math.IsNaN(*r.Temperature) {
			g.temperatures = append(g.temperatures, *r.Temperature)
		}
		if r.SoilMoisture != nil && !math.IsNaN(*r.SoilMoisture) {
			g.moistures = append(g.moistures, *r.SoilMoisture)
		}
		if r.LastWatered != nil {
			g.wateredDays[r.LastWatered.UTC().Format(dateLayout)] = struct{}{}
		}
	}

	out := make([]models.DailySummary, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key].summarize())
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReadingDate.Equal(out[j].ReadingDate) {
			return out[i].ReadingDate.After(out[j].ReadingDate)
		}
		return out[i].PlantID < out[j].PlantID
	})
	return out
}

func (g *group) summarize() models.DailySummary {
	s := models.DailySummary{
		ReadingDate:    g.date,
		PlantID:        g.first.PlantID,
		PlantName:      g.first.PlantName,
		ScientificName: g.first.ScientificName,
		BotanistName:   g.first.BotanistName,
		BotanistEmail:  g.first.BotanistEmail,
		BotanistPhone:  g.first.BotanistPhone,
		TimesWatered:   len(g.wateredDays),
		Year:           g.date.Year(),
		Month:          fmt.Sprintf("%02d", int(g.date.Month())),
		Day:            fmt.Sprintf("%02d", g.date.Day()),
	}

	temp := describe(g.temperatures)
	s.MinTemperature = temp.value(temp.min)
	s.MaxTemperature = temp.value(temp.max)
	s.AvgTemperature = temp.value(temp.mean)
	s.MedianTemperature = temp.value(temp.median)
	s.Percentile25Temperature = temp.value(temp.p25)
	s.Percentile75Temperature = temp.value(temp.p75)
	s.TemperatureSamples = temp.n

	moisture := describe(g.moistures)
	s.MinHumidity = moisture.value(moisture.min)
	s.MaxHumidity = moisture.value(moisture.max)
	s.AvgHumidity = moisture.value(moisture.mean)
	s.MedianHumidity = moisture.value(moisture.median)
	s.Percentile25Humidity = moisture.value(moisture.p25)
	s.Percentile75Humidity = moisture.value(moisture.p75)
	s.HumiditySamples = moisture.n

	return s
}

type stats struct {
	n                                int
	min, max, mean, median, p25, p75 float64
}

// value returns v, or nil when the sample was empty
func (s stats) value(v float64) *float64 {
	if s.n == 0 {
		return nil
	}
	return &v
}

// describe returns stats with n == 0 for an empty sample
func describe(values []float64) stats {
	if len(values) == 0 {
		return stats{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return stats{
		n:      len(sorted),
		min:    sorted[0],
		max:    sorted[len(sorted)-1],
		mean:   sum / float64(len(sorted)),
		median: Quantile(sorted, 0.5),
		p25:    Quantile(sorted, 0.25),
		p75:    Quantile(sorted, 0.75),
	}
}

// Quantile returns the q-th quantile of an ascending sample using linear
// interpolation between the two nearest ranks. q is clamped to [0, 1];
// an empty sample yields NaN.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	q = max(0, min(1, q))

	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
