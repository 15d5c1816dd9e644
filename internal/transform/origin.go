package transform

import (
	"fmt"
	"log/slog"
	"strconv"

	"plant-telemetry-pipeline/internal/models"
	"plant-telemetry-pipeline/internal/validate"
)

// ToOriginRows projects origin locations. Rows missing any origin field
// are dropped; if any remaining row fails validation the batch is rejected.
func ToOriginRows(flat []models.FlatRecord) ([]models.OriginRow, error) {
	if len(flat) == 0 {
		return nil, fmt.Errorf("origin: %w", ErrEmptyInput)
	}

	rows := make([]models.OriginRow, 0, len(flat))
	var invalid []RowError

	for _, f := range flat {
		if f.OriginCity == nil || f.OriginCountry == nil || f.OriginLatitude == nil || f.OriginLongitude == nil {
			if hasAnyOrigin(f) {
				slog.Warn("dropping incomplete origin", "plant_id", plantID(f.PlantID))
			}
			continue
		}

		id := plantID(f.PlantID)
		city := validate.CleanCityCountry(*f.OriginCity)
		country := validate.CleanCityCountry(*f.OriginCountry)

		lat, err := validate.ParseCoordinate(*f.OriginLatitude)
		if err != nil {
			return nil, &ValidationError{Projection: "origin", Err: fmt.Errorf("plant %s latitude: %w", id, err)}
		}
		long, err := validate.ParseCoordinate(*f.OriginLongitude)
		if err != nil {
			return nil, &ValidationError{Projection: "origin", Err: fmt.Errorf("plant %s longitude: %w", id, err)}
		}

		if !validate.Latitude(lat) {
			invalid = append(invalid, RowError{PlantID: id, Field: "origin_latitude", Value: formatFloat(lat), Reason: "out of range"})
		}
		if !validate.Longitude(long) {
			invalid = append(invalid, RowError{PlantID: id, Field: "origin_longitude", Value: formatFloat(long), Reason: "out of range"})
		}
		if !validate.Text(city) {
			invalid = append(invalid, RowError{PlantID: id, Field: "origin_city", Value: *f.OriginCity, Reason: "is empty"})
		}
		if !validate.Text(country) {
			invalid = append(invalid, RowError{PlantID: id, Field: "origin_country", Value: *f.OriginCountry, Reason: "is empty"})
		}

		rows = append(rows, models.OriginRow{City: city, Country: country, Latitude: lat, Longitude: long})
	}

	if len(invalid) > 0 {
		return nil, &ValidationError{Projection: "origin", Rows: invalid}
	}
	return rows, nil
}

func hasAnyOrigin(f models.FlatRecord) bool {
	return f.OriginCity != nil || f.OriginCountry != nil || f.OriginLatitude != nil || f.OriginLongitude != nil
}

func plantID(id *int) string {
	if id == nil {
		return "unknown"
	}
	return strconv.Itoa(*id)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
