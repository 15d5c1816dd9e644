package transform

import (
	"fmt"
	"log/slog"

	"plant-telemetry-pipeline/internal/models"
	"plant-telemetry-pipeline/internal/validate"
)

// ToPlantRows projects plants. Records without a plant_id are skipped, as
// are records missing all of name, botanist email and origin coordinates.
// Licence and thumbnail URLs are kept only alongside a valid image URL.
func ToPlantRows(flat []models.FlatRecord) ([]models.PlantRow, error) {
	if len(flat) == 0 {
		return nil, fmt.Errorf("plant: %w", ErrEmptyInput)
	}

	rows := make([]models.PlantRow, 0, len(flat))
	for _, f := range flat {
		if f.PlantID == nil {
			slog.Warn("skipping plant without plant_id")
			continue
		}
		if f.Name == nil && f.BotanistEmail == nil && f.OriginLatitude == nil && f.OriginLongitude == nil {
			continue
		}

		row := models.PlantRow{
			PlantID:         *f.PlantID,
			Name:            validate.CleanName(f.Name),
			ScientificName:  validate.CleanName(f.ScientificName),
			BotanistEmail:   f.BotanistEmail,
			OriginLatitude:  parseOptionalCoordinate(f.OriginLatitude),
			OriginLongitude: parseOptionalCoordinate(f.OriginLongitude),
		}

		if imageURL := validate.FilterURL(f.ImageOriginalURL); imageURL != nil {
			row.ImageURL = imageURL
			row.ImageLicenseURL = validate.FilterURL(f.ImageLicenseURL)
			row.Thumbnail = validate.FilterURL(f.ImageThumbnail)
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func parseOptionalCoordinate(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := validate.ParseCoordinate(*s)
	if err != nil {
		return nil
	}
	return &f
}
