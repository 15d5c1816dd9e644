package transform

import (
	"fmt"

	"plant-telemetry-pipeline/internal/models"
	"plant-telemetry-pipeline/internal/validate"
)

type botanistKey struct {
	name, email, phone string
}

// ToBotanistRows projects botanists that have a name, email and phone,
// deduplicated by the full tuple, with phone numbers canonicalised
func ToBotanistRows(flat []models.FlatRecord) ([]models.BotanistRow, error) {
	if len(flat) == 0 {
		return nil, fmt.Errorf("botanist: %w", ErrEmptyInput)
	}

	seen := make(map[botanistKey]struct{})
	rows := make([]models.BotanistRow, 0)

	for _, f := range flat {
		if f.BotanistName == nil || f.BotanistEmail == nil || f.BotanistPhone == nil {
			continue
		}

		key := botanistKey{*f.BotanistName, *f.BotanistEmail, *f.BotanistPhone}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		rows = append(rows, models.BotanistRow{
			Name:  *f.BotanistName,
			Email: *f.BotanistEmail,
			Phone: validate.CleanPhoneNumber(f.BotanistPhone),
		})
	}
	return rows, nil
}
