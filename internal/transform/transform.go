// Package transform turns raw API records into the four relational
// projections loaded into the store.
package transform

import (
	"fmt"

	"plant-telemetry-pipeline/internal/models"
)

// Batch is the full set of projections for one run
type Batch struct {
	Origins   []models.OriginRow
	Botanists []models.BotanistRow
	Plants    []models.PlantRow
	Readings  []models.ReadingRow
}

// Run flattens records and computes every projection. The first failing
// projection aborts the batch.
func Run(records []models.RawRecord) (*Batch, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	flat := Flatten(records)

	origins, err := ToOriginRows(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to transform origins: %w", err)
	}
	botanists, err := ToBotanistRows(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to transform botanists: %w", err)
	}
	plants, err := ToPlantRows(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to transform plants: %w", err)
	}
	readings, err := ToReadingRows(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to transform readings: %w", err)
	}

	return &Batch{
		Origins:   origins,
		Botanists: botanists,
		Plants:    plants,
		Readings:  readings,
	}, nil
}
