package database

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"plant-telemetry-pipeline/internal/metrics"
)

// Plant is a plant row with resolved foreign keys
type Plant struct {
	PlantID         int
	Name            *string
	ScientificName  *string
	OriginID        int64
	BotanistID      int64
	ImageLicenseURL *string
	ImageURL        *string
	Thumbnail       *string
}

// PlantExists reports whether plantID is already stored
func (t *Tx) PlantExists(ctx context.Context, plantID int) (bool, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpPlantExists))
	defer timer.ObserveDuration()

	var exists bool
	err := t.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM plant WHERE plant_id = ?)`, plantID).Scan(&exists)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpPlantExists).Inc()
		return false, fmt.Errorf("failed to check plant %d: %w", plantID, err)
	}
	return exists, nil
}

// UpsertPlant inserts p or overwrites every column of the stored row.
// inserted is false when an existing row was updated.
func (t *Tx) UpsertPlant(ctx context.Context, p *Plant) (inserted bool, err error) {
	exists, err := t.PlantExists(ctx, p.PlantID)
	if err != nil {
		return false, err
	}

	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertPlant))
	defer timer.ObserveDuration()

	_, err = t.exec(ctx, `
		INSERT INTO plant (
			plant_id, name, scientific_name, origin_id, botanist_id,
			image_license_url, image_url, thumbnail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (plant_id) DO UPDATE SET
			name = excluded.name,
			scientific_name = excluded.scientific_name,
			origin_id = excluded.origin_id,
			botanist_id = excluded.botanist_id,
			image_license_url = excluded.image_license_url,
			image_url = excluded.image_url,
			thumbnail = excluded.thumbnail
	`, p.PlantID, p.Name, p.ScientificName, p.OriginID, p.BotanistID,
		p.ImageLicenseURL, p.ImageURL, p.Thumbnail)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertPlant).Inc()
		return false, fmt.Errorf("failed to upsert plant %d: %w", p.PlantID, err)
	}
	return !exists, nil
}

// GetPlant retrieves a plant by ID. Returns nil if it does not exist.
func (db *DB) GetPlant(ctx context.Context, plantID int) (*Plant, error) {
	var p Plant
	err := db.queryRow(ctx, `
		SELECT plant_id, name, scientific_name, origin_id, botanist_id,
		       image_license_url, image_url, thumbnail
		FROM plant WHERE plant_id = ?
	`, plantID).Scan(
		&p.PlantID, &p.Name, &p.ScientificName, &p.OriginID, &p.BotanistID,
		&p.ImageLicenseURL, &p.ImageURL, &p.Thumbnail,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plant: %w", err)
	}
	return &p, nil
}
