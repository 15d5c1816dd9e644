package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"plant-telemetry-pipeline/internal/metrics"
	"plant-telemetry-pipeline/internal/models"
)

// InsertReadings appends readings using one prepared statement
func (t *Tx) InsertReadings(ctx context.Context, readings []models.ReadingRow) error {
	if len(readings) == 0 {
		return nil
	}

	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpInsertReading))
	defer timer.ObserveDuration()

	stmt, err := t.tx.PrepareContext(ctx, t.dialect.rebind(`
		INSERT INTO plant_reading (plant_id, soil_moisture, temperature, recording_taken, last_watered)
		VALUES (?, ?, ?, ?, ?)
	`))
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertReading).Inc()
		return fmt.Errorf("failed to prepare reading insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.PlantID, r.SoilMoisture, r.Temperature,
			utcPtr(r.RecordingTaken), utcPtr(r.LastWatered)); err != nil {
			metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertReading).Inc()
			return fmt.Errorf("failed to insert reading for plant %d: %w", r.PlantID, err)
		}
	}
	return nil
}

// ReadingsForSummary returns every timestamped reading joined with its
// plant and botanist
func (db *DB) ReadingsForSummary(ctx context.Context) ([]models.SummaryInput, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpReadingsForSummary))
	defer timer.ObserveDuration()

	rows, err := db.query(ctx, `
		SELECT
			pr.recording_taken,
			p.plant_id,
			p.name,
			p.scientific_name,
			b.name,
			b.email,
			b.phone,
			pr.temperature,
			pr.soil_moisture,
			pr.last_watered
		FROM plant_reading pr
		JOIN plant p ON pr.plant_id = p.plant_id
		JOIN botanist b ON p.botanist_id = b.botanist_id
		WHERE pr.recording_taken IS NOT NULL
		ORDER BY pr.recording_taken
	`)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpReadingsForSummary).Inc()
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []models.SummaryInput
	for rows.Next() {
		var (
			in          models.SummaryInput
			lastWatered sql.NullTime
		)
		if err := rows.Scan(
			&in.RecordingTaken, &in.PlantID, &in.PlantName, &in.ScientificName,
			&in.BotanistName, &in.BotanistEmail, &in.BotanistPhone,
			&in.Temperature, &in.SoilMoisture, &lastWatered,
		); err != nil {
			metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpReadingsForSummary).Inc()
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		in.RecordingTaken = in.RecordingTaken.UTC()
		if lastWatered.Valid {
			t := lastWatered.Time.UTC()
			in.LastWatered = &t
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return out, nil
}

// DeleteReadingsBefore removes readings taken strictly before cutoff
func (db *DB) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpDeleteReadings))
	defer timer.ObserveDuration()

	result, err := db.exec(ctx, `DELETE FROM plant_reading WHERE recording_taken < ?`, cutoff.UTC().Truncate(time.Second))
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpDeleteReadings).Inc()
		return 0, fmt.Errorf("failed to delete readings: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// CountRows returns the number of rows in one of the pipeline tables
func (db *DB) CountRows(ctx context.Context, table string) (int, error) {
	if !slices.Contains(metrics.CountedTables, table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpCountRows))
	defer timer.ObserveDuration()

	var n int
	if err := db.queryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpCountRows).Inc()
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
