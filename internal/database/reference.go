package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"plant-telemetry-pipeline/internal/metrics"
)

// CoordinateTolerance is the quantisation used when matching stored
// origin coordinates
const CoordinateTolerance = 5e-7

// getOrCreate inserts a row keyed by a unique natural key, or returns the
// existing ID when the key is already present. created reports an insert.
func (t *Tx) getOrCreate(ctx context.Context, op string, insert, selectID string, insertArgs, selectArgs []any) (id int64, created bool, err error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	err = t.queryRow(ctx, insert, insertArgs...).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		metrics.DBOperationErrorsTotal.WithLabelValues(op).Inc()
		return 0, false, err
	}

	if err := t.queryRow(ctx, selectID, selectArgs...).Scan(&id); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(op).Inc()
		return 0, false, err
	}
	return id, false, nil
}

// GetOrCreateCountry returns the ID for country name, inserting it if absent
func (t *Tx) GetOrCreateCountry(ctx context.Context, name string) (int64, bool, error) {
	id, created, err := t.getOrCreate(ctx, metrics.DBOpInsertCountry,
		`INSERT INTO country (country_name) VALUES (?)
		 ON CONFLICT (country_name) DO NOTHING
		 RETURNING country_id`,
		`SELECT country_id FROM country WHERE country_name = ?`,
		[]any{name}, []any{name})
	if err != nil {
		return 0, false, fmt.Errorf("failed to get or create country %q: %w", name, err)
	}
	return id, created, nil
}

// GetOrCreateCity returns the ID for (name, countryID), inserting it if absent
func (t *Tx) GetOrCreateCity(ctx context.Context, name string, countryID int64) (int64, bool, error) {
	id, created, err := t.getOrCreate(ctx, metrics.DBOpInsertCity,
		`INSERT INTO city (city_name, country_id) VALUES (?, ?)
		 ON CONFLICT (city_name, country_id) DO NOTHING
		 RETURNING city_id`,
		`SELECT city_id FROM city WHERE city_name = ? AND country_id = ?`,
		[]any{name, countryID}, []any{name, countryID})
	if err != nil {
		return 0, false, fmt.Errorf("failed to get or create city %q: %w", name, err)
	}
	return id, created, nil
}

// InsertOrigin appends an origin observation bound to cityID
func (t *Tx) InsertOrigin(ctx context.Context, cityID int64, lat, long float64) (int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpInsertOrigin))
	defer timer.ObserveDuration()

	var id int64
	err := t.queryRow(ctx, `
		INSERT INTO origin (city_id, lat, long) VALUES (?, ?, ?)
		RETURNING origin_id
	`, cityID, lat, long).Scan(&id)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertOrigin).Inc()
		return 0, fmt.Errorf("failed to insert origin: %w", err)
	}
	return id, nil
}

// FindOrigin returns the most recent origin within CoordinateTolerance of
// (lat, long). found is false when there is none.
func (t *Tx) FindOrigin(ctx context.Context, lat, long float64) (id int64, found bool, err error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpFindOrigin))
	defer timer.ObserveDuration()

	err = t.queryRow(ctx, `
		SELECT origin_id FROM origin
		WHERE ABS(lat - ?) < ? AND ABS(long - ?) < ?
		ORDER BY origin_id DESC
		LIMIT 1
	`, lat, CoordinateTolerance, long, CoordinateTolerance).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpFindOrigin).Inc()
		return 0, false, fmt.Errorf("failed to find origin: %w", err)
	}
	return id, true, nil
}

// GetOrCreateBotanist returns the ID for a botanist by email, inserting
// the botanist if absent. Existing rows are left unchanged.
func (t *Tx) GetOrCreateBotanist(ctx context.Context, name, email string, phone *string) (int64, bool, error) {
	id, created, err := t.getOrCreate(ctx, metrics.DBOpInsertBotanist,
		`INSERT INTO botanist (name, email, phone) VALUES (?, ?, ?)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING botanist_id`,
		`SELECT botanist_id FROM botanist WHERE email = ?`,
		[]any{name, email, phone}, []any{email})
	if err != nil {
		return 0, false, fmt.Errorf("failed to get or create botanist %q: %w", email, err)
	}
	return id, created, nil
}

// GetBotanistID returns the ID for email, or found=false
func (t *Tx) GetBotanistID(ctx context.Context, email string) (id int64, found bool, err error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetBotanist))
	defer timer.ObserveDuration()

	err = t.queryRow(ctx, `SELECT botanist_id FROM botanist WHERE email = ?`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetBotanist).Inc()
		return 0, false, fmt.Errorf("failed to get botanist: %w", err)
	}
	return id, true, nil
}
