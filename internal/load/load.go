// Package load writes transformed batches into the relational store in a
// single transaction, resolving natural keys to surrogate IDs.
package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"plant-telemetry-pipeline/internal/database"
	"plant-telemetry-pipeline/internal/metrics"
	"plant-telemetry-pipeline/internal/models"
	"plant-telemetry-pipeline/internal/transform"
)

// Load stages, reported in LoadError
const (
	StageOrigin   = "origin"
	StageBotanist = "botanist"
	StagePlant    = "plant"
	StageReading  = "reading"
)

// coordinateScale quantises coordinates to 1e-6 degrees for matching
const coordinateScale = 1e6

// LoadError reports the stage at which a load was rolled back
type LoadError struct {
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s rows: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Report counts what one load wrote and skipped
type Report struct {
	Countries       int
	Cities          int
	Origins         int
	Botanists       int
	PlantsInserted  int
	PlantsUpdated   int
	SkippedPlants   int
	Readings        int
	SkippedReadings int
}

// Loader writes batches into the store
type Loader struct {
	db     *database.DB
	logger *slog.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the loader logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a Loader
func New(db *database.DB, opts ...Option) *Loader {
	l := &Loader{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type coordKey struct {
	lat, long int64
}

func keyFor(lat, long float64) coordKey {
	return coordKey{
		lat:  int64(math.Round(lat * coordinateScale)),
		long: int64(math.Round(long * coordinateScale)),
	}
}

type originKey struct {
	country, city string
	coords        coordKey
}

// Load writes batch in one transaction. Any failure rolls back everything
// and is returned as a *LoadError.
func (l *Loader) Load(ctx context.Context, batch *transform.Batch) (*Report, error) {
	if batch == nil {
		return nil, errors.New("batch is nil")
	}

	report := &Report{}
	err := l.db.WithTx(ctx, func(tx *database.Tx) error {
		origins, err := l.loadOrigins(ctx, tx, batch.Origins, report)
		if err != nil {
			return &LoadError{Stage: StageOrigin, Err: err}
		}

		botanists, err := l.loadBotanists(ctx, tx, batch.Botanists, report)
		if err != nil {
			return &LoadError{Stage: StageBotanist, Err: err}
		}

		loaded, err := l.loadPlants(ctx, tx, batch.Plants, origins, botanists, report)
		if err != nil {
			return &LoadError{Stage: StagePlant, Err: err}
		}

		if err := l.loadReadings(ctx, tx, batch.Readings, loaded, report); err != nil {
			return &LoadError{Stage: StageReading, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LoadRowsTotal.WithLabelValues(metrics.TableCountry).Add(float64(report.Countries))
	metrics.LoadRowsTotal.WithLabelValues(metrics.TableCity).Add(float64(report.Cities))
	metrics.LoadRowsTotal.WithLabelValues(metrics.TableOrigin).Add(float64(report.Origins))
	metrics.LoadRowsTotal.WithLabelValues(metrics.TableBotanist).Add(float64(report.Botanists))
	metrics.LoadRowsTotal.WithLabelValues(metrics.TablePlant).Add(float64(report.PlantsInserted + report.PlantsUpdated))
	metrics.LoadRowsTotal.WithLabelValues(metrics.TablePlantReading).Add(float64(report.Readings))
	metrics.LoadSkippedTotal.WithLabelValues(metrics.TablePlant).Add(float64(report.SkippedPlants))
	metrics.LoadSkippedTotal.WithLabelValues(metrics.TablePlantReading).Add(float64(report.SkippedReadings))

	return report, nil
}

// loadOrigins creates countries and cities as needed and appends one
// origin per distinct (country, city, coordinates). The returned map is
// the in-batch handle used to bind plants to their origin.
func (l *Loader) loadOrigins(ctx context.Context, tx *database.Tx, rows []models.OriginRow, report *Report) (map[coordKey]int64, error) {
	countries := make(map[string]int64)
	type cityKey struct {
		name      string
		countryID int64
	}
	cities := make(map[cityKey]int64)
	seen := make(map[originKey]struct{})
	handles := make(map[coordKey]int64)

	for _, row := range rows {
		coords := keyFor(row.Latitude, row.Longitude)
		key := originKey{country: row.Country, city: row.City, coords: coords}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		countryID, ok := countries[row.Country]
		if !ok {
			id, created, err := tx.GetOrCreateCountry(ctx, row.Country)
			if err != nil {
				return nil, err
			}
			if created {
				report.Countries++
			}
			countries[row.Country] = id
			countryID = id
		}

		ck := cityKey{name: row.City, countryID: countryID}
		cityID, ok := cities[ck]
		if !ok {
			id, created, err := tx.GetOrCreateCity(ctx, row.City, countryID)
			if err != nil {
				return nil, err
			}
			if created {
				report.Cities++
			}
			cities[ck] = id
			cityID = id
		}

		originID, err := tx.InsertOrigin(ctx, cityID, row.Latitude, row.Longitude)
		if err != nil {
			return nil, err
		}
		report.Origins++
		handles[coords] = originID
	}
	return handles, nil
}

func (l *Loader) loadBotanists(ctx context.Context, tx *database.Tx, rows []models.BotanistRow, report *Report) (map[string]int64, error) {
	ids := make(map[string]int64)
	for _, row := range rows {
		if _, ok := ids[row.Email]; ok {
			continue
		}
		id, created, err := tx.GetOrCreateBotanist(ctx, row.Name, row.Email, row.Phone)
		if err != nil {
			return nil, err
		}
		if created {
			report.Botanists++
		}
		ids[row.Email] = id
	}
	return ids, nil
}

// loadPlants upserts every plant whose origin and botanist resolve and
// returns the set of plant IDs written
func (l *Loader) loadPlants(ctx context.Context, tx *database.Tx, rows []models.PlantRow, origins map[coordKey]int64, botanists map[string]int64, report *Report) (map[int]bool, error) {
	loaded := make(map[int]bool)
	for _, row := range rows {
		originID, ok, err := l.resolveOrigin(ctx, tx, row, origins)
		if err != nil {
			return nil, err
		}
		if !ok {
			l.logger.Warn("skipping plant with unresolved origin", "plant_id", row.PlantID)
			report.SkippedPlants++
			continue
		}

		botanistID, ok, err := l.resolveBotanist(ctx, tx, row, botanists)
		if err != nil {
			return nil, err
		}
		if !ok {
			l.logger.Warn("skipping plant with unresolved botanist", "plant_id", row.PlantID)
			report.SkippedPlants++
			continue
		}

		inserted, err := tx.UpsertPlant(ctx, &database.Plant{
			PlantID:         row.PlantID,
			Name:            row.Name,
			ScientificName:  row.ScientificName,
			OriginID:        originID,
			BotanistID:      botanistID,
			ImageLicenseURL: row.ImageLicenseURL,
			ImageURL:        row.ImageURL,
			Thumbnail:       row.Thumbnail,
		})
		if err != nil {
			return nil, err
		}
		if inserted {
			report.PlantsInserted++
		} else {
			report.PlantsUpdated++
		}
		loaded[row.PlantID] = true
	}
	return loaded, nil
}

func (l *Loader) resolveOrigin(ctx context.Context, tx *database.Tx, row models.PlantRow, origins map[coordKey]int64) (int64, bool, error) {
	if row.OriginLatitude == nil || row.OriginLongitude == nil {
		return 0, false, nil
	}
	if id, ok := origins[keyFor(*row.OriginLatitude, *row.OriginLongitude)]; ok {
		return id, true, nil
	}
	return tx.FindOrigin(ctx, *row.OriginLatitude, *row.OriginLongitude)
}

func (l *Loader) resolveBotanist(ctx context.Context, tx *database.Tx, row models.PlantRow, botanists map[string]int64) (int64, bool, error) {
	if row.BotanistEmail == nil {
		return 0, false, nil
	}
	if id, ok := botanists[*row.BotanistEmail]; ok {
		return id, true, nil
	}
	return tx.GetBotanistID(ctx, *row.BotanistEmail)
}

// loadReadings inserts readings for plants present in the store, skipping
// those whose plant was neither loaded now nor persisted earlier
func (l *Loader) loadReadings(ctx context.Context, tx *database.Tx, rows []models.ReadingRow, loaded map[int]bool, report *Report) error {
	known := make(map[int]bool, len(loaded))
	for id := range loaded {
		known[id] = true
	}

	keep := make([]models.ReadingRow, 0, len(rows))
	for _, row := range rows {
		exists, checked := known[row.PlantID]
		if !checked {
			var err error
			exists, err = tx.PlantExists(ctx, row.PlantID)
			if err != nil {
				return err
			}
			known[row.PlantID] = exists
		}
		if !exists {
			l.logger.Warn("skipping reading for unknown plant", "plant_id", row.PlantID)
			report.SkippedReadings++
			continue
		}
		keep = append(keep, row)
	}

	if err := tx.InsertReadings(ctx, keep); err != nil {
		return err
	}
	report.Readings = len(keep)
	return nil
}
