// Package export writes daily summaries to the object store as a
// year/month/day partitioned columnar dataset.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"plant-telemetry-pipeline/internal/metrics"
	"plant-telemetry-pipeline/internal/models"
)

const (
	DefaultDatasetPrefix = "input/daily_plant_summaries"
	FilePrefix           = "plant-health-daily-summary"
	OutputMarker         = "output/.placeholder"
)

// Result describes one export
type Result struct {
	RunID      string
	Rows       int
	Partitions []models.PartitionKey
	Objects    []string
	Replaced   int
}

// Exporter writes partitioned summaries. Each partition touched by a run
// is replaced wholesale; partitions not in the run are left alone.
type Exporter struct {
	store    ObjectStore
	encoder  Encoder
	prefix   string
	logger   *slog.Logger
	newRunID func() string
}

// Option configures an Exporter
type Option func(*Exporter)

// WithDatasetPrefix sets the dataset root inside the bucket
func WithDatasetPrefix(prefix string) Option {
	return func(e *Exporter) {
		if prefix != "" {
			e.prefix = strings.Trim(prefix, "/")
		}
	}
}

// WithLogger sets the exporter logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// WithRunID fixes the run identifier used in object names
func WithRunID(fn func() string) Option {
	return func(e *Exporter) { e.newRunID = fn }
}

// NewExporter creates an Exporter
func NewExporter(store ObjectStore, encoder Encoder, opts ...Option) *Exporter {
	e := &Exporter{
		store:    store,
		encoder:  encoder,
		prefix:   DefaultDatasetPrefix,
		logger:   slog.Default(),
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PartitionPrefix returns the object prefix of one partition
func (e *Exporter) PartitionPrefix(p models.PartitionKey) string {
	return fmt.Sprintf("%s/year=%d/month=%s/day=%s/", e.prefix, p.Year, p.Month, p.Day)
}

// Export writes rows and provisions the output marker
func (e *Exporter) Export(ctx context.Context, rows []models.DailySummary) (*Result, error) {
	if err := e.store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	result := &Result{RunID: e.newRunID(), Rows: len(rows)}

	partitions, keys := groupByPartition(rows)
	for _, key := range keys {
		object, replaced, err := e.writePartition(ctx, result.RunID, key, partitions[key])
		if err != nil {
			return nil, err
		}
		result.Partitions = append(result.Partitions, key)
		result.Objects = append(result.Objects, object)
		result.Replaced += replaced
	}

	if err := e.store.PutObject(ctx, OutputMarker, []byte{}, "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("failed to provision output marker: %w", err)
	}

	metrics.ExportRowsTotal.Add(float64(len(rows)))
	metrics.ExportPartitionsTotal.Add(float64(len(keys)))

	e.logger.Info("export complete", "run_id", result.RunID, "rows", result.Rows, "partitions", len(result.Partitions), "replaced", result.Replaced)
	return result, nil
}

// writePartition uploads the new file before removing the partition's
// previous objects, so a failed run never leaves a partition empty
func (e *Exporter) writePartition(ctx context.Context, runID string, key models.PartitionKey, rows []models.DailySummary) (string, int, error) {
	data, err := e.encoder.Encode(ctx, rows)
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode partition %s: %w", e.PartitionPrefix(key), err)
	}

	prefix := e.PartitionPrefix(key)
	existing, err := e.store.ListObjects(ctx, prefix)
	if err != nil {
		return "", 0, err
	}

	object := prefix + FilePrefix + "-" + runID + e.encoder.Extension()
	if err := e.store.PutObject(ctx, object, data, e.encoder.ContentType()); err != nil {
		return "", 0, err
	}

	replaced := 0
	for _, old := range existing {
		if old == object {
			continue
		}
		if err := e.store.RemoveObject(ctx, old); err != nil {
			return "", 0, err
		}
		replaced++
	}

	e.logger.Debug("partition written", "object", object, "rows", len(rows), "replaced", replaced)
	return object, replaced, nil
}

// groupByPartition returns rows per partition and the partitions newest first
func groupByPartition(rows []models.DailySummary) (map[models.PartitionKey][]models.DailySummary, []models.PartitionKey) {
	groups := make(map[models.PartitionKey][]models.DailySummary)
	var keys []models.PartitionKey
	for _, r := range rows {
		key := r.Partition()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}

	slices.SortFunc(keys, func(a, b models.PartitionKey) int {
		return strings.Compare(partitionSortKey(b), partitionSortKey(a))
	})
	return groups, keys
}

func partitionSortKey(p models.PartitionKey) string {
	return fmt.Sprintf("%04d-%s-%s", p.Year, p.Month, p.Day)
}
