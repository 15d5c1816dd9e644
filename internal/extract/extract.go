// Package extract probes the telemetry source for plant records, walking
// the ID space in concurrent batches until enough consecutive IDs fail.
package extract

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"plant-telemetry-pipeline/internal/metrics"
	"plant-telemetry-pipeline/internal/models"
)

// DefaultBatchSize is the number of IDs probed in parallel per batch
const DefaultBatchSize = 20

// ErrInvalidThreshold is returned for a non-positive failure threshold
var ErrInvalidThreshold = errors.New("max consecutive failures must be positive")

var errEmptyResponse = errors.New("empty response")

// Fetcher retrieves the raw record for one plant ID
type Fetcher interface {
	FetchPlant(ctx context.Context, id int) (*models.RawRecord, error)
}

// Result is the tagged outcome of probing one ID
type Result struct {
	ID      int
	Outcome models.Outcome
	Anomaly string
	Record  *models.RawRecord
	Err     error
}

// Extractor walks the plant ID space
type Extractor struct {
	fetcher   Fetcher
	batchSize int
	startID   int
	logger    *slog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithBatchSize sets the number of IDs probed concurrently
func WithBatchSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithStartID sets the first ID probed
func WithStartID(id int) Option {
	return func(e *Extractor) { e.startID = id }
}

// WithLogger sets the extractor logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// New creates an Extractor over fetcher
func New(fetcher Fetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:   fetcher,
		batchSize: DefaultBatchSize,
		startID:   1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchAll returns every found or anomalous record in ascending ID order
func (e *Extractor) FetchAll(ctx context.Context, maxConsecutiveFailures int) ([]models.RawRecord, error) {
	results, err := e.Scan(ctx, maxConsecutiveFailures)
	if err != nil {
		return nil, err
	}

	records := make([]models.RawRecord, 0, len(results))
	for _, r := range results {
		if r.Outcome.Included() {
			records = append(records, *r.Record)
		}
	}
	return records, nil
}

// Scan probes IDs until maxConsecutiveFailures not-found or transport
// failures occur in a row, returning every probed result in ID order.
// Soft anomalies reset the failure count like found records do.
func (e *Extractor) Scan(ctx context.Context, maxConsecutiveFailures int) ([]Result, error) {
	if maxConsecutiveFailures <= 0 {
		return nil, ErrInvalidThreshold
	}

	next, stop := iter.Pull(ids(e.startID))
	defer stop()

	var results []Result
	failures := 0

	for failures < maxConsecutiveFailures {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction cancelled: %w", err)
		}

		batch := make([]int, 0, e.batchSize)
		for range e.batchSize {
			id, _ := next()
			batch = append(batch, id)
		}

		probed := e.probe(ctx, batch)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction cancelled: %w", err)
		}

		for _, r := range probed {
			results = append(results, r)
			metrics.ExtractOutcomesTotal.WithLabelValues(r.Outcome.String()).Inc()

			switch r.Outcome {
			case models.OutcomeFound:
				failures = 0
			case models.OutcomeSoftAnomaly:
				e.logger.Warn("plant anomaly", "plant_id", r.ID, "anomaly", r.Anomaly)
				failures = 0
			case models.OutcomeNotFound:
				e.logger.Debug("plant not found", "plant_id", r.ID)
				failures++
			case models.OutcomeTransportError:
				e.logger.Warn("plant fetch failed", "plant_id", r.ID, "error", r.Err)
				failures++
			}

			if failures >= maxConsecutiveFailures {
				break
			}
		}
	}

	e.logger.Info("extraction complete", "probed", len(results), "last_id", lastID(results))
	return results, nil
}

// probe fetches one batch concurrently and returns results in batch order
func (e *Extractor) probe(ctx context.Context, batch []int) []Result {
	metrics.ExtractBatchesTotal.Inc()

	out := make([]Result, len(batch))
	var g errgroup.Group
	g.SetLimit(e.batchSize)

	for i, id := range batch {
		g.Go(func() error {
			record, err := e.fetcher.FetchPlant(ctx, id)
			out[i] = classify(id, record, err)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func classify(id int, record *models.RawRecord, err error) Result {
	if err != nil {
		return Result{ID: id, Outcome: models.OutcomeTransportError, Err: err}
	}
	if record == nil {
		return Result{ID: id, Outcome: models.OutcomeTransportError, Err: errEmptyResponse}
	}
	outcome, anomaly := record.Classify()
	return Result{ID: id, Outcome: outcome, Anomaly: anomaly, Record: record}
}

// ids yields plant IDs from start upwards without bound
func ids(start int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for id := start; ; id++ {
			if !yield(id) {
				return
			}
		}
	}
}

func lastID(results []Result) int {
	if len(results) == 0 {
		return 0
	}
	return results[len(results)-1].ID
}
