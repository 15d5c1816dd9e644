// Package pipeline runs the ETL and export jobs end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"plant-telemetry-pipeline/internal/database"
	"plant-telemetry-pipeline/internal/export"
	"plant-telemetry-pipeline/internal/extract"
	"plant-telemetry-pipeline/internal/load"
	"plant-telemetry-pipeline/internal/metrics"
	"plant-telemetry-pipeline/internal/models"
	"plant-telemetry-pipeline/internal/summary"
	"plant-telemetry-pipeline/internal/transform"
)

// ErrExportNotConfigured is returned by RunExport when no exporter was given
var ErrExportNotConfigured = errors.New("export is not configured")

// StageError reports which stage of a run failed
type StageError struct {
	Stage string
	RunID string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SummaryExporter writes daily summaries to durable storage
type SummaryExporter interface {
	Export(ctx context.Context, rows []models.DailySummary) (*export.Result, error)
}

// Settings tunes the extract and retention stages of a Pipeline
type Settings struct {
	BatchSize              int
	MaxConsecutiveFailures int
	RetentionWindow        time.Duration
}

// DefaultSettings mirrors the configuration defaults
func DefaultSettings() Settings {
	return Settings{
		BatchSize:              extract.DefaultBatchSize,
		MaxConsecutiveFailures: 3,
		RetentionWindow:        24 * time.Hour,
	}
}

// ETLReport summarises one extract, transform and load run
type ETLReport struct {
	RunID           string
	Probed          int
	Found           int
	Anomalies       int
	NotFound        int
	TransportErrors int
	Load            *load.Report
	Duration        time.Duration
}

// ExportReport summarises one summarise, export and retention run
type ExportReport struct {
	RunID           string
	Readings        int
	Summaries       int
	Export          *export.Result
	RetentionCutoff time.Time
	Deleted         int64
	Duration        time.Duration
}

// Pipeline wires the stages together. A Pipeline holds no state between
// runs other than what is in the store.
type Pipeline struct {
	db       *database.DB
	fetcher  extract.Fetcher
	exporter SummaryExporter
	settings Settings
	logger   *slog.Logger
	reporter ErrorReporter
	now      func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithReporter sets where stage failures are reported
func WithReporter(reporter ErrorReporter) Option {
	return func(p *Pipeline) {
		p.reporter = reporter
	}
}

// WithClock sets the clock used for the retention cutoff
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline. exporter may be nil for an ETL-only deployment.
func New(db *database.DB, fetcher extract.Fetcher, exporter SummaryExporter, settings Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:       db,
		fetcher:  fetcher,
		exporter: exporter,
		settings: settings,
		logger:   slog.Default(),
		reporter: SentryReporter,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunETL extracts every plant from the API, transforms the records and
// loads them in one transaction
func (p *Pipeline) RunETL(ctx context.Context) (*ETLReport, error) {
	start := time.Now()
	report := &ETLReport{RunID: uuid.NewString()}
	logger := p.logger.With("run", metrics.RunETL, "run_id", report.RunID)
	logger.Info("ETL run started")

	extractor := extract.New(p.fetcher,
		extract.WithBatchSize(p.settings.BatchSize),
		extract.WithLogger(logger),
	)
	results, err := extractor.Scan(ctx, p.settings.MaxConsecutiveFailures)
	if err != nil {
		return nil, p.fail(logger, metrics.RunETL, metrics.StageExtract, report.RunID, start, err)
	}

	records := make([]models.RawRecord, 0, len(results))
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeFound:
			report.Found++
		case models.OutcomeSoftAnomaly:
			report.Anomalies++
		case models.OutcomeNotFound:
			report.NotFound++
		case models.OutcomeTransportError:
			report.TransportErrors++
		}
		if r.Outcome.Included() {
			records = append(records, *r.Record)
		}
	}
	report.Probed = len(results)

	if len(records) == 0 {
		logger.Warn("no plants extracted, skipping transform and load")
		report.Duration = p.finish(metrics.RunETL, metrics.ResultSuccess, start)
		return report, nil
	}

	batch, err := transform.Run(records)
	if err != nil {
		return nil, p.fail(logger, metrics.RunETL, metrics.StageTransform, report.RunID, start, err)
	}
	logger.Debug("transform complete",
		"origins", len(batch.Origins),
		"botanists", len(batch.Botanists),
		"plants", len(batch.Plants),
		"readings", len(batch.Readings))

	loadReport, err := load.New(p.db, load.WithLogger(logger)).Load(ctx, batch)
	if err != nil {
		return nil, p.fail(logger, metrics.RunETL, metrics.StageLoad, report.RunID, start, err)
	}
	report.Load = loadReport

	report.Duration = p.finish(metrics.RunETL, metrics.ResultSuccess, start)
	logger.Info("ETL run complete",
		"probed", report.Probed,
		"found", report.Found,
		"anomalies", report.Anomalies,
		"plants_inserted", loadReport.PlantsInserted,
		"plants_updated", loadReport.PlantsUpdated,
		"readings", loadReport.Readings,
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// RunExport summarises stored readings per plant and day, exports the
// summaries and then removes readings older than the retention window.
// Nothing is deleted unless the export succeeded.
func (p *Pipeline) RunExport(ctx context.Context) (*ExportReport, error) {
	if p.exporter == nil {
		return nil, ErrExportNotConfigured
	}

	start := time.Now()
	report := &ExportReport{RunID: uuid.NewString()}
	logger := p.logger.With("run", metrics.RunExport, "run_id", report.RunID)
	logger.Info("export run started")

	readings, err := p.db.ReadingsForSummary(ctx)
	if err != nil {
		return nil, p.fail(logger, metrics.RunExport, metrics.StageSummarize, report.RunID, start, err)
	}
	report.Readings = len(readings)

	summaries := summary.Summarize(readings)
	report.Summaries = len(summaries)

	result, err := p.exporter.Export(ctx, summaries)
	if err != nil {
		return nil, p.fail(logger, metrics.RunExport, metrics.StageExport, report.RunID, start, err)
	}
	report.Export = result

	report.RetentionCutoff = p.now().Add(-p.settings.RetentionWindow)
	deleted, err := p.db.DeleteReadingsBefore(ctx, report.RetentionCutoff)
	if err != nil {
		return nil, p.fail(logger, metrics.RunExport, metrics.StageRetention, report.RunID, start, err)
	}
	report.Deleted = deleted
	metrics.RetentionDeletedTotal.Add(float64(deleted))

	report.Duration = p.finish(metrics.RunExport, metrics.ResultSuccess, start)
	logger.Info("export run complete",
		"readings", report.Readings,
		"summaries", report.Summaries,
		"partitions", len(result.Partitions),
		"deleted", report.Deleted,
		"cutoff", report.RetentionCutoff,
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

func (p *Pipeline) fail(logger *slog.Logger, run, stage, runID string, start time.Time, err error) error {
	stageErr := &StageError{Stage: stage, RunID: runID, Err: err}
	metrics.PipelineStageFailuresTotal.WithLabelValues(stage).Inc()
	duration := p.finish(run, metrics.ResultFailure, start)
	logger.Error("pipeline stage failed", "stage", stage, "error", err, "duration_ms", duration.Milliseconds())
	if p.reporter != nil {
		p.reporter(stageErr)
	}
	return stageErr
}

func (p *Pipeline) finish(run, result string, start time.Time) time.Duration {
	duration := time.Since(start)
	metrics.PipelineRunsTotal.WithLabelValues(run, result).Inc()
	metrics.PipelineRunDuration.WithLabelValues(run, result).Observe(duration.Seconds())
	return duration
}
