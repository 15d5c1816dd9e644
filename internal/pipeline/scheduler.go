package pipeline

import (
	"context"
	"log/slog"
	"time"

	"plant-telemetry-pipeline/internal/metrics"
)

// Runner is the work a Scheduler drives
type Runner interface {
	RunETL(ctx context.Context) (*ETLReport, error)
	RunExport(ctx context.Context) (*ExportReport, error)
}

// Scheduler runs ETL and export jobs on fixed intervals. Jobs never
// overlap: both run on the scheduler's goroutine.
type Scheduler struct {
	runner         Runner
	etlInterval    time.Duration
	exportInterval time.Duration
	logger         *slog.Logger
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a Scheduler. A zero exportInterval disables exports.
func NewScheduler(runner Runner, etlInterval, exportInterval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:         runner,
		etlInterval:    etlInterval,
		exportInterval: exportInterval,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs an ETL job immediately and then on every tick until ctx is
// cancelled. Job failures are logged and the loop carries on.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler", "etl_interval", s.etlInterval, "export_interval", s.exportInterval)

	etlTicker := time.NewTicker(s.etlInterval)
	defer etlTicker.Stop()

	var exportTick <-chan time.Time
	if s.exportInterval > 0 {
		exportTicker := time.NewTicker(s.exportInterval)
		defer exportTicker.Stop()
		exportTick = exportTicker.C
	}

	s.runETL(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scheduler")
			return ctx.Err()
		case <-etlTicker.C:
			s.runETL(ctx)
		case <-exportTick:
			s.runExport(ctx)
		}
	}
}

func (s *Scheduler) runETL(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	metrics.SchedulerActive.Set(1)
	defer metrics.SchedulerActive.Set(0)

	if _, err := s.runner.RunETL(ctx); err != nil {
		s.logger.Error("Scheduled ETL run failed", "error", err)
	}
}

func (s *Scheduler) runExport(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	metrics.SchedulerActive.Set(1)
	defer metrics.SchedulerActive.Set(0)

	if _, err := s.runner.RunExport(ctx); err != nil {
		s.logger.Error("Scheduled export run failed", "error", err)
	}
}
