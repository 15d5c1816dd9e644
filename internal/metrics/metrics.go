package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Pipeline stages
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
	StageSummarize = "summarize"
	StageExport    = "export"
	StageRetention = "retention"

	// Pipeline runs
	RunETL    = "etl"
	RunExport = "export"

	// Run results
	ResultSuccess = "success"
	ResultFailure = "failure"

	// HTTP endpoints
	EndpointHealth  = "health"
	EndpointMetrics = "metrics"

	// Plant API operations
	OpFetchPlant = "fetch_plant"

	// Tables
	TableCountry      = "country"
	TableCity         = "city"
	TableOrigin       = "origin"
	TableBotanist     = "botanist"
	TablePlant        = "plant"
	TablePlantReading = "plant_reading"

	// Database operations
	DBOpInsertCountry      = "insert_country"
	DBOpInsertCity         = "insert_city"
	DBOpFindOrigin         = "find_origin"
	DBOpInsertOrigin       = "insert_origin"
	DBOpGetBotanist        = "get_botanist"
	DBOpInsertBotanist     = "insert_botanist"
	DBOpUpsertPlant        = "upsert_plant"
	DBOpPlantExists        = "plant_exists"
	DBOpInsertReading      = "insert_reading"
	DBOpReadingsForSummary = "readings_for_summary"
	DBOpDeleteReadings     = "delete_readings"
	DBOpCountRows          = "count_rows"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Plant API Metrics
var (
	PlantAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plant_api_requests_total",
			Help: "Total number of plant telemetry API requests",
		},
		[]string{"operation", "status_code"},
	)

	PlantAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plant_api_request_duration_seconds",
			Help:    "Plant telemetry API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "status_code"},
	)

	PlantAPIRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plant_api_retries_total",
			Help: "Total number of retried plant telemetry API requests",
		},
	)
)

// Extractor Metrics
var (
	ExtractOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_outcomes_total",
			Help: "Total number of probed plant IDs by outcome",
		},
		[]string{"outcome"},
	)

	ExtractBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "extract_batches_total",
			Help: "Total number of concurrent probe batches issued",
		},
	)
)

// Loader Metrics
var (
	LoadRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_rows_total",
			Help: "Total number of rows written by the loader",
		},
		[]string{"table"},
	)

	LoadSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_skipped_total",
			Help: "Total number of rows skipped by the loader",
		},
		[]string{"table"},
	)

	TableRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "table_rows",
			Help: "Current number of rows per table",
		},
		[]string{"table"},
	)
)

// Database Metrics
var (
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)
)

// Pipeline Metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by result",
		},
		[]string{"run", "result"},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"run", "result"},
	)

	PipelineStageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)

	SchedulerActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_active",
			Help: "Whether the scheduler is currently running a job (1) or idle (0)",
		},
	)
)

// Export Metrics
var (
	ExportRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "export_rows_total",
			Help: "Total number of daily summary rows exported",
		},
	)

	ExportPartitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "export_partitions_total",
			Help: "Total number of partitions written",
		},
	)

	RetentionDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deleted_total",
			Help: "Total number of readings removed by retention",
		},
	)
)
