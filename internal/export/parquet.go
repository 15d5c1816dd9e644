package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"

	"plant-telemetry-pipeline/internal/models"
)

// Encoder serialises summary rows into one columnar file
type Encoder interface {
	Encode(ctx context.Context, rows []models.DailySummary) ([]byte, error)
	ContentType() string
	Extension() string
}

// DuckDBEncoder writes Parquet through an in-memory DuckDB database.
// Partition columns are carried by the object path, not the file.
type DuckDBEncoder struct{}

const summaryTable = `
CREATE TEMP TABLE daily_summary (
    reading_date DATE,
    plant_id INTEGER,
    plant_name VARCHAR,
    scientific_name VARCHAR,
    botanist_name VARCHAR,
    botanist_email VARCHAR,
    botanist_phone VARCHAR,
    min_temperature DOUBLE,
    max_temperature DOUBLE,
    avg_temperature DOUBLE,
    median_temperature DOUBLE,
    percentile_25_temperature DOUBLE,
    percentile_75_temperature DOUBLE,
    min_humidity DOUBLE,
    max_humidity DOUBLE,
    avg_humidity DOUBLE,
    median_humidity DOUBLE,
    percentile_25_humidity DOUBLE,
    percentile_75_humidity DOUBLE,
    times_watered INTEGER
)`

const insertSummary = `INSERT INTO daily_summary VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (DuckDBEncoder) ContentType() string { return "application/vnd.apache.parquet" }

func (DuckDBEncoder) Extension() string { return ".parquet" }

// Encode returns the rows as a Parquet file
func (DuckDBEncoder) Encode(ctx context.Context, rows []models.DailySummary) ([]byte, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	// Temp tables are per connection
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get duckdb connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, summaryTable); err != nil {
		return nil, fmt.Errorf("failed to create summary table: %w", err)
	}

	stmt, err := conn.PrepareContext(ctx, insertSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare summary insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ReadingDate, r.PlantID, text(r.PlantName), text(r.ScientificName),
			text(r.BotanistName), text(r.BotanistEmail), text(r.BotanistPhone),
			number(r.MinTemperature), number(r.MaxTemperature), number(r.AvgTemperature),
			number(r.MedianTemperature), number(r.Percentile25Temperature), number(r.Percentile75Temperature),
			number(r.MinHumidity), number(r.MaxHumidity), number(r.AvgHumidity),
			number(r.MedianHumidity), number(r.Percentile25Humidity), number(r.Percentile75Humidity),
			r.TimesWatered,
		); err != nil {
			return nil, fmt.Errorf("failed to insert summary for plant %d: %w", r.PlantID, err)
		}
	}

	dir, err := os.MkdirTemp("", "plant-summary-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "summary.parquet")
	copyStmt := fmt.Sprintf("COPY (SELECT * FROM daily_summary ORDER BY reading_date DESC, plant_id) TO '%s' (FORMAT PARQUET)", path)
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		return nil, fmt.Errorf("failed to write parquet: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}
	return data, nil
}

func text(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func number(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
