package metrics

import (
	"context"
	"log/slog"
	"time"
)

// RowCounter reports the number of rows in a table
type RowCounter interface {
	CountRows(ctx context.Context, table string) (int, error)
}

// CountedTables lists the tables tracked by the row collector
var CountedTables = []string{
	TableCountry,
	TableCity,
	TableOrigin,
	TableBotanist,
	TablePlant,
	TablePlantReading,
}

// StartTableRowCollector starts a background loop that periodically
// records per-table row counts from the database
func StartTableRowCollector(ctx context.Context, db RowCounter, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect once immediately
	CollectTableRows(ctx, db, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Table row collector stopping")
			return
		case <-ticker.C:
			CollectTableRows(ctx, db, logger)
		}
	}
}

// CollectTableRows records one sample of every tracked table
func CollectTableRows(ctx context.Context, db RowCounter, logger *slog.Logger) {
	for _, table := range CountedTables {
		n, err := db.CountRows(ctx, table)
		if err != nil {
			logger.Error("Failed to count table rows", "table", table, "error", err)
			continue
		}
		TableRows.WithLabelValues(table).Set(float64(n))
	}
}
