package metrics

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeCounter struct {
	counts map[string]int
}

func (f fakeCounter) CountRows(ctx context.Context, table string) (int, error) {
	n, ok := f.counts[table]
	if !ok {
		return 0, errors.New("no such table")
	}
	return n, nil
}

func TestCollectTableRows(t *testing.T) {
	db := fakeCounter{counts: map[string]int{
		TablePlant:        12,
		TablePlantReading: 480,
	}}

	CollectTableRows(context.Background(), db, slog.Default())

	if got := testutil.ToFloat64(TableRows.WithLabelValues(TablePlant)); got != 12 {
		t.Errorf("Expected 12 plant rows, got %v", got)
	}
	if got := testutil.ToFloat64(TableRows.WithLabelValues(TablePlantReading)); got != 480 {
		t.Errorf("Expected 480 reading rows, got %v", got)
	}
}
