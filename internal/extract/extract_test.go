package extract

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"plant-telemetry-pipeline/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher serves canned responses keyed by plant ID. IDs without an
// entry answer "plant not found".
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[int]string
	failures  map[int]bool
	calls     []int
	jitter    bool
	delay     time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[int]string{}, failures: map[int]bool{}}
}

func (f *fakeFetcher) found(ids ...int) *fakeFetcher {
	for _, id := range ids {
		f.responses[id] = ""
	}
	return f
}

func (f *fakeFetcher) anomaly(id int, kind string) *fakeFetcher {
	f.responses[id] = kind
	return f
}

func (f *fakeFetcher) failing(ids ...int) *fakeFetcher {
	for _, id := range ids {
		f.failures[id] = true
	}
	return f
}

func (f *fakeFetcher) FetchPlant(ctx context.Context, id int) (*models.RawRecord, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, id)
	errStr, ok := f.responses[id]
	fail := f.failures[id]
	f.mu.Unlock()

	if f.jitter {
		time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
	}
	time.Sleep(f.delay)

	if fail {
		return nil, errors.New("connection reset")
	}
	if !ok {
		return &models.RawRecord{PlantID: &id, Error: models.ErrorPlantNotFound}, nil
	}
	return &models.RawRecord{PlantID: &id, Error: errStr}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func recordIDs(records []models.RawRecord) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, *r.PlantID)
	}
	return ids
}

func TestFetchAllStopsAfterThreshold(t *testing.T) {
	fetcher := newFakeFetcher()
	e := New(fetcher, WithBatchSize(3))

	records, err := e.FetchAll(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 3, fetcher.callCount())
}

func TestFetchAllStopsAfterThresholdFollowingRecord(t *testing.T) {
	fetcher := newFakeFetcher().found(3)
	e := New(fetcher, WithBatchSize(3))

	records, err := e.FetchAll(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, recordIDs(records))
	assert.Equal(t, 6, fetcher.callCount())
}

func TestFetchAllDiscardsResultsPastStop(t *testing.T) {
	fetcher := newFakeFetcher().found(1, 6)
	e := New(fetcher, WithBatchSize(10))

	results, err := e.Scan(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 4, results[3].ID)
	assert.Equal(t, 10, fetcher.callCount())

	records, err := New(newFakeFetcher().found(1, 6), WithBatchSize(10)).FetchAll(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, recordIDs(records))
}

func TestScanKeepsFullBatchesInFlight(t *testing.T) {
	ids := make([]int, 100)
	for i := range ids {
		ids[i] = i + 1
	}
	fetcher := newFakeFetcher().found(ids...)
	fetcher.delay = 20 * time.Millisecond

	records, err := New(fetcher, WithBatchSize(20)).FetchAll(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, records, 100)

	assert.Greater(t, int(fetcher.maxInFlight.Load()), 3)
	assert.LessOrEqual(t, int(fetcher.maxInFlight.Load()), 20)
	assert.Equal(t, 120, fetcher.callCount())
}

func TestFetchAllCollectsInOrder(t *testing.T) {
	fetcher := newFakeFetcher().found(1, 2, 3, 4, 5)
	e := New(fetcher)

	records, err := e.FetchAll(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, recordIDs(records))
	assert.Equal(t, DefaultBatchSize, fetcher.callCount())
}

func TestFetchAllGapShorterThanThreshold(t *testing.T) {
	fetcher := newFakeFetcher().found(1, 2, 5, 6)
	e := New(fetcher, WithBatchSize(4))

	records, err := e.FetchAll(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5, 6}, recordIDs(records))
}

func TestFetchAllKeepsAnomalies(t *testing.T) {
	fetcher := newFakeFetcher().
		found(1).
		anomaly(2, models.ErrorSensorFault).
		anomaly(4, models.ErrorOnLoan)
	e := New(fetcher)

	results, err := e.Scan(context.Background(), 2)
	require.NoError(t, err)

	outcomes := map[int]models.Outcome{}
	for _, r := range results {
		outcomes[r.ID] = r.Outcome
	}
	assert.Equal(t, models.OutcomeFound, outcomes[1])
	assert.Equal(t, models.OutcomeSoftAnomaly, outcomes[2])
	assert.Equal(t, models.OutcomeNotFound, outcomes[3])
	assert.Equal(t, models.OutcomeSoftAnomaly, outcomes[4])

	records, err := New(fetcher).FetchAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, recordIDs(records))
}

func TestFetchAllCountsTransportErrors(t *testing.T) {
	fetcher := newFakeFetcher().found(1, 5).failing(2, 3, 4)
	e := New(fetcher, WithBatchSize(2))

	results, err := e.Scan(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, r := range results[1:] {
		assert.Equal(t, models.OutcomeTransportError, r.Outcome)
		assert.Error(t, r.Err)
	}

	for _, id := range fetcher.calls {
		assert.NotEqual(t, 5, id, "plant 5 should never be fetched")
	}
}

func TestScanInvalidThreshold(t *testing.T) {
	e := New(newFakeFetcher())

	_, err := e.Scan(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = e.FetchAll(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := newFakeFetcher().found(1, 2, 3)
	_, err := New(fetcher).Scan(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fetcher.callCount())
}

func TestScanBoundedConcurrency(t *testing.T) {
	ids := make([]int, 200)
	for i := range ids {
		ids[i] = i + 1
	}
	fetcher := newFakeFetcher().found(ids...)
	fetcher.jitter = true

	records, err := New(fetcher, WithBatchSize(8)).FetchAll(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 200)

	got := recordIDs(records)
	assert.IsIncreasing(t, got)
	assert.LessOrEqual(t, int(fetcher.maxInFlight.Load()), 8)
}

func TestScanStartID(t *testing.T) {
	fetcher := newFakeFetcher().found(40, 41)
	records, err := New(fetcher, WithStartID(40)).FetchAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{40, 41}, recordIDs(records))
}

func TestIDs(t *testing.T) {
	var got []int
	for id := range ids(7) {
		got = append(got, id)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []int{7, 8, 9}, got)
}
