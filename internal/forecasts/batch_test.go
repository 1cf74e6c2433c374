package forecasts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwatch/internal/types"
)

type recordingObserver struct {
	mu       sync.Mutex
	garages  int
	failures int
	calls    int
}

func (o *recordingObserver) ObserveBatch(garages, failures int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.garages, o.failures = garages, failures
	o.calls++
}

func TestBatchForecast_IsolatesFailures(t *testing.T) {
	hist := testNow.Add(-24 * time.Hour)
	store := &fakeStore{
		ids: []string{"west-garage", "broken-garage", "north-garage", "empty-garage"},
		readings: map[string][]types.Reading{
			"west-garage":  {reading("west-garage", hist, 20)},
			"north-garage": {reading("north-garage", hist, 80)},
		},
		errs: map[string]error{"broken-garage": errors.New("read timeout")},
	}
	obs := &recordingObserver{}
	f := newTestForecaster(store, WithObserver(obs), WithBatchConcurrency(2))

	preds, err := f.BatchForecast(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, preds, 60)

	for i, p := range preds[:30] {
		assert.Equal(t, "north-garage", p.GarageID)
		assert.Equal(t, preds[30+i].Timestamp, p.Timestamp, "garages share the reference minute")
	}
	for _, p := range preds[30:] {
		assert.Equal(t, "west-garage", p.GarageID)
	}
	for i := 1; i < 30; i++ {
		assert.True(t, preds[i].Timestamp.After(preds[i-1].Timestamp))
	}

	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, 4, obs.garages)
	assert.Equal(t, 2, obs.failures)
}

func TestBatchForecast_AllGaragesFailing(t *testing.T) {
	store := &fakeStore{ids: []string{"a", "b"}, readings: map[string][]types.Reading{}}
	f := newTestForecaster(store)

	preds, err := f.BatchForecast(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestBatchForecast_ListErrorPropagates(t *testing.T) {
	listErr := errors.New("permission denied")
	f := newTestForecaster(&fakeStore{listErr: listErr})

	_, err := f.BatchForecast(context.Background(), 10)
	assert.ErrorIs(t, err, listErr)
}

func TestBatchForecast_RejectsNonPositiveHorizon(t *testing.T) {
	f := newTestForecaster(&fakeStore{ids: []string{"a"}})

	_, err := f.BatchForecast(context.Background(), 0)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationOutOfRange))
}

func TestGroupByGarage(t *testing.T) {
	ts := testNow.Truncate(time.Minute)
	preds := []types.ForecastPrediction{
		{GarageID: "a", Timestamp: ts.Add(time.Minute)},
		{GarageID: "a", Timestamp: ts.Add(2 * time.Minute)},
		{GarageID: "b", Timestamp: ts.Add(time.Minute)},
	}

	grouped := GroupByGarage(preds)

	require.Len(t, grouped, 2)
	assert.Len(t, grouped["a"], 2)
	assert.Equal(t, ts.Add(2*time.Minute), grouped["a"][1].Timestamp)
	assert.Len(t, grouped["b"], 1)
}
