package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"parkwatch/internal/core"
	"parkwatch/internal/types"
)

var handlerNow = time.Date(2025, 8, 18, 14, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

func mount(prefix string, register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Route(prefix, register)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps the success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var env core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func ptr(v float64) *float64 { return &v }

// ============================================================
// Mocks
// ============================================================

type mockGarageStore struct {
	latest    []types.LatestReading
	latestErr error
	buckets   []types.AggregatedBucket
	aggErr    error

	gotGarage string
	gotSize   types.BucketSize
	gotHours  int
}

func (m *mockGarageStore) GetLatestReadings(_ context.Context) ([]types.LatestReading, error) {
	return m.latest, m.latestErr
}

func (m *mockGarageStore) GetAggregatedData(_ context.Context, id string, size types.BucketSize, hours int) ([]types.AggregatedBucket, error) {
	m.gotGarage, m.gotSize, m.gotHours = id, size, hours
	return m.buckets, m.aggErr
}

type mockForecaster struct {
	preds    []types.ForecastPrediction
	err      error
	gotID    string
	gotHoriz int
	calls    int
}

func (m *mockForecaster) SeasonalNaiveForecast(_ context.Context, id string, h int) ([]types.ForecastPrediction, error) {
	m.calls++
	m.gotID, m.gotHoriz = id, h
	return m.preds, m.err
}

func (m *mockForecaster) BatchForecast(_ context.Context, h int) ([]types.ForecastPrediction, error) {
	m.calls++
	m.gotHoriz = h
	return m.preds, m.err
}

type mockSnapshotReader struct {
	snap *types.ForecastSnapshot
	err  error
}

func (m *mockSnapshotReader) GetSnapshot(_ context.Context, _ string) (*types.ForecastSnapshot, error) {
	return m.snap, m.err
}

type mockTrendAnalyzer struct {
	analysis types.TrendAnalysis
	err      error
	gotDays  int
}

func (m *mockTrendAnalyzer) GetTrendAnalysis(_ context.Context, _ string, days int) (types.TrendAnalysis, error) {
	m.gotDays = days
	return m.analysis, m.err
}

func newRequest(method, target, authorization string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
