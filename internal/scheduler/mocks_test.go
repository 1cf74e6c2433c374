package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"parkwatch/internal/metrics"
	"parkwatch/internal/scraper"
	"parkwatch/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================
// Scrape job mocks
// ============================================================

type mockPageScraper struct {
	page scraper.Page
	err  error
}

func (m *mockPageScraper) Scrape(_ context.Context) (scraper.Page, error) {
	return m.page, m.err
}

type mockReadingWriter struct {
	mu      sync.Mutex
	failFor map[string]error
	stored  []types.Reading
}

func (m *mockReadingWriter) Upsert(_ context.Context, r types.Reading) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[r.GarageID]; err != nil {
		return 0, err
	}
	m.stored = append(m.stored, r)
	return int64(len(m.stored)), nil
}

type mockGarageInfoWriter struct {
	err   error
	infos []types.GarageInfo
}

func (m *mockGarageInfoWriter) Upsert(_ context.Context, info types.GarageInfo) error {
	if m.err != nil {
		return m.err
	}
	m.infos = append(m.infos, info)
	return nil
}

type mockNotifier struct {
	err  error
	msgs []types.ReadingsIngestedMessage
}

func (m *mockNotifier) NotifyIngested(_ context.Context, msg types.ReadingsIngestedMessage) error {
	m.msgs = append(m.msgs, msg)
	return m.err
}

type mockScrapeMetrics struct {
	outcomes []metrics.ScrapeOutcome
}

func (m *mockScrapeMetrics) RecordScrape(_ context.Context, o metrics.ScrapeOutcome) {
	m.outcomes = append(m.outcomes, o)
}

// ============================================================
// Refresher mocks
// ============================================================

type mockBatchForecaster struct {
	preds   []types.ForecastPrediction
	err     error
	calls   int
	horizon int
}

func (m *mockBatchForecaster) BatchForecast(_ context.Context, h int) ([]types.ForecastPrediction, error) {
	m.calls++
	m.horizon = h
	return m.preds, m.err
}

type mockSnapshotStore struct {
	lastMark  types.SourceMark
	markErr   error
	putErrFor map[string]error
	snapshots map[string]types.ForecastSnapshot
	marks     []types.SourceMark
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{snapshots: make(map[string]types.ForecastSnapshot)}
}

func (m *mockSnapshotStore) PutSnapshot(_ context.Context, snap types.ForecastSnapshot) error {
	if err := m.putErrFor[snap.GarageID]; err != nil {
		return err
	}
	m.snapshots[snap.GarageID] = snap
	return nil
}

func (m *mockSnapshotStore) LastSource(_ context.Context) (types.SourceMark, error) {
	return m.lastMark, m.markErr
}

func (m *mockSnapshotStore) MarkSource(_ context.Context, mark types.SourceMark) error {
	m.marks = append(m.marks, mark)
	m.lastMark = mark
	return nil
}

// stepClock is a settable clock for sequences of calls.
type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

type refreshRecord struct {
	refreshed bool
	failures  int
}

type mockRefreshMetrics struct {
	records []refreshRecord
}

func (m *mockRefreshMetrics) RecordForecastRefresh(_ context.Context, refreshed bool, failures int) {
	m.records = append(m.records, refreshRecord{refreshed, failures})
}

// ============================================================
// Maintenance mocks
// ============================================================

type listCall struct {
	start, end time.Time
	limit      int
	afterID    int64
}

type mockReadingLister struct {
	all   []types.Reading
	err   error
	calls []listCall
}

func (m *mockReadingLister) ListBetween(_ context.Context, start, end time.Time, limit int, afterID int64) ([]types.Reading, error) {
	m.calls = append(m.calls, listCall{start, end, limit, afterID})
	if m.err != nil {
		return nil, m.err
	}
	var page []types.Reading
	for _, r := range m.all {
		if r.ID > afterID && len(page) < limit {
			page = append(page, r)
		}
	}
	return page, nil
}

type mockObjectPutter struct {
	err    error
	inputs []*s3.PutObjectInput
	bodies [][]byte
}

func (m *mockObjectPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.inputs = append(m.inputs, in)
	body, _ := io.ReadAll(in.Body)
	m.bodies = append(m.bodies, body)
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

type mockHistoryPrunerDB struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (m *mockHistoryPrunerDB) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return m.deleted, m.err
}
