package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/flatvalue/internal/config"
	"github.com/rewired-gh/flatvalue/internal/models"
	"github.com/rewired-gh/flatvalue/internal/valuation"
)

var testAsOf = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	top     []models.Scored
	summary models.Summary
	calls   int
	err     error
}

func (f *fakeNotifier) SendTop(_ context.Context, top []models.Scored, summary models.Summary) error {
	f.calls++
	f.top = top
	f.summary = summary
	return f.err
}

func apiRecord(id int, town, flatType, area, price string) map[string]any {
	return map[string]any{
		"_id":                 id,
		"month":               "2026-01",
		"town":                town,
		"flat_type":           flatType,
		"block":               strconv.Itoa(100 + id),
		"street_name":         town + " ST 1",
		"storey_range":        "04 TO 06",
		"floor_area_sqm":      area,
		"flat_model":          "Model A",
		"lease_commence_date": "1995",
		"resale_price":        price,
	}
}

func newTestServer(t *testing.T, records []map[string]any, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := []map[string]any{}
		if offset < len(records) {
			page = records[offset:]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  map[string]any{"records": page, "total": len(records)},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func testApp(t *testing.T, apiURL string) (*app, *fakeNotifier) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.DataGov.APIBaseURL = apiURL
	cfg.DataGov.RequestInterval = 0
	cfg.DataGov.RetryDelayBase = time.Millisecond
	cfg.Cache.FilePath = filepath.Join(dir, "cache.json")
	cfg.Export.OutputDir = filepath.Join(dir, "out")
	cfg.Export.XLSX = true
	cfg.Metrics.TextfilePath = filepath.Join(dir, "metrics", "flatvalue.prom")
	cfg.Telegram.Enabled = true
	cfg.Telegram.BotToken = "test-token"
	cfg.Telegram.ChatID = "1"
	cfg.Telegram.TopK = 2
	require.NoError(t, cfg.Validate())

	a := newApp(cfg, testAsOf)
	fake := &fakeNotifier{}
	a.newNotifier = func() (notifier, error) { return fake, nil }
	return a, fake
}

func TestRunFetchesThenUsesCache(t *testing.T) {
	var calls int32
	records := []map[string]any{
		apiRecord(1, "HOUGANG", "4 ROOM", "90", "400000"),
		apiRecord(2, "HOUGANG", "4 ROOM", "90", "450000"),
		apiRecord(3, "HOUGANG", "4 ROOM", "90", "520000"),
		apiRecord(4, "HOUGANG", "EXECUTIVE", "140", "800000"),
	}
	server := newTestServer(t, records, &calls)
	a, fake := testApp(t, server.URL)
	ctx := context.Background()

	txns, err := a.transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txns, 4)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	txns, err = a.transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txns, 4)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "fresh cache should not refetch")

	res, err := a.score(ctx, txns)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 1, res.Summary.ExcludedCount)

	for _, name := range []string{csvFileName, xlsxFileName, summaryFileName} {
		_, err := os.Stat(filepath.Join(a.cfg.Export.OutputDir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(a.cfg.Metrics.TextfilePath)
	assert.NoError(t, err)

	require.Equal(t, 1, fake.calls)
	// HOUGANG's accessibility lifts the median flat just above zero.
	require.Len(t, fake.top, 2)
	assert.Equal(t, 1, fake.top[0].ID)
	assert.Equal(t, 2, fake.top[1].ID)
	assert.Equal(t, res.Summary.RunID, fake.summary.RunID)
}

func TestScoreWithoutCache(t *testing.T) {
	a, _ := testApp(t, "http://127.0.0.1:1")
	_, err := a.cachedTransactions()
	assert.ErrorIs(t, err, errNoCache)
}

func TestScoreReportsDataQualityError(t *testing.T) {
	a, fake := testApp(t, "http://127.0.0.1:1")
	txns := []models.Transaction{
		{ID: 1, Month: "2026-01", Town: "BEDOK", FlatType: "3 ROOM", FloorAreaSqm: "67", ResalePrice: "380000"},
		{ID: 2, Month: "2026-01", Town: "BEDOK", FlatType: "3 ROOM", FloorAreaSqm: "0", ResalePrice: "390000"},
	}

	_, err := a.score(context.Background(), txns)
	var dqe *valuation.DataQualityError
	require.True(t, errors.As(err, &dqe))
	assert.Equal(t, 1, dqe.Index)
	assert.Equal(t, 0, fake.calls)

	_, statErr := os.Stat(filepath.Join(a.cfg.Export.OutputDir, summaryFileName))
	assert.True(t, os.IsNotExist(statErr), "no reports on a rejected run")
}

func TestScoreNotifierFailureIsNotFatal(t *testing.T) {
	a, fake := testApp(t, "http://127.0.0.1:1")
	fake.err = errors.New("telegram down")
	txns := []models.Transaction{
		{ID: 1, Month: "2026-01", Town: "BEDOK", FlatType: "3 ROOM", FloorAreaSqm: "67", ResalePrice: "380000"},
		{ID: 2, Month: "2026-01", Town: "BEDOK", FlatType: "3 ROOM", FloorAreaSqm: "67", ResalePrice: "390000"},
	}

	_, err := a.score(context.Background(), txns)
	assert.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
}
