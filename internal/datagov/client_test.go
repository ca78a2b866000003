package datagov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(url string, pageSize int) *Client {
	return NewClient(url, "test-resource", 5*time.Second, ClientConfig{
		PageSize:       pageSize,
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
	})
}

func writePage(w http.ResponseWriter, total int, records []map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"result": map[string]any{
			"records": records,
			"total":   total,
		},
	})
}

func fakeRecords(offset, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"_id":                 offset + i + 1,
			"month":               "2026-01",
			"town":                "ANG MO KIO",
			"flat_type":           "4 ROOM",
			"block":               "406",
			"street_name":         "ANG MO KIO AVE 10",
			"storey_range":        "04 TO 06",
			"floor_area_sqm":      "92",
			"flat_model":          "New Generation",
			"lease_commence_date": "1979",
			"resale_price":        "450000",
		}
	}
	return out
}

func TestMonthWindow(t *testing.T) {
	asOf := time.Date(2026, time.March, 17, 0, 0, 0, 0, time.UTC)

	from, to := MonthWindow(asOf, 6)
	if from != "2025-09" || to != "2026-03" {
		t.Errorf("MonthWindow() = %s, %s; want 2025-09, 2026-03", from, to)
	}

	from, to = MonthWindow(asOf, 0)
	if from != "2026-03" || to != "2026-03" {
		t.Errorf("MonthWindow(0) = %s, %s; want 2026-03, 2026-03", from, to)
	}
}

func TestFetchTransactionsPaginates(t *testing.T) {
	const total = 5
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != searchPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("resource_id"); got != "test-resource" {
			t.Errorf("resource_id = %q", got)
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		n := total - offset
		if n > limit {
			n = limit
		}
		if n < 0 {
			n = 0
		}
		writePage(w, total, fakeRecords(offset, n))
	}))
	defer server.Close()

	txns, err := testClient(server.URL, 2).FetchTransactions(context.Background(), "2025-09", "2026-03")
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if len(txns) != total {
		t.Fatalf("Expected %d transactions, got %d", total, len(txns))
	}
	for i, tx := range txns {
		if tx.ID != i+1 {
			t.Errorf("txns[%d].ID = %d, want %d", i, tx.ID, i+1)
		}
	}
	if txns[0].Town != "ANG MO KIO" || txns[0].ResalePrice != "450000" {
		t.Errorf("Unexpected first transaction: %+v", txns[0])
	}
	// Pages of 2, 2 and a short page of 1.
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
}

func TestFetchTransactionsStopsOnEmptyPage(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			// total unknown, full page
			writePage(w, 0, fakeRecords(0, 2))
			return
		}
		writePage(w, 0, nil)
	}))
	defer server.Close()

	txns, err := testClient(server.URL, 2).FetchTransactions(context.Background(), "2026-01", "2026-01")
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if len(txns) != 2 {
		t.Errorf("Expected 2 transactions, got %d", len(txns))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
}

func TestFetchTransactionsSendsMonthFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var filters map[string]map[string]string
		if err := json.Unmarshal([]byte(r.URL.Query().Get("filters")), &filters); err != nil {
			t.Errorf("filters is not valid JSON: %v", err)
		}
		month := filters["month"]
		if month["$gte"] != "2025-09" || month["$lte"] != "2026-03" {
			t.Errorf("Unexpected month filter: %v", month)
		}
		writePage(w, 0, nil)
	}))
	defer server.Close()

	if _, err := testClient(server.URL, 100).FetchTransactions(context.Background(), "2025-09", "2026-03"); err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
}

func TestFetchTransactionsAcceptsNumericFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"result":{"total":1,"records":[
			{"_id":7,"month":"2026-02","town":"BEDOK","flat_type":"3 ROOM","block":"12",
			 "street_name":"BEDOK NTH RD","storey_range":"07 TO 09","floor_area_sqm":67.5,
			 "flat_model":"Improved","lease_commence_date":1978,"resale_price":385000}]}}`)
	}))
	defer server.Close()

	txns, err := testClient(server.URL, 100).FetchTransactions(context.Background(), "2026-02", "2026-02")
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txns))
	}
	tx := txns[0]
	if tx.FloorAreaSqm != "67.5" || tx.ResalePrice != "385000" || tx.LeaseCommenceDate != "1978" {
		t.Errorf("Numeric fields not normalised to strings: %+v", tx)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writePage(w, 1, fakeRecords(0, 1))
	}))
	defer server.Close()

	txns, err := testClient(server.URL, 100).FetchTransactions(context.Background(), "2026-01", "2026-01")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("Expected 1 transaction, got %d", len(txns))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 100).FetchTransactions(context.Background(), "2026-01", "2026-01")
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 100).FetchTransactions(context.Background(), "2026-01", "2026-01")
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected a single attempt, got %d", got)
	}
}

func TestAPIReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false,"error":{"message":"resource not found"}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 100).FetchTransactions(context.Background(), "2026-01", "2026-01")
	if err == nil {
		t.Fatal("Expected error when success is false")
	}
}

func TestFetchTransactionsCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-resource", 5*time.Second, ClientConfig{
		MaxRetries:     5,
		RetryDelayBase: time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.FetchTransactions(ctx, "2026-01", "2026-01")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Cancellation did not interrupt the retry wait")
	}
}
