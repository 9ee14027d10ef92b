package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/cache"
	"spendwise/internal/categorize"
	"spendwise/internal/core"
	"spendwise/internal/insights"
	applog "spendwise/internal/log"
	"spendwise/internal/nudge"
	"spendwise/internal/services"
	"spendwise/internal/storage"
	"spendwise/internal/storage/memory"
)

const statementCSV = `date,merchant,amount
2025-10-01,Trader Joe's,45.00
2025-10-02,Trader Joe's,30.00
2025-10-03,Starbucks,5.75
not-a-date,Starbucks,5.75
`

type uploadResult struct {
	Created   int      `json:"created"`
	Rejected  int      `json:"rejected"`
	Mode      string   `json:"mode"`
	Month     string   `json:"month"`
	Months    []string `json:"months"`
	RowErrors []string `json:"row_errors"`
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, opts Options, pinger Pinger) *Server {
	t.Helper()
	store := memory.New()
	agg := insights.NewAggregator(5)
	agg.Now = func() time.Time { return time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC) }

	ins := services.NewInsightsService(store, agg, cache.NewLRUCache[core.Insights](16, time.Hour))
	ingest := services.NewIngestService(store, categorize.Default(), storage.NewMonthLocker(), nil, ins)
	engine := nudge.NewEngine(nudge.DefaultSettings(), core.Budgets{"Groceries": 5000}, store)
	nudges := services.NewNudgeService(store, ins, engine)

	if pinger == nil {
		pinger = store
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Level: applog.DefaultConfig().Level, Output: io.Discard})
	}
	srv := NewServer(opts, ingest, ins, nudges, pinger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func upload(t *testing.T, srv *Server, query, csv string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/transactions/upload"+query, strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	return do(t, srv, req)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestReadyReportsStoreFailure(t *testing.T) {
	srv := newTestServer(t, Options{}, pingerFunc(func(context.Context) error { return errors.New("db down") }))

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestUploadThenQuery(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := upload(t, srv, "?mode=replace", statementCSV)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	res := decode[uploadResult](t, rr)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, "replace", res.Mode)
	assert.Equal(t, "2025-10", res.Month)
	assert.Equal(t, []string{"2025-10"}, res.Months)
	assert.Len(t, res.RowErrors, 1)

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/insights?month=2025-10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	ins := decode[core.Insights](t, rr)
	assert.Equal(t, int64(8075), ins.TotalCents)
	assert.Equal(t, int64(7500), ins.ByCategory["Groceries"])
	assert.Equal(t, 3, ins.TransactionCount)

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/transactions?period=2025-10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Count        int  `json:"count"`
		Truncated    bool `json:"truncated"`
		Transactions []struct {
			ID       string `json:"id"`
			Merchant string `json:"merchant"`
			Category string `json:"category"`
		} `json:"transactions"`
	}](t, rr)
	require.Equal(t, 3, list.Count)
	assert.False(t, list.Truncated)
	assert.Equal(t, "Coffee", list.Transactions[2].Category)

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/transactions/"+list.Transactions[0].ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Trader Joe's")

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/transactions/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUploadMultipart(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(t, srv, multipartRequest(t, "file", statementCSV))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"created":3`)
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		csv        string
		wantStatus int
		wantBody   string
	}{
		{name: "no valid rows", csv: "date,merchant,amount\nbad,Shop,1.00\n", wantStatus: http.StatusBadRequest, wantBody: `"rejected":1`},
		{name: "unknown mode", query: "?mode=merge", csv: statementCSV, wantStatus: http.StatusBadRequest},
		{name: "bad month hint", query: "?month=2025-13", csv: statementCSV, wantStatus: http.StatusBadRequest},
		{name: "missing header", csv: "", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{}, nil)
			rr := upload(t, srv, tt.query, tt.csv)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t, Options{MaxUploadBytes: 64}, nil)

	big := "date,merchant,amount\n" + strings.Repeat("2025-10-01,Trader Joe's,45.00\n", 100)
	rr := upload(t, srv, "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
}

func TestUploadRateLimited(t *testing.T) {
	srv := newTestServer(t, Options{UploadsPerMinute: 1}, nil)

	require.Equal(t, http.StatusCreated, upload(t, srv, "", statementCSV).Code)
	rr := upload(t, srv, "", statementCSV)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestInsightsBadPeriod(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/insights?period=October", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInsightsEmptyPeriod(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/insights", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	ins := decode[core.Insights](t, rr)
	assert.Zero(t, ins.TotalCents)
	assert.Equal(t, "2025-10", ins.Period.String())
}

func TestSuggestAndListNudges(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/nudges", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	require.Equal(t, http.StatusCreated, upload(t, srv, "", statementCSV).Code)

	rr = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/nudges/suggest?period=2025-10", nil))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	suggested := decode[[]core.Nudge](t, rr)
	require.NotEmpty(t, suggested)
	assert.Equal(t, core.NudgeBudgetExceeded, suggested[0].Type)
	assert.Equal(t, "Groceries", suggested[0].Category)

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/nudges", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decode[[]core.Nudge](t, rr)
	require.Len(t, listed, len(suggested))
	assert.Equal(t, suggested[0].ID, listed[0].ID)
}

func TestRecategorize(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	require.Equal(t, http.StatusCreated, upload(t, srv, "", statementCSV).Code)

	rr := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/transactions/recategorize", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"updated":0}`, strings.TrimSpace(rr.Body.String()))
}

func TestRoutingAndHeaders(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)

	rr := do(t, srv, httptest.NewRequest(http.MethodDelete, "/api/insights", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = do(t, srv, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	assert.GreaterOrEqual(t, srv.Stats().TotalRequests, int64(3))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{CORSAllowedOrigins: []string{"https://dash.example"}}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/insights", nil)
	req.Header.Set("Origin", "https://dash.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := do(t, srv, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://dash.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
