package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"spendwise/internal/core"
)

type sheetsCall struct {
	method string
	path   string
	query  string
	values [][]any
}

func fakeSheets(t *testing.T) (*httptest.Server, *[]sheetsCall) {
	t.Helper()
	var mu sync.Mutex
	calls := &[]sheetsCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := sheetsCall{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if r.Method == http.MethodPut {
			var body struct {
				Values [][]any `json:"values"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			call.values = body.Values
		}
		mu.Lock()
		*calls = append(*calls, call)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(context.Background(),
		Options{SpreadsheetID: "sheet-id"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || !strings.Contains(err.Error(), "spreadsheet id") {
		t.Fatalf("New() error = %v, want missing spreadsheet id", err)
	}
}

func TestNew_MissingCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestExportNudges(t *testing.T) {
	srv, calls := fakeSheets(t)
	c := newTestClient(t, srv)

	nudges := []core.Nudge{{
		ID:          "n1",
		Type:        core.NudgeBudgetExceeded,
		Category:    "Groceries",
		Message:     "Groceries is over budget",
		TriggeredBy: map[string]int64{"overage_cents": 2500},
		CreatedAt:   time.Date(2025, 10, 31, 8, 0, 0, 0, time.UTC),
	}}

	if err := c.ExportNudges(context.Background(), nudges); err != nil {
		t.Fatalf("ExportNudges() error = %v", err)
	}

	if len(*calls) != 2 {
		t.Fatalf("got %d calls, want clear then update", len(*calls))
	}
	clearCall, update := (*calls)[0], (*calls)[1]

	if clearCall.method != http.MethodPost || !strings.HasSuffix(clearCall.path, ":clear") || !strings.Contains(clearCall.path, "sheet-id") {
		t.Errorf("clear call = %s %s", clearCall.method, clearCall.path)
	}
	if update.method != http.MethodPut || !strings.Contains(update.path, "Nudges!A1") {
		t.Errorf("update call = %s %s", update.method, update.path)
	}
	if !strings.Contains(update.query, "valueInputOption=RAW") {
		t.Errorf("update query = %q", update.query)
	}
	if len(update.values) != 2 {
		t.Fatalf("update rows = %d, want header + 1", len(update.values))
	}
	if update.values[0][0] != "ID" || update.values[1][0] != "n1" || update.values[1][4] != "$25.00" {
		t.Errorf("update values = %v", update.values)
	}
}

func TestExportNudges_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x", nudgesSheet: DefaultNudgesSheet}
	if err := c.ExportNudges(context.Background(), nil); err == nil {
		t.Error("expected error with nil service")
	}
}

func TestNudgeRows(t *testing.T) {
	rows := nudgeRows([]core.Nudge{
		{ID: "a", Type: core.NudgeForecastOverBudget, Suggestion: "Pause", TriggeredBy: map[string]int64{"over_cents": -450}},
		{ID: "b", Type: core.NudgeCategorySpike},
	})

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if got := rows[1][4]; got != "-$4.50" {
		t.Errorf("forecast amount = %v", got)
	}
	if got := rows[2][4]; got != "" {
		t.Errorf("missing trigger amount = %v, want empty", got)
	}
	if got := rows[1][2]; got != "" {
		t.Errorf("category = %v, want empty for whole-budget nudge", got)
	}
	if got := rows[1][6]; got != "Pause" || rows[0][6] != "Suggestion" {
		t.Errorf("suggestion = %v under header %v", got, rows[0][6])
	}
}
