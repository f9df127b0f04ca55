package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"duka/internal/core"
)

// fakeSheets records the calls a Client makes against the Sheets REST API.
type fakeSheets struct {
	mu       sync.Mutex
	existing []string
	created  []string
	headers  int
	appended map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		var sheets []map[string]any
		for _, title := range append(append([]string(nil), f.existing...), f.created...) {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.created = append(f.created, rq.AddSheet.Properties.Title)
			}
		}
		w.Write([]byte(`{}`))
	case strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":append")
		f.appended[rng] = append(f.appended[rng], vr.Values...)
		json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{"updatedRange": rng}})
	case r.Method == http.MethodPut:
		f.headers++
		w.Write([]byte(`{}`))
	default:
		http.Error(w, `{"error":{"code":404,"message":"unexpected call"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	f.appended = map[string][][]any{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, "sheet-id", "Ledger", time.UTC)
}

func cashTx(id string, year int, amount int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Kind:        core.KindCash,
		Amount:      decimal.NewFromInt(amount),
		PaymentType: core.PaymentMPesa,
		Description: "Sale",
		CreatedAt:   time.Date(year, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppendTransactions_ExistingSheet(t *testing.T) {
	f := &fakeSheets{existing: []string{"2026 Ledger"}}
	c := newTestClient(t, f)

	ref, err := c.AppendTransactions(context.Background(), []core.Transaction{cashTx("a", 2026, 150), cashTx("b", 2026, -20)})
	if err != nil {
		t.Fatalf("AppendTransactions: %v", err)
	}
	if ref != "'2026 Ledger'!A:I" {
		t.Errorf("unexpected ref %q", ref)
	}
	rows := f.appended["'2026 Ledger'!A:I"]
	if len(rows) != 2 {
		t.Fatalf("appended %d rows, want 2", len(rows))
	}
	if rows[1][6] != "-20.00" || rows[1][8] != "b" {
		t.Errorf("unexpected second row %v", rows[1])
	}
	if len(f.created) != 0 || f.headers != 0 {
		t.Errorf("existing sheet must not be recreated: created=%v headers=%d", f.created, f.headers)
	}
}

func TestAppendTransactions_CreatesSheetPerYear(t *testing.T) {
	f := &fakeSheets{existing: []string{"2025 Ledger"}}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.AppendTransactions(ctx, []core.Transaction{cashTx("a", 2025, 1), cashTx("b", 2026, 2)})
	if err != nil {
		t.Fatalf("AppendTransactions: %v", err)
	}
	if len(f.created) != 1 || f.created[0] != "2026 Ledger" {
		t.Fatalf("created = %v, want [2026 Ledger]", f.created)
	}
	if f.headers != 1 {
		t.Errorf("header writes = %d, want 1", f.headers)
	}

	// known sheets are cached
	if _, err := c.AppendTransactions(ctx, []core.Transaction{cashTx("c", 2026, 3)}); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if len(f.created) != 1 || f.headers != 1 {
		t.Errorf("sheet recreated: created=%v headers=%d", f.created, f.headers)
	}
	if got := len(f.appended["'2026 Ledger'!A:I"]); got != 2 {
		t.Errorf("2026 rows = %d, want 2", got)
	}
}

func TestAppendTransactions_NotInitialized(t *testing.T) {
	c := New(nil, "id", "", nil)
	if _, err := c.AppendTransactions(context.Background(), []core.Transaction{cashTx("a", 2026, 1)}); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_InvalidTimezone(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("SHOP_TIMEZONE", "Mars/Olympus")

	if _, err := NewFromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "SHOP_TIMEZONE") {
		t.Fatalf("expected timezone error, got %v", err)
	}
}

func TestServiceAccountCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := serviceAccountCredentials(); err == nil {
		t.Fatal("expected error without credentials")
	}

	path := t.TempDir() + "/sa.json"
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	b, err := serviceAccountCredentials()
	if err != nil || !strings.Contains(string(b), "service_account") {
		t.Fatalf("file credentials: %q err=%v", b, err)
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"inline":true}`)
	if b, _ := serviceAccountCredentials(); string(b) != `{"inline":true}` {
		t.Errorf("inline JSON must win, got %q", b)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2026, "2026 Ledger"},
		{"  Ledger  ", 2025, "2025 Ledger"},
		{"2024 Ledger", 2026, "2024 Ledger"},
		{"", 2026, ""},
		{"12345", 2026, "2026 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestA1QuotesTitle(t *testing.T) {
	if got := a1("Mama's Ledger", "A:I"); got != "'Mama''s Ledger'!A:I" {
		t.Errorf("a1 = %q", got)
	}
}
