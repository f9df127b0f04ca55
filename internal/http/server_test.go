package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/cache"
	"duka/internal/core"
	"duka/internal/guard"
	applog "duka/internal/log"
	"duka/internal/memory"
	"duka/internal/services"
	"duka/internal/state"
)

var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type apiResponse[T any] struct {
	Data    T          `json:"data"`
	Message string     `json:"message"`
	Error   *ErrorBody `json:"error"`
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	store := memory.New(memory.WithClock(clock))
	st := state.New(store, state.WithClock(clock))
	ledger := services.NewLedgerService(store, st, guard.New(), services.WithClock(clock))

	logger := applog.New(applog.Config{Output: io.Discard})
	all := append([]Option{WithLogger(logger), WithClock(clock)}, opts...)
	srv := NewServer(":0", ledger, st, all...)
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) apiResponse[T] {
	t.Helper()
	var out apiResponse[T]
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status %d, want %d; body %s", rr.Code, want, rr.Body.String())
	}
}

func TestRepeatedCashReadsHitViewCache(t *testing.T) {
	clock := func() time.Time { return fixedNow }
	store := memory.New(memory.WithClock(clock))
	views := cache.NewLRUCache[[]core.Transaction](8, time.Minute)
	st := state.New(store, state.WithClock(clock), state.WithViewCache(views))
	ledger := services.NewLedgerService(store, st, guard.New(), services.WithClock(clock))
	srv := NewServer(":0", ledger, st,
		WithLogger(applog.New(applog.Config{Output: io.Discard})),
		WithClock(clock),
		WithCacheStats(views.Stats))
	t.Cleanup(func() { srv.limiter.Stop() })

	expectStatus(t, do(t, srv, http.MethodPost, "/api/cash", `{"amount": "100", "paymentType": "Cash"}`), http.StatusCreated)
	for i := 0; i < 3; i++ {
		expectStatus(t, do(t, srv, http.MethodGet, "/api/cash?dateRange=today", ""), http.StatusOK)
	}
	if st := views.Stats(); st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 2 and 1", st.Hits, st.Misses)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		expectStatus(t, rr, http.StatusOK)
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing request id", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s: missing security headers", path)
		}
	}

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "http_requests_total 2") {
		t.Fatalf("expected two traced requests, got:\n%s", rr.Body.String())
	}
}

func TestCashFlow(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/cash", `{"amount": 1500, "paymentType": "mpesa", "description": "sale"}`)
	expectStatus(t, rr, http.StatusCreated)
	in := decode[core.Transaction](t, rr)
	if in.Data.PaymentType != core.PaymentMPesa || !in.Data.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("unexpected cash in %+v", in.Data)
	}

	rr = do(t, srv, http.MethodPost, "/api/cash/out", "amount=200.50&paymentType=Cash&notes=transport")
	expectStatus(t, rr, http.StatusCreated)
	out := decode[core.Transaction](t, rr)
	if !out.Data.Amount.Equal(decimal.RequireFromString("-200.5")) {
		t.Fatalf("cash out must be negative, got %s", out.Data.Amount)
	}

	rr = do(t, srv, http.MethodGet, "/api/cash", "")
	expectStatus(t, rr, http.StatusOK)
	view := decode[cashView](t, rr)
	if !view.Data.Balance.Equal(decimal.RequireFromString("1299.5")) {
		t.Fatalf("balance %s, want 1299.5", view.Data.Balance)
	}
	if len(view.Data.Transactions) != 2 || view.Data.Summary.Count != 2 {
		t.Fatalf("expected 2 transactions, got %+v", view.Data)
	}

	rr = do(t, srv, http.MethodGet, "/api/cash?transactionType=expense", "")
	expectStatus(t, rr, http.StatusOK)
	view = decode[cashView](t, rr)
	if len(view.Data.Transactions) != 1 || !view.Data.Summary.TotalExpense.Equal(decimal.RequireFromString("200.5")) {
		t.Fatalf("expense view wrong: %+v", view.Data.Summary)
	}
	if !view.Data.Balance.Equal(decimal.RequireFromString("1299.5")) {
		t.Fatalf("balance must ignore the filter, got %s", view.Data.Balance)
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
		field  string
	}{
		{"zero amount", http.MethodPost, "/api/cash", `{"amount": "0"}`, http.StatusUnprocessableEntity, CodeValidation, "amount"},
		{"unknown payment type", http.MethodPost, "/api/cash", `{"amount": "10", "paymentType": "cheque"}`, http.StatusUnprocessableEntity, CodeValidation, "paymentType"},
		{"bad sort", http.MethodGet, "/api/cash?sort=random", "", http.StatusUnprocessableEntity, CodeValidation, "sort"},
		{"bad product sort", http.MethodGet, "/api/products?sort=price", "", http.StatusUnprocessableEntity, CodeValidation, "sort"},
		{"bad movement type", http.MethodPost, "/api/stock-movements", `{"type": "SIDEWAYS"}`, http.StatusUnprocessableEntity, CodeValidation, "type"},
		{"bad debt status", http.MethodGet, "/api/debts?status=late", "", http.StatusUnprocessableEntity, CodeValidation, "status"},
		{"malformed json", http.MethodPost, "/api/debts", `{"name": `, http.StatusBadRequest, CodeBadRequest, ""},
		{"unknown product", http.MethodGet, "/api/products/missing", "", http.StatusNotFound, CodeNotFound, ""},
		{"unknown debt", http.MethodDelete, "/api/debts/missing", "", http.StatusNotFound, CodeNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			expectStatus(t, rr, tt.status)
			resp := decode[json.RawMessage](t, rr)
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Fatalf("error body %+v, want code %s", resp.Error, tt.code)
			}
			if tt.field != "" && resp.Error.Field != tt.field {
				t.Fatalf("field %q, want %q", resp.Error.Field, tt.field)
			}
			if resp.Message == "" {
				t.Fatalf("expected a message")
			}
		})
	}
}

func TestStockOutNeedsConfirmation(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/products", `{"name": "Sugar", "unit": "kg", "initialQuantity": 10}`)
	expectStatus(t, rr, http.StatusCreated)
	product := decode[productView](t, rr).Data
	if product.Level != "HighStock" && product.Level != "InStock" {
		t.Fatalf("unexpected level %q", product.Level)
	}

	body := `{"type": "OUT", "productId": "` + product.ID + `", "quantity": 6, "description": "spoiled"}`
	rr = do(t, srv, http.MethodPost, "/api/stock-movements", body)
	expectStatus(t, rr, http.StatusConflict)
	resp := decode[json.RawMessage](t, rr)
	if resp.Error == nil || resp.Error.Code != CodeConfirmationRequired || len(resp.Error.Warnings) == 0 {
		t.Fatalf("expected confirmation warnings, got %+v", resp.Error)
	}

	confirmed := `{"type": "OUT", "productId": "` + product.ID + `", "quantity": 6, "description": "spoiled", "confirmed": true}`
	rr = do(t, srv, http.MethodPost, "/api/stock-movements", confirmed)
	expectStatus(t, rr, http.StatusCreated)
	res := decode[services.StockResult](t, rr).Data
	if res.Product.Quantity != 4 {
		t.Fatalf("expected 4 left, got %d", res.Product.Quantity)
	}

	rr = do(t, srv, http.MethodPost, "/api/stock-movements", `{"type": "OUT", "productId": "`+product.ID+`", "quantity": 9, "description": "sold", "confirmed": true}`)
	expectStatus(t, rr, http.StatusUnprocessableEntity)

	rr = do(t, srv, http.MethodGet, "/api/products/"+product.ID, "")
	expectStatus(t, rr, http.StatusOK)
	details := decode[productDetails](t, rr).Data
	if details.Product.Quantity != 4 || len(details.Movements) != 1 || details.Totals.TotalOut != 6 {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestStockInCreatesProductFromForm(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/stock-movements",
		"type=in&quantity=5&description=delivery&newProduct.name=Rice&newProduct.unit=kg&newProduct.initialQuantity=20")
	expectStatus(t, rr, http.StatusCreated)
	res := decode[services.StockResult](t, rr).Data
	if res.Product.Name != "Rice" || res.Product.Quantity != 25 {
		t.Fatalf("unexpected product %+v", res.Product)
	}

	rr = do(t, srv, http.MethodGet, "/api/products?search=ric&sort=quantity", "")
	expectStatus(t, rr, http.StatusOK)
	if list := decode[[]productView](t, rr).Data; len(list) != 1 || list[0].ID != res.Product.ID {
		t.Fatalf("search did not find the new product: %+v", list)
	}

	rr = do(t, srv, http.MethodPatch, "/api/products/"+res.Product.ID, `{"name": "Basmati"}`)
	expectStatus(t, rr, http.StatusOK)
	if p := decode[productView](t, rr).Data; p.Name != "Basmati" || p.Unit != "kg" {
		t.Fatalf("patch result %+v", p)
	}

	rr = do(t, srv, http.MethodDelete, "/api/products/"+res.Product.ID, "")
	expectStatus(t, rr, http.StatusOK)
	rr = do(t, srv, http.MethodDelete, "/api/products/"+res.Product.ID, "")
	expectStatus(t, rr, http.StatusNotFound)
}

func TestExchanges(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/exchanges/quote", `{"amount": "15000", "rate": "150", "direction": "KSH_TO_USD"}`)
	expectStatus(t, rr, http.StatusOK)
	q := decode[services.Quote](t, rr).Data
	if !q.Exchange.USD.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("quote usd %s, want 100", q.Exchange.USD)
	}

	rr = do(t, srv, http.MethodPost, "/api/exchanges", `{"amount": "900", "rate": "150", "direction": "KSH_TO_USD"}`)
	expectStatus(t, rr, http.StatusUnprocessableEntity)

	rr = do(t, srv, http.MethodPost, "/api/exchanges", `{"amount": "15000", "rate": "150", "direction": "KSH_TO_USD"}`)
	expectStatus(t, rr, http.StatusCreated)

	rr = do(t, srv, http.MethodGet, "/api/exchanges", "")
	expectStatus(t, rr, http.StatusOK)
	list := decode[exchangeList](t, rr).Data
	if len(list.Exchanges) != 1 || !list.TotalKSH.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("unexpected exchange list %+v", list)
	}
}

func TestDebtLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/debts", "name=Wanjiru&phone=0712000000&amount=500&description=flour")
	expectStatus(t, rr, http.StatusCreated)
	debt := decode[core.Debt](t, rr).Data

	rr = do(t, srv, http.MethodGet, "/api/debts?status=pending", "")
	expectStatus(t, rr, http.StatusOK)
	if list := decode[debtList](t, rr).Data; len(list.Debts) != 1 || !list.PendingTotal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected pending list %+v", list)
	}

	rr = do(t, srv, http.MethodPost, "/api/debts/"+debt.ID+"/paid", "")
	expectStatus(t, rr, http.StatusOK)
	if paid := decode[core.Debt](t, rr).Data; paid.Status != core.DebtPaid {
		t.Fatalf("expected paid, got %q", paid.Status)
	}

	rr = do(t, srv, http.MethodPost, "/api/debts/"+debt.ID+"/paid", "")
	expectStatus(t, rr, http.StatusConflict)
	if resp := decode[json.RawMessage](t, rr); resp.Error.Code != CodeAlreadyPaid {
		t.Fatalf("expected already_paid, got %+v", resp.Error)
	}

	rr = do(t, srv, http.MethodGet, "/api/debts?status=pending", "")
	if list := decode[debtList](t, rr).Data; len(list.Debts) != 0 || !list.PendingTotal.IsZero() {
		t.Fatalf("expected no pending debts, got %+v", list)
	}
}

func TestExportTransactions(t *testing.T) {
	srv := newTestServer(t)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/cash", `{"amount": "75", "paymentType": "card"}`), http.StatusCreated)

	rr := do(t, srv, http.MethodGet, "/api/transactions/export?paymentType=card", "")
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "duka-transactions-20260304.csv") {
		t.Fatalf("content disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "id,") || !strings.HasSuffix(lines[1], ",75.00") {
		t.Fatalf("unexpected csv:\n%s", rr.Body.String())
	}
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/cash", `{"amount": "300", "paymentType": "cash"}`), http.StatusCreated)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/products", `{"name": "Salt", "unit": "pkt", "initialQuantity": 0}`), http.StatusCreated)

	rr := do(t, srv, http.MethodGet, "/api/dashboard", "")
	expectStatus(t, rr, http.StatusOK)
	var resp apiResponse[map[string]json.RawMessage]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"today", "cash", "netChange", "balance", "lowStock", "pendingDebts"} {
		if _, ok := resp.Data[key]; !ok {
			t.Fatalf("dashboard missing %q: %s", key, rr.Body.String())
		}
	}
	if string(resp.Data["balance"]) != "300" {
		t.Fatalf("balance %s, want 300", resp.Data["balance"])
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(2))

	for i := 0; i < 2; i++ {
		expectStatus(t, do(t, srv, http.MethodPost, "/api/cash", `{"amount": "1", "paymentType": "cash"}`), http.StatusCreated)
	}
	rr := do(t, srv, http.MethodPost, "/api/cash", `{"amount": "1", "paymentType": "cash"}`)
	expectStatus(t, rr, http.StatusTooManyRequests)
	if resp := decode[json.RawMessage](t, rr); resp.Error.Code != CodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", resp.Error)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	// Reads are never throttled.
	expectStatus(t, do(t, srv, http.MethodGet, "/api/cash", ""), http.StatusOK)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodPut, "/api/cash", `{"amount": "1"}`)
	expectStatus(t, rr, http.StatusMethodNotAllowed)
}
