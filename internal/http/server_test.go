package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetbook/internal/auth"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/services"
	"budgetbook/internal/store"
	"budgetbook/internal/store/memory"
)

const testSecret = "test-secret"

type testServer struct {
	srv   *Server
	mem   *memory.Store
	token string
}

func newTestServer(t *testing.T, st store.Ledger, opts Options) *testServer {
	t.Helper()
	mem, _ := st.(*memory.Store)
	logger := log.New(log.Config{Output: io.Discard})
	svc := services.NewLedgerService(st, auth.ContextIdentity{}, services.Options{Logger: logger})
	opts.JWTSecret = testSecret
	opts.Logger = logger
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	token, err := auth.IssueToken(testSecret, "u1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return &testServer{srv: srv, mem: mem, token: token}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type viewBody struct {
	Label        string             `json:"label"`
	Version      uint64             `json:"version"`
	Categories   []string           `json:"categories"`
	Transactions []core.Transaction `json:"transactions"`
	Summary      struct {
		Income  string `json:"income"`
		Expense string `json:"expense"`
		Balance string `json:"balance"`
	} `json:"summary"`
	Budget struct {
		Amount string `json:"amount"`
		IsSet  bool   `json:"is_set"`
		Tier   int    `json:"tier"`
	} `json:"budget"`
	Allowance struct {
		Ratio      float64 `json:"ratio"`
		Remaining  string  `json:"remaining"`
		OverBudget bool    `json:"over_budget"`
	} `json:"allowance"`
}

type mutationBody struct {
	Transaction *core.Transaction `json:"transaction"`
	Category    *core.Category    `json:"category"`
	Budget      *core.Budget      `json:"budget"`
	Deleted     string            `json:"deleted"`
	View        *viewBody         `json:"view"`
	Error       string            `json:"error"`
	Code        string            `json:"code"`
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
	if rec := ts.do(t, http.MethodGet, "/metrics", ""); !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("metrics body = %q", rec.Body.String())
	}
}

type unreachableStore struct{ store.Ledger }

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStoreOutage(t *testing.T) {
	ts := newTestServer(t, unreachableStore{memory.New()}, Options{})
	rec := ts.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestLedgerRequiresIdentity(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	ts.token = ""
	rec := ts.do(t, http.MethodGet, "/api/ledger", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	ts.token = "not-a-jwt"
	rec = ts.do(t, http.MethodGet, "/api/ledger", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Code != CodeNotAuthenticated {
		t.Errorf("code = %q", body.Code)
	}
}

func TestEmptyLedgerView(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	rec := ts.do(t, http.MethodGet, "/api/ledger?year=2025", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decode[viewBody](t, rec)
	if view.Label != "2025 / All months" {
		t.Errorf("label = %q", view.Label)
	}
	if len(view.Categories) != len(core.DefaultCategories) {
		t.Errorf("categories = %v, want defaults", view.Categories)
	}
	if view.Budget.IsSet || view.Allowance.Ratio != 0 {
		t.Errorf("empty ledger has budget %+v allowance %+v", view.Budget, view.Allowance)
	}
	if view.Summary.Balance != "0" {
		t.Errorf("balance = %q, want 0", view.Summary.Balance)
	}
}

func TestAddTransactionReturnsReloadedView(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	rec := ts.do(t, http.MethodPost, "/api/transactions?year=2025&month=3",
		`{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": "1,500", "note": "market"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[mutationBody](t, rec)
	if body.Transaction == nil || body.Transaction.ID == "" {
		t.Fatalf("transaction missing: %s", rec.Body.String())
	}
	if body.View == nil || len(body.View.Transactions) != 1 {
		t.Fatalf("view missing the new transaction: %s", rec.Body.String())
	}
	if body.View.Summary.Expense != "1500" {
		t.Errorf("expense = %q, want 1500", body.View.Summary.Expense)
	}

	rec = ts.do(t, http.MethodPost, "/api/transactions?year=2025&month=3",
		`{"date": "2025-03-06", "kind": "income", "category": "Salary", "amount": 2000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("numeric amount: status = %d: %s", rec.Code, rec.Body.String())
	}
	body = decode[mutationBody](t, rec)
	if body.View.Summary.Balance != "500" {
		t.Errorf("balance = %q, want 500", body.View.Summary.Balance)
	}
}

func TestAddTransactionValidation(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	tests := []struct {
		name  string
		body  string
		want  int
		field string
	}{
		{"negative amount", `{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": "-1"}`, http.StatusUnprocessableEntity, "amount"},
		{"empty amount", `{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": ""}`, http.StatusUnprocessableEntity, "amount"},
		{"huge exponent text", `{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": "1e9999999"}`, http.StatusUnprocessableEntity, "amount"},
		{"huge exponent number", `{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": 1e999999999}`, http.StatusUnprocessableEntity, "amount"},
		{"bad date", `{"date": "05/03/2025", "kind": "expense", "category": "Food", "amount": "1"}`, http.StatusUnprocessableEntity, "date"},
		{"unknown kind", `{"date": "2025-03-05", "kind": "transfer", "category": "Food", "amount": "1"}`, http.StatusUnprocessableEntity, "kind"},
		{"unknown category", `{"date": "2025-03-05", "kind": "expense", "category": "Yachts", "amount": "1"}`, http.StatusUnprocessableEntity, "category"},
		{"malformed json", `{"date": `, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if body := decode[errorBody](t, rec); body.Field != tt.field {
				t.Errorf("field = %q, want %q", body.Field, tt.field)
			}
		})
	}

	view := decode[viewBody](t, ts.do(t, http.MethodGet, "/api/ledger", ""))
	if len(view.Transactions) != 0 {
		t.Errorf("rejected input was stored: %v", view.Transactions)
	}
}

func TestDeleteTransaction(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	rec := ts.do(t, http.MethodPost, "/api/transactions",
		`{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": "10"}`)
	created := decode[mutationBody](t, rec)

	rec = ts.do(t, http.MethodDelete, "/api/transactions/"+created.Transaction.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[mutationBody](t, rec)
	if body.Deleted != created.Transaction.ID || len(body.View.Transactions) != 0 {
		t.Errorf("delete response = %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodDelete, "/api/transactions/"+created.Transaction.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", rec.Code)
	}
}

func TestAddCategory(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	rec := ts.do(t, http.MethodPost, "/api/categories", `{"name": "  Travel "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[mutationBody](t, rec)
	if body.Category.Name != "Travel" {
		t.Errorf("name = %q", body.Category.Name)
	}
	if len(body.View.Categories) != 1 || body.View.Categories[0] != "Travel" {
		t.Errorf("categories = %v, want only Travel", body.View.Categories)
	}

	rec = ts.do(t, http.MethodPost, "/api/categories", `{"name": "   "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name: status = %d", rec.Code)
	}
}

func TestSaveBudgetResolvesForFilter(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})

	ts.do(t, http.MethodPost, "/api/transactions",
		`{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": "1500"}`)

	rec := ts.do(t, http.MethodPut, "/api/budget?year=2025&month=3", `{"year": 2025, "month": null, "amount": "1,000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[mutationBody](t, rec)
	first := body.Budget.ID
	if body.View.Budget.Tier != 2 || !body.View.Budget.IsSet {
		t.Errorf("budget = %+v, want year tier", body.View.Budget)
	}
	if body.View.Allowance.Ratio != 1 || !body.View.Allowance.OverBudget || body.View.Allowance.Remaining != "-500" {
		t.Errorf("allowance = %+v", body.View.Allowance)
	}

	rec = ts.do(t, http.MethodPut, "/api/budget?year=2025&month=3", `{"year": 2025, "amount": 3000}`)
	body = decode[mutationBody](t, rec)
	if body.Budget.ID != first {
		t.Errorf("upsert created a second budget: %s vs %s", body.Budget.ID, first)
	}
	if body.View.Allowance.Ratio != 0.5 {
		t.Errorf("ratio = %v, want 0.5", body.View.Allowance.Ratio)
	}

	rec = ts.do(t, http.MethodPut, "/api/budget", `{"month": 13, "amount": "1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month: status = %d", rec.Code)
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})
	rec := ts.do(t, http.MethodGet, "/api/transactions", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rec := ts.do(t, http.MethodPost, "/api/categories", `{"name": "c"}`); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	rec := ts.do(t, http.MethodPost, "/api/categories", `{"name": "c"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Code != CodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/ledger", ""); rec.Code != http.StatusOK {
		t.Errorf("reads must not be limited: status = %d", rec.Code)
	}
}

// listFailingStore fails every reload after it is armed.
type listFailingStore struct {
	store.Ledger
	armed bool
}

func (s *listFailingStore) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	if s.armed {
		return nil, errors.New("timeout")
	}
	return s.Ledger.ListCategories(ctx, owner)
}

func TestMutationSavedButReloadFailed(t *testing.T) {
	st := &listFailingStore{Ledger: memory.New()}
	ts := newTestServer(t, st, Options{})

	if rec := ts.do(t, http.MethodGet, "/api/ledger", ""); rec.Code != http.StatusOK {
		t.Fatalf("warm-up status = %d", rec.Code)
	}
	st.armed = true

	rec := ts.do(t, http.MethodPost, "/api/transactions",
		`{"date": "2025-03-05", "kind": "expense", "category": "Food", "amount": "10"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
	body := decode[mutationBody](t, rec)
	if body.Code != CodeReloadFailed || body.Transaction == nil || body.View != nil {
		t.Errorf("body = %s", rec.Body.String())
	}

	st.armed = false
	view := decode[viewBody](t, ts.do(t, http.MethodGet, "/api/ledger", ""))
	if len(view.Transactions) != 1 {
		t.Errorf("committed transaction missing after recovery: %+v", view.Transactions)
	}
}

func TestForcedReload(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})
	first := decode[viewBody](t, ts.do(t, http.MethodGet, "/api/ledger", ""))

	rec := ts.do(t, http.MethodPost, "/api/ledger/reload?year=all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[viewBody](t, rec); got.Version <= first.Version {
		t.Errorf("version %d did not advance past %d", got.Version, first.Version)
	}
}

func TestOptions(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts := newTestServer(t, memory.New(), Options{Now: func() time.Time { return now }})

	body := decode[struct {
		Years         []string    `json:"years"`
		Months        []string    `json:"months"`
		DefaultFilter core.Filter `json:"default_filter"`
	}](t, ts.do(t, http.MethodGet, "/api/options", ""))

	if len(body.Years) != 12 || body.Years[0] != "all" || body.Years[1] != "2020" {
		t.Errorf("years = %v", body.Years)
	}
	if len(body.Months) != 13 {
		t.Errorf("months = %v", body.Months)
	}
	if body.DefaultFilter.Year == nil || *body.DefaultFilter.Year != 2025 || body.DefaultFilter.Month != nil {
		t.Errorf("default filter = %+v", body.DefaultFilter)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t, memory.New(), Options{})
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if !strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("request id = %q", rec.Header().Get("X-Request-ID"))
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
