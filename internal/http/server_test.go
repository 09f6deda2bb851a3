package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"pocketmoney/internal/core"
	"pocketmoney/internal/ledger"
)

type memStore struct {
	nextID int64
	txs    map[int64]core.Transaction
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, txs: make(map[int64]core.Transaction)}
}

func (m *memStore) Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = m.nextID
	m.nextID++
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	m.txs[tx.ID] = tx
	return tx, nil
}

func (m *memStore) Update(ctx context.Context, id int64, account core.Account, amount core.Money, reason string) error {
	existing, ok := m.txs[id]
	if !ok {
		return core.ErrNotFound
	}
	existing.Account = account
	existing.Amount = amount
	existing.Reason = reason
	m.txs[id] = existing
	return nil
}

func (m *memStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.txs[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.txs, id)
	return nil
}

func (m *memStore) Get(ctx context.Context, id int64) (core.Transaction, error) {
	tx, ok := m.txs[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (m *memStore) Balance(ctx context.Context, account core.Account) (core.Money, error) {
	var total int64
	for _, tx := range m.txs {
		if tx.Account == account {
			total += tx.Amount.Cents
		}
	}
	return core.Money{Cents: total}, nil
}

func (m *memStore) Balances(ctx context.Context) (map[core.Account]core.Money, error) {
	out := make(map[core.Account]core.Money)
	for _, a := range core.Accounts() {
		b, _ := m.Balance(ctx, a)
		out[a] = b
	}
	return out, nil
}

func (m *memStore) list(account core.Account, all bool, limit int) []core.Transaction {
	var txs []core.Transaction
	for _, tx := range m.txs {
		if all || tx.Account == account {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs
}

func (m *memStore) ListTransactions(ctx context.Context, account core.Account, limit int) ([]core.Transaction, error) {
	return m.list(account, false, limit), nil
}

func (m *memStore) ListRecent(ctx context.Context, limit int) ([]core.Transaction, error) {
	return m.list("", true, limit), nil
}

func newTestServer(t *testing.T, secret string) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	svc := ledger.NewService(store, nil, ledger.NewGate(secret))
	srv := NewServer(":0", svc)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, store
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateTransactionSuccess(t *testing.T) {
	srv, store := newTestServer(t, "")

	rec := postForm(srv, "/transactions", url.Values{
		"account":   {"hana"},
		"amount":    {"12,50"},
		"direction": {"debit"},
		"reason":    {"cinema"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "ledger:changed") {
		t.Fatalf("HX-Trigger = %q, want ledger:changed", rec.Header().Get("HX-Trigger"))
	}
	tx, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("stored transaction: %v", err)
	}
	if tx.Amount.Cents != -1250 {
		t.Fatalf("amount = %d, want -1250", tx.Amount.Cents)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"missing account", url.Values{"amount": {"5"}}, http.StatusUnprocessableEntity},
		{"missing amount", url.Values{"account": {"hana"}}, http.StatusUnprocessableEntity},
		{"unknown account", url.Values{"account": {"dana"}, "amount": {"5"}}, http.StatusUnprocessableEntity},
		{"garbage amount", url.Values{"account": {"hana"}, "amount": {"lots"}}, http.StatusUnprocessableEntity},
		{"negative with direction", url.Values{"account": {"hana"}, "amount": {"-5"}, "direction": {"debit"}}, http.StatusUnprocessableEntity},
		{"overflowing amount", url.Values{"account": {"hana"}, "amount": {"92233720368547758.99"}}, http.StatusUnprocessableEntity},
		{"overlong reason", url.Values{"account": {"hana"}, "amount": {"5"}, "direction": {"credit"}, "reason": {strings.Repeat("x", 201)}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t, "")
			rec := postForm(srv, "/transactions", tt.form)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.want, rec.Body.String())
			}
			if len(store.txs) != 0 {
				t.Fatalf("rejected request stored %d transactions", len(store.txs))
			}
		})
	}
}

func TestCreateTransactionMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := get(srv, "/transactions")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "POST" {
		t.Fatalf("Allow = %q, want POST", allow)
	}
}

func TestCreateTransactionRequiresSecret(t *testing.T) {
	srv, store := newTestServer(t, "hunter2")

	rec := postForm(srv, "/transactions", url.Values{
		"account": {"hana"}, "amount": {"5"}, "direction": {"credit"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without secret = %d, want 401", rec.Code)
	}

	rec = postForm(srv, "/transactions", url.Values{
		"account": {"hana"}, "amount": {"5"}, "direction": {"credit"}, "secret": {"hunter2"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status with secret = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if len(store.txs) != 1 {
		t.Fatalf("stored %d transactions, want 1", len(store.txs))
	}
}

func TestUpdateTransaction(t *testing.T) {
	srv, store := newTestServer(t, "")
	_, _ = store.Insert(context.Background(), core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: -500}})

	rec := postForm(srv, "/transactions/update", url.Values{
		"id": {"1"}, "account": {"nour"}, "amount": {"7,00"}, "direction": {"credit"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	tx, _ := store.Get(context.Background(), 1)
	if tx.Account != core.AccountNour || tx.Amount.Cents != 700 {
		t.Fatalf("updated tx = %+v", tx)
	}
}

func TestUpdateTransactionBadID(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := postForm(srv, "/transactions/update", url.Values{
		"id": {"abc"}, "account": {"hana"}, "amount": {"5"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateTransactionNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := postForm(srv, "/transactions/update", url.Values{
		"id": {"99"}, "account": {"hana"}, "amount": {"5"}, "direction": {"credit"},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (body %q)", rec.Code, rec.Body.String())
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv, store := newTestServer(t, "")
	_, _ = store.Insert(context.Background(), core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: -500}})

	rec := postForm(srv, "/transactions/delete", url.Values{"id": {"1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if len(store.txs) != 0 {
		t.Fatalf("transaction still present after delete")
	}

	rec = postForm(srv, "/transactions/delete", url.Values{"id": {"1"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestStatementPage(t *testing.T) {
	srv, store := newTestServer(t, "")
	_, _ = store.Insert(context.Background(), core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: 2000}, Reason: "allowance"})

	rec := get(srv, "/statement/hana")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "€20,00") {
		t.Fatalf("statement body missing balance: %q", body)
	}
	if !strings.Contains(body, "allowance") {
		t.Fatalf("statement body missing reason: %q", body)
	}
}

func TestStatementUnknownAccount(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := get(srv, "/statement/dana")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminPage(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := get(srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "New transaction") {
		t.Fatalf("admin page missing form")
	}
}

func TestAdminUnknownPathIs404(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := get(srv, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBalancesPartial(t *testing.T) {
	srv, store := newTestServer(t, "")
	_, _ = store.Insert(context.Background(), core.Transaction{Account: core.AccountNour, Amount: core.Money{Cents: -750}})

	rec := get(srv, "/ui/balances")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "-€7,50") {
		t.Fatalf("balances partial missing negative balance: %q", body)
	}
	if !strings.Contains(body, "hana") || !strings.Contains(body, "nour") {
		t.Fatalf("balances partial missing an account: %q", body)
	}
}

func TestTransactionsPartialFiltersByAccount(t *testing.T) {
	srv, store := newTestServer(t, "")
	_, _ = store.Insert(context.Background(), core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: 100}, Reason: "hana only"})
	_, _ = store.Insert(context.Background(), core.Transaction{Account: core.AccountNour, Amount: core.Money{Cents: 100}, Reason: "nour only"})

	rec := get(srv, "/ui/transactions?account=hana")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "hana only") || strings.Contains(body, "nour only") {
		t.Fatalf("filtered partial wrong: %q", body)
	}
}

func TestTransactionsPartialRendersEditControls(t *testing.T) {
	srv, store := newTestServer(t, "")
	_, _ = store.Insert(context.Background(), core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: -500}, Reason: "sweets"})

	rec := get(srv, "/ui/transactions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `hx-post="/transactions/update"`) {
		t.Fatalf("admin list missing inline edit form: %q", body)
	}
	if !strings.Contains(body, `value="-5.00"`) {
		t.Fatalf("edit form missing raw signed amount: %q", body)
	}
	if !strings.Contains(body, `hx-post="/transactions/delete"`) {
		t.Fatalf("admin list missing delete form: %q", body)
	}

	// Statement-style filtered lists stay read-only
	rec = get(srv, "/ui/transactions?account=hana")
	if strings.Contains(rec.Body.String(), "/transactions/update") {
		t.Fatalf("filtered list should not render edit controls: %q", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := get(srv, path); rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := get(srv, "/")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options header")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("missing Content-Security-Policy header")
	}
}

func TestRateLimiterBlocksBursts(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d blocked before the limit", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request 61 should be blocked")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients must not be affected")
	}
}
