package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pocketmoney/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustInsert(t *testing.T, repo *SQLiteRepository, tx core.Transaction) core.Transaction {
	t.Helper()
	saved, err := repo.Insert(context.Background(), tx)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return saved
}

func TestBalanceEmptyAccountIsZero(t *testing.T) {
	repo := newTestRepo(t)

	for _, a := range core.Accounts() {
		bal, err := repo.Balance(context.Background(), a)
		if err != nil {
			t.Fatalf("balance(%s): %v", a, err)
		}
		if bal.Cents != 0 {
			t.Errorf("balance(%s) = %d, want 0", a, bal.Cents)
		}
	}
}

func TestInsertAddsToBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	before, _ := repo.Balance(ctx, core.AccountNour)

	saved := mustInsert(t, repo, core.Transaction{
		Account: core.AccountNour,
		Amount:  core.Money{Cents: 1250},
		Reason:  "allowance",
	})
	if saved.ID <= 0 {
		t.Fatalf("expected positive id, got %d", saved.ID)
	}
	if saved.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	after, err := repo.Balance(ctx, core.AccountNour)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if after.Cents != before.Cents+1250 {
		t.Fatalf("balance = %d, want %d", after.Cents, before.Cents+1250)
	}

	// The other account is untouched
	other, _ := repo.Balance(ctx, core.AccountHana)
	if other.Cents != 0 {
		t.Fatalf("hana balance = %d, want 0", other.Cents)
	}
}

func TestDeleteRestoresBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved := mustInsert(t, repo, core.Transaction{
		Account: core.AccountHana,
		Amount:  core.Money{Cents: -2000},
	})

	if err := repo.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	bal, _ := repo.Balance(ctx, core.AccountHana)
	if bal.Cents != 0 {
		t.Fatalf("balance after delete = %d, want 0", bal.Cents)
	}
}

func TestDeleteNotFound(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Delete(context.Background(), 9999); err != core.ErrNotFound {
		t.Fatalf("delete missing id: got %v, want ErrNotFound", err)
	}
}

func TestUpdateMovesBalanceBetweenAccounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved := mustInsert(t, repo, core.Transaction{
		Account: core.AccountHana,
		Amount:  core.Money{Cents: 500},
	})

	if err := repo.Update(ctx, saved.ID, core.AccountNour, core.Money{Cents: 750}, "moved"); err != nil {
		t.Fatalf("update: %v", err)
	}

	hana, _ := repo.Balance(ctx, core.AccountHana)
	nour, _ := repo.Balance(ctx, core.AccountNour)
	if hana.Cents != 0 {
		t.Errorf("hana balance = %d, want 0", hana.Cents)
	}
	if nour.Cents != 750 {
		t.Errorf("nour balance = %d, want 750", nour.Cents)
	}

	// id and created_at are immutable
	got, err := repo.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != saved.ID {
		t.Errorf("id changed: %d -> %d", saved.ID, got.ID)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", saved.CreatedAt, got.CreatedAt)
	}
	if got.Reason != "moved" {
		t.Errorf("reason = %q, want %q", got.Reason, "moved")
	}
}

func TestUpdateNotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Update(context.Background(), 42, core.AccountHana, core.Money{Cents: 1}, "")
	if err != core.ErrNotFound {
		t.Fatalf("update missing id: got %v, want ErrNotFound", err)
	}
}

func TestBalancesMatchesPerAccountCalls(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustInsert(t, repo, core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: 300}})
	mustInsert(t, repo, core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: -100}})
	mustInsert(t, repo, core.Transaction{Account: core.AccountNour, Amount: core.Money{Cents: 1250}})

	all, err := repo.Balances(ctx)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(all) != len(core.Accounts()) {
		t.Fatalf("balances returned %d accounts, want %d", len(all), len(core.Accounts()))
	}
	for _, a := range core.Accounts() {
		single, err := repo.Balance(ctx, a)
		if err != nil {
			t.Fatalf("balance(%s): %v", a, err)
		}
		if all[a] != single {
			t.Errorf("balances[%s] = %d, per-account call = %d", a, all[a].Cents, single.Cents)
		}
	}
	if all[core.AccountHana].Cents != 200 || all[core.AccountNour].Cents != 1250 {
		t.Errorf("balances = %v, want hana=200 nour=1250", all)
	}
}

func TestListOrderingWithTimestampTies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Same instant: the id must break the tie, descending
	instant := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := mustInsert(t, repo, core.Transaction{
		Account: core.AccountNour, Amount: core.Money{Cents: 100}, CreatedAt: instant,
	})
	second := mustInsert(t, repo, core.Transaction{
		Account: core.AccountNour, Amount: core.Money{Cents: 200}, CreatedAt: instant,
	})
	older := mustInsert(t, repo, core.Transaction{
		Account: core.AccountNour, Amount: core.Money{Cents: 300},
		CreatedAt: instant.Add(-time.Hour),
	})

	txs, err := repo.ListTransactions(ctx, core.AccountNour, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("list returned %d rows, want 3", len(txs))
	}
	wantOrder := []int64{second.ID, first.ID, older.ID}
	for i, want := range wantOrder {
		if txs[i].ID != want {
			t.Fatalf("position %d: id = %d, want %d (got order %v)", i, txs[i].ID, want, ids(txs))
		}
	}
}

func TestListTransactionsLimit(t *testing.T) {
	repo := newTestRepo(t)

	for i := 0; i < 5; i++ {
		mustInsert(t, repo, core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: int64(i)}})
	}

	txs, err := repo.ListTransactions(context.Background(), core.AccountHana, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("list with limit 3 returned %d rows", len(txs))
	}
}

func TestListRecentSpansAccounts(t *testing.T) {
	repo := newTestRepo(t)

	mustInsert(t, repo, core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: 100}})
	mustInsert(t, repo, core.Transaction{Account: core.AccountNour, Amount: core.Money{Cents: 200}})

	txs, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("list recent returned %d rows, want 2", len(txs))
	}
	seen := map[core.Account]bool{}
	for _, tx := range txs {
		seen[tx.Account] = true
	}
	if !seen[core.AccountHana] || !seen[core.AccountNour] {
		t.Fatalf("list recent missing an account: %v", seen)
	}
}

func TestIDsNeverReused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := mustInsert(t, repo, core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: 1}})
	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	second := mustInsert(t, repo, core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: 2}})
	if second.ID <= first.ID {
		t.Fatalf("id %d reused or reordered after deleting id %d", second.ID, first.ID)
	}
}

func TestMirrorQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := mustInsert(t, repo, core.Transaction{Account: core.AccountHana, Amount: core.Money{Cents: 100}})
	b := mustInsert(t, repo, core.Transaction{Account: core.AccountNour, Amount: core.Money{Cents: 200}})

	pending, err := repo.PendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("pending mirror: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != a.ID || pending[1].ID != b.ID {
		t.Fatalf("pending = %v, want oldest-first [%d %d]", ids(pending), a.ID, b.ID)
	}

	if err := repo.MarkMirrored(ctx, a.ID); err != nil {
		t.Fatalf("mark mirrored: %v", err)
	}
	if err := repo.MarkMirrorError(ctx, b.ID); err != nil {
		t.Fatalf("mark mirror error: %v", err)
	}

	pending, err = repo.PendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("pending mirror: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after marking = %v, want empty", ids(pending))
	}
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.Get(context.Background(), 123); err != core.ErrNotFound {
		t.Fatalf("get missing id: got %v, want ErrNotFound", err)
	}
}

func ids(txs []core.Transaction) []int64 {
	out := make([]int64, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
