// Package ledger implements the transaction mutation API and read queries
// over the Ledger Store. All invariants are enforced here, before anything
// reaches storage: each call either fully applies or fully rejects.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pocketmoney/internal/core"
	"pocketmoney/internal/events"
)

// Store is the Ledger Store contract. Reads are pure; every write is a
// single atomic statement against the backing database.
type Store interface {
	Insert(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id int64, account core.Account, amount core.Money, reason string) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Balance(ctx context.Context, account core.Account) (core.Money, error)
	Balances(ctx context.Context) (map[core.Account]core.Money, error)
	ListTransactions(ctx context.Context, account core.Account, limit int) ([]core.Transaction, error)
	ListRecent(ctx context.Context, limit int) ([]core.Transaction, error)
}

// Publisher emits ledger events after successful writes.
type Publisher interface {
	Publish(ctx context.Context, event *events.LedgerEvent) error
}

// Service validates and applies mutations. Publishing is best-effort: the
// store is the source of truth and a failed publish never fails the request.
type Service struct {
	store     Store
	publisher Publisher
	gate      *Gate
}

// MutationInput carries the raw, untyped fields of a create or update
// request. Amount is either a signed decimal, or an unsigned magnitude
// paired with Direction ("credit"/"debit").
type MutationInput struct {
	Account    string
	Amount     string
	Direction  string
	Reason     string
	Credential string
}

func NewService(store Store, publisher Publisher, gate *Gate) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		gate:      gate,
	}
}

// Create validates the input and persists a new transaction. On success the
// returned record carries the assigned id and timestamp, and the account's
// balance has grown by exactly the signed amount.
func (s *Service) Create(ctx context.Context, in MutationInput) (core.Transaction, error) {
	if err := s.gate.Check(in.Credential); err != nil {
		return core.Transaction{}, err
	}

	account, amount, err := validateFields(in)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		Account: account,
		Amount:  amount,
		Reason:  in.Reason,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.Insert(ctx, tx)
	if err != nil {
		return core.Transaction{}, storeErr(err)
	}

	s.publish(ctx, events.NewLedgerEvent(saved.ID, saved.Account, events.ActionCreated))
	return saved, nil
}

// Update overwrites account, amount and reason of an existing transaction.
// ID and creation time are immutable. When the account changes, the old
// account loses the prior amount's contribution and the new one gains the
// new amount. Concurrent updates to the same id are last-write-wins.
func (s *Service) Update(ctx context.Context, id int64, in MutationInput) (core.Transaction, error) {
	if err := s.gate.Check(in.Credential); err != nil {
		return core.Transaction{}, err
	}

	account, amount, err := validateFields(in)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.Update(ctx, id, account, amount, in.Reason); err != nil {
		return core.Transaction{}, storeErr(err)
	}

	updated, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, storeErr(err)
	}

	s.publish(ctx, events.NewLedgerEvent(id, account, events.ActionUpdated))
	return updated, nil
}

// Delete removes a transaction permanently; its amount leaves the account's
// balance and the id is never reused.
func (s *Service) Delete(ctx context.Context, id int64, credential string) error {
	if err := s.gate.Check(credential); err != nil {
		return err
	}

	// Fetch first so the event can name the affected account.
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return storeErr(err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return storeErr(err)
	}

	s.publish(ctx, events.NewLedgerEvent(id, existing.Account, events.ActionDeleted))
	return nil
}

// Balance returns the on-demand sum for one account.
func (s *Service) Balance(ctx context.Context, account string) (core.Money, error) {
	a, err := core.ParseAccount(account)
	if err != nil {
		return core.Money{}, err
	}
	bal, err := s.store.Balance(ctx, a)
	if err != nil {
		return core.Money{}, storeErr(err)
	}
	return bal, nil
}

// Balances returns every account's balance in one call.
func (s *Service) Balances(ctx context.Context) (map[core.Account]core.Money, error) {
	balances, err := s.store.Balances(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return balances, nil
}

// ListTransactions returns one account's history, most recent first.
func (s *Service) ListTransactions(ctx context.Context, account string, limit int) ([]core.Transaction, error) {
	a, err := core.ParseAccount(account)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, a, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return txs, nil
}

// ListRecent returns the most recent transactions across all accounts.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]core.Transaction, error) {
	txs, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return txs, nil
}

// Gate exposes the write-protection gate, mainly so the presentation layer
// can show or hide the credential field.
func (s *Service) Gate() *Gate {
	return s.gate
}

func validateFields(in MutationInput) (core.Account, core.Money, error) {
	account, err := core.ParseAccount(in.Account)
	if err != nil {
		return "", core.Money{}, err
	}
	amount, err := core.ParseAmount(in.Amount, in.Direction)
	if err != nil {
		return "", core.Money{}, err
	}
	return account, amount, nil
}

func (s *Service) publish(ctx context.Context, event *events.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"error", err,
			"id", event.ID,
			"action", event.Action)
	}
}

// storeErr passes domain errors through and folds everything else into
// ErrStoreUnavailable so callers see a stable failure reason.
func storeErr(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
}
