package core

import (
	"errors"
	"time"
)

const (
	AccountHana Account = "hana"
	AccountNour Account = "nour"
)

type (
	// Account is one of the two fixed ledger identifiers. It is a closed
	// enumeration: anything else is rejected at the validation boundary and
	// never reaches storage.
	Account string

	Money struct {
		Cents int64
	}

	// Transaction is the sole persisted entity. ID and CreatedAt are assigned
	// at creation time and never change afterwards.
	Transaction struct {
		ID        int64
		Account   Account
		Amount    Money
		Reason    string
		CreatedAt time.Time
	}
)

var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidAccount   = errors.New("invalid account")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrReasonTooLong    = errors.New("reason too long (max 200 characters)")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("transaction not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Accounts returns the closed enumeration, in display order.
func Accounts() []Account {
	return []Account{AccountHana, AccountNour}
}

func (a Account) Valid() bool {
	switch a {
	case AccountHana, AccountNour:
		return true
	}
	return false
}

func (a Account) String() string {
	return string(a)
}

// ParseAccount validates a raw account value against the enumeration.
func ParseAccount(s string) (Account, error) {
	if s == "" {
		return "", ErrMissingField
	}
	a := Account(s)
	if !a.Valid() {
		return "", ErrInvalidAccount
	}
	return a, nil
}

func (t Transaction) Validate() error {
	if !t.Account.Valid() {
		return ErrInvalidAccount
	}
	if len(t.Reason) > 200 {
		return ErrReasonTooLong
	}
	return nil
}
