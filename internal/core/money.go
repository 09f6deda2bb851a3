// Package core holds the ledger domain types and money parsing.
//
// Amounts are stored as signed cents (int64) so balances stay exact under
// summation; floats never enter the data model.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Direction is the presentation-level sign flag: credit keeps the magnitude
// positive, debit negates it.
type Direction string

// ParseSignedCents converts a decimal string to signed cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional leading sign, and performs half-up rounding on the third decimal
// place. Zero is a valid amount.
//
// Examples:
//
//	ParseSignedCents("12.50")  -> 1250, nil
//	ParseSignedCents("-3,25")  -> -325, nil
//	ParseSignedCents("12.346") -> 1235, nil (rounds up)
func ParseSignedCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" || s == "." {
		return 0, ErrInvalidAmount
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow of iv*100 plus up to 99 fractional cents
	if iv > (math.MaxInt64-99)/100 {
		return 0, ErrInvalidAmount
	}

	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// ParseAmount normalizes the two accepted amount encodings into one signed
// Money value: either a raw signed decimal (direction empty), or an unsigned
// magnitude plus a credit/debit direction. With an explicit direction the
// magnitude must be >= 0; debit negates it.
func ParseAmount(amount, direction string) (Money, error) {
	if strings.TrimSpace(amount) == "" {
		return Money{}, ErrMissingField
	}
	cents, err := ParseSignedCents(amount)
	if err != nil {
		return Money{}, err
	}
	switch Direction(strings.TrimSpace(direction)) {
	case "":
		return Money{Cents: cents}, nil
	case DirectionCredit:
		if cents < 0 {
			return Money{}, ErrInvalidAmount
		}
		return Money{Cents: cents}, nil
	case DirectionDebit:
		if cents < 0 {
			return Money{}, ErrInvalidAmount
		}
		return Money{Cents: -cents}, nil
	default:
		return Money{}, ErrInvalidAmount
	}
}

// Decimal renders cents as a plain signed decimal string ("-20.00").
func (m Money) Decimal() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + twoDigits(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
