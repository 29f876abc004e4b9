// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer cents everywhere inside the ledger.
// Decimal input (strings such as "12.34" or JSON numbers with a fraction)
// is normalized to cents at the boundary and never reaches the engine as a
// float.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in minor currency units. Inflows are positive,
// outflows negative.
type Money struct {
	Cents int64
}

// Cents is shorthand for Money{Cents: c}.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// MaxAmountCents bounds a single amount entering the ledger. Balances built
// from such amounts stay far from the int64 limits.
const MaxAmountCents int64 = 1_000_000_000_000_000

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// Validate rejects amounts whose magnitude exceeds MaxAmountCents.
func (m Money) Validate() error {
	if m.Cents > MaxAmountCents || m.Cents < -MaxAmountCents {
		return ErrAmountOutOfRange
	}
	return nil
}

// CheckedAdd is Add that reports int64 overflow as a validation error
// instead of wrapping.
func (m Money) CheckedAdd(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, ErrAmountOverflow
	}
	return Money{Cents: sum}, nil
}

// CheckedSub is the overflow-checked counterpart of Sub.
func (m Money) CheckedSub(o Money) (Money, error) {
	if o.Cents == math.MinInt64 {
		return Money{}, ErrAmountOverflow
	}
	return m.CheckedAdd(o.Neg())
}

// String formats the amount as a plain decimal, e.g. "-12.34".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

var (
	maxCents = decimal.NewFromInt(MaxAmountCents)
	minCents = decimal.NewFromInt(-MaxAmountCents)
)

// ParseAmount converts a decimal string to cents.
//
// It accepts an optional sign and both dot (12.34) and comma (12,34)
// decimal separators. Fractions beyond two digits are rounded half away
// from zero, matching how amounts are shown to users.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("-12,34") -> -1234
//	ParseAmount("12.345") -> 1235
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, ErrAmountOutOfRange
	}
	return Money{Cents: cents.IntPart()}, nil
}

// MarshalJSON encodes the amount as integer cents.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.Cents, 10)), nil
}

// UnmarshalJSON accepts integer cents (1234) or a decimal string in major
// units ("12.34"). A JSON number with a fractional part is rejected: it is
// ambiguous whether it meant cents or major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrInvalidAmount
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	cents, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	if err := Cents(cents).Validate(); err != nil {
		return err
	}
	m.Cents = cents
	return nil
}
