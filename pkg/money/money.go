// Package money provides the fixed-point amount type used by the fee ledger.
//
// Amounts are exact decimals with two fractional digits. Parsed input must
// already fit that scale; only arithmetic results are rounded.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

var ErrInvalidMoney = errors.New("invalid_money")

var Zero = Money{}

// Money is an immutable decimal amount. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

func New(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// FromInt returns a whole-unit amount.
func FromInt(v int64) Money {
	return New(decimal.NewFromInt(v))
}

// FromMinor returns an amount from minor units (cents, paise).
func FromMinor(v int64) Money {
	return New(decimal.New(v, -Scale))
}

func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty", ErrInvalidMoney)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	if !d.Equal(d.Truncate(Scale)) {
		return Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidMoney, s, Scale)
	}
	return New(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return New(m.d.Add(o.d)) }
func (m Money) Sub(o Money) Money { return New(m.d.Sub(o.d)) }
func (m Money) Neg() Money        { return New(m.d.Neg()) }

func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) GreaterThan(o Money) bool {
	return m.d.GreaterThan(o.d)
}

func (m Money) LessThan(o Money) bool {
	return m.d.LessThan(o.d)
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.d)
	}
	return New(total)
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*m = Zero
		return nil
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer; amounts are stored as fixed decimal text.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(value any) error {
	if value == nil {
		*m = Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMoney, err)
	}
	*m = New(d)
	return nil
}

// GormDataType pins the column type for AutoMigrate.
func (Money) GormDataType() string {
	return "decimal(18,2)"
}
