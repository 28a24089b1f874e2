package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MinorUnitPlaces is the fixed scale used by Allocate (cents)
	MinorUnitPlaces = 2

	// DivisionPrecision is the number of decimal places kept by non-exact divisions
	DivisionPrecision = 16
)

var (
	// ErrInvalidAmount is returned when an amount cannot be parsed
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrArithmetic is returned for division by zero and invalid allocations
	ErrArithmetic = errors.New("arithmetic error")

	// ErrInvalidArgument is returned when an operation receives an argument outside its domain
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDivisionByZero is returned when dividing by zero
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmetic)
)

func init() {
	decimal.DivisionPrecision = DivisionPrecision
}

// Money is an immutable decimal amount. The zero value is zero.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount
var Zero = Money{}

// New wraps a decimal value
func New(d decimal.Decimal) Money {
	return Money{d: d}
}

// FromInt creates a Money from a whole number of major units
func FromInt(v int64) Money {
	return Money{d: decimal.NewFromInt(v)}
}

// FromCents creates a Money from a number of minor units
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -MinorUnitPlaces)}
}

// Parse creates a Money from its decimal string representation
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustParse is like Parse but panics on error. Use only for literals.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the underlying decimal value
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Add returns m + o
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Sub returns m - o
func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

// Neg returns -m
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Mul scales m by a decimal factor
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{d: m.d.Mul(factor)}
}

// Div divides m by a decimal divisor
func (m Money) Div(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Zero, ErrDivisionByZero
	}
	return Money{d: m.d.Div(divisor)}, nil
}

// Round rounds to the given number of places using round-half-to-even
func (m Money) Round(places int32) Money {
	return Money{d: m.d.RoundBank(places)}
}

// Allocate splits m into count parts at minor-unit scale. The amount is first
// truncated (floored) to whole minor units; the first remainder parts receive
// one extra minor unit so the parts always sum to the truncated amount.
func (m Money) Allocate(count int) ([]Money, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: allocate count must be positive, got %d: %w", ErrArithmetic, count, ErrInvalidArgument)
	}

	total := m.d.Shift(MinorUnitPlaces).Floor().BigInt()
	n := big.NewInt(int64(count))
	// Euclidean division: base is floored and remainder is in [0, count) for negative totals too
	base, rem := new(big.Int).DivMod(total, n, new(big.Int))
	remainder := rem.Int64()

	baseAmount := decimal.NewFromBigInt(base, -MinorUnitPlaces)
	unit := decimal.New(1, -MinorUnitPlaces)
	parts := make([]Money, count)
	for i := range parts {
		if int64(i) < remainder {
			parts[i] = Money{d: baseAmount.Add(unit)}
		} else {
			parts[i] = Money{d: baseAmount}
		}
	}
	return parts, nil
}

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// Equal reports whether m and o have the same decimal value
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// LessThan reports whether m < o
func (m Money) LessThan(o Money) bool {
	return m.d.LessThan(o.d)
}

// GreaterThan reports whether m > o
func (m Money) GreaterThan(o Money) bool {
	return m.d.GreaterThan(o.d)
}

// Abs returns |m|
func (m Money) Abs() Money {
	return Money{d: m.d.Abs()}
}

// Sign returns -1, 0 or +1
func (m Money) Sign() int {
	return m.d.Sign()
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }

// IsWholeMinorUnits reports whether m has no precision beyond a minor unit
func (m Money) IsWholeMinorUnits() bool {
	return m.d.Equal(m.d.Truncate(MinorUnitPlaces))
}

// MinorUnits returns the amount in whole minor units, rounded half-to-even
func (m Money) MinorUnits() int64 {
	return m.d.RoundBank(MinorUnitPlaces).Shift(MinorUnitPlaces).IntPart()
}

// Float64 returns an approximate float for display. Never feed it back into calculations.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String returns the exact decimal representation
func (m Money) String() string {
	return m.d.String()
}

// StringFixed returns the amount rounded half-to-even to places, always showing them
func (m Money) StringFixed(places int32) string {
	return m.d.StringFixedBank(places)
}

// MarshalJSON encodes the amount as a quoted decimal string
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.String() + `"`), nil
}

// UnmarshalJSON accepts quoted decimal strings, bare JSON numbers and null
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Zero
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Min returns the smaller of a and b
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum adds up all amounts
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
