package currency

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/trip-ledger/internal/money"
)

// ErrRateNotFound is returned when no rate is known for a currency pair
var ErrRateNotFound = errors.New("exchange rate not found")

// RateSource supplies the multiplier converting one unit of from into to on a date
type RateSource interface {
	Rate(from, to string, on time.Time) (decimal.Decimal, error)
}

type pair struct {
	from, to string
}

// StaticRates is a RateSource backed by a fixed table. Dates are ignored.
type StaticRates struct {
	rates map[pair]decimal.Decimal
}

// NewStaticRates creates an empty rate table
func NewStaticRates() *StaticRates {
	return &StaticRates{rates: make(map[pair]decimal.Decimal)}
}

// ParseStaticRates parses a table like "USD:EUR=0.92,GBP:EUR=1.17"
func ParseStaticRates(table string) (*StaticRates, error) {
	s := NewStaticRates()
	for _, entry := range strings.Split(table, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		codes, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("parsing rate %q: missing '='", entry)
		}
		from, to, ok := strings.Cut(codes, ":")
		if !ok {
			return nil, fmt.Errorf("parsing rate %q: expected FROM:TO", entry)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("parsing rate %q: %w", entry, err)
		}
		if err := s.Set(from, to, rate); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Set records the rate for a pair
func (s *StaticRates) Set(from, to string, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("rate %s:%s must be positive", from, to)
	}
	s.rates[pair{normalize(from), normalize(to)}] = rate
	return nil
}

// Rate returns the multiplier for from -> to, deriving inverse pairs
func (s *StaticRates) Rate(from, to string, _ time.Time) (decimal.Decimal, error) {
	from, to = normalize(from), normalize(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := s.rates[pair{from, to}]; ok {
		return r, nil
	}
	if r, ok := s.rates[pair{to, from}]; ok {
		return decimal.NewFromInt(1).Div(r), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s -> %s", ErrRateNotFound, from, to)
}

// Convert expresses amount in another currency, rounded to minor units half-to-even
func Convert(src RateSource, amount money.Money, from, to string, on time.Time) (money.Money, error) {
	if normalize(from) == normalize(to) {
		return amount, nil
	}
	rate, err := src.Rate(from, to, on)
	if err != nil {
		return money.Zero, fmt.Errorf("looking up rate: %w", err)
	}
	return amount.Mul(rate).Round(money.MinorUnitPlaces), nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
