package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Currency is an ISO 4217 currency code supported by the platform.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
)

// IsValid checks if the currency is a supported Currency
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyEUR, CurrencyUSD, CurrencyGBP, CurrencyCHF:
		return true
	}
	return false
}

// String returns the string representation of Currency
func (c Currency) String() string {
	return string(c)
}

// SupportedCurrencies returns all currencies accepted by the platform.
func SupportedCurrencies() []Currency {
	return []Currency{CurrencyEUR, CurrencyUSD, CurrencyGBP, CurrencyCHF}
}

// Money is an immutable amount of a single currency, held in integer minor
// units (cents). Arithmetic returns new values and never mutates the
// receiver; amounts are never negative.
type Money struct {
	amount   int64
	currency Currency
}

// NewMoney builds a Money value from minor units. The amount must be
// non-negative and the currency must be supported.
func NewMoney(amount int64, currency Currency) (Money, error) {
	if amount < 0 {
		return Money{}, fmt.Errorf("amount %d: %w", amount, ErrInvalidAmount)
	}
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("currency %q: %w", currency, ErrUnsupportedCurrency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// Zero returns the zero amount of the given currency.
func Zero(currency Currency) Money {
	return Money{amount: 0, currency: currency}
}

// Amount returns the amount in minor units.
func (m Money) Amount() int64 {
	return m.amount
}

// Currency returns the currency code.
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero checks if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount == 0
}

// Equals checks amount and currency equality.
func (m Money) Equals(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

// Add returns the sum of two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%s + %s: %w", m.currency, other.currency, ErrCurrencyMismatch)
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Multiply scales the amount by a non-negative factor, rounding to the
// nearest minor unit.
func (m Money) Multiply(factor float64) (Money, error) {
	if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Money{}, fmt.Errorf("factor %v: %w", factor, ErrInvalidAmount)
	}
	scaled := math.Round(float64(m.amount) * factor)
	return Money{amount: int64(scaled), currency: m.currency}, nil
}

// MultiplySeats scales the amount by a seat count. The count must be
// positive.
func (m Money) MultiplySeats(seats int) (Money, error) {
	if seats < 1 {
		return Money{}, fmt.Errorf("seat count %d: %w", seats, ErrInvalidAmount)
	}
	return m.Multiply(float64(seats))
}

// String formats the amount with two decimal places, e.g. "EUR 120.50".
func (m Money) String() string {
	return fmt.Sprintf("%s %d.%02d", m.currency, m.amount/100, m.amount%100)
}

type moneyJSON struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

// MarshalJSON serializes the amount in minor units alongside the currency.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

// UnmarshalJSON validates the decoded value through NewMoney.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewMoney(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
