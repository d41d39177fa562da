package valueobjects

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/domain/errors"
)

// MoneyScale is the fixed decimal scale for all monetary amounts.
const MoneyScale = 2

// Money is a fixed-point monetary amount bound to a currency.
//
// Immutable: every operation returns a new Money. Amounts are always
// non-negative; debits and credits are expressed by the operation, not by
// the sign.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney parses a decimal string into Money. The amount must be
// non-negative and must not carry more than two decimal places.
func NewMoney(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, errors.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("invalid decimal amount %q", amount),
		}
	}
	return NewMoneyFromDecimal(d, currency)
}

// NewMoneyFromDecimal wraps a decimal into Money, enforcing scale and sign.
func NewMoneyFromDecimal(d decimal.Decimal, currency Currency) (Money, error) {
	if d.IsNegative() {
		return Money{}, errors.ErrInvalidAmount
	}
	if d.Exponent() < -MoneyScale {
		return Money{}, errors.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("amount %s has more than %d decimal places", d.String(), MoneyScale),
		}
	}
	return Money{amount: d.Round(MoneyScale), currency: currency}, nil
}

// Zero returns a zero amount in the given currency.
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the underlying decimal.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency of the amount.
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Add returns m + other. Fails on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if !m.currency.Equals(other.currency) {
		return Money{}, errors.ErrCurrencyMismatch
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m - other. Fails on currency mismatch or if the result would
// be negative.
func (m Money) Sub(other Money) (Money, error) {
	if !m.currency.Equals(other.currency) {
		return Money{}, errors.ErrCurrencyMismatch
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, errors.ErrInsufficientFunds
	}
	return Money{amount: result, currency: m.currency}, nil
}

// LessThan reports m < other. Callers must have checked currency already;
// comparison across currencies is a programming error and panics.
func (m Money) LessThan(other Money) bool {
	if !m.currency.Equals(other.currency) {
		panic(fmt.Sprintf("comparing %s against %s", m.currency, other.currency))
	}
	return m.amount.LessThan(other.amount)
}

// GreaterThan reports m > other with the same currency contract as LessThan.
func (m Money) GreaterThan(other Money) bool {
	if !m.currency.Equals(other.currency) {
		panic(fmt.Sprintf("comparing %s against %s", m.currency, other.currency))
	}
	return m.amount.GreaterThan(other.amount)
}

// Equals reports value equality including currency.
func (m Money) Equals(other Money) bool {
	return m.currency.Equals(other.currency) && m.amount.Equal(other.amount)
}

// StringFixed renders the amount with the canonical two decimal places.
// This is the representation persisted to the store.
func (m Money) StringFixed() string {
	return m.amount.StringFixed(MoneyScale)
}

func (m Money) String() string {
	return m.amount.StringFixed(MoneyScale) + " " + m.currency.Code()
}
