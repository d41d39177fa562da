// Package valueobjects contains the immutable value types shared by the
// wallet domain: Currency and Money.
package valueobjects

import (
	"fmt"
	"strings"

	"github.com/Haleralex/walletcore/internal/domain/errors"
)

// Currency is a 3-letter ISO 4217 code. It is set when a wallet is created
// and never changes afterwards.
type Currency struct {
	code string
}

// NewCurrency validates and normalizes a currency code.
func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if len(code) != 3 {
		return Currency{}, errors.ValidationError{
			Field:   "currency",
			Message: fmt.Sprintf("currency must be a 3-letter ISO code, got %q", code),
		}
	}

	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return Currency{}, errors.ValidationError{
				Field:   "currency",
				Message: fmt.Sprintf("currency must contain only letters, got %q", code),
			}
		}
	}

	return Currency{code: code}, nil
}

// MustCurrency is a constructor for statically known codes. Panics on
// invalid input; intended for defaults and tests only.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Code returns the ISO code.
func (c Currency) Code() string {
	return c.code
}

// IsZero reports whether the currency has not been set.
func (c Currency) IsZero() bool {
	return c.code == ""
}

// Equals compares two currencies by code.
func (c Currency) Equals(other Currency) bool {
	return c.code == other.code
}

func (c Currency) String() string {
	return c.code
}
