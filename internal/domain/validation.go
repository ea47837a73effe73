package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency        = errors.New("invalid currency code")
	ErrInvalidAmount          = errors.New("amount must be non-zero")
	ErrAmountTooLarge         = errors.New("amount exceeds maximum allowed")
	ErrAmountTooPrecise       = errors.New("amount has too many decimal places")
	ErrInvalidActor           = errors.New("actor is required")
	ErrInvalidName            = errors.New("invalid name")
	ErrInvalidDescription     = errors.New("description too long")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidDate            = errors.New("transaction date is required")
	ErrInvalidDateRange       = errors.New("from date is after to date")
)

// Validation constants
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1000
	MaxActorLength       = 128
	MaxEntryAmount       = "1000000000000000" // 1 quadrillion, covers IRR-denominated books
	MaxAmountScale       = 8                  // NUMERIC(38,8) columns
)

var maxEntryAmount = decimal.RequireFromString(MaxEntryAmount)

// Currencies traded at the desk (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
	"IRR": true, "AED": true, "IQD": true, "AFN": true,
	"SAR": true, "KWD": true, "QAR": true, "OMR": true,
	"BHD": true, "AMD": true, "AZN": true, "GEL": true,
	"PKR": true, "MYR": true, "THB": true,
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = NormalizeCurrency(currency)

	if !validCurrencies[currency] {
		return fmt.Errorf("%w: %q is not a supported ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateEntryAmount validates a signed ledger amount. Sign is unconstrained.
func ValidateEntryAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	if amount.Abs().GreaterThan(maxEntryAmount) {
		return fmt.Errorf("%w: maximum absolute amount is %s", ErrAmountTooLarge, MaxEntryAmount)
	}

	// Trailing zeros past the scale are fine, significant digits are not.
	if !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("%w: at most %d decimal places are stored", ErrAmountTooPrecise, MaxAmountScale)
	}

	return nil
}

// ValidateActor validates the user recorded in audit columns.
func ValidateActor(actor string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	if utf8.RuneCountInString(actor) > MaxActorLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidActor, MaxActorLength)
	}
	return nil
}

// ValidateName validates customer and bank account names.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}

	return nil
}

// ValidateDescription validates free-text entry descriptions.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidDescription, MaxDescriptionLength)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
