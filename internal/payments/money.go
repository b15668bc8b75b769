package payments

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
)

// MinorUnitScale is the number of decimals of the currency's minor unit:
// 2 for usd, 0 for jpy. Unknown or empty codes fall back to 2.
func MinorUnitScale(code string) int32 {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// FormatMinorUnits renders an amount as the major-unit string PayPal expects:
// 500 usd is "5.00", 500 jpy is "500".
func FormatMinorUnits(amount int64, code string) string {
	scale := MinorUnitScale(code)
	return decimal.New(amount, -scale).StringFixed(scale)
}

// ParseMajorUnits converts a provider amount such as "5.00" to minor units of
// the given currency without going through floating point. Fractions of a
// minor unit and negative values are rejected.
func ParseMajorUnits(value, code string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", value, customerrors.ErrInvalidAmount)
	}
	minor := d.Shift(MinorUnitScale(code))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-unit precision for %s: %w", value, code, customerrors.ErrInvalidAmount)
	}
	if minor.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative: %w", value, customerrors.ErrInvalidAmount)
	}
	return minor.IntPart(), nil
}

// NormalizeCurrency validates an ISO 4217 code and returns it lower-cased, the
// form stored in the ledger. An empty code means the default currency.
func NormalizeCurrency(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, customerrors.ErrInvalidParameter)
	}
	return strings.ToLower(unit.String()), nil
}
