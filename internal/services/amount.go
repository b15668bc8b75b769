package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParseAmount reads a request amount given either as a JSON number or a
// numeric string. A missing value counts as zero.
func ParseAmount(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, customerrors.WithDetail(customerrors.ErrInvalidAmount, "Amount must be greater than zero")
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, customerrors.WithDetail(customerrors.ErrInvalidAmount, "Invalid amount")
		}
	} else {
		text = string(raw)
	}

	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !d.IsInteger() || d.GreaterThan(maxAmount) {
		return 0, customerrors.WithDetail(customerrors.ErrInvalidAmount, "Invalid amount")
	}
	if !d.IsPositive() {
		return 0, customerrors.WithDetail(customerrors.ErrInvalidAmount, "Amount must be greater than zero")
	}
	return d.IntPart(), nil
}
