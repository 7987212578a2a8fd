package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountCode is the record returned by the discount lookup service.
type DiscountCode struct {
	Code       string
	Percentage decimal.Decimal
	Active     bool
}

// Usable reports whether the code can be applied: active and 0 < percentage <= 100.
func (d DiscountCode) Usable() bool {
	return d.Active && d.Percentage.IsPositive() && d.Percentage.LessThanOrEqual(hundred)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
