package projection

import (
	"fmt"

	"github.com/nikolayk812/cartsync/internal/domain"
	"golang.org/x/text/currency"
)

// Format renders m rounded to its currency's standard scale, e.g. "USD 18.00".
func Format(m domain.Money) string {
	return fmt.Sprintf("%s %s", code(m.Currency), Amount(m))
}

// Amount renders the amount only, rounded half-up to the currency scale.
func Amount(m domain.Money) string {
	scale := 2
	if m.Currency != (currency.Unit{}) {
		scale, _ = currency.Standard.Rounding(m.Currency)
	}
	return m.Amount.StringFixed(int32(scale))
}

func code(u currency.Unit) string {
	if u == (currency.Unit{}) {
		return currency.XXX.String()
	}
	return u.String()
}
