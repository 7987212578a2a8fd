package devstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/port"
	"github.com/shopspring/decimal"
)

// SeedDiscounts stores codes given as code → percentage. A percentage
// prefixed with "!" is stored inactive.
func SeedDiscounts(ctx context.Context, repo port.CartRepository, codes map[string]string) error {
	keys := make([]string, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Strings(keys)

	for _, code := range keys {
		raw := strings.TrimSpace(codes[code])
		active := !strings.HasPrefix(raw, "!")
		raw = strings.TrimPrefix(raw, "!")

		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("discount code[%s] percentage[%s] is not a number: %w", code, raw, err)
		}

		err = repo.PutDiscountCode(ctx, domain.DiscountCode{
			Code:       code,
			Percentage: pct,
			Active:     active,
		})
		if err != nil {
			return fmt.Errorf("repo.PutDiscountCode: %w", err)
		}
	}

	return nil
}
