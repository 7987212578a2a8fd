package wire

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"golang.org/x/text/currency"
)

// DecodeCart normalizes a cart response. It rejects anything that does not
// match the contract and drops lines whose quantity is zero.
// An empty ownerID skips the ownership check.
func DecodeCart(c Cart, ownerID string) (domain.Cart, error) {
	if c.ID == "" {
		return domain.Cart{}, fmt.Errorf("%w: cart id is empty", domain.ErrMalformedResponse)
	}
	if ownerID != "" && c.OwnerID != ownerID {
		return domain.Cart{}, fmt.Errorf("%w: cart[%s] belongs to owner[%s]", domain.ErrMalformedResponse, c.ID, c.OwnerID)
	}

	cur, err := currency.ParseISO(c.Currency)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: currency[%s] is not valid: %v", domain.ErrMalformedResponse, c.Currency, err)
	}

	var items []domain.CartItem
	for _, dto := range c.Items {
		item, err := decodeItem(dto, cur)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("decodeItem: %w", err)
		}
		if item.Quantity == 0 {
			continue
		}
		items = append(items, item)
	}

	return domain.Cart{
		ID:       c.ID,
		OwnerID:  c.OwnerID,
		Currency: cur,
		Items:    items,
	}, nil
}

func decodeItem(dto CartItem, cartCurrency currency.Unit) (domain.CartItem, error) {
	productID, err := uuid.Parse(dto.ProductID)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("%w: product_id[%s] is not a uuid", domain.ErrMalformedResponse, dto.ProductID)
	}
	if dto.Quantity < 0 {
		return domain.CartItem{}, fmt.Errorf("%w: product[%s] has quantity %d", domain.ErrMalformedResponse, productID, dto.Quantity)
	}

	price, err := DecodeMoney(dto.UnitPrice)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("product[%s]: %w", productID, err)
	}
	if price.Currency != cartCurrency {
		return domain.CartItem{}, fmt.Errorf("%w: product[%s] priced in %s, cart in %s",
			domain.ErrMalformedResponse, productID, price.Currency, cartCurrency)
	}
	if price.Amount.IsNegative() {
		return domain.CartItem{}, fmt.Errorf("%w: product[%s] has negative price", domain.ErrMalformedResponse, productID)
	}

	return domain.CartItem{
		ProductID: productID,
		Name:      dto.Name,
		UnitPrice: price,
		Quantity:  dto.Quantity,
		ImageRef:  dto.ImageRef,
	}, nil
}

func DecodeMoney(m Money) (domain.Money, error) {
	cur, err := currency.ParseISO(m.Currency)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: currency[%s] is not valid: %v", domain.ErrMalformedResponse, m.Currency, err)
	}
	return domain.Money{Amount: m.Amount, Currency: cur}, nil
}

func DecodeDiscountCode(d DiscountCode) domain.DiscountCode {
	return domain.DiscountCode{
		Code:       domain.NormalizeCode(d.Code),
		Percentage: d.Percentage,
		Active:     d.IsActive,
	}
}

func DecodeOrderSummaries(orders []OrderSummary) ([]domain.OrderSummary, error) {
	result := make([]domain.OrderSummary, 0, len(orders))
	for _, o := range orders {
		total, err := DecodeMoney(o.Total)
		if err != nil {
			return nil, fmt.Errorf("order[%s]: %w", o.ID, err)
		}
		result = append(result, domain.OrderSummary{
			ID:        o.ID,
			Status:    domain.OrderStatus(o.Status),
			Total:     total,
			CreatedAt: o.CreatedAt,
		})
	}
	return result, nil
}
