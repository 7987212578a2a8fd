package wire

import (
	"github.com/nikolayk812/cartsync/internal/domain"
)

func EncodeMoney(m domain.Money) Money {
	return Money{Amount: m.Amount, Currency: m.Currency.String()}
}

func EncodeCart(c domain.Cart) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItem{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			UnitPrice: EncodeMoney(item.UnitPrice),
			Quantity:  item.Quantity,
			ImageRef:  item.ImageRef,
		})
	}

	return Cart{
		ID:       c.ID,
		OwnerID:  c.OwnerID,
		Currency: c.Currency.String(),
		Items:    items,
	}
}

func EncodeAddItem(product domain.Product, quantity int) AddItemRequest {
	price := EncodeMoney(product.Price)
	return AddItemRequest{
		ProductID: product.ID.String(),
		Quantity:  quantity,
		Name:      product.Name,
		UnitPrice: &price,
		ImageRef:  product.ImageRef,
	}
}

func EncodeDiscountCode(d domain.DiscountCode) DiscountCode {
	return DiscountCode{Code: d.Code, Percentage: d.Percentage, IsActive: d.Active}
}

func EncodeOrderSummary(o domain.Order) OrderSummary {
	return OrderSummary{
		ID:        o.ID.String(),
		Status:    string(o.Status),
		Total:     EncodeMoney(o.Total),
		CreatedAt: o.CreatedAt,
	}
}
