package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var hundred = decimal.NewFromInt(100)

// Cart is the client's mirror of the remote cart for one owner.
// Discount is never sent by the remote store; it is client-local.
type Cart struct {
	ID       string
	OwnerID  string
	Currency currency.Unit
	Items    []CartItem
	Discount *Discount
}

type CartItem struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice Money
	Quantity  int
	ImageRef  string

	CreatedAt time.Time
}

type Discount struct {
	Code       string
	Percentage decimal.Decimal
}

// Product is what a view hands over when adding a line.
type Product struct {
	ID       uuid.UUID
	Name     string
	Price    Money
	ImageRef string
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Item(productID uuid.UUID) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

func (c Cart) WithoutItem(productID uuid.UUID) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	c.Items = items
	return c
}

// Clone returns a deep copy so snapshots handed out to views cannot alias the mirror.
func (c Cart) Clone() Cart {
	if c.Items != nil {
		c.Items = append([]CartItem(nil), c.Items...)
	}
	if c.Discount != nil {
		d := *c.Discount
		c.Discount = &d
	}
	return c
}

func (c Cart) ItemCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (i CartItem) LineTotal() Money {
	return i.UnitPrice.Mul(i.Quantity)
}

func (c Cart) Subtotal() Money {
	total := ZeroMoney(c.Currency)
	for _, item := range c.Items {
		total.Amount = total.Amount.Add(item.LineTotal().Amount)
	}
	return total
}

func (c Cart) DiscountAmount() Money {
	if c.Discount == nil {
		return ZeroMoney(c.Currency)
	}
	subtotal := c.Subtotal()
	return Money{
		Amount:   subtotal.Amount.Mul(c.Discount.Percentage).Div(hundred),
		Currency: c.Currency,
	}
}

func (c Cart) Total() Money {
	return Money{
		Amount:   c.Subtotal().Amount.Sub(c.DiscountAmount().Amount),
		Currency: c.Currency,
	}
}
