// Package projection derives display fields from a cart mirror. It holds no
// state; callers recompute a view whenever they render.
package projection

import (
	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	DefaultPlaceholderName  = "Product unavailable"
	DefaultPlaceholderImage = "/static/img/placeholder.png"
)

type Options struct {
	PlaceholderName  string
	PlaceholderImage string
}

func (o Options) withDefaults() Options {
	if o.PlaceholderName == "" {
		o.PlaceholderName = DefaultPlaceholderName
	}
	if o.PlaceholderImage == "" {
		o.PlaceholderImage = DefaultPlaceholderImage
	}
	return o
}

type LineView struct {
	ProductID uuid.UUID
	Name      string
	ImageRef  string
	Quantity  int
	UnitPrice domain.Money
	LineTotal domain.Money
	// false when name or image fell back to a placeholder
	Resolved bool
}

type CartView struct {
	CartID   string
	Currency currency.Unit
	Lines    []LineView
	// sum of quantities
	ItemCount int

	Subtotal       domain.Money
	DiscountCode   string
	Percentage     decimal.Decimal
	DiscountAmount domain.Money
	Total          domain.Money
}

func (v CartView) Empty() bool {
	return len(v.Lines) == 0
}

func (v CartView) HasDiscount() bool {
	return v.DiscountCode != ""
}

func Project(cart domain.Cart, opts Options) CartView {
	opts = opts.withDefaults()

	lines := make([]LineView, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, projectLine(item, opts))
	}

	view := CartView{
		CartID:         cart.ID,
		Currency:       cart.Currency,
		Lines:          lines,
		ItemCount:      cart.ItemCount(),
		Subtotal:       cart.Subtotal(),
		DiscountAmount: cart.DiscountAmount(),
		Total:          cart.Total(),
	}
	if cart.Discount != nil {
		view.DiscountCode = cart.Discount.Code
		view.Percentage = cart.Discount.Percentage
	}

	return view
}

func projectLine(item domain.CartItem, opts Options) LineView {
	line := LineView{
		ProductID: item.ProductID,
		Name:      item.Name,
		ImageRef:  item.ImageRef,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		LineTotal: item.LineTotal(),
		Resolved:  true,
	}
	if line.Name == "" {
		line.Name = opts.PlaceholderName
		line.Resolved = false
	}
	if line.ImageRef == "" {
		line.ImageRef = opts.PlaceholderImage
		line.Resolved = false
	}
	return line
}
