package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"golang.org/x/text/currency"
)

// CartRepository backs the development cart store.
type CartRepository interface {
	GetCartByOwner(ctx context.Context, ownerID string) (domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (domain.Cart, error)
	CreateCart(ctx context.Context, ownerID string, cur currency.Unit) (domain.Cart, error)
	AddItem(ctx context.Context, cartID string, item domain.CartItem) error
	SetQuantity(ctx context.Context, cartID string, productID uuid.UUID, quantity int) (bool, error)
	DeleteItem(ctx context.Context, cartID string, productID uuid.UUID) (bool, error)

	GetDiscountCode(ctx context.Context, code string) (domain.DiscountCode, error)
	PutDiscountCode(ctx context.Context, code domain.DiscountCode) error

	// PlaceOrder stores the order and empties order.CartID as one unit:
	// either both happen or neither does.
	PlaceOrder(ctx context.Context, order domain.Order) error
	ListOrders(ctx context.Context, ownerID string) ([]domain.Order, error)
}
