package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
)

// CartRemote is the authoritative remote cart store. Every mutating call
// returns the server's representation of the cart after the change.
type CartRemote interface {
	GetCart(ctx context.Context, owner domain.Identity) (domain.Cart, error)
	CreateCart(ctx context.Context, owner domain.Identity) (domain.Cart, error)
	AddItem(ctx context.Context, owner domain.Identity, cartID string, product domain.Product, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.Identity, cartID string, productID uuid.UUID) (domain.Cart, error)
	SetQuantity(ctx context.Context, owner domain.Identity, cartID string, productID uuid.UUID, quantity int) (domain.Cart, error)
}

type DiscountLookup interface {
	LookupDiscount(ctx context.Context, code string) (domain.DiscountCode, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, owner domain.Identity, req domain.OrderRequest) (string, error)
	ListOrders(ctx context.Context, owner domain.Identity) ([]domain.OrderSummary, error)
	CountOrdersByStatus(ctx context.Context, owner domain.Identity) (map[domain.OrderStatus]int, error)
}
