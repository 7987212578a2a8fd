// Package storefront holds the consuming views. A view keeps UI-only state
// (input text, messages) and asks the cart session for everything else.
package storefront

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/cartsync"
	"github.com/nikolayk812/cartsync/internal/domain"
)

const (
	RouteLogin   = "/login"
	RouteCatalog = "/products"
	RouteOrders  = "/orders"
)

const (
	MessageTryAgain          = "Something went wrong. Please try again."
	MessageInvalidCode       = "This discount code is not valid."
	MessageQuantityFloor     = "Quantity cannot go below 1. Remove the item instead."
	MessageCheckoutDetails   = "Payment method and shipping address are required."
	MessageDiscountApplied   = "Discount applied."
	MessageDiscountRemoved   = "Discount removed."
	MessageOrderPlaced       = "Order placed."
	MessageInvalidQuantity   = "Quantity must be at least 1."
	MessageOrdersUnavailable = "Could not load your orders."
)

// CartSession is the part of *cartsync.Session the views use.
type CartSession interface {
	Snapshot() cartsync.Snapshot
	Subscribe(fn func(cartsync.Snapshot)) (unsubscribe func())
	Load(ctx context.Context) error
	AddItem(ctx context.Context, product domain.Product, quantity int) error
	IncrementQuantity(ctx context.Context, productID uuid.UUID) error
	DecrementQuantity(ctx context.Context, productID uuid.UUID) error
	RemoveItem(ctx context.Context, productID uuid.UUID) error
	ApplyDiscountCode(ctx context.Context, code string) error
	ClearDiscount()
	Clear()
	Retry(ctx context.Context) error
}

var _ CartSession = (*cartsync.Session)(nil)

// Outcome tells the caller what to do after an interaction.
// The zero value means stay on the view.
type Outcome struct {
	Redirect string
	Message  string
	CanRetry bool
}

// outcomeFor routes an error the way every view does.
func outcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{}
	case errors.Is(err, cartsync.ErrDiscarded), errors.Is(err, context.Canceled):
		// the view moved on, nothing to show
		return Outcome{}
	case errors.Is(err, domain.ErrNotAuthenticated):
		return Outcome{Redirect: RouteLogin}
	case errors.Is(err, domain.ErrEmptyCart):
		return Outcome{Redirect: RouteCatalog}
	case errors.Is(err, domain.ErrInvalidDiscountCode):
		return Outcome{Message: MessageInvalidCode}
	case errors.Is(err, domain.ErrQuantityFloor):
		return Outcome{Message: MessageQuantityFloor}
	case errors.Is(err, domain.ErrInvalidQuantity):
		return Outcome{Message: MessageInvalidQuantity}
	case errors.Is(err, domain.ErrRemote), errors.Is(err, context.DeadlineExceeded):
		return Outcome{Message: MessageTryAgain, CanRetry: true}
	default:
		return Outcome{Message: MessageTryAgain}
	}
}

// lifetime scopes calls to the time a view is mounted. Calls made after
// Unmount run on a cancelled context and their responses are dropped.
type lifetime struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func newLifetime() *lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &lifetime{ctx: ctx, cancel: cancel}
}

func (l *lifetime) mount(parent context.Context) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancel()
	l.ctx, l.cancel = context.WithCancel(parent)
	return l.ctx
}

func (l *lifetime) unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancel()
}

func (l *lifetime) context() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.ctx
}

func (l *lifetime) mounted() bool {
	return l.context().Err() == nil
}
