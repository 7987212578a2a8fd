package storefront

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/nikolayk812/cartsync/internal/port"
	"github.com/nikolayk812/cartsync/internal/projection"
)

type CheckoutView struct {
	Cart            projection.CartView
	PaymentMethod   string
	ShippingAddress string
	Message         string
	OrderID         string
}

// CheckoutPage hands the cart to the order service. The order id is the
// only thing it keeps once the order is placed.
type CheckoutPage struct {
	session CartSession
	orders  port.OrderService
	opts    projection.Options
	log     *slog.Logger
	life    *lifetime

	mu              sync.Mutex
	paymentMethod   string
	shippingAddress string
	message         string
	orderID         string
}

func NewCheckoutPage(session CartSession, orders port.OrderService, opts projection.Options, log *slog.Logger) *CheckoutPage {
	if log == nil {
		log = logger.Discard()
	}
	return &CheckoutPage{
		session: session,
		orders:  orders,
		opts:    opts,
		log:     log,
		life:    newLifetime(),
	}
}

// Mount loads the cart; an empty cart sends the shopper back to the catalog.
func (p *CheckoutPage) Mount(ctx context.Context) Outcome {
	ctx = p.life.mount(ctx)

	if out := p.settle(p.session.Load(ctx)); out != (Outcome{}) {
		return out
	}
	if p.session.Snapshot().Cart.IsEmpty() {
		return Outcome{Redirect: RouteCatalog}
	}
	return Outcome{}
}

func (p *CheckoutPage) Unmount() {
	p.life.unmount()
}

func (p *CheckoutPage) SetPaymentMethod(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paymentMethod = method
}

func (p *CheckoutPage) SetShippingAddress(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shippingAddress = address
}

func (p *CheckoutPage) View() CheckoutView {
	p.mu.Lock()
	defer p.mu.Unlock()

	return CheckoutView{
		Cart:            projection.Project(p.session.Snapshot().Cart, p.opts),
		PaymentMethod:   p.paymentMethod,
		ShippingAddress: p.shippingAddress,
		Message:         p.message,
		OrderID:         p.orderID,
	}
}

// PlaceOrder creates the order and, once the order service confirmed it,
// clears the local cart.
func (p *CheckoutPage) PlaceOrder() Outcome {
	ctx := p.life.context()
	snap := p.session.Snapshot()

	if !snap.Identity.Authenticated() {
		return Outcome{Redirect: RouteLogin}
	}
	if snap.Cart.IsEmpty() {
		return Outcome{Redirect: RouteCatalog}
	}

	p.mu.Lock()
	req := domain.OrderRequest{
		CartID:          snap.Cart.ID,
		PaymentMethod:   strings.TrimSpace(p.paymentMethod),
		ShippingAddress: strings.TrimSpace(p.shippingAddress),
	}
	p.mu.Unlock()

	if req.PaymentMethod == "" || req.ShippingAddress == "" {
		p.setMessage(MessageCheckoutDetails)
		return Outcome{Message: MessageCheckoutDetails}
	}
	if snap.Cart.Discount != nil {
		req.DiscountCode = snap.Cart.Discount.Code
	}

	orderID, err := p.orders.CreateOrder(ctx, snap.Identity, req)
	if err != nil {
		return p.settle(err)
	}

	p.mu.Lock()
	p.orderID = orderID
	p.message = MessageOrderPlaced
	p.mu.Unlock()

	p.session.Clear()

	logger.WithContext(ctx, p.log).Info("order placed", slog.String("order_id", orderID))
	return Outcome{Redirect: RouteOrders + "/" + orderID, Message: MessageOrderPlaced}
}

func (p *CheckoutPage) OrderID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orderID
}

func (p *CheckoutPage) settle(err error) Outcome {
	if !p.life.mounted() {
		return Outcome{}
	}
	out := outcomeFor(err)
	if err != nil && out.Message != "" {
		logger.WithContext(p.life.context(), p.log).Warn("checkout failed", slog.Any("error", err))
	}
	p.setMessage(out.Message)
	return out
}

func (p *CheckoutPage) setMessage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message = msg
}
