package storefront

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/cartsync"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/nikolayk812/cartsync/internal/projection"
)

type CartPageView struct {
	Cart      projection.CartView
	CodeInput string
	Message   string
	Pending   bool
	CanRetry  bool
}

type CartPage struct {
	session CartSession
	opts    projection.Options
	log     *slog.Logger
	life    *lifetime

	mu          sync.Mutex
	snap        cartsync.Snapshot
	codeInput   string
	message     string
	unsubscribe func()
}

func NewCartPage(session CartSession, opts projection.Options, log *slog.Logger) *CartPage {
	if log == nil {
		log = logger.Discard()
	}
	return &CartPage{
		session: session,
		opts:    opts,
		log:     log,
		life:    newLifetime(),
	}
}

// Mount starts following the session and loads the cart.
func (p *CartPage) Mount(ctx context.Context) Outcome {
	ctx = p.life.mount(ctx)

	p.mu.Lock()
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.snap = p.session.Snapshot()
	p.unsubscribe = p.session.Subscribe(p.follow)
	p.mu.Unlock()

	return p.settle(p.session.Load(ctx))
}

// Unmount stops following the session. Calls still in flight are dropped.
func (p *CartPage) Unmount() {
	p.life.unmount()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

func (p *CartPage) View() CartPageView {
	p.mu.Lock()
	defer p.mu.Unlock()

	return CartPageView{
		Cart:      projection.Project(p.snap.Cart, p.opts),
		CodeInput: p.codeInput,
		Message:   p.message,
		Pending:   p.snap.State == cartsync.StatePending,
		CanRetry:  p.snap.CanRetry,
	}
}

func (p *CartPage) SetCodeInput(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codeInput = code
}

func (p *CartPage) Increment(productID uuid.UUID) Outcome {
	return p.settle(p.session.IncrementQuantity(p.life.context(), productID))
}

func (p *CartPage) Decrement(productID uuid.UUID) Outcome {
	return p.settle(p.session.DecrementQuantity(p.life.context(), productID))
}

func (p *CartPage) Remove(productID uuid.UUID) Outcome {
	return p.settle(p.session.RemoveItem(p.life.context(), productID))
}

// ApplyCode applies the code typed into the input. A blank input clears the discount.
func (p *CartPage) ApplyCode() Outcome {
	p.mu.Lock()
	code := p.codeInput
	p.mu.Unlock()

	if domain.NormalizeCode(code) == "" {
		return p.ClearCode()
	}

	out := p.settle(p.session.ApplyDiscountCode(p.life.context(), code))
	if out == (Outcome{}) && p.life.mounted() {
		out.Message = MessageDiscountApplied
		p.setMessage(out.Message)
	}
	return out
}

func (p *CartPage) ClearCode() Outcome {
	p.session.ClearDiscount()

	p.mu.Lock()
	p.codeInput = ""
	p.mu.Unlock()

	p.setMessage(MessageDiscountRemoved)
	return Outcome{Message: MessageDiscountRemoved}
}

func (p *CartPage) Retry() Outcome {
	return p.settle(p.session.Retry(p.life.context()))
}

func (p *CartPage) follow(snap cartsync.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = snap
}

// settle turns err into an Outcome and keeps its message for the view.
func (p *CartPage) settle(err error) Outcome {
	out := outcomeFor(err)
	if !p.life.mounted() {
		return Outcome{}
	}
	if err != nil && out.Message != "" {
		p.log.Debug("cart page action failed", slog.Any("error", err))
	}
	p.setMessage(out.Message)
	return out
}

func (p *CartPage) setMessage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message = msg
}

// AddToCart is the action behind an "add to cart" button on any product view.
func AddToCart(ctx context.Context, session CartSession, product domain.Product, quantity int) Outcome {
	return outcomeFor(session.AddItem(ctx, product, quantity))
}
