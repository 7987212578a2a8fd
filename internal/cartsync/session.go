// Package cartsync keeps a local mirror of the remote cart in step with the
// remote store. The mirror is only ever replaced from a server response,
// with two exceptions: removal filters the line locally after the remote
// acknowledged it, and the discount is client-local.
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/nikolayk812/cartsync/internal/metrics"
	"github.com/nikolayk812/cartsync/internal/port"
)

// ErrDiscarded is returned when a response arrived after the session moved
// on (identity changed or the cart was cleared) and was therefore dropped.
var ErrDiscarded = errors.New("response discarded: session changed while the call was in flight")

const (
	opLoad          = "load"
	opAddItem       = "add_item"
	opIncrement     = "increment_quantity"
	opDecrement     = "decrement_quantity"
	opRemoveItem    = "remove_item"
	opApplyDiscount = "apply_discount"
	opClearDiscount = "clear_discount"
	opClear         = "clear"
)

type State int

const (
	StateIdle State = iota
	StatePending
)

func (s State) String() string {
	if s == StatePending {
		return "pending"
	}
	return "idle"
}

// Snapshot is a copy of the session state. It never aliases the mirror.
type Snapshot struct {
	Identity domain.Identity
	Cart     domain.Cart
	State    State
	Err      error
	CanRetry bool
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session is the single bridge between cart intents and the remote cart.
// It does not queue intents: two intents issued concurrently both reach the
// remote store and the later response wins.
type Session struct {
	remote    port.CartRemote
	discounts port.DiscountLookup
	log       *slog.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	identity domain.Identity
	mirror   domain.Cart
	epoch    uint64
	// discountEpoch moves on every discount change so a late lookup
	// cannot bring back a discount the user already replaced or cleared.
	discountEpoch uint64
	inflight      int
	lastErr       error
	retry         func(context.Context) error

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// call is what an intent saw when it started, read in one critical section.
type call struct {
	epoch         uint64
	discountEpoch uint64
	discount      bool
	owner         domain.Identity
	cart          domain.Cart
}

func NewSession(remote port.CartRemote, discounts port.DiscountLookup, opts ...Option) *Session {
	s := &Session{
		remote:    remote,
		discounts: discounts,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetIdentity switches the owner. A different user drops the mirror and
// invalidates every call still in flight.
func (s *Session) SetIdentity(id domain.Identity) {
	s.mu.Lock()
	if id.UserID != s.identity.UserID {
		s.mirror = domain.Cart{}
		s.epoch++
		s.discountEpoch++
		s.lastErr = nil
		s.retry = nil
	}
	s.identity = id
	s.mu.Unlock()

	s.notify()
}

func (s *Session) SignOut() {
	s.SetIdentity(domain.Identity{})
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := StateIdle
	if s.inflight > 0 {
		state = StatePending
	}

	return Snapshot{
		Identity: s.identity,
		Cart:     s.mirror.Clone(),
		State:    state,
		Err:      s.lastErr,
		CanRetry: s.retry != nil,
	}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// state change. fn runs on the goroutine that made the change.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Load fetches the owner's cart, creating it when the store has none.
// Without an identity it clears the mirror and makes no call.
func (s *Session) Load(ctx context.Context) error {
	return s.load(ctx, s.Load)
}

func (s *Session) load(ctx context.Context, retry func(context.Context) error) error {
	c := s.observe()
	if !c.owner.Authenticated() {
		s.reset()
		return nil
	}

	s.begin()
	cart, err := s.fetchOrCreate(ctx, c.owner)

	return s.complete(ctx, opLoad, c, err, func(m *domain.Cart) {
		adopt(m, cart)
	}, retry)
}

func (s *Session) fetchOrCreate(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	cart, err := timed(s, "get_cart", func() (domain.Cart, error) {
		return s.remote.GetCart(ctx, owner)
	})
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, fmt.Errorf("remote.GetCart: %w", err)
	}

	cart, err = timed(s, "create_cart", func() (domain.Cart, error) {
		return s.remote.CreateCart(ctx, owner)
	})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("remote.CreateCart: %w", err)
	}

	return cart, nil
}

// AddItem adds quantity units of product. The line only shows up once the
// remote store confirmed it.
func (s *Session) AddItem(ctx context.Context, product domain.Product, quantity int) error {
	retry := func(ctx context.Context) error {
		return s.AddItem(ctx, product, quantity)
	}

	c := s.observe()
	if !c.owner.Authenticated() {
		s.metrics.Intent(opAddItem, metrics.OutcomeRejected)
		return domain.ErrNotAuthenticated
	}
	if quantity < 1 {
		s.metrics.Intent(opAddItem, metrics.OutcomeRejected)
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	if c.cart.ID == "" {
		owner := c.owner
		if err := s.load(ctx, retry); err != nil {
			return err
		}
		if c = s.observe(); c.cart.ID == "" || c.owner.UserID != owner.UserID {
			// identity changed while loading
			return ErrDiscarded
		}
	}

	s.begin()
	cart, err := timed(s, opAddItem, func() (domain.Cart, error) {
		return s.remote.AddItem(ctx, c.owner, c.cart.ID, product, quantity)
	})
	if err != nil {
		err = fmt.Errorf("remote.AddItem: %w", err)
	}

	return s.complete(ctx, opAddItem, c, err, func(m *domain.Cart) {
		adopt(m, cart)
	}, retry)
}

func (s *Session) IncrementQuantity(ctx context.Context, productID uuid.UUID) error {
	return s.changeQuantity(ctx, opIncrement, productID, 1)
}

// DecrementQuantity never takes a line below 1; use RemoveItem for that.
func (s *Session) DecrementQuantity(ctx context.Context, productID uuid.UUID) error {
	return s.changeQuantity(ctx, opDecrement, productID, -1)
}

// changeQuantity sends current+delta as an absolute quantity. Two writers
// racing on the same line can lose an update; the remote store decides.
func (s *Session) changeQuantity(ctx context.Context, op string, productID uuid.UUID, delta int) error {
	c := s.observe()
	item, found := c.cart.Item(productID)
	if !found {
		return nil
	}
	if !c.owner.Authenticated() {
		s.metrics.Intent(op, metrics.OutcomeRejected)
		return domain.ErrNotAuthenticated
	}

	next := item.Quantity + delta
	if next < 1 {
		s.metrics.Intent(op, metrics.OutcomeRejected)
		return domain.ErrQuantityFloor
	}

	s.begin()
	cart, err := timed(s, op, func() (domain.Cart, error) {
		return s.remote.SetQuantity(ctx, c.owner, c.cart.ID, productID, next)
	})
	if err != nil {
		err = fmt.Errorf("remote.SetQuantity: %w", err)
	}

	return s.complete(ctx, op, c, err, func(m *domain.Cart) {
		adopt(m, cart)
	}, func(ctx context.Context) error {
		return s.changeQuantity(ctx, op, productID, delta)
	})
}

// RemoveItem asks the remote store to drop the line and, once acknowledged,
// filters it out of the mirror. Absent lines are a no-op.
func (s *Session) RemoveItem(ctx context.Context, productID uuid.UUID) error {
	c := s.observe()
	if _, found := c.cart.Item(productID); !found {
		return nil
	}
	if !c.owner.Authenticated() {
		s.metrics.Intent(opRemoveItem, metrics.OutcomeRejected)
		return domain.ErrNotAuthenticated
	}

	s.begin()
	_, err := timed(s, opRemoveItem, func() (domain.Cart, error) {
		return s.remote.RemoveItem(ctx, c.owner, c.cart.ID, productID)
	})
	if err != nil {
		err = fmt.Errorf("remote.RemoveItem: %w", err)
	}

	return s.complete(ctx, opRemoveItem, c, err, func(m *domain.Cart) {
		*m = m.WithoutItem(productID)
	}, func(ctx context.Context) error {
		return s.RemoveItem(ctx, productID)
	})
}

// ApplyDiscountCode looks the code up and, when usable, stores it on the
// mirror. The discount lives only on the client. A blank code clears it.
func (s *Session) ApplyDiscountCode(ctx context.Context, code string) error {
	code = domain.NormalizeCode(code)
	if code == "" {
		s.ClearDiscount()
		return nil
	}

	c := s.observeDiscount()
	s.begin()
	rec, err := timed(s, "lookup_discount", func() (domain.DiscountCode, error) {
		return s.discounts.LookupDiscount(ctx, code)
	})
	switch {
	case errors.Is(err, domain.ErrDiscountNotFound):
		err = fmt.Errorf("%w: %s", domain.ErrInvalidDiscountCode, code)
	case err != nil:
		err = fmt.Errorf("discounts.LookupDiscount: %w", err)
	case !rec.Usable():
		err = fmt.Errorf("%w: %s is not active", domain.ErrInvalidDiscountCode, code)
	}

	return s.complete(ctx, opApplyDiscount, c, err, func(m *domain.Cart) {
		m.Discount = &domain.Discount{Code: code, Percentage: rec.Percentage}
	}, func(ctx context.Context) error {
		return s.ApplyDiscountCode(ctx, code)
	})
}

// ClearDiscount drops the discount locally without any remote call. A lookup
// still in flight is dropped when it returns.
func (s *Session) ClearDiscount() {
	s.mu.Lock()
	s.mirror.Discount = nil
	s.discountEpoch++
	s.mu.Unlock()

	s.metrics.Intent(opClearDiscount, metrics.OutcomeSuccess)
	s.notify()
}

// Clear empties the mirror locally. It is meant to run right after the
// order service confirmed an order; the cart id is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	s.mirror.Items = nil
	s.mirror.Discount = nil
	s.epoch++
	s.discountEpoch++
	s.lastErr = nil
	s.retry = nil
	s.mu.Unlock()

	s.metrics.Intent(opClear, metrics.OutcomeSuccess)
	s.notify()
}

// Retry re-invokes the last operation that failed against the remote store.
// It is a no-op when nothing is pending a retry.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	retry := s.retry
	s.mu.Unlock()

	if retry == nil {
		return nil
	}
	return retry(ctx)
}

func (s *Session) observe() call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return call{
		epoch:         s.epoch,
		discountEpoch: s.discountEpoch,
		owner:         s.identity,
		cart:          s.mirror.Clone(),
	}
}

// observeDiscount starts a new discount generation, so only the latest
// lookup can land.
func (s *Session) observeDiscount() call {
	s.mu.Lock()
	s.discountEpoch++
	s.mu.Unlock()

	c := s.observe()
	c.discount = true
	return c
}

func (s *Session) reset() {
	s.mu.Lock()
	s.mirror = domain.Cart{}
	s.lastErr = nil
	s.retry = nil
	s.mu.Unlock()

	s.notify()
}

// begin moves the session to Pending.
func (s *Session) begin() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	s.notify()
}

// stale reports whether the session moved on since c was observed.
func (s *Session) stale(c call) bool {
	return c.epoch != s.epoch || (c.discount && c.discountEpoch != s.discountEpoch)
}

// complete settles a call started with begin. apply runs under the lock,
// only on success, and only if the response is still wanted. A failure
// replaces the pending retry only when it is itself retryable, and a local
// discount change never clears a pending cart retry.
func (s *Session) complete(
	ctx context.Context,
	op string,
	c call,
	callErr error,
	apply func(m *domain.Cart),
	retry func(context.Context) error,
) error {
	var (
		err     error
		outcome string
	)

	s.mu.Lock()
	s.inflight--
	switch {
	case ctx.Err() != nil:
		err, outcome = ctx.Err(), metrics.OutcomeDiscarded
	case s.stale(c):
		err, outcome = ErrDiscarded, metrics.OutcomeDiscarded
	case callErr != nil:
		err, outcome = callErr, metrics.OutcomeFailure
		if errors.Is(callErr, domain.ErrRemote) {
			s.lastErr = callErr
			s.retry = retry
		} else if s.retry == nil {
			s.lastErr = callErr
		}
	default:
		outcome = metrics.OutcomeSuccess
		apply(&s.mirror)
		if !c.discount || s.retry == nil {
			s.lastErr = nil
			s.retry = nil
		}
	}
	s.mu.Unlock()

	s.metrics.Intent(op, outcome)

	l := logger.WithContext(ctx, s.log)
	switch outcome {
	case metrics.OutcomeFailure:
		l.Warn("cart intent failed", slog.String("op", op), slog.Any("error", err))
	case metrics.OutcomeDiscarded:
		l.Debug("cart response discarded", slog.String("op", op), slog.Any("reason", err))
	}

	s.notify()
	return err
}

func (s *Session) notify() {
	snap := s.Snapshot()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		fns = append(fns, sub.fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// adopt replaces the mirror with the server cart, keeping the client-local discount.
func adopt(m *domain.Cart, server domain.Cart) {
	discount := m.Discount
	*m = server.Clone()
	m.Discount = discount
}

func timed[T any](s *Session, op string, fn func() (T, error)) (T, error) {
	started := time.Now()
	v, err := fn()
	s.metrics.ObserveRemote(op, started)
	return v, err
}
