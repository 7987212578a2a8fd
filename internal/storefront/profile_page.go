package storefront

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/nikolayk812/cartsync/internal/port"
	"github.com/nikolayk812/cartsync/internal/projection"
)

type OrderLine struct {
	ID        string
	Status    domain.OrderStatus
	Total     string
	CreatedAt time.Time
}

type StatusCount struct {
	Status domain.OrderStatus
	Count  int
}

type ProfileView struct {
	UserID  string
	Orders  []OrderLine
	Counts  []StatusCount
	Message string
}

// ProfilePage shows the order history. Counts by status are secondary:
// if they cannot be fetched the page renders without them.
type ProfilePage struct {
	session CartSession
	orders  port.OrderService
	log     *slog.Logger
	life    *lifetime

	mu      sync.Mutex
	view    ProfileView
	loadErr error
}

func NewProfilePage(session CartSession, orders port.OrderService, log *slog.Logger) *ProfilePage {
	if log == nil {
		log = logger.Discard()
	}
	return &ProfilePage{
		session: session,
		orders:  orders,
		log:     log,
		life:    newLifetime(),
	}
}

func (p *ProfilePage) Mount(ctx context.Context) Outcome {
	ctx = p.life.mount(ctx)

	owner := p.session.Snapshot().Identity
	if !owner.Authenticated() {
		return Outcome{Redirect: RouteLogin}
	}

	summaries, err := p.orders.ListOrders(ctx, owner)
	if err != nil {
		if !p.life.mounted() {
			return Outcome{}
		}
		out := outcomeFor(err)
		if out.Message != "" {
			out.Message = MessageOrdersUnavailable
		}
		p.mu.Lock()
		p.view = ProfileView{UserID: owner.UserID, Message: out.Message}
		p.loadErr = err
		p.mu.Unlock()
		return out
	}

	view := ProfileView{UserID: owner.UserID}
	for _, o := range summaries {
		view.Orders = append(view.Orders, OrderLine{
			ID:        o.ID,
			Status:    o.Status,
			Total:     projection.Format(o.Total),
			CreatedAt: o.CreatedAt,
		})
	}

	counts, err := p.orders.CountOrdersByStatus(ctx, owner)
	if err != nil {
		logger.WithContext(ctx, p.log).Warn("order counts unavailable", slog.Any("error", err))
	}
	for status, n := range counts {
		view.Counts = append(view.Counts, StatusCount{Status: status, Count: n})
	}
	sort.Slice(view.Counts, func(i, j int) bool {
		return view.Counts[i].Status < view.Counts[j].Status
	})

	if !p.life.mounted() {
		return Outcome{}
	}

	p.mu.Lock()
	p.view = view
	p.loadErr = nil
	p.mu.Unlock()

	return Outcome{}
}

func (p *ProfilePage) Unmount() {
	p.life.unmount()
}

func (p *ProfilePage) View() ProfileView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Retry remounts the page under the same parent after a failed load.
func (p *ProfilePage) Retry(ctx context.Context) Outcome {
	p.mu.Lock()
	failed := p.loadErr != nil
	p.mu.Unlock()

	if !failed {
		return Outcome{}
	}
	return p.Mount(ctx)
}
