package storefront

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/cartsync"
	"github.com/nikolayk812/cartsync/internal/projection"
)

type DropdownView struct {
	Empty     bool
	ItemCount int
	Lines     []projection.LineView
	Total     string
	Message   string
}

// CartDropdown is the header cart summary.
type CartDropdown struct {
	session CartSession
	opts    projection.Options
	life    *lifetime

	mu          sync.Mutex
	snap        cartsync.Snapshot
	message     string
	unsubscribe func()
}

func NewCartDropdown(session CartSession, opts projection.Options) *CartDropdown {
	return &CartDropdown{
		session: session,
		opts:    opts,
		life:    newLifetime(),
	}
}

// Mount follows the session; it only loads when no cart has been fetched yet.
func (d *CartDropdown) Mount(ctx context.Context) Outcome {
	ctx = d.life.mount(ctx)

	d.mu.Lock()
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	d.snap = d.session.Snapshot()
	d.unsubscribe = d.session.Subscribe(func(snap cartsync.Snapshot) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.snap = snap
	})
	snap := d.snap
	d.mu.Unlock()

	if snap.Cart.ID != "" || !snap.Identity.Authenticated() {
		return Outcome{}
	}
	return d.settle(d.session.Load(ctx))
}

func (d *CartDropdown) Unmount() {
	d.life.unmount()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
}

func (d *CartDropdown) View() DropdownView {
	d.mu.Lock()
	defer d.mu.Unlock()

	cv := projection.Project(d.snap.Cart, d.opts)
	return DropdownView{
		Empty:     cv.Empty(),
		ItemCount: cv.ItemCount,
		Lines:     cv.Lines,
		Total:     projection.Format(cv.Total),
		Message:   d.message,
	}
}

func (d *CartDropdown) Remove(productID uuid.UUID) Outcome {
	return d.settle(d.session.RemoveItem(d.life.context(), productID))
}

func (d *CartDropdown) settle(err error) Outcome {
	if !d.life.mounted() {
		return Outcome{}
	}
	out := outcomeFor(err)

	d.mu.Lock()
	d.message = out.Message
	d.mu.Unlock()

	return out
}
