package cartsync_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"golang.org/x/text/currency"
)

// fakeRemote is an in-process remote cart store that records every call.
type fakeRemote struct {
	mu sync.Mutex

	carts     map[string]domain.Cart
	discounts map[string]domain.DiscountCode
	calls     []string
	quantity  []int
	nextID    int

	// err is returned by every call while set
	err error

	// when set, calls signal entered and wait for release before returning
	entered chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		carts:     make(map[string]domain.Cart),
		discounts: make(map[string]domain.DiscountCode),
	}
}

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	entered, release, err := f.entered, f.release, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return err
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRemote) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = make(chan struct{})
	f.release = make(chan struct{})
}

func (f *fakeRemote) Unblock() {
	f.mu.Lock()
	release := f.release
	f.entered, f.release = nil, nil
	f.mu.Unlock()
	close(release)
}

func (f *fakeRemote) WaitEntered() {
	f.mu.Lock()
	entered := f.entered
	f.mu.Unlock()
	<-entered
}

func (f *fakeRemote) StoredCart(ownerID string) domain.Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[ownerID].Clone()
}

func (f *fakeRemote) Seed(cart domain.Cart) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[cart.OwnerID] = cart.Clone()
}

func (f *fakeRemote) GetCart(_ context.Context, owner domain.Identity) (domain.Cart, error) {
	if err := f.record("get_cart"); err != nil {
		return domain.Cart{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[owner.UserID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (f *fakeRemote) CreateCart(_ context.Context, owner domain.Identity) (domain.Cart, error) {
	if err := f.record("create_cart"); err != nil {
		return domain.Cart{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cart := domain.Cart{
		ID:       fmt.Sprintf("cart-%d", f.nextID),
		OwnerID:  owner.UserID,
		Currency: currency.USD,
	}
	f.carts[owner.UserID] = cart
	return cart.Clone(), nil
}

func (f *fakeRemote) AddItem(_ context.Context, owner domain.Identity, cartID string, product domain.Product, quantity int) (domain.Cart, error) {
	if err := f.record("add_item"); err != nil {
		return domain.Cart{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.ownedCart(owner, cartID)
	if err != nil {
		return domain.Cart{}, err
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == product.ID {
			cart.Items[i].Quantity += quantity
			found = true
		}
	}
	if !found {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			ImageRef:  product.ImageRef,
		})
	}
	f.carts[owner.UserID] = cart
	return cart.Clone(), nil
}

func (f *fakeRemote) RemoveItem(_ context.Context, owner domain.Identity, cartID string, productID uuid.UUID) (domain.Cart, error) {
	if err := f.record("remove_item"); err != nil {
		return domain.Cart{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.ownedCart(owner, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart = cart.WithoutItem(productID)
	f.carts[owner.UserID] = cart
	return cart.Clone(), nil
}

func (f *fakeRemote) SetQuantity(_ context.Context, owner domain.Identity, cartID string, productID uuid.UUID, quantity int) (domain.Cart, error) {
	if err := f.record("set_quantity"); err != nil {
		return domain.Cart{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.quantity = append(f.quantity, quantity)
	cart, err := f.ownedCart(owner, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
		}
	}
	f.carts[owner.UserID] = cart
	return cart.Clone(), nil
}

func (f *fakeRemote) LookupDiscount(_ context.Context, code string) (domain.DiscountCode, error) {
	if err := f.record("lookup_discount"); err != nil {
		return domain.DiscountCode{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.discounts[code]
	if !ok {
		return domain.DiscountCode{}, domain.ErrDiscountNotFound
	}
	return rec, nil
}

func (f *fakeRemote) RequestedQuantities() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.quantity...)
}

// ownedCart must be called with f.mu held.
func (f *fakeRemote) ownedCart(owner domain.Identity, cartID string) (domain.Cart, error) {
	cart, ok := f.carts[owner.UserID]
	if !ok || cart.ID != cartID {
		return domain.Cart{}, fmt.Errorf("%w: status 404", domain.ErrRemote)
	}
	return cart.Clone(), nil
}
