package devstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/port"
	"golang.org/x/text/currency"
)

type memoryRepository struct {
	mu sync.RWMutex

	carts     map[string]domain.Cart
	owners    map[string]string
	discounts map[string]domain.DiscountCode
	orders    []domain.Order

	now func() time.Time
}

// NewMemoryRepository keeps everything in process memory. Used when no DSN is configured.
func NewMemoryRepository() port.CartRepository {
	return &memoryRepository{
		carts:     make(map[string]domain.Cart),
		owners:    make(map[string]string),
		discounts: make(map[string]domain.DiscountCode),
		now:       time.Now,
	}
}

func (r *memoryRepository) GetCartByOwner(_ context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cartID, ok := r.owners[ownerID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return r.carts[cartID].Clone(), nil
}

func (r *memoryRepository) GetCart(_ context.Context, cartID string) (domain.Cart, error) {
	if cartID == "" {
		return domain.Cart{}, fmt.Errorf("cartID is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[cartID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (r *memoryRepository) CreateCart(_ context.Context, ownerID string, cur currency.Unit) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cartID, ok := r.owners[ownerID]; ok {
		return r.carts[cartID].Clone(), nil
	}

	cart := domain.Cart{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Currency: cur,
	}
	r.carts[cart.ID] = cart
	r.owners[ownerID] = cart.ID

	return cart.Clone(), nil
}

// AddItem merges into an existing line, refreshing its snapshot fields.
func (r *memoryRepository) AddItem(_ context.Context, cartID string, item domain.CartItem) error {
	if cartID == "" {
		return fmt.Errorf("cartID is empty")
	}
	if item.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart = cart.Clone()

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Quantity += item.Quantity
			cart.Items[i].Name = item.Name
			cart.Items[i].UnitPrice = item.UnitPrice
			cart.Items[i].ImageRef = item.ImageRef
			merged = true
			break
		}
	}
	if !merged {
		item.CreatedAt = r.now()
		cart.Items = append(cart.Items, item)
	}

	r.carts[cartID] = cart
	return nil
}

func (r *memoryRepository) SetQuantity(_ context.Context, cartID string, productID uuid.UUID, quantity int) (bool, error) {
	if cartID == "" {
		return false, fmt.Errorf("cartID is empty")
	}
	if quantity < 1 {
		return false, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartID]
	if !ok {
		return false, nil
	}
	cart = cart.Clone()

	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			r.carts[cartID] = cart
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) DeleteItem(_ context.Context, cartID string, productID uuid.UUID) (bool, error) {
	if cartID == "" {
		return false, fmt.Errorf("cartID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartID]
	if !ok {
		return false, nil
	}
	if _, found := cart.Item(productID); !found {
		return false, nil
	}

	r.carts[cartID] = cart.WithoutItem(productID)
	return true, nil
}

func (r *memoryRepository) GetDiscountCode(_ context.Context, code string) (domain.DiscountCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.discounts[domain.NormalizeCode(code)]
	if !ok {
		return domain.DiscountCode{}, domain.ErrDiscountNotFound
	}
	return rec, nil
}

func (r *memoryRepository) PutDiscountCode(_ context.Context, code domain.DiscountCode) error {
	code.Code = domain.NormalizeCode(code.Code)
	if code.Code == "" {
		return fmt.Errorf("code is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.discounts[code.Code] = code
	return nil
}

func (r *memoryRepository) PlaceOrder(_ context.Context, order domain.Order) error {
	if order.OwnerID == "" {
		return fmt.Errorf("ownerID is empty")
	}
	if order.CartID == "" {
		return fmt.Errorf("cartID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[order.CartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if cart.IsEmpty() {
		return domain.ErrEmptyCart
	}
	cart.Items = nil
	r.carts[order.CartID] = cart

	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now()
	}
	order.Items = append([]domain.CartItem(nil), order.Items...)
	r.orders = append(r.orders, order)
	return nil
}

// ListOrders returns the owner's orders, newest first.
func (r *memoryRepository) ListOrders(_ context.Context, ownerID string) ([]domain.Order, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("ownerID is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []domain.Order
	for _, o := range r.orders {
		if o.OwnerID == ownerID {
			orders = append(orders, o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}
