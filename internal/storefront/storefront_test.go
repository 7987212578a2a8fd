package storefront_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/cartsync"
	"github.com/nikolayk812/cartsync/internal/config"
	"github.com/nikolayk812/cartsync/internal/devstore"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/projection"
	"github.com/nikolayk812/cartsync/internal/remote"
	"github.com/nikolayk812/cartsync/internal/storefront"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

// harness runs the views against a real session, remote client and
// development store. failOn makes every request under a path prefix
// answer 503, garbleOn makes them answer 200 with an HTML page.
type harness struct {
	session *cartsync.Session
	orders  *remote.Client

	mu       sync.Mutex
	failPath string
	garble   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := devstore.NewMemoryRepository()
	require.NoError(t, repo.PutDiscountCode(context.Background(), domain.DiscountCode{
		Code: "SAVE10", Percentage: decimal.NewFromInt(10), Active: true,
	}))
	store := devstore.NewHandler(repo, currency.USD, nil, nil).Routes()

	h := &harness{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		failPath, garble := h.failPath, h.garble
		h.mu.Unlock()

		if failPath != "" && strings.HasPrefix(r.URL.Path, failPath) {
			if garble {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		store.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	client := remote.New(config.RemoteConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})

	h.orders = client
	h.session = cartsync.NewSession(client, client)
	h.session.SetIdentity(domain.Identity{UserID: gofakeit.UUID()})
	return h
}

func (h *harness) failOn(prefix string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failPath, h.garble = prefix, false
}

func (h *harness) garbleOn(prefix string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failPath, h.garble = prefix, true
}

func (h *harness) heal() {
	h.failOn("")
}

func (h *harness) add(t *testing.T, price string, quantity int) domain.Product {
	t.Helper()

	product := domain.Product{
		ID:    uuid.New(),
		Name:  gofakeit.ProductName(),
		Price: domain.Money{Amount: decimal.RequireFromString(price), Currency: currency.USD},
	}
	out := storefront.AddToCart(t.Context(), h.session, product, quantity)
	require.Equal(t, storefront.Outcome{}, out)
	return product
}

func TestCartPage_Scenario(t *testing.T) {
	h := newHarness(t)
	page := storefront.NewCartPage(h.session, projection.Options{}, nil)

	require.Equal(t, storefront.Outcome{}, page.Mount(t.Context()))
	defer page.Unmount()
	assert.True(t, page.View().Cart.Empty())

	p1 := h.add(t, "10.00", 2)

	view := page.View()
	require.Len(t, view.Cart.Lines, 1)
	assert.Equal(t, 2, view.Cart.Lines[0].Quantity)
	assert.Equal(t, "USD 20.00", projection.Format(view.Cart.Subtotal))

	page.SetCodeInput(" save10 ")
	out := page.ApplyCode()
	assert.Equal(t, storefront.MessageDiscountApplied, out.Message)

	view = page.View()
	assert.Equal(t, "SAVE10", view.Cart.DiscountCode)
	assert.Equal(t, "USD 2.00", projection.Format(view.Cart.DiscountAmount))
	assert.Equal(t, "USD 18.00", projection.Format(view.Cart.Total))

	require.Equal(t, storefront.Outcome{}, page.Increment(p1.ID))
	view = page.View()
	assert.Equal(t, 3, view.Cart.Lines[0].Quantity)
	assert.Equal(t, "USD 30.00", projection.Format(view.Cart.Subtotal))

	require.Equal(t, storefront.Outcome{}, page.Decrement(p1.ID))
	require.Equal(t, storefront.Outcome{}, page.Decrement(p1.ID))
	assert.Equal(t, 1, page.View().Cart.Lines[0].Quantity)

	out = page.Decrement(p1.ID)
	assert.Equal(t, storefront.MessageQuantityFloor, out.Message)
	assert.Equal(t, storefront.MessageQuantityFloor, page.View().Message)
	assert.Equal(t, 1, page.View().Cart.Lines[0].Quantity)

	require.Equal(t, storefront.Outcome{}, page.Remove(p1.ID))
	view = page.View()
	assert.True(t, view.Cart.Empty())
	assert.Equal(t, "USD 0.00", projection.Format(view.Cart.Total))
}

func TestCartPage_InvalidCode(t *testing.T) {
	h := newHarness(t)
	page := storefront.NewCartPage(h.session, projection.Options{}, nil)
	page.Mount(t.Context())
	defer page.Unmount()

	h.add(t, "5.00", 1)

	page.SetCodeInput("INVALID")
	out := page.ApplyCode()
	assert.Equal(t, storefront.MessageInvalidCode, out.Message)
	assert.False(t, out.CanRetry)
	assert.False(t, page.View().Cart.HasDiscount())
}

func TestCartPage_BlankCodeClearsDiscount(t *testing.T) {
	h := newHarness(t)
	page := storefront.NewCartPage(h.session, projection.Options{}, nil)
	page.Mount(t.Context())
	defer page.Unmount()

	page.SetCodeInput("SAVE10")
	page.ApplyCode()
	require.True(t, page.View().Cart.HasDiscount())

	page.SetCodeInput("   ")
	out := page.ApplyCode()
	assert.Equal(t, storefront.MessageDiscountRemoved, out.Message)
	assert.False(t, page.View().Cart.HasDiscount())
	assert.Empty(t, page.View().CodeInput)
}

func TestCartPage_RemoteFailureOffersRetry(t *testing.T) {
	h := newHarness(t)
	page := storefront.NewCartPage(h.session, projection.Options{}, nil)
	page.Mount(t.Context())
	defer page.Unmount()

	p1 := h.add(t, "4.00", 1)

	h.failOn("/api/v1/carts")
	out := page.Increment(p1.ID)
	assert.Equal(t, storefront.MessageTryAgain, out.Message)
	assert.True(t, out.CanRetry)

	view := page.View()
	assert.True(t, view.CanRetry)
	assert.Equal(t, 1, view.Cart.Lines[0].Quantity)

	h.heal()
	require.Equal(t, storefront.Outcome{}, page.Retry())

	view = page.View()
	assert.False(t, view.CanRetry)
	assert.Empty(t, view.Message)
	assert.Equal(t, 2, view.Cart.Lines[0].Quantity)
}

func TestCartPage_MalformedResponseOffersRetry(t *testing.T) {
	h := newHarness(t)
	page := storefront.NewCartPage(h.session, projection.Options{}, nil)

	h.garbleOn("/api/v1/carts")
	out := page.Mount(t.Context())
	defer page.Unmount()

	assert.Equal(t, storefront.Outcome{Message: storefront.MessageTryAgain, CanRetry: true}, out)
	assert.True(t, page.View().CanRetry)
	assert.True(t, h.session.Snapshot().CanRetry)

	h.heal()
	require.Equal(t, storefront.Outcome{}, page.Retry())

	view := page.View()
	assert.False(t, view.CanRetry)
	assert.True(t, view.Cart.Empty())
	assert.NotEmpty(t, h.session.Snapshot().Cart.ID)
}

func TestCartPage_UnmountDropsResponses(t *testing.T) {
	h := newHarness(t)
	page := storefront.NewCartPage(h.session, projection.Options{}, nil)
	page.Mount(t.Context())

	p1 := h.add(t, "4.00", 1)
	page.Unmount()

	assert.Equal(t, storefront.Outcome{}, page.Increment(p1.ID))
	assert.Equal(t, 1, h.session.Snapshot().Cart.Items[0].Quantity)
}

func TestAddToCart_Unauthenticated(t *testing.T) {
	h := newHarness(t)
	h.session.SignOut()

	out := storefront.AddToCart(t.Context(), h.session, domain.Product{ID: uuid.New()}, 1)
	assert.Equal(t, storefront.RouteLogin, out.Redirect)
}

func TestCartDropdown(t *testing.T) {
	h := newHarness(t)
	dropdown := storefront.NewCartDropdown(h.session, projection.Options{})

	require.Equal(t, storefront.Outcome{}, dropdown.Mount(t.Context()))
	defer dropdown.Unmount()
	assert.True(t, dropdown.View().Empty)

	p1 := h.add(t, "2.50", 2)
	h.add(t, "1.00", 1)

	view := dropdown.View()
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, "USD 6.00", view.Total)

	require.Equal(t, storefront.Outcome{}, dropdown.Remove(p1.ID))
	view = dropdown.View()
	assert.Equal(t, 1, view.ItemCount)
	assert.Equal(t, "USD 1.00", view.Total)
}

func TestCheckoutPage_EmptyCartRedirectsToCatalog(t *testing.T) {
	h := newHarness(t)
	page := storefront.NewCheckoutPage(h.session, h.orders, projection.Options{}, nil)

	out := page.Mount(t.Context())
	defer page.Unmount()
	assert.Equal(t, storefront.RouteCatalog, out.Redirect)

	out = page.PlaceOrder()
	assert.Equal(t, storefront.RouteCatalog, out.Redirect)
}

func TestCheckoutPage_PlaceOrder(t *testing.T) {
	h := newHarness(t)
	h.add(t, "10.00", 2)
	require.NoError(t, h.session.ApplyDiscountCode(t.Context(), "SAVE10"))
	cartID := h.session.Snapshot().Cart.ID

	page := storefront.NewCheckoutPage(h.session, h.orders, projection.Options{}, nil)
	require.Equal(t, storefront.Outcome{}, page.Mount(t.Context()))
	defer page.Unmount()

	out := page.PlaceOrder()
	assert.Equal(t, storefront.MessageCheckoutDetails, out.Message)

	page.SetPaymentMethod("card")
	page.SetShippingAddress(gofakeit.Address().Address)

	out = page.PlaceOrder()
	require.NotEmpty(t, page.OrderID())
	assert.Equal(t, storefront.RouteOrders+"/"+page.OrderID(), out.Redirect)
	assert.Equal(t, page.OrderID(), page.View().OrderID)

	snap := h.session.Snapshot()
	assert.Equal(t, cartID, snap.Cart.ID)
	assert.Empty(t, snap.Cart.Items)
	assert.Nil(t, snap.Cart.Discount)

	orders, err := h.orders.ListOrders(t.Context(), snap.Identity)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "USD 18.00", projection.Format(orders[0].Total))
}

func TestCheckoutPage_RemoteFailureKeepsCart(t *testing.T) {
	h := newHarness(t)
	h.add(t, "3.00", 1)

	page := storefront.NewCheckoutPage(h.session, h.orders, projection.Options{}, nil)
	page.Mount(t.Context())
	defer page.Unmount()
	page.SetPaymentMethod("card")
	page.SetShippingAddress("1 Main St")

	h.failOn("/api/v1/orders")
	out := page.PlaceOrder()
	assert.Equal(t, storefront.MessageTryAgain, out.Message)
	assert.True(t, out.CanRetry)
	assert.Empty(t, page.OrderID())
	assert.Len(t, h.session.Snapshot().Cart.Items, 1)

	h.heal()
	out = page.PlaceOrder()
	assert.NotEmpty(t, out.Redirect)
	assert.NotEmpty(t, page.OrderID())
}

func TestCheckoutPage_Unauthenticated(t *testing.T) {
	h := newHarness(t)
	h.add(t, "3.00", 1)
	h.session.SignOut()

	page := storefront.NewCheckoutPage(h.session, h.orders, projection.Options{}, nil)
	page.Mount(t.Context())
	defer page.Unmount()

	assert.Equal(t, storefront.RouteLogin, page.PlaceOrder().Redirect)
}

func TestProfilePage(t *testing.T) {
	h := newHarness(t)
	placeOrder(t, h)

	page := storefront.NewProfilePage(h.session, h.orders, nil)
	require.Equal(t, storefront.Outcome{}, page.Mount(t.Context()))
	defer page.Unmount()

	view := page.View()
	require.Len(t, view.Orders, 1)
	assert.Equal(t, domain.OrderStatusPlaced, view.Orders[0].Status)
	assert.Equal(t, "USD 7.00", view.Orders[0].Total)
	assert.Equal(t, []storefront.StatusCount{{Status: domain.OrderStatusPlaced, Count: 1}}, view.Counts)
}

func TestProfilePage_CountsFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	placeOrder(t, h)
	h.failOn("/api/v1/orders/counts")

	page := storefront.NewProfilePage(h.session, h.orders, nil)
	require.Equal(t, storefront.Outcome{}, page.Mount(t.Context()))
	defer page.Unmount()

	view := page.View()
	assert.Len(t, view.Orders, 1)
	assert.Empty(t, view.Counts)
	assert.Empty(t, view.Message)
}

func TestProfilePage_ListFailureOffersRetry(t *testing.T) {
	h := newHarness(t)
	placeOrder(t, h)
	h.failOn("/api/v1/orders")

	page := storefront.NewProfilePage(h.session, h.orders, nil)
	out := page.Mount(t.Context())
	defer page.Unmount()

	assert.Equal(t, storefront.MessageOrdersUnavailable, out.Message)
	assert.True(t, out.CanRetry)
	assert.Empty(t, page.View().Orders)

	h.heal()
	require.Equal(t, storefront.Outcome{}, page.Retry(t.Context()))
	assert.Len(t, page.View().Orders, 1)
}

func placeOrder(t *testing.T, h *harness) {
	t.Helper()

	h.add(t, "7.00", 1)

	page := storefront.NewCheckoutPage(h.session, h.orders, projection.Options{}, nil)
	page.Mount(t.Context())
	defer page.Unmount()

	page.SetPaymentMethod("card")
	page.SetShippingAddress("1 Main St")
	require.NotEmpty(t, page.PlaceOrder().Redirect)
}
