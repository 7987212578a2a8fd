package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/devstore"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/port"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func startStore(t *testing.T) {
	t.Helper()
	startStoreOn(t, devstore.NewMemoryRepository())
}

func startStoreOn(t *testing.T, repo port.CartRepository) {
	t.Helper()

	require.NoError(t, repo.PutDiscountCode(context.Background(), domain.DiscountCode{
		Code: "SAVE10", Percentage: decimal.NewFromInt(10), Active: true,
	}))

	srv := httptest.NewServer(devstore.NewHandler(repo, currency.USD, nil, nil).Routes())
	t.Cleanup(srv.Close)

	t.Setenv("CARTSYNC_REMOTE_BASE_URL", srv.URL)
	t.Setenv("CARTSYNC_LOGGER_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestStorefront_CartAndCheckout(t *testing.T) {
	startStore(t)
	productID := uuid.NewString()

	out, err := execute(t, "cart", "show", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "cart is empty")

	out, err = execute(t, "cart", "add", "--user", "u1",
		"--product-id", productID, "--name", "Mug", "--price", "10.00", "--qty", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Mug")
	assert.Contains(t, out, "subtotal:  USD 20.00")

	out, err = execute(t, "cart", "inc", productID, "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "total:     USD 30.00")

	out, err = execute(t, "cart", "dec", productID, "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "total:     USD 20.00")

	out, err = execute(t, "cart", "show", "--user", "u1", "--discount", "save10")
	require.NoError(t, err)
	assert.Contains(t, out, "total:     USD 18.00")

	_, err = execute(t, "cart", "show", "--user", "u1", "--discount", "BOGUS")
	require.Error(t, err)

	out, err = execute(t, "checkout", "--user", "u1",
		"--payment", "card", "--address", "1 Main St", "--discount", "SAVE10")
	require.NoError(t, err)
	assert.Contains(t, out, "order id:")

	out, err = execute(t, "orders", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "USD 18.00")
	assert.Contains(t, out, "placed: 1")

	_, err = execute(t, "checkout", "--user", "u1", "--payment", "card", "--address", "1 Main St")
	require.EqualError(t, err, "the cart is empty: add something first")
}

func TestStorefront_RequiresUser(t *testing.T) {
	startStore(t)
	t.Setenv("CARTSYNC_IDENTITY_USER_ID", "")

	_, err := execute(t, "cart", "add", "--product-id", uuid.NewString(), "--price", "1")
	require.EqualError(t, err, "not signed in: pass --user or set CARTSYNC_IDENTITY_USER_ID")
}

func TestStorefront_BadProductID(t *testing.T) {
	startStore(t)

	_, err := execute(t, "cart", "remove", "not-a-uuid", "--user", "u1")
	require.ErrorContains(t, err, "product id[not-a-uuid] is not a uuid")
}

func TestStorefront_CheckoutRequiresDetails(t *testing.T) {
	startStore(t)

	_, err := execute(t, "cart", "add", "--user", "u1", "--product-id", uuid.NewString(), "--price", "5")
	require.NoError(t, err)

	out, err := execute(t, "checkout", "--user", "u1")
	require.EqualError(t, err, "no order was placed: Payment method and shipping address are required.")
	assert.NotContains(t, out, "order id:")

	out, err = execute(t, "orders", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "no orders yet")

	out, err = execute(t, "cart", "show", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "items:     1")
}

// expiringCodes deactivates every discount code after its first lookup.
type expiringCodes struct {
	port.CartRepository
	lookups atomic.Int32
}

func (r *expiringCodes) GetDiscountCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	rec, err := r.CartRepository.GetDiscountCode(ctx, code)
	if err == nil && r.lookups.Add(1) > 1 {
		rec.Active = false
	}
	return rec, err
}

func TestStorefront_CheckoutCodeRejectedByStore(t *testing.T) {
	startStoreOn(t, &expiringCodes{CartRepository: devstore.NewMemoryRepository()})

	_, err := execute(t, "cart", "add", "--user", "u1", "--product-id", uuid.NewString(), "--price", "10")
	require.NoError(t, err)

	out, err := execute(t, "checkout", "--user", "u1",
		"--payment", "card", "--address", "1 Main St", "--discount", "SAVE10")
	require.EqualError(t, err, "no order was placed: This discount code is not valid.")
	assert.NotContains(t, out, "order id:")

	out, err = execute(t, "orders", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "no orders yet")
}
