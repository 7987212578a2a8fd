// Package wire defines the JSON contract between the storefront client and
// the remote cart store, and the one place where responses are normalized
// into domain values.
package wire

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeUnauthorized        = "unauthorized"
	CodeInvalidRequest      = "invalid_request"
	CodeInvalidQuantity     = "invalid_quantity"
	CodeInvalidProductID    = "invalid_product_id"
	CodeNotFound            = "not_found"
	CodeEmptyCart           = "empty_cart"
	CodeInvalidDiscountCode = "invalid_discount_code"
	CodeInternal            = "internal_error"
)

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"image_ref,omitempty"`
}

type Cart struct {
	ID       string     `json:"id"`
	OwnerID  string     `json:"owner_id"`
	Currency string     `json:"currency"`
	Items    []CartItem `json:"items"`
}

type CreateCartRequest struct {
	OwnerID string `json:"owner_id"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name,omitempty"`
	UnitPrice *Money `json:"unit_price,omitempty"`
	ImageRef  string `json:"image_ref,omitempty"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type DiscountCode struct {
	Code       string          `json:"code"`
	Percentage decimal.Decimal `json:"percentage"`
	IsActive   bool            `json:"is_active"`
}

type CreateOrderRequest struct {
	CartID          string `json:"cart_id"`
	PaymentMethod   string `json:"payment_method"`
	ShippingAddress string `json:"shipping_address"`
	DiscountCode    string `json:"discount_code,omitempty"`
}

type OrderCreated struct {
	OrderID string `json:"order_id"`
}

type OrderSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Total     Money     `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
