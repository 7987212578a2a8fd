// Package remote is the REST client for the cart, discount and order
// collaborators. Every response passes through package wire before it
// reaches the caller.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/config"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/nikolayk812/cartsync/internal/port"
	"github.com/nikolayk812/cartsync/internal/wire"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	_ port.CartRemote     = (*Client)(nil)
	_ port.DiscountLookup = (*Client)(nil)
	_ port.OrderService   = (*Client)(nil)
)

type Option func(*options)

type options struct {
	transport http.RoundTripper
	log       *slog.Logger
}

// WithTransport replaces the base transport wrapped by otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	log     *slog.Logger
}

// New builds a client. Calls are never retried; with the breaker enabled a
// run of failures makes later calls fail fast until the breaker half-opens.
func New(cfg config.RemoteConfig, opts ...Option) *Client {
	o := options{
		transport: http.DefaultTransport,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTransport(otelhttp.NewTransport(o.transport)).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}

	c := &Client{http: rc, log: o.log}

	if cfg.Breaker.Enabled {
		maxFailures := cfg.Breaker.MaxFailures
		c.breaker = gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
			Name:    "cart-remote",
			Timeout: cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				o.log.Warn("circuit breaker state changed",
					slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
			},
		})
	}

	return c
}

func (c *Client) GetCart(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	resp, err := c.do(ctx, "get_cart", &owner, http.MethodGet, "/api/v1/carts", func(r *resty.Request) {
		r.SetQueryParam("owner_id", owner.UserID)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if err := checkStatus(resp, domain.ErrCartNotFound); err != nil {
		return domain.Cart{}, err
	}

	return decodeCart(resp, owner.UserID)
}

func (c *Client) CreateCart(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	resp, err := c.do(ctx, "create_cart", &owner, http.MethodPost, "/api/v1/carts", func(r *resty.Request) {
		r.SetBody(wire.CreateCartRequest{OwnerID: owner.UserID})
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if err := checkStatus(resp, nil); err != nil {
		return domain.Cart{}, err
	}

	return decodeCart(resp, owner.UserID)
}

func (c *Client) AddItem(ctx context.Context, owner domain.Identity, cartID string, product domain.Product, quantity int) (domain.Cart, error) {
	resp, err := c.do(ctx, "add_item", &owner, http.MethodPost, "/api/v1/carts/{cartID}/items", func(r *resty.Request) {
		r.SetPathParam("cartID", cartID).
			SetBody(wire.EncodeAddItem(product, quantity))
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if err := checkStatus(resp, domain.ErrCartNotFound); err != nil {
		return domain.Cart{}, err
	}

	return decodeCart(resp, owner.UserID)
}

func (c *Client) RemoveItem(ctx context.Context, owner domain.Identity, cartID string, productID uuid.UUID) (domain.Cart, error) {
	resp, err := c.do(ctx, "remove_item", &owner, http.MethodDelete, "/api/v1/carts/{cartID}/items/{productID}", func(r *resty.Request) {
		r.SetPathParams(map[string]string{
			"cartID":    cartID,
			"productID": productID.String(),
		})
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if err := checkStatus(resp, domain.ErrCartNotFound); err != nil {
		return domain.Cart{}, err
	}

	return decodeCart(resp, owner.UserID)
}

func (c *Client) SetQuantity(ctx context.Context, owner domain.Identity, cartID string, productID uuid.UUID, quantity int) (domain.Cart, error) {
	resp, err := c.do(ctx, "set_quantity", &owner, http.MethodPut, "/api/v1/carts/{cartID}/items/{productID}", func(r *resty.Request) {
		r.SetPathParams(map[string]string{
			"cartID":    cartID,
			"productID": productID.String(),
		}).SetBody(wire.SetQuantityRequest{Quantity: quantity})
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if err := checkStatus(resp, domain.ErrCartNotFound); err != nil {
		return domain.Cart{}, err
	}

	return decodeCart(resp, owner.UserID)
}

func (c *Client) LookupDiscount(ctx context.Context, code string) (domain.DiscountCode, error) {
	resp, err := c.do(ctx, "lookup_discount", nil, http.MethodGet, "/api/v1/discount-codes/{code}", func(r *resty.Request) {
		r.SetPathParam("code", code)
	})
	if err != nil {
		return domain.DiscountCode{}, err
	}
	if err := checkStatus(resp, domain.ErrDiscountNotFound); err != nil {
		return domain.DiscountCode{}, err
	}

	var dto wire.DiscountCode
	if err := decodeBody(resp, &dto); err != nil {
		return domain.DiscountCode{}, err
	}

	return wire.DecodeDiscountCode(dto), nil
}

func (c *Client) CreateOrder(ctx context.Context, owner domain.Identity, req domain.OrderRequest) (string, error) {
	resp, err := c.do(ctx, "create_order", &owner, http.MethodPost, "/api/v1/orders", func(r *resty.Request) {
		r.SetBody(wire.CreateOrderRequest{
			CartID:          req.CartID,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: req.ShippingAddress,
			DiscountCode:    req.DiscountCode,
		})
	})
	if err != nil {
		return "", err
	}
	if err := checkStatus(resp, domain.ErrCartNotFound); err != nil {
		return "", err
	}

	var dto wire.OrderCreated
	if err := decodeBody(resp, &dto); err != nil {
		return "", err
	}
	if dto.OrderID == "" {
		return "", fmt.Errorf("%w: %w: order id is empty", domain.ErrRemote, domain.ErrMalformedResponse)
	}

	return dto.OrderID, nil
}

func (c *Client) ListOrders(ctx context.Context, owner domain.Identity) ([]domain.OrderSummary, error) {
	resp, err := c.do(ctx, "list_orders", &owner, http.MethodGet, "/api/v1/orders", nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, nil); err != nil {
		return nil, err
	}

	var dto []wire.OrderSummary
	if err := decodeBody(resp, &dto); err != nil {
		return nil, err
	}

	return wire.DecodeOrderSummaries(dto)
}

func (c *Client) CountOrdersByStatus(ctx context.Context, owner domain.Identity) (map[domain.OrderStatus]int, error) {
	resp, err := c.do(ctx, "count_orders", &owner, http.MethodGet, "/api/v1/orders/counts", nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, nil); err != nil {
		return nil, err
	}

	var dto map[string]int
	if err := decodeBody(resp, &dto); err != nil {
		return nil, err
	}

	counts := make(map[domain.OrderStatus]int, len(dto))
	for status, n := range dto {
		counts[domain.OrderStatus(status)] = n
	}
	return counts, nil
}

// do sends one request. Transport failures, 5xx responses and an open
// breaker all come back wrapped in domain.ErrRemote.
func (c *Client) do(
	ctx context.Context,
	op string,
	owner *domain.Identity,
	method, path string,
	build func(r *resty.Request),
) (*resty.Response, error) {
	requestID := logger.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader(wire.HeaderRequestID, requestID)
	if owner != nil {
		req.SetHeader(wire.HeaderUserID, owner.UserID)
		if owner.Token != "" {
			req.SetAuthToken(owner.Token)
		}
	}
	if build != nil {
		build(req)
	}

	resp, err := c.execute(req, method, path)
	if err != nil {
		c.log.Debug("remote call failed",
			slog.String("op", op), slog.String("request_id", requestID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRemote, op, err)
	}

	return resp, nil
}

func (c *Client) execute(req *resty.Request, method, path string) (*resty.Response, error) {
	call := func() (*resty.Response, error) {
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode(), errorMessage(resp))
		}
		return resp, nil
	}

	if c.breaker == nil {
		return call()
	}
	return c.breaker.Execute(call)
}

// checkStatus maps non-2xx responses below 500 onto domain errors.
// notFound is returned for 404 when non-nil.
func checkStatus(resp *resty.Response, notFound error) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}

	var body wire.ErrorResponse
	_ = json.Unmarshal(resp.Body(), &body)

	switch {
	case code == http.StatusUnauthorized:
		return domain.ErrNotAuthenticated
	case code == http.StatusNotFound && notFound != nil:
		return notFound
	case body.Code == wire.CodeEmptyCart:
		return domain.ErrEmptyCart
	case body.Code == wire.CodeInvalidDiscountCode:
		return fmt.Errorf("%w: %s", domain.ErrInvalidDiscountCode, body.Error)
	case body.Code == wire.CodeInvalidQuantity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, body.Error)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrRemote, code, errorMessage(resp))
	}
}

func errorMessage(resp *resty.Response) string {
	var body wire.ErrorResponse
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		return body.Error
	}
	return http.StatusText(resp.StatusCode())
}

// A payload the client cannot use is a failed call like any other, so
// decoding errors carry ErrRemote as well as ErrMalformedResponse.
func decodeBody(resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("%w: %w: %v", domain.ErrRemote, domain.ErrMalformedResponse, err)
	}
	return nil
}

func decodeCart(resp *resty.Response, ownerID string) (domain.Cart, error) {
	var dto wire.Cart
	if err := decodeBody(resp, &dto); err != nil {
		return domain.Cart{}, err
	}

	cart, err := wire.DecodeCart(dto, ownerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: wire.DecodeCart: %w", domain.ErrRemote, err)
	}
	return cart, nil
}

// IsBreakerOpen reports whether err came from an open or saturated breaker.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
