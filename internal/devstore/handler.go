// Package devstore is a reference implementation of the remote cart store
// contract, for local development and end-to-end tests.
package devstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/nikolayk812/cartsync/internal/metrics"
	"github.com/nikolayk812/cartsync/internal/port"
	"github.com/nikolayk812/cartsync/internal/wire"
	"golang.org/x/text/currency"
)

const maxQuantity = 99

type ctxKey struct{}

type Handler struct {
	repo     port.CartRepository
	currency currency.Unit
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(repo port.CartRepository, cur currency.Unit, log *slog.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		repo:     repo,
		currency: cur,
		log:      log,
		metrics:  m,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/discount-codes/{code}", h.LookupDiscount)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/carts", h.GetCart)
			r.Post("/carts", h.CreateCart)
			r.Post("/carts/{cartID}/items", h.AddItem)
			r.Put("/carts/{cartID}/items/{productID}", h.SetQuantity)
			r.Delete("/carts/{cartID}/items/{productID}", h.RemoveItem)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/counts", h.CountOrders)
		})
	})

	return r
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	if owner := r.URL.Query().Get("owner_id"); owner != "" && owner != userID {
		respondError(w, http.StatusNotFound, wire.CodeNotFound, "cart not found")
		return
	}

	cart, err := h.repo.GetCartByOwner(r.Context(), userID)
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, wire.EncodeCart(cart))
}

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req wire.CreateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.OwnerID != userID {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "owner_id must match the authenticated user")
		return
	}

	cart, err := h.repo.CreateCart(r.Context(), userID, h.currency)
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, wire.EncodeCart(cart))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	var req wire.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "invalid JSON body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidProductID, "product_id must be a uuid")
		return
	}
	if !validQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidQuantity, "quantity must be between 1 and 99")
		return
	}
	if req.UnitPrice == nil {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "unit_price is required")
		return
	}
	price, err := wire.DecodeMoney(*req.UnitPrice)
	if err != nil || price.Currency != cart.Currency || price.Amount.IsNegative() {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "unit_price must be non-negative and in "+cart.Currency.String())
		return
	}

	if existing, found := cart.Item(productID); found && !validQuantity(existing.Quantity+req.Quantity) {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidQuantity, "quantity must be between 1 and 99")
		return
	}

	err = h.repo.AddItem(r.Context(), cart.ID, domain.CartItem{
		ProductID: productID,
		Name:      req.Name,
		UnitPrice: price,
		Quantity:  req.Quantity,
		ImageRef:  req.ImageRef,
	})
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}

	h.respondCart(w, r, cart.ID)
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req wire.SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "invalid JSON body")
		return
	}
	if !validQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidQuantity, "quantity must be between 1 and 99")
		return
	}

	updated, err := h.repo.SetQuantity(r.Context(), cart.ID, productID, req.Quantity)
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, wire.CodeNotFound, "item not found")
		return
	}

	h.respondCart(w, r, cart.ID)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	deleted, err := h.repo.DeleteItem(r.Context(), cart.ID, productID)
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, wire.CodeNotFound, "item not found")
		return
	}

	h.respondCart(w, r, cart.ID)
}

func (h *Handler) LookupDiscount(w http.ResponseWriter, r *http.Request) {
	code, err := h.repo.GetDiscountCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, wire.EncodeDiscountCode(code))
}

// CreateOrder charges the stored cart, not anything the client computed:
// the discount code is looked up again and the total recomputed here.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req wire.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PaymentMethod) == "" || strings.TrimSpace(req.ShippingAddress) == "" {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidRequest, "payment_method and shipping_address are required")
		return
	}

	cart, err := h.repo.GetCart(r.Context(), req.CartID)
	if err != nil || cart.OwnerID != userID {
		if err == nil || errors.Is(err, domain.ErrCartNotFound) {
			respondError(w, http.StatusNotFound, wire.CodeNotFound, "cart not found")
			return
		}
		h.handleRepoError(w, r, err)
		return
	}
	if cart.IsEmpty() {
		respondError(w, http.StatusUnprocessableEntity, wire.CodeEmptyCart, "cart is empty")
		return
	}

	if code := domain.NormalizeCode(req.DiscountCode); code != "" {
		rec, err := h.repo.GetDiscountCode(r.Context(), code)
		if err != nil && !errors.Is(err, domain.ErrDiscountNotFound) {
			h.handleRepoError(w, r, err)
			return
		}
		if err != nil || !rec.Usable() {
			respondError(w, http.StatusUnprocessableEntity, wire.CodeInvalidDiscountCode, "discount code "+code+" is not valid")
			return
		}
		cart.Discount = &domain.Discount{Code: rec.Code, Percentage: rec.Percentage}
	}

	order := domain.Order{
		ID:              uuid.New(),
		OwnerID:         userID,
		CartID:          cart.ID,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		Status:          domain.OrderStatusPlaced,
		Items:           cart.Items,
		Total:           cart.Total(),
		CreatedAt:       time.Now().UTC(),
	}
	if cart.Discount != nil {
		order.DiscountCode = cart.Discount.Code
	}

	if err := h.repo.PlaceOrder(r.Context(), order); err != nil {
		h.handleRepoError(w, r, err)
		return
	}

	logger.WithContext(r.Context(), h.log).Info("order placed",
		slog.String("order_id", order.ID.String()),
		slog.String("total", order.Total.Amount.String()))

	respondJSON(w, http.StatusCreated, wire.OrderCreated{OrderID: order.ID.String()})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.ListOrders(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}

	summaries := make([]wire.OrderSummary, 0, len(orders))
	for _, o := range orders {
		summaries = append(summaries, wire.EncodeOrderSummary(o))
	}

	respondJSON(w, http.StatusOK, summaries)
}

func (h *Handler) CountOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.ListOrders(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}

	counts := make(map[string]int)
	for _, o := range orders {
		counts[string(o.Status)]++
	}

	respondJSON(w, http.StatusOK, counts)
}

// ownedCart loads the {cartID} cart and answers 404 unless the caller owns it.
func (h *Handler) ownedCart(w http.ResponseWriter, r *http.Request) (domain.Cart, bool) {
	cart, err := h.repo.GetCart(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		h.handleRepoError(w, r, err)
		return domain.Cart{}, false
	}
	if cart.OwnerID != userIDFromContext(r.Context()) {
		respondError(w, http.StatusNotFound, wire.CodeNotFound, "cart not found")
		return domain.Cart{}, false
	}
	return cart, true
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, cartID string) {
	cart, err := h.repo.GetCart(r.Context(), cartID)
	if err != nil {
		h.handleRepoError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wire.EncodeCart(cart))
}

func (h *Handler) handleRepoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrCartNotFound):
		respondError(w, http.StatusNotFound, wire.CodeNotFound, "cart not found")
	case errors.Is(err, domain.ErrDiscountNotFound):
		respondError(w, http.StatusNotFound, wire.CodeNotFound, "discount code not found")
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, wire.CodeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, wire.CodeEmptyCart, "cart is empty")
	default:
		logger.WithContext(r.Context(), h.log).Error("repository error", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, wire.CodeInternal, "internal server error")
	}
}

// observe tags the context with chi's request id and counts requests by route.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.HTTPRequest(route, strconv.Itoa(ww.Status()))
	})
}

// requireUser trusts the X-User-ID header; authentication is not this store's job.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(wire.HeaderUserID))
		if userID == "" {
			respondError(w, http.StatusUnauthorized, wire.CodeUnauthorized, "missing user authentication")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(ctxKey{}).(string)
	return userID
}

func productIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, wire.CodeInvalidProductID, "product_id must be a uuid")
		return uuid.UUID{}, false
	}
	return productID, true
}

func validQuantity(q int) bool {
	return q >= 1 && q <= maxQuantity
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, wire.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
