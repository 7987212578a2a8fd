package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/port"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const foreignKeyViolation = "23503"

type cartRepository struct {
	q    querier
	pool *pgxpool.Pool
}

func NewCart(pool *pgxpool.Pool) (port.CartRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &cartRepository{
		q:    pool,
		pool: pool,
	}, nil
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{
		q:    tx,
		pool: nil, // use provided transaction instead
	}
}

type cartRow struct {
	ID       string `db:"id"`
	OwnerID  string `db:"owner_id"`
	Currency string `db:"currency"`
}

type cartItemRow struct {
	ProductID     uuid.UUID       `db:"product_id"`
	Name          string          `db:"name"`
	PriceAmount   decimal.Decimal `db:"price_amount"`
	PriceCurrency string          `db:"price_currency"`
	Quantity      int             `db:"quantity"`
	ImageRef      string          `db:"image_ref"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r *cartRepository) GetCartByOwner(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	return withTx(ctx, r.pool, r.q, readTx, func(q querier) (domain.Cart, error) {
		return getCart(ctx, q, "owner_id", ownerID)
	})
}

func (r *cartRepository) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	if cartID == "" {
		return domain.Cart{}, fmt.Errorf("cartID is empty")
	}

	return withTx(ctx, r.pool, r.q, readTx, func(q querier) (domain.Cart, error) {
		return getCart(ctx, q, "id", cartID)
	})
}

// CreateCart returns the owner's existing cart when there is one.
func (r *cartRepository) CreateCart(ctx context.Context, ownerID string, cur currency.Unit) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	return withTx(ctx, r.pool, r.q, writeTx, func(q querier) (domain.Cart, error) {
		_, err := q.Exec(ctx,
			`INSERT INTO carts (id, owner_id, currency) VALUES ($1, $2, $3) ON CONFLICT (owner_id) DO NOTHING`,
			uuid.NewString(), ownerID, cur.String())
		if err != nil {
			return domain.Cart{}, fmt.Errorf("q.Exec: %w", err)
		}

		return getCart(ctx, q, "owner_id", ownerID)
	})
}

// AddItem merges into an existing line, refreshing its snapshot fields.
func (r *cartRepository) AddItem(ctx context.Context, cartID string, item domain.CartItem) error {
	if cartID == "" {
		return fmt.Errorf("cartID is empty")
	}
	if item.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, name, price_amount, price_currency, quantity, image_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity       = cart_items.quantity + EXCLUDED.quantity,
		    name           = EXCLUDED.name,
		    price_amount   = EXCLUDED.price_amount,
		    price_currency = EXCLUDED.price_currency,
		    image_ref      = EXCLUDED.image_ref`,
		cartID,
		item.ProductID,
		item.Name,
		item.UnitPrice.Amount,
		item.UnitPrice.Currency.String(),
		item.Quantity,
		item.ImageRef,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.ErrCartNotFound
		}
		return fmt.Errorf("q.Exec: %w", err)
	}

	return nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, cartID string, productID uuid.UUID, quantity int) (bool, error) {
	if cartID == "" {
		return false, fmt.Errorf("cartID is empty")
	}
	if quantity < 1 {
		return false, domain.ErrInvalidQuantity
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("q.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID string, productID uuid.UUID) (bool, error) {
	if cartID == "" {
		return false, fmt.Errorf("cartID is empty")
	}

	tag, err := r.q.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID)
	if err != nil {
		return false, fmt.Errorf("q.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// emptyCart deletes every line of an existing cart. It fails with
// ErrEmptyCart when there was nothing to delete, so an order cannot be
// placed twice for the same lines.
func emptyCart(ctx context.Context, q querier, cartID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM carts WHERE id = $1)`, cartID).Scan(&exists); err != nil {
		return fmt.Errorf("row.Scan: %w", err)
	}
	if !exists {
		return domain.ErrCartNotFound
	}

	tag, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("q.Exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmptyCart
	}
	return nil
}

// getCart looks the cart up by column, which is one of "id" or "owner_id".
func getCart(ctx context.Context, q querier, column, value string) (domain.Cart, error) {
	rows, err := q.Query(ctx, `SELECT id, owner_id, currency FROM carts WHERE `+column+` = $1`, value)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.Query: %w", err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[cartRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("pgx.CollectExactlyOneRow: %w", err)
	}

	cur, err := currency.ParseISO(row.Currency)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("currency[%s] is not valid: %w", row.Currency, err)
	}

	itemRows, err := q.Query(ctx, `
		SELECT product_id, name, price_amount, price_currency, quantity, image_ref, created_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at, product_id`, row.ID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.Query: %w", err)
	}

	dbItems, err := pgx.CollectRows(itemRows, pgx.RowToStructByName[cartItemRow])
	if err != nil {
		return domain.Cart{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}

	items, err := mapCartItemRowsToDomain(dbItems)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("mapCartItemRowsToDomain: %w", err)
	}

	return domain.Cart{
		ID:       row.ID,
		OwnerID:  row.OwnerID,
		Currency: cur,
		Items:    items,
	}, nil
}

func mapCartItemRowToDomain(row cartItemRow) (domain.CartItem, error) {
	parsedCurrency, err := currency.ParseISO(row.PriceCurrency)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("currency[%s] is not valid: %w", row.PriceCurrency, err)
	}

	return domain.CartItem{
		ProductID: row.ProductID,
		Name:      row.Name,
		UnitPrice: domain.Money{Amount: row.PriceAmount, Currency: parsedCurrency},
		Quantity:  row.Quantity,
		ImageRef:  row.ImageRef,
		CreatedAt: row.CreatedAt,
	}, nil
}

func mapCartItemRowsToDomain(rows []cartItemRow) ([]domain.CartItem, error) {
	var items []domain.CartItem

	for _, row := range rows {
		item, err := mapCartItemRowToDomain(row)
		if err != nil {
			return nil, fmt.Errorf("mapCartItemRowToDomain: %w", err)
		}

		items = append(items, item)
	}

	return items, nil
}
