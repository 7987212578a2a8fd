package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type discountRow struct {
	Code       string          `db:"code"`
	Percentage decimal.Decimal `db:"percentage"`
	Active     bool            `db:"active"`
}

type orderRow struct {
	ID              uuid.UUID       `db:"id"`
	OwnerID         string          `db:"owner_id"`
	CartID          string          `db:"cart_id"`
	PaymentMethod   string          `db:"payment_method"`
	ShippingAddress string          `db:"shipping_address"`
	DiscountCode    string          `db:"discount_code"`
	Status          string          `db:"status"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	TotalCurrency   string          `db:"total_currency"`
	CreatedAt       time.Time       `db:"created_at"`
}

type orderItemRow struct {
	OrderID       uuid.UUID       `db:"order_id"`
	ProductID     uuid.UUID       `db:"product_id"`
	Name          string          `db:"name"`
	PriceAmount   decimal.Decimal `db:"price_amount"`
	PriceCurrency string          `db:"price_currency"`
	Quantity      int             `db:"quantity"`
	ImageRef      string          `db:"image_ref"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r *cartRepository) GetDiscountCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return domain.DiscountCode{}, fmt.Errorf("code is empty")
	}

	rows, err := r.q.Query(ctx, `SELECT code, percentage, active FROM discount_codes WHERE code = $1`, code)
	if err != nil {
		return domain.DiscountCode{}, fmt.Errorf("q.Query: %w", err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[discountRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DiscountCode{}, domain.ErrDiscountNotFound
		}
		return domain.DiscountCode{}, fmt.Errorf("pgx.CollectExactlyOneRow: %w", err)
	}

	return domain.DiscountCode{
		Code:       row.Code,
		Percentage: row.Percentage,
		Active:     row.Active,
	}, nil
}

func (r *cartRepository) PutDiscountCode(ctx context.Context, code domain.DiscountCode) error {
	code.Code = domain.NormalizeCode(code.Code)
	if code.Code == "" {
		return fmt.Errorf("code is empty")
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO discount_codes (code, percentage, active) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET percentage = EXCLUDED.percentage, active = EXCLUDED.active`,
		code.Code, code.Percentage, code.Active)
	if err != nil {
		return fmt.Errorf("q.Exec: %w", err)
	}

	return nil
}

// PlaceOrder stores the order and empties its cart in one transaction.
func (r *cartRepository) PlaceOrder(ctx context.Context, order domain.Order) error {
	if order.OwnerID == "" {
		return fmt.Errorf("ownerID is empty")
	}
	if order.CartID == "" {
		return fmt.Errorf("cartID is empty")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	_, err := withTx(ctx, r.pool, r.q, writeTx, func(q querier) (struct{}, error) {
		if err := emptyCart(ctx, q, order.CartID); err != nil {
			return struct{}{}, err
		}

		_, err := q.Exec(ctx, `
			INSERT INTO orders (id, owner_id, cart_id, payment_method, shipping_address, discount_code,
			                    status, total_amount, total_currency, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			order.ID,
			order.OwnerID,
			order.CartID,
			order.PaymentMethod,
			order.ShippingAddress,
			order.DiscountCode,
			string(order.Status),
			order.Total.Amount,
			order.Total.Currency.String(),
			order.CreatedAt,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("q.Exec orders: %w", err)
		}

		for _, item := range order.Items {
			createdAt := item.CreatedAt
			if createdAt.IsZero() {
				createdAt = order.CreatedAt
			}

			_, err := q.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, name, price_amount, price_currency, quantity, image_ref, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				order.ID,
				item.ProductID,
				item.Name,
				item.UnitPrice.Amount,
				item.UnitPrice.Currency.String(),
				item.Quantity,
				item.ImageRef,
				createdAt,
			)
			if err != nil {
				return struct{}{}, fmt.Errorf("q.Exec order_items: %w", err)
			}
		}

		return struct{}{}, nil
	})
	return err
}

// ListOrders returns the owner's orders, newest first.
func (r *cartRepository) ListOrders(ctx context.Context, ownerID string) ([]domain.Order, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("ownerID is empty")
	}

	return withTx(ctx, r.pool, r.q, readTx, func(q querier) ([]domain.Order, error) {
		rows, err := q.Query(ctx, `
			SELECT id, owner_id, cart_id, payment_method, shipping_address, discount_code,
			       status, total_amount, total_currency, created_at
			FROM orders
			WHERE owner_id = $1
			ORDER BY created_at DESC`, ownerID)
		if err != nil {
			return nil, fmt.Errorf("q.Query orders: %w", err)
		}

		dbOrders, err := pgx.CollectRows(rows, pgx.RowToStructByName[orderRow])
		if err != nil {
			return nil, fmt.Errorf("pgx.CollectRows orders: %w", err)
		}
		if len(dbOrders) == 0 {
			return nil, nil
		}

		ids := make([]string, 0, len(dbOrders))
		for _, o := range dbOrders {
			ids = append(ids, o.ID.String())
		}

		itemRows, err := q.Query(ctx, `
			SELECT order_id, product_id, name, price_amount, price_currency, quantity, image_ref, created_at
			FROM order_items
			WHERE order_id = ANY($1::uuid[])
			ORDER BY created_at, product_id`, ids)
		if err != nil {
			return nil, fmt.Errorf("q.Query order_items: %w", err)
		}

		dbItems, err := pgx.CollectRows(itemRows, pgx.RowToStructByName[orderItemRow])
		if err != nil {
			return nil, fmt.Errorf("pgx.CollectRows order_items: %w", err)
		}

		itemsByOrder := make(map[uuid.UUID][]domain.CartItem)
		for _, row := range dbItems {
			item, err := mapCartItemRowToDomain(cartItemRow{
				ProductID:     row.ProductID,
				Name:          row.Name,
				PriceAmount:   row.PriceAmount,
				PriceCurrency: row.PriceCurrency,
				Quantity:      row.Quantity,
				ImageRef:      row.ImageRef,
				CreatedAt:     row.CreatedAt,
			})
			if err != nil {
				return nil, fmt.Errorf("mapCartItemRowToDomain: %w", err)
			}
			itemsByOrder[row.OrderID] = append(itemsByOrder[row.OrderID], item)
		}

		orders := make([]domain.Order, 0, len(dbOrders))
		for _, row := range dbOrders {
			order, err := mapOrderRowToDomain(row)
			if err != nil {
				return nil, fmt.Errorf("mapOrderRowToDomain: %w", err)
			}
			order.Items = itemsByOrder[row.ID]
			orders = append(orders, order)
		}

		return orders, nil
	})
}

func mapOrderRowToDomain(row orderRow) (domain.Order, error) {
	parsedCurrency, err := currency.ParseISO(row.TotalCurrency)
	if err != nil {
		return domain.Order{}, fmt.Errorf("currency[%s] is not valid: %w", row.TotalCurrency, err)
	}

	return domain.Order{
		ID:              row.ID,
		OwnerID:         row.OwnerID,
		CartID:          row.CartID,
		PaymentMethod:   row.PaymentMethod,
		ShippingAddress: row.ShippingAddress,
		DiscountCode:    row.DiscountCode,
		Status:          domain.OrderStatus(row.Status),
		Total:           domain.Money{Amount: row.TotalAmount, Currency: parsedCurrency},
		CreatedAt:       row.CreatedAt,
	}, nil
}
