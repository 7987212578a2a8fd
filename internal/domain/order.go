package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderRequest struct {
	CartID          string
	PaymentMethod   string
	ShippingAddress string
	DiscountCode    string
}

type Order struct {
	ID              uuid.UUID
	OwnerID         string
	CartID          string
	PaymentMethod   string
	ShippingAddress string
	DiscountCode    string
	Status          OrderStatus
	Items           []CartItem
	Total           Money

	CreatedAt time.Time
}

type OrderSummary struct {
	ID        string
	Status    OrderStatus
	Total     Money
	CreatedAt time.Time
}
