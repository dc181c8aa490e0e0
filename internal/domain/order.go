package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fixed set of order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusConfirmed     OrderStatus = "confirmed"
	OrderStatusManufacturing OrderStatus = "manufacturing"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusManufacturing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is a purchased line item. Name and Price are snapshots captured
// at order creation so historical totals survive later catalog changes.
type OrderItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	Price     float64   `json:"price" db:"price"`
	Quantity  int       `json:"quantity" db:"quantity"`
}

// ShippingAddress is the delivery destination embedded in an order.
type ShippingAddress struct {
	FullName   string `json:"full_name" db:"shipping_full_name"`
	Address    string `json:"address" db:"shipping_address"`
	City       string `json:"city" db:"shipping_city"`
	PostalCode string `json:"postal_code" db:"shipping_postal_code"`
	Country    string `json:"country" db:"shipping_country"`
}

// Order represents a placed order with its item snapshots and totals.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	Items           []OrderItem     `json:"order_items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method" db:"payment_method"`
	Subtotal        float64         `json:"subtotal" db:"subtotal"`
	ShippingCost    float64         `json:"shipping_cost" db:"shipping_cost"`
	Tax             float64         `json:"tax" db:"tax"`
	TotalAmount     float64         `json:"total_amount" db:"total_amount"`
	Status          OrderStatus     `json:"order_status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
