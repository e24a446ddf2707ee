package models

import (
	"github.com/shopspring/decimal"
)

// Order represents a customer order as returned by the restaurant API
type Order struct {
	ID          int         `json:"id"`
	TableNumber int         `json:"table_number"`
	UniqueID    string      `json:"unique_id"`
	PersonID    *int        `json:"person_id,omitempty"`
	Items       []OrderItem `json:"items"`
	Status      OrderStatus `json:"status"`
	CreatedAt   Timestamp   `json:"created_at"`
	UpdatedAt   Timestamp   `json:"updated_at"`
}

// OrderItem represents an item in an order
type OrderItem struct {
	ID       int    `json:"id"`
	DishID   int    `json:"dish_id"`
	Dish     *Dish  `json:"dish,omitempty"`
	Quantity int    `json:"quantity"`
	Remarks  string `json:"remarks"`
}

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusAccepted         OrderStatus = "accepted"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusPaymentRequested OrderStatus = "payment_requested"
	OrderStatusPaid             OrderStatus = "paid"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

// Label returns the customer-facing name of the status
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Waiting"
	case OrderStatusAccepted:
		return "Preparing"
	case OrderStatusCompleted:
		return "Ready"
	case OrderStatusPaymentRequested:
		return "Payment Requested"
	case OrderStatusPaid:
		return "Paid"
	case OrderStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// IsSettled reports whether the order no longer needs payment
func (s OrderStatus) IsSettled() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// CanCancel reports whether a customer may still cancel the order.
// Once the chef accepts an order it can no longer be cancelled.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending
}

// Amount returns the sum of dish price times quantity over all items.
// Items whose dish was not loaded by the server contribute nothing.
func (o *Order) Amount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		if item.Dish == nil {
			continue
		}
		total = total.Add(item.Dish.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// NewOrderItem is a single line of an order submission
type NewOrderItem struct {
	DishID   int    `json:"dish_id"`
	Quantity int    `json:"quantity"`
	Remarks  string `json:"remarks"`
}

// NewOrder is the body sent to create an order
type NewOrder struct {
	TableNumber int            `json:"table_number"`
	UniqueID    string         `json:"unique_id"`
	Items       []NewOrderItem `json:"items"`
}
