package domain

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var ErrIllegalTransition = errors.New("illegal transition of order status")

// transitions is the whole order state machine.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusConfirmed, OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition is CanTransition returning ErrIllegalTransition with context.
func ValidateTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderItem struct {
	ProductID string `bson:"product_id" json:"productId"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

type Order struct {
	ID        string      `bson:"-" json:"id"`
	UserID    string      `bson:"user_id" json:"userId"`
	Items     []OrderItem `bson:"items" json:"items"`
	Status    OrderStatus `bson:"status" json:"status"`
	OrderTime time.Time   `bson:"order_time" json:"orderTime"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updatedAt"`
}

// DueAt is the moment the order auto-confirms, which is also the last moment it can be cancelled.
func (o *Order) DueAt(window time.Duration) time.Time {
	return o.OrderTime.Add(window)
}
