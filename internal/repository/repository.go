package repository

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrStatusConflict  = errors.New("order status changed concurrently")
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// SaveCart replaces the lines of an existing cart.
	SaveCart(ctx context.Context, cart *domain.Cart) error
	// IncrementItem adds delta to a line, creating the cart or line when missing.
	IncrementItem(ctx context.Context, userID, productID string, delta int) error
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByUserAndID(ctx context.Context, userID, id string) (*domain.Order, error)
	// ListByUser returns the user's orders, newest order_time first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	// UpdateStatus moves an order from one status to another only if it is still in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
	// ProductTotals sums ordered quantities per product over orders in status, largest first.
	ProductTotals(ctx context.Context, status domain.OrderStatus) ([]ProductTotal, error)
}

type ProductTotal struct {
	ProductID string `bson:"_id"`
	Quantity  int    `bson:"quantity"`
}

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// GetProducts returns the products that exist, keyed by id.
	GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error)
}

// Transactor runs fn so that every repository call made with the ctx it receives commits or aborts together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// Atomic reports whether a failing fn rolls back its writes.
	Atomic() bool
}
