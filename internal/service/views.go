package service

import (
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// CartLineView is a cart line with its product resolved. Product is nil
// when the product no longer exists.
type CartLineView struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   *domain.Product `json:"product,omitempty"`
}

type CartView struct {
	UserID    string         `json:"userId"`
	Items     []CartLineView `json:"items"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type OrderItemView struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
}

type OrderView struct {
	ID        string             `json:"id"`
	Status    domain.OrderStatus `json:"status"`
	OrderTime time.Time          `json:"orderTime"`
	Items     []OrderItemView    `json:"items"`
}

type PopularProduct struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Category  string `json:"category,omitempty"`
	Quantity  int    `json:"quantity"`
}
