package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

const (
	popularLimit         = 10
	popularCategoryLimit = 1
)

type Canceller interface {
	Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error)
}

type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	engine   Canceller
	log      *slog.Logger
}

func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, engine Canceller, log *slog.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		engine:   engine,
		log:      log.With("component", "orders"),
	}
}

// ListOrders returns the user's orders newest first, items resolved to title and image.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]OrderView, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var ids []string
	for _, o := range orders {
		for _, item := range o.Items {
			ids = append(ids, item.ProductID)
		}
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve order products: %w", err)
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		view := OrderView{
			ID:        o.ID,
			Status:    o.Status,
			OrderTime: o.OrderTime,
			Items:     make([]OrderItemView, 0, len(o.Items)),
		}
		for _, item := range o.Items {
			iv := OrderItemView{ProductID: item.ProductID, Quantity: item.Quantity}
			if p, ok := products[item.ProductID]; ok {
				iv.Title = p.Title
				iv.Image = p.Image
			}
			view.Items = append(view.Items, iv)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *OrderService) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrInvalidRequest)
	}
	return s.engine.Cancel(ctx, userID, orderID)
}

// PopularProducts ranks products by quantity across confirmed orders. With a
// category only the single best seller of that category is returned.
func (s *OrderService) PopularProducts(ctx context.Context, category string) ([]PopularProduct, error) {
	totals, err := s.orders.ProductTotals(ctx, domain.OrderStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("product totals: %w", err)
	}

	ids := make([]string, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.ProductID)
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve popular products: %w", err)
	}

	limit := popularLimit
	if category != "" {
		limit = popularCategoryLimit
	}

	top := make([]PopularProduct, 0, limit)
	for _, t := range totals {
		if len(top) == limit {
			break
		}
		p, ok := products[t.ProductID]
		if !ok {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		top = append(top, PopularProduct{
			ProductID: t.ProductID,
			Title:     p.Title,
			Image:     p.Image,
			Category:  p.Category,
			Quantity:  t.Quantity,
		})
	}
	return top, nil
}
