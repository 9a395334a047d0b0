package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
)

type CheckoutService interface {
	Checkout(ctx context.Context, userID string, lines []domain.OrderItem) (*domain.Order, error)
}

type OrderService interface {
	ListOrders(ctx context.Context, userID string) ([]service.OrderView, error)
	Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error)
	PopularProducts(ctx context.Context, category string) ([]service.PopularProduct, error)
}

type OrdersHandler struct {
	checkout CheckoutService
	orders   OrderService
	timeout  time.Duration
	log      *slog.Logger
}

func NewOrdersHandler(checkout CheckoutService, orders OrderService, timeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		checkout: checkout,
		orders:   orders,
		timeout:  timeout,
		log:      log,
	}
}

type CheckoutLineDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequestDTO struct {
	Products []CheckoutLineDTO `json:"products"`
}

type CancelRequestDTO struct {
	OrderID string `json:"orderId"`
}

type PopularRequestDTO struct {
	Category string `json:"category"`
}

type OrderResponseDTO struct {
	Message string        `json:"message"`
	Order   *domain.Order `json:"order"`
}

type OrdersListResponseDTO struct {
	Orders []service.OrderView `json:"orders"`
}

type PopularResponseDTO struct {
	TopProducts []service.PopularProduct `json:"topProducts"`
}

func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if len(req.Products) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order: products must not be empty")
		return
	}

	lines := make([]domain.OrderItem, 0, len(req.Products))
	for _, p := range req.Products {
		lines = append(lines, domain.OrderItem{ProductID: p.ProductID, Quantity: p.Quantity})
	}

	order, err := h.checkout.Checkout(ctx, userID, lines)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderResponseDTO{Message: "Order placed", Order: order})
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, OrdersListResponseDTO{Orders: orders})
}

func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CancelRequestDTO
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "orderId is required")
		return
	}

	order, err := h.orders.Cancel(ctx, userID, req.OrderID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderResponseDTO{Message: "Order cancelled successfully", Order: order})
}

func (h *OrdersHandler) MostPopular(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PopularRequestDTO
	if !decodeJSON(w, r, &req, true) {
		return
	}

	top, err := h.orders.PopularProducts(ctx, req.Category)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, PopularResponseDTO{TopProducts: top})
}
