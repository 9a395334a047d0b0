package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
)

type CartService interface {
	AddItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	DecreaseItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	RemoveItemCompletely(ctx context.Context, userID, productID string) (*domain.Cart, error)
	ViewCart(ctx context.Context, userID string) (*service.CartView, error)
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(cart CartService, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
		log:     log,
	}
}

type ProductRequestDTO struct {
	ProductID string `json:"productId"`
}

type CartResponseDTO struct {
	Message string       `json:"message"`
	Cart    *domain.Cart `json:"cart"`
}

type cartMutation func(ctx context.Context, userID, productID string) (*domain.Cart, error)

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.cart.AddItem, "Product added")
}

func (h *CartHandler) DecreaseItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.cart.DecreaseItem, "Product updated")
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.cart.RemoveItemCompletely, "Product removed completely")
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, op cartMutation, message string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req ProductRequestDTO
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "productId is required")
		return
	}

	cart, err := op(ctx, userID, req.ProductID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Message: message, Cart: cart})
}

func (h *CartHandler) ViewCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	view, err := h.cart.ViewCart(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}
