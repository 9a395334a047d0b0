package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const restoreTimeout = 5 * time.Second

// Scheduler arms the auto-confirm of a placed order.
type Scheduler interface {
	Schedule(orderID string, delay time.Duration)
	Window() time.Duration
}

// CheckoutService turns part of a cart into an order. Either the cart is
// decremented and the order exists, or neither happened: the two writes run
// inside a transaction when the store supports one, and the cart is written
// back if the order insert fails.
type CheckoutService struct {
	carts     repository.CartRepository
	orders    repository.OrderRepository
	tx        repository.Transactor
	cache     cache.CartCache
	scheduler Scheduler
	publisher events.Publisher
	log       *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewCheckoutService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	tx repository.Transactor,
	cache cache.CartCache,
	scheduler Scheduler,
	publisher events.Publisher,
	log *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		orders:    orders,
		tx:        tx,
		cache:     cache,
		scheduler: scheduler,
		publisher: publisher,
		log:       log.With("component", "checkout"),
		tracer:    otel.Tracer("checkout"),
		now:       time.Now,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, userID string, lines []domain.OrderItem) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int("checkout.lines", len(lines)),
	))
	defer span.End()

	order, err := s.checkout(ctx, userID, lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	return order, nil
}

func (s *CheckoutService) checkout(ctx context.Context, userID string, lines []domain.OrderItem) (*domain.Order, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	original, err := s.carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(original.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidRequest)
	}

	updated, err := applyCheckout(original, lines)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, len(lines))
	copy(items, lines)
	order := &domain.Order{
		UserID:    userID,
		Items:     items,
		Status:    domain.OrderStatusProcessing,
		OrderTime: s.now(),
	}

	cartSaved := false
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.carts.SaveCart(ctx, updated); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		cartSaved = true
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		if cartSaved && !s.tx.Atomic() {
			s.restoreCart(ctx, original)
		}
		return nil, err
	}

	invalidateCart(s.cache, s.log, userID)
	s.scheduler.Schedule(order.ID, s.scheduler.Window())

	if err := s.publisher.Publish(ctx, events.NewOrderEvent(events.OrderPlaced, order)); err != nil {
		s.log.WarnContext(ctx, "order event not published", "order_id", order.ID, "err", err)
	}
	s.log.InfoContext(ctx, "order placed", "order_id", order.ID, "user_id", userID, "lines", len(order.Items))
	return order, nil
}

// restoreCart writes the pre-checkout cart back after a non-transactional
// failure. The request context is usually what failed, so it is detached.
func (s *CheckoutService) restoreCart(ctx context.Context, original *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	if err := s.carts.SaveCart(ctx, original); err != nil {
		s.log.ErrorContext(ctx, "restore cart after failed order insert", "user_id", original.UserID, "err", err)
	}
	invalidateCart(s.cache, s.log, original.UserID)
}

func validateLines(lines []domain.OrderItem) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: products must not be empty", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			return fmt.Errorf("%w: productId is required", ErrInvalidRequest)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive for product %s", ErrInvalidRequest, line.ProductID)
		}
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("%w: product %s listed more than once", ErrInvalidRequest, line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// applyCheckout checks every line against the cart before touching anything,
// then returns a copy of the cart with the lines taken out. The input cart is never modified.
func applyCheckout(cart *domain.Cart, lines []domain.OrderItem) (*domain.Cart, error) {
	for _, line := range lines {
		idx := cart.Find(line.ProductID)
		if idx < 0 || cart.Items[idx].Quantity < line.Quantity {
			return nil, fmt.Errorf("%w: invalid product or quantity: %s", ErrInvalidRequest, line.ProductID)
		}
	}

	updated := cart.Clone()
	for _, line := range lines {
		idx := updated.Find(line.ProductID)
		if updated.Items[idx].Quantity == line.Quantity {
			updated.Items = append(updated.Items[:idx], updated.Items[idx+1:]...)
			continue
		}
		updated.Items[idx].Quantity -= line.Quantity
	}
	return updated, nil
}
