package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidState = errors.New("cannot cancel order, it has already been confirmed or cancelled")

// Engine drives orders from processing to confirmed when their window elapses,
// or to cancelled when the owner asks first. The stored status is authoritative:
// every transition is a compare-and-set on it, so a cancel racing the timer
// leaves exactly one winner.
type Engine struct {
	orders         repository.OrderRepository
	timers         TimerRegistry
	publisher      events.Publisher
	log            *slog.Logger
	tracer         trace.Tracer
	window         time.Duration
	confirmTimeout time.Duration
	now            func() time.Time
}

type Option func(*Engine)

func WithTimerRegistry(r TimerRegistry) Option {
	return func(e *Engine) { e.timers = r }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithConfirmTimeout(d time.Duration) Option {
	return func(e *Engine) { e.confirmTimeout = d }
}

// NewEngine builds an engine whose window is both the auto-confirm delay and the cancellation deadline.
func NewEngine(orders repository.OrderRepository, window time.Duration, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		orders:         orders,
		timers:         NewMemoryRegistry(),
		publisher:      events.NoopPublisher{},
		log:            log.With("component", "lifecycle"),
		tracer:         otel.Tracer("lifecycle"),
		window:         window,
		confirmTimeout: 5 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Window() time.Duration {
	return e.window
}

// Pending is the number of armed auto-confirm timers.
func (e *Engine) Pending() int {
	return e.timers.Pending()
}

// Schedule arms the auto-confirm for a freshly placed order.
func (e *Engine) Schedule(orderID string, delay time.Duration) {
	e.timers.Arm(orderID, delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.confirmTimeout)
		defer cancel()
		if err := e.confirm(ctx, orderID); err != nil {
			e.log.ErrorContext(ctx, "auto-confirm failed", "order_id", orderID, "err", err)
		}
	})
}

// confirm flips a processing order to confirmed. Orders that already left
// processing are left alone.
func (e *Engine) confirm(ctx context.Context, orderID string) error {
	ctx, span := e.tracer.Start(ctx, "lifecycle.Confirm", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := e.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.Status != domain.OrderStatusProcessing {
		e.log.DebugContext(ctx, "order already left processing", "order_id", orderID, "status", order.Status)
		return nil
	}

	confirmed, err := e.orders.UpdateStatus(ctx, orderID, domain.OrderStatusProcessing, domain.OrderStatusConfirmed)
	if errors.Is(err, repository.ErrStatusConflict) {
		e.log.DebugContext(ctx, "order changed before confirm", "order_id", orderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("confirm order %s: %w", orderID, err)
	}

	e.log.InfoContext(ctx, "order confirmed", "order_id", orderID, "user_id", confirmed.UserID)
	e.publish(ctx, events.OrderConfirmed, confirmed)
	return nil
}

// Cancel cancels the caller's order while it is still processing.
func (e *Engine) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle.Cancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := e.orders.FindByUserAndID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusCancelled) {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidState, orderID, order.Status)
	}

	cancelled, err := e.orders.UpdateStatus(ctx, orderID, domain.OrderStatusProcessing, domain.OrderStatusCancelled)
	if errors.Is(err, repository.ErrStatusConflict) {
		// the timer confirmed it between our read and write
		return nil, fmt.Errorf("%w: order %s", ErrInvalidState, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	e.timers.Disarm(orderID)

	e.log.InfoContext(ctx, "order cancelled", "order_id", orderID, "user_id", userID)
	e.publish(ctx, events.OrderCancelled, cancelled)
	return cancelled, nil
}

type RecoveryResult struct {
	Confirmed int
	Rearmed   int
	Failed    int
}

// Recover restores timers lost with the previous process. Processing orders
// past their window are confirmed now, the rest are re-armed for what remains.
func (e *Engine) Recover(ctx context.Context) (RecoveryResult, error) {
	var res RecoveryResult

	pending, err := e.orders.ListByStatus(ctx, domain.OrderStatusProcessing)
	if err != nil {
		return res, fmt.Errorf("list processing orders: %w", err)
	}

	now := e.now()
	for _, order := range pending {
		remaining := order.DueAt(e.window).Sub(now)
		if remaining > 0 {
			e.Schedule(order.ID, remaining)
			res.Rearmed++
			continue
		}

		if err := e.confirm(ctx, order.ID); err != nil {
			e.log.ErrorContext(ctx, "recovery confirm failed", "order_id", order.ID, "err", err)
			res.Failed++
			continue
		}
		res.Confirmed++
	}

	e.log.InfoContext(ctx, "order recovery finished",
		"confirmed", res.Confirmed, "rearmed", res.Rearmed, "failed", res.Failed)
	return res, nil
}

// Stop disarms every pending timer. Orders left processing are picked up by the next Recover.
func (e *Engine) Stop() {
	e.timers.Stop()
}

func (e *Engine) publish(ctx context.Context, t events.EventType, order *domain.Order) {
	if err := e.publisher.Publish(ctx, events.NewOrderEvent(t, order)); err != nil {
		e.log.WarnContext(ctx, "order event not published", "order_id", order.ID, "type", t, "err", err)
	}
}
