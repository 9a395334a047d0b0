package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

type EventType string

const (
	OrderPlaced    EventType = "order.placed"
	OrderConfirmed EventType = "order.confirmed"
	OrderCancelled EventType = "order.cancelled"
)

type OrderEvent struct {
	ID         string             `json:"event_id"`
	Type       EventType          `json:"event_type"`
	OrderID    string             `json:"order_id"`
	UserID     string             `json:"user_id"`
	Status     domain.OrderStatus `json:"status"`
	Items      []domain.OrderItem `json:"items"`
	OccurredAt time.Time          `json:"occurred_at"`
}

func NewOrderEvent(t EventType, order *domain.Order) OrderEvent {
	return OrderEvent{
		ID:         uuid.NewString(),
		Type:       t,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Items:      order.Items,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers order events. Delivery is best effort: callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// Writer is the part of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  Writer
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
}

func NewKafkaPublisher(writer Writer, cfg circuitbreaker.Config, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		breaker: circuitbreaker.New[struct{}]("kafka-order-events", cfg, log),
		log:     log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID), // per-order ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("publish %s for order %s: %w", event.Type, event.OrderID, err)
	}
	p.log.DebugContext(ctx, "order event published", "event_id", event.ID, "type", event.Type, "order_id", event.OrderID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }
