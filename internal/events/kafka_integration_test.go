package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestKafkaPublisher_DeliversOrderEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	topic := "order-events"
	createTopic(t, brokerAddr, topic)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := NewKafkaPublisher(NewKafkaWriter(topic, brokerAddr), circuitbreaker.DefaultConfig(), log)
	defer publisher.Close()

	order := &domain.Order{
		ID:     "65f0c0ffee0000000000abcd",
		UserID: "user-kafka",
		Items:  []domain.OrderItem{{ProductID: "p1", Quantity: 2}},
		Status: domain.OrderStatusProcessing,
	}
	require.NoError(t, publisher.Publish(ctx, NewOrderEvent(OrderPlaced, order)))

	order.Status = domain.OrderStatusConfirmed
	require.NoError(t, publisher.Publish(ctx, NewOrderEvent(OrderConfirmed, order)))

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    topic,
		GroupID:  "storefront-test",
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var got []OrderEvent
	for len(got) < 2 {
		msg, err := reader.ReadMessage(ctx)
		require.NoError(t, err)
		assert.Equal(t, order.ID, string(msg.Key))

		var event OrderEvent
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		got = append(got, event)
	}

	assert.Equal(t, OrderPlaced, got[0].Type)
	assert.Equal(t, domain.OrderStatusProcessing, got[0].Status)
	assert.Equal(t, OrderConfirmed, got[1].Type)
	assert.Equal(t, "user-kafka", got[1].UserID)
	assert.Equal(t, []domain.OrderItem{{ProductID: "p1", Quantity: 2}}, got[1].Items)
}
