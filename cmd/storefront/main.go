package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/events"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/idempotency"
	"github.com/fjod/storefront/internal/lifecycle"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := logger.New("storefront", cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "err", err)
		}
	}()
	log.Info("connected to MongoDB", "database", cfg.Mongo.Database)

	if err := repository.CreateIndexes(ctx, mongoDB); err != nil {
		return err
	}

	carts := repository.NewMongoCartRepository(mongoDB)
	orders := repository.NewMongoOrderRepository(mongoDB)
	products := repository.NewMongoProductRepository(mongoDB)

	var tx repository.Transactor = repository.NoTransaction{}
	if cfg.Mongo.Transactions {
		tx = repository.NewMongoTransactor(mongoDB.Client())
		log.Info("checkout runs in MongoDB transactions")
	}

	var cartCache cache.CartCache = cache.NoopCache{}
	var guard idempotency.Guard = idempotency.Noop{}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info("redis ping succeeded", "addr", cfg.Redis.Addr)

		cartCache = cache.NewRedisCache(redisClient, cfg.Redis.CartTTL)
		guard = idempotency.NewStore(redisClient, cfg.Redis.IdempotencyTTL)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := events.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		publisher = events.NewKafkaPublisher(writer, circuitbreaker.DefaultConfig(), log)
		log.Info("publishing order events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("event publisher close failed", "err", err)
		}
	}()

	engine := lifecycle.NewEngine(orders, cfg.Orders.Window, log,
		lifecycle.WithPublisher(publisher),
		lifecycle.WithConfirmTimeout(cfg.Orders.ConfirmTimeout),
	)
	defer engine.Stop()

	if cfg.Orders.RecoveryEnabled {
		if _, err := engine.Recover(ctx); err != nil {
			return err
		}
	}

	cartService := service.NewCartService(carts, products, cartCache, log)
	checkoutService := service.NewCheckoutService(carts, orders, tx, cartCache, engine, publisher, log)
	orderService := service.NewOrderService(orders, products, engine, log)

	router := h.NewRouter(h.RouterConfig{
		Cart:        cartService,
		Checkout:    checkoutService,
		Orders:      orderService,
		Verifier:    auth.NewVerifier(cfg.Auth.JWTSecret),
		Idempotency: guard,
		Health: func(ctx context.Context) error {
			return mongoDB.Client().Ping(ctx, nil)
		},
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		Log:                log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("storefront listening", "port", cfg.HTTP.Port, "order_window", cfg.Orders.Window)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("server exited")
	return nil
}
