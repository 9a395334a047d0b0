package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

// CartCache holds read-through copies of carts. Writers invalidate with Delete;
// readers fill only if no Delete happened since they took Version.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Version(ctx context.Context, userID string) (int64, error)
	// Fill stores cart unless the user's version moved past version, in which
	// case it returns ErrStaleFill and stores nothing.
	Fill(ctx context.Context, userID string, version int64, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrStaleFill = errors.New("cart changed since it was read")
)

// NoopCache never holds anything. Used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.Cart, error)       { return nil, ErrCacheMiss }
func (NoopCache) Version(context.Context, string) (int64, error)          { return 0, nil }
func (NoopCache) Fill(context.Context, string, int64, *domain.Cart) error { return nil }
func (NoopCache) Delete(context.Context, string) error                    { return nil }
