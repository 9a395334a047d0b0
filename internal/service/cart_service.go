package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	sfg      singleflight.Group // Prevents cache stampede
	log      *slog.Logger
}

func NewCartService(repo repository.CartRepository, products repository.ProductRepository, cache cache.CartCache, log *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
		log:      log.With("component", "cart"),
	}
}

// GetCart reads through the cache. A user without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get failed", "user_id", userID, "err", err)
		}

		// taken before the read so a write landing in between voids the fill
		version, errVer := s.cache.Version(ctx, userID)

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{
				UserID:    userID,
				Items:     []domain.CartItem{},
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		if errVer != nil {
			s.log.WarnContext(ctx, "cache version failed", "user_id", userID, "err", errVer)
			return cart, nil
		}
		if errFill := s.cache.Fill(ctx, userID, version, cart); errFill != nil && !errors.Is(errFill, cache.ErrStaleFill) {
			s.log.WarnContext(ctx, "cache fill failed", "user_id", userID, "err", errFill)
		}

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share the slice
	return v.(*domain.Cart).Clone(), nil
}

// AddItem adds one unit of an existing product, creating the cart or the line as needed.
func (s *CartService) AddItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidRequest)
	}
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	if err := s.repo.IncrementItem(ctx, userID, productID, 1); err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	s.invalidateCache(userID)

	return s.repo.GetCart(ctx, userID)
}

// DecreaseItem removes one unit, dropping the line when it was the last one.
func (s *CartService) DecreaseItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidRequest)
	}
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := cart.Find(productID)
	if idx < 0 {
		return nil, repository.ErrItemNotFound
	}

	if qty := cart.Items[idx].Quantity; qty > 1 {
		err = s.repo.UpdateItemQuantity(ctx, userID, productID, qty-1)
	} else {
		err = s.repo.RemoveItem(ctx, userID, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("decrease item: %w", err)
	}
	s.invalidateCache(userID)

	return s.repo.GetCart(ctx, userID)
}

// RemoveItemCompletely drops the line whatever its quantity. An absent line leaves the cart as is.
func (s *CartService) RemoveItemCompletely(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidRequest)
	}
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Find(productID) < 0 {
		return cart, nil
	}

	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		return nil, fmt.Errorf("remove item: %w", err)
	}
	s.invalidateCache(userID)

	return s.repo.GetCart(ctx, userID)
}

// ViewCart resolves every line to its product.
func (s *CartService) ViewCart(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}

	view := &CartView{
		UserID:    cart.UserID,
		Items:     make([]CartLineView, 0, len(cart.Items)),
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		view.Items = append(view.Items, CartLineView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   products[item.ProductID],
		})
	}
	return view, nil
}

func (s *CartService) invalidateCache(userID string) {
	invalidateCart(s.cache, s.log, userID)
}

func invalidateCart(c cache.CartCache, log *slog.Logger, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Delete(ctx, userID); err != nil {
		log.WarnContext(ctx, "cache invalidate failed", "user_id", userID, "err", err)
	}
}
