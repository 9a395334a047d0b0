package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockCartRepository struct {
	m         sync.RWMutex
	carts     map[string]*domain.Cart
	saveErr   error
	saves     int
	honourCtx bool
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepository) put(userID string, items ...domain.CartItem) {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = &domain.Cart{ID: "cart-" + userID, UserID: userID, Items: items}
}

func (m *mockCartRepository) snapshot(userID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil
	}
	return c.Clone()
}

func (m *mockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *mockCartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.honourCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	c, ok := m.carts[cart.UserID]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.Items = cart.Clone().Items
	return nil
}

func (m *mockCartRepository) IncrementItem(_ context.Context, userID, productID string, delta int) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{ID: "cart-" + userID, UserID: userID}
		m.carts[userID] = c
	}
	if idx := c.Find(productID); idx >= 0 {
		c.Items[idx].Quantity += delta
		return nil
	}
	c.Items = append(c.Items, domain.CartItem{ProductID: productID, Quantity: delta})
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(_ context.Context, userID, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	idx := c.Find(productID)
	if idx < 0 {
		return repository.ErrItemNotFound
	}
	c.Items[idx].Quantity = quantity
	return nil
}

func (m *mockCartRepository) RemoveItem(_ context.Context, userID, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	if idx := c.Find(productID); idx >= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	}
	return nil
}

type mockProductRepository struct {
	products map[string]*domain.Product
	err      error
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[string]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *mockProductRepository) GetProducts(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]*domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type mockOrderRepository struct {
	m         sync.Mutex
	orders    map[string]*domain.Order
	seq       int
	createErr error
	// onCreate runs before the insert; a non-nil result fails it
	onCreate func(ctx context.Context) error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderRepository) count() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.onCreate != nil {
		if err := m.onCreate(ctx); err != nil {
			return err
		}
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	order.ID = fmt.Sprintf("order-%d", m.seq)
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) FindByUserAndID(ctx context.Context, userID, id string) (*domain.Order, error) {
	o, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrderRepository) ListByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool { return o.UserID == userID }, func(a, b *domain.Order) bool {
		return a.OrderTime.After(b.OrderTime)
	}), nil
}

func (m *mockOrderRepository) ListByStatus(_ context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool { return o.Status == status }, func(a, b *domain.Order) bool {
		return a.OrderTime.Before(b.OrderTime)
	}), nil
}

func (m *mockOrderRepository) filter(keep func(*domain.Order) bool, less func(a, b *domain.Order) bool) []*domain.Order {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if keep(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (m *mockOrderRepository) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	if err := domain.ValidateTransition(from, to); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, repository.ErrStatusConflict
	}
	o.Status = to
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) ProductTotals(_ context.Context, status domain.OrderStatus) ([]repository.ProductTotal, error) {
	m.m.Lock()
	defer m.m.Unlock()
	sums := make(map[string]int)
	for _, o := range m.orders {
		if o.Status != status {
			continue
		}
		for _, item := range o.Items {
			sums[item.ProductID] += item.Quantity
		}
	}
	out := make([]repository.ProductTotal, 0, len(sums))
	for id, q := range sums {
		out = append(out, repository.ProductTotal{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

type countingTransactor struct {
	calls  int
	atomic bool
}

func (t *countingTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func (t *countingTransactor) Atomic() bool { return t.atomic }

type mockCache struct {
	m          sync.Mutex
	carts      map[string]*domain.Cart
	versions   map[string]int64
	deletes    []string
	getErr     error
	beforeFill func()
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart), versions: make(map[string]int64)}
}

func (c *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	cart, ok := c.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart.Clone(), nil
}

func (c *mockCache) Version(_ context.Context, userID string) (int64, error) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.versions[userID], nil
}

func (c *mockCache) Fill(_ context.Context, userID string, version int64, cart *domain.Cart) error {
	if c.beforeFill != nil {
		c.beforeFill()
	}
	c.m.Lock()
	defer c.m.Unlock()
	if c.versions[userID] != version {
		return cache.ErrStaleFill
	}
	c.carts[userID] = cart.Clone()
	return nil
}

func (c *mockCache) Delete(_ context.Context, userID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.versions[userID]++
	delete(c.carts, userID)
	c.deletes = append(c.deletes, userID)
	return nil
}

func (c *mockCache) has(userID string) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, ok := c.carts[userID]
	return ok
}

func (c *mockCache) deleted() []string {
	c.m.Lock()
	defer c.m.Unlock()
	return append([]string(nil), c.deletes...)
}

type scheduled struct {
	orderID string
	delay   time.Duration
}

type mockScheduler struct {
	window time.Duration
	calls  []scheduled
}

func (s *mockScheduler) Schedule(orderID string, delay time.Duration) {
	s.calls = append(s.calls, scheduled{orderID: orderID, delay: delay})
}

func (s *mockScheduler) Window() time.Duration { return s.window }

type recordingPublisher struct {
	m      sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type mockCanceller struct {
	order *domain.Order
	err   error
	calls int
}

func (c *mockCanceller) Cancel(context.Context, string, string) (*domain.Order, error) {
	c.calls++
	return c.order, c.err
}

var errBoom = errors.New("boom")
