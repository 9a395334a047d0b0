package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/repository"
)

type mockOrderRepository struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	seq      int
	history  map[string][]domain.OrderStatus
	findErr  error
	beforeCA func(id string) // runs between the read and the compare-and-set
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders:  make(map[string]*domain.Order),
		history: make(map[string][]domain.OrderStatus),
	}
}

func (m *mockOrderRepository) add(userID string, orderTime time.Time) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	o := &domain.Order{
		ID:        fmt.Sprintf("order-%d", m.seq),
		UserID:    userID,
		Items:     []domain.OrderItem{{ProductID: "p1", Quantity: 1}},
		Status:    domain.OrderStatusProcessing,
		OrderTime: orderTime,
	}
	m.orders[o.ID] = o
	m.history[o.ID] = []domain.OrderStatus{o.Status}
	cp := *o
	return &cp
}

func (m *mockOrderRepository) status(id string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *mockOrderRepository) statusHistory(id string) []domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderStatus(nil), m.history[id]...)
}

func (m *mockOrderRepository) Create(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	order.ID = fmt.Sprintf("order-%d", m.seq)
	cp := *order
	m.orders[order.ID] = &cp
	m.history[order.ID] = []domain.OrderStatus{order.Status}
	return nil
}

func (m *mockOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
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
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderTime.After(out[j].OrderTime) })
	return out, nil
}

func (m *mockOrderRepository) ListByStatus(_ context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status == status {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderTime.Before(out[j].OrderTime) })
	return out, nil
}

func (m *mockOrderRepository) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	if m.beforeCA != nil {
		m.beforeCA(id)
	}
	if err := domain.ValidateTransition(from, to); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, repository.ErrStatusConflict
	}
	o.Status = to
	m.history[id] = append(m.history[id], to)
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) ProductTotals(context.Context, domain.OrderStatus) ([]repository.ProductTotal, error) {
	return nil, nil
}

// setStatus bypasses the compare-and-set, for simulating a concurrent writer.
func (m *mockOrderRepository) setStatus(id string, s domain.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].Status = s
	m.history[id] = append(m.history[id], s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// manualRegistry never fires on its own; tests call fire.
type manualRegistry struct {
	mu     sync.Mutex
	fns    map[string]func()
	delays map[string]time.Duration
}

func newManualRegistry() *manualRegistry {
	return &manualRegistry{fns: make(map[string]func()), delays: make(map[string]time.Duration)}
}

func (r *manualRegistry) Arm(id string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[id] = fn
	r.delays[id] = delay
}

func (r *manualRegistry) Disarm(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.fns[id]
	delete(r.fns, id)
	return ok
}

func (r *manualRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

func (r *manualRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = make(map[string]func())
}

func (r *manualRegistry) delay(id string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.delays[id]
	return d, ok
}

// fire runs the armed action, reporting false when nothing was armed.
func (r *manualRegistry) fire(id string) bool {
	r.mu.Lock()
	fn, ok := r.fns[id]
	delete(r.fns, id)
	r.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}
