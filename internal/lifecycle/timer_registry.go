package lifecycle

import (
	"sync"
	"time"
)

// TimerRegistry tracks the one pending auto-confirm action per order.
// A durable implementation could persist due times and sweep them instead.
type TimerRegistry interface {
	// Arm schedules fn after delay, replacing any timer already armed for orderID.
	// The handle is dropped from the registry as soon as it fires.
	Arm(orderID string, delay time.Duration, fn func())
	// Disarm stops the pending timer. It reports false when nothing was pending,
	// which includes timers that already fired or were disarmed before.
	Disarm(orderID string) bool
	Pending() int
	// Stop disarms everything, refuses further Arm calls and returns once
	// callbacks already running have finished.
	Stop()
}

type timerEntry struct {
	timer *time.Timer
}

// MemoryRegistry keeps timers in process memory; they do not survive a restart.
type MemoryRegistry struct {
	mu       sync.Mutex
	timers   map[string]*timerEntry
	stopped  bool
	inflight sync.WaitGroup
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		timers: make(map[string]*timerEntry),
	}
}

func (r *MemoryRegistry) Arm(orderID string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if old, ok := r.timers[orderID]; ok {
		old.timer.Stop()
	}

	entry := &timerEntry{}
	entry.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		// a replaced timer must not drop its successor
		if r.timers[orderID] == entry {
			delete(r.timers, orderID)
		}
		if r.stopped {
			r.mu.Unlock()
			return
		}
		r.inflight.Add(1)
		r.mu.Unlock()

		defer r.inflight.Done()
		fn()
	})
	r.timers[orderID] = entry
}

func (r *MemoryRegistry) Disarm(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.timers[orderID]
	if !ok {
		return false
	}
	delete(r.timers, orderID)
	return entry.timer.Stop()
}

func (r *MemoryRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *MemoryRegistry) Stop() {
	r.mu.Lock()
	r.stopped = true
	for id, entry := range r.timers {
		entry.timer.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()

	r.inflight.Wait()
}
