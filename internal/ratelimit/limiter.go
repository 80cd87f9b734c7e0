// Package ratelimit implements component B of the engine: a token bucket
// per venue (golang.org/x/time/rate, grounded on internal/net/ratelimit's
// per-host *rate.Limiter map) fronted by a priority queue so EMERGENCY
// acquisitions are served ahead of HIGH/NORMAL/LOW ones, FIFO within a class
// (spec.md §4.B, §5).
package ratelimit

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// VenueConfig configures one venue's bucket.
type VenueConfig struct {
	Burst        int
	RefillPerSec float64
}

// Manager owns one bucket+dispatcher per venue.
type Manager struct {
	mu     sync.Mutex
	venues map[string]*venueBucket
	defCfg VenueConfig
}

type venueBucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	queue   waiterHeap
	wake    chan struct{}
	nextSeq uint64
	started bool
}

// NewManager creates a Manager. defCfg is used for any venue Acquire is
// called with that was never configured via Configure.
func NewManager(defCfg VenueConfig) *Manager {
	if defCfg.Burst <= 0 {
		defCfg.Burst = 1
	}
	if defCfg.RefillPerSec <= 0 {
		defCfg.RefillPerSec = 1
	}
	return &Manager{venues: map[string]*venueBucket{}, defCfg: defCfg}
}

// Configure installs a per-venue bucket configuration. Safe to call before
// the first Acquire for that venue; re-configuring an active venue resizes
// its limiter in place.
func (m *Manager) Configure(venue string, cfg VenueConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.venues[venue]
	if !ok {
		m.venues[venue] = newVenueBucket(cfg)
		return
	}
	b.mu.Lock()
	b.limiter.SetBurst(cfg.Burst)
	b.limiter.SetLimit(rate.Limit(cfg.RefillPerSec))
	b.mu.Unlock()
}

func newVenueBucket(cfg VenueConfig) *venueBucket {
	return &venueBucket{
		limiter: rate.NewLimiter(rate.Limit(cfg.RefillPerSec), cfg.Burst),
		wake:    make(chan struct{}, 1),
	}
}

func (m *Manager) bucket(venue string) *venueBucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.venues[venue]
	if !ok {
		b = newVenueBucket(m.defCfg)
		m.venues[venue] = b
	}
	if !b.started {
		b.started = true
		go b.run()
	}
	return b
}

func (b *venueBucket) kick() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// run is the single dispatcher loop for this venue's bucket: it is the only
// goroutine that ever calls limiter.ReserveN, so two waiters can never both
// reserve the same tokens.
func (b *venueBucket) run() {
	for {
		b.mu.Lock()
		if b.queue.Len() == 0 {
			b.mu.Unlock()
			<-b.wake
			continue
		}
		top := b.queue[0]
		now := time.Now()
		r := b.limiter.ReserveN(now, int(top.weight))
		if !r.OK() {
			heap.Remove(&b.queue, top.index)
			b.mu.Unlock()
			top.deliver(&RateLimitedError{Cause: errWeightExceedsBurst})
			continue
		}
		delay := r.DelayFrom(now)
		b.mu.Unlock()

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-b.wake:
				// A higher-priority waiter may have arrived; give back the
				// reservation and re-evaluate the queue from scratch so it
				// gets served first (spec.md §4.B preemption).
				timer.Stop()
				r.Cancel()
				continue
			}
		}

		b.mu.Lock()
		if top.index < 0 {
			// waiter cancelled (ctx deadline) while we waited; refund.
			r.Cancel()
			b.mu.Unlock()
			continue
		}
		heap.Remove(&b.queue, top.index)
		b.mu.Unlock()
		top.deliver(nil)
	}
}

func (w *waiter) deliver(err error) {
	select {
	case w.resultCh <- err:
	default:
	}
}

// Acquire blocks until weight tokens are available for venue at the given
// priority, or ctx is done, in which case it returns a *RateLimitedError.
//
// Among callers waiting concurrently on the same venue, EMERGENCY is served
// before HIGH before NORMAL before LOW; ties break FIFO (spec.md §4.B, §5).
func (m *Manager) Acquire(ctx context.Context, venue string, weight float64, priority Priority) error {
	if weight <= 0 {
		weight = 1
	}
	b := m.bucket(venue)

	w := &waiter{priority: priority, weight: weight, resultCh: make(chan error, 1)}

	b.mu.Lock()
	b.nextSeq++
	w.seq = b.nextSeq
	heap.Push(&b.queue, w)
	b.mu.Unlock()
	b.kick()

	select {
	case err := <-w.resultCh:
		return err
	case <-ctx.Done():
		b.mu.Lock()
		if w.index >= 0 {
			heap.Remove(&b.queue, w.index)
			b.mu.Unlock()
			b.kick()
			return &RateLimitedError{Venue: venue, Cause: ctx.Err()}
		}
		b.mu.Unlock()
		// Already being delivered concurrently; take whichever arrives.
		select {
		case err := <-w.resultCh:
			return err
		default:
			return &RateLimitedError{Venue: venue, Cause: ctx.Err()}
		}
	}
}

var errWeightExceedsBurst = &staticErr{"requested weight exceeds venue burst capacity"}

type staticErr struct{ s string }

func (e *staticErr) Error() string { return e.s }

// RateLimitedError is returned by Acquire when tokens could not be reserved
// before the caller's deadline (kRateLimited, spec.md §4.B).
type RateLimitedError struct {
	Venue string
	Cause error
}

func (e *RateLimitedError) Error() string {
	return "rate limited for venue " + e.Venue + ": " + e.Cause.Error()
}

func (e *RateLimitedError) Unwrap() error { return e.Cause }
