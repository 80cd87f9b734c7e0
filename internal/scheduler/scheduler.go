// Package scheduler implements component I, the Pairing / Single-Leg
// Scheduler — the hardest subsystem: opens pairs, detects and recovers
// single-leg exposure, and sweeps zombie orders every tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/fundingkeeper/internal/cache"
	"github.com/sawpanic/fundingkeeper/internal/funding"
	"github.com/sawpanic/fundingkeeper/internal/lock"
	"github.com/sawpanic/fundingkeeper/internal/ops/metrics"
	"github.com/sawpanic/fundingkeeper/internal/pairing"
	"github.com/sawpanic/fundingkeeper/internal/ratelimit"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Scheduler owns the per-tick pairing/recovery/zombie-sweep cycle.
type Scheduler struct {
	log zerolog.Logger

	cfg Config

	cache    *cache.Cache
	adapters map[venue.Name]venue.Adapter
	locks    lock.Service
	limiter  *ratelimit.Manager

	retryMu sync.Mutex
	retries map[retryKey]*SingleLegRetryInfo

	tickMu       sync.Mutex
	ticking      bool
	droppedTicks int

	// Metrics is nil-safe: callers that don't care about Prometheus
	// counters can leave it unset.
	Metrics *metrics.Registry
}

func New(log zerolog.Logger, cfg Config, c *cache.Cache, adapters map[venue.Name]venue.Adapter, locks lock.Service, limiter *ratelimit.Manager) *Scheduler {
	return &Scheduler{
		log:      log,
		cfg:      cfg,
		cache:    c,
		adapters: adapters,
		locks:    locks,
		limiter:  limiter,
		retries:  map[retryKey]*SingleLegRetryInfo{},
	}
}

// Run drives periodic ticks (default hourly) plus event-driven wakeups
// delivered on wake.
func (s *Scheduler) Run(ctx context.Context, wake <-chan venue.Event) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		case <-wake:
			s.Tick(ctx)
		}
	}
}

// Tick is non-reentrant: a tick still running when the next one would fire
// is skipped and counted rather than queued or run concurrently.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickMu.Lock()
	if s.ticking {
		s.droppedTicks++
		s.tickMu.Unlock()
		if s.Metrics != nil {
			s.Metrics.TicksDropped.Inc()
		}
		return
	}
	s.ticking = true
	s.tickMu.Unlock()
	defer func() {
		s.tickMu.Lock()
		s.ticking = false
		s.tickMu.Unlock()
	}()

	snap := s.cache.Snapshot()
	pairs := pairing.ClassifyAll(snap.Positions)

	s.sweepZombies(ctx, snap)

	for normalized, pp := range pairs {
		if pp.Status != pairing.SingleLeg {
			continue
		}
		if err := s.recoverSingleLeg(ctx, pp); err != nil {
			s.log.Warn().Str("symbol", normalized).Err(err).Msg("single-leg recovery step failed")
		}
	}
}

// DroppedTicks reports how many ticks were skipped because a prior tick was
// still running.
func (s *Scheduler) DroppedTicks() int {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.droppedTicks
}

func (s *Scheduler) sweepZombies(ctx context.Context, snap cache.Snapshot) {
	var allOrders []venue.Order
	for name, adapter := range s.adapters {
		open, err := adapter.GetOpenOrders(ctx)
		if err != nil {
			s.log.Warn().Str("venue", string(name)).Err(err).Msg("get open orders failed during zombie sweep")
			continue
		}
		for _, o := range open {
			allOrders = append(allOrders, venue.Order{
				OrderID: o.OrderID, Venue: name, Normalized: o.Normalized,
				Side: o.Side, Size: o.Size, Price: o.Price, PlacedAt: o.PlacedAt,
			})
		}
	}

	zombies := findZombies(allOrders, snap.Positions)
	for _, z := range zombies {
		adapter, ok := s.adapters[z.Venue]
		if !ok {
			continue
		}
		if _, err := adapter.CancelOrder(ctx, z.OrderID, z.Normalized); err != nil {
			s.log.Warn().Str("venue", string(z.Venue)).Str("symbol", z.Normalized).Err(err).Msg("zombie cancel failed")
			continue
		}
		if s.Metrics != nil {
			s.Metrics.ZombiesCancelled.WithLabelValues(string(z.Venue)).Inc()
		}
		s.log.Info().Str("venue", string(z.Venue)).Str("symbol", z.Normalized).Str("order_id", z.OrderID).Msg("cancelled zombie order")
	}
}

// OpenPair opens both legs of opp in parallel. A single-leg fill is never
// unwound here; it is handed to the recovery machine on the next tick via
// retryInfo ("does not abort a filled leg if the other leg fails").
func (s *Scheduler) OpenPair(ctx context.Context, opp funding.Opportunity, size float64) error {
	type legResult struct {
		side   venue.Side
		filled bool
	}

	threadID := uuid.NewString()
	if !s.locks.TryAcquireSymbolLock(opp.Normalized, threadID, lock.PurposeOpen) {
		return fmt.Errorf("scheduler: could not acquire symbol lock for %s", opp.Normalized)
	}
	defer s.locks.ReleaseSymbolLock(opp.Normalized, threadID)

	out := make(chan legResult, 2)
	go func() {
		_, err := s.placeLeg(ctx, opp.LongVenue, opp.Normalized, venue.Long, size, opp.LongMarkPrice, threadID)
		out <- legResult{side: venue.Long, filled: err == nil}
	}()
	go func() {
		_, err := s.placeLeg(ctx, opp.ShortVenue, opp.Normalized, venue.Short, size, opp.ShortMarkPrice, threadID)
		out <- legResult{side: venue.Short, filled: err == nil}
	}()

	var longOK, shortOK bool
	for i := 0; i < 2; i++ {
		r := <-out
		if r.side == venue.Long {
			longOK = r.filled
		} else {
			shortOK = r.filled
		}
	}

	if longOK && shortOK {
		if s.Metrics != nil {
			s.Metrics.PairsOpened.WithLabelValues("both_filled").Inc()
		}
		return nil
	}
	if !longOK && !shortOK {
		if s.Metrics != nil {
			s.Metrics.PairsOpened.WithLabelValues("both_failed").Inc()
		}
		return fmt.Errorf("scheduler: both legs failed to open for %s", opp.Normalized)
	}

	info := SingleLegRetryInfo{Normalized: opp.Normalized, LongVenue: opp.LongVenue, ShortVenue: opp.ShortVenue}
	s.retryMu.Lock()
	s.retries[keyFor(info)] = &info
	s.retryMu.Unlock()
	if s.Metrics != nil {
		s.Metrics.PairsOpened.WithLabelValues("single_leg").Inc()
	}
	s.log.Warn().Str("symbol", opp.Normalized).Bool("long_ok", longOK).Bool("short_ok", shortOK).Msg("single-leg open, recovery pinned")
	return nil
}

func (s *Scheduler) placeLeg(ctx context.Context, v venue.Name, normalized string, side venue.Side, size, price float64, threadID string) (venue.PlaceOrderResponse, error) {
	adapter, ok := s.adapters[v]
	if !ok {
		return venue.PlaceOrderResponse{}, fmt.Errorf("no adapter for venue %s", v)
	}

	key := lock.OrderKey{Venue: string(v), Normalized: normalized, Side: string(side)}
	if !s.locks.RegisterOrderPlacing(key, threadID, size, price) {
		return venue.PlaceOrderResponse{}, fmt.Errorf("order already active for %s/%s/%s", v, normalized, side)
	}

	if err := s.limiter.Acquire(ctx, string(v), 1, ratelimit.Normal); err != nil {
		s.locks.UpdateOrderStatus(key, string(venue.Failed), "", 0)
		return venue.PlaceOrderResponse{}, err
	}

	resp, err := adapter.PlaceOrder(ctx, venue.PlaceOrderRequest{
		Normalized: normalized, Side: side, Size: size, Price: price,
		Type: venue.Limit, TIF: venue.GTC, ClientID: uuid.NewString(),
	})
	if err != nil {
		s.locks.UpdateOrderStatus(key, string(venue.Failed), "", 0)
		return venue.PlaceOrderResponse{}, err
	}
	s.locks.UpdateOrderStatus(key, string(resp.Status), resp.OrderID, resp.AvgFillPrice)
	if resp.Status != venue.Filled && resp.Status != venue.PartiallyFilled {
		return resp, fmt.Errorf("leg not filled, status=%s", resp.Status)
	}
	return resp, nil
}
