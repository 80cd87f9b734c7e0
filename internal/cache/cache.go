// Package cache implements component D, the Market State Cache: unified
// positions/marks/fundings keyed by (venue, normalized symbol), refreshed
// reactively from venue push events and periodically as a blindness
// backstop (spec.md §4.D).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Defaults per spec.md §6.
const (
	DefaultRefreshInterval     = 60 * time.Second
	DefaultStaleAfter          = 10 * time.Second
	DefaultHardRefreshInterval = 5 * time.Minute
	DefaultFundingRefresh      = 5 * time.Minute
)

type posKey struct {
	venue      venue.Name
	normalized string
	side       venue.Side
}

type markKey struct {
	normalized string
	venue      venue.Name
}

// Snapshot is the read-only view F, G, I and J consume (Design Notes §9:
// layering breaks the aggregator/cache cycle by only ever handing out an
// immutable copy).
type Snapshot struct {
	Positions []venue.Position
	Marks     map[markKey]float64
	Fundings  map[markKey]venue.FundingRate
}

// PositionsForSymbol returns every leg held for normalized, across venues.
func (s Snapshot) PositionsForSymbol(normalized string) []venue.Position {
	var out []venue.Position
	for _, p := range s.Positions {
		if p.Normalized == normalized {
			out = append(out, p)
		}
	}
	return out
}

type venueState struct {
	positions      []venue.Position
	lastReactive   time.Time
	refreshingNow  bool
}

// Cache is the Market State Cache. Every replacement of a venue's positions
// slice (reactive OnEvent or periodic refresh) happens under mu, so readers
// see a per-venue consistent slice, with cross-venue skew bounded by
// T_refresh (spec.md §5). refreshingNow only keeps one venue's periodic
// refreshes from overlapping; it does not hold back reactive updates.
type Cache struct {
	log zerolog.Logger

	mu        sync.RWMutex
	byVenue   map[venue.Name]*venueState
	marks     map[markKey]float64
	fundings  map[markKey]venue.FundingRate

	adapters map[venue.Name]venue.Adapter

	refreshInterval     time.Duration
	staleAfter          time.Duration
	hardRefreshInterval time.Duration
}

func New(log zerolog.Logger, adapters map[venue.Name]venue.Adapter) *Cache {
	return &Cache{
		log:                 log,
		byVenue:             map[venue.Name]*venueState{},
		marks:               map[markKey]float64{},
		fundings:            map[markKey]venue.FundingRate{},
		adapters:            adapters,
		refreshInterval:     DefaultRefreshInterval,
		staleAfter:          DefaultStaleAfter,
		hardRefreshInterval: DefaultHardRefreshInterval,
	}
}

// Configure overrides the refresh cadences (spec.md §6 config keys).
func (c *Cache) Configure(refresh, stale, hard time.Duration) {
	if refresh > 0 {
		c.refreshInterval = refresh
	}
	if stale > 0 {
		c.staleAfter = stale
	}
	if hard > 0 {
		c.hardRefreshInterval = hard
	}
}

// Run drives the periodic refresh paths until ctx is cancelled. Callers
// additionally feed reactive events via OnEvent as venues push them.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	hardTicker := time.NewTicker(c.hardRefreshInterval)
	defer hardTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshStale(ctx)
		case <-hardTicker.C:
			c.refreshAll(ctx)
		}
	}
}

func (c *Cache) refreshStale(ctx context.Context) {
	now := time.Now()
	for name := range c.adapters {
		c.mu.RLock()
		st, ok := c.byVenue[name]
		stale := !ok || now.Sub(st.lastReactive) > c.staleAfter
		c.mu.RUnlock()
		if stale {
			c.refreshVenue(ctx, name)
		}
	}
}

func (c *Cache) refreshAll(ctx context.Context) {
	for name := range c.adapters {
		c.refreshVenue(ctx, name)
	}
}

// refreshVenue pulls the full position slice for one venue via REST and
// replaces it wholesale, pruning sub-epsilon residue per I3. A call that
// finds a refresh of the same venue already in flight returns at once.
func (c *Cache) refreshVenue(ctx context.Context, name venue.Name) {
	c.mu.Lock()
	st, ok := c.byVenue[name]
	if !ok {
		st = &venueState{}
		c.byVenue[name] = st
	}
	if st.refreshingNow {
		c.mu.Unlock()
		return
	}
	st.refreshingNow = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		st.refreshingNow = false
		c.mu.Unlock()
	}()

	adapter, ok := c.adapters[name]
	if !ok {
		return
	}
	positions, err := adapter.GetPositions(ctx)
	if err != nil {
		c.log.Warn().Str("venue", string(name)).Err(err).Msg("venue refresh failed")
		return
	}
	c.replaceVenuePositions(name, positions)
}

func (c *Cache) replaceVenuePositions(name venue.Name, positions []venue.Position) {
	fresh := make([]venue.Position, 0, len(positions))
	for _, p := range positions {
		if !p.Closed() {
			fresh = append(fresh, p)
		}
		c.mu.Lock()
		c.marks[markKey{normalized: p.Normalized, venue: name}] = p.MarkPrice
		c.mu.Unlock()
	}

	c.mu.Lock()
	st, ok := c.byVenue[name]
	if !ok {
		st = &venueState{}
		c.byVenue[name] = st
	}
	st.positions = fresh
	st.lastReactive = time.Now()
	c.mu.Unlock()
}

// OnEvent applies a reactive venue push: a PositionsUpdate replaces that
// venue's entire slice (I3); an OrderUpdate is informational only here (the
// scheduler's lock-service registry is the source of truth for I4).
func (c *Cache) OnEvent(ev venue.Event) {
	switch ev.Kind {
	case venue.PositionsUpdateEvent:
		c.replaceVenuePositions(ev.Venue, ev.Positions)
	case venue.OrderUpdateEvent:
		// No cache state to mutate; the scheduler wakes up on this event
		// via its own subscription and re-ticks.
	}
}

// WakeupEvents runs a background goroutine per venue adapter, consuming its
// SubscribePositionsAndOrders channel, applying reactive updates, and
// forwarding every event on out so the scheduler can trigger an
// event-driven tick (spec.md §4.D, §4.I).
func (c *Cache) WakeupEvents(ctx context.Context, out chan<- venue.Event) {
	for name, adapter := range c.adapters {
		name, adapter := name, adapter
		ch, err := adapter.SubscribePositionsAndOrders(ctx)
		if err != nil {
			c.log.Warn().Str("venue", string(name)).Err(err).Msg("subscribe failed")
			continue
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					c.OnEvent(ev)
					select {
					case out <- ev:
					default:
					}
				}
			}
		}()
	}
}

// SetFunding installs a funding rate observation (component F pushes here
// after its own on-demand or timer-driven pulls).
func (c *Cache) SetFunding(f venue.FundingRate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fundings[markKey{normalized: f.Normalized, venue: f.Venue}] = f
}

// Snapshot returns a point-in-time copy safe for concurrent callers to read
// without further locking.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var positions []venue.Position
	for _, st := range c.byVenue {
		positions = append(positions, st.positions...)
	}
	marks := make(map[markKey]float64, len(c.marks))
	for k, v := range c.marks {
		marks[k] = v
	}
	fundings := make(map[markKey]venue.FundingRate, len(c.fundings))
	for k, v := range c.fundings {
		fundings[k] = v
	}
	return Snapshot{Positions: positions, Marks: marks, Fundings: fundings}
}

// MarkFor returns the last observed mark price for (normalized, venue).
func (s Snapshot) MarkFor(normalized string, v venue.Name) (float64, bool) {
	p, ok := s.Marks[markKey{normalized: normalized, venue: v}]
	return p, ok
}

// FundingsFor returns every cached funding rate for a normalized symbol.
func (s Snapshot) FundingsFor(normalized string) []venue.FundingRate {
	var out []venue.FundingRate
	for k, f := range s.Fundings {
		if k.normalized == normalized {
			out = append(out, f)
		}
	}
	return out
}
