package main

import (
	"context"

	"github.com/sawpanic/fundingkeeper/internal/cache"
	"github.com/sawpanic/fundingkeeper/internal/funding"
	"github.com/sawpanic/fundingkeeper/internal/scheduler"
	"github.com/sawpanic/fundingkeeper/internal/symbols"
)

// statusAdapter implements httpserver.StatusProvider, keeping that package
// free of any import on the scheduler/funding/symbols packages.
type statusAdapter struct {
	sched    *scheduler.Scheduler
	cache    *cache.Cache
	agg      *funding.Aggregator
	registry *symbols.Registry
}

func (s *statusAdapter) Status() map[string]any {
	snap := s.cache.Snapshot()
	return map[string]any{
		"dropped_ticks":    s.sched.DroppedTicks(),
		"tradable_symbols": s.registry.TradableSymbols(),
		"open_positions":   len(snap.Positions),
	}
}

func (s *statusAdapter) Opportunities() []map[string]any {
	snap := s.cache.Snapshot()
	symbols := s.registry.TradableSymbols()
	opps := s.agg.FindArbitrageOpportunities(context.Background(), snap, symbols, 0)

	out := make([]map[string]any, 0, len(opps))
	for _, o := range opps {
		out = append(out, map[string]any{
			"symbol":          o.Normalized,
			"long_venue":      o.LongVenue,
			"short_venue":     o.ShortVenue,
			"spread":          o.Spread,
			"expected_return": o.ExpectedReturn,
			"observed":        o.Observed,
		})
	}
	return out
}
