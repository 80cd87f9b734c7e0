// Package funding implements component F: the Funding Aggregator and
// Opportunity Finder (spec.md §4.F).
package funding

import (
	"context"
	"sort"
	"time"

	"github.com/sawpanic/fundingkeeper/internal/cache"
	"github.com/sawpanic/fundingkeeper/internal/symbols"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Aggregator reads the Market State Cache and the Symbol Mapping Registry
// to compare rates and surface arbitrage candidates.
type Aggregator struct {
	registry     *symbols.Registry
	adapters     map[venue.Name]venue.Adapter
	requireOI    bool
	batchSize    int
	batchPause   time.Duration
}

// Option configures batching/gating knobs (spec.md §4.F, §7).
type Option func(*Aggregator)

func WithRequireOI(require bool) Option   { return func(a *Aggregator) { a.requireOI = require } }
func WithBatchSize(n int) Option          { return func(a *Aggregator) { a.batchSize = n } }
func WithBatchPause(d time.Duration) Option { return func(a *Aggregator) { a.batchPause = d } }

func New(registry *symbols.Registry, adapters map[venue.Name]venue.Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		registry:   registry,
		adapters:   adapters,
		batchSize:  5,
		batchPause: time.Second,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// GetFundingRates returns one FundingRate per venue the symbol is mapped on
// (cache.Snapshot first, on-demand adapter call as a fallback), dropping any
// venue whose OI is required but unavailable (spec.md §7 data-missing
// gating).
func (a *Aggregator) GetFundingRates(ctx context.Context, snap cache.Snapshot, normalized string) []venue.FundingRate {
	cached := snap.FundingsFor(normalized)
	byVenue := make(map[venue.Name]venue.FundingRate, len(cached))
	for _, f := range cached {
		byVenue[f.Venue] = f
	}

	for _, v := range a.registry.VenuesFor(normalized) {
		if _, ok := byVenue[v]; ok {
			continue
		}
		adapter, ok := a.adapters[v]
		if !ok {
			continue
		}
		m, _ := a.registry.Lookup(normalized)
		rawID := m.PerVenue[v]
		f, err := adapter.GetFundingData(ctx, venue.FundingQuery{Normalized: normalized, RawID: rawID})
		if err != nil || f == nil {
			continue
		}
		byVenue[v] = *f
	}

	out := make([]venue.FundingRate, 0, len(byVenue))
	for _, f := range byVenue {
		if a.requireOI && f.OpenInterest == nil {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// Comparison is the result of CompareFundingRates.
type Comparison struct {
	Highest venue.FundingRate
	Lowest  venue.FundingRate
	Spread  float64
	Ok      bool
}

// CompareFundingRates sorts rates descending by hourly currentRate and
// returns the extremes (spec.md §4.F).
func (a *Aggregator) CompareFundingRates(rates []venue.FundingRate) Comparison {
	if len(rates) < 2 {
		return Comparison{}
	}
	sorted := append([]venue.FundingRate(nil), rates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HourlyRate() > sorted[j].HourlyRate() })
	highest, lowest := sorted[0], sorted[len(sorted)-1]
	return Comparison{
		Highest: highest,
		Lowest:  lowest,
		Spread:  highest.HourlyRate() - lowest.HourlyRate(),
		Ok:      true,
	}
}
