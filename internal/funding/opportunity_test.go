package funding

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/fundingkeeper/internal/cache"
	"github.com/sawpanic/fundingkeeper/internal/symbols"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Scenario S4: ASTER=1e-4, LIGHTER=3e-4, HYPERLIQUID=-1e-4, minSpread=1e-4
// must yield a directional-cross opportunity long HYPERLIQUID / short
// LIGHTER with expectedReturn = 4e-4 * 8760.
func TestCandidatesFor_DirectionalCross(t *testing.T) {
	rates := []venue.FundingRate{
		{Venue: venue.Aster, CurrentRate: 1e-4, FundingPeriodHours: 1},
		{Venue: venue.Lighter, CurrentRate: 3e-4, FundingPeriodHours: 1},
		{Venue: venue.Hyperliquid, CurrentRate: -1e-4, FundingPeriodHours: 1},
	}

	candidates := candidatesFor("ETH-USD", rates, 1e-4)
	a := assert.New(t)
	a.NotEmpty(candidates)

	var cross *Opportunity
	for i := range candidates {
		if candidates[i].LongVenue == venue.Hyperliquid && candidates[i].ShortVenue == venue.Lighter {
			cross = &candidates[i]
		}
	}
	if !a.NotNil(cross) {
		return
	}
	a.InDelta(4e-4, cross.Spread, 1e-12)
	a.InDelta(4e-4*HoursPerYear, cross.ExpectedReturn, 1e-9)
}

func TestCandidatesFor_BelowMinSpreadYieldsNothing(t *testing.T) {
	rates := []venue.FundingRate{
		{Venue: venue.Aster, CurrentRate: 1e-5, FundingPeriodHours: 1},
		{Venue: venue.Lighter, CurrentRate: 2e-5, FundingPeriodHours: 1},
	}
	candidates := candidatesFor("ETH-USD", rates, 1e-4)
	assert.Empty(t, candidates)
}

func TestFindDirectionalCross_RequiresOppositeSignsOnDifferentVenues(t *testing.T) {
	rates := []venue.FundingRate{
		{Venue: venue.Aster, CurrentRate: 5e-4, FundingPeriodHours: 1},
		{Venue: venue.Lighter, CurrentRate: 3e-4, FundingPeriodHours: 1},
	}
	_, _, ok := findDirectionalCross(rates)
	assert.False(t, ok, "both rates positive: no directional cross exists")
}

func TestFindArbitrageOpportunities_SortedByExpectedReturnThenOI(t *testing.T) {
	registry := symbols.New(zerolog.Nop())
	registry.LoadFrom([]symbols.Mapping{
		{Normalized: "BTC-USD", PerVenue: map[venue.Name]string{venue.Aster: "BTC", venue.Lighter: "BTC"}},
		{Normalized: "ETH-USD", PerVenue: map[venue.Name]string{venue.Aster: "ETH", venue.Lighter: "ETH"}},
	})

	c := cache.New(zerolog.Nop(), nil)
	now := time.Now()
	highOI, lowOI := 1_000_000.0, 10.0
	c.SetFunding(venue.FundingRate{Venue: venue.Aster, Normalized: "BTC-USD", CurrentRate: 1e-4, FundingPeriodHours: 1, OpenInterest: &lowOI, Observed: now})
	c.SetFunding(venue.FundingRate{Venue: venue.Lighter, Normalized: "BTC-USD", CurrentRate: 5e-4, FundingPeriodHours: 1, OpenInterest: &lowOI, Observed: now})
	c.SetFunding(venue.FundingRate{Venue: venue.Aster, Normalized: "ETH-USD", CurrentRate: 1e-4, FundingPeriodHours: 1, OpenInterest: &highOI, Observed: now})
	c.SetFunding(venue.FundingRate{Venue: venue.Lighter, Normalized: "ETH-USD", CurrentRate: 5e-4, FundingPeriodHours: 1, OpenInterest: &highOI, Observed: now})

	a := New(registry, nil, WithBatchSize(5), WithBatchPause(0))
	opps := a.FindArbitrageOpportunities(context.Background(), c.Snapshot(), []string{"BTC-USD", "ETH-USD"}, 1e-4)
	assert.NotEmpty(t, opps)
	// Both symbols tie on expected return (same spread); ETH-USD has higher
	// combined OI so it must sort first among equal-return entries.
	assert.Equal(t, "ETH-USD", opps[0].Normalized)
}
