package cache

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

func TestOnEvent_PositionsUpdateReplacesVenueSlice(t *testing.T) {
	c := New(zerolog.Nop(), nil)
	c.OnEvent(venue.Event{
		Kind:  venue.PositionsUpdateEvent,
		Venue: venue.Hyperliquid,
		Positions: []venue.Position{
			{Venue: venue.Hyperliquid, Normalized: "BTC-USD", Side: venue.Long, Size: 10, MarkPrice: 100},
		},
	})

	snap := c.Snapshot()
	assert.Len(t, snap.PositionsForSymbol("BTC-USD"), 1)
	mark, ok := snap.MarkFor("BTC-USD", venue.Hyperliquid)
	assert.True(t, ok)
	assert.Equal(t, 100.0, mark)

	// A second replace must drop the stale position entirely, not merge.
	c.OnEvent(venue.Event{
		Kind:      venue.PositionsUpdateEvent,
		Venue:     venue.Hyperliquid,
		Positions: []venue.Position{},
	})
	assert.Empty(t, c.Snapshot().PositionsForSymbol("BTC-USD"))
}

func TestOnEvent_ClosedPositionsArePruned(t *testing.T) {
	c := New(zerolog.Nop(), nil)
	c.OnEvent(venue.Event{
		Kind:  venue.PositionsUpdateEvent,
		Venue: venue.Lighter,
		Positions: []venue.Position{
			{Venue: venue.Lighter, Normalized: "ETH-USD", Side: venue.Short, Size: 0.00001, MarkPrice: 50},
		},
	})
	assert.Empty(t, c.Snapshot().PositionsForSymbol("ETH-USD"), "sub-epsilon size must be treated as closed")
}

func TestSetFunding_OverwritesPerVenuePerSymbol(t *testing.T) {
	c := New(zerolog.Nop(), nil)
	c.SetFunding(venue.FundingRate{Venue: venue.Aster, Normalized: "BTC-USD", CurrentRate: 1e-4})
	c.SetFunding(venue.FundingRate{Venue: venue.Aster, Normalized: "BTC-USD", CurrentRate: 2e-4})

	fundings := c.Snapshot().FundingsFor("BTC-USD")
	assert.Len(t, fundings, 1)
	assert.Equal(t, 2e-4, fundings[0].CurrentRate)
}

func TestSnapshot_IsAPointInTimeCopyNotALiveView(t *testing.T) {
	c := New(zerolog.Nop(), nil)
	c.SetFunding(venue.FundingRate{Venue: venue.Aster, Normalized: "BTC-USD", CurrentRate: 1e-4})
	snap := c.Snapshot()

	c.SetFunding(venue.FundingRate{Venue: venue.Aster, Normalized: "BTC-USD", CurrentRate: 9e-4})
	stillOld := snap.FundingsFor("BTC-USD")
	assert.Equal(t, 1e-4, stillOld[0].CurrentRate)
}

// Concurrency check: concurrent writers (OnEvent/SetFunding) and readers
// (Snapshot) must never race or panic — one writer goroutine per venue here,
// and Snapshot must stay safe against their concurrent mutation.
func TestCache_ConcurrentReadsAndWritesDoNotRace(t *testing.T) {
	c := New(zerolog.Nop(), nil)
	var wg sync.WaitGroup

	writers := []venue.Name{venue.Hyperliquid, venue.Lighter, venue.Aster}
	for _, v := range writers {
		v := v
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.OnEvent(venue.Event{
					Kind:  venue.PositionsUpdateEvent,
					Venue: v,
					Positions: []venue.Position{
						{Venue: v, Normalized: "BTC-USD", Side: venue.Long, Size: 1, MarkPrice: float64(i)},
					},
				})
				c.SetFunding(venue.FundingRate{Venue: v, Normalized: "BTC-USD", CurrentRate: float64(i) * 1e-5})
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = c.Snapshot()
		}
	}()

	wg.Wait()
}
