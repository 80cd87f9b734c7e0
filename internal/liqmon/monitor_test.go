package liqmon

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundingkeeper/internal/close"
	"github.com/sawpanic/fundingkeeper/internal/lock/memlock"
	"github.com/sawpanic/fundingkeeper/internal/ratelimit"
	"github.com/sawpanic/fundingkeeper/internal/venue"
	"github.com/sawpanic/fundingkeeper/internal/venue/fake"
)

func newTestMonitor(cfg Config, long, short *fake.Adapter) *Monitor {
	adapters := map[venue.Name]venue.Adapter{venue.Hyperliquid: long, venue.Lighter: short}
	limiter := ratelimit.NewManager(ratelimit.VenueConfig{Burst: 10, RefillPerSec: 10})
	closer := close.New(memlock.New(), limiter, adapters)
	return New(zerolog.Nop(), cfg, nil, adapters, closer)
}

// Scenario S6 at the monitor level: a leg that has crossed the emergency
// threshold gets hedge-closed on the very next scan.
func TestScan_EmergencyProximityTriggersHedgedClose(t *testing.T) {
	long := fake.New(venue.Hyperliquid)
	short := fake.New(venue.Lighter)
	long.SetMark("BTC-USD", 90.5)
	short.SetMark("BTC-USD", 90.5)

	long.SeedPosition(venue.Position{Venue: venue.Hyperliquid, Normalized: "BTC-USD", Side: venue.Long, Size: 10, MarkPrice: 90.5, EntryPrice: 100, LiquidationPrice: 90, Leverage: 10})
	short.SeedPosition(venue.Position{Venue: venue.Lighter, Normalized: "BTC-USD", Side: venue.Short, Size: 10, MarkPrice: 90.5, EntryPrice: 100, LiquidationPrice: 200, Leverage: 2})

	cfg := DefaultConfig()
	m := newTestMonitor(cfg, long, short)
	m.Scan(context.Background())

	longPositions, err := long.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, longPositions, "the long leg must be fully closed once the emergency threshold is crossed")
}

func TestScan_EmergencyCloseDisabledLeavesPositionsOpen(t *testing.T) {
	long := fake.New(venue.Hyperliquid)
	short := fake.New(venue.Lighter)
	long.SetMark("BTC-USD", 90.5)
	short.SetMark("BTC-USD", 90.5)

	long.SeedPosition(venue.Position{Venue: venue.Hyperliquid, Normalized: "BTC-USD", Side: venue.Long, Size: 10, MarkPrice: 90.5, EntryPrice: 100, LiquidationPrice: 90, Leverage: 10})
	short.SeedPosition(venue.Position{Venue: venue.Lighter, Normalized: "BTC-USD", Side: venue.Short, Size: 10, MarkPrice: 90.5, EntryPrice: 100, LiquidationPrice: 200, Leverage: 2})

	cfg := DefaultConfig()
	cfg.EnableEmergencyClose = false
	m := newTestMonitor(cfg, long, short)
	m.Scan(context.Background())

	longPositions, err := long.GetPositions(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, longPositions, "emergency close disabled must leave the position untouched")
}

func TestScan_SafePositionsAreLeftAlone(t *testing.T) {
	long := fake.New(venue.Hyperliquid)
	short := fake.New(venue.Lighter)
	long.SetMark("BTC-USD", 100)
	short.SetMark("BTC-USD", 100)

	long.SeedPosition(venue.Position{Venue: venue.Hyperliquid, Normalized: "BTC-USD", Side: venue.Long, Size: 10, MarkPrice: 100, EntryPrice: 100, LiquidationPrice: 50, Leverage: 2})
	short.SeedPosition(venue.Position{Venue: venue.Lighter, Normalized: "BTC-USD", Side: venue.Short, Size: 10, MarkPrice: 100, EntryPrice: 100, LiquidationPrice: 150, Leverage: 2})

	m := newTestMonitor(DefaultConfig(), long, short)
	m.Scan(context.Background())

	longPositions, err := long.GetPositions(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, longPositions)
}

func TestCollectPositions_AggregatesAcrossAdaptersWhenCacheIsNil(t *testing.T) {
	long := fake.New(venue.Hyperliquid)
	short := fake.New(venue.Lighter)
	long.SeedPosition(venue.Position{Venue: venue.Hyperliquid, Normalized: "BTC-USD", Side: venue.Long, Size: 10, MarkPrice: 100})
	short.SeedPosition(venue.Position{Venue: venue.Lighter, Normalized: "ETH-USD", Side: venue.Short, Size: 5, MarkPrice: 50})

	m := newTestMonitor(DefaultConfig(), long, short)
	positions := m.collectPositions(context.Background())
	assert.Len(t, positions, 2)
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	long := fake.New(venue.Hyperliquid)
	short := fake.New(venue.Lighter)
	cfg := DefaultConfig()
	cfg.ScanInterval = 5 * time.Millisecond
	m := newTestMonitor(cfg, long, short)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
