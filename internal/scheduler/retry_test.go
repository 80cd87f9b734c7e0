package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Scenario S1: retryInfo pins the recovery leg's venue even though the
// generic preferred-venue derivation would otherwise run.
func TestDetermineMissingSide_PinnedByRetryInfo(t *testing.T) {
	position := venue.Position{Venue: venue.Lighter, Normalized: "BTC-USD", Side: venue.Short, Size: 100}
	retryInfo := &SingleLegRetryInfo{
		Normalized: "BTC-USD",
		LongVenue:  venue.Hyperliquid,
		ShortVenue: venue.Lighter,
		RetryCount: 1,
	}
	available := []venue.Name{venue.Hyperliquid, venue.Lighter}

	missingVenue, missingSide, info, err := determineMissingSide(position, retryInfo, available, nil)
	require.NoError(t, err)
	assert.Equal(t, venue.Hyperliquid, missingVenue)
	assert.Equal(t, venue.Long, missingSide)
	assert.Equal(t, venue.Hyperliquid, info.LongVenue)
	assert.Equal(t, venue.Lighter, info.ShortVenue)
	assert.NotEqual(t, position.Venue, missingVenue, "safety invariant: missing venue must never equal the existing leg's venue")
}

func TestDetermineMissingSide_FreshDerivationPrefersHyperliquid(t *testing.T) {
	position := venue.Position{Venue: venue.Aster, Normalized: "ETH-USD", Side: venue.Long, Size: 10}
	available := []venue.Name{venue.Aster, venue.Hyperliquid, venue.Lighter}

	missingVenue, missingSide, info, err := determineMissingSide(position, nil, available, nil)
	require.NoError(t, err)
	assert.Equal(t, venue.Hyperliquid, missingVenue)
	assert.Equal(t, venue.Short, missingSide)
	assert.Equal(t, venue.Aster, info.LongVenue)
	assert.Equal(t, venue.Hyperliquid, info.ShortVenue)
}

func TestDetermineMissingSide_FallsBackToFirstOtherWhenHyperliquidUnavailable(t *testing.T) {
	position := venue.Position{Venue: venue.Aster, Normalized: "ETH-USD", Side: venue.Long, Size: 10}
	available := []venue.Name{venue.Aster, venue.Extended}

	missingVenue, _, _, err := determineMissingSide(position, nil, available, nil)
	require.NoError(t, err)
	assert.Equal(t, venue.Extended, missingVenue)
}

func TestDetermineMissingSide_NoCounterpartyErrors(t *testing.T) {
	position := venue.Position{Venue: venue.Aster, Normalized: "ETH-USD", Side: venue.Long, Size: 10}
	available := []venue.Name{venue.Aster}

	_, _, _, err := determineMissingSide(position, nil, available, nil)
	assert.ErrorIs(t, err, ErrNoCounterparty)
}

func TestDetermineMissingSide_ConfiguredPreferredOrderOverridesDefault(t *testing.T) {
	position := venue.Position{Venue: venue.Aster, Normalized: "ETH-USD", Side: venue.Long, Size: 10}
	available := []venue.Name{venue.Aster, venue.Hyperliquid, venue.Lighter}

	missingVenue, _, info, err := determineMissingSide(position, nil, available, []string{"LIGHTER", "HYPERLIQUID"})
	require.NoError(t, err)
	assert.Equal(t, venue.Lighter, missingVenue)
	assert.Equal(t, venue.Lighter, info.ShortVenue)
}

func TestRetryDue_BackoffElapsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SingleLegBackoff = time.Minute
	s := &Scheduler{cfg: cfg}

	due := &SingleLegRetryInfo{RetryCount: 1, LastRetryTime: time.Now().Add(-2 * time.Minute)}
	assert.True(t, s.retryDue(due))

	notDue := &SingleLegRetryInfo{RetryCount: 1, LastRetryTime: time.Now()}
	assert.False(t, s.retryDue(notDue))
}
