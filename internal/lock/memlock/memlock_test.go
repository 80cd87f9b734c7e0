package memlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundingkeeper/internal/lock"
)

func TestTryAcquireSymbolLock_SecondHolderIsRejected(t *testing.T) {
	s := New()
	assert.True(t, s.TryAcquireSymbolLock("BTC-USD", "thread-1", lock.PurposeOpen))
	assert.False(t, s.TryAcquireSymbolLock("BTC-USD", "thread-2", lock.PurposeOpen))
}

func TestTryAcquireSymbolLock_SameHolderCannotReacquireWithoutRelease(t *testing.T) {
	s := New()
	require.True(t, s.TryAcquireSymbolLock("BTC-USD", "thread-1", lock.PurposeOpen))
	assert.False(t, s.TryAcquireSymbolLock("BTC-USD", "thread-1", lock.PurposeOpen))
}

func TestReleaseSymbolLock_OnlyCurrentHolderCanRelease(t *testing.T) {
	s := New()
	require.True(t, s.TryAcquireSymbolLock("BTC-USD", "thread-1", lock.PurposeOpen))

	s.ReleaseSymbolLock("BTC-USD", "thread-2")
	assert.False(t, s.TryAcquireSymbolLock("BTC-USD", "thread-3", lock.PurposeOpen), "lock must still be held by thread-1")

	s.ReleaseSymbolLock("BTC-USD", "thread-1")
	assert.True(t, s.TryAcquireSymbolLock("BTC-USD", "thread-3", lock.PurposeOpen))
}

// Concurrency check: many goroutines racing to acquire the same symbol must
// see exactly one winner, with the rest observing rejection.
func TestTryAcquireSymbolLock_OnlyOneWinnerUnderConcurrency(t *testing.T) {
	s := New()
	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			threadID := "thread"
			_ = i
			if s.TryAcquireSymbolLock("ETH-USD", threadID+string(rune('0'+i%10)), lock.PurposeOpen) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRegisterOrderPlacing_RejectsWhileActiveOrderExists(t *testing.T) {
	s := New()
	key := lock.OrderKey{Venue: "hyperliquid", Normalized: "BTC-USD", Side: "LONG"}

	assert.True(t, s.RegisterOrderPlacing(key, "thread-1", 10, 100))
	assert.False(t, s.RegisterOrderPlacing(key, "thread-2", 5, 100))
	assert.True(t, s.HasActiveOrder(key))
}

func TestUpdateOrderStatus_TerminalStatusFreesTheSlot(t *testing.T) {
	s := New()
	key := lock.OrderKey{Venue: "hyperliquid", Normalized: "BTC-USD", Side: "LONG"}
	require.True(t, s.RegisterOrderPlacing(key, "thread-1", 10, 100))

	s.UpdateOrderStatus(key, "FILLED", "order-123", 101)
	assert.False(t, s.HasActiveOrder(key))
	assert.True(t, s.RegisterOrderPlacing(key, "thread-2", 10, 100))
}

func TestUpdateOrderStatus_NonTerminalStatusKeepsSlotActive(t *testing.T) {
	s := New()
	key := lock.OrderKey{Venue: "hyperliquid", Normalized: "BTC-USD", Side: "LONG"}
	require.True(t, s.RegisterOrderPlacing(key, "thread-1", 10, 100))

	s.UpdateOrderStatus(key, "PARTIALLY_FILLED", "order-123", 101)
	assert.True(t, s.HasActiveOrder(key))
	assert.False(t, s.RegisterOrderPlacing(key, "thread-2", 10, 100))
}

func TestGlobalLockHolder_OnlyReflectsClosePairPurpose(t *testing.T) {
	s := New()
	require.True(t, s.TryAcquireSymbolLock("BTC-USD", "thread-1", lock.PurposeOpen))
	assert.Equal(t, "", s.GlobalLockHolder())

	require.True(t, s.TryAcquireSymbolLock("ETH-USD", "thread-2", lock.PurposeClosePair))
	assert.Equal(t, "ETH-USD:thread-2", s.GlobalLockHolder())
}
