package venueguard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/fundingkeeper/internal/venue"
	"github.com/sawpanic/fundingkeeper/internal/venue/fake"
)

func TestGuard_PassesThroughSuccessfulCalls(t *testing.T) {
	a := fake.New(venue.Hyperliquid)
	a.SetMark("BTC-USD", 100)
	g := New(a)

	price, err := g.GetMarkPrice(context.Background(), "BTC-USD")
	assert.NoError(t, err)
	assert.Equal(t, 100.0, price)
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	a := fake.New(venue.Hyperliquid)
	g := New(a)

	var lastErr error
	for i := 0; i < 3; i++ {
		a.PlaceOrderErr = assert.AnError
		_, lastErr = g.PlaceOrder(context.Background(), venue.PlaceOrderRequest{Normalized: "BTC-USD", Size: 1})
	}
	assert.Error(t, lastErr)

	// The breaker should now be open: the next call fails fast as a
	// kNetwork AdapterError even though the underlying adapter would
	// otherwise succeed.
	_, err := g.PlaceOrder(context.Background(), venue.PlaceOrderRequest{Normalized: "BTC-USD", Size: 1})
	assert.Equal(t, venue.KindNetwork, venue.KindOf(err))
}
