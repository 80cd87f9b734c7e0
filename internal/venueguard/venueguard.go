// Package venueguard wraps a venue.Adapter with a per-venue circuit breaker
// so a flaky venue degrades to fast kNetwork failures instead of hanging the
// scheduler or liquidation monitor. Adapted from infra/breakers.Breaker's
// sony/gobreaker settings; one breaker per wrapped adapter is shared by all
// of its guarded methods.
package venueguard

import (
	"context"
	"time"

	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Guard decorates an Adapter, routing its order, position and mark-price
// calls (PlaceOrder, CancelOrder, CancelAllOrders, GetOrderStatus,
// GetOpenOrders, GetPositions, GetPosition, GetMarkPrice) through a circuit
// breaker keyed by venue name. All other Adapter methods pass straight
// through to the wrapped adapter without the breaker.
type Guard struct {
	venue.Adapter
	breaker *cb.CircuitBreaker
}

// New wraps adapter with a circuit breaker using the same trip policy as
// infra/breakers.Breaker: 3 consecutive failures, or >5% failure rate once
// request volume passes 20 in the rolling interval.
func New(adapter venue.Adapter) *Guard {
	name := string(adapter.Venue())
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return &Guard{Adapter: adapter, breaker: cb.NewCircuitBreaker(st)}
}

// execute runs fn through the breaker, translating an open-circuit refusal
// into a kNetwork AdapterError so callers branch on ErrorKind uniformly.
func execute[T any](g *Guard, op string, fn func() (T, error)) (T, error) {
	var zero T
	res, err := g.breaker.Execute(func() (any, error) {
		v, err := fn()
		if err != nil {
			return zero, err
		}
		return v, nil
	})
	if err != nil {
		if err == cb.ErrOpenState || err == cb.ErrTooManyRequests {
			return zero, venue.NewAdapterError(g.Adapter.Venue(), op, venue.KindNetwork, err)
		}
		return zero, err
	}
	return res.(T), nil
}

func (g *Guard) PlaceOrder(ctx context.Context, req venue.PlaceOrderRequest) (venue.PlaceOrderResponse, error) {
	return execute(g, "PlaceOrder", func() (venue.PlaceOrderResponse, error) { return g.Adapter.PlaceOrder(ctx, req) })
}

func (g *Guard) CancelOrder(ctx context.Context, orderID, normalized string) (bool, error) {
	return execute(g, "CancelOrder", func() (bool, error) { return g.Adapter.CancelOrder(ctx, orderID, normalized) })
}

func (g *Guard) CancelAllOrders(ctx context.Context, normalized string) (int, error) {
	return execute(g, "CancelAllOrders", func() (int, error) { return g.Adapter.CancelAllOrders(ctx, normalized) })
}

func (g *Guard) GetOrderStatus(ctx context.Context, orderID, normalized string) (venue.OrderStatusResponse, error) {
	return execute(g, "GetOrderStatus", func() (venue.OrderStatusResponse, error) {
		return g.Adapter.GetOrderStatus(ctx, orderID, normalized)
	})
}

func (g *Guard) GetOpenOrders(ctx context.Context) ([]venue.OpenOrder, error) {
	return execute(g, "GetOpenOrders", func() ([]venue.OpenOrder, error) { return g.Adapter.GetOpenOrders(ctx) })
}

func (g *Guard) GetPositions(ctx context.Context) ([]venue.Position, error) {
	return execute(g, "GetPositions", func() ([]venue.Position, error) { return g.Adapter.GetPositions(ctx) })
}

func (g *Guard) GetPosition(ctx context.Context, normalized string) (*venue.Position, error) {
	return execute(g, "GetPosition", func() (*venue.Position, error) { return g.Adapter.GetPosition(ctx, normalized) })
}

func (g *Guard) GetMarkPrice(ctx context.Context, normalized string) (float64, error) {
	return execute(g, "GetMarkPrice", func() (float64, error) { return g.Adapter.GetMarkPrice(ctx, normalized) })
}
