// Package close implements component H, the Hedged Close Executor: parallel
// two-leg reduce-only close under partial-failure semantics (spec.md §4.H).
package close

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sawpanic/fundingkeeper/internal/lock"
	"github.com/sawpanic/fundingkeeper/internal/pairing"
	"github.com/sawpanic/fundingkeeper/internal/ratelimit"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Executor closes PairedPositions leg-by-leg, in parallel, never letting one
// leg's failure abort the other (spec.md §4.H, §7 propagation policy).
type Executor struct {
	locks    lock.Service
	limiter  *ratelimit.Manager
	adapters map[venue.Name]venue.Adapter
}

func New(locks lock.Service, limiter *ratelimit.Manager, adapters map[venue.Name]venue.Adapter) *Executor {
	return &Executor{locks: locks, limiter: limiter, adapters: adapters}
}

// Result is the report from ClosePair (spec.md §4.H step 4).
type Result struct {
	LongClosed  bool
	ShortClosed bool
	LongOrder   *venue.PlaceOrderResponse
	ShortOrder  *venue.PlaceOrderResponse
	Errors      []error
}

// legOutcome is the channel payload one leg's goroutine reports back.
type legOutcome struct {
	isLong bool
	resp   venue.PlaceOrderResponse
	err    error
}

// ClosePair executes spec.md §4.H steps 1-5. priority selects the rate
// limiter class (EMERGENCY for liquidation-driven closes, NORMAL otherwise).
// If skipLocking is true the caller already holds the symbol lock (e.g. the
// scheduler closing as part of a wider recovery action) and ClosePair will
// not attempt to acquire or release it itself.
func (e *Executor) ClosePair(ctx context.Context, pp pairing.PairedPosition, fraction float64, orderType venue.OrderType, priority ratelimit.Priority, skipLocking bool) (Result, error) {
	if pp.Long == nil || pp.Short == nil {
		return Result{}, fmt.Errorf("close: %s is not a valid pair (status=%s)", pp.Normalized, pp.Status)
	}
	if fraction <= 0 || fraction > 1 {
		return Result{}, fmt.Errorf("close: fraction %v out of range (0,1]", fraction)
	}

	threadID := uuid.NewString()
	if !skipLocking {
		if !e.locks.TryAcquireSymbolLock(pp.Normalized, threadID, lock.PurposeClosePair) {
			return Result{}, fmt.Errorf("close: could not acquire symbol lock for %s", pp.Normalized)
		}
		defer e.locks.ReleaseSymbolLock(pp.Normalized, threadID)
	}

	longSize := pp.Long.Size * fraction
	shortSize := pp.Short.Size * fraction
	if longSize < 0 {
		longSize = -longSize
	}
	if shortSize < 0 {
		shortSize = -shortSize
	}

	tif := venue.GTC
	if orderType == venue.Market {
		tif = venue.IOC
	}

	out := make(chan legOutcome, 2)
	go e.closeLeg(ctx, out, true, pp.Long.Venue, pp.Normalized, venue.Short, longSize, pp.Long.MarkPrice, orderType, tif, priority)
	go e.closeLeg(ctx, out, false, pp.Short.Venue, pp.Normalized, venue.Long, shortSize, pp.Short.MarkPrice, orderType, tif, priority)

	var res Result
	for i := 0; i < 2; i++ {
		o := <-out
		if o.err != nil {
			res.Errors = append(res.Errors, o.err)
			continue
		}
		resp := o.resp
		if o.isLong {
			res.LongClosed = true
			res.LongOrder = &resp
		} else {
			res.ShortClosed = true
			res.ShortOrder = &resp
		}
	}
	return res, nil
}

// closeLeg submits one reduce-only order: closeSide is the order's own
// side (opposite of the position's side), which is what actually reduces
// the held leg.
func (e *Executor) closeLeg(ctx context.Context, out chan<- legOutcome, isLong bool, v venue.Name, normalized string, closeSide venue.Side, size, markPrice float64, orderType venue.OrderType, tif venue.TimeInForce, priority ratelimit.Priority) {
	adapter, ok := e.adapters[v]
	if !ok {
		out <- legOutcome{isLong: isLong, err: fmt.Errorf("close: no adapter for venue %s", v)}
		return
	}

	if err := e.limiter.Acquire(ctx, string(v), 1, priority); err != nil {
		out <- legOutcome{isLong: isLong, err: fmt.Errorf("close: rate limit acquire for %s: %w", v, err)}
		return
	}

	req := venue.PlaceOrderRequest{
		Normalized: normalized,
		Side:       closeSide,
		Size:       size,
		Price:      markPrice,
		Type:       orderType,
		ReduceOnly: true,
		TIF:        tif,
		ClientID:   uuid.NewString(),
	}
	resp, err := adapter.PlaceOrder(ctx, req)
	if err != nil {
		out <- legOutcome{isLong: isLong, err: fmt.Errorf("close: place order on %s: %w", v, err)}
		return
	}
	out <- legOutcome{isLong: isLong, resp: resp}
}
