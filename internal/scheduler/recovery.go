package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/fundingkeeper/internal/lock"
	"github.com/sawpanic/fundingkeeper/internal/pairing"
	"github.com/sawpanic/fundingkeeper/internal/ratelimit"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// recoverSingleLeg drives one tick's worth of the single-leg recovery state
// machine for a SINGLE_LEG symbol: determine the missing leg, place it,
// poll for fill, and on timeout cancel the order; the existing leg is
// unwound once the retry budget is exhausted.
func (s *Scheduler) recoverSingleLeg(ctx context.Context, pp pairing.PairedPosition) error {
	position := existingLeg(pp)
	if position == nil {
		return fmt.Errorf("recovery: %s has no leg to recover from", pp.Normalized)
	}

	info := s.lookupRetryInfo(pp.Normalized, position.Venue)
	if info != nil && !s.retryDue(info) {
		return nil // backoff not yet elapsed
	}
	if info != nil && info.RetryCount >= s.cfg.MaxSingleLegRetries {
		return s.unwindLeg(ctx, *position, "retry budget exhausted")
	}

	available := s.availableVenues()
	missingVenue, missingSide, derived, err := determineMissingSide(*position, info, available, s.cfg.PreferredVenueForMissingLeg)
	if err != nil {
		return fmt.Errorf("recovery: %s: %w", pp.Normalized, err)
	}

	threadID := uuid.NewString()
	if !s.locks.TryAcquireSymbolLock(pp.Normalized, threadID, lock.PurposeRecover) {
		return fmt.Errorf("recovery: could not acquire symbol lock for %s", pp.Normalized)
	}
	defer s.locks.ReleaseSymbolLock(pp.Normalized, threadID)

	// Step 1: cancel any stale order resting at missingVenue from a prior
	// attempt before placing the fresh one, so the two can never collide.
	if adapter, ok := s.adapters[missingVenue]; ok {
		_, _ = adapter.CancelAllOrders(ctx, pp.Normalized)
	}

	derived.RetryCount++
	derived.LastRetryTime = time.Now()
	s.storeRetryInfo(derived)

	mark := s.markFor(pp.Normalized, missingVenue, *position)
	adapter, ok := s.adapters[missingVenue]
	if !ok {
		return fmt.Errorf("recovery: no adapter for venue %s", missingVenue)
	}

	key := lock.OrderKey{Venue: string(missingVenue), Normalized: pp.Normalized, Side: string(missingSide)}
	if !s.locks.RegisterOrderPlacing(key, threadID, position.Size, mark) {
		return fmt.Errorf("recovery: order already active for %s/%s/%s", missingVenue, pp.Normalized, missingSide)
	}

	if err := s.limiter.Acquire(ctx, string(missingVenue), 1, ratelimit.High); err != nil {
		s.locks.UpdateOrderStatus(key, string(venue.Failed), "", 0)
		return fmt.Errorf("recovery: rate limit acquire for %s: %w", missingVenue, err)
	}

	resp, err := adapter.PlaceOrder(ctx, venue.PlaceOrderRequest{
		Normalized: pp.Normalized, Side: missingSide, Size: position.Size, Price: mark,
		Type: venue.Limit, TIF: venue.GTC, ClientID: uuid.NewString(),
	})
	if err != nil {
		s.locks.UpdateOrderStatus(key, string(venue.Failed), "", 0)
		return fmt.Errorf("recovery: place missing leg on %s: %w", missingVenue, err)
	}
	s.locks.UpdateOrderStatus(key, string(resp.Status), resp.OrderID, resp.AvgFillPrice)

	filled, err := s.awaitFill(ctx, adapter, resp.OrderID, pp.Normalized)
	if err != nil {
		return err
	}
	if filled {
		s.clearRetryInfo(derived)
		s.locks.UpdateOrderStatus(key, string(venue.Filled), resp.OrderID, resp.AvgFillPrice)
		if s.Metrics != nil {
			s.Metrics.SingleLegRecoveries.WithLabelValues("filled").Inc()
		}
		return nil
	}

	// Step 4: timeout. Cancel the unfilled order. Only unwind once this
	// attempt has exhausted the retry budget; otherwise leave retryInfo in
	// place so the next tick retries after SingleLegBackoff.
	_, _ = adapter.CancelOrder(ctx, resp.OrderID, pp.Normalized)
	s.locks.UpdateOrderStatus(key, string(venue.Cancelled), resp.OrderID, 0)
	if s.Metrics != nil {
		s.Metrics.SingleLegRecoveries.WithLabelValues("timeout").Inc()
	}
	if derived.RetryCount >= s.cfg.MaxSingleLegRetries {
		return s.unwindLeg(ctx, *position, "retry budget exhausted")
	}
	return nil
}

// awaitFill polls status at cfg.SingleLegPoll intervals up to
// cfg.SingleLegFillWait total (N=12 polls at the defaults).
func (s *Scheduler) awaitFill(ctx context.Context, adapter venue.Adapter, orderID, normalized string) (bool, error) {
	deadline := time.Now().Add(s.cfg.SingleLegFillWait)
	ticker := time.NewTicker(s.cfg.SingleLegPoll)
	defer ticker.Stop()

	for {
		status, err := adapter.GetOrderStatus(ctx, orderID, normalized)
		if err == nil && status.Status == venue.Filled {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// unwindLeg escalates a persistent single-leg to a reduce-only market close
// of the existing leg. The Hedged Close Executor is not involved: since there
// is no pair, the close is placed directly through the adapter.
func (s *Scheduler) unwindLeg(ctx context.Context, position venue.Position, reason string) error {
	s.log.Warn().Str("symbol", position.Normalized).Str("venue", string(position.Venue)).Str("reason", reason).Msg("unwinding persistent single leg")

	adapter, ok := s.adapters[position.Venue]
	if !ok {
		return fmt.Errorf("unwind: no adapter for venue %s", position.Venue)
	}
	if err := s.limiter.Acquire(ctx, string(position.Venue), 1, ratelimit.High); err != nil {
		return fmt.Errorf("unwind: rate limit acquire for %s: %w", position.Venue, err)
	}
	size := position.Size
	if size < 0 {
		size = -size
	}
	_, err := adapter.PlaceOrder(ctx, venue.PlaceOrderRequest{
		Normalized: position.Normalized,
		Side:       position.Side.Opposite(),
		Size:       size,
		Price:      position.MarkPrice,
		Type:       venue.Market,
		ReduceOnly: true,
		TIF:        venue.IOC,
		ClientID:   uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("unwind: reduce-only close on %s: %w", position.Venue, err)
	}
	s.clearRetryInfoForSymbol(position.Normalized)
	if s.Metrics != nil {
		s.Metrics.SingleLegUnwinds.WithLabelValues(reason).Inc()
	}
	return nil
}

func existingLeg(pp pairing.PairedPosition) *venue.Position {
	if pp.Long != nil {
		return pp.Long
	}
	return pp.Short
}

func (s *Scheduler) markFor(normalized string, v venue.Name, fallback venue.Position) float64 {
	snap := s.cache.Snapshot()
	if p, ok := snap.MarkFor(normalized, v); ok && p > 0 {
		return p
	}
	return fallback.MarkPrice
}

func (s *Scheduler) availableVenues() []venue.Name {
	out := make([]venue.Name, 0, len(s.adapters))
	for v := range s.adapters {
		out = append(out, v)
	}
	return out
}

func (s *Scheduler) lookupRetryInfo(normalized string, positionVenue venue.Name) *SingleLegRetryInfo {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	for k, v := range s.retries {
		if k.normalized == normalized && (k.longVenue == positionVenue || k.shortVenue == positionVenue) {
			cp := *v
			return &cp
		}
	}
	return nil
}

func (s *Scheduler) retryDue(info *SingleLegRetryInfo) bool {
	if info.RetryCount == 0 {
		return true
	}
	backoff := time.Duration(info.RetryCount) * s.cfg.SingleLegBackoff
	return time.Since(info.LastRetryTime) >= backoff
}

func (s *Scheduler) storeRetryInfo(info SingleLegRetryInfo) {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	cp := info
	s.retries[keyFor(info)] = &cp
}

func (s *Scheduler) clearRetryInfo(info SingleLegRetryInfo) {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	delete(s.retries, keyFor(info))
}

func (s *Scheduler) clearRetryInfoForSymbol(normalized string) {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	for k := range s.retries {
		if k.normalized == normalized {
			delete(s.retries, k)
		}
	}
}
