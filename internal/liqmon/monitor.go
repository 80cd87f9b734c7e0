// Package liqmon implements component J, the Liquidation Monitor: a
// periodic scan that pairs positions, computes per-leg proximity to
// liquidation, and triggers an emergency hedged close when a leg crosses
// the emergency threshold.
package liqmon

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/fundingkeeper/internal/cache"
	"github.com/sawpanic/fundingkeeper/internal/close"
	"github.com/sawpanic/fundingkeeper/internal/ops/metrics"
	"github.com/sawpanic/fundingkeeper/internal/pairing"
	"github.com/sawpanic/fundingkeeper/internal/ratelimit"
	"github.com/sawpanic/fundingkeeper/internal/risk"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Config holds the engine configuration keys assigned to the monitor.
type Config struct {
	ScanInterval        time.Duration // liqCheckIntervalMs, default 10s
	WarningThreshold    float64       // default 0.4
	EmergencyThreshold  float64       // default 0.9
	EnableEmergencyClose bool         // default true
	MaxCloseRetries     int           // default 3
}

func DefaultConfig() Config {
	return Config{
		ScanInterval:         10 * time.Second,
		WarningThreshold:     0.4,
		EmergencyThreshold:   0.9,
		EnableEmergencyClose: true,
		MaxCloseRetries:      3,
	}
}

// Monitor scans the Market State Cache (or, if unavailable, adapters
// directly) and reacts to liquidation proximity.
type Monitor struct {
	log zerolog.Logger
	cfg Config

	cache    *cache.Cache
	adapters map[venue.Name]venue.Adapter
	closer   *close.Executor

	// Metrics is nil-safe: callers that don't care about Prometheus
	// counters can leave it unset.
	Metrics *metrics.Registry
}

func New(log zerolog.Logger, cfg Config, c *cache.Cache, adapters map[venue.Name]venue.Adapter, closer *close.Executor) *Monitor {
	return &Monitor{log: log, cfg: cfg, cache: c, adapters: adapters, closer: closer}
}

// Run scans every cfg.ScanInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan performs one pass: pair positions, assess risk per leg, and act on
// whichever threshold (if any) the worst leg in a pair has crossed.
func (m *Monitor) Scan(ctx context.Context) {
	positions := m.collectPositions(ctx)
	pairs := pairing.ClassifyAll(positions)

	for normalized, pp := range pairs {
		if pp.Status != pairing.Valid {
			continue
		}
		longRisk := risk.Assess(*pp.Long)
		shortRisk := risk.Assess(*pp.Short)

		worst := longRisk
		if shortRisk.ProximityToLiquidation > worst.ProximityToLiquidation {
			worst = shortRisk
		}

		switch {
		case risk.ShouldEmergencyClose(worst.ProximityToLiquidation, m.cfg.EmergencyThreshold):
			if m.cfg.EnableEmergencyClose {
				m.emergencyClose(ctx, normalized, pp)
			} else {
				m.log.Error().Str("symbol", normalized).Float64("proximity", worst.ProximityToLiquidation).Msg("emergency threshold crossed but emergency close disabled")
			}
		case risk.ShouldWarn(worst.ProximityToLiquidation, m.cfg.WarningThreshold, m.cfg.EmergencyThreshold):
			m.log.Warn().Str("symbol", normalized).Float64("proximity", worst.ProximityToLiquidation).Str("level", string(worst.RiskLevel)).Msg("liquidation proximity warning")
		}
	}
}

// collectPositions reads the cache snapshot if wired; otherwise it pulls
// from every adapter directly, in parallel, with per-venue isolation (one
// venue's failure never suppresses the others).
func (m *Monitor) collectPositions(ctx context.Context) []venue.Position {
	if m.cache != nil {
		return m.cache.Snapshot().Positions
	}

	type result struct {
		positions []venue.Position
	}
	out := make(chan result, len(m.adapters))
	for name, adapter := range m.adapters {
		name, adapter := name, adapter
		go func() {
			positions, err := adapter.GetPositions(ctx)
			if err != nil {
				m.log.Warn().Str("venue", string(name)).Err(err).Msg("liqmon: get positions failed")
				out <- result{}
				return
			}
			out <- result{positions: positions}
		}()
	}
	var all []venue.Position
	for i := 0; i < len(m.adapters); i++ {
		r := <-out
		all = append(all, r.positions...)
	}
	return all
}

// emergencyClose invokes the Hedged Close Executor with f=1.0 and MARKET
// order type, retrying up to cfg.MaxCloseRetries with exponential backoff
// (1s, 2s, 4s) on failure.
func (m *Monitor) emergencyClose(ctx context.Context, normalized string, pp pairing.PairedPosition) {
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxCloseRetries; attempt++ {
		res, err := m.closer.ClosePair(ctx, pp, 1.0, venue.Market, ratelimit.Emergency, false)
		if err == nil && len(res.Errors) == 0 && res.LongClosed && res.ShortClosed {
			if m.Metrics != nil {
				m.Metrics.EmergencyCloses.WithLabelValues(normalized).Inc()
			}
			m.log.Error().Str("symbol", normalized).Msg("emergency close succeeded")
			return
		}
		lastErr = err
		if err == nil {
			for _, e := range res.Errors {
				m.log.Error().Str("symbol", normalized).Err(e).Msg("emergency close leg error")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if m.Metrics != nil {
		m.Metrics.EmergencyCloseErrors.WithLabelValues(normalized).Inc()
	}
	m.log.Error().Str("symbol", normalized).Err(lastErr).Int("attempts", m.cfg.MaxCloseRetries).Msg("emergency close exhausted retries")
}
