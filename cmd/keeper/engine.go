package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundingkeeper/internal/config"
	"github.com/sawpanic/fundingkeeper/internal/lock"
	"github.com/sawpanic/fundingkeeper/internal/lock/memlock"
	"github.com/sawpanic/fundingkeeper/internal/lock/redislock"
	"github.com/sawpanic/fundingkeeper/internal/ratelimit"
	"github.com/sawpanic/fundingkeeper/internal/symbols"
	"github.com/sawpanic/fundingkeeper/internal/venue"
	"github.com/sawpanic/fundingkeeper/internal/venue/fake"
	"github.com/sawpanic/fundingkeeper/internal/venueguard"
)

// engine bundles the wiring shared by every subcommand. Real venue clients
// are out of scope for this repository; every adapter is the in-memory
// fake.Adapter wrapped in a venueguard circuit breaker, which is enough to
// exercise the full pairing/recovery/liquidation machinery end to end.
type engine struct {
	cfg      *config.EngineConfig
	adapters map[venue.Name]venue.Adapter
	registry *symbols.Registry
	locks    lock.Service
	limiter  *ratelimit.Manager
}

func newEngine(cfg *config.EngineConfig) *engine {
	adapters := map[venue.Name]venue.Adapter{
		venue.Hyperliquid: venueguard.New(fake.New(venue.Hyperliquid)),
		venue.Lighter:     venueguard.New(fake.New(venue.Lighter)),
		venue.Aster:       venueguard.New(fake.New(venue.Aster)),
		venue.Extended:    venueguard.New(fake.New(venue.Extended)),
	}

	registry := symbols.New(log.Logger)
	if err := registry.Load(cfg.SymbolSnapshotPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.SymbolSnapshotPath).Msg("no symbol snapshot to load, starting empty")
	}

	var locks lock.Service = memlock.New()
	if cfg.Redis.Enabled {
		locks = redislock.New(cfg.Redis.Addr)
	}

	limiter := ratelimit.NewManager(ratelimit.VenueConfig{Burst: 10, RefillPerSec: 5})
	for name, rl := range cfg.RateLimiter {
		limiter.Configure(name, ratelimit.VenueConfig{Burst: rl.Burst, RefillPerSec: rl.RefillPerSec})
	}

	return &engine{cfg: cfg, adapters: adapters, registry: registry, locks: locks, limiter: limiter}
}
