package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/fundingkeeper/internal/cache"
	"github.com/sawpanic/fundingkeeper/internal/close"
	"github.com/sawpanic/fundingkeeper/internal/funding"
	"github.com/sawpanic/fundingkeeper/internal/infrastructure/db"
	"github.com/sawpanic/fundingkeeper/internal/liqmon"
	"github.com/sawpanic/fundingkeeper/internal/ops/httpserver"
	"github.com/sawpanic/fundingkeeper/internal/ops/metrics"
	"github.com/sawpanic/fundingkeeper/internal/scheduler"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the engine: cache, scheduler, liquidation monitor, and ops HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit(*configPath)
			eng := newEngine(cfg)

			dbConfig := db.DefaultConfig()
			dbConfig.Enabled = cfg.Postgres.Enabled
			dbConfig.DSN = cfg.Postgres.DSN
			dbManager, err := db.NewManager(dbConfig)
			if err != nil {
				log.Error().Err(err).Msg("unrecoverable adapter-initialization failure: audit postgres")
				return err
			}
			defer dbManager.Close()

			metricsReg := metrics.NewRegistry(metricsRegisterer)

			c := cache.New(log.Logger, eng.adapters)
			c.Configure(cfg.RefreshInterval(), 0, cfg.HardRefreshInterval())

			closer := close.New(eng.locks, eng.limiter, eng.adapters)

			schedCfg := scheduler.DefaultConfig()
			schedCfg.MinSpread = cfg.OpenThreshold
			schedCfg.MaxSingleLegRetries = cfg.MaxSingleLegRetries
			schedCfg.SingleLegBackoff = cfg.SingleLegBackoff()
			schedCfg.SingleLegFillWait = cfg.SingleLegFillWait()
			schedCfg.SingleLegPoll = cfg.SingleLegPoll()
			schedCfg.PreferredVenueForMissingLeg = cfg.PreferredVenueForMissingLeg
			sched := scheduler.New(log.Logger, schedCfg, c, eng.adapters, eng.locks, eng.limiter)
			sched.Metrics = metricsReg

			liqCfg := liqmon.DefaultConfig()
			liqCfg.ScanInterval = cfg.LiqCheckInterval()
			liqCfg.WarningThreshold = cfg.WarningThreshold
			liqCfg.EmergencyThreshold = cfg.EmergencyCloseThreshold
			liqCfg.EnableEmergencyClose = cfg.EmergencyCloseEnabled()
			liqCfg.MaxCloseRetries = cfg.MaxCloseRetries
			monitor := liqmon.New(log.Logger, liqCfg, c, eng.adapters, closer)
			monitor.Metrics = metricsReg

			agg := funding.New(eng.registry, eng.adapters)
			status := &statusAdapter{sched: sched, cache: c, agg: agg, registry: eng.registry}

			srvCfg := httpserver.DefaultServerConfig()
			srv, err := httpserver.NewServer(log.Logger, srvCfg, status)
			if err != nil {
				log.Error().Err(err).Msg("unrecoverable adapter-initialization failure: ops http server")
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			wake := make(chan venue.Event, 16)
			c.WakeupEvents(ctx, wake)

			var wg sync.WaitGroup
			wg.Add(3)
			go func() { defer wg.Done(); c.Run(ctx) }()
			go func() { defer wg.Done(); sched.Run(ctx, wake) }()
			go func() { defer wg.Done(); monitor.Run(ctx) }()

			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("ops http server stopped")
				}
			}()

			log.Info().Msg("keeper started")
			<-ctx.Done()
			log.Info().Msg("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)

			wg.Wait()
			return nil
		},
	}
}
