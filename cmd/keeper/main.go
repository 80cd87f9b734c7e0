// Command keeper runs the delta-neutral funding-rate arbitrage engine:
// discovery, the market state cache, the pairing/single-leg scheduler, and
// the liquidation monitor, fronted by a local-only ops HTTP surface.
package main

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/fundingkeeper/internal/config"
)

const (
	appName = "fundingkeeper"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	var configPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Delta-neutral funding-rate arbitrage keeper",
		Version: version,
		Long: appName + ` watches funding rates across perpetual-futures venues,
opens delta-neutral pairs when the spread clears a threshold, recovers
single-leg exposure, sweeps zombie orders, and hedge-closes positions that
approach liquidation.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/keeper.yaml", "path to engine configuration")

	rootCmd.AddCommand(
		newStartCmd(&configPath),
		newDiscoverCmd(&configPath),
		newStatusCmd(&configPath),
		newCloseAllCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfigOrExit loads the engine config, exiting with code 1 (fatal
// configuration error) on failure.
func loadConfigOrExit(path string) *config.EngineConfig {
	cfg, err := config.Load(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("fatal configuration error")
		os.Exit(1)
	}
	return cfg
}

var metricsRegisterer = prometheus.DefaultRegisterer
