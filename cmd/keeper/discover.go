package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/fundingkeeper/internal/symbols"
)

func newDiscoverCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Rebuild the symbol mapping table from every venue's symbol catalog and persist it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit(*configPath)
			eng := newEngine(cfg)

			listers := make([]symbols.Lister, 0, len(eng.adapters))
			for _, adapter := range eng.adapters {
				listers = append(listers, adapter)
			}

			ctx := context.Background()
			if err := eng.registry.DiscoverCommonAssets(ctx, listers); err != nil {
				return err
			}

			if err := eng.registry.Save(cfg.SymbolSnapshotPath); err != nil {
				return err
			}

			tradable := eng.registry.TradableSymbols()
			log.Info().Int("count", len(tradable)).Strs("symbols", tradable).Msg("discovered tradable symbols")
			return nil
		},
	}
}
