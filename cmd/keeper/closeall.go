package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundingkeeper/internal/close"
	"github.com/sawpanic/fundingkeeper/internal/pairing"
	"github.com/sawpanic/fundingkeeper/internal/ratelimit"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

func newCloseAllCmd(configPath *string) *cobra.Command {
	var fraction float64
	cmd := &cobra.Command{
		Use:   "close-all",
		Short: "Hedge-close every valid cross-venue pair by the given fraction (default 1.0, full close)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit(*configPath)
			eng := newEngine(cfg)
			closer := close.New(eng.locks, eng.limiter, eng.adapters)

			ctx := context.Background()
			var positions []venue.Position
			for name, adapter := range eng.adapters {
				pos, err := adapter.GetPositions(ctx)
				if err != nil {
					fmt.Printf("venue %s: error: %v\n", name, err)
					continue
				}
				positions = append(positions, pos...)
			}

			pairs := pairing.ClassifyAll(positions)
			for symbol, pp := range pairs {
				if pp.Status != pairing.Valid {
					fmt.Printf("%-12s skipped (status=%s)\n", symbol, pp.Status)
					continue
				}
				res, err := closer.ClosePair(ctx, pp, fraction, venue.Market, ratelimit.Normal, false)
				if err != nil {
					fmt.Printf("%-12s close failed: %v\n", symbol, err)
					continue
				}
				fmt.Printf("%-12s long_closed=%v short_closed=%v errors=%v\n", symbol, res.LongClosed, res.ShortClosed, res.Errors)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&fraction, "fraction", 1.0, "fraction of each leg to close (0,1]")
	return cmd
}
