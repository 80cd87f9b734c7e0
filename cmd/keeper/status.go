package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundingkeeper/internal/pairing"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a one-shot snapshot of positions and pairing state, polling every venue directly",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit(*configPath)
			eng := newEngine(cfg)

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
			if len(pairs) == 0 {
				fmt.Println("no open positions")
				return nil
			}
			for symbol, pp := range pairs {
				fmt.Printf("%-12s status=%-10s", symbol, pp.Status)
				if pp.Long != nil {
					fmt.Printf(" long=%s(%.4f)", pp.Long.Venue, pp.Long.Size)
				}
				if pp.Short != nil {
					fmt.Printf(" short=%s(%.4f)", pp.Short.Venue, pp.Short.Size)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
