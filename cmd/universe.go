package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TruWeaveTrader/treasury-pairs/internal/treasury"
	"github.com/TruWeaveTrader/treasury-pairs/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(universeCmd)
}

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Display the tradeable Treasury universe",
	Long:  `Fetches recent auctions and shows the newest note or bond of each term.`,
	RunE:  runUniverse,
}

func runUniverse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout+5*time.Second)
	defer cancel()

	client := treasury.NewClient(cfg.TreasuryURL, cfg.HTTPTimeout, cfg.UniverseTTL, logger)
	universe, err := client.Universe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get universe: %w", err)
	}

	fmt.Println(formatters.FormatUniverseTable(universe, time.Now()))
	return nil
}
