package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TruWeaveTrader/treasury-pairs/internal/store"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
	"github.com/TruWeaveTrader/treasury-pairs/pkg/formatters"
)

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)
	rootCmd.AddCommand(stateCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or clear the saved strategy snapshots",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show saved parameters, trade and engine status",
	RunE:  runStateShow,
}

var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete saved parameters and trade",
	Long: `Deletes the saved strategy parameters and pairs trade. The next run
starts from pair selection, or waits for manual intervention if positions
are still open.`,
	RunE: runStateClear,
}

// openSnapshots opens the configured state backend
func openSnapshots(ctx context.Context) (*store.Snapshots, error) {
	switch cfg.StateBackend {
	case "redis":
		rs, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open redis state: %w", err)
		}
		return store.NewSnapshots(rs), nil
	default:
		fs, err := store.NewFileStore(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open state dir: %w", err)
		}
		return store.NewSnapshots(fs), nil
	}
}

func runStateShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshots, err := openSnapshots(ctx)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	rt, err := snapshots.LoadRuntime(ctx)
	switch {
	case err == nil:
		fmt.Printf("📊 Engine %s (pid %d, started %s, updated %s)\n",
			formatters.ColorGreen.Sprint(rt.Status), rt.PID,
			rt.StartedAt.Format(time.RFC3339), formatters.FormatTimestamp(rt.UpdatedAt))
		if rt.Leg1Name != "" {
			fmt.Printf("   Pair %s / %s, %d positions\n", rt.Leg1Name, rt.Leg2Name, rt.Positions)
		}
	case errors.Is(err, store.ErrNotFound):
		fmt.Println("Engine not running")
	default:
		return fmt.Errorf("failed to load engine state: %w", err)
	}

	params, err := snapshots.LoadParameters(ctx)
	switch {
	case err == nil:
		fmt.Println(formatters.FormatParameters(params, cfg.BandRatio))
	case errors.Is(err, store.ErrNotFound):
		fmt.Println("No saved strategy parameters")
	default:
		return fmt.Errorf("failed to load parameters: %w", err)
	}

	trade, err := snapshots.LoadTrade(ctx)
	switch {
	case err == nil:
		fmt.Printf("\nTrade %s opened %s\n", trade.ID, trade.OpenedAt.Format(time.RFC3339))
		fmt.Println(formatters.FormatOrdersTable(append(trade.Entries, trade.Exits...)))
		if trade.IsComplete() {
			if rep, err := trade.Report(trading.DefaultMultipliers()); err == nil {
				fmt.Println(formatters.FormatTradeReport(rep))
			}
		}
	case errors.Is(err, store.ErrNotFound):
		fmt.Println("No saved pairs trade")
	default:
		return fmt.Errorf("failed to load trade: %w", err)
	}
	return nil
}

func runStateClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshots, err := openSnapshots(ctx)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	if err := snapshots.DeleteTrade(ctx); err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	if err := snapshots.DeleteParameters(ctx); err != nil {
		return fmt.Errorf("failed to delete parameters: %w", err)
	}
	fmt.Println("✅ Saved parameters and trade cleared")
	return nil
}
