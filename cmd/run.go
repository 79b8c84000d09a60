package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/cache"
	"github.com/TruWeaveTrader/treasury-pairs/internal/gateway"
	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/TruWeaveTrader/treasury-pairs/internal/pairs"
	"github.com/TruWeaveTrader/treasury-pairs/internal/requests"
	"github.com/TruWeaveTrader/treasury-pairs/internal/risk"
	"github.com/TruWeaveTrader/treasury-pairs/internal/strategy"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
	"github.com/TruWeaveTrader/treasury-pairs/internal/treasury"
	"github.com/TruWeaveTrader/treasury-pairs/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pairs trading strategy",
	Long: `Connects to the brokerage gateway, learns the account, selects the best
Treasury pair and trades its spread until interrupted. An open trade is
resumed from the saved snapshots.`,
	RunE: runStrategy,
}

func runStrategy(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 Treasury pairs - %s Trading Mode (account %s)\n", tradingMode(), cfg.Account)

	refData := treasury.NewClient(cfg.TreasuryURL, cfg.HTTPTimeout, cfg.UniverseTTL, logger)
	universe, err := refData.Universe(ctx)
	if err != nil {
		return fmt.Errorf("failed to load treasury universe: %w", err)
	}
	fmt.Println(formatters.FormatUniverseTable(universe, time.Now()))

	snapshots, err := openSnapshots(ctx)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	if cfg.MetricsAddr != "" {
		metrics.Serve(ctx, cfg.MetricsAddr, logger)
	}

	mult := trading.DefaultMultipliers()
	mult[models.SecTypeBond] = decimal.NewFromFloat(cfg.BondMultiplier)

	client := gateway.NewClient(cfg.GatewayURL(), cfg.ReconnectDelay, logger)
	engine := strategy.NewEngine(strategy.Options{
		Account:        cfg.Account,
		BandRatio:      cfg.BandRatio,
		LoopInterval:   cfg.LoopInterval,
		ReportInterval: cfg.ReportInterval,
		AccountTimeout: cfg.AccountTimeout,
		QuoteMaxAge:    cfg.QuoteMaxAge,
		SelectionRetry: cfg.SelectionRetry,
	}, strategy.Deps{
		Commands:  client,
		Requests:  requests.NewLedger(broker.DefaultHistory(cfg.BarInterval), logger),
		Cache:     cache.NewCache(time.Now),
		Ledger:    trading.NewLedger(mult, logger, time.Now),
		Selector:  pairs.NewSelector(cfg.RollingWindow, cfg.SelectionWorkers, logger),
		Risk:      risk.NewManager(cfg.PercentOfAccount, cfg.MaxQuoteSpread),
		Snapshots: snapshots,
		Universe:  universe,
		Logger:    logger,
		Clock:     time.Now,
	})

	client.SetSink(engine)
	client.SetReconnectHandler(func() { engine.Resubscribe() })
	if err := client.Connect(ctx); err != nil {
		logger.Error("could not connect to the brokerage gateway", zap.String("url", cfg.GatewayURL()), zap.Error(err))
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	defer client.Close()

	engine.Bootstrap()
	err = engine.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	engine.Shutdown(shutdownCtx)
	_ = logger.Sync()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Printf("✅ Stopped in %s\n", engine.Status())
	return nil
}
