package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TruWeaveTrader/treasury-pairs/internal/config"
)

var (
	// Global instances
	cfg      *config.Config
	logger   *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "treasury-pairs",
	Short: "Pairs trading of US Treasuries through a brokerage gateway",
	Long: `treasury-pairs trades the spread between two recently auctioned
Treasuries. It ranks every pair of the universe by cointegration, waits
for the spread to leave its bands, enters both legs and exits when the
spread reverts to its mean.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
}

// initLogger configures zap: INFO by default, DEBUG if DEBUG env is truthy
func initLogger() {
	if v := os.Getenv("DEBUG"); v == "true" || v == "1" || v == "yes" {
		logLevel.SetLevel(zap.DebugLevel)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Level = logLevel

	var err error
	logger, err = zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
}

// initializeApp loads configuration shared by every command
func initializeApp(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("config")

	var err error
	cfg, err = config.Load(file)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose || cfg.Debug {
		logLevel.SetLevel(zap.DebugLevel)
	}
	return nil
}

// tradingMode labels the configured account type
func tradingMode() string {
	if cfg.IsPaperTrading() {
		return "PAPER"
	}
	return "LIVE"
}
