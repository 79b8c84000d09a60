package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// PAIRS_TRADING_ACCOUNT overrides trading.account
const EnvPrefix = "PAIRS"

// ports maps server name and type to the gateway port
var ports = map[string]map[string]int{
	"tws":     {"live": 7496, "paper": 7497},
	"gateway": {"live": 4001, "paper": 4002},
}

// Config holds all application configuration
type Config struct {
	// Trading
	Account          string
	PercentOfAccount float64
	RollingWindow    int
	BarInterval      int
	BandRatio        float64
	BondMultiplier   float64
	MaxQuoteSpread   float64

	// Server
	ServerName string
	ServerType string
	Host       string
	Port       int
	ClientID   int

	// State
	StateBackend  string
	StateDir      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Reference data
	TreasuryURL string
	HTTPTimeout time.Duration
	UniverseTTL time.Duration

	// Engine timing
	LoopInterval     time.Duration
	ReportInterval   time.Duration
	AccountTimeout   time.Duration
	QuoteMaxAge      time.Duration
	ReconnectDelay   time.Duration
	SelectionWorkers int
	SelectionRetry   time.Duration

	MetricsAddr string
	Debug       bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.account", "")
	v.SetDefault("trading.percent_of_account_to_use", 50.0)
	v.SetDefault("trading.rolling_window", 20)
	v.SetDefault("trading.bar_interval", 5)
	v.SetDefault("trading.band_ratio", 1.0)
	v.SetDefault("trading.bond_multiplier", 10.0)
	v.SetDefault("trading.max_quote_spread_percent", 1.0)

	v.SetDefault("server.name", "tws")
	v.SetDefault("server.type", "paper")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 0)
	v.SetDefault("server.client_id", 0)

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.dir", "")
	v.SetDefault("state.redis_addr", "localhost:6379")
	v.SetDefault("state.redis_password", "")
	v.SetDefault("state.redis_db", 0)

	v.SetDefault("treasury.url", "https://www.treasurydirect.gov")
	v.SetDefault("treasury.http_timeout_ms", 10000)
	v.SetDefault("treasury.universe_ttl_minutes", 60)

	v.SetDefault("engine.loop_interval_ms", 50)
	v.SetDefault("engine.report_interval_seconds", 10)
	v.SetDefault("engine.account_timeout_seconds", 6)
	v.SetDefault("engine.quote_max_age_seconds", 5)
	v.SetDefault("engine.reconnect_delay_ms", 1000)
	v.SetDefault("engine.selection_workers", 0)
	v.SetDefault("engine.selection_retry_seconds", 30)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("debug", false)
}

// Load reads configuration from an optional file and the environment.
// A .env file is loaded first when present; PAIRS_* variables override the file.
func Load(file string) (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{
		Account:          v.GetString("trading.account"),
		PercentOfAccount: v.GetFloat64("trading.percent_of_account_to_use"),
		RollingWindow:    v.GetInt("trading.rolling_window"),
		BarInterval:      v.GetInt("trading.bar_interval"),
		BandRatio:        v.GetFloat64("trading.band_ratio"),
		BondMultiplier:   v.GetFloat64("trading.bond_multiplier"),
		MaxQuoteSpread:   v.GetFloat64("trading.max_quote_spread_percent"),

		ServerName: strings.ToLower(v.GetString("server.name")),
		ServerType: strings.ToLower(v.GetString("server.type")),
		Host:       v.GetString("server.host"),
		Port:       v.GetInt("server.port"),
		ClientID:   v.GetInt("server.client_id"),

		StateBackend:  strings.ToLower(v.GetString("state.backend")),
		StateDir:      v.GetString("state.dir"),
		RedisAddr:     v.GetString("state.redis_addr"),
		RedisPassword: v.GetString("state.redis_password"),
		RedisDB:       v.GetInt("state.redis_db"),

		TreasuryURL: v.GetString("treasury.url"),
		HTTPTimeout: time.Duration(v.GetInt64("treasury.http_timeout_ms")) * time.Millisecond,
		UniverseTTL: time.Duration(v.GetInt64("treasury.universe_ttl_minutes")) * time.Minute,

		LoopInterval:     time.Duration(v.GetInt64("engine.loop_interval_ms")) * time.Millisecond,
		ReportInterval:   time.Duration(v.GetInt64("engine.report_interval_seconds")) * time.Second,
		AccountTimeout:   time.Duration(v.GetInt64("engine.account_timeout_seconds")) * time.Second,
		QuoteMaxAge:      time.Duration(v.GetInt64("engine.quote_max_age_seconds")) * time.Second,
		ReconnectDelay:   time.Duration(v.GetInt64("engine.reconnect_delay_ms")) * time.Millisecond,
		SelectionWorkers: v.GetInt("engine.selection_workers"),
		SelectionRetry:   time.Duration(v.GetInt64("engine.selection_retry_seconds")) * time.Second,

		MetricsAddr: v.GetString("metrics.addr"),
		Debug:       v.GetBool("debug"),
	}

	if cfg.Port == 0 {
		port, err := Port(cfg.ServerName, cfg.ServerType)
		if err != nil {
			return nil, err
		}
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Port looks up the gateway port for a server name and type
func Port(name, kind string) (int, error) {
	byType, ok := ports[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown server name %q (want tws or gateway)", name)
	}
	port, ok := byType[strings.ToLower(kind)]
	if !ok {
		return 0, fmt.Errorf("unknown server type %q (want live or paper)", kind)
	}
	return port, nil
}

// Validate checks required fields and numeric ranges
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("trading.account must be set (env %s_TRADING_ACCOUNT)", EnvPrefix)
	}
	if c.PercentOfAccount <= 0 || c.PercentOfAccount > 100 {
		return fmt.Errorf("trading.percent_of_account_to_use must be in (0, 100], got %v", c.PercentOfAccount)
	}
	if c.RollingWindow < 2 {
		return fmt.Errorf("trading.rolling_window must be at least 2, got %d", c.RollingWindow)
	}
	if c.BarInterval < 1 {
		return fmt.Errorf("trading.bar_interval must be at least 1 minute, got %d", c.BarInterval)
	}
	if c.BandRatio <= 0 {
		return fmt.Errorf("trading.band_ratio must be positive, got %v", c.BandRatio)
	}
	if c.MaxQuoteSpread <= 0 {
		return fmt.Errorf("trading.max_quote_spread_percent must be positive, got %v", c.MaxQuoteSpread)
	}
	switch c.StateBackend {
	case "file", "redis":
	default:
		return fmt.Errorf("state.backend must be file or redis, got %q", c.StateBackend)
	}
	if c.LoopInterval <= 0 {
		return fmt.Errorf("engine.loop_interval_ms must be positive")
	}
	return nil
}

// IsPaperTrading returns true when connecting to a paper account
func (c *Config) IsPaperTrading() bool {
	return c.ServerType != "live"
}

// GatewayURL is the websocket address of the brokerage bridge
func (c *Config) GatewayURL() string {
	return fmt.Sprintf("ws://%s:%d/v1/bridge?client_id=%d", c.Host, c.Port, c.ClientID)
}
