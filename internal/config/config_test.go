package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set test environment variables
	testEnv := map[string]string{
		"PAIRS_TRADING_ACCOUNT":                  "DU1234567",
		"PAIRS_TRADING_ROLLING_WINDOW":           "30",
		"PAIRS_SERVER_NAME":                      "gateway",
		"PAIRS_SERVER_TYPE":                      "live",
		"PAIRS_ENGINE_LOOP_INTERVAL_MS":          "200",
		"PAIRS_TREASURY_HTTP_TIMEOUT_MS":         "2500",
		"PAIRS_TRADING_MAX_QUOTE_SPREAD_PERCENT": "0.5",
	}

	// Set env vars
	for key, value := range testEnv {
		os.Setenv(key, value)
	}

	// Clean up after test
	defer func() {
		for key := range testEnv {
			os.Unsetenv(key)
		}
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Account != "DU1234567" {
		t.Errorf("Expected Account='DU1234567', got '%s'", cfg.Account)
	}
	if cfg.RollingWindow != 30 {
		t.Errorf("Expected RollingWindow=30, got %d", cfg.RollingWindow)
	}
	if cfg.Port != 4001 {
		t.Errorf("Expected live gateway port 4001, got %d", cfg.Port)
	}
	if cfg.IsPaperTrading() {
		t.Error("Expected live trading")
	}

	// Test parsed durations
	if cfg.LoopInterval != 200*time.Millisecond {
		t.Errorf("Expected LoopInterval=200ms, got %v", cfg.LoopInterval)
	}
	if cfg.HTTPTimeout != 2500*time.Millisecond {
		t.Errorf("Expected HTTPTimeout=2.5s, got %v", cfg.HTTPTimeout)
	}

	// Test defaults
	if cfg.AccountTimeout != 6*time.Second {
		t.Errorf("Expected AccountTimeout=6s, got %v", cfg.AccountTimeout)
	}
	if cfg.QuoteMaxAge != 5*time.Second {
		t.Errorf("Expected QuoteMaxAge=5s, got %v", cfg.QuoteMaxAge)
	}
	if cfg.ReportInterval != 10*time.Second {
		t.Errorf("Expected ReportInterval=10s, got %v", cfg.ReportInterval)
	}
	if cfg.StateBackend != "file" {
		t.Errorf("Expected StateBackend='file', got '%s'", cfg.StateBackend)
	}
	if cfg.MaxQuoteSpread != 0.5 {
		t.Errorf("Expected MaxQuoteSpread=0.5, got %v", cfg.MaxQuoteSpread)
	}
	if cfg.SelectionRetry != 30*time.Second {
		t.Errorf("Expected SelectionRetry=30s, got %v", cfg.SelectionRetry)
	}
	if cfg.BondMultiplier != 10 {
		t.Errorf("Expected BondMultiplier=10, got %v", cfg.BondMultiplier)
	}
	expectedURL := "ws://127.0.0.1:4001/v1/bridge?client_id=0"
	if cfg.GatewayURL() != expectedURL {
		t.Errorf("Expected GatewayURL='%s', got '%s'", expectedURL, cfg.GatewayURL())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	ini := `[trading]
account = DU7654321
percent_of_account_to_use = 25
rolling_window = 12
bar_interval = 1

[server]
name = tws
type = paper
`
	if err := os.WriteFile(path, []byte(ini), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Account != "DU7654321" {
		t.Errorf("Expected Account='DU7654321', got '%s'", cfg.Account)
	}
	if cfg.PercentOfAccount != 25 {
		t.Errorf("Expected PercentOfAccount=25, got %v", cfg.PercentOfAccount)
	}
	if cfg.BarInterval != 1 || cfg.RollingWindow != 12 {
		t.Errorf("Expected bar interval 1 and window 12, got %d and %d", cfg.BarInterval, cfg.RollingWindow)
	}
	if cfg.Port != 7497 {
		t.Errorf("Expected paper TWS port 7497, got %d", cfg.Port)
	}
}

func TestLoadMissingAccount(t *testing.T) {
	os.Unsetenv("PAIRS_TRADING_ACCOUNT")

	_, err := Load("")
	if err == nil {
		t.Fatal("Expected error when the account is missing, got nil")
	}

	expectedError := "trading.account must be set (env PAIRS_TRADING_ACCOUNT)"
	if err.Error() != expectedError {
		t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
	}
}

func TestPort(t *testing.T) {
	tests := []struct {
		name, kind string
		want       int
		wantErr    bool
	}{
		{"tws", "live", 7496, false},
		{"TWS", "Paper", 7497, false},
		{"gateway", "paper", 4002, false},
		{"gateway", "demo", 0, true},
		{"cloud", "live", 0, true},
	}
	for _, tt := range tests {
		got, err := Port(tt.name, tt.kind)
		if (err != nil) != tt.wantErr {
			t.Errorf("Port(%s, %s) error = %v, wantErr %v", tt.name, tt.kind, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("Port(%s, %s) = %d, want %d", tt.name, tt.kind, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Account:          "DU1",
		PercentOfAccount: 50,
		RollingWindow:    20,
		BarInterval:      5,
		BandRatio:        1,
		StateBackend:     "file",
		LoopInterval:     50 * time.Millisecond,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	bad := base
	bad.PercentOfAccount = 150
	if bad.Validate() == nil {
		t.Error("Expected error for percent above 100")
	}
	bad = base
	bad.RollingWindow = 1
	if bad.Validate() == nil {
		t.Error("Expected error for a window below 2")
	}
	bad = base
	bad.StateBackend = "s3"
	if bad.Validate() == nil {
		t.Error("Expected error for an unknown state backend")
	}
}
