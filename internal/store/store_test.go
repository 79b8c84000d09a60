package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
	"github.com/shopspring/decimal"
)

func testParameters() models.StrategyParameters {
	return models.StrategyParameters{
		Leg1Name:      "10-Year",
		Leg2Name:      "5-Year",
		Leg1:          models.Instrument{ID: 101, Symbol: "91282CJZ5", SecType: models.SecTypeBond, Currency: "USD", Exchange: "SMART", LastTradeDate: "20340215"},
		Leg2:          models.Instrument{ID: 102, Symbol: "91282CKA8", SecType: models.SecTypeBond, Currency: "USD", Exchange: "SMART", LastTradeDate: "20290228"},
		HedgeRatio:    1.87,
		SpreadMean:    0.42,
		SpreadStd:     0.11,
		HalfLife:      3.25,
		RollingWindow: 20,
	}
}

func TestFileStoreParametersRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	snaps := NewSnapshots(fs)

	if _, err := snaps.LoadParameters(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before save, got %v", err)
	}

	want := testParameters()
	if err := snaps.SaveParameters(ctx, want); err != nil {
		t.Fatalf("SaveParameters() failed: %v", err)
	}
	got, err := snaps.LoadParameters(ctx)
	if err != nil {
		t.Fatalf("LoadParameters() failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	if err := snaps.DeleteParameters(ctx); err != nil {
		t.Fatalf("DeleteParameters() failed: %v", err)
	}
	if err := snaps.DeleteParameters(ctx); err != nil {
		t.Errorf("Expected deleting a missing snapshot to succeed, got %v", err)
	}
	if _, err := snaps.LoadParameters(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileStoreTradeRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, _ := NewFileStore(t.TempDir())
	snaps := NewSnapshots(fs)

	trade := trading.NewPairsTrade(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC))
	req, _ := models.NewMarketOrder(models.Sell, decimal.NewFromInt(10), "DU123")
	trade.AddEntry(models.StrategyOrder{ID: 7, Request: req, Instrument: models.Instrument{ID: 101}, Status: models.OrderFilled, FillPrice: decimal.RequireFromString("101.25")})
	trade.AddCommission(models.CommissionReport{ExecID: "0001", Commission: decimal.RequireFromString("1.10")})

	if err := snaps.SaveTrade(ctx, trade); err != nil {
		t.Fatalf("SaveTrade() failed: %v", err)
	}
	got, err := snaps.LoadTrade(ctx)
	if err != nil {
		t.Fatalf("LoadTrade() failed: %v", err)
	}
	if got.ID != trade.ID || !got.OpenedAt.Equal(trade.OpenedAt) {
		t.Errorf("Expected trade %s, got %s", trade.ID, got.ID)
	}
	if len(got.Entries) != 1 || !got.Entries[0].FillPrice.Equal(decimal.RequireFromString("101.25")) {
		t.Errorf("Unexpected entries: %+v", got.Entries)
	}
	if len(got.Commissions) != 1 || got.Commissions[0].ExecID != "0001" {
		t.Errorf("Unexpected commissions: %+v", got.Commissions)
	}
}

func TestSnapshotRejectsOtherVersions(t *testing.T) {
	ctx := context.Background()
	fs, _ := NewFileStore(t.TempDir())
	snaps := NewSnapshots(fs)

	blob := []byte(`{"version": 99, "kind": "strategy_parameters", "payload": {}}`)
	if err := fs.Save(ctx, KeyParameters, blob); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := snaps.LoadParameters(ctx); err == nil {
		t.Error("Expected error for an unknown schema version")
	}

	if err := snaps.SaveParameters(ctx, testParameters()); err != nil {
		t.Fatalf("SaveParameters() failed: %v", err)
	}
	// a parameters blob stored under the trade key
	data, _ := fs.Load(ctx, KeyParameters)
	_ = fs.Save(ctx, KeyTrade, data)
	if _, err := snaps.LoadTrade(ctx); err == nil {
		t.Error("Expected error when the snapshot kind does not match")
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewFileStore(dir)
	if err := fs.Save(context.Background(), "pairs_trade", []byte("{}")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("Expected no temp files, got %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, "pairs_trade.json")); err != nil {
		t.Errorf("Expected snapshot file, got %v", err)
	}
	if err := fs.Save(context.Background(), "../escape", []byte("{}")); err == nil {
		t.Error("Expected invalid key to be rejected")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rs, err := NewRedisStore(ctx, RedisConfig{Addr: addr, Prefix: "treasury-pairs-test:"})
	if err != nil {
		t.Fatalf("NewRedisStore() failed: %v", err)
	}
	defer rs.Close()
	snaps := NewSnapshots(rs)
	defer snaps.DeleteParameters(ctx)

	want := testParameters()
	if err := snaps.SaveParameters(ctx, want); err != nil {
		t.Fatalf("SaveParameters() failed: %v", err)
	}
	got, err := snaps.LoadParameters(ctx)
	if err != nil || got != want {
		t.Errorf("Expected %+v, got %+v (%v)", want, got, err)
	}
	if err := snaps.DeleteParameters(ctx); err != nil {
		t.Fatalf("DeleteParameters() failed: %v", err)
	}
	if _, err := snaps.LoadParameters(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestRuntimeStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	snaps := NewSnapshots(fs)

	want := RuntimeState{
		PID:       4242,
		StartedAt: time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 6, 3, 9, 31, 0, 0, time.UTC),
		Status:    "WAITING_FOR_TRADES",
		Leg1Name:  "10-Year",
		Leg2Name:  "5-Year",
	}
	if err := snaps.SaveRuntime(ctx, want); err != nil {
		t.Fatalf("SaveRuntime() failed: %v", err)
	}
	got, err := snaps.LoadRuntime(ctx)
	if err != nil {
		t.Fatalf("LoadRuntime() failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if _, err := snaps.LoadParameters(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected runtime state to be stored apart from parameters, got %v", err)
	}
}
