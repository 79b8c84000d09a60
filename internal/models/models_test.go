package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestQuoteValidity(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var q Quote

	q.Update(BidPrice, decimal.NewFromFloat(99.5), now)
	if q.MidPrice.Valid {
		t.Error("Expected no mid price with only a bid")
	}
	if q.IsValid(5*time.Second, now) {
		t.Error("Expected quote to be invalid before the ask arrives")
	}

	q.Update(AskPrice, decimal.NewFromFloat(100.5), now)
	if !q.MidPrice.Valid {
		t.Fatal("Expected mid price once both sides are present")
	}
	if !q.MidPrice.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected mid=100, got %s", q.MidPrice.Decimal)
	}
	if q.IsValid(5*time.Second, now) {
		t.Error("Expected quote to be invalid without sizes")
	}

	q.Update(BidSize, decimal.NewFromInt(10), now)
	q.Update(AskSize, decimal.NewFromInt(12), now)
	if !q.IsValid(5*time.Second, now) {
		t.Error("Expected complete fresh quote to be valid")
	}
	if !q.IsValid(5*time.Second, now.Add(5*time.Second)) {
		t.Error("Expected quote exactly at the freshness limit to be valid")
	}
	if q.IsValid(5*time.Second, now.Add(5*time.Second+time.Millisecond)) {
		t.Error("Expected stale quote to be invalid")
	}
}

func TestQuoteUnknownField(t *testing.T) {
	var q Quote
	if q.Update(TickField(9), decimal.NewFromInt(1), time.Now()) {
		t.Error("Expected unknown tick field to be ignored")
	}
	if !q.UpdatedAt.IsZero() {
		t.Error("Expected timestamp untouched by an ignored tick")
	}
}

func TestSubscriptionSame(t *testing.T) {
	a := Instrument{ID: 101}
	b := Instrument{ID: 202}
	cusip := NewBond("91282CJL6")

	tests := []struct {
		name string
		x, y Subscription
		want bool
	}{
		{"same kind and instrument", NewSubscription(QuoteData, &a, "2-Year"), NewSubscription(QuoteData, &a, "other"), true},
		{"different instrument", NewSubscription(QuoteData, &a, "2-Year"), NewSubscription(QuoteData, &b, "5-Year"), false},
		{"different kind", NewSubscription(QuoteData, &a, "2-Year"), NewSubscription(HistoricalData, &a, "2-Year"), false},
		{"no instruments", NewSubscription(Positions, nil, "Positions"), NewSubscription(Positions, nil, "Positions"), true},
		{"one side without instrument", NewSubscription(Account, nil, "Account"), NewSubscription(Account, &a, "Account"), true},
		{"unresolved by symbol", NewSubscription(ContractInfo, &cusip, "2-Year"), NewSubscription(ContractInfo, &a, "2-Year"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.x.Same(tt.y); got != tt.want {
				t.Errorf("Expected Same()=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewMarketOrder(t *testing.T) {
	order, err := NewMarketOrder(Sell, decimal.NewFromInt(-15), "DU123")
	if err != nil {
		t.Fatalf("NewMarketOrder() failed: %v", err)
	}
	if !order.Quantity.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected unsigned quantity 15, got %s", order.Quantity)
	}
	if order.OrderType != Market {
		t.Errorf("Expected MKT order, got %s", order.OrderType)
	}

	if _, err := NewMarketOrder(Action("HOLD"), decimal.NewFromInt(1), "DU123"); err == nil {
		t.Error("Expected error for invalid action")
	}
}

func TestBands(t *testing.T) {
	p := StrategyParameters{SpreadMean: 1.25, SpreadStd: 0.5}
	if got := p.TopBand(1); got != 1.75 {
		t.Errorf("Expected top band 1.75, got %v", got)
	}
	if got := p.BottomBand(2); got != 0.25 {
		t.Errorf("Expected bottom band 0.25, got %v", got)
	}
}

func TestInstrumentKeyAndMaturity(t *testing.T) {
	bond := NewBond("912810TM0")
	if bond.Key() != "sym:912810TM0" {
		t.Errorf("Expected symbol key, got %s", bond.Key())
	}
	bond.ID = 5551
	if bond.Key() != "5551" {
		t.Errorf("Expected contract id key, got %s", bond.Key())
	}
	if _, err := bond.Maturity(); err == nil {
		t.Error("Expected error without last trade date")
	}
	bond.LastTradeDate = "20531115"
	m, err := bond.Maturity()
	if err != nil {
		t.Fatalf("Maturity() failed: %v", err)
	}
	if m.Year() != 2053 || m.Month() != time.November || m.Day() != 15 {
		t.Errorf("Expected 2053-11-15, got %s", m)
	}
}
