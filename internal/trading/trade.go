package trading

import (
	"errors"
	"fmt"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	legsPerTrade           = 2
	maxCommissionsPerTrade = 4
)

// ErrTradeIncomplete is returned when PnL is asked of a trade still missing legs
var ErrTradeIncomplete = errors.New("trading: trade is not complete")

// PairsTrade is one round trip on the active pair: two entries, two exits
// and the commission reports they produced
type PairsTrade struct {
	ID          string                    `json:"id"`
	OpenedAt    time.Time                 `json:"opened_at"`
	Entries     []models.StrategyOrder    `json:"entries"`
	Exits       []models.StrategyOrder    `json:"exits"`
	Commissions []models.CommissionReport `json:"commissions"`
}

// NewPairsTrade opens an empty trade
func NewPairsTrade(now time.Time) *PairsTrade {
	return &PairsTrade{ID: uuid.NewString(), OpenedAt: now}
}

func hasInstrument(orders []models.StrategyOrder, key string) bool {
	for _, o := range orders {
		if o.Instrument.Key() == key {
			return true
		}
	}
	return false
}

func addLeg(orders []models.StrategyOrder, o models.StrategyOrder) ([]models.StrategyOrder, bool) {
	key := o.Instrument.Key()
	if key == "" || len(orders) >= legsPerTrade || hasInstrument(orders, key) {
		return orders, false
	}
	return append(orders, o), true
}

// AddEntry records an entry fill. At most two entries on distinct
// instruments are kept; anything else is ignored.
func (t *PairsTrade) AddEntry(o models.StrategyOrder) bool {
	var ok bool
	t.Entries, ok = addLeg(t.Entries, o)
	return ok
}

// AddExit records an exit fill under the same rules as AddEntry
func (t *PairsTrade) AddExit(o models.StrategyOrder) bool {
	var ok bool
	t.Exits, ok = addLeg(t.Exits, o)
	return ok
}

// AddCommission records a commission report. Reports repeating an execution
// id and reports beyond four are ignored.
func (t *PairsTrade) AddCommission(c models.CommissionReport) bool {
	if len(t.Commissions) >= maxCommissionsPerTrade {
		return false
	}
	if c.ExecID != "" {
		for _, existing := range t.Commissions {
			if existing.ExecID == c.ExecID {
				return false
			}
		}
	}
	t.Commissions = append(t.Commissions, c)
	return true
}

// HasBothEntries reports that both legs are entered
func (t *PairsTrade) HasBothEntries() bool {
	return len(t.Entries) == legsPerTrade
}

// IsComplete reports two entries and two exits
func (t *PairsTrade) IsComplete() bool {
	return len(t.Entries) == legsPerTrade && len(t.Exits) == legsPerTrade
}

// Clone returns a deep copy
func (t *PairsTrade) Clone() *PairsTrade {
	cp := *t
	cp.Entries = append([]models.StrategyOrder(nil), t.Entries...)
	cp.Exits = append([]models.StrategyOrder(nil), t.Exits...)
	cp.Commissions = append([]models.CommissionReport(nil), t.Commissions...)
	return &cp
}

// LegReport is the realized result of one instrument
type LegReport struct {
	Instrument  models.Instrument `json:"instrument"`
	EntryAction models.Action     `json:"entry_action"`
	Quantity    decimal.Decimal   `json:"quantity"`
	EntryPrice  decimal.Decimal   `json:"entry_price"`
	ExitPrice   decimal.Decimal   `json:"exit_price"`
	PnL         decimal.Decimal   `json:"pnl"`
}

// TradeReport summarizes a completed trade
type TradeReport struct {
	TradeID     string          `json:"trade_id"`
	Legs        []LegReport     `json:"legs"`
	GrossPnL    decimal.Decimal `json:"gross_pnl"`
	Commissions decimal.Decimal `json:"commissions"`
	NetPnL      decimal.Decimal `json:"net_pnl"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// Report computes realized PnL leg by leg. For each exit the entry on the same
// instrument is found and exitQty*(exitFill-entryFill) is oriented by the
// entry's side and scaled by the instrument's multiplier.
func (t *PairsTrade) Report(mult Multipliers) (TradeReport, error) {
	if !t.IsComplete() {
		return TradeReport{}, fmt.Errorf("%w: %d entries, %d exits", ErrTradeIncomplete, len(t.Entries), len(t.Exits))
	}
	rep := TradeReport{TradeID: t.ID}
	for _, exit := range t.Exits {
		key := exit.Instrument.Key()
		var entry *models.StrategyOrder
		for i := range t.Entries {
			if t.Entries[i].Instrument.Key() == key {
				entry = &t.Entries[i]
				break
			}
		}
		if entry == nil {
			return TradeReport{}, fmt.Errorf("trading: exit order %d on %s has no matching entry", exit.ID, key)
		}
		pnl := exit.Request.Quantity.
			Mul(exit.FillPrice.Sub(entry.FillPrice)).
			Mul(entry.Request.Action.Sign()).
			Mul(mult.For(entry.Instrument.SecType))
		rep.Legs = append(rep.Legs, LegReport{
			Instrument:  entry.Instrument,
			EntryAction: entry.Request.Action,
			Quantity:    exit.Request.Quantity,
			EntryPrice:  entry.FillPrice,
			ExitPrice:   exit.FillPrice,
			PnL:         pnl,
		})
		rep.GrossPnL = rep.GrossPnL.Add(pnl)
	}
	for _, c := range t.Commissions {
		rep.Commissions = rep.Commissions.Add(c.Commission)
		rep.RealizedPnL = rep.RealizedPnL.Add(c.RealizedPnL)
	}
	rep.NetPnL = rep.GrossPnL.Sub(rep.Commissions)
	return rep, nil
}

// GrossPnL is the realized PnL before commissions
func (t *PairsTrade) GrossPnL(mult Multipliers) (decimal.Decimal, error) {
	rep, err := t.Report(mult)
	if err != nil {
		return decimal.Zero, err
	}
	return rep.GrossPnL, nil
}

// TotalCommissions sums all recorded commission reports
func (t *PairsTrade) TotalCommissions() decimal.Decimal {
	total := decimal.Zero
	for _, c := range t.Commissions {
		total = total.Add(c.Commission)
	}
	return total
}
