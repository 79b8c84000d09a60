package trading

import (
	"sync"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Phase tells Reconcile what a full fill means
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEntry
	PhaseExit
)

// QuoteSource provides the latest quote for an instrument key
type QuoteSource interface {
	Quote(key string) (models.Quote, bool)
}

// Namer resolves the display name of an instrument
type Namer func(models.Instrument) string

// Ledger ties orders, positions and the active pairs trade together
type Ledger struct {
	Orders    *OrderBook
	Positions *PositionBook

	mu     sync.Mutex
	trade  *PairsTrade
	mult   Multipliers
	namer  Namer
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a ledger over fresh order and position books
func NewLedger(mult Multipliers, logger *zap.Logger, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	if mult == nil {
		mult = DefaultMultipliers()
	}
	return &Ledger{
		Orders:    NewOrderBook(logger, clock),
		Positions: NewPositionBook(),
		mult:      mult,
		namer:     func(i models.Instrument) string { return i.Symbol },
		logger:    logger.With(zap.String("component", "ledger")),
		now:       clock,
	}
}

// SetNamer sets how positions are labelled
func (l *Ledger) SetNamer(fn Namer) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.namer = fn
}

func (l *Ledger) name(inst models.Instrument) string {
	l.mu.Lock()
	fn := l.namer
	l.mu.Unlock()
	return fn(inst)
}

// Multipliers returns the contract multipliers in use
func (l *Ledger) Multipliers() Multipliers {
	return l.mult
}

// Reconcile applies an order status event. When the event fully fills the
// order during an entry phase a position is opened and the order joins the
// active trade's entries, opening a new trade if none is active or the last
// one is complete. During an exit phase the position is removed and the
// order joins the exits. The returned bool reports a full fill.
func (l *Ledger) Reconcile(ev broker.OrderStatus, phase Phase) (models.StrategyOrder, bool) {
	order, ok := l.Orders.ApplyStatus(ev)
	if !ok {
		return models.StrategyOrder{}, false
	}
	if !IsFullFill(order, ev) {
		return order, false
	}
	metrics.OrderFills.Inc()

	key := order.Instrument.Key()
	switch phase {
	case PhaseEntry:
		l.Positions.Upsert(Position{
			Instrument: order.Instrument,
			Name:       l.name(order.Instrument),
			RefID:      order.ID,
			Account:    order.Request.Account,
			AvgPrice:   order.FillPrice,
			Quantity:   order.Request.Quantity.Mul(order.Request.Action.Sign()),
		})
		l.mu.Lock()
		if l.trade == nil || l.trade.IsComplete() {
			l.trade = NewPairsTrade(l.now())
		}
		l.trade.AddEntry(order)
		l.mu.Unlock()
		l.logger.Info("entry filled",
			zap.Int("order_id", order.ID),
			zap.String("instrument", key),
			zap.String("price", order.FillPrice.String()))
	case PhaseExit:
		l.Positions.Remove(key)
		l.mu.Lock()
		if l.trade != nil {
			l.trade.AddExit(order)
		} else {
			l.logger.Warn("exit filled without an active trade", zap.Int("order_id", order.ID))
		}
		l.mu.Unlock()
		l.logger.Info("exit filled",
			zap.Int("order_id", order.ID),
			zap.String("instrument", key),
			zap.String("price", order.FillPrice.String()))
	default:
		l.logger.Info("fill outside an order phase", zap.Int("order_id", order.ID))
	}
	return order, true
}

// OpenPosition records a position reported by the brokerage snapshot. Average
// cost is reported per contract, so it is divided by the multiplier to get
// back to a quoted price.
func (l *Ledger) OpenPosition(ev broker.Position) {
	if ev.Quantity.IsZero() {
		l.Positions.Remove(ev.Instrument.Key())
		return
	}
	l.Positions.Upsert(Position{
		Instrument: ev.Instrument,
		Name:       l.name(ev.Instrument),
		Account:    ev.Account,
		AvgPrice:   ev.AvgCost.Div(l.mult.For(ev.Instrument.SecType)),
		Quantity:   ev.Quantity,
	})
}

// CloseAll creates a market order flattening every position that has no
// closing order yet and returns the new order ids
func (l *Ledger) CloseAll(account string) ([]int, error) {
	var ids []int
	for _, p := range l.Positions.Snapshot() {
		if p.ClosingOrderSent {
			continue
		}
		acct := account
		if acct == "" {
			acct = p.Account
		}
		req, err := models.NewMarketOrder(p.ClosingAction(), p.Quantity, acct)
		if err != nil {
			return ids, err
		}
		id := l.Orders.Add(p.Instrument, req)
		l.Positions.MarkClosing(p.Instrument.Key())
		ids = append(ids, id)
		l.logger.Info("closing position",
			zap.String("name", p.Name),
			zap.Int("order_id", id),
			zap.String("action", string(req.Action)),
			zap.String("quantity", req.Quantity.String()))
	}
	return ids, nil
}

// UnrealizedPnL sums the open PnL of all positions. It is undefined when
// there are no positions or any quote is missing or stale.
func (l *Ledger) UnrealizedPnL(quotes QuoteSource, maxAge time.Duration, now time.Time) (decimal.Decimal, bool) {
	positions := l.Positions.Snapshot()
	if len(positions) == 0 {
		return decimal.Zero, false
	}
	total := decimal.Zero
	for _, p := range positions {
		q, ok := quotes.Quote(p.Instrument.Key())
		if !ok {
			return decimal.Zero, false
		}
		pnl, ok := p.UnrealizedPnL(q, maxAge, now, l.mult.For(p.Instrument.SecType))
		if !ok {
			return decimal.Zero, false
		}
		total = total.Add(pnl)
	}
	return total, true
}

// AddCommission attaches a commission report to the active trade
func (l *Ledger) AddCommission(c models.CommissionReport) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trade == nil {
		return false
	}
	return l.trade.AddCommission(c)
}

// ActiveTrade returns a copy of the active trade
func (l *Ledger) ActiveTrade() (*PairsTrade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trade == nil {
		return nil, false
	}
	return l.trade.Clone(), true
}

// SetActiveTrade restores a trade, typically loaded from a snapshot
func (l *Ledger) SetActiveTrade(t *PairsTrade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t == nil {
		l.trade = nil
		return
	}
	l.trade = t.Clone()
}

// ClearTrade drops the active trade
func (l *Ledger) ClearTrade() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trade = nil
}
