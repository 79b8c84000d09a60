package strategy

import (
	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/TruWeaveTrader/treasury-pairs/internal/requests"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ broker.EventSink = (*Engine)(nil)

func (e *Engine) OnNextValidID(id int) {
	e.ledger.Orders.SetNextValidID(id)
	e.logger.Debug("next valid order id", zap.Int("order_id", id))
}

func (e *Engine) OnContractDetails(ev broker.ContractDetails) {
	sub, ok := e.requests.Lookup(ev.ReqID)
	if !ok {
		return
	}
	e.cache.SetContract(sub.Name, ev.Instrument)
	e.logger.Debug("contract resolved",
		zap.String("name", sub.Name),
		zap.Int64("con_id", ev.Instrument.ID),
		zap.String("symbol", ev.Instrument.Symbol))
}

func (e *Engine) OnTickPrice(ev broker.Tick) {
	if ev.Field != models.BidPrice && ev.Field != models.AskPrice {
		return
	}
	e.updateQuote(ev)
}

func (e *Engine) OnTickSize(ev broker.Tick) {
	if ev.Field != models.BidSize && ev.Field != models.AskSize {
		return
	}
	e.updateQuote(ev)
}

func (e *Engine) updateQuote(ev broker.Tick) {
	inst, ok := e.requests.Instrument(ev.ReqID)
	if !ok {
		return
	}
	e.cache.UpdateQuote(inst.Key(), ev.Field, ev.Value)
}

func (e *Engine) OnTickByTick(ev broker.TickByTick) {
	inst, ok := e.requests.Instrument(ev.ReqID)
	if !ok {
		return
	}
	e.cache.UpdateQuoteBidAsk(inst.Key(), ev.BidPrice, ev.AskPrice, ev.BidSize, ev.AskSize)
}

func (e *Engine) OnMarketDepth(ev broker.MarketDepth) {
	e.logger.Debug("market depth",
		zap.String("name", e.requests.Name(ev.ReqID)),
		zap.Int("position", ev.Position),
		zap.Int("side", ev.Side),
		zap.String("price", ev.Price.String()),
		zap.String("size", ev.Size.String()))
}

func (e *Engine) OnHistoricalBar(ev broker.HistoricalBar) {
	sub, ok := e.requests.Lookup(ev.ReqID)
	if !ok {
		return
	}
	e.cache.AppendBar(sub.Name, ev.Bar)
}

func (e *Engine) OnHistoricalEnd(ev broker.HistoricalEnd) {
	sub, ok := e.requests.Lookup(ev.ReqID)
	if !ok {
		return
	}
	n := e.cache.CompleteSeries(sub.Name)
	e.logger.Info("obtained bars",
		zap.String("name", sub.Name),
		zap.Int("bars", n),
		zap.String("start", ev.Start),
		zap.String("end", ev.End))
}

// OnHistoricalUpdate merges a live bar. Once both legs of the active pair
// have a bar with the same timestamp the pair is re-validated.
func (e *Engine) OnHistoricalUpdate(ev broker.HistoricalBar) {
	sub, ok := e.requests.Lookup(ev.ReqID)
	if !ok {
		return
	}
	if !e.cache.UpdateBar(sub.Name, ev.Bar) {
		return
	}

	e.mu.Lock()
	var leg1, leg2 string
	if e.params != nil {
		leg1, leg2 = e.params.Leg1Name, e.params.Leg2Name
	}
	e.mu.Unlock()
	if leg1 == "" || (sub.Name != leg1 && sub.Name != leg2) {
		return
	}
	t1, ok1 := e.cache.LastBarTime(leg1)
	t2, ok2 := e.cache.LastBarTime(leg2)
	if ok1 && ok2 && t1.Equal(t2) {
		e.signalRevalidation()
	}
}

func (e *Engine) OnPosition(ev broker.Position) {
	e.mu.Lock()
	e.pingedPositions = true
	e.mu.Unlock()
	if e.opts.Account != "" && ev.Account != e.opts.Account {
		return
	}
	e.ledger.OpenPosition(ev)
}

func (e *Engine) OnPositionEnd() {
	e.mu.Lock()
	e.pingedPositions = true
	e.mu.Unlock()
	e.logger.Debug("position snapshot complete", zap.Int("positions", e.ledger.Positions.Len()))
}

func (e *Engine) OnAccountValue(ev broker.AccountValue) {
	if ev.Tag != broker.TagBuyingPower {
		return
	}
	if e.opts.Account != "" && ev.Account != e.opts.Account {
		return
	}
	bp, err := decimal.NewFromString(ev.Value)
	if err != nil {
		e.logger.Warn("invalid buying power", zap.String("value", ev.Value), zap.Error(err))
		return
	}
	e.mu.Lock()
	e.buyingPower = bp
	e.hasBuyingPower = true
	e.mu.Unlock()
	e.logger.Debug("buying power", zap.String("account", ev.Account), zap.String("value", bp.String()))
}

func (e *Engine) OnAccountSummaryEnd(reqID int) {
	e.mu.Lock()
	e.summaryEnded = true
	e.mu.Unlock()
}

func (e *Engine) OnOpenOrder(ev broker.OpenOrder) {
	e.ledger.Orders.TrackOpenOrder(ev)
}

func (e *Engine) OnOpenOrderEnd() {
	e.mu.Lock()
	e.ordersReceived = true
	e.mu.Unlock()
}

// OnOrderStatus applies a status update. A full fill opens or closes a
// position depending on whether entry or exit orders are outstanding.
func (e *Engine) OnOrderStatus(ev broker.OrderStatus) {
	e.mu.Lock()
	status := e.status
	e.mu.Unlock()

	phase := trading.PhaseIdle
	switch status {
	case SentEntryOrders:
		phase = trading.PhaseEntry
	case SentExitOrders:
		phase = trading.PhaseExit
	}
	e.ledger.Reconcile(ev, phase)
}

func (e *Engine) OnExecution(ev broker.Execution) {
	e.logger.Debug("execution",
		zap.Int("order_id", ev.OrderID),
		zap.String("exec_id", ev.ExecID),
		zap.String("side", ev.Side),
		zap.String("shares", ev.Shares.String()),
		zap.String("price", ev.Price.String()))
}

func (e *Engine) OnCommissionReport(ev models.CommissionReport) {
	if !e.ledger.AddCommission(ev) {
		e.logger.Debug("commission without an active trade", zap.String("exec_id", ev.ExecID))
	}
}

func (e *Engine) OnError(ev broker.Error) {
	severity := "error"
	if ev.IsWarning() {
		severity = "warning"
	}
	metrics.BrokerErrors.WithLabelValues(severity).Inc()

	request := e.requests.Name(ev.ReqID)
	if ev.IsGeneral() {
		request = requests.GeneralName
	}
	fields := []zap.Field{
		zap.String("request", request),
		zap.Int("code", ev.Code),
		zap.String("message", ev.Message),
	}
	if ev.IsWarning() {
		e.logger.Warn("brokerage warning", fields...)
		return
	}
	e.logger.Error("brokerage error", fields...)
}
