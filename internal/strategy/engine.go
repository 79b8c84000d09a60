// Package strategy runs the pairs trading state machine: it learns the
// account, selects a pair, waits for the spread to widen, enters both legs
// and exits when the spread reverts to its mean.
package strategy

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/cache"
	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/TruWeaveTrader/treasury-pairs/internal/pairs"
	"github.com/TruWeaveTrader/treasury-pairs/internal/requests"
	"github.com/TruWeaveTrader/treasury-pairs/internal/risk"
	"github.com/TruWeaveTrader/treasury-pairs/internal/store"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
	"github.com/TruWeaveTrader/treasury-pairs/internal/treasury"
	"github.com/TruWeaveTrader/treasury-pairs/pkg/formatters"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

// Options tunes the engine
type Options struct {
	Account        string
	BandRatio      float64
	LoopInterval   time.Duration
	ReportInterval time.Duration
	AccountTimeout time.Duration
	QuoteMaxAge    time.Duration
	SelectionRetry time.Duration
}

// DefaultOptions returns the standard timings for account
func DefaultOptions(account string) Options {
	return Options{
		Account:        account,
		BandRatio:      1,
		LoopInterval:   50 * time.Millisecond,
		ReportInterval: 10 * time.Second,
		AccountTimeout: 6 * time.Second,
		QuoteMaxAge:    5 * time.Second,
		SelectionRetry: 30 * time.Second,
	}
}

// Deps are the collaborators the engine drives
type Deps struct {
	Commands  broker.Commands
	Requests  *requests.Ledger
	Cache     *cache.Cache
	Ledger    *trading.Ledger
	Selector  *pairs.Selector
	Risk      *risk.Manager
	Snapshots *store.Snapshots
	Universe  treasury.Universe
	Logger    *zap.Logger
	Clock     func() time.Time
}

type spreadSide int

const (
	sellTheSpread spreadSide = iota
	buyTheSpread
)

func (s spreadSide) String() string {
	if s == sellTheSpread {
		return "sell"
	}
	return "buy"
}

// Engine is the strategy state machine. Step runs on the loop goroutine and
// the broker.EventSink methods run on the gateway goroutine; engine fields
// are guarded by mu and everything else goes through the components' locks.
type Engine struct {
	opts      Options
	cmds      broker.Commands
	requests  *requests.Ledger
	cache     *cache.Cache
	ledger    *trading.Ledger
	selector  *pairs.Selector
	risk      *risk.Manager
	snapshots *store.Snapshots
	universe  treasury.Universe
	logger    *zap.Logger
	now       func() time.Time

	revalidateCh chan struct{}

	mu              sync.Mutex
	status          Status
	startedAt       time.Time
	params          *models.StrategyParameters
	previousSpread  *float64
	buyingPower     decimal.Decimal
	hasBuyingPower  bool
	summaryEnded    bool
	pingedPositions bool
	ordersReceived  bool
	lastReport      time.Time
	nextSelection   time.Time
}

// NewEngine wires an engine in the INITIALIZED state
func NewEngine(opts Options, deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BandRatio <= 0 {
		opts.BandRatio = 1
	}

	e := &Engine{
		opts:         opts,
		cmds:         deps.Commands,
		requests:     deps.Requests,
		cache:        deps.Cache,
		ledger:       deps.Ledger,
		selector:     deps.Selector,
		risk:         deps.Risk,
		snapshots:    deps.Snapshots,
		universe:     deps.Universe,
		logger:       logger.With(zap.String("component", "strategy")),
		now:          clock,
		revalidateCh: make(chan struct{}, 1),
		status:       Initialized,
		startedAt:    clock(),
	}
	e.ledger.SetNamer(func(inst models.Instrument) string {
		return treasury.InstrumentName(inst, clock())
	})
	metrics.Status.Set(float64(Initialized))
	return e
}

// Bootstrap registers the account-wide requests and sends them. The account
// timeout starts counting from here.
func (e *Engine) Bootstrap() int {
	for _, sub := range []models.Subscription{
		models.NewSubscription(models.Positions, nil, "Positions"),
		models.NewSubscription(models.Account, nil, "Account"),
		models.NewSubscription(models.Orders, nil, "Orders"),
		models.NewSubscription(models.Executions, nil, "Executions"),
	} {
		e.requests.Add(sub)
	}
	e.mu.Lock()
	e.startedAt = e.now()
	e.mu.Unlock()
	return e.requests.SendAll(e.cmds)
}

// Resubscribe replays every registered request, typically after the
// gateway reconnected
func (e *Engine) Resubscribe() int {
	e.requests.ResetSent()
	n := e.requests.SendAll(e.cmds)
	e.logger.Info("requests replayed", zap.Int("count", n))
	return n
}

// Run steps the state machine every loop interval until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.LoopInterval)
	defer ticker.Stop()

	e.logger.Info("strategy loop started", zap.Duration("interval", e.opts.LoopInterval))
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("strategy loop stopped", zap.Stringer("status", e.Status()))
			return ctx.Err()
		case <-e.revalidateCh:
			e.Revalidate(ctx)
			e.Step(ctx, e.now())
		case <-ticker.C:
			e.Step(ctx, e.now())
		}
	}
}

// Shutdown removes the published runtime state
func (e *Engine) Shutdown(ctx context.Context) {
	e.persist(ctx, "runtime", e.snapshots.DeleteRuntime)
}

// Status returns the current state
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Parameters returns a copy of the active pair's parameters
func (e *Engine) Parameters() (models.StrategyParameters, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return models.StrategyParameters{}, false
	}
	return *e.params, true
}

// Step advances the state machine once
func (e *Engine) Step(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.status {
	case Initialized:
		e.stepInitialized(ctx, now)
	case AwareOfAccount:
		e.stepAwareOfAccount(ctx, now)
	case AnalyzingPairs:
		e.stepAnalyzingPairs(ctx, now)
	case WaitingForTrades:
		e.stepWaitingForTrades(ctx, now)
	case SentEntryOrders:
		e.stepSentEntryOrders(ctx, now)
	case InATrade:
		e.stepInATrade(ctx, now)
	case SentExitOrders:
		e.stepSentExitOrders(ctx, now)
	}
}

func (e *Engine) setStatus(ctx context.Context, next Status) {
	if e.status == next {
		return
	}
	prev := e.status
	e.status = next
	metrics.StatusTransitions.WithLabelValues(prev.String(), next.String()).Inc()
	metrics.Status.Set(float64(next))
	e.logger.Info("status update",
		zap.Stringer("from", prev),
		zap.Stringer("to", next))
	e.publishRuntime(ctx)
}

func (e *Engine) publishRuntime(ctx context.Context) {
	st := store.RuntimeState{
		PID:       os.Getpid(),
		StartedAt: e.startedAt,
		UpdatedAt: e.now(),
		Status:    e.status.String(),
		Positions: e.ledger.Positions.Len(),
	}
	if e.params != nil {
		st.Leg1Name = e.params.Leg1Name
		st.Leg2Name = e.params.Leg2Name
	}
	e.persist(ctx, "runtime", func(ctx context.Context) error {
		return e.snapshots.SaveRuntime(ctx, st)
	})
}

func (e *Engine) persist(ctx context.Context, what string, fn func(context.Context) error) {
	if e.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		e.logger.Error("failed to persist snapshot", zap.String("snapshot", what), zap.Error(err))
	}
}

func (e *Engine) shouldReport(now time.Time) bool {
	if now.Sub(e.lastReport) < e.opts.ReportInterval {
		return false
	}
	e.lastReport = now
	return true
}

func (e *Engine) stepInitialized(ctx context.Context, now time.Time) {
	timedOut := now.Sub(e.startedAt) > e.opts.AccountTimeout
	haveAccount := e.hasBuyingPower || e.summaryEnded
	if !haveAccount || !e.ordersReceived || !(e.pingedPositions || timedOut) {
		return
	}
	if !e.pingedPositions {
		e.logger.Info("no positions received, assuming flat",
			zap.Duration("timeout", e.opts.AccountTimeout))
	}
	e.setStatus(ctx, AwareOfAccount)
}

// subscribeUniverse registers contract and history requests for every
// security in the universe. A term that already has a request of a kind,
// for instance one keyed by a resumed position's contract, is skipped
// since both would feed the same series.
func (e *Engine) subscribeUniverse() {
	for _, sec := range e.universe {
		inst := sec.Instrument()
		for _, kind := range []models.DataKind{models.ContractInfo, models.HistoricalData} {
			if e.requests.HasName(kind, sec.Term) {
				continue
			}
			e.requests.Add(models.NewSubscription(kind, &inst, sec.Term))
		}
	}
}

func (e *Engine) stepAwareOfAccount(ctx context.Context, now time.Time) {
	if e.ledger.Positions.IsFlat() {
		e.subscribeUniverse()
		e.requests.SendAll(e.cmds)
		e.setStatus(ctx, AnalyzingPairs)
		return
	}

	positions := e.ledger.Positions.Snapshot()
	e.logger.Info("open positions\n" +
		formatters.FormatPositionsTable(positions, nil, 0, now, e.ledger.Multipliers()))
	for _, p := range positions {
		maturity, _ := p.Instrument.Maturity()
		e.logger.Info("resuming position",
			zap.String("name", p.Name),
			zap.String("cusip", e.universe.LookupCUSIP(p.Name, maturity)),
			zap.String("quantity", p.Quantity.String()))
	}

	e.restoreSnapshots(ctx)
	for _, p := range positions {
		inst := p.Instrument
		for _, kind := range []models.DataKind{models.QuoteData, models.HistoricalData, models.ContractInfo} {
			e.requests.Add(models.NewSubscription(kind, &inst, p.Name))
		}
	}
	e.requests.SendAll(e.cmds)
	e.setStatus(ctx, InATrade)
}

// restoreSnapshots reloads the parameters and trade saved before a restart.
// Missing or unreadable snapshots leave the engine without them.
func (e *Engine) restoreSnapshots(ctx context.Context) {
	if e.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	params, err := e.snapshots.LoadParameters(ctx)
	switch {
	case err == nil:
		e.params = &params
		e.logger.Info("restored strategy parameters",
			zap.String("leg1", params.Leg1Name),
			zap.String("leg2", params.Leg2Name),
			zap.Float64("hedge_ratio", params.HedgeRatio),
			zap.Float64("mean", params.SpreadMean),
			zap.Float64("std", params.SpreadStd))
	case errors.Is(err, store.ErrNotFound):
		e.logger.Warn("no saved strategy parameters, the exit cannot be evaluated")
	default:
		e.logger.Error("ignoring saved strategy parameters", zap.Error(err))
	}

	trade, err := e.snapshots.LoadTrade(ctx)
	switch {
	case err == nil:
		e.ledger.SetActiveTrade(trade)
		e.logger.Info("restored pairs trade",
			zap.String("trade_id", trade.ID),
			zap.Int("entries", len(trade.Entries)),
			zap.Int("exits", len(trade.Exits)))
	case errors.Is(err, store.ErrNotFound):
		e.logger.Warn("no saved pairs trade")
	default:
		e.logger.Error("ignoring saved pairs trade", zap.Error(err))
	}
}

func (e *Engine) stepAnalyzingPairs(ctx context.Context, now time.Time) {
	names := e.universe.Names()
	if !e.cache.AllComplete(names) {
		e.subscribeUniverse()
		e.requests.SendAll(e.cmds)
		if e.shouldReport(now) {
			st := e.cache.GetStats()
			e.logger.Info("waiting for history",
				zap.Int("complete", st.CompleteSeries),
				zap.Int("universe", len(names)),
				zap.Int("bars", st.BarCount),
				zap.Int("contracts", st.ContractCount))
		}
		return
	}

	if now.Before(e.nextSelection) {
		return
	}
	e.logger.Info("finding pairs trade", zap.Strings("universe", names))
	best, ranking, err := e.selector.Select(ctx, e.cache.Histories(names), names)
	if err != nil {
		e.nextSelection = now.Add(e.opts.SelectionRetry)
		e.logger.Error("pair selection failed",
			zap.Error(err),
			zap.Duration("retry_in", e.opts.SelectionRetry))
		return
	}
	e.nextSelection = time.Time{}
	e.logger.Info("pair ranking\n" + formatters.FormatRankingTable(ranking))

	leg1 := e.resolve(best.Leg1Name)
	leg2 := e.resolve(best.Leg2Name)
	params := best.Parameters(leg1, leg2, e.selector.Window())
	e.params = &params
	e.previousSpread = nil

	e.requests.Add(models.NewSubscription(models.QuoteData, &leg1, params.Leg1Name))
	e.requests.Add(models.NewSubscription(models.QuoteData, &leg2, params.Leg2Name))
	e.requests.SendAll(e.cmds)

	e.persist(ctx, "parameters", func(ctx context.Context) error {
		return e.snapshots.SaveParameters(ctx, params)
	})
	e.logger.Info("selected pair\n" + formatters.FormatParameters(params, e.opts.BandRatio))
	e.setStatus(ctx, WaitingForTrades)
}

// resolve returns the brokerage contract for a universe name, falling back
// to the unresolved bond when contract details never arrived
func (e *Engine) resolve(name string) models.Instrument {
	if inst, ok := e.cache.Contract(name); ok {
		return inst
	}
	if sec, ok := e.universe.ByTerm(name); ok {
		e.logger.Warn("contract details missing, using the unresolved bond", zap.String("name", name))
		return sec.Instrument()
	}
	e.logger.Error("no contract for pair leg", zap.String("name", name))
	return models.Instrument{}
}

func midPrice(q models.Quote) float64 {
	return q.MidPrice.Decimal.InexactFloat64()
}

// trueSpread prices the spread against the side of the book an entry would
// trade: selling leg1 at the bid and buying leg2 at the ask when the spread
// is rich, the reverse when it is cheap
func trueSpread(p models.StrategyParameters, q1, q2 models.Quote, rich bool) float64 {
	if rich {
		return p.Spread(q1.BidPrice.Decimal.InexactFloat64(), q2.AskPrice.Decimal.InexactFloat64())
	}
	return p.Spread(q1.AskPrice.Decimal.InexactFloat64(), q2.BidPrice.Decimal.InexactFloat64())
}

func (e *Engine) stepWaitingForTrades(ctx context.Context, now time.Time) {
	if e.params == nil {
		e.logger.Warn("no strategy parameters while waiting for trades")
		e.setStatus(ctx, AnalyzingPairs)
		return
	}
	if !e.hasBuyingPower {
		return
	}
	p := *e.params
	k1, k2 := p.Leg1.Key(), p.Leg2.Key()
	if !e.cache.QuoteValid(k1, e.opts.QuoteMaxAge) || !e.cache.QuoteValid(k2, e.opts.QuoteMaxAge) {
		return
	}
	q1, _ := e.cache.Quote(k1)
	q2, _ := e.cache.Quote(k2)

	mid := p.Spread(midPrice(q1), midPrice(q2))
	metrics.Spread.Set(mid)
	rich := mid > p.SpreadMean
	spread := trueSpread(p, q1, q2, rich)
	top, bottom := p.TopBand(e.opts.BandRatio), p.BottomBand(e.opts.BandRatio)

	if e.shouldReport(now) {
		e.logger.Info("spread",
			zap.Float64("mid", mid),
			zap.Float64("true", spread),
			zap.Float64("bottom_band", bottom),
			zap.Float64("top_band", top))
	}

	switch {
	case rich && spread > top:
		e.enter(ctx, now, p, q1, q2, sellTheSpread)
	case !rich && spread < bottom:
		e.enter(ctx, now, p, q1, q2, buyTheSpread)
	}
}

// enter sizes and sends both entry orders. Selling the spread sells leg1
// and buys leg2; buying it does the opposite.
func (e *Engine) enter(ctx context.Context, now time.Time, p models.StrategyParameters, q1, q2 models.Quote, side spreadSide) {
	for i, q := range []models.Quote{q1, q2} {
		if check := e.risk.CheckSpread(q); !check.Passed {
			if e.shouldReport(now) {
				e.logger.Warn("entry blocked by quote", zap.Int("leg", i+1), zap.String("reason", check.Reason))
			}
			return
		}
	}

	sizes := e.risk.PositionSizes(e.buyingPower, p.HedgeRatio)
	check := e.risk.ValidateEntry(e.buyingPower, p.HedgeRatio, sizes)
	if !check.Passed {
		if e.shouldReport(now) {
			e.logger.Warn("entry blocked", zap.String("reason", check.Reason))
		}
		return
	}
	for _, w := range check.Warnings {
		e.logger.Warn("entry warning", zap.String("warning", w))
	}

	action1, action2 := models.Sell, models.Buy
	if side == buyTheSpread {
		action1, action2 = models.Buy, models.Sell
	}
	req1, err := models.NewMarketOrder(action1, sizes.Leg1, e.opts.Account)
	if err != nil {
		e.logger.Error("failed to create entry order", zap.Error(err))
		return
	}
	req2, err := models.NewMarketOrder(action2, sizes.Leg2, e.opts.Account)
	if err != nil {
		e.logger.Error("failed to create entry order", zap.Error(err))
		return
	}

	id1 := e.ledger.Orders.Add(p.Leg1, req1)
	id2 := e.ledger.Orders.Add(p.Leg2, req2)
	e.logger.Info("entering pairs trade",
		zap.Stringer("side", side),
		zap.Int("leg1_order", id1),
		zap.String("leg1_qty", sizes.Leg1.String()),
		zap.Int("leg2_order", id2),
		zap.String("leg2_qty", sizes.Leg2.String()))
	e.ledger.Orders.PlaceUnsent(e.cmds)

	e.persist(ctx, "parameters", func(ctx context.Context) error {
		return e.snapshots.SaveParameters(ctx, p)
	})
	e.setStatus(ctx, SentEntryOrders)
}

func (e *Engine) stepSentEntryOrders(ctx context.Context, now time.Time) {
	e.ledger.Orders.PlaceUnsent(e.cmds)

	trade, ok := e.ledger.ActiveTrade()
	if !ok || !trade.HasBothEntries() {
		if e.shouldReport(now) {
			e.logger.Info("waiting for entry fills\n" + formatters.FormatOrdersTable(e.ledger.Orders.Snapshot()))
		}
		return
	}
	e.persist(ctx, "trade", func(ctx context.Context) error {
		return e.snapshots.SaveTrade(ctx, trade)
	})
	e.setStatus(ctx, InATrade)
}

// pnlReady is false while any position's quote exists but is stale
func (e *Engine) pnlReady() bool {
	for _, p := range e.ledger.Positions.Snapshot() {
		key := p.Instrument.Key()
		if e.cache.HasQuote(key) && !e.cache.QuoteValid(key, e.opts.QuoteMaxAge) {
			return false
		}
	}
	return true
}

// currentSpread is the mid-price spread of the active pair
func (e *Engine) currentSpread() (float64, bool) {
	if e.params == nil {
		return 0, false
	}
	q1, ok1 := e.cache.Quote(e.params.Leg1.Key())
	q2, ok2 := e.cache.Quote(e.params.Leg2.Key())
	if !ok1 || !ok2 || !q1.MidPrice.Valid || !q2.MidPrice.Valid {
		return 0, false
	}
	return e.params.Spread(midPrice(q1), midPrice(q2)), true
}

func crossedMean(previous, current, mean float64) bool {
	return (current > mean && previous < mean) || (current < mean && previous > mean)
}

func (e *Engine) stepInATrade(ctx context.Context, now time.Time) {
	if e.params == nil {
		if e.shouldReport(now) {
			e.logger.Warn("in a trade without strategy parameters, waiting for manual intervention\n" +
				formatters.FormatPositionsTable(e.ledger.Positions.Snapshot(), e.cache, e.opts.QuoteMaxAge, now, e.ledger.Multipliers()))
		}
		return
	}
	if !e.pnlReady() {
		return
	}
	spread, ok := e.currentSpread()
	if !ok {
		return
	}
	metrics.Spread.Set(spread)
	p := *e.params

	if e.previousSpread != nil && crossedMean(*e.previousSpread, spread, p.SpreadMean) {
		if e.ledger.Orders.HasOpenOrders() {
			if e.shouldReport(now) {
				e.logger.Info("spread reverted but orders are still working")
			}
			return
		}
		e.logger.Info("spread has reverted to the mean, closing all positions",
			zap.Float64("previous", *e.previousSpread),
			zap.Float64("spread", spread),
			zap.Float64("mean", p.SpreadMean))
		if _, err := e.ledger.CloseAll(e.opts.Account); err != nil {
			e.logger.Error("failed to create closing orders", zap.Error(err))
			return
		}
		e.ledger.Orders.PlaceUnsent(e.cmds)
		e.setStatus(ctx, SentExitOrders)
		return
	}

	if e.shouldReport(now) {
		e.reportPositions(now, p, spread)
	}
	e.previousSpread = &spread
}

func (e *Engine) reportPositions(now time.Time, p models.StrategyParameters, spread float64) {
	positions := e.ledger.Positions.Snapshot()
	mult := e.ledger.Multipliers()
	fields := []zap.Field{
		zap.Float64("spread", spread),
		zap.Float64("mean", p.SpreadMean),
	}
	if pnl, ok := e.ledger.UnrealizedPnL(e.cache, e.opts.QuoteMaxAge, now); ok {
		fields = append(fields, zap.String("unrealized_pnl", pnl.StringFixed(2)))
	}
	if target, ok := risk.ProfitTarget(positions, p.SpreadStd, mult); ok {
		fields = append(fields, zap.String("profit_target", target.StringFixed(2)))
	}
	e.logger.Info("positions\n"+formatters.FormatPositionsTable(positions, e.cache, e.opts.QuoteMaxAge, now, mult), fields...)
}

func (e *Engine) stepSentExitOrders(ctx context.Context, now time.Time) {
	e.ledger.Orders.PlaceUnsent(e.cmds)

	trade, ok := e.ledger.ActiveTrade()
	if !ok {
		if e.shouldReport(now) {
			e.logger.Warn("exit orders sent without an active trade, waiting for manual intervention",
				zap.Int("positions", e.ledger.Positions.Len()))
		}
		return
	}
	if !trade.IsComplete() {
		if e.shouldReport(now) {
			e.logger.Info("waiting for exit fills\n" + formatters.FormatOrdersTable(e.ledger.Orders.Snapshot()))
		}
		return
	}

	rep, err := trade.Report(e.ledger.Multipliers())
	if err != nil {
		e.logger.Error("failed to report trade", zap.String("trade_id", trade.ID), zap.Error(err))
	} else {
		metrics.TradesCompleted.Inc()
		metrics.LastTradeNetPnL.Set(rep.NetPnL.InexactFloat64())
		e.logger.Info("trade closed\n"+formatters.FormatTradeReport(rep),
			zap.String("trade_id", rep.TradeID),
			zap.String("net_pnl", rep.NetPnL.StringFixed(2)))
	}
	e.finishCycle(ctx)
}

// finishCycle forgets the finished trade and goes back to pair selection
func (e *Engine) finishCycle(ctx context.Context) {
	e.persist(ctx, "trade", e.snapshots.DeleteTrade)
	e.persist(ctx, "parameters", e.snapshots.DeleteParameters)
	e.ledger.ClearTrade()
	e.ledger.Orders.Clear()
	e.params = nil
	e.previousSpread = nil
	e.setStatus(ctx, AnalyzingPairs)
}

// signalRevalidation asks the loop to re-test the active pair
func (e *Engine) signalRevalidation() {
	select {
	case e.revalidateCh <- struct{}{}:
	default:
	}
}

// Revalidate re-evaluates the active pair on the latest history. A passing
// test refreshes the spread mean and deviation. A failing test drops the
// pair unless a trade is in flight, in which case the parameters are kept so
// the exit can still be evaluated.
func (e *Engine) Revalidate(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return
	}
	p := *e.params

	res, err := pairs.Evaluate(p.Leg1Name, e.cache.History(p.Leg1Name), p.Leg2Name, e.cache.History(p.Leg2Name), p.RollingWindow)
	if err != nil {
		e.logger.Warn("could not re-validate pair", zap.Error(err))
		return
	}

	if res.Cointegrated {
		e.params.SpreadMean = res.SpreadMean
		e.params.SpreadStd = res.SpreadStd
		updated := *e.params
		e.logger.Info("updated strategy parameters",
			zap.Float64("hedge_ratio", updated.HedgeRatio),
			zap.Float64("mean", updated.SpreadMean),
			zap.Float64("std", updated.SpreadStd),
			zap.Float64("half_life", updated.HalfLife))
		e.persist(ctx, "parameters", func(ctx context.Context) error {
			return e.snapshots.SaveParameters(ctx, updated)
		})
		return
	}

	if e.status.tradeInFlight() {
		e.logger.Error("pair failed cointegration during a trade, keeping parameters",
			zap.Float64("adf", res.ADFStatistic),
			zap.Float64("critical", res.CriticalValue))
		return
	}
	e.logger.Error("cointegration failed, strategy parameters reset",
		zap.Float64("adf", res.ADFStatistic),
		zap.Float64("critical", res.CriticalValue))
	e.params = nil
	e.previousSpread = nil
	e.persist(ctx, "parameters", e.snapshots.DeleteParameters)
	e.setStatus(ctx, AnalyzingPairs)
}
