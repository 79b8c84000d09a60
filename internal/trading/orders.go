// Package trading tracks the strategy's orders, positions and pairs trades
// and reconciles brokerage fills into them.
package trading

import (
	"sort"
	"sync"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"go.uber.org/zap"
)

// OrderBook holds every order the strategy knows about, keyed by broker order id
type OrderBook struct {
	mu        sync.RWMutex
	sendMu    sync.Mutex
	orders    map[int]*models.StrategyOrder
	nextValid int
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderBook creates an empty order book. A nil clock uses time.Now.
func NewOrderBook(logger *zap.Logger, clock func() time.Time) *OrderBook {
	if clock == nil {
		clock = time.Now
	}
	return &OrderBook{
		orders: make(map[int]*models.StrategyOrder),
		logger: logger.With(zap.String("component", "orders")),
		now:    clock,
	}
}

// SetNextValidID records the lowest order id the brokerage will accept
func (b *OrderBook) SetNextValidID(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id > b.nextValid {
		b.nextValid = id
	}
}

// NextOrderID returns the id the next order will be created with
func (b *OrderBook) NextOrderID() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextIDLocked()
}

func (b *OrderBook) nextIDLocked() int {
	next := b.nextValid
	for id := range b.orders {
		if id+1 > next {
			next = id + 1
		}
	}
	return next
}

// Add creates an Unsent order and returns its id
func (b *OrderBook) Add(inst models.Instrument, req models.OrderRequest) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextIDLocked()
	b.orders[id] = &models.StrategyOrder{
		ID:         id,
		Request:    req,
		Instrument: inst,
		Status:     models.OrderUnsent,
	}
	b.nextValid = id + 1
	return id
}

// PlaceUnsent dispatches every Unsent order that has an instrument, in id
// order, and returns how many were sent. Orders that fail to send stay
// Unsent for the next attempt.
func (b *OrderBook) PlaceUnsent(cmds broker.Commands) int {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.RLock()
	var pending []models.StrategyOrder
	for _, o := range b.orders {
		if o.Status == models.OrderUnsent && !o.Instrument.IsZero() {
			pending = append(pending, *o)
		}
	}
	b.mu.RUnlock()
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	sent := 0
	for _, o := range pending {
		if err := cmds.PlaceOrder(o.ID, o.Instrument, o.Request); err != nil {
			b.logger.Error("failed to place order",
				zap.Int("order_id", o.ID),
				zap.String("action", string(o.Request.Action)),
				zap.Error(err))
			continue
		}
		now := b.now()
		b.mu.Lock()
		if cur, ok := b.orders[o.ID]; ok && cur.Status == models.OrderUnsent {
			cur.Status = models.OrderSent
			cur.SentAt = &now
		}
		b.mu.Unlock()

		metrics.OrdersPlaced.WithLabelValues(string(o.Request.Action)).Inc()
		b.logger.Info("order placed",
			zap.Int("order_id", o.ID),
			zap.String("action", string(o.Request.Action)),
			zap.String("quantity", o.Request.Quantity.String()),
			zap.String("instrument", o.Instrument.Key()))
		sent++
	}
	return sent
}

// ApplyStatus updates the matching order from a status event and returns
// its new state. Unknown order ids are ignored.
func (b *OrderBook) ApplyStatus(ev broker.OrderStatus) (models.StrategyOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[ev.OrderID]
	if !ok {
		return models.StrategyOrder{}, false
	}
	o.Status = ev.Status
	if !ev.AvgFillPrice.IsZero() {
		o.FillPrice = ev.AvgFillPrice
	}
	if ev.Status == models.OrderFilled && o.FilledAt == nil {
		now := b.now()
		o.FilledAt = &now
	}
	return *o, true
}

// TrackOpenOrder records an order reported by the open order snapshot,
// typically one placed before a restart
func (b *OrderBook) TrackOpenOrder(ev broker.OpenOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.orders[ev.OrderID]; ok {
		o.Status = ev.Status
		return
	}
	b.orders[ev.OrderID] = &models.StrategyOrder{
		ID:         ev.OrderID,
		Request:    ev.Request,
		Instrument: ev.Instrument,
		Status:     ev.Status,
	}
}

// HasOpenOrders is true when the book is non-empty and every order in it is
// still working at the brokerage
func (b *OrderBook) HasOpenOrders() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.orders) == 0 {
		return false
	}
	for _, o := range b.orders {
		if !o.IsOpen() {
			return false
		}
	}
	return true
}

// Get returns a copy of one order
func (b *OrderBook) Get(id int) (models.StrategyOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	if !ok {
		return models.StrategyOrder{}, false
	}
	return *o, true
}

// Snapshot returns copies of all orders sorted by id
func (b *OrderBook) Snapshot() []models.StrategyOrder {
	b.mu.RLock()
	out := make([]models.StrategyOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, *o)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tracked orders
func (b *OrderBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// Clear forgets every order but keeps the next valid id
func (b *OrderBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextValid = b.nextIDLocked()
	b.orders = make(map[int]*models.StrategyOrder)
}

// IsFullFill reports whether ev completes the whole requested quantity of o
func IsFullFill(o models.StrategyOrder, ev broker.OrderStatus) bool {
	return ev.Status == models.OrderFilled &&
		ev.Filled.Equal(o.Request.Quantity) &&
		ev.Remaining.IsZero()
}
