// Package requests keeps the registry of data requests sent to the brokerage.
package requests

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"go.uber.org/zap"
)

// GeneralName labels events whose request id is unknown
const GeneralName = "General"

// depthRows is the number of book levels asked for on depth requests
const depthRows = 10

type subscribeFunc func(cmds broker.Commands, id int, inst models.Instrument) error

// Ledger maps request ids to subscriptions and sends each one exactly once
type Ledger struct {
	mu       sync.RWMutex
	sendMu   sync.Mutex
	entries  map[int]*models.Subscription
	nextID   int
	dispatch map[models.DataKind]subscribeFunc
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedger creates a ledger that requests history with the given options
func NewLedger(history broker.HistoryOptions, logger *zap.Logger) *Ledger {
	l := &Ledger{
		entries: make(map[int]*models.Subscription),
		nextID:  1,
		logger:  logger.With(zap.String("component", "requests")),
		now:     time.Now,
	}
	l.dispatch = map[models.DataKind]subscribeFunc{
		models.ContractInfo: func(c broker.Commands, id int, inst models.Instrument) error {
			return c.RequestContractDetails(id, inst)
		},
		models.QuoteData: func(c broker.Commands, id int, inst models.Instrument) error {
			return c.RequestMarketData(id, inst)
		},
		models.MarketDepth: func(c broker.Commands, id int, inst models.Instrument) error {
			return c.RequestMarketDepth(id, inst, depthRows)
		},
		models.TickData: func(c broker.Commands, id int, inst models.Instrument) error {
			return c.RequestTickByTick(id, inst)
		},
		models.HistoricalData: func(c broker.Commands, id int, inst models.Instrument) error {
			return c.RequestHistoricalData(id, inst, history)
		},
		models.Positions: func(c broker.Commands, _ int, _ models.Instrument) error {
			return c.RequestPositions()
		},
		models.Orders: func(c broker.Commands, _ int, _ models.Instrument) error {
			return c.RequestOpenOrders()
		},
		models.Account: func(c broker.Commands, id int, _ models.Instrument) error {
			return c.RequestAccountSummary(id, broker.TagBuyingPower)
		},
		models.Executions: func(c broker.Commands, id int, _ models.Instrument) error {
			return c.RequestExecutions(id)
		},
	}
	return l
}

// Register inserts sub under id unless the id is taken or an equal
// subscription is already registered
func (l *Ledger) Register(id int, sub models.Subscription) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registerLocked(id, sub)
}

func (l *Ledger) registerLocked(id int, sub models.Subscription) bool {
	if _, taken := l.entries[id]; taken {
		return false
	}
	for _, existing := range l.entries {
		if existing.Same(sub) {
			return false
		}
	}
	s := sub
	l.entries[id] = &s
	if id >= l.nextID {
		l.nextID = id + 1
	}
	return true
}

// Add registers sub under a freshly allocated id. It returns the id and
// whether the subscription was new.
func (l *Ledger) Add(sub models.Subscription) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	if !l.registerLocked(id, sub) {
		return 0, false
	}
	return id, true
}

// Contains reports whether an equal subscription is registered
func (l *Ledger) Contains(sub models.Subscription) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, existing := range l.entries {
		if existing.Same(sub) {
			return true
		}
	}
	return false
}

// HasName reports whether a subscription of kind is registered under the
// display name, whatever instrument it targets
func (l *Ledger) HasName(kind models.DataKind, name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, existing := range l.entries {
		if existing.Kind == kind && existing.Name == name {
			return true
		}
	}
	return false
}

// SendAll dispatches every unsent subscription in id order and returns how
// many were sent. Failed sends stay unsent and are retried on the next call.
func (l *Ledger) SendAll(cmds broker.Commands) int {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	type pending struct {
		id  int
		sub models.Subscription
	}
	l.mu.RLock()
	var todo []pending
	for id, sub := range l.entries {
		if !sub.Sent {
			todo = append(todo, pending{id: id, sub: *sub})
		}
	}
	l.mu.RUnlock()
	sort.Slice(todo, func(i, j int) bool { return todo[i].id < todo[j].id })

	sent := 0
	for _, p := range todo {
		if err := l.send(cmds, p.id, p.sub); err != nil {
			l.logger.Error("request failed",
				zap.String("name", p.sub.Name),
				zap.Stringer("kind", p.sub.Kind),
				zap.Int("request_id", p.id),
				zap.Error(err))
			continue
		}
		at := l.now()
		l.mu.Lock()
		if entry, ok := l.entries[p.id]; ok {
			entry.Sent = true
			entry.SentAt = &at
		}
		l.mu.Unlock()
		sent++
		metrics.SubscriptionsSent.WithLabelValues(p.sub.Kind.String()).Inc()
		l.logger.Info(fmt.Sprintf("%s %s request #%d sent", p.sub.Name, p.sub.Kind, p.id))
	}
	return sent
}

func (l *Ledger) send(cmds broker.Commands, id int, sub models.Subscription) error {
	fn, ok := l.dispatch[sub.Kind]
	if !ok {
		return fmt.Errorf("unsupported data kind %s", sub.Kind)
	}
	var inst models.Instrument
	if sub.Kind.NeedsInstrument() {
		if sub.Instrument == nil || sub.Instrument.IsZero() {
			return fmt.Errorf("%s request requires an instrument", sub.Kind)
		}
		inst = *sub.Instrument
	}
	return fn(cmds, id, inst)
}

// ResetSent marks every subscription unsent so the next SendAll replays them
func (l *Ledger) ResetSent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sub := range l.entries {
		sub.Sent = false
		sub.SentAt = nil
	}
}

// Lookup returns a copy of the subscription registered under id
func (l *Ledger) Lookup(id int) (models.Subscription, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sub, ok := l.entries[id]
	if !ok {
		return models.Subscription{}, false
	}
	return *sub, true
}

// Name returns the display name for id, or GeneralName when unknown
func (l *Ledger) Name(id int) string {
	if sub, ok := l.Lookup(id); ok {
		return sub.Name
	}
	return GeneralName
}

// Instrument returns the instrument targeted by id, if any
func (l *Ledger) Instrument(id int) (models.Instrument, bool) {
	sub, ok := l.Lookup(id)
	if !ok || sub.Instrument == nil {
		return models.Instrument{}, false
	}
	return *sub.Instrument, true
}

// Len returns the number of registered subscriptions
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Pending returns the number of subscriptions not yet sent
func (l *Ledger) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, sub := range l.entries {
		if !sub.Sent {
			n++
		}
	}
	return n
}
