package trading

import (
	"sort"
	"sync"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/shopspring/decimal"
)

// Multipliers maps a security type to its contract multiplier
type Multipliers map[string]decimal.Decimal

// DefaultMultipliers prices bonds per 10 units of quote
func DefaultMultipliers() Multipliers {
	return Multipliers{models.SecTypeBond: decimal.NewFromInt(10)}
}

// For returns the multiplier for secType, 1 when none is configured
func (m Multipliers) For(secType string) decimal.Decimal {
	if v, ok := m[secType]; ok && !v.IsZero() {
		return v
	}
	return decimal.NewFromInt(1)
}

// Position is an open strategy position. Quantity is signed, negative when short.
type Position struct {
	Instrument       models.Instrument `json:"instrument"`
	Name             string            `json:"name"`
	RefID            int               `json:"ref_id"`
	Account          string            `json:"account"`
	AvgPrice         decimal.Decimal   `json:"avg_price"`
	Quantity         decimal.Decimal   `json:"quantity"`
	ClosingOrderSent bool              `json:"closing_order_sent"`
}

// IsLong reports a positive quantity
func (p Position) IsLong() bool {
	return p.Quantity.IsPositive()
}

// ClosingAction is the order side that flattens the position
func (p Position) ClosingAction() models.Action {
	if p.IsLong() {
		return models.Sell
	}
	return models.Buy
}

// UnrealizedPnL marks the position to the side of the book it would close
// against: the bid when long, the ask when short. It is undefined when the
// quote is not valid.
func (p Position) UnrealizedPnL(q models.Quote, maxAge time.Duration, now time.Time, mult decimal.Decimal) (decimal.Decimal, bool) {
	if !q.IsValid(maxAge, now) {
		return decimal.Zero, false
	}
	ref := q.AskPrice.Decimal
	if p.IsLong() {
		ref = q.BidPrice.Decimal
	}
	return p.Quantity.Mul(ref.Sub(p.AvgPrice)).Mul(mult), true
}

// PositionBook holds open positions keyed by instrument
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

// NewPositionBook creates an empty book
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]*Position)}
}

// Upsert stores p, replacing any position on the same instrument
func (b *PositionBook) Upsert(p Position) {
	key := p.Instrument.Key()
	if key == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := p
	b.positions[key] = &cp
}

// Remove deletes and returns the position for key
func (b *PositionBook) Remove(key string) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[key]
	if !ok {
		return Position{}, false
	}
	delete(b.positions, key)
	return *p, true
}

// Get returns a copy of the position for key
func (b *PositionBook) Get(key string) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[key]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// MarkClosing flags that a closing order exists for key
func (b *PositionBook) MarkClosing(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.positions[key]; ok {
		p.ClosingOrderSent = true
	}
}

// Snapshot returns copies of all positions ordered by name then key
func (b *PositionBook) Snapshot() []Position {
	b.mu.RLock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Instrument.Key() < out[j].Instrument.Key()
	})
	return out
}

// Len returns the number of open positions
func (b *PositionBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// IsFlat reports no open positions
func (b *PositionBook) IsFlat() bool {
	return b.Len() == 0
}

// Clear drops all positions
func (b *PositionBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = make(map[string]*Position)
}
