package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// Cache holds live quotes, historical bar series and resolved contracts
type Cache struct {
	quotes    *gocache.Cache
	contracts *gocache.Cache
	now       func() time.Time

	mu     sync.RWMutex
	series map[string]*series
}

type quoteEntry struct {
	mu    sync.Mutex
	quote models.Quote
}

type series struct {
	bars     []models.PriceBar
	complete bool
}

// NewCache creates an empty cache. A nil clock means time.Now.
func NewCache(clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	// Quotes and contracts live for the whole session
	return &Cache{
		quotes:    gocache.New(gocache.NoExpiration, 0),
		contracts: gocache.New(gocache.NoExpiration, 0),
		now:       clock,
		series:    make(map[string]*series),
	}
}

func (c *Cache) quoteEntry(key string) *quoteEntry {
	if val, found := c.quotes.Get(key); found {
		return val.(*quoteEntry)
	}
	entry := &quoteEntry{}
	if err := c.quotes.Add(key, entry, gocache.NoExpiration); err != nil {
		// lost the race to another writer
		val, _ := c.quotes.Get(key)
		return val.(*quoteEntry)
	}
	return entry
}

// UpdateQuote applies one tick to the quote stored under key
func (c *Cache) UpdateQuote(key string, field models.TickField, value decimal.Decimal) bool {
	if key == "" {
		return false
	}
	entry := c.quoteEntry(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.quote.Update(field, value, c.now()) {
		return false
	}
	metrics.QuoteTicks.WithLabelValues(field.String()).Inc()
	return true
}

// UpdateQuoteBidAsk applies a full bid/ask update as four tick updates
func (c *Cache) UpdateQuoteBidAsk(key string, bid, ask, bidSize, askSize decimal.Decimal) {
	c.UpdateQuote(key, models.BidPrice, bid)
	c.UpdateQuote(key, models.AskPrice, ask)
	c.UpdateQuote(key, models.BidSize, bidSize)
	c.UpdateQuote(key, models.AskSize, askSize)
}

// Quote returns a copy of the quote for key
func (c *Cache) Quote(key string) (models.Quote, bool) {
	val, found := c.quotes.Get(key)
	if !found {
		return models.Quote{}, false
	}
	entry := val.(*quoteEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.quote, true
}

// QuoteValid reports whether the quote for key is complete and fresh
func (c *Cache) QuoteValid(key string, maxAge time.Duration) bool {
	q, ok := c.Quote(key)
	return ok && q.IsValid(maxAge, c.now())
}

// HasQuote reports whether any tick has been stored for key
func (c *Cache) HasQuote(key string) bool {
	_, found := c.quotes.Get(key)
	return found
}

// AppendBar adds a bar from a bulk load. Once a series is complete a
// replayed load only contributes bars newer than the last one held.
func (c *Cache) AppendBar(name string, bar models.PriceBar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[name]
	if !ok {
		s = &series{}
		c.series[name] = s
	}
	if s.complete && len(s.bars) > 0 && !bar.Time.After(s.bars[len(s.bars)-1].Time) {
		return
	}
	s.bars = append(s.bars, bar)
	metrics.BarsReceived.WithLabelValues("bulk").Inc()
}

// CompleteSeries sorts a series once its bulk load has finished, keeps the
// last bar seen for each timestamp and marks it complete. It returns the
// number of bars held.
func (c *Cache) CompleteSeries(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[name]
	if !ok {
		s = &series{}
		c.series[name] = s
	}
	sort.SliceStable(s.bars, func(i, j int) bool { return s.bars[i].Time.Before(s.bars[j].Time) })
	s.bars = dedupe(s.bars)
	s.complete = true
	return len(s.bars)
}

// dedupe drops all but the last of consecutive bars sharing a timestamp
func dedupe(bars []models.PriceBar) []models.PriceBar {
	out := bars[:0]
	for i, b := range bars {
		if i+1 < len(bars) && bars[i+1].Time.Equal(b.Time) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// UpdateBar appends a live bar unless it repeats the last bar's timestamp.
// Series that were never loaded are ignored.
func (c *Cache) UpdateBar(name string, bar models.PriceBar) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[name]
	if !ok || len(s.bars) == 0 {
		return false
	}
	if s.bars[len(s.bars)-1].Time.Equal(bar.Time) {
		return false
	}
	s.bars = append(s.bars, bar)
	metrics.BarsReceived.WithLabelValues("update").Inc()
	return true
}

// History returns a copy of the bars stored for name
func (c *Cache) History(name string) []models.PriceBar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.series[name]
	if !ok {
		return nil
	}
	out := make([]models.PriceBar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Histories returns copies of the named series
func (c *Cache) Histories(names []string) map[string][]models.PriceBar {
	out := make(map[string][]models.PriceBar, len(names))
	for _, name := range names {
		out[name] = c.History(name)
	}
	return out
}

// LastBarTime returns the timestamp of the newest bar in a series
func (c *Cache) LastBarTime(name string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.series[name]
	if !ok || len(s.bars) == 0 {
		return time.Time{}, false
	}
	return s.bars[len(s.bars)-1].Time, true
}

// IsComplete reports whether the bulk load for name has finished
func (c *Cache) IsComplete(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.series[name]
	return ok && s.complete
}

// AllComplete reports whether every named series finished loading
func (c *Cache) AllComplete(names []string) bool {
	for _, name := range names {
		if !c.IsComplete(name) {
			return false
		}
	}
	return len(names) > 0
}

// CompletedCount returns how many series finished their bulk load
func (c *Cache) CompletedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, s := range c.series {
		if s.complete {
			n++
		}
	}
	return n
}

// SetContract records the resolved contract for a display name
func (c *Cache) SetContract(name string, inst models.Instrument) {
	c.contracts.Set(name, inst, gocache.NoExpiration)
}

// Contract returns the resolved contract for a display name
func (c *Cache) Contract(name string) (models.Instrument, bool) {
	if val, found := c.contracts.Get(name); found {
		if inst, ok := val.(models.Instrument); ok {
			return inst, true
		}
	}
	return models.Instrument{}, false
}

// Clear removes all cached data
func (c *Cache) Clear() {
	c.quotes.Flush()
	c.contracts.Flush()
	c.mu.Lock()
	c.series = make(map[string]*series)
	c.mu.Unlock()
}

// Stats returns cache statistics
type Stats struct {
	QuoteCount     int
	ContractCount  int
	SeriesCount    int
	CompleteSeries int
	BarCount       int
}

// GetStats returns current cache statistics
func (c *Cache) GetStats() Stats {
	st := Stats{
		QuoteCount:    c.quotes.ItemCount(),
		ContractCount: c.contracts.ItemCount(),
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	st.SeriesCount = len(c.series)
	for _, s := range c.series {
		st.BarCount += len(s.bars)
		if s.complete {
			st.CompleteSeries++
		}
	}
	return st
}
