// Package brokertest provides a broker.Commands double for tests.
package brokertest

import (
	"sync"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
)

// Call is one command captured by a Recorder
type Call struct {
	Op         string
	ID         int
	Instrument models.Instrument
	Order      models.OrderRequest
	History    broker.HistoryOptions
	Tag        string
	Rows       int
}

// Recorder is a broker.Commands implementation that records every call instead of
// talking to a brokerage. Errors can be injected per operation.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	fail  map[string]error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// FailOn makes every subsequent call to op return err. A nil err clears it.
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Calls returns a copy of everything recorded so far
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many times op was called successfully
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Orders returns the recorded PlaceOrder calls
func (r *Recorder) Orders() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Op == broker.OpPlaceOrder {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[c.Op]; ok {
		return err
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *Recorder) RequestContractDetails(id int, inst models.Instrument) error {
	return r.record(Call{Op: broker.OpContractDetails, ID: id, Instrument: inst})
}

func (r *Recorder) RequestMarketData(id int, inst models.Instrument) error {
	return r.record(Call{Op: broker.OpMarketData, ID: id, Instrument: inst})
}

func (r *Recorder) RequestMarketDepth(id int, inst models.Instrument, rows int) error {
	return r.record(Call{Op: broker.OpMarketDepth, ID: id, Instrument: inst, Rows: rows})
}

func (r *Recorder) RequestTickByTick(id int, inst models.Instrument) error {
	return r.record(Call{Op: broker.OpTickByTick, ID: id, Instrument: inst})
}

func (r *Recorder) RequestHistoricalData(id int, inst models.Instrument, opts broker.HistoryOptions) error {
	return r.record(Call{Op: broker.OpHistoricalData, ID: id, Instrument: inst, History: opts})
}

func (r *Recorder) RequestPositions() error {
	return r.record(Call{Op: broker.OpPositions})
}

func (r *Recorder) RequestOpenOrders() error {
	return r.record(Call{Op: broker.OpOpenOrders})
}

func (r *Recorder) RequestAccountSummary(id int, tag string) error {
	return r.record(Call{Op: broker.OpAccountSummary, ID: id, Tag: tag})
}

func (r *Recorder) RequestExecutions(id int) error {
	return r.record(Call{Op: broker.OpExecutions, ID: id})
}

func (r *Recorder) PlaceOrder(id int, inst models.Instrument, order models.OrderRequest) error {
	return r.record(Call{Op: broker.OpPlaceOrder, ID: id, Instrument: inst, Order: order})
}

func (r *Recorder) CancelOrder(id int) error {
	return r.record(Call{Op: broker.OpCancelOrder, ID: id})
}

var _ broker.Commands = (*Recorder)(nil)
