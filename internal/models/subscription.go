package models

import "time"

// DataKind is the type of data a subscription requests from the brokerage
type DataKind int

const (
	ContractInfo DataKind = iota + 1
	QuoteData
	MarketDepth
	TickData
	HistoricalData
	Positions
	Orders
	Account
	Executions
)

var dataKindNames = map[DataKind]string{
	ContractInfo:   "ContractInfo",
	QuoteData:      "QuoteData",
	MarketDepth:    "MarketDepth",
	TickData:       "TickData",
	HistoricalData: "HistoricalData",
	Positions:      "Positions",
	Orders:         "Orders",
	Account:        "Account",
	Executions:     "Executions",
}

func (k DataKind) String() string {
	if name, ok := dataKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// NeedsInstrument reports whether requests of this kind target a contract
func (k DataKind) NeedsInstrument() bool {
	switch k {
	case ContractInfo, QuoteData, MarketDepth, TickData, HistoricalData:
		return true
	}
	return false
}

// Subscription describes one outstanding data request
type Subscription struct {
	Kind       DataKind    `json:"kind"`
	Instrument *Instrument `json:"instrument,omitempty"`
	Name       string      `json:"name"`
	Sent       bool        `json:"sent"`
	SentAt     *time.Time  `json:"sent_at,omitempty"`
}

// NewSubscription builds an unsent subscription. inst may be nil for
// account-wide requests.
func NewSubscription(kind DataKind, inst *Instrument, name string) Subscription {
	var copied *Instrument
	if inst != nil {
		c := *inst
		copied = &c
	}
	return Subscription{Kind: kind, Instrument: copied, Name: name}
}

// Same reports whether two subscriptions request the same data. When both
// carry an instrument the instrument identities must match as well.
func (s Subscription) Same(other Subscription) bool {
	if s.Kind != other.Kind {
		return false
	}
	if s.Instrument != nil && other.Instrument != nil {
		return s.Instrument.Key() == other.Instrument.Key()
	}
	return true
}
