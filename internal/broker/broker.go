// Package broker defines the two capabilities the strategy needs from a
// brokerage connection: issuing requests and receiving the events they produce.
package broker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/shopspring/decimal"
)

// HistoryOptions configures a historical bar request
type HistoryOptions struct {
	BarSize      string `json:"bar_size"`
	Duration     string `json:"duration"`
	WhatToShow   string `json:"what_to_show"`
	UseRTH       bool   `json:"use_rth"`
	KeepUpToDate bool   `json:"keep_up_to_date"`
}

// BarSize formats a bar interval in minutes the way the brokerage expects
func BarSize(minutes int) string {
	if minutes > 1 {
		return fmt.Sprintf("%d mins", minutes)
	}
	return "1 min"
}

// DefaultHistory returns a month of midpoint bars kept up to date
func DefaultHistory(barMinutes int) HistoryOptions {
	return HistoryOptions{
		BarSize:      BarSize(barMinutes),
		Duration:     "1 M",
		WhatToShow:   "MIDPOINT",
		UseRTH:       false,
		KeepUpToDate: true,
	}
}

// Commands issues outbound requests to the brokerage
type Commands interface {
	RequestContractDetails(id int, inst models.Instrument) error
	RequestMarketData(id int, inst models.Instrument) error
	RequestMarketDepth(id int, inst models.Instrument, rows int) error
	RequestTickByTick(id int, inst models.Instrument) error
	RequestHistoricalData(id int, inst models.Instrument, opts HistoryOptions) error
	RequestPositions() error
	RequestOpenOrders() error
	RequestAccountSummary(id int, tag string) error
	RequestExecutions(id int) error
	PlaceOrder(id int, inst models.Instrument, order models.OrderRequest) error
	CancelOrder(id int) error
}

// EventSink receives inbound brokerage events
type EventSink interface {
	OnNextValidID(id int)
	OnContractDetails(ev ContractDetails)
	OnTickPrice(ev Tick)
	OnTickSize(ev Tick)
	OnTickByTick(ev TickByTick)
	OnMarketDepth(ev MarketDepth)
	OnHistoricalBar(ev HistoricalBar)
	OnHistoricalEnd(ev HistoricalEnd)
	OnHistoricalUpdate(ev HistoricalBar)
	OnPosition(ev Position)
	OnPositionEnd()
	OnAccountValue(ev AccountValue)
	OnAccountSummaryEnd(reqID int)
	OnOrderStatus(ev OrderStatus)
	OnOpenOrder(ev OpenOrder)
	OnOpenOrderEnd()
	OnExecution(ev Execution)
	OnCommissionReport(ev models.CommissionReport)
	OnError(ev Error)
}

// Operation names used on the gateway wire format
const (
	OpContractDetails = "req_contract_details"
	OpMarketData      = "req_mkt_data"
	OpMarketDepth     = "req_mkt_depth"
	OpTickByTick      = "req_tick_by_tick"
	OpHistoricalData  = "req_historical_data"
	OpPositions       = "req_positions"
	OpOpenOrders      = "req_open_orders"
	OpAccountSummary  = "req_account_summary"
	OpExecutions      = "req_executions"
	OpPlaceOrder      = "place_order"
	OpCancelOrder     = "cancel_order"
)

// Account summary tags
const TagBuyingPower = "BuyingPower"

// ContractDetails resolves an instrument for a request
type ContractDetails struct {
	ReqID      int               `json:"req_id"`
	Instrument models.Instrument `json:"instrument"`
}

// Tick is a single price or size update for one side of a quote
type Tick struct {
	ReqID int              `json:"req_id"`
	Field models.TickField `json:"field"`
	Value decimal.Decimal  `json:"value"`
}

// TickByTick is a full bid/ask update
type TickByTick struct {
	ReqID    int             `json:"req_id"`
	Time     time.Time       `json:"time"`
	BidPrice decimal.Decimal `json:"bid_price"`
	AskPrice decimal.Decimal `json:"ask_price"`
	BidSize  decimal.Decimal `json:"bid_size"`
	AskSize  decimal.Decimal `json:"ask_size"`
}

// MarketDepth is one order book level update
type MarketDepth struct {
	ReqID     int             `json:"req_id"`
	Position  int             `json:"position"`
	Operation int             `json:"operation"`
	Side      int             `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
}

// HistoricalBar carries one bar of a bulk load or a live update
type HistoricalBar struct {
	ReqID int             `json:"req_id"`
	Bar   models.PriceBar `json:"bar"`
}

// HistoricalEnd marks the end of a bulk historical load
type HistoricalEnd struct {
	ReqID int    `json:"req_id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Position is one entry of the account position snapshot
type Position struct {
	Account    string            `json:"account"`
	Instrument models.Instrument `json:"instrument"`
	Quantity   decimal.Decimal   `json:"quantity"`
	AvgCost    decimal.Decimal   `json:"avg_cost"`
}

// AccountValue is one account summary tag
type AccountValue struct {
	ReqID    int    `json:"req_id"`
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// OrderStatus reports progress on a placed order
type OrderStatus struct {
	OrderID      int                `json:"order_id"`
	Status       models.OrderStatus `json:"status"`
	Filled       decimal.Decimal    `json:"filled"`
	Remaining    decimal.Decimal    `json:"remaining"`
	AvgFillPrice decimal.Decimal    `json:"avg_fill_price"`
}

// OpenOrder is one entry of the open order snapshot
type OpenOrder struct {
	OrderID    int                 `json:"order_id"`
	Instrument models.Instrument   `json:"instrument"`
	Request    models.OrderRequest `json:"order"`
	Status     models.OrderStatus  `json:"status"`
}

// Execution is a fill report
type Execution struct {
	ReqID      int               `json:"req_id"`
	Instrument models.Instrument `json:"instrument"`
	ExecID     string            `json:"exec_id"`
	OrderID    int               `json:"order_id"`
	Side       string            `json:"side"`
	Shares     decimal.Decimal   `json:"shares"`
	Price      decimal.Decimal   `json:"price"`
}

// Error is a brokerage error or warning, keyed by request id (-1 for general)
type Error struct {
	ReqID   int    `json:"req_id"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IsWarning reports codes in the 21xx informational range
func (e Error) IsWarning() bool {
	return strings.HasPrefix(strconv.Itoa(e.Code), "21")
}

// IsGeneral reports errors not tied to a request
func (e Error) IsGeneral() bool {
	return e.ReqID == -1
}

// NopSink ignores every event. Embed it to handle only a subset of events.
type NopSink struct{}

func (NopSink) OnNextValidID(int)                          {}
func (NopSink) OnContractDetails(ContractDetails)          {}
func (NopSink) OnTickPrice(Tick)                           {}
func (NopSink) OnTickSize(Tick)                            {}
func (NopSink) OnTickByTick(TickByTick)                    {}
func (NopSink) OnMarketDepth(MarketDepth)                  {}
func (NopSink) OnHistoricalBar(HistoricalBar)              {}
func (NopSink) OnHistoricalEnd(HistoricalEnd)              {}
func (NopSink) OnHistoricalUpdate(HistoricalBar)           {}
func (NopSink) OnPosition(Position)                        {}
func (NopSink) OnPositionEnd()                             {}
func (NopSink) OnAccountValue(AccountValue)                {}
func (NopSink) OnAccountSummaryEnd(int)                    {}
func (NopSink) OnOrderStatus(OrderStatus)                  {}
func (NopSink) OnOpenOrder(OpenOrder)                      {}
func (NopSink) OnOpenOrderEnd()                            {}
func (NopSink) OnExecution(Execution)                      {}
func (NopSink) OnCommissionReport(models.CommissionReport) {}
func (NopSink) OnError(Error)                              {}
