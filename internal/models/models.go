package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Action represents buy or sell
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Sign returns +1 for buys and -1 for sells
func (a Action) Sign() decimal.Decimal {
	if a == Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// OrderType represents the order type
type OrderType string

const (
	Market OrderType = "MKT"
	Limit  OrderType = "LMT"
)

// OrderStatus represents the current status of an order
type OrderStatus string

const (
	OrderUnsent        OrderStatus = "Unsent"
	OrderSent          OrderStatus = "Sent"
	OrderSubmitted     OrderStatus = "Submitted"
	OrderPendingSubmit OrderStatus = "PendingSubmit"
	OrderPendingCancel OrderStatus = "PendingCancel"
	OrderPreSubmitted  OrderStatus = "PreSubmitted"
	OrderFilled        OrderStatus = "Filled"
	OrderCancelled     OrderStatus = "Cancelled"
	OrderApiCancelled  OrderStatus = "ApiCancelled"
	OrderInactive      OrderStatus = "Inactive"
)

// IsOpen reports whether the brokerage still considers the order working
func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderSubmitted, OrderPendingSubmit, OrderPendingCancel, OrderPreSubmitted:
		return true
	}
	return false
}

// Security types
const (
	SecTypeBond  = "BOND"
	SecTypeStock = "STK"
)

// lastTradeDateLayout is the brokerage date format for contract expiry
const lastTradeDateLayout = "20060102"

// Instrument identifies a tradeable contract at the brokerage
type Instrument struct {
	ID            int64  `json:"con_id,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	SecType       string `json:"sec_type"`
	Currency      string `json:"currency"`
	Exchange      string `json:"exchange"`
	LastTradeDate string `json:"last_trade_date,omitempty"`
}

// NewBond builds an unresolved bond contract using the CUSIP as its symbol
func NewBond(cusip string) Instrument {
	return Instrument{
		Symbol:   cusip,
		SecType:  SecTypeBond,
		Currency: "USD",
		Exchange: "SMART",
	}
}

// Key returns the identity used for quote and position lookups.
// Resolved contracts are keyed by contract id, unresolved ones by symbol.
func (i Instrument) Key() string {
	if i.ID != 0 {
		return strconv.FormatInt(i.ID, 10)
	}
	if i.Symbol != "" {
		return "sym:" + i.Symbol
	}
	return ""
}

// IsZero reports whether no contract is referenced
func (i Instrument) IsZero() bool {
	return i.Key() == ""
}

// Maturity parses the contract's last trade date
func (i Instrument) Maturity() (time.Time, error) {
	if i.LastTradeDate == "" {
		return time.Time{}, fmt.Errorf("instrument %s has no last trade date", i.Key())
	}
	t, err := time.Parse(lastTradeDateLayout, i.LastTradeDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last trade date %q: %w", i.LastTradeDate, err)
	}
	return t, nil
}

// OrderRequest represents a request to create a new order
type OrderRequest struct {
	Action    Action          `json:"action"`
	Quantity  decimal.Decimal `json:"quantity"`
	Account   string          `json:"account"`
	OrderType OrderType       `json:"order_type"`
}

// NewMarketOrder assembles a market order. Quantity is always stored unsigned.
func NewMarketOrder(action Action, quantity decimal.Decimal, account string) (OrderRequest, error) {
	if action != Buy && action != Sell {
		return OrderRequest{}, fmt.Errorf("action must be either BUY or SELL, got %q", action)
	}
	return OrderRequest{
		Action:    action,
		Quantity:  quantity.Abs(),
		Account:   account,
		OrderType: Market,
	}, nil
}

// StrategyOrder is an order the engine created or learned about, keyed by broker order id
type StrategyOrder struct {
	ID         int             `json:"id"`
	Request    OrderRequest    `json:"request"`
	Instrument Instrument      `json:"instrument"`
	Status     OrderStatus     `json:"status"`
	FillPrice  decimal.Decimal `json:"fill_price"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
	FilledAt   *time.Time      `json:"filled_at,omitempty"`
}

// IsOpen reports whether the order is still working at the brokerage
func (o StrategyOrder) IsOpen() bool {
	return o.Status.IsOpen()
}

// IsFilled reports whether the order reached the Filled status
func (o StrategyOrder) IsFilled() bool {
	return o.Status == OrderFilled
}

// CommissionReport is the brokerage's cost summary for one execution
type CommissionReport struct {
	ExecID      string          `json:"exec_id"`
	Commission  decimal.Decimal `json:"commission"`
	Currency    string          `json:"currency"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// Security is one auctioned Treasury from the reference-data provider
type Security struct {
	CUSIP        string    `json:"cusip"`
	Term         string    `json:"security_term"`
	Type         string    `json:"type"`
	IssueDate    time.Time `json:"issue_date"`
	MaturityDate time.Time `json:"maturity_date"`
	InterestRate string    `json:"interest_rate"`
}

// DaysSinceIssued counts whole days between issue and now
func (s Security) DaysSinceIssued(now time.Time) int {
	return daysBetween(s.IssueDate, now)
}

// DaysToNextPayment assumes the first coupon lands 24 weeks after issue
func (s Security) DaysToNextPayment(now time.Time) int {
	return daysBetween(now, s.IssueDate.AddDate(0, 0, 24*7))
}

// Instrument returns the unresolved brokerage contract for this security
func (s Security) Instrument() Instrument {
	return NewBond(s.CUSIP)
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
