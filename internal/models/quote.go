package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickField identifies which side of a quote a tick updates.
// Values follow the brokerage tick type numbering.
type TickField int

const (
	BidSize  TickField = 0
	BidPrice TickField = 1
	AskPrice TickField = 2
	AskSize  TickField = 3
)

func (f TickField) String() string {
	switch f {
	case BidSize:
		return "bid_size"
	case BidPrice:
		return "bid_price"
	case AskPrice:
		return "ask_price"
	case AskSize:
		return "ask_size"
	}
	return "unknown"
}

// Quote is the latest top of book for one instrument. It is built up field
// by field as ticks arrive.
type Quote struct {
	BidPrice  decimal.NullDecimal `json:"bid_price"`
	AskPrice  decimal.NullDecimal `json:"ask_price"`
	BidSize   decimal.NullDecimal `json:"bid_size"`
	AskSize   decimal.NullDecimal `json:"ask_size"`
	MidPrice  decimal.NullDecimal `json:"mid_price"`
	UpdatedAt time.Time           `json:"updated_at"`
}

var two = decimal.NewFromInt(2)

// Update sets one field and stamps the quote. Unknown fields are ignored.
func (q *Quote) Update(field TickField, value decimal.Decimal, now time.Time) bool {
	v := decimal.NullDecimal{Decimal: value, Valid: true}
	switch field {
	case BidSize:
		q.BidSize = v
	case BidPrice:
		q.BidPrice = v
	case AskPrice:
		q.AskPrice = v
	case AskSize:
		q.AskSize = v
	default:
		return false
	}
	q.UpdatedAt = now
	if q.BidPrice.Valid && q.AskPrice.Valid {
		q.MidPrice = decimal.NullDecimal{
			Decimal: q.BidPrice.Decimal.Add(q.AskPrice.Decimal).Div(two),
			Valid:   true,
		}
	}
	return true
}

// IsValid is true when every field is present and the last update is no
// older than maxAge
func (q Quote) IsValid(maxAge time.Duration, now time.Time) bool {
	if !q.BidPrice.Valid || !q.AskPrice.Valid || !q.BidSize.Valid || !q.AskSize.Valid || !q.MidPrice.Valid {
		return false
	}
	return now.Sub(q.UpdatedAt) <= maxAge
}

// PriceBar is one historical OHLC bar
type PriceBar struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	WAP      float64   `json:"wap"`
	BarCount int64     `json:"bar_count"`
}
