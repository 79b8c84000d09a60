package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
)

// Inbound event types
const (
	EventNextValidID       = "next_valid_id"
	EventContractDetails   = "contract_details"
	EventTickPrice         = "tick_price"
	EventTickSize          = "tick_size"
	EventTickByTick        = "tick_by_tick"
	EventMarketDepth       = "market_depth"
	EventHistoricalBar     = "historical_bar"
	EventHistoricalEnd     = "historical_end"
	EventHistoricalUpdate  = "historical_update"
	EventPosition          = "position"
	EventPositionEnd       = "position_end"
	EventAccountValue      = "account_value"
	EventAccountSummaryEnd = "account_summary_end"
	EventOrderStatus       = "order_status"
	EventOpenOrder         = "open_order"
	EventOpenOrderEnd      = "open_order_end"
	EventExecution         = "execution"
	EventCommissionReport  = "commission_report"
	EventError             = "error"
)

// envelope is the inbound frame. Data is decoded per type.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type nextValidID struct {
	OrderID int `json:"order_id"`
}

type summaryEnd struct {
	ReqID int `json:"req_id"`
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("missing data")
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// dispatch decodes one frame and hands it to the sink
func dispatch(sink broker.EventSink, env envelope) error {
	switch env.Type {
	case EventNextValidID:
		ev, err := decode[nextValidID](env.Data)
		if err != nil {
			return err
		}
		sink.OnNextValidID(ev.OrderID)
	case EventContractDetails:
		ev, err := decode[broker.ContractDetails](env.Data)
		if err != nil {
			return err
		}
		sink.OnContractDetails(ev)
	case EventTickPrice:
		ev, err := decode[broker.Tick](env.Data)
		if err != nil {
			return err
		}
		sink.OnTickPrice(ev)
	case EventTickSize:
		ev, err := decode[broker.Tick](env.Data)
		if err != nil {
			return err
		}
		sink.OnTickSize(ev)
	case EventTickByTick:
		ev, err := decode[broker.TickByTick](env.Data)
		if err != nil {
			return err
		}
		sink.OnTickByTick(ev)
	case EventMarketDepth:
		ev, err := decode[broker.MarketDepth](env.Data)
		if err != nil {
			return err
		}
		sink.OnMarketDepth(ev)
	case EventHistoricalBar:
		ev, err := decode[broker.HistoricalBar](env.Data)
		if err != nil {
			return err
		}
		sink.OnHistoricalBar(ev)
	case EventHistoricalEnd:
		ev, err := decode[broker.HistoricalEnd](env.Data)
		if err != nil {
			return err
		}
		sink.OnHistoricalEnd(ev)
	case EventHistoricalUpdate:
		ev, err := decode[broker.HistoricalBar](env.Data)
		if err != nil {
			return err
		}
		sink.OnHistoricalUpdate(ev)
	case EventPosition:
		ev, err := decode[broker.Position](env.Data)
		if err != nil {
			return err
		}
		sink.OnPosition(ev)
	case EventPositionEnd:
		sink.OnPositionEnd()
	case EventAccountValue:
		ev, err := decode[broker.AccountValue](env.Data)
		if err != nil {
			return err
		}
		sink.OnAccountValue(ev)
	case EventAccountSummaryEnd:
		ev, err := decode[summaryEnd](env.Data)
		if err != nil {
			return err
		}
		sink.OnAccountSummaryEnd(ev.ReqID)
	case EventOrderStatus:
		ev, err := decode[broker.OrderStatus](env.Data)
		if err != nil {
			return err
		}
		sink.OnOrderStatus(ev)
	case EventOpenOrder:
		ev, err := decode[broker.OpenOrder](env.Data)
		if err != nil {
			return err
		}
		sink.OnOpenOrder(ev)
	case EventOpenOrderEnd:
		sink.OnOpenOrderEnd()
	case EventExecution:
		ev, err := decode[broker.Execution](env.Data)
		if err != nil {
			return err
		}
		sink.OnExecution(ev)
	case EventCommissionReport:
		ev, err := decode[models.CommissionReport](env.Data)
		if err != nil {
			return err
		}
		sink.OnCommissionReport(ev)
	case EventError:
		ev, err := decode[broker.Error](env.Data)
		if err != nil {
			return err
		}
		sink.OnError(ev)
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	return nil
}
