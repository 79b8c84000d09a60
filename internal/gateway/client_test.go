package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{}

type recordingSink struct {
	broker.NopSink
	events chan string
	ticks  chan broker.Tick
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan string, 16), ticks: make(chan broker.Tick, 4)}
}

func (s *recordingSink) OnNextValidID(id int) {
	s.events <- EventNextValidID
}

func (s *recordingSink) OnTickPrice(ev broker.Tick) {
	s.ticks <- ev
	s.events <- EventTickPrice
}

func (s *recordingSink) OnPositionEnd() {
	s.events <- EventPositionEnd
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("Expected event %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s", want)
	}
}

func TestCommandsAndEvents(t *testing.T) {
	commands := make(chan command, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			t.Errorf("read command: %v", err)
			return
		}
		commands <- cmd

		frames := []string{
			`{"type":"next_valid_id","data":{"order_id":7}}`,
			`{"type":"bogus","data":{}}`,
			`{"type":"tick_price","data":{"req_id":3,"field":1,"value":"99.5"}}`,
			`{"type":"position_end"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
		// hold the connection open until the client closes it
		conn.ReadMessage()
	}))
	defer server.Close()

	sink := newRecordingSink()
	c := NewClient(wsURL(server), 0, zap.NewNop())
	c.SetSink(sink)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	defer c.Close()

	if !c.IsConnected() {
		t.Error("Expected client to be connected")
	}

	order, _ := models.NewMarketOrder(models.Sell, decimal.NewFromInt(12), "DU123")
	if err := c.PlaceOrder(5, models.NewBond("91282CKA8"), order); err != nil {
		t.Fatalf("PlaceOrder() failed: %v", err)
	}

	select {
	case cmd := <-commands:
		if cmd.Op != broker.OpPlaceOrder || cmd.ID != 5 {
			t.Errorf("Expected place_order 5, got %s %d", cmd.Op, cmd.ID)
		}
		if cmd.Order == nil || cmd.Order.Action != models.Sell || !cmd.Order.Quantity.Equal(decimal.NewFromInt(12)) {
			t.Errorf("Expected SELL 12, got %+v", cmd.Order)
		}
		if cmd.Instrument == nil || cmd.Instrument.Symbol != "91282CKA8" {
			t.Errorf("Expected instrument 91282CKA8, got %+v", cmd.Instrument)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the command")
	}

	waitFor(t, sink.events, EventNextValidID)
	waitFor(t, sink.events, EventTickPrice)
	waitFor(t, sink.events, EventPositionEnd)

	tick := <-sink.ticks
	if tick.ReqID != 3 || tick.Field != models.BidPrice || !tick.Value.Equal(decimal.NewFromFloat(99.5)) {
		t.Errorf("Expected bid 99.5 for request 3, got %+v", tick)
	}
}

func TestReconnect(t *testing.T) {
	var connections int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if atomic.AddInt32(&connections, 1) == 1 {
			conn.Close()
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	reconnected := make(chan struct{}, 1)
	c := NewClient(wsURL(server), 10*time.Millisecond, zap.NewNop())
	c.SetReconnectHandler(func() { reconnected <- struct{}{} })
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	defer c.Close()

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("Expected the client to reconnect")
	}
	if n := atomic.LoadInt32(&connections); n != 2 {
		t.Errorf("Expected 2 connections, got %d", n)
	}
	if !c.IsConnected() {
		t.Error("Expected client to be connected after reconnect")
	}
}

func TestNotConnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/v1/bridge", 0, zap.NewNop())
	if err := c.RequestPositions(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Expected dial to fail")
	}
}

func TestDispatchRejectsMissingData(t *testing.T) {
	err := dispatch(broker.NopSink{}, envelope{Type: EventOrderStatus})
	if err == nil {
		t.Error("Expected error for an order status without data")
	}
	if err := dispatch(broker.NopSink{}, envelope{Type: EventOpenOrderEnd}); err != nil {
		t.Errorf("Expected open_order_end without data to pass, got %v", err)
	}
}
