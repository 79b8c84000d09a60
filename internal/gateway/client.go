// Package gateway talks to the brokerage through a websocket bridge. Commands
// go out as JSON frames and inbound frames are dispatched to a broker.EventSink.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/broker"
	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by commands issued while the bridge is down
var ErrNotConnected = errors.New("gateway not connected")

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 90 * time.Second
	maxBackoff       = 60 * time.Second
)

// Client is a broker.Commands implementation backed by a websocket bridge
type Client struct {
	url            string
	logger         *zap.Logger
	dialer         websocket.Dialer
	reconnectDelay time.Duration
	maxAttempts    int

	mu          sync.RWMutex
	conn        *websocket.Conn
	sink        broker.EventSink
	onReconnect func()
	isConnected bool
	attempts    int

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a client for the bridge at url. A non-positive
// reconnectDelay disables reconnecting.
func NewClient(url string, reconnectDelay time.Duration, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:            url,
		logger:         logger.With(zap.String("component", "gateway")),
		dialer:         websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		reconnectDelay: reconnectDelay,
		maxAttempts:    10,
		sink:           broker.NopSink{},
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SetSink routes inbound events to sink
func (c *Client) SetSink(sink broker.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// SetReconnectHandler registers fn to run after every successful reconnect
func (c *Client) SetReconnectHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = fn
}

// Connect dials the bridge and starts reading events
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.isConnected = false
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.attempts++
		return fmt.Errorf("dial gateway %s: %w", c.url, err)
	}
	c.conn = conn
	c.isConnected = true
	c.attempts = 0

	go c.readLoop(conn)

	c.logger.Info("gateway connected", zap.String("url", c.url))
	return nil
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// Close stops reconnecting and shuts the connection down
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("error sending close message", zap.Error(err))
	}

	closeErr := c.conn.Close()
	c.conn = nil
	c.isConnected = false
	return closeErr
}

// command is the outbound frame
type command struct {
	Op         string                 `json:"op"`
	ID         int                    `json:"id"`
	Instrument *models.Instrument     `json:"instrument,omitempty"`
	Order      *models.OrderRequest   `json:"order,omitempty"`
	History    *broker.HistoryOptions `json:"history,omitempty"`
	Tag        string                 `json:"tag,omitempty"`
	Rows       int                    `json:"rows,omitempty"`
}

func (c *Client) send(cmd command) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("%s: %w", cmd.Op, err)
	}
	return nil
}

func (c *Client) RequestContractDetails(id int, inst models.Instrument) error {
	return c.send(command{Op: broker.OpContractDetails, ID: id, Instrument: &inst})
}

func (c *Client) RequestMarketData(id int, inst models.Instrument) error {
	return c.send(command{Op: broker.OpMarketData, ID: id, Instrument: &inst})
}

func (c *Client) RequestMarketDepth(id int, inst models.Instrument, rows int) error {
	return c.send(command{Op: broker.OpMarketDepth, ID: id, Instrument: &inst, Rows: rows})
}

func (c *Client) RequestTickByTick(id int, inst models.Instrument) error {
	return c.send(command{Op: broker.OpTickByTick, ID: id, Instrument: &inst})
}

func (c *Client) RequestHistoricalData(id int, inst models.Instrument, opts broker.HistoryOptions) error {
	return c.send(command{Op: broker.OpHistoricalData, ID: id, Instrument: &inst, History: &opts})
}

func (c *Client) RequestPositions() error {
	return c.send(command{Op: broker.OpPositions})
}

func (c *Client) RequestOpenOrders() error {
	return c.send(command{Op: broker.OpOpenOrders})
}

func (c *Client) RequestAccountSummary(id int, tag string) error {
	return c.send(command{Op: broker.OpAccountSummary, ID: id, Tag: tag})
}

func (c *Client) RequestExecutions(id int) error {
	return c.send(command{Op: broker.OpExecutions, ID: id})
}

func (c *Client) PlaceOrder(id int, inst models.Instrument, order models.OrderRequest) error {
	return c.send(command{Op: broker.OpPlaceOrder, ID: id, Instrument: &inst, Order: &order})
}

func (c *Client) CancelOrder(id int) error {
	return c.send(command{Op: broker.OpCancelOrder, ID: id})
}

// readLoop processes inbound frames until the connection drops
func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		current := c.conn == conn
		if current {
			c.isConnected = false
		}
		c.mu.Unlock()

		if current && c.ctx.Err() == nil && c.reconnectDelay > 0 {
			c.reconnect()
		}
	}()

	for {
		var env envelope
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.ctx.Err() == nil {
				c.logger.Error("gateway read error", zap.Error(err))
			}
			return
		}

		c.mu.RLock()
		sink := c.sink
		c.mu.RUnlock()
		if err := dispatch(sink, env); err != nil {
			c.logger.Error("failed to handle gateway event",
				zap.String("type", env.Type),
				zap.Error(err))
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
func (c *Client) reconnect() {
	backoff := c.reconnectDelay

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
			c.mu.RLock()
			attempts := c.attempts
			c.mu.RUnlock()
			if attempts >= c.maxAttempts {
				c.logger.Error("max connection attempts reached, stopping reconnection",
					zap.Int("attempts", attempts))
				return
			}

			c.logger.Info("attempting to reconnect",
				zap.Duration("backoff", backoff),
				zap.Int("attempt", attempts+1))

			if err := c.Connect(c.ctx); err != nil {
				c.logger.Error("reconnect failed", zap.Error(err))
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}

			metrics.GatewayReconnects.Inc()
			c.logger.Info("reconnected successfully")
			c.mu.RLock()
			fn := c.onReconnect
			c.mu.RUnlock()
			if fn != nil {
				fn()
			}
			return
		}
	}
}
