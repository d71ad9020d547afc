// Package uwsgate adapts the teacher's internal/uwsgate websocket
// client into a device.Client: the event-driven transport half of the
// engine's device layer. The reconnect-with-backoff loop, the ask:/
// del:/get: command protocol, and the Ping-message filtering are
// kept verbatim from the teacher; what changes is the public surface,
// generalized from a single fixed DataCallback to per-attribute
// device.EventCallback registration so the Engine's worker pool (not
// the websocket read goroutine) ends up running attribute decode.
package uwsgate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pv/attrengine/internal/attribute"
	"github.com/pv/attrengine/internal/attrval"
	"github.com/pv/attrengine/internal/device"
	"github.com/pv/attrengine/internal/errs"
)

// SensorData is one pushed reading, grounded on the teacher's
// internal/uwsgate.SensorData.
type SensorData struct {
	Type       string `json:"type"`
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Value      int64  `json:"value"`
	Error      any    `json:"error"`
	TVSec      int64  `json:"tv_sec"`
	TVNsec     int64  `json:"tv_nsec"`
	IOType     string `json:"iotype"`
	Node       int64  `json:"node"`
	SMTVSec    int64  `json:"sm_tv_sec"`
	SMTVNsec   int64  `json:"sm_tv_nsec"`
	SupplierID int64  `json:"supplier_id"`
	Supplier   string `json:"supplier"`
}

func (s SensorData) HasError() bool {
	switch v := s.Error.(type) {
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != "" && v != "0"
	default:
		return false
	}
}

type response struct {
	Data []SensorData `json:"data"`
}

// Client is a websocket event client for UWebSocketGate-style push
// feeds, implementing device.Client.
type Client struct {
	baseURL string
	wsURL   string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	kinds     map[string]attribute.Kind
	callbacks map[string]device.EventCallback

	reconnectInterval        time.Duration
	maxReconnectInterval     time.Duration
	currentReconnectInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subMu                sync.Mutex
	pendingSubscriptions []string

	logger *slog.Logger
}

var _ device.Client = (*Client)(nil)

// NewClient builds an event Client against baseURL (http(s)://host:port).
func NewClient(baseURL string, logger *slog.Logger) *Client {
	wsURL := strings.Replace(baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	if !strings.HasSuffix(wsURL, "/") {
		wsURL += "/"
	}
	wsURL += "wsgate/"

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:                  baseURL,
		wsURL:                    wsURL,
		kinds:                    make(map[string]attribute.Kind),
		callbacks:                make(map[string]device.EventCallback),
		reconnectInterval:        time.Second,
		maxReconnectInterval:     30 * time.Second,
		currentReconnectInterval: time.Second,
		pendingSubscriptions:     make([]string, 0),
		logger:                   logger.With("component", "uwsgate-client"),
	}
}

// RegisterKind records the decode kind for an attribute, mirroring
// sm.Client.RegisterKind.
func (c *Client) RegisterKind(attributeName string, kind attribute.Kind) {
	c.mu.Lock()
	c.kinds[attributeName] = kind
	c.mu.Unlock()
}

func (c *Client) AttributeClass(ctx context.Context, attributeName string) (attribute.Kind, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kind, ok := c.kinds[attributeName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrAttributeUnknown, attributeName)
	}
	return kind, nil
}

// Read sends a get: command but returns no reading: a synchronous read
// is not supported over this push transport, so Read always returns an
// ErrRead-wrapped error, and Subscribe keeps no cached value to fall
// back on. Matches the teacher's client, which only ever issues get:
// fire-and-forget and relies on the async response arriving through
// the same readLoop as subscriptions.
func (c *Client) Read(ctx context.Context, attributeName string) (device.Reading, error) {
	if err := c.sendCommand("get:" + attributeName); err != nil {
		return device.Reading{}, fmt.Errorf("%w: %v", errs.ErrRead, err)
	}
	return device.Reading{}, fmt.Errorf("%w: uwsgate read is asynchronous, subscribe instead", errs.ErrRead)
}

func (c *Client) Subscribe(ctx context.Context, attributeName, eventType string, cb device.EventCallback) (device.Subscription, error) {
	c.mu.Lock()
	c.callbacks[attributeName] = cb
	c.mu.Unlock()

	c.subMu.Lock()
	found := false
	for _, s := range c.pendingSubscriptions {
		if s == attributeName {
			found = true
			break
		}
	}
	if !found {
		c.pendingSubscriptions = append(c.pendingSubscriptions, attributeName)
	}
	c.subMu.Unlock()

	if err := c.sendCommand("ask:" + attributeName); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	c.logger.Debug("subscribed", "attribute", attributeName, "subscription_id", id)

	return &subscription{client: c, attributeName: attributeName, id: id}, nil
}

// subscription carries a generated id purely for log correlation across
// Subscribe/Unsubscribe pairs, since the wsgate protocol itself has no
// concept of a subscription handle.
type subscription struct {
	client        *Client
	attributeName string
	id            string
}

func (s *subscription) Unsubscribe() error {
	s.client.logger.Debug("unsubscribing", "attribute", s.attributeName, "subscription_id", s.id)

	s.client.mu.Lock()
	delete(s.client.callbacks, s.attributeName)
	s.client.mu.Unlock()

	s.client.subMu.Lock()
	subs := s.client.pendingSubscriptions[:0]
	for _, name := range s.client.pendingSubscriptions {
		if name != s.attributeName {
			subs = append(subs, name)
		}
	}
	s.client.pendingSubscriptions = subs
	s.client.subMu.Unlock()

	return s.client.sendCommand("del:" + s.attributeName)
}

// Connect dials the websocket gate and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	return c.connect()
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	u, err := url.Parse(c.wsURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}

	c.logger.Info("connecting", "url", c.wsURL)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(c.ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.currentReconnectInterval = c.reconnectInterval

	c.logger.Info("connected")

	c.wg.Add(1)
	go c.readLoop()

	c.resubscribeLocked()

	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.connected = false
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Client) sendCommand(cmd string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("uwsgate: not connected")
	}

	c.logger.Debug("sending command", "cmd", cmd)
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		return fmt.Errorf("write message failed: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var resp response
	if err := json.Unmarshal(message, &resp); err != nil {
		c.logger.Warn("failed to parse message", "error", err)
		return
	}

	for _, d := range resp.Data {
		if d.Type == "Ping" {
			continue
		}

		c.mu.RLock()
		cb, ok := c.callbacks[d.Name]
		c.mu.RUnlock()
		if !ok || cb == nil {
			continue
		}

		quality := attrval.Good
		if d.HasError() {
			quality = attrval.Bad
		}
		cb(d.Name, device.Reading{Raw: d.Value, Quality: quality, SourceID: d.Supplier})
	}
}

func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.logger.Warn("disconnected", "error", err)
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.currentReconnectInterval):
		}

		c.logger.Info("attempting to reconnect", "interval", c.currentReconnectInterval)
		if err := c.connect(); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			c.currentReconnectInterval *= 2
			if c.currentReconnectInterval > c.maxReconnectInterval {
				c.currentReconnectInterval = c.maxReconnectInterval
			}
			continue
		}
		return
	}
}

func (c *Client) resubscribeLocked() {
	c.subMu.Lock()
	sensors := make([]string, len(c.pendingSubscriptions))
	copy(sensors, c.pendingSubscriptions)
	c.subMu.Unlock()

	if len(sensors) == 0 {
		return
	}

	c.logger.Info("resubscribing", "count", len(sensors))
	cmd := "ask:" + strings.Join(sensors, ",")
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		c.logger.Warn("resubscribe failed", "error", err)
	}
}
