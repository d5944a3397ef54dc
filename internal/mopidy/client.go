package mopidy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is one playback notification from the Mopidy event stream.
// Fields are populated per event name; unused ones stay zero.
type Event struct {
	Name         string `json:"event"`
	OldState     string `json:"old_state"`
	NewState     string `json:"new_state"`
	TimePosition int64  `json:"time_position"`
	Volume       int    `json:"volume"`
}

// Client speaks JSON-RPC 2.0 over Mopidy's websocket. One connection
// carries both request/response pairs and broadcast events.
type Client struct {
	log     *zap.Logger
	url     string
	timeout time.Duration

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn

	reqID     atomic.Uint64
	pendingMu sync.Mutex
	pending   map[uint64]chan rpcOutcome

	events chan Event
}

type rpcOutcome struct {
	result json.RawMessage
	err    error
}

// NewClient creates a Mopidy client for the given websocket URL
// (typically ws://host:6680/mopidy/ws).
func NewClient(log *zap.Logger, rawURL string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("url required")
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		log:     log,
		url:     rawURL,
		timeout: timeout,
		pending: make(map[uint64]chan rpcOutcome),
		events:  make(chan Event, 32),
	}, nil
}

// Events returns the playback notification channel.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run connects to Mopidy and keeps the connection alive until the
// context is cancelled, redialing after a short pause on loss.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("mopidy disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("mopidy dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		c.failPending(errors.New("connection lost"))
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.log.Info("mopidy connected", zap.String("url", c.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var frame struct {
		ID     *uint64         `json:"id,omitempty"`
		Event  string          `json:"event,omitempty"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	if frame.ID != nil {
		c.pendingMu.Lock()
		ch, ok := c.pending[*frame.ID]
		if ok {
			delete(c.pending, *frame.ID)
		}
		c.pendingMu.Unlock()
		if !ok {
			return
		}
		outcome := rpcOutcome{result: frame.Result}
		if frame.Error != nil {
			outcome.err = fmt.Errorf("mopidy error: %s", frame.Error.Message)
		}
		ch <- outcome
		return
	}

	if frame.Event == "" {
		return
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return
	}
	select {
	case c.events <- event:
	default:
		c.log.Warn("dropping mopidy event", zap.String("event", event.Name))
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- rpcOutcome{err: err}
	}
}

// call sends one JSON-RPC request and waits for its response.
func (c *Client) call(method string, params map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, errors.New("not connected")
	}

	id := c.reqID.Add(1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	respCh := make(chan rpcOutcome, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case outcome := <-respCh:
		return outcome.result, outcome.err
	case <-time.After(c.timeout):
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("timeout waiting for %s", method)
	}
}
