package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Socket maintains the persistent inbound command channel from the
// Jellyfin server. It owns dialing and reconnection; consumers read
// decoded frames from Messages. Delivery never blocks the read loop:
// frames are dropped with a warning when the consumer falls behind.
type Socket struct {
	log      *zap.Logger
	client   *Client
	messages chan InboundMessage

	mu       sync.Mutex
	writeMu  sync.Mutex
	kaCancel context.CancelFunc
}

// NewSocket creates a socket bound to an authenticated client.
func NewSocket(log *zap.Logger, client *Client) *Socket {
	return &Socket{
		log:      log,
		client:   client,
		messages: make(chan InboundMessage, 32),
	}
}

// Messages returns the inbound message channel.
func (s *Socket) Messages() <-chan InboundMessage {
	return s.messages
}

// Run connects to the server socket and keeps the connection alive
// until the context is cancelled, redialing after a short pause when
// the server drops us.
func (s *Socket) Run(ctx context.Context) error {
	for {
		if err := s.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("socket disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *Socket) connectAndRead(ctx context.Context) error {
	socketURL, err := s.socketURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return fmt.Errorf("socket dial: %w", err)
	}
	defer conn.Close()
	defer s.stopKeepAlive()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.log.Info("socket connected", zap.String("url", s.client.Hostname()))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("invalid socket frame", zap.Error(err))
			continue
		}

		switch msg.MessageType {
		case "ForceKeepAlive":
			var seconds int64
			_ = json.Unmarshal(msg.Data, &seconds)
			s.startKeepAlive(ctx, conn, seconds)
		case "KeepAlive":
		default:
			select {
			case s.messages <- msg:
			default:
				s.log.Warn("dropping inbound message", zap.String("type", msg.MessageType))
			}
		}
	}
}

// startKeepAlive answers the server's ForceKeepAlive demand by sending
// KeepAlive frames at half the advertised timeout.
func (s *Socket) startKeepAlive(ctx context.Context, conn *websocket.Conn, seconds int64) {
	if seconds <= 0 {
		seconds = 60
	}
	interval := time.Duration(seconds) * time.Second / 2

	s.mu.Lock()
	if s.kaCancel != nil {
		s.kaCancel()
	}
	kaCtx, cancel := context.WithCancel(ctx)
	s.kaCancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-kaCtx.Done():
				return
			case <-ticker.C:
				if err := s.writeKeepAlive(conn); err != nil {
					return
				}
			}
		}
	}()
}

func (s *Socket) stopKeepAlive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kaCancel != nil {
		s.kaCancel()
		s.kaCancel = nil
	}
}

func (s *Socket) writeKeepAlive(conn *websocket.Conn) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(map[string]string{"MessageType": "KeepAlive"})
}

func (s *Socket) socketURL() (string, error) {
	u, err := url.Parse(s.client.Hostname())
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path.Join(u.Path, "socket")
	q := u.Query()
	q.Set("api_key", s.client.token)
	q.Set("deviceId", s.client.deviceID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
