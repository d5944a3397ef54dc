package statusmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sgroen8/mopidy-jellyfin/internal/adapters/idgen"
	"github.com/sgroen8/mopidy-jellyfin/internal/adapters/mqttserver"
	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
	sessionbridge "github.com/sgroen8/mopidy-jellyfin/internal/modules/session_bridge"
	"go.uber.org/zap"
)

// Config configures the MQTT now-playing publisher.
type Config struct {
	Broker         string
	Topic          string
	Username       string
	Password       string
	TLSCA          string
	TLSCert        string
	TLSKey         string
	Embedded       bool
	Listen         string
	AllowAnonymous bool
}

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Module mirrors every outbound session report to a retained MQTT
// topic so home-automation consumers can follow playback without
// talking to the media server.
type Module struct {
	log     *zap.Logger
	config  Config
	updates <-chan sessionbridge.StatusUpdate
	client  mqttClient
	idgen   idgen.Generator
}

// StatusMessage is the retained now-playing document.
type StatusMessage struct {
	ID     string                   `json:"id"`
	State  string                   `json:"state"`
	Report *jellyfin.PlaybackReport `json:"report,omitempty"`
	TS     int64                    `json:"ts"`
}

// NewModule creates the status publisher.
func NewModule(log *zap.Logger, updates <-chan sessionbridge.StatusUpdate, cfg Config) (*Module, error) {
	if updates == nil {
		return nil, errors.New("updates channel required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = "jellybridge/now_playing"
	}
	if cfg.Embedded && strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:1883"
	}
	if cfg.Embedded && strings.TrimSpace(cfg.Broker) == "" {
		cfg.Broker = "mqtt://" + cfg.Listen
	}
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("broker required")
	}
	return &Module{log: log, config: cfg, updates: updates}, nil
}

// Run connects to the broker (starting the embedded one first when
// configured) and publishes status updates until cancelled.
func (m *Module) Run(ctx context.Context) error {
	if m.config.Embedded {
		broker, err := newBroker(m.log, m.config)
		if err != nil {
			return err
		}
		go func() {
			if err := broker.run(ctx); err != nil && ctx.Err() == nil {
				m.log.Error("embedded broker exited", zap.Error(err))
			}
		}()
		if err := waitForListen(m.config.Listen, 3*time.Second); err != nil {
			return err
		}
	}

	if m.client == nil {
		client, err := mqttserver.NewClient(mqttserver.Options{
			BrokerURL: m.config.Broker,
			ClientID:  fmt.Sprintf("jellybridge-%s", m.idgen.NewID()),
			Username:  m.config.Username,
			Password:  m.config.Password,
			TLSCA:     m.config.TLSCA,
			TLSCert:   m.config.TLSCert,
			TLSKey:    m.config.TLSKey,
			Logger:    m.log,
		})
		if err != nil {
			return err
		}
		m.client = client
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-m.updates:
			m.publish(update)
		}
	}
}

func (m *Module) publish(update sessionbridge.StatusUpdate) {
	message := StatusMessage{
		ID:     m.idgen.NewID(),
		State:  update.State,
		Report: update.Report,
		TS:     time.Now().Unix(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		m.log.Error("marshal status", zap.Error(err))
		return
	}
	if err := m.client.Publish(m.config.Topic, 1, true, payload); err != nil {
		m.log.Warn("publish status failed", zap.Error(err))
	}
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded broker not ready at %s", addr)
}
