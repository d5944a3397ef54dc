package statusmqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
	sessionbridge "github.com/sgroen8/mopidy-jellyfin/internal/modules/session_bridge"
	"go.uber.org/zap"
)

type fakeMQTT struct {
	mu       sync.Mutex
	topics   []string
	retained []bool
	payloads [][]byte
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.retained = append(f.retained, retained)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeMQTT) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestNewModuleDefaults(t *testing.T) {
	updates := make(chan sessionbridge.StatusUpdate)
	module, err := NewModule(zap.NewNop(), updates, Config{Embedded: true, AllowAnonymous: true})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	if module.config.Topic != "jellybridge/now_playing" {
		t.Fatalf("expected default topic")
	}
	if module.config.Listen != "127.0.0.1:1883" {
		t.Fatalf("expected default listen")
	}
	if module.config.Broker != "mqtt://127.0.0.1:1883" {
		t.Fatalf("expected derived broker, got %q", module.config.Broker)
	}
}

func TestNewModuleValidation(t *testing.T) {
	if _, err := NewModule(zap.NewNop(), nil, Config{Broker: "mqtt://localhost"}); err == nil {
		t.Fatalf("expected error for nil updates")
	}
	updates := make(chan sessionbridge.StatusUpdate)
	if _, err := NewModule(zap.NewNop(), updates, Config{}); err == nil {
		t.Fatalf("expected error for missing broker")
	}
}

func TestPublishRetainsStatus(t *testing.T) {
	updates := make(chan sessionbridge.StatusUpdate)
	module, err := NewModule(zap.NewNop(), updates, Config{Broker: "mqtt://localhost"})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	client := &fakeMQTT{}
	module.client = client

	module.publish(sessionbridge.StatusUpdate{
		State:  "playing",
		Report: &jellyfin.PlaybackReport{ItemID: "item-1", PositionTicks: 100},
	})

	if len(client.payloads) != 1 {
		t.Fatalf("expected one publish")
	}
	if client.topics[0] != "jellybridge/now_playing" {
		t.Fatalf("unexpected topic %q", client.topics[0])
	}
	if !client.retained[0] {
		t.Fatalf("expected retained publish")
	}

	var message StatusMessage
	if err := json.Unmarshal(client.payloads[0], &message); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if message.State != "playing" {
		t.Fatalf("expected playing state")
	}
	if message.Report == nil || message.Report.ItemID != "item-1" {
		t.Fatalf("expected report in payload")
	}
	if message.ID == "" || message.TS == 0 {
		t.Fatalf("expected id and timestamp")
	}
}

func TestRunPublishesUpdates(t *testing.T) {
	updates := make(chan sessionbridge.StatusUpdate, 1)
	module, err := NewModule(zap.NewNop(), updates, Config{Broker: "mqtt://localhost"})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	client := &fakeMQTT{}
	module.client = client

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- module.Run(ctx) }()

	updates <- sessionbridge.StatusUpdate{State: "stopped"}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && client.count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if client.count() != 1 {
		t.Fatalf("expected one publish")
	}
}
