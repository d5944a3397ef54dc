package statusmqtt

import (
	"context"
	"errors"
	"log/slog"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// broker is an embedded MQTT broker so status publishing works with no
// external broker configured.
type broker struct {
	server *mqtt.Server
	listen string
}

func newBroker(log *zap.Logger, cfg Config) (*broker, error) {
	options := &mqtt.Options{InlineClient: true, Logger: slog.New(&zapHandler{logger: log})}
	server := mqtt.New(options)

	if cfg.AllowAnonymous {
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	} else if cfg.Username != "" {
		ledger := &auth.Ledger{
			Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
			ACL:  auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{auth.RString("#"): auth.ReadWrite}}},
		}
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger}); err != nil {
			return nil, err
		}
	} else {
		return nil, errors.New("embedded broker requires allow_anonymous or username")
	}

	return &broker{server: server, listen: cfg.Listen}, nil
}

func (b *broker) run(ctx context.Context) error {
	listener := listeners.NewTCP(listeners.Config{ID: "tcp-embedded", Address: b.listen})
	if err := b.server.AddListener(listener); err != nil {
		return err
	}

	go func() {
		_ = b.server.Serve()
	}()

	<-ctx.Done()
	return b.server.Close()
}

// zapHandler adapts the broker's slog output onto the bridge logger.
type zapHandler struct {
	logger *zap.Logger
	attrs  []slog.Attr
}

func (h *zapHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *zapHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		fields = append(fields, zap.Any(attr.Key, attr.Value.Any()))
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, zap.Any(attr.Key, attr.Value.Any()))
		return true
	})
	switch {
	case record.Level >= slog.LevelError:
		h.logger.Error(record.Message, fields...)
	case record.Level >= slog.LevelWarn:
		h.logger.Warn(record.Message, fields...)
	case record.Level >= slog.LevelInfo:
		h.logger.Info(record.Message, fields...)
	default:
		h.logger.Debug(record.Message, fields...)
	}
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &zapHandler{logger: h.logger, attrs: next}
}

func (h *zapHandler) WithGroup(_ string) slog.Handler {
	return h
}
