package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sgroen8/mopidy-jellyfin/internal/bridged"
	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
	"github.com/sgroen8/mopidy-jellyfin/internal/mopidy"
	sessionbridge "github.com/sgroen8/mopidy-jellyfin/internal/modules/session_bridge"
	statusmqtt "github.com/sgroen8/mopidy-jellyfin/internal/modules/status_mqtt"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		hostname   string
		deviceID   string
		mopidyURL  string
		logLevel   string
		logFormat  string
		logOutput  string
		logUTC     bool
		dryRun     bool
	)

	defaultConfig, err := bridged.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&hostname, "hostname", "", "jellyfin hostname override")
	flag.StringVar(&deviceID, "device-id", "", "jellyfin device id override")
	flag.StringVar(&mopidyURL, "mopidy-url", "", "mopidy websocket URL override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := bridged.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, hostname, deviceID, mopidyURL, logLevel, logFormat, logOutput, logUTC)

	token, err := bridged.ResolveToken(cfg.Jellyfin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dryRun {
		return
	}

	logger := bridged.NewLogger(bridged.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
		UTC:    cfg.Server.LogUTC,
	})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("jellybridged starting",
		zap.String("hostname", cfg.Jellyfin.Hostname),
		zap.String("device_id", cfg.Jellyfin.DeviceID),
		zap.String("mopidy", cfg.Mopidy.URL),
		zap.Bool("status_mqtt", cfg.Modules.StatusMQTT.Enabled),
	)

	server, err := jellyfin.NewClient(logger.With(zap.String("module", "jellyfin")), jellyfin.Config{
		Hostname: cfg.Jellyfin.Hostname,
		Token:    token,
		DeviceID: cfg.Jellyfin.DeviceID,
		Timeout:  time.Duration(cfg.Jellyfin.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Error("jellyfin client failed", zap.Error(err))
		os.Exit(1)
	}
	socket := jellyfin.NewSocket(logger.With(zap.String("module", "jellyfin_socket")), server)

	player, err := mopidy.NewClient(
		logger.With(zap.String("module", "mopidy")),
		cfg.Mopidy.URL,
		time.Duration(cfg.Mopidy.TimeoutMS)*time.Millisecond,
	)
	if err != nil {
		logger.Error("mopidy client failed", zap.Error(err))
		os.Exit(1)
	}

	modules := []bridged.ModuleRunner{
		{Name: "mopidy", Run: player.Run},
		{Name: "jellyfin_socket", Run: socket.Run},
	}

	var status chan sessionbridge.StatusUpdate
	if cfg.Modules.StatusMQTT.Enabled {
		status = make(chan sessionbridge.StatusUpdate, 16)
		sm, err := statusmqtt.NewModule(logger.With(zap.String("module", "status_mqtt")), status, statusmqtt.Config{
			Broker:         cfg.Modules.StatusMQTT.Broker,
			Topic:          cfg.Modules.StatusMQTT.Topic,
			Username:       cfg.Modules.StatusMQTT.Username,
			Password:       cfg.Modules.StatusMQTT.Password,
			TLSCA:          cfg.Modules.StatusMQTT.TLSCA,
			TLSCert:        cfg.Modules.StatusMQTT.TLSCert,
			TLSKey:         cfg.Modules.StatusMQTT.TLSKey,
			Embedded:       cfg.Modules.StatusMQTT.Embedded,
			Listen:         cfg.Modules.StatusMQTT.Listen,
			AllowAnonymous: cfg.Modules.StatusMQTT.AllowAnonymous,
		})
		if err != nil {
			logger.Error("status_mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		modules = append(modules, bridged.ModuleRunner{Name: "status_mqtt", Run: sm.Run})
	}

	bridge, err := sessionbridge.NewModule(
		logger.With(zap.String("module", "session_bridge")),
		player,
		server,
		player.Events(),
		socket.Messages(),
		sessionbridge.Config{
			AdditionalUsers:   cfg.Jellyfin.AdditionalUsers,
			HeartbeatInterval: time.Duration(cfg.Reporting.HeartbeatSeconds) * time.Second,
			QueueSeekDelay:    time.Duration(cfg.Reporting.QueueSeekDelayMS) * time.Millisecond,
			Status:            status,
		},
	)
	if err != nil {
		logger.Error("session_bridge failed", zap.Error(err))
		os.Exit(1)
	}
	modules = append(modules, bridged.ModuleRunner{Name: "session_bridge", Run: bridge.Run})

	supervisor := bridged.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *bridged.Config, hostname string, deviceID string, mopidyURL string, logLevel string, logFormat string, logOutput string, logUTC bool) {
	if hostname != "" {
		cfg.Jellyfin.Hostname = hostname
	}
	if deviceID != "" {
		cfg.Jellyfin.DeviceID = deviceID
	}
	if mopidyURL != "" {
		cfg.Mopidy.URL = mopidyURL
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if logUTC {
		cfg.Server.LogUTC = true
	}
	if cfg.Mopidy.URL == "" {
		cfg.Mopidy.URL = "ws://127.0.0.1:6680/mopidy/ws"
	}
}
