package bridged

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for jellybridged.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Jellyfin  JellyfinConfig  `toml:"jellyfin"`
	Mopidy    MopidyConfig    `toml:"mopidy"`
	Reporting ReportingConfig `toml:"reporting"`
	Modules   ModulesConfig   `toml:"modules"`
}

// ServerConfig defines shared daemon settings.
type ServerConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogOutput string `toml:"log_output"`
	LogUTC    bool   `toml:"log_utc"`
}

// JellyfinConfig points the bridge at a Jellyfin server.
type JellyfinConfig struct {
	Hostname        string `toml:"hostname"`
	Token           string `toml:"token"`
	TokenFile       string `toml:"token_file"`
	DeviceID        string `toml:"device_id"`
	AdditionalUsers string `toml:"additional_users"`
	TimeoutMS       int64  `toml:"timeout_ms"`
}

// MopidyConfig points the bridge at a Mopidy server.
type MopidyConfig struct {
	URL       string `toml:"url"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// ReportingConfig tunes playback reporting behaviour.
type ReportingConfig struct {
	HeartbeatSeconds int64 `toml:"heartbeat_seconds"`
	QueueSeekDelayMS int64 `toml:"queue_seek_delay_ms"`
}

// ModulesConfig holds optional module configurations.
type ModulesConfig struct {
	StatusMQTT StatusMQTTConfig `toml:"status_mqtt"`
}

// StatusMQTTConfig configures the MQTT now-playing publisher.
type StatusMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Broker         string `toml:"broker"`
	Topic          string `toml:"topic"`
	Embedded       bool   `toml:"embedded"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "jellybridge", "bridged.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "jellybridge", "bridged.toml"), nil
}

// ResolveToken returns the Jellyfin auth token from the config, falling
// back to the token artifact written by the credential helper. Absence
// of both is fatal at startup.
func ResolveToken(cfg JellyfinConfig) (string, error) {
	if strings.TrimSpace(cfg.Token) != "" {
		return strings.TrimSpace(cfg.Token), nil
	}
	if strings.TrimSpace(cfg.TokenFile) == "" {
		return "", errors.New("no jellyfin token configured (set token or token_file)")
	}
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.New("token file is empty")
	}
	return token, nil
}
