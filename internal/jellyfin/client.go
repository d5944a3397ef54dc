package jellyfin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config configures the Jellyfin client.
type Config struct {
	Hostname string
	Token    string
	DeviceID string
	Timeout  time.Duration
}

// Client performs authenticated HTTP requests against a Jellyfin
// server. Hostname and token are fixed at construction.
type Client struct {
	log      *zap.Logger
	http     *http.Client
	hostname string
	token    string
	deviceID string
}

// NewClient creates a Jellyfin client. The configured hostname is
// normalized and replaced by the result of a one-time redirect check,
// so that reverse proxies rewriting scheme or path are honoured for
// the lifetime of the bridge.
func NewClient(log *zap.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Hostname) == "" {
		return nil, errors.New("hostname required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("token required")
	}
	if strings.TrimSpace(cfg.DeviceID) == "" {
		return nil, errors.New("device_id required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := &Client{
		log:      log,
		http:     &http.Client{Timeout: cfg.Timeout},
		hostname: strings.TrimRight(strings.TrimSpace(cfg.Hostname), "/"),
		token:    strings.TrimSpace(cfg.Token),
		deviceID: strings.TrimSpace(cfg.DeviceID),
	}
	client.hostname = client.checkRedirect(client.hostname)
	return client, nil
}

// Hostname returns the resolved server base URL.
func (c *Client) Hostname() string {
	return c.hostname
}

// DeviceID returns the device id this bridge reports as.
func (c *Client) DeviceID() string {
	return c.deviceID
}

func (c *Client) checkRedirect(hostname string) string {
	resp, err := c.http.Get(hostname)
	if err != nil {
		c.log.Debug("redirect check failed", zap.Error(err))
		return hostname
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	final := strings.TrimRight(resp.Request.URL.String(), "/")
	if final != hostname {
		c.log.Info("following server redirect",
			zap.String("configured", hostname),
			zap.String("resolved", final),
		)
	}
	return final
}

// Sessions returns the server's active sessions for this device id.
func (c *Client) Sessions() ([]Session, error) {
	params := url.Values{}
	params.Set("DeviceId", c.deviceID)

	var sessions []Session
	if err := c.do("GET", "/Sessions", params, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSessions returns all active sessions on the server.
func (c *Client) ListSessions() ([]Session, error) {
	var sessions []Session
	if err := c.do("GET", "/Sessions", nil, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Users returns the server's accounts.
func (c *Client) Users() ([]User, error) {
	var users []User
	if err := c.do("GET", "/Users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AddSessionUser attaches a user id to a session.
func (c *Client) AddSessionUser(sessionID string, userID string) error {
	endpoint := fmt.Sprintf("/Sessions/%s/User/%s", url.PathEscape(sessionID), url.PathEscape(userID))
	return c.do("POST", endpoint, nil, nil, nil)
}

// ReportPlaybackStart tells the server playback has started. Pause and
// resume also go through here; the protocol has no separate resume
// call, pause state rides in the report.
func (c *Client) ReportPlaybackStart(report PlaybackReport) error {
	return c.do("POST", "/Sessions/Playing", nil, report, nil)
}

// ReportPlaybackProgress sends a progress update for the session.
func (c *Client) ReportPlaybackProgress(report PlaybackReport) error {
	return c.do("POST", "/Sessions/Playing/Progress", nil, report, nil)
}

// ReportPlaybackStopped tells the server playback has stopped.
func (c *Client) ReportPlaybackStopped() error {
	return c.do("POST", "/Sessions/Playing/Stopped", nil, nil, nil)
}

func (c *Client) do(method string, endpoint string, params url.Values, body any, out any) error {
	endpointURL := c.hostname + endpoint
	if len(params) > 0 {
		endpointURL += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, endpointURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Emby-Token", c.token)
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("jellyfin error: %s", resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authHeader() string {
	return fmt.Sprintf(`MediaBrowser Client="jellybridged", Device="jellybridged", DeviceId=%q, Version="1.0"`, c.deviceID)
}
