package jellyfin

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewClientValidation(t *testing.T) {
	cases := []Config{
		{},
		{Hostname: "http://jellyfin.test"},
		{Hostname: "http://jellyfin.test", Token: "key"},
	}
	for _, cfg := range cases {
		if _, err := NewClient(zap.NewNop(), cfg); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
}

func TestCheckRedirectFollows(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "http://jellyfin.test/jf", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	client := &Client{log: zap.NewNop(), http: newTestClient(handler)}
	resolved := client.checkRedirect("http://jellyfin.test")
	if resolved != "http://jellyfin.test/jf" {
		t.Fatalf("expected redirect target, got %q", resolved)
	}
}

func TestCheckRedirectKeepsConfiguredOnFailure(t *testing.T) {
	client := &Client{
		log:  zap.NewNop(),
		http: &http.Client{Transport: failingTripper{}},
	}
	resolved := client.checkRedirect("http://jellyfin.test")
	if resolved != "http://jellyfin.test" {
		t.Fatalf("expected configured hostname, got %q", resolved)
	}
}

func TestSessionsFiltersByDevice(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Sessions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Emby-Token") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "MediaBrowser ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("DeviceId") != "bridge-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(t, w, []Session{{ID: "session-1", DeviceID: "bridge-1"}})
	})

	client := newFixtureClient(handler)
	sessions, err := client.Sessions()
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "session-1" {
		t.Fatalf("expected session-1")
	}
}

func TestListSessionsUnfiltered(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("DeviceId") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(t, w, []Session{{ID: "a"}, {ID: "b"}})
	})

	client := newFixtureClient(handler)
	sessions, err := client.ListSessions()
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions")
	}
}

func TestAddSessionUser(t *testing.T) {
	var gotPath, gotMethod string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	client := newFixtureClient(handler)
	if err := client.AddSessionUser("session-1", "user-1"); err != nil {
		t.Fatalf("add session user: %v", err)
	}
	if gotMethod != "POST" {
		t.Fatalf("expected POST")
	}
	if gotPath != "/Sessions/session-1/User/user-1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestReportPlaybackProgress(t *testing.T) {
	var got PlaybackReport
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Sessions/Playing/Progress" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	client := newFixtureClient(handler)
	err := client.ReportPlaybackProgress(PlaybackReport{
		ItemID:        "item-1",
		PositionTicks: 300_000_000,
		EventName:     "TimeUpdate",
	})
	if err != nil {
		t.Fatalf("report progress: %v", err)
	}
	if got.ItemID != "item-1" || got.PositionTicks != 300_000_000 {
		t.Fatalf("unexpected report %+v", got)
	}
	if got.EventName != "TimeUpdate" {
		t.Fatalf("expected event name")
	}
}

func TestReportPlaybackStopped(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	client := newFixtureClient(handler)
	if err := client.ReportPlaybackStopped(); err != nil {
		t.Fatalf("report stopped: %v", err)
	}
	if gotPath != "/Sessions/Playing/Stopped" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestDoRejectsErrorStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := newFixtureClient(handler)
	if _, err := client.Users(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIntArg(t *testing.T) {
	cmd := GeneralCommand{
		Name: "SetVolume",
		Arguments: map[string]json.RawMessage{
			"Volume": json.RawMessage(`42`),
			"Other":  json.RawMessage(`"17"`),
			"Bad":    json.RawMessage(`"loud"`),
		},
	}
	if v, ok := cmd.IntArg("Volume"); !ok || v != 42 {
		t.Fatalf("expected 42")
	}
	if v, ok := cmd.IntArg("Other"); !ok || v != 17 {
		t.Fatalf("expected quoted 17")
	}
	if _, ok := cmd.IntArg("Bad"); ok {
		t.Fatalf("expected no value")
	}
	if _, ok := cmd.IntArg("Missing"); ok {
		t.Fatalf("expected no value")
	}
}

func TestSocketURL(t *testing.T) {
	client := &Client{hostname: "https://jellyfin.test/jf", token: "key", deviceID: "bridge-1"}
	socket := NewSocket(zap.NewNop(), client)

	raw, err := socket.socketURL()
	if err != nil {
		t.Fatalf("socket url: %v", err)
	}
	if !strings.HasPrefix(raw, "wss://jellyfin.test/jf/socket?") {
		t.Fatalf("unexpected url %q", raw)
	}
	if !strings.Contains(raw, "api_key=key") || !strings.Contains(raw, "deviceId=bridge-1") {
		t.Fatalf("expected auth query in %q", raw)
	}
}

func TestSocketURLRejectsScheme(t *testing.T) {
	client := &Client{hostname: "ftp://jellyfin.test"}
	socket := NewSocket(zap.NewNop(), client)
	if _, err := socket.socketURL(); err == nil {
		t.Fatalf("expected error")
	}
}

func newFixtureClient(handler http.Handler) *Client {
	return &Client{
		log:      zap.NewNop(),
		http:     newTestClient(handler),
		hostname: "http://jellyfin.test",
		token:    "key",
		deviceID: "bridge-1",
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode json: %v", err)
	}
}

func newTestClient(handler http.Handler) *http.Client {
	return &http.Client{Transport: roundTripper{handler: handler}}
}

type roundTripper struct {
	handler http.Handler
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	recorder := httptest.NewRecorder()
	if req.Body != nil {
		bodyBytes, _ := io.ReadAll(req.Body)
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}
	serveReq := req
	if req.URL.Path == "" {
		// A real transport sends "/" on the wire for an empty path.
		serveReq = req.Clone(req.Context())
		serveReq.URL.Path = "/"
	}
	rt.handler.ServeHTTP(recorder, serveReq)
	resp := recorder.Result()
	// The real transport records the request; redirect resolution
	// reads it back.
	resp.Request = req
	return resp, nil
}

type failingTripper struct{}

func (failingTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial refused")
}
