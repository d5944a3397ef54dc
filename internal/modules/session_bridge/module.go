package sessionbridge

import (
	"context"
	"errors"
	"time"

	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
	"github.com/sgroen8/mopidy-jellyfin/internal/mopidy"
	"go.uber.org/zap"
)

const (
	statePlaying = "playing"
	statePaused  = "paused"
	stateStopped = "stopped"
)

// Player is the local playback engine boundary. All accessors are
// synchronous; the Mopidy client satisfies this.
type Player interface {
	State() (string, error)
	CurrentTrackURI() (string, error)
	TimePosition() (int64, error)
	Volume() (int, error)
	Mute() (bool, error)
	TracklistIndex() (int, bool, error)
	TracklistURIs() ([]string, error)
	Next() error
	Previous() error
	Pause() error
	Resume() error
	Stop() error
	Play(tlid int) error
	Seek(positionMS int64) error
	SetVolume(level int) error
	SetMute(mute bool) error
	ClearTracklist() error
	AddTracks(uris []string, atPosition *int) ([]mopidy.TLTrack, error)
}

// Server is the remote session-control boundary, satisfied by the
// Jellyfin client.
type Server interface {
	Sessions() ([]jellyfin.Session, error)
	Users() ([]jellyfin.User, error)
	AddSessionUser(sessionID string, userID string) error
	ReportPlaybackStart(report jellyfin.PlaybackReport) error
	ReportPlaybackProgress(report jellyfin.PlaybackReport) error
	ReportPlaybackStopped() error
}

// StatusUpdate mirrors one outbound report for local observers.
type StatusUpdate struct {
	State  string
	Report *jellyfin.PlaybackReport
}

// Config configures the session bridge.
type Config struct {
	AdditionalUsers   string
	HeartbeatInterval time.Duration
	QueueSeekDelay    time.Duration
	Status            chan<- StatusUpdate
}

// Module translates local playback events into session reports and
// applies inbound server commands to the player. Both inputs are
// consumed by a single worker so they never interleave; the heartbeat
// runs on its own timer and only touches the player through the same
// synchronized accessors.
type Module struct {
	log          *zap.Logger
	player       Player
	server       Server
	playerEvents <-chan mopidy.Event
	remote       <-chan jellyfin.InboundMessage
	config       Config
}

// NewModule creates the session bridge module.
func NewModule(log *zap.Logger, player Player, server Server, playerEvents <-chan mopidy.Event, remote <-chan jellyfin.InboundMessage, cfg Config) (*Module, error) {
	if player == nil {
		return nil, errors.New("player required")
	}
	if server == nil {
		return nil, errors.New("server required")
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 60 * time.Second
	}
	if cfg.QueueSeekDelay == 0 {
		cfg.QueueSeekDelay = 500 * time.Millisecond
	}
	return &Module{
		log:          log,
		player:       player,
		server:       server,
		playerEvents: playerEvents,
		remote:       remote,
		config:       cfg,
	}, nil
}

// Run attaches configured users, starts the heartbeat and consumes
// events until the context is cancelled. A single stop-report is
// issued synchronously on shutdown.
func (m *Module) Run(ctx context.Context) error {
	m.attachAdditionalUsers()

	go m.runHeartbeat(ctx)

	for {
		select {
		case <-ctx.Done():
			m.reportStopped()
			return nil
		case event := <-m.playerEvents:
			m.handlePlayerEvent(ctx, event)
		case msg := <-m.remote:
			m.handleInbound(ctx, msg)
		}
	}
}

func (m *Module) handlePlayerEvent(_ context.Context, event mopidy.Event) {
	switch event.Name {
	case "playback_state_changed":
		m.playbackStateChanged(event.OldState, event.NewState)
	case "seeked":
		m.seeked(event.TimePosition)
	case "volume_changed":
		m.volumeChanged(event.Volume)
	}
}

func (m *Module) playbackStateChanged(oldState string, newState string) {
	if oldState == statePlaying && newState == statePlaying {
		// Track boundary while continuously playing: report a discrete
		// stop first so server-side scrobbling counts two plays.
		m.reportStopped()
	}

	switch newState {
	case statePaused, statePlaying:
		report := m.buildReport()
		if report == nil {
			return
		}
		if err := m.server.ReportPlaybackStart(*report); err != nil {
			m.log.Warn("start report failed", zap.Error(err))
		}
		m.publishStatus(newState, report)
	case stateStopped:
		m.reportStopped()
		m.publishStatus(stateStopped, nil)
	}
}

func (m *Module) seeked(positionMS int64) {
	m.updatePlayback(func(report *jellyfin.PlaybackReport) {
		report.PositionTicks = positionMS * ticksPerMS
		report.EventName = "TimeUpdate"
	})
}

func (m *Module) volumeChanged(volume int) {
	m.updatePlayback(func(report *jellyfin.PlaybackReport) {
		report.Volume = &volume
		report.EventName = "VolumeChange"
	})
}

// updatePlayback sends a progress update built from a fresh snapshot,
// with optional override fields merged in. Dropped silently when
// nothing is playing.
func (m *Module) updatePlayback(override func(*jellyfin.PlaybackReport)) {
	report := m.buildReport()
	if report == nil {
		return
	}
	if override != nil {
		override(report)
	}
	if err := m.server.ReportPlaybackProgress(*report); err != nil {
		m.log.Warn("progress report failed", zap.Error(err))
	}
	state := statePlaying
	if report.IsPaused {
		state = statePaused
	}
	m.publishStatus(state, report)
}

func (m *Module) reportStopped() {
	if err := m.server.ReportPlaybackStopped(); err != nil {
		m.log.Warn("stop report failed", zap.Error(err))
	}
}

// runHeartbeat re-reports the current snapshot on a fixed interval
// while playback is active. The loop has no termination condition of
// its own; it is abandoned when the context ends.
func (m *Module) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := m.player.State()
			if err != nil {
				m.log.Debug("heartbeat state query failed", zap.Error(err))
				continue
			}
			if state == statePlaying || state == statePaused {
				m.updatePlayback(nil)
			}
		}
	}
}

func (m *Module) publishStatus(state string, report *jellyfin.PlaybackReport) {
	if m.config.Status == nil {
		return
	}
	select {
	case m.config.Status <- StatusUpdate{State: state, Report: report}:
	default:
	}
}
