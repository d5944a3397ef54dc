package sessionbridge

import (
	"fmt"
	"strings"

	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
	"go.uber.org/zap"
)

const (
	// One millisecond is 10,000 ticks of 100ns.
	ticksPerMS = 10_000

	// The server rejects play queues past ~1000 entries; stay under
	// with some margin.
	maxQueueEntries = 950

	repeatModeNone   = "RepeatNone"
	playMethodDirect = "DirectPlay"
)

// sessionID resolves the server session attached to this device, or
// "" when none exists. An idle player having no session is a normal,
// frequent condition, so this is never an error. The id is re-resolved
// on every report because the server may rotate it.
func (m *Module) sessionID() string {
	sessions, err := m.server.Sessions()
	if err != nil {
		m.log.Debug("session lookup failed", zap.Error(err))
		return ""
	}
	if len(sessions) == 0 {
		m.log.Debug("no playback session on server")
		return ""
	}
	return sessions[0].ID
}

// buildReport assembles a fresh progress snapshot from current player
// state, or nil when there is no session or no current track.
func (m *Module) buildReport() *jellyfin.PlaybackReport {
	sessionID := m.sessionID()
	if sessionID == "" {
		return nil
	}

	trackURI, err := m.player.CurrentTrackURI()
	if err != nil {
		m.log.Debug("current track query failed", zap.Error(err))
		return nil
	}
	if trackURI == "" {
		return nil
	}

	mute, err := m.player.Mute()
	if err != nil {
		m.log.Debug("mute query failed", zap.Error(err))
		return nil
	}
	volume, err := m.player.Volume()
	if err != nil {
		m.log.Debug("volume query failed", zap.Error(err))
		return nil
	}
	positionMS, err := m.player.TimePosition()
	if err != nil {
		m.log.Debug("position query failed", zap.Error(err))
		return nil
	}
	state, err := m.player.State()
	if err != nil {
		m.log.Debug("state query failed", zap.Error(err))
		return nil
	}
	index, _, err := m.player.TracklistIndex()
	if err != nil {
		m.log.Debug("tracklist index query failed", zap.Error(err))
		return nil
	}
	uris, err := m.player.TracklistURIs()
	if err != nil {
		m.log.Debug("tracklist query failed", zap.Error(err))
		return nil
	}

	queue := make([]jellyfin.QueueItem, 0, min(len(uris), maxQueueEntries))
	for i, uri := range uris {
		if i >= maxQueueEntries {
			break
		}
		queue = append(queue, jellyfin.QueueItem{
			ID:             itemIDFromURI(uri),
			PlaylistItemID: fmt.Sprintf("playlistItem%d", i),
		})
	}

	itemID := itemIDFromURI(trackURI)
	return &jellyfin.PlaybackReport{
		VolumeLevel:     volume,
		IsMuted:         mute,
		IsPaused:        state == statePaused,
		RepeatMode:      repeatModeNone,
		PositionTicks:   positionMS * ticksPerMS,
		PlayMethod:      playMethodDirect,
		PlaySessionID:   sessionID,
		MediaSourceID:   itemID,
		CanSeek:         true,
		ItemID:          itemID,
		NowPlayingQueue: queue,
		// Slot id follows the tracklist's current index, not the
		// number of queue entries emitted.
		PlaylistItemID: fmt.Sprintf("playlistItem%d", index),
	}
}

// itemIDFromURI takes the trailing segment of scheme:type:id URIs.
func itemIDFromURI(uri string) string {
	idx := strings.LastIndex(uri, ":")
	if idx == -1 {
		return uri
	}
	return uri[idx+1:]
}
