package sessionbridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
	"go.uber.org/zap"
)

const trackURIPrefix = "jellyfin:track:"

func (m *Module) handleInbound(ctx context.Context, msg jellyfin.InboundMessage) {
	switch msg.MessageType {
	case "Playstate":
		var cmd jellyfin.PlaystateCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			m.log.Warn("invalid playstate command", zap.Error(err))
			return
		}
		m.handlePlaystate(cmd)
	case "GeneralCommand":
		var cmd jellyfin.GeneralCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			m.log.Warn("invalid general command", zap.Error(err))
			return
		}
		m.handleGeneralCommand(cmd)
	case "Play":
		var req jellyfin.PlayRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			m.log.Warn("invalid play request", zap.Error(err))
			return
		}
		m.handlePlayRequest(ctx, req)
	default:
		m.log.Debug("ignoring inbound message", zap.String("type", msg.MessageType))
	}
}

func (m *Module) handlePlaystate(cmd jellyfin.PlaystateCommand) {
	var err error
	switch cmd.Command {
	case "NextTrack":
		err = m.player.Next()
	case "PreviousTrack":
		err = m.player.Previous()
	case "PlayPause":
		state, stateErr := m.player.State()
		if stateErr != nil {
			err = stateErr
			break
		}
		if state == statePlaying {
			err = m.player.Pause()
		} else {
			err = m.player.Resume()
		}
	case "Stop":
		err = m.player.Stop()
	case "Seek":
		err = m.player.Seek(cmd.SeekPositionTicks / ticksPerMS)
	default:
		return
	}
	if err != nil {
		m.log.Warn("playstate command failed", zap.String("command", cmd.Command), zap.Error(err))
	}
}

func (m *Module) handleGeneralCommand(cmd jellyfin.GeneralCommand) {
	var err error
	switch cmd.Name {
	case "SetVolume":
		volume, ok := cmd.IntArg("Volume")
		if !ok {
			return
		}
		err = m.player.SetVolume(volume)
	case "VolumeUp", "VolumeDown":
		// Relative to the live mixer level, not a remembered value.
		volume, volErr := m.player.Volume()
		if volErr != nil {
			err = volErr
			break
		}
		step := 5
		if cmd.Name == "VolumeDown" {
			step = -5
		}
		err = m.player.SetVolume(volume + step)
	case "ToggleMute":
		mute, muteErr := m.player.Mute()
		if muteErr != nil {
			err = muteErr
			break
		}
		err = m.player.SetMute(!mute)
	default:
		return
	}
	if err != nil {
		m.log.Warn("general command failed", zap.String("command", cmd.Name), zap.Error(err))
	}
}

func (m *Module) handlePlayRequest(ctx context.Context, req jellyfin.PlayRequest) {
	uris := make([]string, 0, len(req.ItemIDs))
	for _, itemID := range req.ItemIDs {
		uris = append(uris, trackURIPrefix+itemID)
	}

	switch req.PlayCommand {
	case "PlayNow":
		if err := m.player.ClearTracklist(); err != nil {
			m.log.Warn("clear tracklist failed", zap.Error(err))
			return
		}
		tracks, err := m.player.AddTracks(uris, nil)
		if err != nil {
			m.log.Warn("add tracks failed", zap.Error(err))
			return
		}
		if len(tracks) == 0 {
			return
		}
		start := 0
		if req.StartIndex != nil {
			start = *req.StartIndex
		}
		if start < 0 || start >= len(tracks) {
			start = 0
		}
		if err := m.player.Play(tracks[start].TLID); err != nil {
			m.log.Warn("play failed", zap.Error(err))
			return
		}
	case "PlayLast":
		// Maps to the web UI's "Play Next": insert right after the
		// current position, or at the front of an idle tracklist.
		position := 0
		index, ok, err := m.player.TracklistIndex()
		if err != nil {
			m.log.Warn("tracklist index query failed", zap.Error(err))
			return
		}
		if ok {
			position = index + 1
		}
		if _, err := m.player.AddTracks(uris, &position); err != nil {
			m.log.Warn("add tracks failed", zap.Error(err))
			return
		}
	case "PlayNext":
		// Maps to the web UI's "Add to play queue": append at the end.
		if _, err := m.player.AddTracks(uris, nil); err != nil {
			m.log.Warn("add tracks failed", zap.Error(err))
			return
		}
	default:
		return
	}

	if req.StartPositionTicks > 0 {
		// The engine drops seeks issued while it is still settling
		// after a queue change; wait before seeking. Only this
		// command's handling blocks.
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.QueueSeekDelay):
		}
		if err := m.player.Seek(req.StartPositionTicks / ticksPerMS); err != nil {
			m.log.Warn("resume seek failed", zap.Error(err))
		}
	}
}
