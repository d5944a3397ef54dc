package jellyfin

import (
	"encoding/json"
	"strconv"
)

// Session is the server's handle for one connected player instance.
// The bridge never creates sessions; it discovers them by device id.
type Session struct {
	ID              string          `json:"Id"`
	DeviceID        string          `json:"DeviceId"`
	DeviceName      string          `json:"DeviceName"`
	Client          string          `json:"Client"`
	UserName        string          `json:"UserName"`
	AdditionalUsers []SessionUser   `json:"AdditionalUsers"`
	NowPlayingItem  *NowPlayingItem `json:"NowPlayingItem,omitempty"`
}

// SessionUser is one extra account attached to a session.
type SessionUser struct {
	UserID   string `json:"UserId"`
	UserName string `json:"UserName"`
}

// NowPlayingItem describes the item a session reports as playing.
type NowPlayingItem struct {
	ID           string   `json:"Id"`
	Name         string   `json:"Name"`
	Album        string   `json:"Album"`
	Artists      []string `json:"Artists"`
	RunTimeTicks int64    `json:"RunTimeTicks"`
}

// User is a Jellyfin account.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// QueueItem tags one play-queue entry with its positional slot id.
// PlaylistItemID is the slot ("playlistItem{index}"), distinct from
// the item id itself.
type QueueItem struct {
	ID             string `json:"Id"`
	PlaylistItemID string `json:"PlaylistItemId"`
}

// PlaybackReport is the progress snapshot POSTed to the session
// reporting endpoints. Position fields are in 100ns ticks.
type PlaybackReport struct {
	VolumeLevel     int         `json:"VolumeLevel"`
	IsMuted         bool        `json:"IsMuted"`
	IsPaused        bool        `json:"IsPaused"`
	RepeatMode      string      `json:"RepeatMode"`
	PositionTicks   int64       `json:"PositionTicks"`
	PlayMethod      string      `json:"PlayMethod"`
	PlaySessionID   string      `json:"PlaySessionId"`
	MediaSourceID   string      `json:"MediaSourceId"`
	CanSeek         bool        `json:"CanSeek"`
	ItemID          string      `json:"ItemId"`
	NowPlayingQueue []QueueItem `json:"NowPlayingQueue"`
	PlaylistItemID  string      `json:"PlaylistItemId"`

	// Targeted-update overrides, absent on full reports.
	EventName string `json:"EventName,omitempty"`
	Volume    *int   `json:"Volume,omitempty"`
}

// InboundMessage is one frame from the server's /socket channel.
type InboundMessage struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data"`
}

// PlaystateCommand is a playback transport command.
type PlaystateCommand struct {
	Command           string `json:"Command"`
	SeekPositionTicks int64  `json:"SeekPositionTicks"`
}

// GeneralCommand is a named command with loosely typed arguments; the
// server sends argument values as either numbers or strings depending
// on version.
type GeneralCommand struct {
	Name      string                     `json:"Name"`
	Arguments map[string]json.RawMessage `json:"Arguments"`
}

// IntArg returns the named argument as an int when present.
func (c GeneralCommand) IntArg(name string) (int, bool) {
	raw, ok := c.Arguments[name]
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}

// PlayRequest carries the server's "play to" queue commands.
type PlayRequest struct {
	ItemIDs            []string `json:"ItemIds"`
	PlayCommand        string   `json:"PlayCommand"`
	StartIndex         *int     `json:"StartIndex"`
	StartPositionTicks int64    `json:"StartPositionTicks"`
}
