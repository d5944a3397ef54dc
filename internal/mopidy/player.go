package mopidy

import "encoding/json"

// Track is a Mopidy track reference.
type Track struct {
	URI    string `json:"uri"`
	Name   string `json:"name"`
	Length int64  `json:"length"`
}

// TLTrack is a tracklist entry with its tracklist id.
type TLTrack struct {
	TLID  int   `json:"tlid"`
	Track Track `json:"track"`
}

// State returns the playback state: "playing", "paused" or "stopped".
func (c *Client) State() (string, error) {
	raw, err := c.call("core.playback.get_state", nil)
	if err != nil {
		return "", err
	}
	var state string
	if err := json.Unmarshal(raw, &state); err != nil {
		return "", err
	}
	return state, nil
}

// CurrentTrackURI returns the playing track's URI, or "" when idle.
func (c *Client) CurrentTrackURI() (string, error) {
	raw, err := c.call("core.playback.get_current_track", nil)
	if err != nil {
		return "", err
	}
	var track *Track
	if err := json.Unmarshal(raw, &track); err != nil {
		return "", err
	}
	if track == nil {
		return "", nil
	}
	return track.URI, nil
}

// TimePosition returns the playback position in milliseconds.
func (c *Client) TimePosition() (int64, error) {
	raw, err := c.call("core.playback.get_time_position", nil)
	if err != nil {
		return 0, err
	}
	var position *int64
	if err := json.Unmarshal(raw, &position); err != nil {
		return 0, err
	}
	if position == nil {
		return 0, nil
	}
	return *position, nil
}

// Volume returns the mixer volume (0-100).
func (c *Client) Volume() (int, error) {
	raw, err := c.call("core.mixer.get_volume", nil)
	if err != nil {
		return 0, err
	}
	var volume *int
	if err := json.Unmarshal(raw, &volume); err != nil {
		return 0, err
	}
	if volume == nil {
		return 0, nil
	}
	return *volume, nil
}

// Mute returns the mixer mute flag.
func (c *Client) Mute() (bool, error) {
	raw, err := c.call("core.mixer.get_mute", nil)
	if err != nil {
		return false, err
	}
	var mute *bool
	if err := json.Unmarshal(raw, &mute); err != nil {
		return false, err
	}
	if mute == nil {
		return false, nil
	}
	return *mute, nil
}

// TracklistIndex returns the current tracklist index; ok is false when
// nothing is current.
func (c *Client) TracklistIndex() (int, bool, error) {
	raw, err := c.call("core.tracklist.index", nil)
	if err != nil {
		return 0, false, err
	}
	var index *int
	if err := json.Unmarshal(raw, &index); err != nil {
		return 0, false, err
	}
	if index == nil {
		return 0, false, nil
	}
	return *index, true, nil
}

// TracklistURIs returns the tracklist's track URIs in order.
func (c *Client) TracklistURIs() ([]string, error) {
	raw, err := c.call("core.tracklist.get_tracks", nil)
	if err != nil {
		return nil, err
	}
	var tracks []Track
	if err := json.Unmarshal(raw, &tracks); err != nil {
		return nil, err
	}
	uris := make([]string, 0, len(tracks))
	for _, track := range tracks {
		uris = append(uris, track.URI)
	}
	return uris, nil
}

// Next skips to the next track.
func (c *Client) Next() error {
	_, err := c.call("core.playback.next", nil)
	return err
}

// Previous skips to the previous track.
func (c *Client) Previous() error {
	_, err := c.call("core.playback.previous", nil)
	return err
}

// Pause pauses playback.
func (c *Client) Pause() error {
	_, err := c.call("core.playback.pause", nil)
	return err
}

// Resume resumes paused playback.
func (c *Client) Resume() error {
	_, err := c.call("core.playback.resume", nil)
	return err
}

// Stop stops playback.
func (c *Client) Stop() error {
	_, err := c.call("core.playback.stop", nil)
	return err
}

// Play starts playback of the given tracklist entry.
func (c *Client) Play(tlid int) error {
	_, err := c.call("core.playback.play", map[string]any{"tlid": tlid})
	return err
}

// Seek moves playback to the given position in milliseconds.
func (c *Client) Seek(positionMS int64) error {
	_, err := c.call("core.playback.seek", map[string]any{"time_position": positionMS})
	return err
}

// SetVolume sets the mixer volume (0-100).
func (c *Client) SetVolume(level int) error {
	_, err := c.call("core.mixer.set_volume", map[string]any{"volume": level})
	return err
}

// SetMute sets the mixer mute flag.
func (c *Client) SetMute(mute bool) error {
	_, err := c.call("core.mixer.set_mute", map[string]any{"mute": mute})
	return err
}

// ClearTracklist empties the tracklist.
func (c *Client) ClearTracklist() error {
	_, err := c.call("core.tracklist.clear", nil)
	return err
}

// AddTracks appends URIs to the tracklist, optionally at a position,
// and returns the created entries.
func (c *Client) AddTracks(uris []string, atPosition *int) ([]TLTrack, error) {
	params := map[string]any{"uris": uris}
	if atPosition != nil {
		params["at_position"] = *atPosition
	}
	raw, err := c.call("core.tracklist.add", params)
	if err != nil {
		return nil, err
	}
	var tracks []TLTrack
	if err := json.Unmarshal(raw, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}
