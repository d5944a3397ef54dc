package sessionbridge

import (
	"fmt"
	"testing"
)

func TestBuildReportQueue(t *testing.T) {
	player, server := newPlayingFixture()
	module := newTestModule(t, player, server, Config{})

	report := module.buildReport()
	if report == nil {
		t.Fatalf("expected report")
	}
	if len(report.NowPlayingQueue) != 3 {
		t.Fatalf("expected 3 queue entries")
	}
	for i, item := range report.NowPlayingQueue {
		if item.ID != fmt.Sprintf("item-%d", i) {
			t.Fatalf("unexpected item id %q", item.ID)
		}
		if item.PlaylistItemID != fmt.Sprintf("playlistItem%d", i) {
			t.Fatalf("unexpected slot id %q", item.PlaylistItemID)
		}
	}
	if report.PlaylistItemID != "playlistItem1" {
		t.Fatalf("expected current slot playlistItem1, got %q", report.PlaylistItemID)
	}
}

func TestBuildReportTruncatesQueue(t *testing.T) {
	player, server := newPlayingFixture()
	player.tracklist = make([]string, 1000)
	for i := range player.tracklist {
		player.tracklist[i] = fmt.Sprintf("jellyfin:track:item-%d", i)
	}
	player.index = 980
	module := newTestModule(t, player, server, Config{})

	report := module.buildReport()
	if report == nil {
		t.Fatalf("expected report")
	}
	if len(report.NowPlayingQueue) != 950 {
		t.Fatalf("expected 950 queue entries, got %d", len(report.NowPlayingQueue))
	}
	if last := report.NowPlayingQueue[949]; last.PlaylistItemID != "playlistItem949" {
		t.Fatalf("unexpected last slot %q", last.PlaylistItemID)
	}
	// The current slot tracks the playback index even past the cap.
	if report.PlaylistItemID != "playlistItem980" {
		t.Fatalf("expected playlistItem980, got %q", report.PlaylistItemID)
	}
}

func TestBuildReportNoTrack(t *testing.T) {
	player, server := newPlayingFixture()
	player.trackURI = ""
	module := newTestModule(t, player, server, Config{})

	if module.buildReport() != nil {
		t.Fatalf("expected nil report without a track")
	}
}

func TestBuildReportNoSessionSkipsPlayerQueries(t *testing.T) {
	player, _ := newPlayingFixture()
	server := &fakeServer{}
	module := newTestModule(t, player, server, Config{})

	if module.buildReport() != nil {
		t.Fatalf("expected nil report without a session")
	}
	if len(player.calls) != 0 {
		t.Fatalf("expected no player queries, got %v", player.calls)
	}
}

func TestItemIDFromURI(t *testing.T) {
	if itemIDFromURI("jellyfin:track:abc123") != "abc123" {
		t.Fatalf("expected trailing segment")
	}
	if itemIDFromURI("local:track:foo.mp3") != "foo.mp3" {
		t.Fatalf("expected trailing segment")
	}
	if itemIDFromURI("plain") != "plain" {
		t.Fatalf("expected passthrough")
	}
}
