package main

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
)

func sessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List active sessions on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			sessions, err := app.client.ListSessions()
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(sessions)
			}
			return printSessionsTable(sessions)
		},
	}
}

func printSessionsTable(sessions []jellyfin.Session) error {
	data := pterm.TableData{{"SESSION", "CLIENT", "DEVICE", "USER", "NOW PLAYING"}}
	for _, session := range sessions {
		data = append(data, []string{
			session.ID,
			session.Client,
			session.DeviceName,
			sessionUsers(session),
			nowPlaying(session),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func sessionUsers(session jellyfin.Session) string {
	names := []string{}
	if session.UserName != "" {
		names = append(names, session.UserName)
	}
	for _, user := range session.AdditionalUsers {
		names = append(names, user.UserName)
	}
	return strings.Join(names, ", ")
}

func nowPlaying(session jellyfin.Session) string {
	item := session.NowPlayingItem
	if item == nil {
		return "-"
	}
	if len(item.Artists) > 0 {
		return strings.Join(item.Artists, ", ") + " - " + item.Name
	}
	return item.Name
}
