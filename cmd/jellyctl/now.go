package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func nowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Show what the bridge's session is playing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			sessions, err := app.client.Sessions()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				return fmt.Errorf("no session for device id %q", app.client.DeviceID())
			}
			session := sessions[0]
			if app.json {
				return printJSON(session)
			}

			item := session.NowPlayingItem
			if item == nil {
				pterm.Info.Println("nothing playing")
				return nil
			}
			data := pterm.TableData{
				{"Title", item.Name},
				{"Artists", strings.Join(item.Artists, ", ")},
				{"Album", item.Album},
				{"Duration", formatTicks(item.RunTimeTicks)},
				{"Session", session.ID},
			}
			return pterm.DefaultTable.WithData(data).Render()
		},
	}
}

func formatTicks(ticks int64) string {
	if ticks <= 0 {
		return "-"
	}
	d := time.Duration(ticks/10_000) * time.Millisecond
	return d.Truncate(time.Second).String()
}
