package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sgroen8/mopidy-jellyfin/internal/bridged"
	"github.com/sgroen8/mopidy-jellyfin/internal/jellyfin"
	"go.uber.org/zap"
)

type app struct {
	client *jellyfin.Client
	json   bool
}

type ctxKey struct{}

func main() {
	root := &cobra.Command{
		Use:   "jellyctl",
		Short: "Inspect the Jellyfin side of the session bridge",
	}

	var (
		server    string
		token     string
		tokenFile string
		deviceID  string
		timeout   time.Duration
		jsonOut   bool
	)

	root.PersistentFlags().StringVarP(&server, "server", "s", "", "Jellyfin server URL")
	root.PersistentFlags().StringVar(&token, "token", "", "Jellyfin API token")
	root.PersistentFlags().StringVar(&tokenFile, "token-file", "", "path to a token artifact")
	root.PersistentFlags().StringVarP(&deviceID, "device-id", "d", "", "bridge device id")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if server == "" {
			return fmt.Errorf("server is required (set --server)")
		}
		resolved, err := bridged.ResolveToken(bridged.JellyfinConfig{Token: token, TokenFile: tokenFile})
		if err != nil {
			return err
		}
		if deviceID == "" {
			deviceID = "jellyctl"
		}

		client, err := jellyfin.NewClient(zap.NewNop(), jellyfin.Config{
			Hostname: server,
			Token:    resolved,
			DeviceID: deviceID,
			Timeout:  timeout,
		})
		if err != nil {
			return err
		}

		cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, &app{client: client, json: jsonOut}))
		return nil
	}

	root.AddCommand(sessionsCommand())
	root.AddCommand(usersCommand())
	root.AddCommand(nowCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fromContext(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(ctxKey{}).(*app)
	return a
}
