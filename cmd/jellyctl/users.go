package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func usersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List server accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			users, err := app.client.Users()
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(users)
			}
			data := pterm.TableData{{"NAME", "USER_ID"}}
			for _, user := range users {
				data = append(data, []string{user.Name, user.ID})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}
