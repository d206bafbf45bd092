package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mailroom/internal/ipc"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Trigger an immediate mail poll",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Fetch()
				if err != nil {
					return err
				}
				if resp.Triggered {
					fmt.Fprintln(cmd.OutOrStdout(), "Mail poll triggered")
					return nil
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Mail poll not triggered")
				return nil
			})
		},
	}
}
