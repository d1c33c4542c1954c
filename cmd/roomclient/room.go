package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meandu-go/internal/history"
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Show a room and its message count",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		client := history.NewClientFromConfig(cfg.Client)

		room, err := client.FetchRoom(cmd.Context(), flagRoom)
		if err != nil {
			return fmt.Errorf("fetch room: %w", err)
		}
		msgs, err := client.FetchMessages(cmd.Context(), flagRoom)
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", room.Name, room.ID)
		if room.Description != "" {
			fmt.Fprintln(out, room.Description)
		}
		fmt.Fprintf(out, "owner: %s, messages: %d\n", room.User, len(msgs))
		return nil
	},
}
