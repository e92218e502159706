package main

import (
	"context"

	"github.com/spf13/cobra"
)

var timelineCmd = &cobra.Command{
	Use:     "timeline <project-id>",
	Short:   "Show a project's audit timeline, newest first",
	GroupID: "projects",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := gwClient.Timeline(context.Background(), args[0], limit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(events)
		}
		printTimelineTable(events)
		return nil
	},
}

func init() {
	timelineCmd.Flags().Int("limit", 50, "maximum events to return")
}
