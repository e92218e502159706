package main

import (
	"context"

	"github.com/spf13/cobra"
)

var briefCmd = &cobra.Command{
	Use:     "brief <project-id>",
	Short:   "Show the agent-facing snapshot of a project's gate state",
	GroupID: "projects",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		brief, err := gwClient.Brief(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(brief)
		}
		printBriefTable(brief)
		return nil
	},
}
