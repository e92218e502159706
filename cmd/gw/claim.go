package main

import (
	"context"

	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:     "claim <task-packet-id>",
	Short:   "Claim an open task packet as an agent",
	GroupID: "remediation",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, _ := cmd.Flags().GetString("agent")
		if agentID == "" {
			agentID = actor
		}

		packet, err := gwClient.Claim(context.Background(), args[0], agentID)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(packet)
		}
		printPacketTable(packet)
		return nil
	},
}

func init() {
	claimCmd.Flags().String("agent", "", "agent identity (default: --actor)")
}
