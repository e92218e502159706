package main

import (
	"context"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var packetsCmd = &cobra.Command{
	Use:     "packets",
	Short:   "List agent task packets",
	GroupID: "remediation",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		ruleID, _ := cmd.Flags().GetString("rule")
		status, _ := cmd.Flags().GetStringSlice("status")
		agentID, _ := cmd.Flags().GetString("agent")
		limit, _ := cmd.Flags().GetInt("limit")

		packets, err := gwClient.ListTaskPackets(context.Background(), &client.ListTaskPacketsRequest{
			ProjectID: projectID,
			RuleID:    ruleID,
			Status:    status,
			AgentID:   agentID,
			Limit:     limit,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(packets)
		}
		printPacketListTable(packets)
		return nil
	},
}

var packetShowCmd = &cobra.Command{
	Use:     "packet <task-packet-id>",
	Short:   "Show a task packet",
	GroupID: "remediation",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		packet, err := gwClient.GetTaskPacket(context.Background(), args[0])
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
	packetsCmd.Flags().StringP("project", "p", "", "filter by project ID")
	packetsCmd.Flags().String("rule", "", "filter by rule ID")
	packetsCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable)")
	packetsCmd.Flags().String("agent", "", "filter by claiming agent")
	packetsCmd.Flags().Int("limit", 50, "maximum packets to return")

	rootCmd.AddCommand(packetShowCmd)
}
