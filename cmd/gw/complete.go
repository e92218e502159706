package main

import (
	"context"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:     "complete <task-packet-id>",
	Short:   "Submit a completion report for a claimed task packet",
	GroupID: "remediation",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, _ := cmd.Flags().GetString("agent")
		admin, _ := cmd.Flags().GetBool("admin")
		failed, _ := cmd.Flags().GetBool("failed")
		summary, _ := cmd.Flags().GetString("summary")
		commit, _ := cmd.Flags().GetString("commit")
		files, _ := cmd.Flags().GetStringSlice("file")
		resolved, _ := cmd.Flags().GetStringSlice("resolves")
		evidence, _ := cmd.Flags().GetString("evidence")

		if agentID == "" {
			agentID = actor
		}
		status := "completed"
		if failed {
			status = "failed"
		}

		packet, err := gwClient.Complete(context.Background(), args[0], &client.CompleteRequest{
			AgentID:            agentID,
			Admin:              admin,
			Status:             status,
			FixSummary:         summary,
			CommitRef:          commit,
			FilesChanged:       files,
			FindingIDsResolved: resolved,
			EvidenceNotes:      evidence,
		})
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
	completeCmd.Flags().String("agent", "", "agent identity (default: --actor)")
	completeCmd.Flags().Bool("admin", false, "override the claiming-agent check")
	completeCmd.Flags().Bool("failed", false, "report the packet as failed instead of completed")
	completeCmd.Flags().String("summary", "", "what was fixed")
	completeCmd.Flags().String("commit", "", "commit reference for the fix")
	completeCmd.Flags().StringSlice("file", nil, "changed file (repeatable)")
	completeCmd.Flags().StringSlice("resolves", nil, "finding ID resolved by the fix (repeatable)")
	completeCmd.Flags().String("evidence", "", "evidence notes")
	completeCmd.MarkFlagRequired("summary")
}
