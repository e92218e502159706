package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var approvalCmd = &cobra.Command{
	Use:     "approval <approval-request-id>",
	Short:   "Show an approval request with its comment thread",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := gwClient.GetApproval(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(view)
		}
		printApprovalTable(view)
		return nil
	},
}

var decideCmd = &cobra.Command{
	Use:     "decide <approval-request-id> <approve|reject>",
	Short:   "Approve or reject a pending approval request",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		approval, err := gwClient.Decide(context.Background(), args[0], &client.DecideRequest{
			Decision:  args[1],
			DecidedBy: actor,
			Reason:    reason,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(approval)
		}
		fmt.Printf("approval request %s is now %s\n", approval.ApprovalRequestID, approval.Status)
		return nil
	},
}

func init() {
	decideCmd.Flags().String("reason", "", "decision rationale")
}
