package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var contestCmd = &cobra.Command{
	Use:     "contest <project-id>",
	Short:   "Contest a failing rule result and open an approval request",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evaluationID, _ := cmd.Flags().GetString("evaluation")
		ruleType, _ := cmd.Flags().GetString("rule-type")
		contestType, _ := cmd.Flags().GetString("type")
		rationale, _ := cmd.Flags().GetString("rationale")
		findingIDs, _ := cmd.Flags().GetStringSlice("finding")
		controls, _ := cmd.Flags().GetStringSlice("control")
		expiresDays, _ := cmd.Flags().GetInt("expires-days")

		approval, err := gwClient.Contest(context.Background(), &client.ContestRequest{
			ProjectID:            args[0],
			EvaluationID:         evaluationID,
			RuleType:             ruleType,
			ContestType:          contestType,
			Rationale:            rationale,
			FindingIDs:           findingIDs,
			CompensatingControls: controls,
			ExpiresDays:          expiresDays,
			Actor:                actor,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(approval)
		}
		fmt.Printf("approval request %s opened (exception %s, status %s)\n",
			approval.ApprovalRequestID, approval.ExceptionID, approval.Status)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:     "revoke <exception-id>",
	Short:   "Revoke an active exception",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		exception, err := gwClient.RevokeException(context.Background(), args[0], actor, reason)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(exception)
		}
		printExceptionTable(exception)
		return nil
	},
}

func init() {
	contestCmd.Flags().String("evaluation", "", "evaluation ID containing the failing result")
	contestCmd.Flags().String("rule-type", "", "rule type being contested")
	contestCmd.Flags().String("type", "false_positive", "contest type (false_positive, risk_acceptance, needs_more_time)")
	contestCmd.Flags().String("rationale", "", "why the rule result should be waived")
	contestCmd.Flags().StringSlice("finding", nil, "finding ID covered by the contest (repeatable)")
	contestCmd.Flags().StringSlice("control", nil, "compensating control (repeatable)")
	contestCmd.Flags().Int("expires-days", 0, "waiver lifetime in days once approved (default server-side)")
	contestCmd.MarkFlagRequired("evaluation")
	contestCmd.MarkFlagRequired("rule-type")
	contestCmd.MarkFlagRequired("rationale")

	revokeCmd.Flags().String("reason", "", "why the exception is being revoked")
}
