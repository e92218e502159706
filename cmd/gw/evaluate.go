package main

import (
	"context"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:     "evaluate <project-id>",
	Short:   "Run the promotion gate for a project's current stage",
	GroupID: "gates",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		target, _ := cmd.Flags().GetString("target")
		history, _ := cmd.Flags().GetBool("history")
		limit, _ := cmd.Flags().GetInt("limit")

		if history {
			evals, err := gwClient.ListEvaluations(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(evals)
			}
			printEvaluationListTable(evals)
			return nil
		}

		evaluation, err := gwClient.Evaluate(context.Background(), args[0], &client.EvaluateRequest{
			Source: source,
			Target: target,
			Actor:  actor,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(evaluation)
		}
		printEvaluationTable(evaluation)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("source", "", "source environment (default: project's current stage)")
	evaluateCmd.Flags().String("target", "", "target environment (default: next stage)")
	evaluateCmd.Flags().Bool("history", false, "list past evaluations instead of running a new one")
	evaluateCmd.Flags().Int("limit", 20, "maximum evaluations to list with --history")
}
