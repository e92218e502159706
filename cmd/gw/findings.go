package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var findingsCmd = &cobra.Command{
	Use:     "findings",
	Short:   "List and report scanner findings",
	GroupID: "projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetStringSlice("status")
		severity, _ := cmd.Flags().GetStringSlice("severity")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		findings, err := gwClient.ListFindings(context.Background(), &client.ListFindingsRequest{
			ProjectID: projectID,
			Status:    status,
			Severity:  severity,
			Category:  category,
			Limit:     limit,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(findings)
		}
		printFindingListTable(findings)
		return nil
	},
}

var findingsReportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Report a finding against a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		severity, _ := cmd.Flags().GetString("severity")
		category, _ := cmd.Flags().GetString("category")
		title, _ := cmd.Flags().GetString("title")

		finding, err := gwClient.IngestFinding(context.Background(), &client.FindingRequest{
			FindingID: id,
			ProjectID: args[0],
			Severity:  severity,
			Category:  category,
			Title:     title,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(finding)
		}
		fmt.Printf("finding %s recorded (%s %s)\n", finding.FindingID, finding.Severity, finding.Category)
		return nil
	},
}

func init() {
	findingsCmd.Flags().StringP("project", "p", "", "filter by project ID")
	findingsCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable)")
	findingsCmd.Flags().StringSlice("severity", nil, "filter by severity (repeatable)")
	findingsCmd.Flags().String("category", "", "filter by category")
	findingsCmd.Flags().Int("limit", 50, "maximum findings to return")

	findingsReportCmd.Flags().String("id", "", "explicit finding ID (generated when empty)")
	findingsReportCmd.Flags().String("severity", "", "severity (critical, high, medium, low)")
	findingsReportCmd.Flags().String("category", "", "finding category (e.g. hardcoded_secrets)")
	findingsReportCmd.Flags().String("title", "", "short human-readable title")
	findingsReportCmd.MarkFlagRequired("severity")
	findingsReportCmd.MarkFlagRequired("category")

	findingsCmd.AddCommand(findingsReportCmd)
}
