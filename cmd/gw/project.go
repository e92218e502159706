package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Short:   "Manage projects under staged promotion",
	GroupID: "projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a project at the sandbox stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		env, _ := cmd.Flags().GetString("env")
		aiEnabled, _ := cmd.Flags().GetBool("ai")

		project, err := gwClient.CreateProject(context.Background(), &client.CreateProjectRequest{
			ID:                 id,
			Name:               args[0],
			CurrentEnvironment: env,
			AIEnabled:          aiEnabled,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(project)
		}
		printProjectTable(project)
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := gwClient.GetProject(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(project)
		}
		printProjectTable(project)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := gwClient.ListProjects(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(projects)
		}
		printProjectListTable(projects)
		return nil
	},
}

var projectStateCmd = &cobra.Command{
	Use:   "state <project-id>",
	Short: "Patch a project's attestations and scan scores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		attests, _ := cmd.Flags().GetStringSlice("attest")
		scores, _ := cmd.Flags().GetStringSlice("score")

		req := &client.UpdateStateRequest{}
		if len(attests) > 0 {
			req.Attestations = make(map[string]*bool, len(attests))
			for _, a := range attests {
				key, value, err := parseKeyBool(a)
				if err != nil {
					return err
				}
				req.Attestations[key] = value
			}
		}
		if len(scores) > 0 {
			req.ScanScores = make(map[string]float64, len(scores))
			for _, s := range scores {
				key, raw, ok := strings.Cut(s, "=")
				if !ok {
					return fmt.Errorf("invalid score %q, want key=number", s)
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("invalid score %q: %w", s, err)
				}
				req.ScanScores[key] = v
			}
		}

		project, err := gwClient.UpdateProjectState(context.Background(), args[0], req)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(project)
		}
		printProjectTable(project)
		return nil
	},
}

// parseKeyBool parses "key=true", "key=false", or "key" (meaning true).
func parseKeyBool(s string) (string, *bool, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		v := true
		return key, &v, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return "", nil, fmt.Errorf("invalid attestation %q: %w", s, err)
	}
	return key, &v, nil
}

var elevateCmd = &cobra.Command{
	Use:     "elevate <project-id>",
	Short:   "Promote a project to the next stage after a passing evaluation",
	GroupID: "projects",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		approvedBy, _ := cmd.Flags().GetString("approved-by")

		project, err := gwClient.Elevate(context.Background(), args[0], actor, approvedBy)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(project)
		}
		fmt.Printf("project %s elevated to %s\n", project.ID, project.CurrentEnvironment)
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().String("id", "", "explicit project ID (generated when empty)")
	projectCreateCmd.Flags().String("env", "", "starting environment (default sandbox)")
	projectCreateCmd.Flags().Bool("ai", false, "mark the project as AI-enabled")

	projectStateCmd.Flags().StringSlice("attest", nil, "attestation as key=true|false (repeatable)")
	projectStateCmd.Flags().StringSlice("score", nil, "scan score as key=number (repeatable)")

	elevateCmd.Flags().String("approved-by", "", "approver identity for manual-mode gates")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectStateCmd)
}
