package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/alfredjeanlab/gatewarden/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	jsonOutput bool
	actor      string
	authToken  string

	gwClient client.GatewardenClient
)

func defaultActor() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultServer() string {
	if s := os.Getenv("GW_SERVER"); s != "" {
		return s
	}
	if s := activeRemoteURL(); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if t := os.Getenv("GW_TOKEN"); t != "" {
		return t
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "gw",
	Short: "CLI client for the gatewarden promotion gate service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		gwClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if gwClient != nil {
			gwClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "server base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name for audit fields")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for authenticated servers")

	rootCmd.AddGroup(
		&cobra.Group{ID: "projects", Title: "Projects:"},
		&cobra.Group{ID: "gates", Title: "Gates:"},
		&cobra.Group{ID: "workflow", Title: "Exception Workflow:"},
		&cobra.Group{ID: "remediation", Title: "Remediation:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(elevateCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(contestCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(approvalCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(packetsCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(gatesCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
