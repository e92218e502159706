package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/spf13/cobra"
)

var gatesCmd = &cobra.Command{
	Use:     "gates",
	Short:   "Manage promotion gate definitions",
	GroupID: "gates",
}

// gateFile is the on-disk TOML shape of a gate definition.
type gateFile struct {
	GateID            string         `toml:"gate_id"`
	SourceEnvironment string         `toml:"source_environment"`
	TargetEnvironment string         `toml:"target_environment"`
	ApprovalMode      string         `toml:"approval_mode"`
	Rules             []gateFileRule `toml:"rules"`
}

type gateFileRule struct {
	RuleID     string         `toml:"rule_id"`
	RuleType   string         `toml:"rule_type"`
	Required   bool           `toml:"required"`
	AIOnly     bool           `toml:"ai_only"`
	Threshold  *float64       `toml:"threshold"`
	Parameters map[string]any `toml:"parameters"`
}

var gatesApplyCmd = &cobra.Command{
	Use:   "apply <file.toml>",
	Short: "Create or replace a gate from a TOML definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var gf gateFile
		if _, err := toml.DecodeFile(args[0], &gf); err != nil {
			return fmt.Errorf("reading gate file: %w", err)
		}
		if gf.GateID == "" {
			return fmt.Errorf("gate file %s has no gate_id", args[0])
		}

		req := &client.UpsertGateRequest{
			SourceEnvironment: gf.SourceEnvironment,
			TargetEnvironment: gf.TargetEnvironment,
			ApprovalMode:      gf.ApprovalMode,
			Rules:             make([]model.GateRule, 0, len(gf.Rules)),
			Actor:             actor,
		}
		for _, r := range gf.Rules {
			rule := model.GateRule{
				RuleID:    r.RuleID,
				RuleType:  r.RuleType,
				Required:  r.Required,
				AIOnly:    r.AIOnly,
				Threshold: r.Threshold,
			}
			if len(r.Parameters) > 0 {
				params, err := json.Marshal(r.Parameters)
				if err != nil {
					return fmt.Errorf("encoding parameters for rule %s: %w", r.RuleID, err)
				}
				rule.Parameters = params
			}
			req.Rules = append(req.Rules, rule)
		}

		gate, err := gwClient.UpsertGate(context.Background(), gf.GateID, req)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(gate)
		}
		printGateTable(gate)
		return nil
	},
}

var gatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured gates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gates, err := gwClient.ListGates(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(gates)
		}
		printGateListTable(gates)
		return nil
	},
}

var rulesCmd = &cobra.Command{
	Use:     "rules",
	Short:   "List the rule type catalog",
	GroupID: "gates",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := gwClient.ListRules(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(infos)
		}
		printRulesTable(infos)
		return nil
	},
}

func init() {
	gatesCmd.AddCommand(gatesApplyCmd)
	gatesCmd.AddCommand(gatesListCmd)
}
