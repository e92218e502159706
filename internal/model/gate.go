package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ApprovalMode controls whether a passing gate elevates automatically or
// waits for a human sign-off.
type ApprovalMode string

const (
	ApprovalModeAuto   ApprovalMode = "auto"
	ApprovalModeManual ApprovalMode = "manual"
)

// IsValid checks whether the approval mode is a known value.
func (m ApprovalMode) IsValid() bool {
	return m == ApprovalModeAuto || m == ApprovalModeManual
}

// GateRule is one checkable condition within a promotion gate.
// Parameters are a rule-type-specific tagged payload, validated when the
// gate is defined, not at evaluation time.
type GateRule struct {
	RuleID     string          `json:"rule_id"`
	RuleType   string          `json:"rule_type"`
	Required   bool            `json:"required"`
	AIOnly     bool            `json:"ai_only"`
	Threshold  *float64        `json:"threshold,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// PromotionGate is the ordered rule set guarding one source->target
// promotion. At most one gate exists per (source, target) pair.
type PromotionGate struct {
	GateID            string       `json:"gate_id"`
	SourceEnvironment Environment  `json:"source_environment"`
	TargetEnvironment Environment  `json:"target_environment"`
	ApprovalMode      ApprovalMode `json:"approval_mode"`
	Rules             []GateRule   `json:"rules"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// ValidateGate checks the structural invariants of a gate definition:
// known environments, a valid approval mode, and rule IDs unique within
// the gate. Rule-type and parameter validation happens against the rule
// catalog at definition time, outside this package.
func ValidateGate(g *PromotionGate) error {
	if !g.SourceEnvironment.IsValid() {
		return fmt.Errorf("unknown source environment %q", g.SourceEnvironment)
	}
	if !g.TargetEnvironment.IsValid() {
		return fmt.Errorf("unknown target environment %q", g.TargetEnvironment)
	}
	if g.SourceEnvironment == g.TargetEnvironment {
		return fmt.Errorf("source and target environment are both %q", g.SourceEnvironment)
	}
	if !g.ApprovalMode.IsValid() {
		return fmt.Errorf("unknown approval mode %q", g.ApprovalMode)
	}
	if len(g.Rules) == 0 {
		return fmt.Errorf("gate has no rules")
	}
	seen := make(map[string]struct{}, len(g.Rules))
	for _, r := range g.Rules {
		if r.RuleID == "" {
			return fmt.Errorf("rule with empty rule_id")
		}
		if r.RuleType == "" {
			return fmt.Errorf("rule %s has empty rule_type", r.RuleID)
		}
		if _, dup := seen[r.RuleID]; dup {
			return fmt.Errorf("duplicate rule_id %s", r.RuleID)
		}
		seen[r.RuleID] = struct{}{}
	}
	return nil
}
