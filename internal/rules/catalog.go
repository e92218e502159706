// Package rules holds the rule catalog and the predicate providers the gate
// evaluator orchestrates. Providers are pure with respect to project state:
// given a rule and a state snapshot they return an outcome, never mutating
// anything.
package rules

import (
	"fmt"
	"sort"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// Built-in rule type identifiers.
const (
	TypeNoHardcodedSecrets  = "no_hardcoded_secrets"
	TypeMaxCriticalFindings = "max_critical_findings"
	TypeMaxHighFindings     = "max_high_findings"
	TypeNoOpenCategory      = "no_open_category"
	TypeControlAttested     = "control_attested"
	TypeScanScoreMin        = "scan_score_min"
	TypeAIUsagePolicy       = "ai_usage_policy_attested"
	TypeAIModelCard         = "ai_model_card_present"
)

// Info describes a rule type's evaluation contract.
type Info struct {
	Type           string `json:"type"`
	Description    string `json:"description"`
	NeedsThreshold bool   `json:"needs_threshold"`
	NeedsParams    bool   `json:"needs_params"`
	AIOnly         bool   `json:"ai_only"`
}

// catalog is the static registry of known rule types.
var catalog = map[string]Info{
	TypeNoHardcodedSecrets: {
		Type:        TypeNoHardcodedSecrets,
		Description: "no open findings in the hardcoded-secrets category",
	},
	TypeMaxCriticalFindings: {
		Type:           TypeMaxCriticalFindings,
		Description:    "open critical findings do not exceed the threshold",
		NeedsThreshold: true,
	},
	TypeMaxHighFindings: {
		Type:           TypeMaxHighFindings,
		Description:    "open high findings do not exceed the threshold",
		NeedsThreshold: true,
	},
	TypeNoOpenCategory: {
		Type:        TypeNoOpenCategory,
		Description: "no open findings in the configured category",
		NeedsParams: true,
	},
	TypeControlAttested: {
		Type:        TypeControlAttested,
		Description: "the configured control is attested true",
		NeedsParams: true,
	},
	TypeScanScoreMin: {
		Type:           TypeScanScoreMin,
		Description:    "the configured integration scan score meets the threshold",
		NeedsThreshold: true,
		NeedsParams:    true,
	},
	TypeAIUsagePolicy: {
		Type:        TypeAIUsagePolicy,
		Description: "the AI usage policy control is attested",
		AIOnly:      true,
	},
	TypeAIModelCard: {
		Type:        TypeAIModelCard,
		Description: "a model card attestation is present",
		AIOnly:      true,
	},
}

// Lookup returns the catalog entry for a rule type.
func Lookup(ruleType string) (Info, error) {
	info, ok := catalog[ruleType]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", model.ErrUnknownRuleType, ruleType)
	}
	return info, nil
}

// Known reports whether the rule type exists in the catalog.
func Known(ruleType string) bool {
	_, ok := catalog[ruleType]
	return ok
}

// List returns all catalog entries sorted by type.
func List() []Info {
	out := make([]Info, 0, len(catalog))
	for _, info := range catalog {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// ValidateRule checks a gate rule against its catalog entry: the type must
// exist, thresholds must be present where the contract needs them, and
// parameters must decode for the rule-type family. Called at gate-definition
// time so evaluation never sees malformed rules.
func ValidateRule(r model.GateRule) error {
	info, err := Lookup(r.RuleType)
	if err != nil {
		return err
	}
	if info.NeedsThreshold && r.Threshold == nil {
		return fmt.Errorf("rule %s (%s) requires a threshold", r.RuleID, r.RuleType)
	}
	if _, err := DecodeParams(r.RuleType, r.Parameters); err != nil {
		return fmt.Errorf("rule %s: %w", r.RuleID, err)
	}
	return nil
}
