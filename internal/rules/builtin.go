package rules

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// secretsCategory is the finding category checked by no_hardcoded_secrets.
const secretsCategory = "hardcoded_secrets"

func registerBuiltins(r *Registry) {
	r.Register(TypeNoHardcodedSecrets, ProviderFunc(checkNoHardcodedSecrets))
	r.Register(TypeMaxCriticalFindings, severityCeiling(model.SeverityCritical))
	r.Register(TypeMaxHighFindings, severityCeiling(model.SeverityHigh))
	r.Register(TypeNoOpenCategory, ProviderFunc(checkNoOpenCategory))
	r.Register(TypeControlAttested, ProviderFunc(checkControlAttested))
	r.Register(TypeScanScoreMin, ProviderFunc(checkScanScoreMin))
	r.Register(TypeAIUsagePolicy, attestedControl("ai_usage_policy"))
	r.Register(TypeAIModelCard, attestedControl("ai_model_card"))
}

func findingIDs(findings []model.Finding) []string {
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.FindingID)
	}
	return ids
}

func checkNoHardcodedSecrets(_ context.Context, _ model.GateRule, state ProjectState) (Outcome, error) {
	open := state.OpenFindings("", secretsCategory)
	if len(open) == 0 {
		return Outcome{OK: true, Message: "no open hardcoded-secret findings"}, nil
	}
	return Outcome{
		Message:    fmt.Sprintf("%d open hardcoded-secret finding(s)", len(open)),
		Details:    map[string]any{"open_count": len(open)},
		FindingIDs: findingIDs(open),
	}, nil
}

// severityCeiling builds a provider that fails when open findings at the
// given severity exceed the rule's threshold.
func severityCeiling(sev model.Severity) ProviderFunc {
	return func(_ context.Context, rule model.GateRule, state ProjectState) (Outcome, error) {
		var max float64
		if rule.Threshold != nil {
			max = *rule.Threshold
		}
		open := state.OpenFindings(sev, "")
		if float64(len(open)) <= max {
			return Outcome{
				OK:      true,
				Message: fmt.Sprintf("%d open %s finding(s), threshold %g", len(open), sev, max),
			}, nil
		}
		return Outcome{
			Message:    fmt.Sprintf("%d open %s finding(s) exceed threshold %g", len(open), sev, max),
			Details:    map[string]any{"open_count": len(open), "threshold": max},
			FindingIDs: findingIDs(open),
		}, nil
	}
}

func checkNoOpenCategory(_ context.Context, rule model.GateRule, state ProjectState) (Outcome, error) {
	p, err := DecodeParams(rule.RuleType, rule.Parameters)
	if err != nil {
		return Outcome{}, err
	}
	category := p.(CategoryParams).Category
	open := state.OpenFindings("", category)
	if len(open) == 0 {
		return Outcome{OK: true, Message: fmt.Sprintf("no open findings in category %s", category)}, nil
	}
	return Outcome{
		Message:    fmt.Sprintf("%d open finding(s) in category %s", len(open), category),
		Details:    map[string]any{"category": category, "open_count": len(open)},
		FindingIDs: findingIDs(open),
	}, nil
}

func checkControlAttested(_ context.Context, rule model.GateRule, state ProjectState) (Outcome, error) {
	p, err := DecodeParams(rule.RuleType, rule.Parameters)
	if err != nil {
		return Outcome{}, err
	}
	return checkAttestation(p.(ControlParams).Control, state), nil
}

// attestedControl builds a provider bound to a fixed control ID, used by the
// AI-only rule types whose control is part of the rule contract.
func attestedControl(control string) ProviderFunc {
	return func(_ context.Context, _ model.GateRule, state ProjectState) (Outcome, error) {
		return checkAttestation(control, state), nil
	}
}

func checkAttestation(control string, state ProjectState) Outcome {
	v, present := state.Attestations[control]
	switch {
	case !present || v == nil:
		return Outcome{
			Message: fmt.Sprintf("control %s has not been attested", control),
			Details: map[string]any{"control": control},
		}
	case !*v:
		return Outcome{
			Message: fmt.Sprintf("control %s attested false", control),
			Details: map[string]any{"control": control},
		}
	default:
		return Outcome{OK: true, Message: fmt.Sprintf("control %s attested", control)}
	}
}

func checkScanScoreMin(_ context.Context, rule model.GateRule, state ProjectState) (Outcome, error) {
	p, err := DecodeParams(rule.RuleType, rule.Parameters)
	if err != nil {
		return Outcome{}, err
	}
	integration := p.(ScanParams).Integration
	var min float64
	if rule.Threshold != nil {
		min = *rule.Threshold
	}
	score, ok := state.ScanScores[integration]
	if !ok {
		return Outcome{
			Message: fmt.Sprintf("no scan result recorded for %s", integration),
			Details: map[string]any{"integration": integration},
		}, nil
	}
	if score >= min {
		return Outcome{
			OK:      true,
			Message: fmt.Sprintf("%s score %g meets threshold %g", integration, score, min),
		}, nil
	}
	return Outcome{
		Message: fmt.Sprintf("%s score %g below threshold %g", integration, score, min),
		Details: map[string]any{"integration": integration, "score": score, "threshold": min},
	}, nil
}
