package rules

import (
	"encoding/json"
	"fmt"
)

// Params is the decoded, rule-type-specific parameter payload. Each family
// has its own struct; decoding and validation happen at gate-definition
// time, not during evaluation.
type Params interface {
	validate() error
}

// EmptyParams is the payload for rule types that take no parameters.
type EmptyParams struct{}

func (EmptyParams) validate() error { return nil }

// CategoryParams configures finding-category rules.
type CategoryParams struct {
	Category string `json:"category"`
}

func (p CategoryParams) validate() error {
	if p.Category == "" {
		return fmt.Errorf("category is required")
	}
	return nil
}

// ControlParams configures attested-control rules.
type ControlParams struct {
	Control string `json:"control"`
}

func (p ControlParams) validate() error {
	if p.Control == "" {
		return fmt.Errorf("control is required")
	}
	return nil
}

// ScanParams configures integration scan score rules.
type ScanParams struct {
	Integration string `json:"integration"`
}

func (p ScanParams) validate() error {
	if p.Integration == "" {
		return fmt.Errorf("integration is required")
	}
	return nil
}

// DecodeParams decodes raw gate-rule parameters into the typed payload for
// the rule-type family and validates it. Rule types that take no parameters
// tolerate an absent or empty payload only.
func DecodeParams(ruleType string, raw json.RawMessage) (Params, error) {
	switch ruleType {
	case TypeNoOpenCategory:
		return decodeInto[CategoryParams](ruleType, raw, true)
	case TypeControlAttested:
		return decodeInto[ControlParams](ruleType, raw, true)
	case TypeScanScoreMin:
		return decodeInto[ScanParams](ruleType, raw, true)
	default:
		if len(raw) > 0 && string(raw) != "{}" && string(raw) != "null" {
			return nil, fmt.Errorf("rule type %s takes no parameters", ruleType)
		}
		return EmptyParams{}, nil
	}
}

func decodeInto[T Params](ruleType string, raw json.RawMessage, required bool) (Params, error) {
	var p T
	if len(raw) == 0 {
		if required {
			return nil, fmt.Errorf("rule type %s requires parameters", ruleType)
		}
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding parameters for %s: %w", ruleType, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("parameters for %s: %w", ruleType, err)
	}
	return p, nil
}
