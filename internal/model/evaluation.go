package model

import (
	"encoding/json"
	"time"
)

// ResultCode is the outcome of a single rule evaluation.
type ResultCode string

const (
	ResultPass      ResultCode = "pass"
	ResultFail      ResultCode = "fail"
	ResultSkip      ResultCode = "skip"
	ResultWarn      ResultCode = "warn"
	ResultException ResultCode = "exception"
)

// String returns the string representation of the result code.
func (r ResultCode) String() string {
	return string(r)
}

// Satisfies reports whether the result counts toward a passing gate for a
// required rule: pass, exception, and skip all satisfy the requirement.
func (r ResultCode) Satisfies() bool {
	return r == ResultPass || r == ResultException || r == ResultSkip
}

// EvaluationStatus is the aggregate outcome of a gate evaluation.
type EvaluationStatus string

const (
	EvalPassed       EvaluationStatus = "passed"
	EvalFailed       EvaluationStatus = "failed"
	EvalPartial      EvaluationStatus = "partial"
	EvalNotEvaluated EvaluationStatus = "not_evaluated"
)

// RuleResult is one rule's outcome within a gate evaluation. Rule carries a
// snapshot of the rule as evaluated, so later gate edits do not rewrite
// history.
type RuleResult struct {
	RuleID      string          `json:"rule_id"`
	RuleType    string          `json:"rule_type"`
	Required    bool            `json:"required"`
	Result      ResultCode      `json:"result"`
	Message     string          `json:"message,omitempty"`
	Details     map[string]any  `json:"details,omitempty"`
	ExceptionID string          `json:"exception_id,omitempty"`
	Rule        json.RawMessage `json:"rule,omitempty"`
	FindingIDs  []string        `json:"finding_ids,omitempty"`
}

// GateEvaluation is one recorded run of a gate against a project.
type GateEvaluation struct {
	EvaluationID      string           `json:"evaluation_id"`
	ProjectID         string           `json:"project_id"`
	GateID            string           `json:"gate_id"`
	SourceEnvironment Environment      `json:"source_environment"`
	TargetEnvironment Environment      `json:"target_environment"`
	EvaluatedAt       time.Time        `json:"evaluated_at"`
	Results           []RuleResult     `json:"results"`
	Status            EvaluationStatus `json:"status"`
}

// AggregateStatus derives the evaluation status from individual results:
// failed when any required rule fails; passed when every required rule is
// satisfied and no optional rule fails; partial when required rules are all
// satisfied but some optional rule fails; not_evaluated when a required
// rule could not be determined (warn) without any required failure.
func AggregateStatus(results []RuleResult) EvaluationStatus {
	if len(results) == 0 {
		return EvalNotEvaluated
	}
	requiredSatisfied := true
	optionalFailed := false
	for _, r := range results {
		if r.Required {
			if r.Result == ResultFail {
				return EvalFailed
			}
			if !r.Result.Satisfies() {
				requiredSatisfied = false
			}
			continue
		}
		if r.Result == ResultFail || r.Result == ResultWarn {
			optionalFailed = true
		}
	}
	if !requiredSatisfied {
		return EvalNotEvaluated
	}
	if optionalFailed {
		return EvalPartial
	}
	return EvalPassed
}

// BlockersCount returns the number of required rules that currently fail.
func BlockersCount(results []RuleResult) int {
	n := 0
	for _, r := range results {
		if r.Required && r.Result == ResultFail {
			n++
		}
	}
	return n
}

// ResultFor returns the result for the given rule type, or nil when the
// evaluation has no rule of that type.
func (e *GateEvaluation) ResultFor(ruleType string) *RuleResult {
	for i := range e.Results {
		if e.Results[i].RuleType == ruleType {
			return &e.Results[i]
		}
	}
	return nil
}
