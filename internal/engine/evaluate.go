package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/gatewarden/internal/events"
	"github.com/alfredjeanlab/gatewarden/internal/idgen"
	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/rules"
	"github.com/alfredjeanlab/gatewarden/internal/store"
)

// EvaluateInput names the gate to run. Source and Target default to the
// project's current environment and the next stage in the chain.
type EvaluateInput struct {
	Source model.Environment `json:"source_environment,omitempty"`
	Target model.Environment `json:"target_environment,omitempty"`
	Actor  string            `json:"actor,omitempty"`
}

// Evaluate runs the promotion gate for (source, target) against the
// project's current state and persists the result. For every required rule
// that fails, a task packet is opened unless a live one already exists; for
// every required rule that recovered since the prior evaluation, the stale
// packet is closed as superseded. One gate_evaluated timeline event is
// emitted per run, so re-evaluation with unchanged inputs adds no noise
// beyond that.
func (s *GateServer) Evaluate(ctx context.Context, projectID string, in EvaluateInput) (*model.GateEvaluation, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	source := in.Source
	if source == "" {
		source = project.CurrentEnvironment
	}
	target := in.Target
	if target == "" {
		target = model.NextEnvironment(source)
	}
	if !source.IsValid() || !target.IsValid() {
		return nil, inputError(fmt.Sprintf("invalid environment pair %q -> %q", source, target))
	}

	gate, err := s.store.GetGate(ctx, source, target)
	if err != nil {
		return nil, err
	}
	if gate == nil {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrGateNotConfigured, source, target)
	}

	findings, err := s.store.ListFindings(ctx, model.FindingFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("load findings: %w", err)
	}
	state := rules.ProjectState{
		ProjectID:    project.ID,
		AIEnabled:    project.AIEnabled,
		Findings:     derefFindings(findings),
		Attestations: project.Attestations,
		ScanScores:   project.ScanScores,
	}

	ts := now()
	results := make([]model.RuleResult, 0, len(gate.Rules))
	for _, rule := range gate.Rules {
		res, err := s.evaluateRule(ctx, rule, project, state)
		if err != nil {
			// Unknown rule types fail the whole gate as a configuration
			// error; everything else was already degraded to warn.
			return nil, err
		}
		results = append(results, res)
	}

	evalID, err := idgen.Generate(idgen.PrefixEvaluation)
	if err != nil {
		return nil, err
	}
	evaluation := &model.GateEvaluation{
		EvaluationID:      evalID,
		ProjectID:         project.ID,
		GateID:            gate.GateID,
		SourceEnvironment: source,
		TargetEnvironment: target,
		EvaluatedAt:       ts,
		Results:           results,
		Status:            model.AggregateStatus(results),
	}

	prior, err := s.store.LatestEvaluation(ctx, project.ID, source, target)
	if err != nil {
		return nil, fmt.Errorf("load prior evaluation: %w", err)
	}

	var opened, superseded []string
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEvaluation(ctx, evaluation); err != nil {
			return fmt.Errorf("persist evaluation: %w", err)
		}
		var txErr error
		opened, superseded, txErr = s.reconcileTaskPackets(ctx, tx, gate, evaluation, prior)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	passCount, failCount := 0, 0
	for _, r := range results {
		switch r.Result {
		case model.ResultFail:
			failCount++
		case model.ResultPass, model.ResultException, model.ResultSkip:
			passCount++
		}
	}
	s.recordAndPublish(ctx, events.TopicGateEvaluated, &model.TimelineEvent{
		ProjectID: project.ID,
		EventType: model.EventGateEvaluated,
		Timestamp: ts,
		Summary: fmt.Sprintf("gate %s->%s evaluated: %s (%d passing, %d failing)",
			source, target, evaluation.Status, passCount, failCount),
		Actor:        in.Actor,
		EvaluationID: evaluation.EvaluationID,
		Detail: detailJSON(map[string]any{
			"status":             evaluation.Status,
			"pass_count":         passCount,
			"fail_count":         failCount,
			"opened_packets":     opened,
			"superseded_packets": superseded,
		}),
	}, events.GateEvaluated{Evaluation: evaluation})

	return evaluation, nil
}

// evaluateRule computes one rule's result. A predicate that cannot be
// determined reports warn, never drops the rule.
func (s *GateServer) evaluateRule(ctx context.Context, rule model.GateRule, project *model.Project, state rules.ProjectState) (model.RuleResult, error) {
	res := model.RuleResult{
		RuleID:   rule.RuleID,
		RuleType: rule.RuleType,
		Required: rule.Required,
	}
	if snapshot, err := json.Marshal(rule); err == nil {
		res.Rule = snapshot
	}

	if !rules.Known(rule.RuleType) {
		return res, fmt.Errorf("%w: %s (rule %s)", model.ErrUnknownRuleType, rule.RuleType, rule.RuleID)
	}

	if rule.AIOnly && !project.AIEnabled {
		res.Result = model.ResultSkip
		res.Message = "rule applies only to AI-enabled projects"
		return res, nil
	}

	outcome, err := s.registry.Check(ctx, rule, state)
	switch {
	case errors.Is(err, model.ErrUnknownRuleType):
		return res, err
	case errors.Is(err, rules.ErrPredicateTimeout):
		res.Result = model.ResultWarn
		res.Message = fmt.Sprintf("rule %s predicate timed out", rule.RuleType)
		slog.Warn("rule predicate timed out", "project_id", project.ID, "rule_id", rule.RuleID, "rule_type", rule.RuleType)
		return res, nil
	case err != nil:
		res.Result = model.ResultWarn
		res.Message = fmt.Sprintf("rule %s could not be determined: %v", rule.RuleType, err)
		slog.Warn("rule predicate failed", "project_id", project.ID, "rule_id", rule.RuleID, "rule_type", rule.RuleType, "error", err)
		return res, nil
	}

	res.Message = outcome.Message
	res.Details = outcome.Details
	res.FindingIDs = outcome.FindingIDs

	if outcome.OK {
		res.Result = model.ResultPass
		return res, nil
	}

	exc, err := s.store.ActiveException(ctx, project.ID, rule.RuleType, now())
	if err != nil {
		return res, fmt.Errorf("look up exception for %s: %w", rule.RuleType, err)
	}
	if exc != nil && exc.Waives(rule.RuleType, now()) {
		res.Result = model.ResultException
		res.ExceptionID = exc.ExceptionID
		res.Message = fmt.Sprintf("waived by exception %s until %s", exc.ExceptionID, exc.ExpiresAt.Format("2006-01-02"))
		return res, nil
	}

	if rule.Required {
		res.Result = model.ResultFail
	} else {
		res.Result = model.ResultWarn
	}
	return res, nil
}

// reconcileTaskPackets opens packets for newly failing required rules and
// closes stale packets for rules that recovered since the prior evaluation.
// At most one live packet exists per (project_id, rule_id).
func (s *GateServer) reconcileTaskPackets(ctx context.Context, tx store.Store, gate *model.PromotionGate, evaluation *model.GateEvaluation, prior *model.GateEvaluation) (opened, superseded []string, err error) {
	ts := evaluation.EvaluatedAt
	for _, res := range evaluation.Results {
		if !res.Required {
			continue
		}
		switch res.Result {
		case model.ResultFail:
			live, err := tx.LiveTaskPacket(ctx, evaluation.ProjectID, res.RuleID)
			if err != nil {
				return nil, nil, fmt.Errorf("look up live packet for %s: %w", res.RuleID, err)
			}
			if live != nil {
				continue
			}
			id, err := idgen.Generate(idgen.PrefixTaskPacket)
			if err != nil {
				return nil, nil, err
			}
			packet := &model.TaskPacket{
				TaskPacketID: id,
				ProjectID:    evaluation.ProjectID,
				RuleID:       res.RuleID,
				RuleType:     res.RuleType,
				FixGuidance:  fixGuidance(res),
				Status:       model.PacketOpen,
				FindingIDs:   res.FindingIDs,
				CreatedAt:    ts,
				UpdatedAt:    ts,
			}
			if err := tx.CreateTaskPacket(ctx, packet); err != nil {
				return nil, nil, fmt.Errorf("open packet for %s: %w", res.RuleID, err)
			}
			opened = append(opened, packet.TaskPacketID)

		case model.ResultPass:
			if prior == nil {
				continue
			}
			prev := prior.ResultFor(res.RuleType)
			if prev == nil || (prev.Result != model.ResultFail && prev.Result != model.ResultException) {
				continue
			}
			live, err := tx.LiveTaskPacket(ctx, evaluation.ProjectID, res.RuleID)
			if err != nil {
				return nil, nil, fmt.Errorf("look up live packet for %s: %w", res.RuleID, err)
			}
			if live == nil {
				continue
			}
			live.Status = model.PacketCompleted
			live.FixSummary = "superseded: rule now passing"
			live.CompletedAt = &ts
			live.UpdatedAt = ts
			if err := tx.UpdateTaskPacket(ctx, live); err != nil {
				return nil, nil, fmt.Errorf("supersede packet %s: %w", live.TaskPacketID, err)
			}
			superseded = append(superseded, live.TaskPacketID)
		}
	}
	return opened, superseded, nil
}

// fixGuidance composes the packet's remediation hint from the rule's
// catalog description and the predicate's message.
func fixGuidance(res model.RuleResult) string {
	info, err := rules.Lookup(res.RuleType)
	if err != nil {
		return res.Message
	}
	if res.Message == "" {
		return info.Description
	}
	return fmt.Sprintf("%s: %s", info.Description, res.Message)
}

func derefFindings(findings []*model.Finding) []model.Finding {
	out := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		out = append(out, *f)
	}
	return out
}
