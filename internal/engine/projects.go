package engine

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/events"
	"github.com/alfredjeanlab/gatewarden/internal/idgen"
	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// ProjectInput registers or updates a project.
type ProjectInput struct {
	ID                 string             `json:"id,omitempty"`
	Name               string             `json:"name"`
	CurrentEnvironment model.Environment  `json:"current_environment,omitempty"`
	AIEnabled          bool               `json:"ai_enabled"`
	Attestations       map[string]*bool   `json:"attestations,omitempty"`
	ScanScores         map[string]float64 `json:"scan_scores,omitempty"`
}

// CreateProject registers a project at the first stage of the chain unless
// an explicit environment is given.
func (s *GateServer) CreateProject(ctx context.Context, in ProjectInput) (*model.Project, error) {
	if in.Name == "" {
		return nil, inputError("name is required")
	}
	env := in.CurrentEnvironment
	if env == "" {
		env = model.EnvironmentChain[0]
	}
	if !env.IsValid() {
		return nil, inputError(fmt.Sprintf("unknown environment %q", env))
	}

	ts := now()
	id := in.ID
	if id == "" {
		var err error
		id, err = idgen.Generate(idgen.PrefixProject)
		if err != nil {
			return nil, err
		}
	}
	p := &model.Project{
		ID:                 id,
		Name:               in.Name,
		CurrentEnvironment: env,
		AIEnabled:          in.AIEnabled,
		Attestations:       in.Attestations,
		ScanScores:         in.ScanScores,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProjectState patches the attestation flags and scan scores rule
// predicates read. Nil map values clear an attestation back to "not yet
// attested".
func (s *GateServer) UpdateProjectState(ctx context.Context, projectID string, attestations map[string]*bool, scanScores map[string]float64) (*model.Project, error) {
	p, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Attestations == nil && len(attestations) > 0 {
		p.Attestations = make(map[string]*bool, len(attestations))
	}
	for k, v := range attestations {
		p.Attestations[k] = v
	}
	if p.ScanScores == nil && len(scanScores) > 0 {
		p.ScanScores = make(map[string]float64, len(scanScores))
	}
	for k, v := range scanScores {
		p.ScanScores[k] = v
	}
	p.UpdatedAt = now()
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject fetches one project.
func (s *GateServer) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.getProject(ctx, id)
}

// ListProjects returns all registered projects.
func (s *GateServer) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return s.store.ListProjects(ctx)
}

// Elevate moves a project to the next stage. The latest evaluation for the
// pair must be passed; gates in manual approval mode additionally require
// the approver's name.
func (s *GateServer) Elevate(ctx context.Context, projectID, actor, approvedBy string) (*model.Project, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	from := project.CurrentEnvironment
	to := model.NextEnvironment(from)
	if to == "" {
		return nil, inputError(fmt.Sprintf("project is already at the final stage %s", from))
	}

	gate, err := s.store.GetGate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if gate == nil {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrGateNotConfigured, from, to)
	}
	if gate.ApprovalMode == model.ApprovalModeManual && approvedBy == "" {
		return nil, inputError("gate requires manual approval: approved_by is required")
	}

	latest, err := s.store.LatestEvaluation(ctx, project.ID, from, to)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Status != model.EvalPassed {
		status := model.EvalNotEvaluated
		if latest != nil {
			status = latest.Status
		}
		return nil, fmt.Errorf("%w: gate %s -> %s is %s, not passed", model.ErrInvalidStateTransition, from, to, status)
	}

	ts := now()
	project.CurrentEnvironment = to
	project.UpdatedAt = ts
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicProjectElevated, &model.TimelineEvent{
		ProjectID: project.ID,
		EventType: model.EventElevated,
		Timestamp: ts,
		Summary:   fmt.Sprintf("elevated %s -> %s", from, to),
		Actor:     actor,
		Detail: detailJSON(map[string]any{
			"from":          from,
			"to":            to,
			"evaluation_id": latest.EvaluationID,
			"approved_by":   approvedBy,
		}),
		EvaluationID: latest.EvaluationID,
	}, events.ProjectElevated{Project: project, From: from, To: to})

	return project, nil
}
