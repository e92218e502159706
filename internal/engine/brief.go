package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// Brief is the read-only snapshot an autonomous remediator consumes to
// decide what to fix next. It reflects the latest persisted evaluation and
// never re-runs predicates.
type Brief struct {
	ProjectID            string                 `json:"project_id"`
	CurrentStage         model.Environment      `json:"current_stage"`
	NextStage            model.Environment      `json:"next_stage,omitempty"`
	GateStatus           model.EvaluationStatus `json:"gate_status"`
	ReadyToElevate       bool                   `json:"ready_to_elevate"`
	BlockersCount        int                    `json:"blockers_count"`
	ResolvedRequirements []string               `json:"resolved_requirements,omitempty"`
	OpenTaskPackets      []*model.TaskPacket    `json:"open_task_packets"`
	LastEvaluatedAt      *time.Time             `json:"last_evaluated_at,omitempty"`
}

// Brief assembles the agent brief for a project from its latest persisted
// evaluation and live task packets.
func (s *GateServer) Brief(ctx context.Context, projectID string) (*Brief, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	next := model.NextEnvironment(project.CurrentEnvironment)
	b := &Brief{
		ProjectID:       project.ID,
		CurrentStage:    project.CurrentEnvironment,
		NextStage:       next,
		GateStatus:      model.EvalNotEvaluated,
		OpenTaskPackets: []*model.TaskPacket{},
	}
	if next == "" {
		// Final stage: nothing to elevate to.
		return b, nil
	}

	latest, err := s.store.LatestEvaluation(ctx, project.ID, project.CurrentEnvironment, next)
	if err != nil {
		return nil, fmt.Errorf("load latest evaluation: %w", err)
	}
	if latest != nil {
		b.GateStatus = latest.Status
		b.BlockersCount = model.BlockersCount(latest.Results)
		b.ReadyToElevate = b.BlockersCount == 0 && latest.Status == model.EvalPassed
		evaluatedAt := latest.EvaluatedAt
		b.LastEvaluatedAt = &evaluatedAt
		for _, r := range latest.Results {
			if r.Required && r.Result.Satisfies() {
				b.ResolvedRequirements = append(b.ResolvedRequirements, r.RuleType)
			}
		}
	}

	packets, err := s.store.ListTaskPackets(ctx, model.TaskPacketFilter{
		ProjectID: project.ID,
		Status:    []model.PacketStatus{model.PacketOpen, model.PacketInProgress},
	})
	if err != nil {
		return nil, fmt.Errorf("load task packets: %w", err)
	}
	if packets != nil {
		b.OpenTaskPackets = packets
	}

	return b, nil
}

// Timeline returns the newest-first timeline slice for a project.
func (s *GateServer) Timeline(ctx context.Context, projectID string, limit int) ([]*model.TimelineEvent, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.QueryTimeline(ctx, projectID, limit)
}

// Evaluations returns the evaluation history for a project, newest first.
func (s *GateServer) Evaluations(ctx context.Context, projectID string, limit int) ([]*model.GateEvaluation, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListEvaluations(ctx, projectID, limit)
}
