package engine

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/events"
	"github.com/alfredjeanlab/gatewarden/internal/idgen"
	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// FindingInput is a scanner-reported finding at the ingestion boundary.
type FindingInput struct {
	FindingID string         `json:"finding_id,omitempty"`
	ProjectID string         `json:"project_id"`
	Severity  model.Severity `json:"severity"`
	Category  string         `json:"category"`
	Title     string         `json:"title,omitempty"`
}

// IngestFinding records a scanner-reported finding as open and emits a
// finding_detected event. Evaluation reads it on the next run.
func (s *GateServer) IngestFinding(ctx context.Context, in FindingInput) (*model.Finding, error) {
	if !in.Severity.IsValid() {
		return nil, inputError(fmt.Sprintf("unknown severity %q", in.Severity))
	}
	if in.Category == "" {
		return nil, inputError("category is required")
	}
	project, err := s.getProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	ts := now()
	id := in.FindingID
	if id == "" {
		id, err = idgen.Generate(idgen.PrefixFinding)
		if err != nil {
			return nil, err
		}
	}
	f := &model.Finding{
		FindingID:  id,
		ProjectID:  project.ID,
		Severity:   in.Severity,
		Category:   in.Category,
		Title:      in.Title,
		Status:     model.FindingOpen,
		DetectedAt: ts,
		UpdatedAt:  ts,
	}
	if err := s.store.CreateFinding(ctx, f); err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicFindingDetected, &model.TimelineEvent{
		ProjectID: project.ID,
		EventType: model.EventFindingDetected,
		Timestamp: ts,
		Summary:   fmt.Sprintf("%s finding detected in %s", f.Severity, f.Category),
		FindingID: f.FindingID,
	}, events.FindingDetected{Finding: f})

	return f, nil
}

// ListFindings lists findings matching the filter.
func (s *GateServer) ListFindings(ctx context.Context, filter model.FindingFilter) ([]*model.Finding, error) {
	return s.store.ListFindings(ctx, filter)
}
