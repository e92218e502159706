// Package archive periodically exports the audit surface of the service --
// projects, evaluations, and the timeline ledger -- as JSONL to one or more
// destinations such as an S3 bucket.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// Source is the read surface the exporter needs from the store.
type Source interface {
	ListProjects(ctx context.Context) ([]*model.Project, error)
	ListEvaluations(ctx context.Context, projectID string, limit int) ([]*model.GateEvaluation, error)
	QueryTimeline(ctx context.Context, projectID string, limit int) ([]*model.TimelineEvent, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	ProjectCount    int       `json:"project_count"`
	EvaluationCount int       `json:"evaluation_count"`
	EventCount      int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every project's evaluations and timeline events as
// JSONL to w. Projects are sorted by ID and each project's records are
// written oldest first, so repeated exports of unchanged data are
// byte-identical.
func ExportJSONL(ctx context.Context, src Source, w io.Writer) error {
	projects, err := src.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ID < projects[j].ID
	})

	evaluations := make(map[string][]*model.GateEvaluation, len(projects))
	timelines := make(map[string][]*model.TimelineEvent, len(projects))
	evalCount, eventCount := 0, 0
	for _, p := range projects {
		evals, err := src.ListEvaluations(ctx, p.ID, 0)
		if err != nil {
			return fmt.Errorf("list evaluations for %s: %w", p.ID, err)
		}
		reverseEvals(evals)
		evaluations[p.ID] = evals
		evalCount += len(evals)

		events, err := src.QueryTimeline(ctx, p.ID, 0)
		if err != nil {
			return fmt.Errorf("query timeline for %s: %w", p.ID, err)
		}
		reverseEvents(events)
		timelines[p.ID] = events
		eventCount += len(events)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		ProjectCount:    len(projects),
		EvaluationCount: evalCount,
		EventCount:      eventCount,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, p := range projects {
		if err := enc.Encode(record{Type: "project", Data: p}); err != nil {
			return fmt.Errorf("encode project %s: %w", p.ID, err)
		}
		for _, e := range evaluations[p.ID] {
			if err := enc.Encode(record{Type: "evaluation", Data: e}); err != nil {
				return fmt.Errorf("encode evaluation %s: %w", e.EvaluationID, err)
			}
		}
		for _, ev := range timelines[p.ID] {
			if err := enc.Encode(record{Type: "timeline_event", Data: ev}); err != nil {
				return fmt.Errorf("encode event %s: %w", ev.EventID, err)
			}
		}
	}

	return nil
}

// reverseEvals flips the store's newest-first order to chronological.
func reverseEvals(s []*model.GateEvaluation) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseEvents(s []*model.TimelineEvent) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
