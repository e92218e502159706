// Package engine implements the gate evaluation engine and its attached
// exception and remediation workflows. Methods on GateServer are
// transport-agnostic; internal/engine/http*.go maps them onto HTTP/JSON.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/events"
	"github.com/alfredjeanlab/gatewarden/internal/idgen"
	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/rules"
	"github.com/alfredjeanlab/gatewarden/internal/store"
)

// GateServer wires the store, the event publisher, and the rule registry
// into the core operations.
type GateServer struct {
	store     store.Store
	publisher events.Publisher
	registry  *rules.Registry
}

// NewGateServer returns a GateServer backed by the given store, publisher,
// and rule registry.
func NewGateServer(s store.Store, p events.Publisher, r *rules.Registry) *GateServer {
	if r == nil {
		r = rules.NewRegistry(rules.DefaultRuleTimeout)
	}
	return &GateServer{
		store:     s,
		publisher: p,
		registry:  r,
	}
}

// recordAndPublish appends a timeline event and publishes the payload to the
// event bus. Both are best-effort; failures are logged but do not block the
// caller.
func (s *GateServer) recordAndPublish(ctx context.Context, topic string, ev *model.TimelineEvent, payload any) {
	if ev.EventID == "" {
		id, err := idgen.Generate(idgen.PrefixEvent)
		if err != nil {
			slog.Warn("failed to generate event id", "topic", topic, "project_id", ev.ProjectID, "error", err)
			return
		}
		ev.EventID = id
	}
	if err := s.store.AppendTimelineEvent(ctx, ev); err != nil {
		slog.Warn("failed to append timeline event", "topic", topic, "project_id", ev.ProjectID, "error", err)
	}
	s.publish(ctx, topic, ev.ProjectID, payload)
}

// publish emits an event to the bus without a timeline entry.
func (s *GateServer) publish(ctx context.Context, topic, projectID string, payload any) {
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "project_id", projectID, "error", err)
	}
}

// detailJSON marshals a detail map for a timeline event, logging instead of
// failing on marshal errors.
func detailJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal event detail", "error", err)
		return nil
	}
	return data
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// getProject loads a project or returns ErrNotFound.
func (s *GateServer) getProject(ctx context.Context, id string) (*model.Project, error) {
	if id == "" {
		return nil, inputError("project_id is required")
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.ErrNotFound
	}
	return p, nil
}

func now() time.Time { return time.Now().UTC() }
