package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/gatewarden/internal/events"
	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/store"
)

// Claim assigns an open task packet to an agent. The transition is a
// single-row compare-and-swap in the store: when two agents race, exactly
// one wins and the loser gets ErrAlreadyClaimed.
func (s *GateServer) Claim(ctx context.Context, taskPacketID, agentID string) (*model.TaskPacket, error) {
	if agentID == "" {
		return nil, inputError("agent_id is required")
	}

	ts := now()
	packet, err := s.store.ClaimTaskPacket(ctx, taskPacketID, agentID, ts)
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicPacketClaimed, &model.TimelineEvent{
		ProjectID:    packet.ProjectID,
		EventType:    model.EventAgentClaimed,
		Timestamp:    ts,
		Summary:      fmt.Sprintf("%s claimed remediation of %s", agentID, packet.RuleType),
		Actor:        agentID,
		TaskPacketID: packet.TaskPacketID,
	}, events.PacketClaimed{Packet: packet})

	return packet, nil
}

// Complete applies an agent's completion report to an in_progress packet.
// Only the claiming agent (or an admin override) may complete it. On
// completed, resolved findings flip to resolved idempotently and a
// finding_resolved event is emitted per finding, followed by one
// agent_fixed event. Completion never mutates the gate's rule results;
// the next evaluation re-derives pass/fail from the updated findings.
func (s *GateServer) Complete(ctx context.Context, taskPacketID, caller string, admin bool, in model.CompletionInput) (*model.TaskPacket, error) {
	if in.FixSummary == "" {
		return nil, inputError("fix_summary is required")
	}
	packet, err := s.store.GetTaskPacket(ctx, taskPacketID)
	if err != nil {
		return nil, err
	}
	if packet == nil {
		return nil, fmt.Errorf("%w: task packet %s", model.ErrNotFound, taskPacketID)
	}

	ts := now()
	if err := packet.CompleteWith(in, caller, admin, ts); err != nil {
		return nil, err
	}

	var resolved []*model.Finding
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.UpdateTaskPacket(ctx, packet); err != nil {
			return err
		}
		if packet.Status != model.PacketCompleted {
			return nil
		}
		for _, findingID := range in.FindingIDsResolved {
			f, err := tx.ResolveFinding(ctx, findingID, ts)
			if err != nil {
				return fmt.Errorf("resolve finding %s: %w", findingID, err)
			}
			resolved = append(resolved, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, f := range resolved {
		s.recordAndPublish(ctx, events.TopicFindingResolved, &model.TimelineEvent{
			ProjectID: packet.ProjectID,
			EventType: model.EventFindingResolved,
			Timestamp: ts,
			Summary:   fmt.Sprintf("finding %s resolved", f.FindingID),
			Actor:     caller,
			FindingID: f.FindingID,
		}, events.FindingResolved{Finding: f})
	}

	switch packet.Status {
	case model.PacketCompleted:
		ids := make([]string, 0, len(resolved))
		for _, f := range resolved {
			ids = append(ids, f.FindingID)
		}
		s.recordAndPublish(ctx, events.TopicPacketCompleted, &model.TimelineEvent{
			ProjectID: packet.ProjectID,
			EventType: model.EventAgentFixed,
			Timestamp: ts,
			Summary:   fmt.Sprintf("%s fixed %s: %s", caller, packet.RuleType, packet.FixSummary),
			Actor:     caller,
			Detail: detailJSON(map[string]any{
				"fix_summary":       packet.FixSummary,
				"commit_ref":        packet.CommitRef,
				"files_changed":     packet.FilesChanged,
				"resolved_findings": ids,
			}),
			TaskPacketID: packet.TaskPacketID,
		}, events.PacketCompleted{Packet: packet, ResolvedFindings: ids})
	case model.PacketFailed:
		s.recordAndPublish(ctx, events.TopicPacketFailed, &model.TimelineEvent{
			ProjectID:    packet.ProjectID,
			EventType:    model.EventAgentFailed,
			Timestamp:    ts,
			Summary:      fmt.Sprintf("%s could not fix %s: %s", caller, packet.RuleType, packet.FixSummary),
			Actor:        caller,
			TaskPacketID: packet.TaskPacketID,
		}, events.PacketFailed{Packet: packet, Reason: packet.FixSummary})
	default:
		slog.Warn("completion left packet in unexpected status", "task_packet_id", packet.TaskPacketID, "status", packet.Status)
	}

	return packet, nil
}

// GetTaskPacket fetches one packet.
func (s *GateServer) GetTaskPacket(ctx context.Context, id string) (*model.TaskPacket, error) {
	packet, err := s.store.GetTaskPacket(ctx, id)
	if err != nil {
		return nil, err
	}
	if packet == nil {
		return nil, fmt.Errorf("%w: task packet %s", model.ErrNotFound, id)
	}
	return packet, nil
}

// ListTaskPackets lists packets matching the filter.
func (s *GateServer) ListTaskPackets(ctx context.Context, filter model.TaskPacketFilter) ([]*model.TaskPacket, error) {
	return s.store.ListTaskPackets(ctx, filter)
}
