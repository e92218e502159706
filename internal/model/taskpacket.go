package model

import (
	"fmt"
	"time"
)

// PacketStatus is the lifecycle state of a task packet.
type PacketStatus string

const (
	PacketOpen       PacketStatus = "open"
	PacketInProgress PacketStatus = "in_progress"
	PacketCompleted  PacketStatus = "completed"
	PacketFailed     PacketStatus = "failed"
)

// IsValid checks whether the packet status is a known value.
func (s PacketStatus) IsValid() bool {
	switch s {
	case PacketOpen, PacketInProgress, PacketCompleted, PacketFailed:
		return true
	}
	return false
}

// Terminal reports whether the status is an end state. Failed packets are
// terminal; the next evaluation opens a fresh packet if the rule still fails.
func (s PacketStatus) Terminal() bool {
	return s == PacketCompleted || s == PacketFailed
}

// TaskPacket is an agent-claimable unit of remediation work tied to one
// failing required rule. The evaluator opens at most one live packet per
// (project_id, rule_id).
type TaskPacket struct {
	TaskPacketID string       `json:"task_packet_id"`
	ProjectID    string       `json:"project_id"`
	RuleID       string       `json:"rule_id"`
	RuleType     string       `json:"rule_type"`
	FixGuidance  string       `json:"fix_guidance,omitempty"`
	Status       PacketStatus `json:"status"`
	AgentID      string       `json:"agent_id,omitempty"`
	FindingIDs   []string     `json:"finding_ids,omitempty"`
	ClaimedAt    *time.Time   `json:"claimed_at,omitempty"`

	// Completion report, set by Complete.
	FixSummary    string     `json:"fix_summary,omitempty"`
	CommitRef     string     `json:"commit_ref,omitempty"`
	FilesChanged  []string   `json:"files_changed,omitempty"`
	EvidenceNotes string     `json:"evidence_notes,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompletionInput carries the agent's completion report.
type CompletionInput struct {
	Status             PacketStatus `json:"status"`
	FixSummary         string       `json:"fix_summary"`
	CommitRef          string       `json:"commit_ref,omitempty"`
	FilesChanged       []string     `json:"files_changed,omitempty"`
	FindingIDsResolved []string     `json:"finding_ids_resolved,omitempty"`
	EvidenceNotes      string       `json:"evidence_notes,omitempty"`
}

// CompleteWith applies a completion report to an in_progress packet. The
// caller must be the claiming agent unless it holds an admin override.
func (p *TaskPacket) CompleteWith(in CompletionInput, caller string, admin bool, now time.Time) error {
	if in.Status != PacketCompleted && in.Status != PacketFailed {
		return fmt.Errorf("completion status must be completed or failed, got %q", in.Status)
	}
	if p.Status != PacketInProgress {
		return fmt.Errorf("%w: task packet %s is %s, not in_progress", ErrInvalidStateTransition, p.TaskPacketID, p.Status)
	}
	if !admin && caller != p.AgentID {
		return fmt.Errorf("%w: task packet %s is claimed by %s", ErrInvalidStateTransition, p.TaskPacketID, p.AgentID)
	}
	p.Status = in.Status
	p.FixSummary = in.FixSummary
	p.CommitRef = in.CommitRef
	p.FilesChanged = in.FilesChanged
	p.EvidenceNotes = in.EvidenceNotes
	p.CompletedAt = &now
	p.UpdatedAt = now
	return nil
}

// TaskPacketFilter narrows task packet listings.
type TaskPacketFilter struct {
	ProjectID string
	RuleID    string
	Status    []PacketStatus
	AgentID   string
	Limit     int
}
