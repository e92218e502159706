package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// Store defines the persistence interface for gatewarden.
//
// Concurrency-sensitive operations have their semantics spelled out here so
// every implementation (and test double) honors them:
//   - ClaimTaskPacket is an atomic conditional update; it returns
//     model.ErrAlreadyClaimed when the packet is no longer open.
//   - CreateException enforces at most one pending-or-active exception per
//     (project_id, rule_type); the loser of a race gets model.ErrInvalidContest.
//   - AppendTimelineEvent never updates or deletes; the ledger only grows.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	ListProjects(ctx context.Context) ([]*model.Project, error)

	// Gates
	UpsertGate(ctx context.Context, g *model.PromotionGate) error
	GetGate(ctx context.Context, source, target model.Environment) (*model.PromotionGate, error)
	ListGates(ctx context.Context) ([]*model.PromotionGate, error)

	// Evaluations (append-only series per (project, source, target))
	CreateEvaluation(ctx context.Context, e *model.GateEvaluation) error
	GetEvaluation(ctx context.Context, id string) (*model.GateEvaluation, error)
	LatestEvaluation(ctx context.Context, projectID string, source, target model.Environment) (*model.GateEvaluation, error)
	ListEvaluations(ctx context.Context, projectID string, limit int) ([]*model.GateEvaluation, error)

	// Exceptions
	CreateException(ctx context.Context, e *model.Exception) error
	GetException(ctx context.Context, id string) (*model.Exception, error)
	UpdateException(ctx context.Context, e *model.Exception) error
	// ActiveException returns the active, unexpired exception for the pair,
	// or nil when none exists.
	ActiveException(ctx context.Context, projectID, ruleType string, now time.Time) (*model.Exception, error)

	// Approval requests
	CreateApprovalRequest(ctx context.Context, r *model.ApprovalRequest) error
	GetApprovalRequest(ctx context.Context, id string) (*model.ApprovalRequest, error)
	UpdateApprovalRequest(ctx context.Context, r *model.ApprovalRequest) error
	AddApprovalComment(ctx context.Context, c *model.ApprovalComment) error
	GetApprovalComments(ctx context.Context, approvalRequestID string) ([]*model.ApprovalComment, error)

	// Task packets
	CreateTaskPacket(ctx context.Context, p *model.TaskPacket) error
	GetTaskPacket(ctx context.Context, id string) (*model.TaskPacket, error)
	ListTaskPackets(ctx context.Context, filter model.TaskPacketFilter) ([]*model.TaskPacket, error)
	UpdateTaskPacket(ctx context.Context, p *model.TaskPacket) error
	// LiveTaskPacket returns the open or in_progress packet for the
	// (project, rule) pair, or nil when none exists.
	LiveTaskPacket(ctx context.Context, projectID, ruleID string) (*model.TaskPacket, error)
	// ClaimTaskPacket atomically moves an open packet to in_progress for
	// the agent. Exactly one concurrent caller wins.
	ClaimTaskPacket(ctx context.Context, id, agentID string, now time.Time) (*model.TaskPacket, error)

	// Findings
	CreateFinding(ctx context.Context, f *model.Finding) error
	GetFinding(ctx context.Context, id string) (*model.Finding, error)
	ListFindings(ctx context.Context, filter model.FindingFilter) ([]*model.Finding, error)
	// ResolveFinding marks a finding resolved; resolving an already
	// resolved finding is a no-op, not an error.
	ResolveFinding(ctx context.Context, id string, now time.Time) (*model.Finding, error)

	// Timeline (append-only)
	AppendTimelineEvent(ctx context.Context, e *model.TimelineEvent) error
	QueryTimeline(ctx context.Context, projectID string, limit int) ([]*model.TimelineEvent, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
