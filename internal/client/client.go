// Package client provides a transport-agnostic interface for the gatewarden
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/rules"
)

// GatewardenClient is the interface the gw CLI uses to talk to the server.
// It is implemented by HTTPClient and can be backed by any transport.
type GatewardenClient interface {
	// Projects
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)
	UpdateProjectState(ctx context.Context, id string, req *UpdateStateRequest) (*model.Project, error)
	Elevate(ctx context.Context, id, actor, approvedBy string) (*model.Project, error)

	// Evaluation
	Evaluate(ctx context.Context, projectID string, req *EvaluateRequest) (*model.GateEvaluation, error)
	ListEvaluations(ctx context.Context, projectID string, limit int) ([]*model.GateEvaluation, error)
	Brief(ctx context.Context, projectID string) (*Brief, error)
	Timeline(ctx context.Context, projectID string, limit int) ([]*model.TimelineEvent, error)

	// Exception workflow
	Contest(ctx context.Context, req *ContestRequest) (*model.ApprovalRequest, error)
	RevokeException(ctx context.Context, exceptionID, revokedBy, reason string) (*model.Exception, error)
	GetApproval(ctx context.Context, id string) (*ApprovalView, error)
	Decide(ctx context.Context, approvalID string, req *DecideRequest) (*model.ApprovalRequest, error)
	AddComment(ctx context.Context, approvalID string, req *CommentRequest) (*model.ApprovalComment, error)

	// Remediation loop
	ListTaskPackets(ctx context.Context, req *ListTaskPacketsRequest) ([]*model.TaskPacket, error)
	GetTaskPacket(ctx context.Context, id string) (*model.TaskPacket, error)
	Claim(ctx context.Context, taskPacketID, agentID string) (*model.TaskPacket, error)
	Complete(ctx context.Context, taskPacketID string, req *CompleteRequest) (*model.TaskPacket, error)

	// Gate admin
	UpsertGate(ctx context.Context, gateID string, req *UpsertGateRequest) (*model.PromotionGate, error)
	ListGates(ctx context.Context) ([]*model.PromotionGate, error)
	ListRules(ctx context.Context) ([]rules.Info, error)

	// Findings
	IngestFinding(ctx context.Context, req *FindingRequest) (*model.Finding, error)
	ListFindings(ctx context.Context, req *ListFindingsRequest) ([]*model.Finding, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateProjectRequest holds parameters for registering a project.
type CreateProjectRequest struct {
	ID                 string             `json:"id,omitempty"`
	Name               string             `json:"name"`
	CurrentEnvironment string             `json:"current_environment,omitempty"`
	AIEnabled          bool               `json:"ai_enabled"`
	Attestations       map[string]*bool   `json:"attestations,omitempty"`
	ScanScores         map[string]float64 `json:"scan_scores,omitempty"`
}

// UpdateStateRequest patches attestation flags and scan scores.
type UpdateStateRequest struct {
	Attestations map[string]*bool   `json:"attestations,omitempty"`
	ScanScores   map[string]float64 `json:"scan_scores,omitempty"`
}

// EvaluateRequest names the gate to run; empty fields default server-side.
type EvaluateRequest struct {
	Source string `json:"source_environment,omitempty"`
	Target string `json:"target_environment,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

// Brief is the agent-facing snapshot returned by GET /v1/projects/{id}/brief.
type Brief struct {
	ProjectID            string              `json:"project_id"`
	CurrentStage         string              `json:"current_stage"`
	NextStage            string              `json:"next_stage,omitempty"`
	GateStatus           string              `json:"gate_status"`
	ReadyToElevate       bool                `json:"ready_to_elevate"`
	BlockersCount        int                 `json:"blockers_count"`
	ResolvedRequirements []string            `json:"resolved_requirements,omitempty"`
	OpenTaskPackets      []*model.TaskPacket `json:"open_task_packets"`
	LastEvaluatedAt      *time.Time          `json:"last_evaluated_at,omitempty"`
}

// ContestRequest asks to waive a failing rule result.
type ContestRequest struct {
	ProjectID            string   `json:"project_id"`
	EvaluationID         string   `json:"evaluation_id"`
	RuleType             string   `json:"rule_type"`
	ContestType          string   `json:"contest_type"`
	Rationale            string   `json:"rationale"`
	FindingIDs           []string `json:"finding_ids,omitempty"`
	CompensatingControls []string `json:"compensating_controls,omitempty"`
	ExpiresDays          int      `json:"expires_days,omitempty"`
	Actor                string   `json:"actor,omitempty"`
}

// ApprovalView is an approval request with its comment thread.
type ApprovalView struct {
	ApprovalRequest *model.ApprovalRequest   `json:"approval_request"`
	Comments        []*model.ApprovalComment `json:"comments"`
}

// DecideRequest is a terminal choice on an approval request.
type DecideRequest struct {
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason,omitempty"`
}

// CommentRequest is a threaded note on an approval request.
type CommentRequest struct {
	Author       string `json:"author"`
	AuthorRole   string `json:"author_role,omitempty"`
	Content      string `json:"content"`
	CommentType  string `json:"comment_type,omitempty"`
	SetNeedsInfo bool   `json:"set_needs_info,omitempty"`
}

// ListTaskPacketsRequest holds filters for listing packets.
type ListTaskPacketsRequest struct {
	ProjectID string
	RuleID    string
	Status    []string
	AgentID   string
	Limit     int
}

// CompleteRequest is an agent's completion report.
type CompleteRequest struct {
	AgentID            string   `json:"agent_id"`
	Admin              bool     `json:"admin,omitempty"`
	Status             string   `json:"status"`
	FixSummary         string   `json:"fix_summary"`
	CommitRef          string   `json:"commit_ref,omitempty"`
	FilesChanged       []string `json:"files_changed,omitempty"`
	FindingIDsResolved []string `json:"finding_ids_resolved,omitempty"`
	EvidenceNotes      string   `json:"evidence_notes,omitempty"`
}

// UpsertGateRequest defines a gate for a (source, target) pair.
type UpsertGateRequest struct {
	SourceEnvironment string           `json:"source_environment"`
	TargetEnvironment string           `json:"target_environment"`
	ApprovalMode      string           `json:"approval_mode"`
	Rules             []model.GateRule `json:"rules"`
	Actor             string           `json:"actor,omitempty"`
}

// FindingRequest reports a scanner finding.
type FindingRequest struct {
	FindingID string `json:"finding_id,omitempty"`
	ProjectID string `json:"project_id"`
	Severity  string `json:"severity"`
	Category  string `json:"category"`
	Title     string `json:"title,omitempty"`
}

// ListFindingsRequest holds filters for listing findings.
type ListFindingsRequest struct {
	ProjectID string
	Status    []string
	Severity  []string
	Category  string
	Limit     int
}
