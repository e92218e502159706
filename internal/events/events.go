package events

import (
	"context"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// Event topic constants
const (
	TopicGateEvaluated  = "gatewarden.gate.evaluated"
	TopicGateConfigured = "gatewarden.gate.configured"

	TopicExceptionContested = "gatewarden.exception.contested"
	TopicExceptionApproved  = "gatewarden.exception.approved"
	TopicExceptionRejected  = "gatewarden.exception.rejected"
	TopicExceptionRevoked   = "gatewarden.exception.revoked"
	TopicApprovalCommented  = "gatewarden.approval.commented"

	TopicPacketOpened    = "gatewarden.packet.opened"
	TopicPacketClaimed   = "gatewarden.packet.claimed"
	TopicPacketCompleted = "gatewarden.packet.completed"
	TopicPacketFailed    = "gatewarden.packet.failed"

	TopicFindingDetected = "gatewarden.finding.detected"
	TopicFindingResolved = "gatewarden.finding.resolved"

	// TopicFindingReported is the intake subject scanners publish to; the
	// server subscribes and ingests each payload as a finding.
	TopicFindingReported = "gatewarden.finding.reported"

	TopicProjectElevated = "gatewarden.project.elevated"
)

// Event types

type GateEvaluated struct {
	Evaluation *model.GateEvaluation `json:"evaluation"`
}

type GateConfigured struct {
	Gate *model.PromotionGate `json:"gate"`
}

type ExceptionContested struct {
	Exception       *model.Exception       `json:"exception"`
	ApprovalRequest *model.ApprovalRequest `json:"approval_request"`
}

type ExceptionDecided struct {
	Exception *model.Exception `json:"exception"`
	DecidedBy string           `json:"decided_by"`
	Reason    string           `json:"reason,omitempty"`
}

type ExceptionRevoked struct {
	Exception *model.Exception `json:"exception"`
	RevokedBy string           `json:"revoked_by"`
	Reason    string           `json:"reason,omitempty"`
}

type ApprovalCommented struct {
	Comment *model.ApprovalComment `json:"comment"`
}

type PacketOpened struct {
	Packet *model.TaskPacket `json:"packet"`
}

type PacketClaimed struct {
	Packet *model.TaskPacket `json:"packet"`
}

type PacketCompleted struct {
	Packet           *model.TaskPacket `json:"packet"`
	ResolvedFindings []string          `json:"resolved_findings,omitempty"`
}

type PacketFailed struct {
	Packet *model.TaskPacket `json:"packet"`
	Reason string            `json:"reason,omitempty"`
}

type FindingDetected struct {
	Finding *model.Finding `json:"finding"`
}

type FindingResolved struct {
	Finding *model.Finding `json:"finding"`
}

type ProjectElevated struct {
	Project *model.Project    `json:"project"`
	From    model.Environment `json:"from"`
	To      model.Environment `json:"to"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
