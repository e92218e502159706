package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// RequestType classifies what an approval request is asking for.
type RequestType string

const (
	RequestException     RequestType = "exception"
	RequestPromotionGate RequestType = "promotion_gate"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalExpired   ApprovalStatus = "expired"
	ApprovalNeedsInfo ApprovalStatus = "needs_info"
)

// Decidable reports whether a request in this status can still be decided.
func (s ApprovalStatus) Decidable() bool {
	return s == ApprovalPending || s == ApprovalNeedsInfo
}

// DefaultApprovalWindow is how long a request waits for a decision before
// it reads as expired.
const DefaultApprovalWindow = 7 * 24 * time.Hour

// ApprovalRequest is a pending human decision. When RequestType is
// exception, ExceptionID links the paired exception one-to-one and
// RequestData carries a snapshot of its fields.
type ApprovalRequest struct {
	ApprovalRequestID string          `json:"approval_request_id"`
	ProjectID         string          `json:"project_id"`
	Environment       Environment     `json:"environment"`
	RequestType       RequestType     `json:"request_type"`
	Status            ApprovalStatus  `json:"status"`
	ExceptionID       string          `json:"exception_id,omitempty"`
	RequestData       json.RawMessage `json:"request_data,omitempty"`
	DecidedBy         string          `json:"decided_by,omitempty"`
	DecisionReason    string          `json:"decision_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Decision is a terminal choice on an approval request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid checks whether the decision is a known value.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Decide transitions a pending or needs_info request to approved or
// rejected. A request past its expiry window cannot be decided.
func (r *ApprovalRequest) Decide(d Decision, decidedBy, reason string, now time.Time) error {
	if !d.IsValid() {
		return fmt.Errorf("unknown decision %q", d)
	}
	if !r.EffectiveStatus(now).Decidable() {
		return fmt.Errorf("%w: approval request %s is %s", ErrInvalidStateTransition, r.ApprovalRequestID, r.EffectiveStatus(now))
	}
	switch d {
	case DecisionApprove:
		r.Status = ApprovalApproved
	case DecisionReject:
		r.Status = ApprovalRejected
	}
	r.DecidedBy = decidedBy
	r.DecisionReason = reason
	r.UpdatedAt = now
	return nil
}

// MarkNeedsInfo moves a pending request to needs_info in response to a
// question comment.
func (r *ApprovalRequest) MarkNeedsInfo(now time.Time) error {
	if r.EffectiveStatus(now) != ApprovalPending {
		return fmt.Errorf("%w: approval request %s is %s, not pending", ErrInvalidStateTransition, r.ApprovalRequestID, r.EffectiveStatus(now))
	}
	r.Status = ApprovalNeedsInfo
	r.UpdatedAt = now
	return nil
}

// EffectiveStatus applies lazy expiry to an undecided request.
func (r *ApprovalRequest) EffectiveStatus(now time.Time) ApprovalStatus {
	if r.Status.Decidable() && !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return ApprovalExpired
	}
	return r.Status
}

// CommentType classifies a note on an approval request.
type CommentType string

const (
	CommentQuestion     CommentType = "question"
	CommentEvidence     CommentType = "evidence"
	CommentNote         CommentType = "note"
	CommentDecisionNote CommentType = "decision_note"
)

// IsValid checks whether the comment type is a known value.
func (c CommentType) IsValid() bool {
	switch c {
	case CommentQuestion, CommentEvidence, CommentNote, CommentDecisionNote:
		return true
	}
	return false
}

// ApprovalComment is a threaded note on an approval request.
type ApprovalComment struct {
	ID                int64       `json:"id"`
	ApprovalRequestID string      `json:"approval_request_id"`
	Author            string      `json:"author"`
	AuthorRole        string      `json:"author_role,omitempty"`
	Content           string      `json:"content"`
	CommentType       CommentType `json:"comment_type"`
	CreatedAt         time.Time   `json:"created_at"`
}
