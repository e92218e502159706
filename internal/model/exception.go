package model

import (
	"fmt"
	"time"
)

// ContestType classifies why a failing rule is being contested.
type ContestType string

const (
	ContestFalsePositive  ContestType = "false_positive"
	ContestRiskAcceptance ContestType = "risk_acceptance"
	ContestNeedsMoreTime  ContestType = "needs_more_time"
)

// IsValid checks whether the contest type is a known value.
func (c ContestType) IsValid() bool {
	switch c {
	case ContestFalsePositive, ContestRiskAcceptance, ContestNeedsMoreTime:
		return true
	}
	return false
}

// ExceptionStatus is the lifecycle state of an exception.
type ExceptionStatus string

const (
	ExceptionPending  ExceptionStatus = "pending"
	ExceptionActive   ExceptionStatus = "active"
	ExceptionExpired  ExceptionStatus = "expired"
	ExceptionRevoked  ExceptionStatus = "revoked"
	ExceptionRejected ExceptionStatus = "rejected"
)

// DefaultExceptionDays is the waiver window applied when a contest does not
// name one.
const DefaultExceptionDays = 14

// Exception is a time-boxed, approved waiver of one failing rule type for
// one project. At most one pending-or-active exception exists per
// (project_id, rule_type); the store enforces that with a unique constraint.
type Exception struct {
	ExceptionID          string          `json:"exception_id"`
	ProjectID            string          `json:"project_id"`
	RuleType             string          `json:"rule_type"`
	ContestType          ContestType     `json:"contest_type"`
	Rationale            string          `json:"rationale"`
	CompensatingControls []string        `json:"compensating_controls,omitempty"`
	FindingIDs           []string        `json:"finding_ids,omitempty"`
	EvaluationID         string          `json:"evaluation_id"`
	Status               ExceptionStatus `json:"status"`
	ApprovedBy           []string        `json:"approved_by,omitempty"`
	ExpiresDays          int             `json:"expires_days"`
	StartAt              *time.Time      `json:"start_at,omitempty"`
	ExpiresAt            *time.Time      `json:"expires_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Approve transitions a pending exception to active, stamping the waiver
// window from the decision time.
func (e *Exception) Approve(decidedBy string, now time.Time) error {
	if e.Status != ExceptionPending {
		return fmt.Errorf("%w: exception %s is %s, not pending", ErrInvalidStateTransition, e.ExceptionID, e.Status)
	}
	days := e.ExpiresDays
	if days <= 0 {
		days = DefaultExceptionDays
	}
	start := now
	expires := now.AddDate(0, 0, days)
	e.Status = ExceptionActive
	e.ApprovedBy = append(e.ApprovedBy, decidedBy)
	e.StartAt = &start
	e.ExpiresAt = &expires
	e.UpdatedAt = now
	return nil
}

// Reject transitions a pending exception to rejected.
func (e *Exception) Reject(now time.Time) error {
	if e.Status != ExceptionPending {
		return fmt.Errorf("%w: exception %s is %s, not pending", ErrInvalidStateTransition, e.ExceptionID, e.Status)
	}
	e.Status = ExceptionRejected
	e.UpdatedAt = now
	return nil
}

// Revoke transitions an active exception to revoked.
func (e *Exception) Revoke(now time.Time) error {
	if e.EffectiveStatus(now) != ExceptionActive {
		return fmt.Errorf("%w: exception %s is %s, not active", ErrInvalidStateTransition, e.ExceptionID, e.Status)
	}
	e.Status = ExceptionRevoked
	e.UpdatedAt = now
	return nil
}

// EffectiveStatus applies lazy expiry: an active exception whose window has
// passed reads as expired. The stored status is only rewritten when the
// caller persists the result.
func (e *Exception) EffectiveStatus(now time.Time) ExceptionStatus {
	if e.Status == ExceptionActive && e.ExpiresAt != nil && now.After(*e.ExpiresAt) {
		return ExceptionExpired
	}
	return e.Status
}

// Waives reports whether the exception currently waives the given rule type
// for evaluation purposes.
func (e *Exception) Waives(ruleType string, now time.Time) bool {
	return e.RuleType == ruleType && e.EffectiveStatus(now) == ExceptionActive
}
