package model

import "time"

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// IsValid checks whether the severity is a known value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// FindingStatus is the lifecycle state of a finding.
type FindingStatus string

const (
	FindingOpen          FindingStatus = "open"
	FindingResolved      FindingStatus = "resolved"
	FindingFalsePositive FindingStatus = "false_positive"
	FindingAccepted      FindingStatus = "accepted"
	FindingSuppressed    FindingStatus = "suppressed"
)

// IsValid checks whether the finding status is a known value.
func (s FindingStatus) IsValid() bool {
	switch s {
	case FindingOpen, FindingResolved, FindingFalsePositive, FindingAccepted, FindingSuppressed:
		return true
	}
	return false
}

// Finding is an externally-reported issue against a project. The evaluator
// reads findings; task packet completion may resolve them.
type Finding struct {
	FindingID  string        `json:"finding_id"`
	ProjectID  string        `json:"project_id"`
	Severity   Severity      `json:"severity"`
	Category   string        `json:"category"`
	Title      string        `json:"title,omitempty"`
	Status     FindingStatus `json:"status"`
	DetectedAt time.Time     `json:"detected_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// FindingFilter narrows finding listings.
type FindingFilter struct {
	ProjectID string
	Status    []FindingStatus
	Severity  []Severity
	Category  string
	Limit     int
}
