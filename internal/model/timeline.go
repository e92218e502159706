package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timeline event types. The ledger is open to new types; these are the ones
// the engine emits.
const (
	EventFindingDetected    = "finding_detected"
	EventFindingResolved    = "finding_resolved"
	EventAgentClaimed       = "agent_claimed"
	EventAgentFixed         = "agent_fixed"
	EventAgentFailed        = "agent_failed"
	EventGateEvaluated      = "gate_evaluated"
	EventElevated           = "elevated"
	EventExceptionContested = "exception_contested"
	EventExceptionRejected  = "exception_rejected"
	EventExceptionRevoked   = "exception_revoked"
	EventGateConfigured     = "gate_configured"
)

// TimelineEvent is one immutable entry in a project's audit ledger.
// Events are never updated or deleted.
type TimelineEvent struct {
	EventID   string          `json:"event_id"`
	ProjectID string          `json:"project_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Summary   string          `json:"summary"`
	Actor     string          `json:"actor,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`

	// Back-references, set when the event concerns a specific record.
	FindingID    string `json:"finding_id,omitempty"`
	TaskPacketID string `json:"task_packet_id,omitempty"`
	EvaluationID string `json:"evaluation_id,omitempty"`

	// Seq is assigned by the store on append and breaks timestamp ties
	// (newest first).
	Seq int64 `json:"seq,omitempty"`
}

// ValidateTimelineEvent rejects malformed events before append. Append has
// no other failure mode.
func ValidateTimelineEvent(e *TimelineEvent) error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("timeline event missing event_id")
	case e.ProjectID == "":
		return fmt.Errorf("timeline event missing project_id")
	case e.EventType == "":
		return fmt.Errorf("timeline event missing event_type")
	case e.Timestamp.IsZero():
		return fmt.Errorf("timeline event missing timestamp")
	case e.Summary == "":
		return fmt.Errorf("timeline event missing summary")
	}
	return nil
}
