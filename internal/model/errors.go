package model

import "errors"

// Domain error taxonomy. The store and engine return these sentinels; the
// HTTP layer maps them to status codes.
var (
	// ErrGateNotConfigured means no promotion gate exists for the
	// requested (source, target) environment pair.
	ErrGateNotConfigured = errors.New("no promotion gate configured for environment pair")

	// ErrInvalidContest means a pending or active exception already exists
	// for the (project, rule_type) pair, or the contest preconditions do
	// not hold.
	ErrInvalidContest = errors.New("invalid contest")

	// ErrInvalidStateTransition means the record is not in a state that
	// permits the requested transition.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrAlreadyClaimed means another agent won the claim race; the caller
	// may retry against a different packet.
	ErrAlreadyClaimed = errors.New("task packet already claimed")

	// ErrUnknownRuleType means a gate references a rule type absent from
	// the catalog. Surfaced as a configuration error, not per-request.
	ErrUnknownRuleType = errors.New("unknown rule type")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
