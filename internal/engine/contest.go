package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/events"
	"github.com/alfredjeanlab/gatewarden/internal/idgen"
	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/store"
)

// ContestInput asks to waive a failing rule result.
type ContestInput struct {
	ProjectID            string            `json:"project_id"`
	EvaluationID         string            `json:"evaluation_id"`
	RuleType             string            `json:"rule_type"`
	ContestType          model.ContestType `json:"contest_type"`
	Rationale            string            `json:"rationale"`
	FindingIDs           []string          `json:"finding_ids,omitempty"`
	CompensatingControls []string          `json:"compensating_controls,omitempty"`
	ExpiresDays          int               `json:"expires_days,omitempty"`
	Actor                string            `json:"actor,omitempty"`
}

// Contest opens a pending exception for a failing rule and the approval
// request that gates it. The referenced evaluation's result for the rule
// type must be fail; at most one pending-or-active exception may exist per
// (project, rule_type), enforced by the store's unique constraint so that
// racing contests have exactly one winner.
func (s *GateServer) Contest(ctx context.Context, in ContestInput) (*model.ApprovalRequest, error) {
	if in.Rationale == "" {
		return nil, inputError("rationale is required")
	}
	if !in.ContestType.IsValid() {
		return nil, inputError(fmt.Sprintf("unknown contest_type %q", in.ContestType))
	}
	project, err := s.getProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	evaluation, err := s.store.GetEvaluation(ctx, in.EvaluationID)
	if err != nil {
		return nil, err
	}
	if evaluation == nil || evaluation.ProjectID != project.ID {
		return nil, fmt.Errorf("%w: evaluation %s", model.ErrNotFound, in.EvaluationID)
	}
	res := evaluation.ResultFor(in.RuleType)
	if res == nil {
		return nil, fmt.Errorf("%w: evaluation %s has no rule of type %s", model.ErrInvalidContest, in.EvaluationID, in.RuleType)
	}
	if res.Result != model.ResultFail {
		return nil, fmt.Errorf("%w: rule %s result is %s, only failing rules can be contested", model.ErrInvalidContest, in.RuleType, res.Result)
	}

	ts := now()
	excID, err := idgen.Generate(idgen.PrefixException)
	if err != nil {
		return nil, err
	}
	days := in.ExpiresDays
	if days <= 0 {
		days = model.DefaultExceptionDays
	}
	exc := &model.Exception{
		ExceptionID:          excID,
		ProjectID:            project.ID,
		RuleType:             in.RuleType,
		ContestType:          in.ContestType,
		Rationale:            in.Rationale,
		CompensatingControls: in.CompensatingControls,
		FindingIDs:           in.FindingIDs,
		EvaluationID:         evaluation.EvaluationID,
		Status:               model.ExceptionPending,
		ExpiresDays:          days,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}

	aprID, err := idgen.Generate(idgen.PrefixApproval)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(exc)
	if err != nil {
		return nil, fmt.Errorf("snapshot exception: %w", err)
	}
	req := &model.ApprovalRequest{
		ApprovalRequestID: aprID,
		ProjectID:         project.ID,
		Environment:       evaluation.TargetEnvironment,
		RequestType:       model.RequestException,
		Status:            model.ApprovalPending,
		ExceptionID:       exc.ExceptionID,
		RequestData:       snapshot,
		CreatedAt:         ts,
		ExpiresAt:         ts.Add(model.DefaultApprovalWindow),
		UpdatedAt:         ts,
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateException(ctx, exc); err != nil {
			return err
		}
		return tx.CreateApprovalRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicExceptionContested, &model.TimelineEvent{
		ProjectID: project.ID,
		EventType: model.EventExceptionContested,
		Timestamp: ts,
		Summary:   fmt.Sprintf("rule %s contested as %s", in.RuleType, in.ContestType),
		Actor:     in.Actor,
		Detail: detailJSON(map[string]any{
			"exception_id":        exc.ExceptionID,
			"approval_request_id": req.ApprovalRequestID,
			"rule_type":           in.RuleType,
		}),
		EvaluationID: evaluation.EvaluationID,
	}, events.ExceptionContested{Exception: exc, ApprovalRequest: req})

	return req, nil
}

// DecideInput is a terminal choice on an approval request.
type DecideInput struct {
	Decision  model.Decision `json:"decision"`
	DecidedBy string         `json:"decided_by"`
	Reason    string         `json:"reason,omitempty"`
}

// Decide approves or rejects a pending (or needs_info) approval request.
// Approving an exception request activates the linked exception and stamps
// its waiver window from the decision time.
func (s *GateServer) Decide(ctx context.Context, approvalRequestID string, in DecideInput) (*model.ApprovalRequest, error) {
	if in.DecidedBy == "" {
		return nil, inputError("decided_by is required")
	}
	req, err := s.store.GetApprovalRequest(ctx, approvalRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: approval request %s", model.ErrNotFound, approvalRequestID)
	}

	ts := now()
	if !in.Decision.IsValid() {
		return nil, inputError(fmt.Sprintf("unknown decision %q", in.Decision))
	}
	if err := req.Decide(in.Decision, in.DecidedBy, in.Reason, ts); err != nil {
		return nil, err
	}

	var exc *model.Exception
	if req.RequestType == model.RequestException && req.ExceptionID != "" {
		exc, err = s.store.GetException(ctx, req.ExceptionID)
		if err != nil {
			return nil, err
		}
		if exc == nil {
			return nil, fmt.Errorf("%w: exception %s", model.ErrNotFound, req.ExceptionID)
		}
		switch in.Decision {
		case model.DecisionApprove:
			err = exc.Approve(in.DecidedBy, ts)
		case model.DecisionReject:
			err = exc.Reject(ts)
		}
		if err != nil {
			return nil, err
		}
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.UpdateApprovalRequest(ctx, req); err != nil {
			return err
		}
		if exc != nil {
			return tx.UpdateException(ctx, exc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if exc != nil {
		switch in.Decision {
		case model.DecisionApprove:
			s.recordAndPublish(ctx, events.TopicExceptionApproved, &model.TimelineEvent{
				ProjectID: req.ProjectID,
				EventType: model.EventElevated,
				Timestamp: ts,
				Summary:   fmt.Sprintf("exception for %s approved, waived until %s", exc.RuleType, exc.ExpiresAt.Format("2006-01-02")),
				Actor:     in.DecidedBy,
				Detail: detailJSON(map[string]any{
					"exception_id":        exc.ExceptionID,
					"approval_request_id": req.ApprovalRequestID,
					"rule_type":           exc.RuleType,
					"expires_at":          exc.ExpiresAt,
				}),
			}, events.ExceptionDecided{Exception: exc, DecidedBy: in.DecidedBy, Reason: in.Reason})
		case model.DecisionReject:
			s.recordAndPublish(ctx, events.TopicExceptionRejected, &model.TimelineEvent{
				ProjectID: req.ProjectID,
				EventType: model.EventExceptionRejected,
				Timestamp: ts,
				Summary:   fmt.Sprintf("exception for %s rejected", exc.RuleType),
				Actor:     in.DecidedBy,
				Detail: detailJSON(map[string]any{
					"exception_id":        exc.ExceptionID,
					"approval_request_id": req.ApprovalRequestID,
					"rule_type":           exc.RuleType,
					"reason":              in.Reason,
				}),
			}, events.ExceptionDecided{Exception: exc, DecidedBy: in.DecidedBy, Reason: in.Reason})
		}
	}

	return req, nil
}

// RevokeException withdraws an active exception before its window ends.
// The rule reads as failing again on the next evaluation.
func (s *GateServer) RevokeException(ctx context.Context, exceptionID, revokedBy, reason string) (*model.Exception, error) {
	if revokedBy == "" {
		return nil, inputError("revoked_by is required")
	}
	exc, err := s.store.GetException(ctx, exceptionID)
	if err != nil {
		return nil, err
	}
	if exc == nil {
		return nil, fmt.Errorf("%w: exception %s", model.ErrNotFound, exceptionID)
	}

	ts := now()
	if err := exc.Revoke(ts); err != nil {
		return nil, err
	}
	if err := s.store.UpdateException(ctx, exc); err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicExceptionRevoked, &model.TimelineEvent{
		ProjectID: exc.ProjectID,
		EventType: model.EventExceptionRevoked,
		Timestamp: ts,
		Summary:   fmt.Sprintf("exception for %s revoked", exc.RuleType),
		Actor:     revokedBy,
		Detail: detailJSON(map[string]any{
			"exception_id": exc.ExceptionID,
			"rule_type":    exc.RuleType,
			"reason":       reason,
		}),
	}, events.ExceptionRevoked{Exception: exc, RevokedBy: revokedBy, Reason: reason})

	return exc, nil
}

// CommentInput is a threaded note on an approval request.
type CommentInput struct {
	Author       string            `json:"author"`
	AuthorRole   string            `json:"author_role,omitempty"`
	Content      string            `json:"content"`
	CommentType  model.CommentType `json:"comment_type"`
	SetNeedsInfo bool              `json:"set_needs_info,omitempty"`
}

// AddComment appends a comment to an approval request. A question comment
// with SetNeedsInfo moves a pending request to needs_info.
func (s *GateServer) AddComment(ctx context.Context, approvalRequestID string, in CommentInput) (*model.ApprovalComment, error) {
	if in.Author == "" {
		return nil, inputError("author is required")
	}
	if in.Content == "" {
		return nil, inputError("content is required")
	}
	if in.CommentType == "" {
		in.CommentType = model.CommentNote
	}
	if !in.CommentType.IsValid() {
		return nil, inputError(fmt.Sprintf("unknown comment_type %q", in.CommentType))
	}
	if in.SetNeedsInfo && in.CommentType != model.CommentQuestion {
		return nil, inputError("set_needs_info requires a question comment")
	}

	req, err := s.store.GetApprovalRequest(ctx, approvalRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: approval request %s", model.ErrNotFound, approvalRequestID)
	}

	ts := now()
	comment := &model.ApprovalComment{
		ApprovalRequestID: req.ApprovalRequestID,
		Author:            in.Author,
		AuthorRole:        in.AuthorRole,
		Content:           in.Content,
		CommentType:       in.CommentType,
		CreatedAt:         ts,
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if in.SetNeedsInfo {
			if err := req.MarkNeedsInfo(ts); err != nil {
				return err
			}
			if err := tx.UpdateApprovalRequest(ctx, req); err != nil {
				return err
			}
		}
		return tx.AddApprovalComment(ctx, comment)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicApprovalCommented, req.ProjectID, events.ApprovalCommented{Comment: comment})

	return comment, nil
}

// GetApprovalRequest fetches an approval request with lazy expiry applied.
func (s *GateServer) GetApprovalRequest(ctx context.Context, id string) (*model.ApprovalRequest, []*model.ApprovalComment, error) {
	req, err := s.store.GetApprovalRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, fmt.Errorf("%w: approval request %s", model.ErrNotFound, id)
	}
	req.Status = req.EffectiveStatus(now())
	comments, err := s.store.GetApprovalComments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return req, comments, nil
}
