package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// uniqueViolation is the postgres error code raised when an insert trips a
// unique index.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// --- Exceptions ---

const exceptionColumns = `exception_id, project_id, rule_type, contest_type, rationale,
	compensating_controls, finding_ids, evaluation_id, status, approved_by,
	expires_days, start_at, expires_at, created_at, updated_at`

func queryCreateException(ctx context.Context, db executor, e *model.Exception) error {
	controls, err := jsonbValue(e.CompensatingControls)
	if err != nil {
		return err
	}
	findings, err := jsonbValue(e.FindingIDs)
	if err != nil {
		return err
	}
	approvedBy, err := jsonbValue(e.ApprovedBy)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO exceptions (
			exception_id, project_id, rule_type, contest_type, rationale,
			compensating_controls, finding_ids, evaluation_id, status, approved_by,
			expires_days, start_at, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ExceptionID, e.ProjectID, e.RuleType, string(e.ContestType), e.Rationale,
		controls, findings, e.EvaluationID, string(e.Status), approvedBy,
		e.ExpiresDays, nullTimePtr(e.StartAt), nullTimePtr(e.ExpiresAt), e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		// The partial unique index on live exceptions lost us the race.
		return fmt.Errorf("%w: a pending or active exception already exists for %s/%s",
			model.ErrInvalidContest, e.ProjectID, e.RuleType)
	}
	return err
}

func scanException(row scannable) (*model.Exception, error) {
	var e model.Exception
	var controls, findings, approvedBy []byte
	var startAt, expiresAt sql.NullTime
	err := row.Scan(
		&e.ExceptionID, &e.ProjectID, &e.RuleType, &e.ContestType, &e.Rationale,
		&controls, &findings, &e.EvaluationID, &e.Status, &approvedBy,
		&e.ExpiresDays, &startAt, &expiresAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(controls, &e.CompensatingControls); err != nil {
		return nil, fmt.Errorf("decode compensating controls for %s: %w", e.ExceptionID, err)
	}
	if err := unmarshalJSONB(findings, &e.FindingIDs); err != nil {
		return nil, fmt.Errorf("decode finding ids for %s: %w", e.ExceptionID, err)
	}
	if err := unmarshalJSONB(approvedBy, &e.ApprovedBy); err != nil {
		return nil, fmt.Errorf("decode approved_by for %s: %w", e.ExceptionID, err)
	}
	e.StartAt = timePtr(startAt)
	e.ExpiresAt = timePtr(expiresAt)
	return &e, nil
}

func queryGetException(ctx context.Context, db executor, id string) (*model.Exception, error) {
	row := db.QueryRowContext(ctx, `SELECT `+exceptionColumns+` FROM exceptions WHERE exception_id = $1`, id)
	e, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func queryUpdateException(ctx context.Context, db executor, e *model.Exception) error {
	approvedBy, err := jsonbValue(e.ApprovedBy)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE exceptions
		SET status = $2, approved_by = $3, start_at = $4, expires_at = $5, updated_at = $6
		WHERE exception_id = $1`,
		e.ExceptionID, string(e.Status), approvedBy, nullTimePtr(e.StartAt), nullTimePtr(e.ExpiresAt), e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, model.ErrNotFound)
}

func queryActiveException(ctx context.Context, db executor, projectID, ruleType string, now time.Time) (*model.Exception, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+exceptionColumns+` FROM exceptions
		WHERE project_id = $1 AND rule_type = $2 AND status = 'active' AND expires_at > $3`,
		projectID, ruleType, now,
	)
	e, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// --- Approval requests ---

const approvalColumns = `approval_request_id, project_id, environment, request_type, status,
	exception_id, request_data, decided_by, decision_reason, created_at, expires_at, updated_at`

func queryCreateApprovalRequest(ctx context.Context, db executor, r *model.ApprovalRequest) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO approval_requests (
			approval_request_id, project_id, environment, request_type, status,
			exception_id, request_data, decided_by, decision_reason, created_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ApprovalRequestID, r.ProjectID, string(r.Environment), string(r.RequestType), string(r.Status),
		nullString(r.ExceptionID), []byte(r.RequestData), nullString(r.DecidedBy), nullString(r.DecisionReason),
		r.CreatedAt, r.ExpiresAt, r.UpdatedAt,
	)
	return err
}

func scanApprovalRequest(row scannable) (*model.ApprovalRequest, error) {
	var r model.ApprovalRequest
	var exceptionID, decidedBy, reason sql.NullString
	var data []byte
	err := row.Scan(
		&r.ApprovalRequestID, &r.ProjectID, &r.Environment, &r.RequestType, &r.Status,
		&exceptionID, &data, &decidedBy, &reason, &r.CreatedAt, &r.ExpiresAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ExceptionID = exceptionID.String
	r.DecidedBy = decidedBy.String
	r.DecisionReason = reason.String
	if len(data) > 0 {
		r.RequestData = data
	}
	return &r, nil
}

func queryGetApprovalRequest(ctx context.Context, db executor, id string) (*model.ApprovalRequest, error) {
	row := db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE approval_request_id = $1`, id)
	r, err := scanApprovalRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func queryUpdateApprovalRequest(ctx context.Context, db executor, r *model.ApprovalRequest) error {
	res, err := db.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $2, decided_by = $3, decision_reason = $4, updated_at = $5
		WHERE approval_request_id = $1`,
		r.ApprovalRequestID, string(r.Status), nullString(r.DecidedBy), nullString(r.DecisionReason), r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, model.ErrNotFound)
}

func queryAddApprovalComment(ctx context.Context, db executor, c *model.ApprovalComment) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO approval_comments (approval_request_id, author, author_role, content, comment_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		c.ApprovalRequestID, c.Author, nullString(c.AuthorRole), c.Content, string(c.CommentType), c.CreatedAt,
	).Scan(&c.ID)
}

func queryGetApprovalComments(ctx context.Context, db executor, approvalRequestID string) ([]*model.ApprovalComment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, approval_request_id, author, author_role, content, comment_type, created_at
		FROM approval_comments
		WHERE approval_request_id = $1
		ORDER BY id`,
		approvalRequestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ApprovalComment
	for rows.Next() {
		var c model.ApprovalComment
		var role sql.NullString
		if err := rows.Scan(&c.ID, &c.ApprovalRequestID, &c.Author, &role, &c.Content, &c.CommentType, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.AuthorRole = role.String
		out = append(out, &c)
	}
	return out, rows.Err()
}
