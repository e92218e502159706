package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// --- Task packets ---

const packetColumns = `task_packet_id, project_id, rule_id, rule_type, fix_guidance, status,
	agent_id, finding_ids, claimed_at, fix_summary, commit_ref, files_changed,
	evidence_notes, completed_at, created_at, updated_at`

func queryCreateTaskPacket(ctx context.Context, db executor, p *model.TaskPacket) error {
	findings, err := jsonbValue(p.FindingIDs)
	if err != nil {
		return err
	}
	files, err := jsonbValue(p.FilesChanged)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO task_packets (
			task_packet_id, project_id, rule_id, rule_type, fix_guidance, status,
			agent_id, finding_ids, claimed_at, fix_summary, commit_ref, files_changed,
			evidence_notes, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.TaskPacketID, p.ProjectID, p.RuleID, p.RuleType, nullString(p.FixGuidance), string(p.Status),
		nullString(p.AgentID), findings, nullTimePtr(p.ClaimedAt), nullString(p.FixSummary), nullString(p.CommitRef), files,
		nullString(p.EvidenceNotes), nullTimePtr(p.CompletedAt), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func scanTaskPacket(row scannable) (*model.TaskPacket, error) {
	var p model.TaskPacket
	var guidance, agentID, summary, commitRef, notes sql.NullString
	var findings, files []byte
	var claimedAt, completedAt sql.NullTime
	err := row.Scan(
		&p.TaskPacketID, &p.ProjectID, &p.RuleID, &p.RuleType, &guidance, &p.Status,
		&agentID, &findings, &claimedAt, &summary, &commitRef, &files,
		&notes, &completedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.FixGuidance = guidance.String
	p.AgentID = agentID.String
	p.FixSummary = summary.String
	p.CommitRef = commitRef.String
	p.EvidenceNotes = notes.String
	p.ClaimedAt = timePtr(claimedAt)
	p.CompletedAt = timePtr(completedAt)
	if err := unmarshalJSONB(findings, &p.FindingIDs); err != nil {
		return nil, fmt.Errorf("decode finding ids for %s: %w", p.TaskPacketID, err)
	}
	if err := unmarshalJSONB(files, &p.FilesChanged); err != nil {
		return nil, fmt.Errorf("decode files changed for %s: %w", p.TaskPacketID, err)
	}
	return &p, nil
}

func queryGetTaskPacket(ctx context.Context, db executor, id string) (*model.TaskPacket, error) {
	row := db.QueryRowContext(ctx, `SELECT `+packetColumns+` FROM task_packets WHERE task_packet_id = $1`, id)
	p, err := scanTaskPacket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func queryListTaskPackets(ctx context.Context, db executor, filter model.TaskPacketFilter) ([]*model.TaskPacket, error) {
	var (
		whereClauses []string
		args         []any
	)
	nextArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg(filter.ProjectID))
	}
	if filter.RuleID != "" {
		whereClauses = append(whereClauses, "rule_id = "+nextArg(filter.RuleID))
	}
	if filter.AgentID != "" {
		whereClauses = append(whereClauses, "agent_id = "+nextArg(filter.AgentID))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg(string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + packetColumns + ` FROM task_packets`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + nextArg(limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TaskPacket
	for rows.Next() {
		p, err := scanTaskPacket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func queryUpdateTaskPacket(ctx context.Context, db executor, p *model.TaskPacket) error {
	files, err := jsonbValue(p.FilesChanged)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE task_packets
		SET status = $2, agent_id = $3, claimed_at = $4, fix_summary = $5, commit_ref = $6,
		    files_changed = $7, evidence_notes = $8, completed_at = $9, updated_at = $10
		WHERE task_packet_id = $1`,
		p.TaskPacketID, string(p.Status), nullString(p.AgentID), nullTimePtr(p.ClaimedAt),
		nullString(p.FixSummary), nullString(p.CommitRef), files, nullString(p.EvidenceNotes),
		nullTimePtr(p.CompletedAt), p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, model.ErrNotFound)
}

func queryLiveTaskPacket(ctx context.Context, db executor, projectID, ruleID string) (*model.TaskPacket, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+packetColumns+` FROM task_packets
		WHERE project_id = $1 AND rule_id = $2 AND status IN ('open', 'in_progress')`,
		projectID, ruleID,
	)
	p, err := scanTaskPacket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// queryClaimTaskPacket is the claim hot path: a single conditional UPDATE.
// Exactly one of two racing claims matches status = 'open'; the loser sees
// zero rows and gets ErrAlreadyClaimed (or ErrNotFound if the packet never
// existed).
func queryClaimTaskPacket(ctx context.Context, db executor, id, agentID string, now time.Time) (*model.TaskPacket, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE task_packets
		SET status = 'in_progress', agent_id = $2, claimed_at = $3, updated_at = $3
		WHERE task_packet_id = $1 AND status = 'open'
		RETURNING `+packetColumns,
		id, agentID, now,
	)
	p, err := scanTaskPacket(row)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := queryGetTaskPacket(ctx, db, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s is %s", model.ErrAlreadyClaimed, id, existing.Status)
	}
	return p, err
}

// --- Findings ---

const findingColumns = `finding_id, project_id, severity, category, title, status, detected_at, resolved_at, updated_at`

func queryCreateFinding(ctx context.Context, db executor, f *model.Finding) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO findings (finding_id, project_id, severity, category, title, status, detected_at, resolved_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.FindingID, f.ProjectID, string(f.Severity), f.Category, nullString(f.Title), string(f.Status),
		f.DetectedAt, nullTimePtr(f.ResolvedAt), f.UpdatedAt,
	)
	return err
}

func scanFinding(row scannable) (*model.Finding, error) {
	var f model.Finding
	var title sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&f.FindingID, &f.ProjectID, &f.Severity, &f.Category, &title, &f.Status, &f.DetectedAt, &resolvedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Title = title.String
	f.ResolvedAt = timePtr(resolvedAt)
	return &f, nil
}

func queryGetFinding(ctx context.Context, db executor, id string) (*model.Finding, error) {
	row := db.QueryRowContext(ctx, `SELECT `+findingColumns+` FROM findings WHERE finding_id = $1`, id)
	f, err := scanFinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

func queryListFindings(ctx context.Context, db executor, filter model.FindingFilter) ([]*model.Finding, error) {
	var (
		whereClauses []string
		args         []any
	)
	nextArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg(filter.ProjectID))
	}
	if filter.Category != "" {
		whereClauses = append(whereClauses, "category = "+nextArg(filter.Category))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg(string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.Severity) > 0 {
		placeholders := make([]string, len(filter.Severity))
		for i, s := range filter.Severity {
			placeholders[i] = nextArg(string(s))
		}
		whereClauses = append(whereClauses, "severity IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + findingColumns + ` FROM findings`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY detected_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += " LIMIT " + nextArg(limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// queryResolveFinding marks a finding resolved. Re-resolving is a no-op so
// completion reports can safely repeat finding IDs.
func queryResolveFinding(ctx context.Context, db executor, id string, now time.Time) (*model.Finding, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE findings
		SET status = 'resolved',
		    resolved_at = COALESCE(resolved_at, $2),
		    updated_at = $2
		WHERE finding_id = $1
		RETURNING `+findingColumns,
		id, now,
	)
	f, err := scanFinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return f, err
}
