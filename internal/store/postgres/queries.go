package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Projects ---

const projectColumns = `id, name, current_environment, ai_enabled, attestations, scan_scores, created_at, updated_at`

func queryCreateProject(ctx context.Context, db executor, p *model.Project) error {
	atts, err := jsonbValue(p.Attestations)
	if err != nil {
		return err
	}
	scores, err := jsonbValue(p.ScanScores)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO projects (id, name, current_environment, ai_enabled, attestations, scan_scores, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, string(p.CurrentEnvironment), p.AIEnabled, atts, scores, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func scanProject(row scannable) (*model.Project, error) {
	var p model.Project
	var atts, scores []byte
	err := row.Scan(&p.ID, &p.Name, &p.CurrentEnvironment, &p.AIEnabled, &atts, &scores, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(atts, &p.Attestations); err != nil {
		return nil, fmt.Errorf("decode attestations for %s: %w", p.ID, err)
	}
	if err := unmarshalJSONB(scores, &p.ScanScores); err != nil {
		return nil, fmt.Errorf("decode scan scores for %s: %w", p.ID, err)
	}
	return &p, nil
}

func queryGetProject(ctx context.Context, db executor, id string) (*model.Project, error) {
	row := db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func queryUpdateProject(ctx context.Context, db executor, p *model.Project) error {
	atts, err := jsonbValue(p.Attestations)
	if err != nil {
		return err
	}
	scores, err := jsonbValue(p.ScanScores)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE projects
		SET name = $2, current_environment = $3, ai_enabled = $4, attestations = $5, scan_scores = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Name, string(p.CurrentEnvironment), p.AIEnabled, atts, scores, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, model.ErrNotFound)
}

func queryListProjects(ctx context.Context, db executor) ([]*model.Project, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Gates ---

const gateColumns = `gate_id, source_environment, target_environment, approval_mode, rules, created_at, updated_at`

func queryUpsertGate(ctx context.Context, db executor, g *model.PromotionGate) error {
	rules, err := jsonbValue(g.Rules)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO gates (gate_id, source_environment, target_environment, approval_mode, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_environment, target_environment)
		DO UPDATE SET approval_mode = EXCLUDED.approval_mode, rules = EXCLUDED.rules, updated_at = EXCLUDED.updated_at`,
		g.GateID, string(g.SourceEnvironment), string(g.TargetEnvironment), string(g.ApprovalMode), rules, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func scanGate(row scannable) (*model.PromotionGate, error) {
	var g model.PromotionGate
	var rules []byte
	err := row.Scan(&g.GateID, &g.SourceEnvironment, &g.TargetEnvironment, &g.ApprovalMode, &rules, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(rules, &g.Rules); err != nil {
		return nil, fmt.Errorf("decode rules for %s: %w", g.GateID, err)
	}
	return &g, nil
}

func queryGetGate(ctx context.Context, db executor, source, target model.Environment) (*model.PromotionGate, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+gateColumns+` FROM gates WHERE source_environment = $1 AND target_environment = $2`,
		string(source), string(target),
	)
	g, err := scanGate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func queryListGates(ctx context.Context, db executor) ([]*model.PromotionGate, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+gateColumns+` FROM gates ORDER BY source_environment, target_environment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PromotionGate
	for rows.Next() {
		g, err := scanGate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// --- Evaluations ---

const evaluationColumns = `evaluation_id, project_id, gate_id, source_environment, target_environment, evaluated_at, status, results`

func queryCreateEvaluation(ctx context.Context, db executor, e *model.GateEvaluation) error {
	results, err := jsonbValue(e.Results)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO evaluations (evaluation_id, project_id, gate_id, source_environment, target_environment, evaluated_at, status, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.EvaluationID, e.ProjectID, e.GateID, string(e.SourceEnvironment), string(e.TargetEnvironment), e.EvaluatedAt, string(e.Status), results,
	)
	return err
}

func scanEvaluation(row scannable) (*model.GateEvaluation, error) {
	var e model.GateEvaluation
	var results []byte
	err := row.Scan(&e.EvaluationID, &e.ProjectID, &e.GateID, &e.SourceEnvironment, &e.TargetEnvironment, &e.EvaluatedAt, &e.Status, &results)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(results, &e.Results); err != nil {
		return nil, fmt.Errorf("decode results for %s: %w", e.EvaluationID, err)
	}
	return &e, nil
}

func queryLatestEvaluation(ctx context.Context, db executor, projectID string, source, target model.Environment) (*model.GateEvaluation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+evaluationColumns+` FROM evaluations
		WHERE project_id = $1 AND source_environment = $2 AND target_environment = $3
		ORDER BY evaluated_at DESC LIMIT 1`,
		projectID, string(source), string(target),
	)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func queryListEvaluations(ctx context.Context, db executor, projectID string, limit int) ([]*model.GateEvaluation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+evaluationColumns+` FROM evaluations
		WHERE project_id = $1
		ORDER BY evaluated_at DESC LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.GateEvaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// requireRow returns notFound when the statement touched no rows.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// queryGetEvaluation fetches one evaluation by ID.
func queryGetEvaluation(ctx context.Context, db executor, id string) (*model.GateEvaluation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE evaluation_id = $1`, id)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}
