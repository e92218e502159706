// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) error {
	return queryCreateProject(ctx, s.db, p)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.db, id)
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p *model.Project) error {
	return queryUpdateProject(ctx, s.db, p)
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.db)
}

func (s *PostgresStore) UpsertGate(ctx context.Context, g *model.PromotionGate) error {
	return queryUpsertGate(ctx, s.db, g)
}

func (s *PostgresStore) GetGate(ctx context.Context, source, target model.Environment) (*model.PromotionGate, error) {
	return queryGetGate(ctx, s.db, source, target)
}

func (s *PostgresStore) ListGates(ctx context.Context) ([]*model.PromotionGate, error) {
	return queryListGates(ctx, s.db)
}

func (s *PostgresStore) CreateEvaluation(ctx context.Context, e *model.GateEvaluation) error {
	return queryCreateEvaluation(ctx, s.db, e)
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*model.GateEvaluation, error) {
	return queryGetEvaluation(ctx, s.db, id)
}

func (s *PostgresStore) LatestEvaluation(ctx context.Context, projectID string, source, target model.Environment) (*model.GateEvaluation, error) {
	return queryLatestEvaluation(ctx, s.db, projectID, source, target)
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, projectID string, limit int) ([]*model.GateEvaluation, error) {
	return queryListEvaluations(ctx, s.db, projectID, limit)
}

func (s *PostgresStore) CreateException(ctx context.Context, e *model.Exception) error {
	return queryCreateException(ctx, s.db, e)
}

func (s *PostgresStore) GetException(ctx context.Context, id string) (*model.Exception, error) {
	return queryGetException(ctx, s.db, id)
}

func (s *PostgresStore) UpdateException(ctx context.Context, e *model.Exception) error {
	return queryUpdateException(ctx, s.db, e)
}

func (s *PostgresStore) ActiveException(ctx context.Context, projectID, ruleType string, now time.Time) (*model.Exception, error) {
	return queryActiveException(ctx, s.db, projectID, ruleType, now)
}

func (s *PostgresStore) CreateApprovalRequest(ctx context.Context, r *model.ApprovalRequest) error {
	return queryCreateApprovalRequest(ctx, s.db, r)
}

func (s *PostgresStore) GetApprovalRequest(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	return queryGetApprovalRequest(ctx, s.db, id)
}

func (s *PostgresStore) UpdateApprovalRequest(ctx context.Context, r *model.ApprovalRequest) error {
	return queryUpdateApprovalRequest(ctx, s.db, r)
}

func (s *PostgresStore) AddApprovalComment(ctx context.Context, c *model.ApprovalComment) error {
	return queryAddApprovalComment(ctx, s.db, c)
}

func (s *PostgresStore) GetApprovalComments(ctx context.Context, approvalRequestID string) ([]*model.ApprovalComment, error) {
	return queryGetApprovalComments(ctx, s.db, approvalRequestID)
}

func (s *PostgresStore) CreateTaskPacket(ctx context.Context, p *model.TaskPacket) error {
	return queryCreateTaskPacket(ctx, s.db, p)
}

func (s *PostgresStore) GetTaskPacket(ctx context.Context, id string) (*model.TaskPacket, error) {
	return queryGetTaskPacket(ctx, s.db, id)
}

func (s *PostgresStore) ListTaskPackets(ctx context.Context, filter model.TaskPacketFilter) ([]*model.TaskPacket, error) {
	return queryListTaskPackets(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateTaskPacket(ctx context.Context, p *model.TaskPacket) error {
	return queryUpdateTaskPacket(ctx, s.db, p)
}

func (s *PostgresStore) LiveTaskPacket(ctx context.Context, projectID, ruleID string) (*model.TaskPacket, error) {
	return queryLiveTaskPacket(ctx, s.db, projectID, ruleID)
}

func (s *PostgresStore) ClaimTaskPacket(ctx context.Context, id, agentID string, now time.Time) (*model.TaskPacket, error) {
	return queryClaimTaskPacket(ctx, s.db, id, agentID, now)
}

func (s *PostgresStore) CreateFinding(ctx context.Context, f *model.Finding) error {
	return queryCreateFinding(ctx, s.db, f)
}

func (s *PostgresStore) GetFinding(ctx context.Context, id string) (*model.Finding, error) {
	return queryGetFinding(ctx, s.db, id)
}

func (s *PostgresStore) ListFindings(ctx context.Context, filter model.FindingFilter) ([]*model.Finding, error) {
	return queryListFindings(ctx, s.db, filter)
}

func (s *PostgresStore) ResolveFinding(ctx context.Context, id string, now time.Time) (*model.Finding, error) {
	return queryResolveFinding(ctx, s.db, id, now)
}

func (s *PostgresStore) AppendTimelineEvent(ctx context.Context, e *model.TimelineEvent) error {
	return queryAppendTimelineEvent(ctx, s.db, e)
}

func (s *PostgresStore) QueryTimeline(ctx context.Context, projectID string, limit int) ([]*model.TimelineEvent, error) {
	return queryTimeline(ctx, s.db, projectID, limit)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateProject(ctx context.Context, p *model.Project) error {
	return queryCreateProject(ctx, s.tx, p)
}

func (s *txStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.tx, id)
}

func (s *txStore) UpdateProject(ctx context.Context, p *model.Project) error {
	return queryUpdateProject(ctx, s.tx, p)
}

func (s *txStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.tx)
}

func (s *txStore) UpsertGate(ctx context.Context, g *model.PromotionGate) error {
	return queryUpsertGate(ctx, s.tx, g)
}

func (s *txStore) GetGate(ctx context.Context, source, target model.Environment) (*model.PromotionGate, error) {
	return queryGetGate(ctx, s.tx, source, target)
}

func (s *txStore) ListGates(ctx context.Context) ([]*model.PromotionGate, error) {
	return queryListGates(ctx, s.tx)
}

func (s *txStore) CreateEvaluation(ctx context.Context, e *model.GateEvaluation) error {
	return queryCreateEvaluation(ctx, s.tx, e)
}

func (s *txStore) GetEvaluation(ctx context.Context, id string) (*model.GateEvaluation, error) {
	return queryGetEvaluation(ctx, s.tx, id)
}

func (s *txStore) LatestEvaluation(ctx context.Context, projectID string, source, target model.Environment) (*model.GateEvaluation, error) {
	return queryLatestEvaluation(ctx, s.tx, projectID, source, target)
}

func (s *txStore) ListEvaluations(ctx context.Context, projectID string, limit int) ([]*model.GateEvaluation, error) {
	return queryListEvaluations(ctx, s.tx, projectID, limit)
}

func (s *txStore) CreateException(ctx context.Context, e *model.Exception) error {
	return queryCreateException(ctx, s.tx, e)
}

func (s *txStore) GetException(ctx context.Context, id string) (*model.Exception, error) {
	return queryGetException(ctx, s.tx, id)
}

func (s *txStore) UpdateException(ctx context.Context, e *model.Exception) error {
	return queryUpdateException(ctx, s.tx, e)
}

func (s *txStore) ActiveException(ctx context.Context, projectID, ruleType string, now time.Time) (*model.Exception, error) {
	return queryActiveException(ctx, s.tx, projectID, ruleType, now)
}

func (s *txStore) CreateApprovalRequest(ctx context.Context, r *model.ApprovalRequest) error {
	return queryCreateApprovalRequest(ctx, s.tx, r)
}

func (s *txStore) GetApprovalRequest(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	return queryGetApprovalRequest(ctx, s.tx, id)
}

func (s *txStore) UpdateApprovalRequest(ctx context.Context, r *model.ApprovalRequest) error {
	return queryUpdateApprovalRequest(ctx, s.tx, r)
}

func (s *txStore) AddApprovalComment(ctx context.Context, c *model.ApprovalComment) error {
	return queryAddApprovalComment(ctx, s.tx, c)
}

func (s *txStore) GetApprovalComments(ctx context.Context, approvalRequestID string) ([]*model.ApprovalComment, error) {
	return queryGetApprovalComments(ctx, s.tx, approvalRequestID)
}

func (s *txStore) CreateTaskPacket(ctx context.Context, p *model.TaskPacket) error {
	return queryCreateTaskPacket(ctx, s.tx, p)
}

func (s *txStore) GetTaskPacket(ctx context.Context, id string) (*model.TaskPacket, error) {
	return queryGetTaskPacket(ctx, s.tx, id)
}

func (s *txStore) ListTaskPackets(ctx context.Context, filter model.TaskPacketFilter) ([]*model.TaskPacket, error) {
	return queryListTaskPackets(ctx, s.tx, filter)
}

func (s *txStore) UpdateTaskPacket(ctx context.Context, p *model.TaskPacket) error {
	return queryUpdateTaskPacket(ctx, s.tx, p)
}

func (s *txStore) LiveTaskPacket(ctx context.Context, projectID, ruleID string) (*model.TaskPacket, error) {
	return queryLiveTaskPacket(ctx, s.tx, projectID, ruleID)
}

func (s *txStore) ClaimTaskPacket(ctx context.Context, id, agentID string, now time.Time) (*model.TaskPacket, error) {
	return queryClaimTaskPacket(ctx, s.tx, id, agentID, now)
}

func (s *txStore) CreateFinding(ctx context.Context, f *model.Finding) error {
	return queryCreateFinding(ctx, s.tx, f)
}

func (s *txStore) GetFinding(ctx context.Context, id string) (*model.Finding, error) {
	return queryGetFinding(ctx, s.tx, id)
}

func (s *txStore) ListFindings(ctx context.Context, filter model.FindingFilter) ([]*model.Finding, error) {
	return queryListFindings(ctx, s.tx, filter)
}

func (s *txStore) ResolveFinding(ctx context.Context, id string, now time.Time) (*model.Finding, error) {
	return queryResolveFinding(ctx, s.tx, id, now)
}

func (s *txStore) AppendTimelineEvent(ctx context.Context, e *model.TimelineEvent) error {
	return queryAppendTimelineEvent(ctx, s.tx, e)
}

func (s *txStore) QueryTimeline(ctx context.Context, projectID string, limit int) ([]*model.TimelineEvent, error) {
	return queryTimeline(ctx, s.tx, projectID, limit)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
