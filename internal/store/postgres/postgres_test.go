package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var packetRowColumns = []string{
	"task_packet_id", "project_id", "rule_id", "rule_type", "fix_guidance", "status",
	"agent_id", "finding_ids", "claimed_at", "fix_summary", "commit_ref", "files_changed",
	"evidence_notes", "completed_at", "created_at", "updated_at",
}

// addPacketRow adds a minimal task packet row to a sqlmock.Rows.
func addPacketRow(rows *sqlmock.Rows, id, projectID, ruleID, status string, agentID any, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, projectID, ruleID, "max_critical_findings", nil, status,
		agentID, nil, nil, nil, nil, nil,
		nil, nil, now, now,
	)
}

func TestScanHelpers(t *testing.T) {
	// nullString
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("agent-7"); !ns.Valid || ns.String != "agent-7" {
		t.Errorf("nullString(\"agent-7\") = %v", ns)
	}

	// nullTimePtr / timePtr round trip
	if nullTimePtr(nil).Valid {
		t.Error("nullTimePtr(nil) should be invalid")
	}
	now := time.Now()
	nt := nullTimePtr(&now)
	if !nt.Valid || !nt.Time.Equal(now) {
		t.Errorf("nullTimePtr(now) = %v", nt)
	}
	if got := timePtr(nt); got == nil || !got.Equal(now) {
		t.Errorf("timePtr(%v) = %v", nt, got)
	}
	if timePtr(sql.NullTime{}) != nil {
		t.Error("timePtr(invalid) should be nil")
	}

	// jsonbValue
	if v, err := jsonbValue(nil); err != nil || v != nil {
		t.Errorf("jsonbValue(nil) = %v, %v", v, err)
	}
	v, err := jsonbValue([]string{"fnd-1"})
	if err != nil {
		t.Fatalf("jsonbValue: %v", err)
	}
	if string(v.([]byte)) != `["fnd-1"]` {
		t.Errorf("jsonbValue = %s", v)
	}

	// unmarshalJSONB leaves dest untouched on NULL
	var ids []string
	if err := unmarshalJSONB(nil, &ids); err != nil || ids != nil {
		t.Errorf("unmarshalJSONB(nil) = %v, ids=%v", err, ids)
	}
	if err := unmarshalJSONB([]byte(`["fnd-1","fnd-2"]`), &ids); err != nil || len(ids) != 2 {
		t.Errorf("unmarshalJSONB = %v, ids=%v", err, ids)
	}
}

func TestQueryCreateProject(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	p := &model.Project{
		ID: "proj-api", Name: "payments-api", CurrentEnvironment: model.EnvDev,
		AIEnabled: true, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO projects").
		WithArgs("proj-api", "payments-api", "dev", true, sqlmock.AnyArg(), sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateProject(context.Background(), db, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetProject_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM projects WHERE id = \\$1").
		WithArgs("proj-missing").WillReturnError(sql.ErrNoRows)

	p, err := queryGetProject(context.Background(), db, "proj-missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil project, got %+v", p)
	}
}

func TestQueryUpsertGate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	g := &model.PromotionGate{
		GateID: "gate-dev-preprod", SourceEnvironment: model.EnvDev, TargetEnvironment: model.EnvPreprod,
		ApprovalMode: model.ApprovalModeAuto,
		Rules:        []model.GateRule{{RuleID: "r1", RuleType: "no_hardcoded_secrets", Required: true}},
		CreatedAt:    now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO gates .+ ON CONFLICT \\(source_environment, target_environment\\)").
		WithArgs("gate-dev-preprod", "dev", "preprod", "auto", sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpsertGate(context.Background(), db, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryLatestEvaluation(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	results, _ := json.Marshal([]model.RuleResult{{RuleID: "r1", RuleType: "no_hardcoded_secrets", Required: true, Result: model.ResultPass}})
	rows := sqlmock.NewRows([]string{
		"evaluation_id", "project_id", "gate_id", "source_environment", "target_environment", "evaluated_at", "status", "results",
	}).AddRow("eval-1", "proj-api", "gate-dev-preprod", "dev", "preprod", now, "passed", results)
	mock.ExpectQuery("SELECT .+ FROM evaluations .+ ORDER BY evaluated_at DESC LIMIT 1").
		WithArgs("proj-api", "dev", "preprod").WillReturnRows(rows)

	e, err := queryLatestEvaluation(context.Background(), db, "proj-api", model.EnvDev, model.EnvPreprod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.EvaluationID != "eval-1" || e.Status != model.EvalPassed {
		t.Fatalf("got id=%q status=%q", e.EvaluationID, e.Status)
	}
	if len(e.Results) != 1 || e.Results[0].Result != model.ResultPass {
		t.Fatalf("expected one passing result, got %+v", e.Results)
	}
}

func TestQueryCreateException_UniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	e := &model.Exception{
		ExceptionID: "exc-1", ProjectID: "proj-api", RuleType: "max_critical_findings",
		ContestType: model.ContestFalsePositive, Rationale: "scanner misread test fixture",
		EvaluationID: "eval-1", Status: model.ExceptionPending,
		ExpiresDays: 14, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO exceptions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_exceptions_one_live"})

	err := queryCreateException(context.Background(), db, e)
	if !errors.Is(err, model.ErrInvalidContest) {
		t.Fatalf("expected ErrInvalidContest, got %v", err)
	}
}

func TestQueryActiveException(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	start := now.Add(-time.Hour)
	expires := now.Add(24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"exception_id", "project_id", "rule_type", "contest_type", "rationale",
		"compensating_controls", "finding_ids", "evaluation_id", "status", "approved_by",
		"expires_days", "start_at", "expires_at", "created_at", "updated_at",
	}).AddRow(
		"exc-1", "proj-api", "max_critical_findings", "risk_acceptance", "accepted for release window",
		nil, []byte(`["fnd-1"]`), "eval-1", "active", []byte(`["alice"]`),
		14, start, expires, now, now,
	)
	mock.ExpectQuery("SELECT .+ FROM exceptions .+ status = 'active' AND expires_at > \\$3").
		WithArgs("proj-api", "max_critical_findings", now).WillReturnRows(rows)

	e, err := queryActiveException(context.Background(), db, "proj-api", "max_critical_findings", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ExceptionID != "exc-1" || e.Status != model.ExceptionActive {
		t.Fatalf("got id=%q status=%q", e.ExceptionID, e.Status)
	}
	if len(e.ApprovedBy) != 1 || e.ApprovedBy[0] != "alice" {
		t.Fatalf("expected approved_by=[alice], got %v", e.ApprovedBy)
	}
	if e.ExpiresAt == nil || !e.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expires_at=%v, got %v", expires, e.ExpiresAt)
	}
}

func TestQueryActiveException_None(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM exceptions").
		WithArgs("proj-api", "scan_score_min", now).WillReturnError(sql.ErrNoRows)

	e, err := queryActiveException(context.Background(), db, "proj-api", "scan_score_min", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e != nil {
		t.Fatalf("expected nil exception, got %+v", e)
	}
}

func TestQueryAddApprovalComment(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	c := &model.ApprovalComment{
		ApprovalRequestID: "apr-1", Author: "bob", AuthorRole: "reviewer",
		Content: "which finding is the false positive?", CommentType: model.CommentQuestion,
		CreatedAt: now,
	}
	mock.ExpectQuery("INSERT INTO approval_comments .+ RETURNING id").
		WithArgs("apr-1", "bob", sqlmock.AnyArg(), "which finding is the false positive?", "question", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	if err := queryAddApprovalComment(context.Background(), db, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 42 {
		t.Fatalf("expected id=42, got %d", c.ID)
	}
}

func TestQueryClaimTaskPacket(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := addPacketRow(sqlmock.NewRows(packetRowColumns), "tp-1", "proj-api", "r1", "in_progress", "agent-7", now)
	mock.ExpectQuery("UPDATE task_packets SET status = 'in_progress'.+WHERE task_packet_id = \\$1 AND status = 'open'").
		WithArgs("tp-1", "agent-7", now).WillReturnRows(rows)

	p, err := queryClaimTaskPacket(context.Background(), db, "tp-1", "agent-7", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != model.PacketInProgress || p.AgentID != "agent-7" {
		t.Fatalf("got status=%q agent=%q", p.Status, p.AgentID)
	}
}

func TestQueryClaimTaskPacket_AlreadyClaimed(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	// The conditional UPDATE matches nothing, then the follow-up read shows
	// another agent got there first.
	mock.ExpectQuery("UPDATE task_packets SET status = 'in_progress'").
		WithArgs("tp-1", "agent-7", now).WillReturnError(sql.ErrNoRows)
	existing := addPacketRow(sqlmock.NewRows(packetRowColumns), "tp-1", "proj-api", "r1", "in_progress", "agent-3", now)
	mock.ExpectQuery("SELECT .+ FROM task_packets WHERE task_packet_id = \\$1").
		WithArgs("tp-1").WillReturnRows(existing)

	_, err := queryClaimTaskPacket(context.Background(), db, "tp-1", "agent-7", now)
	if !errors.Is(err, model.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestQueryClaimTaskPacket_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE task_packets SET status = 'in_progress'").
		WithArgs("tp-missing", "agent-7", now).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM task_packets WHERE task_packet_id = \\$1").
		WithArgs("tp-missing").WillReturnError(sql.ErrNoRows)

	_, err := queryClaimTaskPacket(context.Background(), db, "tp-missing", "agent-7", now)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryListTaskPackets_Filters(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := addPacketRow(sqlmock.NewRows(packetRowColumns), "tp-1", "proj-api", "r1", "open", nil, now)
	mock.ExpectQuery("SELECT .+ FROM task_packets WHERE project_id = \\$1 AND status IN \\(\\$2, \\$3\\) ORDER BY created_at DESC LIMIT \\$4").
		WithArgs("proj-api", "open", "in_progress", 100).
		WillReturnRows(rows)

	packets, err := queryListTaskPackets(context.Background(), db, model.TaskPacketFilter{
		ProjectID: "proj-api",
		Status:    []model.PacketStatus{model.PacketOpen, model.PacketInProgress},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(packets) != 1 || packets[0].TaskPacketID != "tp-1" {
		t.Fatalf("expected [tp-1], got %+v", packets)
	}
}

func TestQueryResolveFinding(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	earlier := now.Add(-time.Hour)
	// COALESCE keeps the first resolution timestamp on repeat calls.
	rows := sqlmock.NewRows([]string{
		"finding_id", "project_id", "severity", "category", "title", "status", "detected_at", "resolved_at", "updated_at",
	}).AddRow("fnd-1", "proj-api", "critical", "hardcoded_secrets", nil, "resolved", earlier, earlier, now)
	mock.ExpectQuery("UPDATE findings\\s+SET status = 'resolved',\\s+resolved_at = COALESCE\\(resolved_at, \\$2\\)").
		WithArgs("fnd-1", now).WillReturnRows(rows)

	f, err := queryResolveFinding(context.Background(), db, "fnd-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status != model.FindingResolved {
		t.Fatalf("expected resolved, got %q", f.Status)
	}
	if f.ResolvedAt == nil || !f.ResolvedAt.Equal(earlier) {
		t.Fatalf("expected original resolved_at preserved, got %v", f.ResolvedAt)
	}
}

func TestQueryAppendTimelineEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	e := &model.TimelineEvent{
		EventID: "ev-1", ProjectID: "proj-api", EventType: model.EventGateEvaluated,
		Timestamp: now, Summary: "gate dev->preprod evaluated: failed",
		Actor: "ci", EvaluationID: "eval-1",
	}
	mock.ExpectQuery("INSERT INTO timeline_events .+ RETURNING seq").
		WithArgs("ev-1", "proj-api", model.EventGateEvaluated, now, "gate dev->preprod evaluated: failed",
			sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	if err := queryAppendTimelineEvent(context.Background(), db, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Seq != 7 {
		t.Fatalf("expected seq=7, got %d", e.Seq)
	}
}

func TestQueryAppendTimelineEvent_Invalid(t *testing.T) {
	db, _ := newMockDB(t)
	e := &model.TimelineEvent{ProjectID: "proj-api"}

	if err := queryAppendTimelineEvent(context.Background(), db, e); err == nil {
		t.Fatal("expected validation error for incomplete event")
	}
}

func TestQueryTimeline_Ordering(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"seq", "event_id", "project_id", "event_type", "ts", "summary", "actor", "detail", "finding_id", "task_packet_id", "evaluation_id",
	}).
		AddRow(int64(9), "ev-9", "proj-api", "agent_fixed", now, "agent-7 fixed tp-1", "agent-7", nil, nil, "tp-1", nil).
		AddRow(int64(8), "ev-8", "proj-api", "agent_claimed", now, "agent-7 claimed tp-1", "agent-7", nil, nil, "tp-1", nil)
	mock.ExpectQuery("SELECT .+ FROM timeline_events\\s+WHERE project_id = \\$1\\s+ORDER BY ts DESC, seq DESC").
		WithArgs("proj-api", 100).WillReturnRows(rows)

	events, err := queryTimeline(context.Background(), db, "proj-api", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 9 || events[1].Seq != 8 {
		t.Fatalf("expected newest first, got seq=%d,%d", events[0].Seq, events[1].Seq)
	}
	if events[0].TaskPacketID != "tp-1" {
		t.Fatalf("expected task packet back-reference, got %q", events[0].TaskPacketID)
	}
}

func TestRunInTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO findings").
		WithArgs("fnd-1", "proj-api", "high", "sca", sqlmock.AnyArg(), "open", now, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.CreateFinding(context.Background(), &model.Finding{
			FindingID: "fnd-1", ProjectID: "proj-api", Severity: model.SeverityHigh,
			Category: "sca", Status: model.FindingOpen, DetectedAt: now, UpdatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectRollback()

	wantErr := fmt.Errorf("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected boom, got %v", err)
	}
}
