package engine

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/rules"
)

// doJSON issues a request with a JSON body against the handler and returns
// the recorder. A nil body sends no payload.
func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeJSON unmarshals the recorder's body into out, failing the test on
// an unexpected status.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, out any) {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, rec.Code, rec.Body.String())
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v: %s", err, rec.Body.String())
	}
}

func newTestHandler() (http.Handler, *mockStore) {
	srv, ms, _ := newTestServer(nil)
	return srv.NewHTTPHandler(""), ms
}

// TestHTTPRemediationFlow walks the whole loop over the wire: register a
// project and gate, ingest a finding, evaluate, claim and complete the
// packet, then elevate.
func TestHTTPRemediationFlow(t *testing.T) {
	h, _ := newTestHandler()

	var project model.Project
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects", map[string]any{
		"id": "proj-api", "name": "api",
	}), http.StatusCreated, &project)
	if project.CurrentEnvironment != model.EnvSandbox {
		t.Fatalf("expected sandbox default, got %s", project.CurrentEnvironment)
	}

	var gate model.PromotionGate
	decodeJSON(t, doJSON(t, h, http.MethodPut, "/v1/gates/sandbox-dev", map[string]any{
		"source_environment": "sandbox",
		"target_environment": "dev",
		"approval_mode":      "auto",
		"rules": []map[string]any{
			{"rule_id": "r-crit", "rule_type": rules.TypeMaxCriticalFindings, "required": true, "threshold": 0},
		},
	}), http.StatusOK, &gate)
	if gate.GateID != "sandbox-dev" {
		t.Fatalf("expected gate id from path, got %s", gate.GateID)
	}

	var finding model.Finding
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/findings", map[string]any{
		"project_id": "proj-api", "severity": "critical", "category": "sast", "title": "sql injection",
	}), http.StatusCreated, &finding)

	var eval model.GateEvaluation
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects/proj-api/evaluate", nil), http.StatusOK, &eval)
	if eval.Status != model.EvalFailed {
		t.Fatalf("expected failed, got %s", eval.Status)
	}

	var brief Brief
	decodeJSON(t, doJSON(t, h, http.MethodGet, "/v1/projects/proj-api/brief", nil), http.StatusOK, &brief)
	if brief.BlockersCount != 1 || len(brief.OpenTaskPackets) != 1 {
		t.Fatalf("unexpected brief: %+v", brief)
	}
	packetID := brief.OpenTaskPackets[0].TaskPacketID

	var packet model.TaskPacket
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/task-packets/"+packetID+"/claim", map[string]any{
		"agent_id": "agent-1",
	}), http.StatusOK, &packet)
	if packet.Status != model.PacketInProgress {
		t.Fatalf("expected in_progress, got %s", packet.Status)
	}

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/task-packets/"+packetID+"/complete", map[string]any{
		"agent_id":             "agent-1",
		"status":               "completed",
		"fix_summary":          "parameterized the query",
		"commit_ref":           "abc123",
		"finding_ids_resolved": []string{finding.FindingID},
	}), http.StatusOK, &packet)
	if packet.Status != model.PacketCompleted {
		t.Fatalf("expected completed, got %s", packet.Status)
	}

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects/proj-api/evaluate", nil), http.StatusOK, &eval)
	if eval.Status != model.EvalPassed {
		t.Fatalf("expected passed after fix, got %s", eval.Status)
	}

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects/proj-api/elevate", map[string]any{
		"actor": "dev",
	}), http.StatusOK, &project)
	if project.CurrentEnvironment != model.EnvDev {
		t.Fatalf("expected dev, got %s", project.CurrentEnvironment)
	}

	var timeline struct {
		Events []*model.TimelineEvent `json:"events"`
	}
	decodeJSON(t, doJSON(t, h, http.MethodGet, "/v1/projects/proj-api/timeline", nil), http.StatusOK, &timeline)
	if len(timeline.Events) == 0 {
		t.Fatal("expected timeline entries")
	}
	if timeline.Events[0].EventType != model.EventElevated {
		t.Fatalf("expected newest-first timeline headed by elevated, got %s", timeline.Events[0].EventType)
	}
}

// TestHTTPContestFlow walks the exception workflow over the wire.
func TestHTTPContestFlow(t *testing.T) {
	h, _ := newTestHandler()

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects", map[string]any{
		"id": "proj-api", "name": "api",
	}), http.StatusCreated, nil)
	decodeJSON(t, doJSON(t, h, http.MethodPut, "/v1/gates/g1", map[string]any{
		"source_environment": "sandbox",
		"target_environment": "dev",
		"approval_mode":      "auto",
		"rules": []map[string]any{
			{"rule_id": "r-crit", "rule_type": rules.TypeMaxCriticalFindings, "required": true, "threshold": 0},
		},
	}), http.StatusOK, nil)
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/findings", map[string]any{
		"project_id": "proj-api", "severity": "critical", "category": "sca",
	}), http.StatusCreated, nil)

	var eval model.GateEvaluation
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects/proj-api/evaluate", nil), http.StatusOK, &eval)

	var req model.ApprovalRequest
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/exceptions/contest", map[string]any{
		"project_id":    "proj-api",
		"evaluation_id": eval.EvaluationID,
		"rule_type":     rules.TypeMaxCriticalFindings,
		"contest_type":  "risk_acceptance",
		"rationale":     "vendor patch lands next week",
	}), http.StatusCreated, &req)
	if req.Status != model.ApprovalPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/approvals/"+req.ApprovalRequestID+"/comments", map[string]any{
		"author": "seclead", "content": "what is the patch ETA?",
		"comment_type": "question", "set_needs_info": true,
	}), http.StatusCreated, nil)

	var wrapped struct {
		ApprovalRequest model.ApprovalRequest    `json:"approval_request"`
		Comments        []*model.ApprovalComment `json:"comments"`
	}
	decodeJSON(t, doJSON(t, h, http.MethodGet, "/v1/approvals/"+req.ApprovalRequestID, nil), http.StatusOK, &wrapped)
	if wrapped.ApprovalRequest.Status != model.ApprovalNeedsInfo || len(wrapped.Comments) != 1 {
		t.Fatalf("unexpected approval view: %+v", wrapped)
	}

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/approvals/"+req.ApprovalRequestID+"/decide", map[string]any{
		"decision": "approve", "decided_by": "seclead",
	}), http.StatusOK, nil)

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects/proj-api/evaluate", nil), http.StatusOK, &eval)
	if eval.Status != model.EvalPassed {
		t.Fatalf("expected passed under exception, got %s", eval.Status)
	}
	res := eval.ResultFor(rules.TypeMaxCriticalFindings)
	if res == nil || res.Result != model.ResultException {
		t.Fatalf("expected exception result, got %+v", res)
	}

	var exc model.Exception
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/exceptions/"+req.ExceptionID+"/revoke", map[string]any{
		"revoked_by": "seclead", "reason": "patch slipped",
	}), http.StatusOK, &exc)
	if exc.Status != model.ExceptionRevoked {
		t.Fatalf("expected revoked, got %s", exc.Status)
	}
}

func TestHTTPErrorStatuses(t *testing.T) {
	h, ms := newTestHandler()

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects", map[string]any{
		"id": "proj-api", "name": "api",
	}), http.StatusCreated, nil)

	for _, tc := range []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"create project without name", http.MethodPost, "/v1/projects", map[string]any{"id": "x"}, http.StatusBadRequest},
		{"get missing project", http.MethodGet, "/v1/projects/nope", nil, http.StatusNotFound},
		{"evaluate without gate", http.MethodPost, "/v1/projects/proj-api/evaluate", nil, http.StatusNotFound},
		{"claim missing packet", http.MethodPost, "/v1/task-packets/nope/claim", map[string]any{"agent_id": "a"}, http.StatusNotFound},
		{"claim without agent", http.MethodPost, "/v1/task-packets/nope/claim", map[string]any{}, http.StatusBadRequest},
		{"decide missing approval", http.MethodPost, "/v1/approvals/nope/decide", map[string]any{"decision": "approve", "decided_by": "x"}, http.StatusNotFound},
		{"contest without rationale", http.MethodPost, "/v1/exceptions/contest", map[string]any{"project_id": "proj-api", "contest_type": "false_positive"}, http.StatusBadRequest},
		{"bad gate definition", http.MethodPut, "/v1/gates/g1", map[string]any{
			"source_environment": "sandbox", "target_environment": "sandbox",
			"approval_mode": "auto",
			"rules":         []map[string]any{{"rule_id": "r", "rule_type": rules.TypeNoHardcodedSecrets}},
		}, http.StatusBadRequest},
	} {
		rec := doJSON(t, h, tc.method, tc.path, tc.body)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}

	// Unknown rule type at evaluation time maps to 422.
	ms.gates[gateKey(model.EnvSandbox, model.EnvDev)] = &model.PromotionGate{
		GateID:            "gate-stale",
		SourceEnvironment: model.EnvSandbox,
		TargetEnvironment: model.EnvDev,
		ApprovalMode:      model.ApprovalModeAuto,
		Rules:             []model.GateRule{{RuleID: "r-x", RuleType: "bogus_rule", Required: true}},
	}
	rec := doJSON(t, h, http.MethodPost, "/v1/projects/proj-api/evaluate", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown rule type, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHTTPClaimConflict(t *testing.T) {
	h, _ := newTestHandler()

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects", map[string]any{
		"id": "proj-api", "name": "api",
	}), http.StatusCreated, nil)
	decodeJSON(t, doJSON(t, h, http.MethodPut, "/v1/gates/g1", map[string]any{
		"source_environment": "sandbox", "target_environment": "dev", "approval_mode": "auto",
		"rules": []map[string]any{
			{"rule_id": "r-sec", "rule_type": rules.TypeNoHardcodedSecrets, "required": true},
		},
	}), http.StatusOK, nil)
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/findings", map[string]any{
		"project_id": "proj-api", "severity": "high", "category": "hardcoded_secrets",
	}), http.StatusCreated, nil)
	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/projects/proj-api/evaluate", nil), http.StatusOK, nil)

	var listed struct {
		TaskPackets []*model.TaskPacket `json:"task_packets"`
	}
	decodeJSON(t, doJSON(t, h, http.MethodGet, "/v1/task-packets?project_id=proj-api&status=open", nil), http.StatusOK, &listed)
	if len(listed.TaskPackets) != 1 {
		t.Fatalf("expected 1 open packet, got %d", len(listed.TaskPackets))
	}
	id := listed.TaskPackets[0].TaskPacketID

	decodeJSON(t, doJSON(t, h, http.MethodPost, "/v1/task-packets/"+id+"/claim", map[string]any{
		"agent_id": "agent-1",
	}), http.StatusOK, nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/task-packets/"+id+"/claim", map[string]any{
		"agent_id": "agent-2",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second claim, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHTTPListRules(t *testing.T) {
	h, _ := newTestHandler()

	var out struct {
		Rules []rules.Info `json:"rules"`
	}
	decodeJSON(t, doJSON(t, h, http.MethodGet, "/v1/rules", nil), http.StatusOK, &out)
	if len(out.Rules) == 0 {
		t.Fatal("expected a non-empty rule catalog")
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(nil)
	h := srv.NewHTTPHandler("sekrit")

	// Health stays open.
	rec := doJSON(t, h, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health should be exempt, got %d", rec.Code)
	}

	for name, header := range map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic sekrit",
		"wrong token":    "Bearer nope",
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}
}
