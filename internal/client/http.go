package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/rules"
)

// HTTPClient implements GatewardenClient over the HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Projects ---

func (c *HTTPClient) CreateProject(ctx context.Context, req *CreateProjectRequest) (*model.Project, error) {
	var p model.Project
	if err := c.doJSON(ctx, http.MethodPost, "/v1/projects", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) ListProjects(ctx context.Context) ([]*model.Project, error) {
	var resp struct {
		Projects []*model.Project `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *HTTPClient) UpdateProjectState(ctx context.Context, id string, req *UpdateStateRequest) (*model.Project, error) {
	var p model.Project
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/projects/"+url.PathEscape(id)+"/state", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Elevate(ctx context.Context, id, actor, approvedBy string) (*model.Project, error) {
	body := map[string]string{}
	if actor != "" {
		body["actor"] = actor
	}
	if approvedBy != "" {
		body["approved_by"] = approvedBy
	}
	var p model.Project
	if err := c.doJSON(ctx, http.MethodPost, "/v1/projects/"+url.PathEscape(id)+"/elevate", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Evaluation ---

func (c *HTTPClient) Evaluate(ctx context.Context, projectID string, req *EvaluateRequest) (*model.GateEvaluation, error) {
	var e model.GateEvaluation
	if err := c.doJSON(ctx, http.MethodPost, "/v1/projects/"+url.PathEscape(projectID)+"/evaluate", req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) ListEvaluations(ctx context.Context, projectID string, limit int) ([]*model.GateEvaluation, error) {
	path := "/v1/projects/" + url.PathEscape(projectID) + "/evaluations"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Evaluations []*model.GateEvaluation `json:"evaluations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Evaluations, nil
}

func (c *HTTPClient) Brief(ctx context.Context, projectID string) (*Brief, error) {
	var b Brief
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(projectID)+"/brief", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) Timeline(ctx context.Context, projectID string, limit int) ([]*model.TimelineEvent, error) {
	path := "/v1/projects/" + url.PathEscape(projectID) + "/timeline"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Events []*model.TimelineEvent `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Exception workflow ---

func (c *HTTPClient) Contest(ctx context.Context, req *ContestRequest) (*model.ApprovalRequest, error) {
	var r model.ApprovalRequest
	if err := c.doJSON(ctx, http.MethodPost, "/v1/exceptions/contest", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) RevokeException(ctx context.Context, exceptionID, revokedBy, reason string) (*model.Exception, error) {
	body := map[string]string{"revoked_by": revokedBy}
	if reason != "" {
		body["reason"] = reason
	}
	var e model.Exception
	if err := c.doJSON(ctx, http.MethodPost, "/v1/exceptions/"+url.PathEscape(exceptionID)+"/revoke", body, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) GetApproval(ctx context.Context, id string) (*ApprovalView, error) {
	var v ApprovalView
	if err := c.doJSON(ctx, http.MethodGet, "/v1/approvals/"+url.PathEscape(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) Decide(ctx context.Context, approvalID string, req *DecideRequest) (*model.ApprovalRequest, error) {
	var r model.ApprovalRequest
	if err := c.doJSON(ctx, http.MethodPost, "/v1/approvals/"+url.PathEscape(approvalID)+"/decide", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) AddComment(ctx context.Context, approvalID string, req *CommentRequest) (*model.ApprovalComment, error) {
	var com model.ApprovalComment
	if err := c.doJSON(ctx, http.MethodPost, "/v1/approvals/"+url.PathEscape(approvalID)+"/comments", req, &com); err != nil {
		return nil, err
	}
	return &com, nil
}

// --- Remediation loop ---

func (c *HTTPClient) ListTaskPackets(ctx context.Context, req *ListTaskPacketsRequest) ([]*model.TaskPacket, error) {
	q := url.Values{}
	if req.ProjectID != "" {
		q.Set("project_id", req.ProjectID)
	}
	if req.RuleID != "" {
		q.Set("rule_id", req.RuleID)
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.AgentID != "" {
		q.Set("agent_id", req.AgentID)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	path := "/v1/task-packets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		TaskPackets []*model.TaskPacket `json:"task_packets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.TaskPackets, nil
}

func (c *HTTPClient) GetTaskPacket(ctx context.Context, id string) (*model.TaskPacket, error) {
	var p model.TaskPacket
	if err := c.doJSON(ctx, http.MethodGet, "/v1/task-packets/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Claim(ctx context.Context, taskPacketID, agentID string) (*model.TaskPacket, error) {
	body := map[string]string{"agent_id": agentID}
	var p model.TaskPacket
	if err := c.doJSON(ctx, http.MethodPost, "/v1/task-packets/"+url.PathEscape(taskPacketID)+"/claim", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Complete(ctx context.Context, taskPacketID string, req *CompleteRequest) (*model.TaskPacket, error) {
	var p model.TaskPacket
	if err := c.doJSON(ctx, http.MethodPost, "/v1/task-packets/"+url.PathEscape(taskPacketID)+"/complete", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Gate admin ---

func (c *HTTPClient) UpsertGate(ctx context.Context, gateID string, req *UpsertGateRequest) (*model.PromotionGate, error) {
	var g model.PromotionGate
	if err := c.doJSON(ctx, http.MethodPut, "/v1/gates/"+url.PathEscape(gateID), req, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) ListGates(ctx context.Context) ([]*model.PromotionGate, error) {
	var resp struct {
		Gates []*model.PromotionGate `json:"gates"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/gates", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Gates, nil
}

func (c *HTTPClient) ListRules(ctx context.Context) ([]rules.Info, error) {
	var resp struct {
		Rules []rules.Info `json:"rules"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/rules", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

// --- Findings ---

func (c *HTTPClient) IngestFinding(ctx context.Context, req *FindingRequest) (*model.Finding, error) {
	var f model.Finding
	if err := c.doJSON(ctx, http.MethodPost, "/v1/findings", req, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *HTTPClient) ListFindings(ctx context.Context, req *ListFindingsRequest) ([]*model.Finding, error) {
	q := url.Values{}
	if req.ProjectID != "" {
		q.Set("project_id", req.ProjectID)
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if len(req.Severity) > 0 {
		q.Set("severity", strings.Join(req.Severity, ","))
	}
	if req.Category != "" {
		q.Set("category", req.Category)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	path := "/v1/findings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Findings []*model.Finding `json:"findings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Findings, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
