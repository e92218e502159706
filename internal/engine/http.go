package engine

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *GateServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/projects", s.handleCreateProject)
	mux.HandleFunc("GET /v1/projects", s.handleListProjects)
	mux.HandleFunc("GET /v1/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PATCH /v1/projects/{id}/state", s.handleUpdateProjectState)
	mux.HandleFunc("POST /v1/projects/{id}/evaluate", s.handleEvaluate)
	mux.HandleFunc("GET /v1/projects/{id}/evaluations", s.handleListEvaluations)
	mux.HandleFunc("GET /v1/projects/{id}/brief", s.handleBrief)
	mux.HandleFunc("GET /v1/projects/{id}/timeline", s.handleTimeline)
	mux.HandleFunc("POST /v1/projects/{id}/elevate", s.handleElevate)

	mux.HandleFunc("POST /v1/exceptions/contest", s.handleContest)
	mux.HandleFunc("POST /v1/exceptions/{id}/revoke", s.handleRevokeException)
	mux.HandleFunc("GET /v1/approvals/{id}", s.handleGetApproval)
	mux.HandleFunc("POST /v1/approvals/{id}/decide", s.handleDecide)
	mux.HandleFunc("POST /v1/approvals/{id}/comments", s.handleAddComment)

	mux.HandleFunc("GET /v1/task-packets", s.handleListTaskPackets)
	mux.HandleFunc("GET /v1/task-packets/{id}", s.handleGetTaskPacket)
	mux.HandleFunc("POST /v1/task-packets/{id}/claim", s.handleClaim)
	mux.HandleFunc("POST /v1/task-packets/{id}/complete", s.handleComplete)

	mux.HandleFunc("PUT /v1/gates/{gate_id}", s.handleUpsertGate)
	mux.HandleFunc("GET /v1/gates", s.handleListGates)
	mux.HandleFunc("GET /v1/rules", s.handleListRules)

	mux.HandleFunc("POST /v1/findings", s.handleIngestFinding)
	mux.HandleFunc("GET /v1/findings", s.handleListFindings)

	mux.HandleFunc("GET /v1/health", s.handleHealth)

	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *GateServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps the domain error taxonomy onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var ie inputError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrGateNotConfigured):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidContest),
		errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrUnknownRuleType):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// AuthMiddleware wraps an http.Handler and checks the Authorization header for
// a valid Bearer token. When token is empty, auth is disabled and all requests
// pass through. GET /v1/health is always exempt.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Exempt health check.
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}

		provided := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
