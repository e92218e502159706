package engine

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// handleContest handles POST /v1/exceptions/contest.
func (s *GateServer) handleContest(w http.ResponseWriter, r *http.Request) {
	var in ContestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := s.Contest(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// handleRevokeException handles POST /v1/exceptions/{id}/revoke.
func (s *GateServer) handleRevokeException(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RevokedBy string `json:"revoked_by"`
		Reason    string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	exc, err := s.RevokeException(r.Context(), r.PathValue("id"), in.RevokedBy, in.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exc)
}

// handleGetApproval handles GET /v1/approvals/{id}.
func (s *GateServer) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	req, comments, err := s.GetApprovalRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if comments == nil {
		comments = []*model.ApprovalComment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"approval_request": req,
		"comments":         comments,
	})
}

// handleDecide handles POST /v1/approvals/{id}/decide.
func (s *GateServer) handleDecide(w http.ResponseWriter, r *http.Request) {
	var in DecideInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := s.Decide(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleAddComment handles POST /v1/approvals/{id}/comments.
func (s *GateServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var in CommentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	comment, err := s.AddComment(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
