package engine

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// handleCreateProject handles POST /v1/projects.
func (s *GateServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in ProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	project, err := s.CreateProject(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// handleListProjects handles GET /v1/projects.
func (s *GateServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.ListProjects(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleGetProject handles GET /v1/projects/{id}.
func (s *GateServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleUpdateProjectState handles PATCH /v1/projects/{id}/state.
func (s *GateServer) handleUpdateProjectState(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Attestations map[string]*bool   `json:"attestations,omitempty"`
		ScanScores   map[string]float64 `json:"scan_scores,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	project, err := s.UpdateProjectState(r.Context(), r.PathValue("id"), in.Attestations, in.ScanScores)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleEvaluate handles POST /v1/projects/{id}/evaluate.
func (s *GateServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var in EvaluateInput
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	evaluation, err := s.Evaluate(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluation)
}

// handleListEvaluations handles GET /v1/projects/{id}/evaluations.
func (s *GateServer) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evaluations, err := s.Evaluations(r.Context(), r.PathValue("id"), queryInt(r, "limit"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if evaluations == nil {
		evaluations = []*model.GateEvaluation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": evaluations})
}

// handleBrief handles GET /v1/projects/{id}/brief.
func (s *GateServer) handleBrief(w http.ResponseWriter, r *http.Request) {
	brief, err := s.Brief(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

// handleTimeline handles GET /v1/projects/{id}/timeline.
func (s *GateServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	eventsOut, err := s.Timeline(r.Context(), r.PathValue("id"), queryInt(r, "limit"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if eventsOut == nil {
		eventsOut = []*model.TimelineEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": eventsOut})
}

// handleElevate handles POST /v1/projects/{id}/elevate.
func (s *GateServer) handleElevate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Actor      string `json:"actor,omitempty"`
		ApprovedBy string `json:"approved_by,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	project, err := s.Elevate(r.Context(), r.PathValue("id"), in.Actor, in.ApprovedBy)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// queryInt parses an integer query parameter, returning 0 when absent or
// malformed.
func queryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
