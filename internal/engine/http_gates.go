package engine

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// handleUpsertGate handles PUT /v1/gates/{gate_id}.
func (s *GateServer) handleUpsertGate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		model.PromotionGate
		Actor string `json:"actor,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	gate := in.PromotionGate
	gate.GateID = r.PathValue("gate_id")

	out, err := s.UpsertGate(r.Context(), &gate, in.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListGates handles GET /v1/gates.
func (s *GateServer) handleListGates(w http.ResponseWriter, r *http.Request) {
	gates, err := s.ListGates(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if gates == nil {
		gates = []*model.PromotionGate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"gates": gates})
}

// handleListRules handles GET /v1/rules.
func (s *GateServer) handleListRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": s.RuleCatalog()})
}

// handleIngestFinding handles POST /v1/findings.
func (s *GateServer) handleIngestFinding(w http.ResponseWriter, r *http.Request) {
	var in FindingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	finding, err := s.IngestFinding(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, finding)
}

// handleListFindings handles GET /v1/findings.
func (s *GateServer) handleListFindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.FindingFilter{
		ProjectID: q.Get("project_id"),
		Category:  q.Get("category"),
		Limit:     queryInt(r, "limit"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.FindingStatus(st))
		}
	}
	if v := q.Get("severity"); v != "" {
		for _, sev := range strings.Split(v, ",") {
			filter.Severity = append(filter.Severity, model.Severity(sev))
		}
	}

	findings, err := s.ListFindings(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if findings == nil {
		findings = []*model.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
}
