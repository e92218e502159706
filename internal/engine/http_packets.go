package engine

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// handleListTaskPackets handles GET /v1/task-packets.
func (s *GateServer) handleListTaskPackets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TaskPacketFilter{
		ProjectID: q.Get("project_id"),
		RuleID:    q.Get("rule_id"),
		AgentID:   q.Get("agent_id"),
		Limit:     queryInt(r, "limit"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.PacketStatus(st))
		}
	}

	packets, err := s.ListTaskPackets(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if packets == nil {
		packets = []*model.TaskPacket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_packets": packets})
}

// handleGetTaskPacket handles GET /v1/task-packets/{id}.
func (s *GateServer) handleGetTaskPacket(w http.ResponseWriter, r *http.Request) {
	packet, err := s.GetTaskPacket(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packet)
}

// handleClaim handles POST /v1/task-packets/{id}/claim.
func (s *GateServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	packet, err := s.Claim(r.Context(), r.PathValue("id"), in.AgentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packet)
}

// completeRequest is the wire form of a completion report: the agent's
// identity plus the completion fields.
type completeRequest struct {
	AgentID string `json:"agent_id"`
	Admin   bool   `json:"admin,omitempty"`
	model.CompletionInput
}

// handleComplete handles POST /v1/task-packets/{id}/complete.
func (s *GateServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	var in completeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	packet, err := s.Complete(r.Context(), r.PathValue("id"), in.AgentID, in.Admin, in.CompletionInput)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packet)
}
