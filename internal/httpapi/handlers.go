package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/deskagent/agent/infrastructure/logging"
	core "github.com/deskagent/agent/internal/app/core/service"
	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/policy"
)

// handlers holds the component set every route needs and writes JSON
// responses the way the teacher's httpapi service does: a small
// writeJSON helper setting Content-Type before encoding, status codes
// chosen per outcome rather than always 200.
type handlers struct {
	deps Deps
	log  *logging.Logger
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type submitRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// submitCommand is the front door (§6 POST /v1/commands): raw text in,
// an Outcome (command id, status, or a clarification request) out.
func (h *handlers) submitCommand(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if trimmed(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Source == "" {
		req.Source = "http"
	}

	outcome, err := h.deps.Pipeline.Submit(r.Context(), req.Text, req.Source)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if outcome.Clarification != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"command_id":    outcome.CommandID,
			"clarification": outcome.Clarification,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, outcome)
}

// listCommands returns the registry's recent command history. An
// optional ?limit= caps the page size, clamped to core's standard
// default/max so a caller can't request the entire in-memory registry
// in one response.
func (h *handlers) listCommands(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = core.ClampLimit(limit, core.DefaultListLimit, core.MaxListLimit)
	writeJSON(w, http.StatusOK, h.deps.Registry.GetRecent(limit))
}

// getCommand merges the registry record with its live execution
// status and timeline, the combined view the teacher's status
// endpoints return for a single resource.
func (h *handlers) getCommand(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	record, ok := h.deps.Registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "command not found")
		return
	}
	status, _ := h.deps.Machine.Get(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":   record,
		"status":   status,
		"timeline": h.deps.Machine.Timeline(id),
	})
}

func (h *handlers) pauseCommand(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Machine.Pause(pathID(r)) {
		writeError(w, http.StatusConflict, "command cannot be paused in its current state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (h *handlers) resumeCommand(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Machine.Resume(pathID(r)) {
		writeError(w, http.StatusConflict, "command cannot be resumed in its current state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (h *handlers) cancelCommand(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if !h.deps.Machine.Cancel(id) {
		writeError(w, http.StatusConflict, "command cannot be cancelled in its current state")
		return
	}
	h.deps.Registry.UpdateStatus(id, domain.CommandStatusCancelled, "", "cancelled by user")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// rollbackCommand runs the Rollback Engine's undo chain for a
// completed command, outside the normal dispatch failure path — the
// user-triggered "undo that" operation (§4.11).
func (h *handlers) rollbackCommand(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if !h.deps.Rollback.HasRollback(id) {
		writeError(w, http.StatusNotFound, "no rollback available for this command")
		return
	}
	result := h.deps.Rollback.Rollback(r.Context(), id)
	h.deps.Machine.MarkRolledBack(id)
	if result.FailedCount > 0 {
		h.deps.Registry.UpdateStatus(id, domain.CommandStatusFailed, "", "rollback incomplete")
		writeJSON(w, http.StatusPartialContent, result)
		return
	}
	h.deps.Registry.UpdateStatus(id, domain.CommandStatusRolledBack, "reverted", "")
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) listWatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Watch.List())
}

type startWatchRequest struct {
	Folder     string `json:"folder"`
	FilterKey  string `json:"filter_key"`
	ActionType string `json:"action_type"`
}

func (h *handlers) startWatch(w http.ResponseWriter, r *http.Request) {
	var req startWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := h.deps.Watch.StartWatch(r.Context(), req.Folder, req.FilterKey, req.ActionType, nil)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *handlers) stopWatch(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Watch.StopWatch(pathID(r)) {
		writeError(w, http.StatusNotFound, "watch not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *handlers) listSchedule(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.deps.Schedule.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handlers) cancelSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Schedule.CancelTask(r.Context(), pathID(r)); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type setProfileRequest struct {
	Profile string `json:"profile"`
}

// setProfile switches the Policy Engine's active profile (safe, power,
// silent; any other name leaves the profile unchanged), affecting every
// command evaluated afterward.
func (h *handlers) setProfile(w http.ResponseWriter, r *http.Request) {
	var req setProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.deps.Policy.SetProfile(policy.Profile(req.Profile))
	writeJSON(w, http.StatusOK, map[string]string{"profile": req.Profile})
}
