package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"lingualabel.org/internal/audit"
	"lingualabel.org/internal/auth"
	"lingualabel.org/internal/market"
)

func (a *API) GetTask(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	t, err := a.svc.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, err)
		return
	}
	// Visible to the project owner and to the assignee; other annotators see
	// tasks only through the marketplace listing.
	if role == auth.RoleClient {
		p, err := a.svc.GetProject(r.Context(), t.ProjectID)
		if err != nil {
			a.serviceError(w, err)
			return
		}
		if p.ClientID != uid {
			writeDetail(w, http.StatusForbidden, "not the project owner")
			return
		}
	} else if t.AssignedTo != nil && *t.AssignedTo != uid {
		writeDetail(w, http.StatusForbidden, "task is assigned to another annotator")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) ClaimTask(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireAnnotator(w, r)
	if !ok {
		return
	}
	t, err := a.svc.ClaimTask(r.Context(), mux.Vars(r)["id"], uid)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	audit.LogEvent(r.Context(), "task.claimed", map[string]any{"task_id": t.ID})
	writeJSON(w, http.StatusOK, t)
}

func (a *API) StartTask(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireAnnotator(w, r)
	if !ok {
		return
	}
	t, err := a.svc.StartTask(r.Context(), mux.Vars(r)["id"], uid)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type submitTaskRequest struct {
	Result           map[string]any `json:"result"`
	TimeSpentSeconds int            `json:"time_spent_seconds"`
}

func (a *API) SubmitTask(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireAnnotator(w, r)
	if !ok {
		return
	}
	var req submitTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := a.svc.SubmitTask(r.Context(), mux.Vars(r)["id"], uid, req.Result, req.TimeSpentSeconds)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	audit.LogEvent(r.Context(), "task.submitted", map[string]any{"task_id": t.ID})
	writeJSON(w, http.StatusOK, t)
}

type reviewTaskRequest struct {
	Decision string `json:"decision"`
}

// ReviewTask lets the owning client approve or reject submitted work.
func (a *API) ReviewTask(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if role != auth.RoleClient {
		writeDetail(w, http.StatusForbidden, "only clients can review tasks")
		return
	}
	taskID := mux.Vars(r)["id"]
	t, err := a.svc.GetTask(r.Context(), taskID)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	p, err := a.svc.GetProject(r.Context(), t.ProjectID)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	if p.ClientID != uid {
		writeDetail(w, http.StatusForbidden, "not the project owner")
		return
	}

	var req reviewTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := a.svc.ReviewTask(r.Context(), taskID, market.ReviewDecision(req.Decision))
	if err != nil {
		a.serviceError(w, err)
		return
	}
	audit.LogEvent(r.Context(), "task.reviewed", map[string]any{
		"task_id":  out.ID,
		"decision": req.Decision,
	})
	writeJSON(w, http.StatusOK, out)
}

func (a *API) requireAnnotator(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	if role != auth.RoleAnnotator {
		writeDetail(w, http.StatusForbidden, "only annotators can work on tasks")
		return "", false
	}
	return uid, true
}
