package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"lingualabel.org/internal/audit"
	"lingualabel.org/internal/auth"
	"lingualabel.org/internal/market"
)

type createProjectRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	LanguageCode      string `json:"language_code"`
	AnnotationType    string `json:"annotation_type"`
	Instructions      string `json:"instructions"`
	PricePerTaskCents int64  `json:"price_per_task_cents"`
	Currency          string `json:"currency"`
}

func (a *API) CreateProject(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if role != auth.RoleClient {
		writeDetail(w, http.StatusForbidden, "only clients can create projects")
		return
	}
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := a.svc.CreateProject(r.Context(), market.CreateProjectInput{
		ClientID:          uid,
		Name:              req.Name,
		Description:       req.Description,
		LanguageCode:      req.LanguageCode,
		AnnotationType:    market.AnnotationType(req.AnnotationType),
		Instructions:      req.Instructions,
		PricePerTaskCents: req.PricePerTaskCents,
		Currency:          req.Currency,
	})
	if err != nil {
		a.serviceError(w, err)
		return
	}
	audit.LogEvent(r.Context(), "project.created", map[string]any{"project_id": p.ID})
	writeJSON(w, http.StatusCreated, p)
}

// ListProjects shows clients their own projects and annotators the active
// marketplace.
func (a *API) ListProjects(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	q := r.URL.Query()
	f := market.ProjectFilter{
		Status:       market.ProjectStatus(q.Get("status")),
		LanguageCode: q.Get("language_code"),
		Limit:        queryInt(q.Get("limit")),
		Offset:       queryInt(q.Get("offset")),
	}
	if role == auth.RoleClient {
		f.ClientID = uid
	} else {
		f.ActiveOnly = true
	}
	projects, total, err := a.svc.ListProjects(r.Context(), f)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	if projects == nil {
		projects = []market.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
		"total":    total,
	})
}

func (a *API) GetProject(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	p, err := a.svc.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, err)
		return
	}
	// Annotators only see projects that are on the marketplace.
	if role != auth.RoleClient && p.Status != market.ProjectActive {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	if role == auth.RoleClient && p.ClientID != uid {
		writeDetail(w, http.StatusForbidden, "not the project owner")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateProjectRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	Instructions      *string `json:"instructions"`
	PricePerTaskCents *int64  `json:"price_per_task_cents"`
	Status            *string `json:"status"`
}

func (a *API) UpdateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.ownedProject(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	upd := market.ProjectUpdate{
		Name:              req.Name,
		Description:       req.Description,
		Instructions:      req.Instructions,
		PricePerTaskCents: req.PricePerTaskCents,
	}
	if req.Status != nil {
		st := market.ProjectStatus(*req.Status)
		upd.Status = &st
	}
	out, err := a.svc.UpdateProject(r.Context(), p.ID, upd)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) ActivateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.ownedProject(w, r)
	if !ok {
		return
	}
	out, err := a.svc.ActivateProject(r.Context(), p.ID)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	audit.LogEvent(r.Context(), "project.activated", map[string]any{"project_id": p.ID})
	writeJSON(w, http.StatusOK, out)
}

func (a *API) DeleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.ownedProject(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteProject(r.Context(), p.ID); err != nil {
		a.serviceError(w, err)
		return
	}
	audit.LogEvent(r.Context(), "project.deleted", map[string]any{"project_id": p.ID})
	w.WriteHeader(http.StatusNoContent)
}

type addTasksRequest struct {
	Items []map[string]any `json:"items"`
}

func (a *API) AddTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := a.ownedProject(w, r)
	if !ok {
		return
	}
	var req addTasksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tasks, err := a.svc.AddTasks(r.Context(), p.ID, req.Items)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (a *API) ListTasks(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := mux.Vars(r)["id"]
	p, err := a.svc.GetProject(r.Context(), id)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	if role == auth.RoleClient && p.ClientID != uid {
		writeDetail(w, http.StatusForbidden, "not the project owner")
		return
	}
	if role != auth.RoleClient && p.Status != market.ProjectActive {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	q := r.URL.Query()
	tasks, total, err := a.svc.ListTasks(r.Context(), id,
		market.TaskStatus(q.Get("status")), queryInt(q.Get("limit")), queryInt(q.Get("offset")))
	if err != nil {
		a.serviceError(w, err)
		return
	}
	if tasks == nil {
		tasks = []market.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": total,
	})
}

type syncRequest struct {
	SyncAnnotations bool `json:"sync_annotations"`
}

func (a *API) SyncProject(w http.ResponseWriter, r *http.Request) {
	p, ok := a.ownedProject(w, r)
	if !ok {
		return
	}
	var req syncRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	res, err := a.bridge.Sync(r.Context(), p.ID, req.SyncAnnotations)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ownedProject loads the routed project and enforces client ownership. On
// failure the response is already written.
func (a *API) ownedProject(w http.ResponseWriter, r *http.Request) (market.Project, bool) {
	uid, role, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return market.Project{}, false
	}
	if role != auth.RoleClient {
		writeDetail(w, http.StatusForbidden, "only clients can manage projects")
		return market.Project{}, false
	}
	p, err := a.svc.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, err)
		return market.Project{}, false
	}
	if p.ClientID != uid {
		writeDetail(w, http.StatusForbidden, "not the project owner")
		return market.Project{}, false
	}
	return p, true
}

func queryInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
