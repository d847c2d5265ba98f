// Package httpapi is the HTTP layer: routing, middleware, request decoding,
// and the error envelope. All business rules live in the service packages;
// handlers only enforce ownership and translate errors to status codes.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"lingualabel.org/internal/auth"
	"lingualabel.org/internal/market"
	"lingualabel.org/internal/obs"
	"lingualabel.org/internal/payments"
	"lingualabel.org/internal/syncbridge"
)

// ReadyProbe reports readiness; with a DB configured it pings it.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the wiring for New.
type Options struct {
	Market     market.Service
	Users      auth.Store
	Bridge     *syncbridge.Bridge
	Payments   *payments.Service
	Ready      ReadyProbe
	Version    string
	TokenTTL   time.Duration
	RateBurst  int
	RatePerSec int
}

// API is the HTTP layer.
type API struct {
	router     *mux.Router
	svc        market.Service
	users      auth.Store
	bridge     *syncbridge.Bridge
	pay        *payments.Service
	readyProbe ReadyProbe
	version    string
	tokenTTL   time.Duration
	rateBurst  int
	ratePerSec int
}

func New(opts Options) *API {
	a := &API{
		router:     mux.NewRouter(),
		svc:        opts.Market,
		users:      opts.Users,
		bridge:     opts.Bridge,
		pay:        opts.Payments,
		readyProbe: opts.Ready,
		version:    opts.Version,
		tokenTTL:   opts.TokenTTL,
		rateBurst:  opts.RateBurst,
		ratePerSec: opts.RatePerSec,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = 24 * time.Hour
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router

	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", a.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", a.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", a.Me).Methods(http.MethodGet)

	api.HandleFunc("/languages", a.ListLanguages).Methods(http.MethodGet)
	api.HandleFunc("/languages/region/{region}", a.LanguagesByRegion).Methods(http.MethodGet)
	api.HandleFunc("/languages/{code}", a.GetLanguage).Methods(http.MethodGet)

	api.HandleFunc("/annotators", a.CreateAnnotator).Methods(http.MethodPost)
	api.HandleFunc("/annotators", a.ListAnnotators).Methods(http.MethodGet)
	api.HandleFunc("/annotators/{id}", a.GetAnnotator).Methods(http.MethodGet)

	api.HandleFunc("/projects", a.CreateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects", a.ListProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", a.GetProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", a.UpdateProject).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}", a.DeleteProject).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/activate", a.ActivateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/tasks", a.AddTasks).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/tasks", a.ListTasks).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/sync", a.SyncProject).Methods(http.MethodPost)

	api.HandleFunc("/tasks/{id}", a.GetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/claim", a.ClaimTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/start", a.StartTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/submit", a.SubmitTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/review", a.ReviewTask).Methods(http.MethodPost)

	api.HandleFunc("/payments/status", a.ConnectStatus).Methods(http.MethodGet)
	api.HandleFunc("/payments/connect/onboard", a.StartOnboarding).Methods(http.MethodPost)
	api.HandleFunc("/payments/earnings", a.Earnings).Methods(http.MethodGet)
	api.HandleFunc("/payments/withdraw", a.Withdraw).Methods(http.MethodPost)

	api.HandleFunc("/stats", a.Stats).Methods(http.MethodGet)
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "lingualabel-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail emits the uniform error envelope.
func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// serviceError maps domain errors onto HTTP status codes.
func (a *API) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrValidation):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrForbidden):
		writeDetail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, market.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "not found")
	case errors.Is(err, market.ErrInvalidTransition), errors.Is(err, market.ErrConflict):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrPrecondition):
		writeDetail(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, market.ErrExternal):
		writeDetail(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidInput):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeDetail(w, http.StatusUnauthorized, err.Error())
	default:
		obs.Logger().Printf(`{"level":"error","msg":"internal error","error":%q}`, err.Error())
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

// currentUser pulls the authenticated identity out of the request context.
func currentUser(r *http.Request) (string, auth.Role, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", "", false
	}
	return uid, auth.RoleFromContext(r.Context()), true
}
