package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"lingualabel.org/internal/auth"
	"lingualabel.org/internal/market"
)

func (a *API) ListLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, market.Languages())
}

func (a *API) GetLanguage(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	lang, ok := market.LanguageByCode(code)
	if !ok {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, lang)
}

func (a *API) LanguagesByRegion(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]
	langs := market.LanguagesByRegion(region)
	if len(langs) == 0 {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, langs)
}

type createAnnotatorRequest struct {
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Languages     []string `json:"languages"`
	Country       string   `json:"country"`
	NativeSpeaker bool     `json:"is_native_speaker"`
}

// CreateAnnotator registers a public marketplace profile. When the caller is
// an authenticated annotator the profile is bound to their account.
func (a *API) CreateAnnotator(w http.ResponseWriter, r *http.Request) {
	var req createAnnotatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in := market.CreateAnnotatorInput{
		Email:         req.Email,
		Name:          req.Name,
		Languages:     req.Languages,
		Country:       req.Country,
		NativeSpeaker: req.NativeSpeaker,
	}
	if uid, role, ok := a.optionalUser(r); ok && role == auth.RoleAnnotator {
		in.UserID = uid
	}
	profile, err := a.svc.CreateAnnotator(r.Context(), in)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (a *API) ListAnnotators(w http.ResponseWriter, r *http.Request) {
	f := market.AnnotatorFilter{
		LanguageCode: r.URL.Query().Get("language_code"),
		Status:       market.AnnotatorStatus(r.URL.Query().Get("status")),
	}
	profiles, err := a.svc.ListAnnotators(r.Context(), f)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	if profiles == nil {
		profiles = []market.AnnotatorProfile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (a *API) GetAnnotator(w http.ResponseWriter, r *http.Request) {
	profile, err := a.svc.GetAnnotator(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
