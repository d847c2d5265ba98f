package httpapi

import (
	"net/http"
)

func (a *API) ConnectStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireAnnotator(w, r)
	if !ok {
		return
	}
	st, err := a.pay.ConnectStatus(r.Context(), uid)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type onboardRequest struct {
	Country    string `json:"country"`
	ReturnURL  string `json:"return_url"`
	RefreshURL string `json:"refresh_url"`
}

func (a *API) StartOnboarding(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireAnnotator(w, r)
	if !ok {
		return
	}
	var req onboardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReturnURL == "" || req.RefreshURL == "" {
		writeDetail(w, http.StatusBadRequest, "return_url and refresh_url are required")
		return
	}
	url, err := a.pay.StartOnboarding(r.Context(), uid, req.Country, req.ReturnURL, req.RefreshURL)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"onboarding_url": url})
}

func (a *API) Earnings(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireAnnotator(w, r)
	if !ok {
		return
	}
	e, err := a.pay.Earnings(r.Context(), uid)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type withdrawRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Withdraw moves available earnings to the connected account. Clients may
// pass an Idempotency-Key header to make retries safe.
func (a *API) Withdraw(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireAnnotator(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	idemKey := r.Header.Get("Idempotency-Key")
	wd, err := a.pay.Withdraw(r.Context(), uid, req.AmountCents, req.Currency, idemKey)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}
