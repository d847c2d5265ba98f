package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"lingualabel.org/internal/audit"
	"lingualabel.org/internal/auth"
)

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        *auth.User `json:"user"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeDetail(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeDetail(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	role := auth.Role(req.Role)
	if !role.Valid() {
		writeDetail(w, http.StatusBadRequest, "role must be client or annotator")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	now := time.Now().UTC()
	u := &auth.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			writeDetail(w, http.StatusConflict, "email already registered")
			return
		}
		a.serviceError(w, err)
		return
	}

	token, err := auth.GenerateToken(u.ID, u.Role, a.tokenTTL)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.registered", map[string]any{"new_user_id": u.ID, "new_role": string(u.Role)})
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: token, TokenType: "bearer", User: u})
}

// Login accepts an OAuth2-style password grant form: username + password.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.PostFormValue("username")))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}

	u, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeDetail(w, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		a.serviceError(w, err)
		return
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		writeDetail(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}
	if !u.Active {
		writeDetail(w, http.StatusForbidden, "account is deactivated")
		return
	}

	token, err := auth.GenerateToken(u.ID, u.Role, a.tokenTTL)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", User: u})
}

func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	uid, _, ok := currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	u, err := a.users.Find(r.Context(), uid)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
