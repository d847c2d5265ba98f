package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"lingualabel.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/auth/register",
	"/api/auth/login",
	"/api/stats",
}

var publicPrefixes = []string{
	"/api/languages",
	"/api/annotators",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.ContextWithUser(r.Context(), claims.Subject, auth.Role(claims.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// optionalUser resolves the caller on public routes, where withAuth does not
// run. A present but invalid token is treated as anonymous.
func (a *API) optionalUser(r *http.Request) (string, auth.Role, bool) {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		return uid, auth.RoleFromContext(r.Context()), true
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return "", "", false
	}
	claims, err := auth.ParseAndValidate(token)
	if err != nil {
		return "", "", false
	}
	return claims.Subject, auth.Role(claims.Role), true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
