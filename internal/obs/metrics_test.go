package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/api/projects":                  "/api/projects",
		"/api/projects/abc":              "/api/projects/:id",
		"/api/projects/abc/tasks":        "/api/projects/:id/tasks",
		"/api/projects/abc/sync":         "/api/projects/:id/sync",
		"/api/projects/abc/a/b":          "/api/projects/abc/a/b",
		"/api/tasks/abc/claim":           "/api/tasks/:id/claim",
		"/api/annotators/abc":            "/api/annotators/:id",
		"/api/languages/sw":              "/api/languages/:code",
		"/api/languages/region/East%20A": "/api/languages/region/:region",
		"/api/projects?status=active":    "/api/projects",
		"/api/projects/abc?limit=10":     "/api/projects/:id",
		"/api/payments/earnings":         "/api/payments/earnings",
		"/api/payments/connect/onboard":  "/api/payments/connect/onboard",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
