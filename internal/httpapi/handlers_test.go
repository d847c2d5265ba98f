package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"lingualabel.org/internal/auth"
	"lingualabel.org/internal/labelstudio"
	"lingualabel.org/internal/market"
	"lingualabel.org/internal/payments"
	"lingualabel.org/internal/stripe"
	"lingualabel.org/internal/syncbridge"
)

// fakeTool is an in-process annotation tool for the sync endpoint.
type fakeTool struct {
	available bool
}

func (f *fakeTool) Available(ctx context.Context) bool { return f.available }
func (f *fakeTool) CreateProject(ctx context.Context, title, description, annotationType string) (int64, error) {
	return 42, nil
}
func (f *fakeTool) ImportTasks(ctx context.Context, projectID int64, items []map[string]any) ([]int64, error) {
	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = int64(1000 + i)
	}
	return ids, nil
}
func (f *fakeTool) ListAnnotations(ctx context.Context, projectID int64) ([]labelstudio.Annotation, error) {
	return nil, nil
}
func (f *fakeTool) ProjectURL(projectID int64) string { return "http://tool.local/projects/42" }

// fakeProcessor approves every processor call.
type fakeProcessor struct{}

func (fakeProcessor) Configured() bool { return true }
func (fakeProcessor) CreateExpressAccount(ctx context.Context, email, country string) (string, error) {
	return "acct_test", nil
}
func (fakeProcessor) AccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return "https://connect.example/onboard", nil
}
func (fakeProcessor) AccountStatus(ctx context.Context, accountID string) (stripe.Account, error) {
	return stripe.Account{ID: accountID, PayoutsEnabled: true, DetailsSubmitted: true}, nil
}
func (fakeProcessor) Transfer(ctx context.Context, accountID string, amountCents int64, currency, idemKey string) (string, error) {
	return "tr_test", nil
}
func (fakeProcessor) Payout(ctx context.Context, accountID string, amountCents int64, currency, idemKey string) (string, error) {
	return "po_test", nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	return newTestAPIWithTool(t, &fakeTool{available: true})
}

func newTestAPIWithTool(t *testing.T, tool syncbridge.AnnotationTool) *apiClient {
	t.Helper()

	t.Setenv("LINGUALABEL_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	svc := market.NewInMemory()
	api := New(Options{
		Market:     svc,
		Users:      auth.NewMemoryStore(),
		Bridge:     syncbridge.New(svc, tool),
		Payments:   payments.New(svc, fakeProcessor{}),
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) postForm(path string, form url.Values) *http.Response {
	c.t.Helper()
	resp, err := c.client.Post(c.baseURL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		c.t.Fatalf("post form: %v", err)
	}
	return resp
}

// register creates a user and returns a ready Authorization header.
func (c *apiClient) register(email, role string) map[string]string {
	c.t.Helper()
	resp := c.post("/api/auth/register", map[string]any{
		"email":     email,
		"password":  "password123",
		"full_name": "Test User",
		"role":      role,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register status = %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.AccessToken == "" {
		c.t.Fatal("empty access token")
	}
	return map[string]string{"Authorization": "Bearer " + payload.AccessToken}
}

func (c *apiClient) createActiveProject(clientAuth map[string]string, taskCount int) (string, []string) {
	c.t.Helper()
	resp := c.post("/api/projects", map[string]any{
		"name":                 "Swahili sentiment",
		"description":          "Sentiment labels for product reviews",
		"language_code":        "sw",
		"annotation_type":      "sentiment",
		"instructions":         "Pick the sentiment that fits the text",
		"price_per_task_cents": 250,
	}, clientAuth)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("create project status = %d", resp.StatusCode)
	}
	project := decode[map[string]any](c.t, resp)
	projectID := project["id"].(string)

	items := make([]map[string]any, taskCount)
	for i := range items {
		items[i] = map[string]any{"text": "sample"}
	}
	resp = c.post("/api/projects/"+projectID+"/tasks", map[string]any{"items": items}, clientAuth)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("add tasks status = %d", resp.StatusCode)
	}
	added := decode[map[string]any](c.t, resp)
	var taskIDs []string
	for _, raw := range added["tasks"].([]any) {
		taskIDs = append(taskIDs, raw.(map[string]any)["id"].(string))
	}

	resp = c.post("/api/projects/"+projectID+"/activate", nil, clientAuth)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("activate status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	return projectID, taskIDs
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func errDetail(t *testing.T, r *http.Response) string {
	t.Helper()
	body := decode[map[string]any](t, r)
	detail, _ := body["detail"].(string)
	if detail == "" {
		t.Fatal("error response missing detail")
	}
	return detail
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	resp := api.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["version"] != "test" {
		t.Fatalf("version = %v", body["version"])
	}
}

func TestRegisterLoginMe(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.register("client@example.com", "client")

	// Duplicate registration conflicts.
	resp := api.post("/api/auth/register", map[string]any{
		"email": "client@example.com", "password": "password123", "full_name": "X", "role": "client",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", resp.StatusCode)
	}
	errDetail(t, resp)

	// OAuth2-style form login.
	resp = api.postForm("/api/auth/login", url.Values{
		"username": {"client@example.com"},
		"password": {"password123"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	payload := decode[tokenResponse](t, resp)
	if payload.TokenType != "bearer" || payload.User == nil || payload.User.Email != "client@example.com" {
		t.Fatalf("unexpected login payload: %+v", payload)
	}

	resp = api.postForm("/api/auth/login", url.Values{
		"username": {"client@example.com"},
		"password": {"wrong-password"},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}
	errDetail(t, resp)

	resp = api.get("/api/auth/me", authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	me := decode[map[string]any](t, resp)
	if me["email"] != "client@example.com" {
		t.Fatalf("me email = %v", me["email"])
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Fatal("password hash leaked in response")
	}
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)
	cases := []struct {
		name string
		body map[string]any
	}{
		{"bad email", map[string]any{"email": "nope", "password": "password123", "role": "client"}},
		{"short password", map[string]any{"email": "a@b.c", "password": "short", "role": "client"}},
		{"bad role", map[string]any{"email": "a@b.c", "password": "password123", "role": "admin"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := api.post("/api/auth/register", tc.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			errDetail(t, resp)
		})
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/api/projects", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	errDetail(t, resp)

	resp = api.get("/api/projects", map[string]string{"Authorization": "Bearer garbage"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProjectOwnershipEnforced(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")
	rival := api.register("rival@example.com", "client")
	worker := api.register("worker@example.com", "annotator")

	projectID, _ := api.createActiveProject(owner, 2)

	// Another client gets 403 on the owner's project.
	resp := api.get("/api/projects/"+projectID, rival)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("rival get status = %d", resp.StatusCode)
	}
	errDetail(t, resp)

	resp = api.post("/api/projects/"+projectID+"/tasks", map[string]any{
		"items": []map[string]any{{"text": "x"}},
	}, rival)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("rival add tasks status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Annotators see active projects but cannot create them.
	resp = api.get("/api/projects/"+projectID, worker)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("worker get status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/api/projects", map[string]any{
		"name": "X", "description": "d", "language_code": "sw",
		"annotation_type": "ner", "instructions": "i", "price_per_task_cents": 100,
	}, worker)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("annotator create status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDraftProjectsHiddenFromAnnotators(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")
	worker := api.register("worker@example.com", "annotator")

	resp := api.post("/api/projects", map[string]any{
		"name": "Draft only", "description": "Named entities in Yoruba news",
		"language_code": "yo", "annotation_type": "ner",
		"instructions": "Tag every entity span", "price_per_task_cents": 100,
	}, owner)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project status = %d", resp.StatusCode)
	}
	project := decode[map[string]any](t, resp)
	projectID := project["id"].(string)

	resp = api.get("/api/projects/"+projectID, worker)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("draft visible to annotator: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/api/projects", worker)
	listing := decode[map[string]any](t, resp)
	if total := listing["total"].(float64); total != 0 {
		t.Fatalf("annotator listing total = %v", total)
	}
}

func TestTaskPipeline(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")
	worker := api.register("worker@example.com", "annotator")
	rival := api.register("rival@example.com", "annotator")

	_, taskIDs := api.createActiveProject(owner, 1)
	taskID := taskIDs[0]

	resp := api.post("/api/tasks/"+taskID+"/claim", nil, worker)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d", resp.StatusCode)
	}
	claimed := decode[map[string]any](t, resp)
	if claimed["status"] != "assigned" {
		t.Fatalf("claimed status = %v", claimed["status"])
	}

	// A second claim loses.
	resp = api.post("/api/tasks/"+taskID+"/claim", nil, rival)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("rival claim status = %d", resp.StatusCode)
	}
	errDetail(t, resp)

	resp = api.post("/api/tasks/"+taskID+"/start", nil, worker)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Only the assignee may submit.
	resp = api.post("/api/tasks/"+taskID+"/submit", map[string]any{
		"result": map[string]any{"label": "positive"},
	}, rival)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("rival submit status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/api/tasks/"+taskID+"/submit", map[string]any{
		"result":             map[string]any{"label": "positive"},
		"time_spent_seconds": 42,
	}, worker)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	submitted := decode[map[string]any](t, resp)
	if submitted["status"] != "submitted" {
		t.Fatalf("submitted status = %v", submitted["status"])
	}

	// Annotators cannot review.
	resp = api.post("/api/tasks/"+taskID+"/review", map[string]any{"decision": "approve"}, worker)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("annotator review status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/api/tasks/"+taskID+"/review", map[string]any{"decision": "approve"}, owner)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("review status = %d", resp.StatusCode)
	}
	reviewed := decode[map[string]any](t, resp)
	if reviewed["status"] != "approved" {
		t.Fatalf("reviewed status = %v", reviewed["status"])
	}

	// Approved work shows up as earnings.
	resp = api.get("/api/payments/earnings", worker)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("earnings status = %d", resp.StatusCode)
	}
	earnings := decode[map[string]any](t, resp)
	if earnings["total_earned_cents"].(float64) != 250 {
		t.Fatalf("earned = %v", earnings["total_earned_cents"])
	}

	// Reviewing a decided task conflicts.
	resp = api.post("/api/tasks/"+taskID+"/review", map[string]any{"decision": "approve"}, owner)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-review status = %d", resp.StatusCode)
	}
	errDetail(t, resp)
}

func TestRejectedTaskReturnsToMarketplace(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")
	worker := api.register("worker@example.com", "annotator")

	_, taskIDs := api.createActiveProject(owner, 1)
	taskID := taskIDs[0]

	api.post("/api/tasks/"+taskID+"/claim", nil, worker).Body.Close()
	api.post("/api/tasks/"+taskID+"/submit", map[string]any{
		"result": map[string]any{"label": "negative"},
	}, worker).Body.Close()

	resp := api.post("/api/tasks/"+taskID+"/review", map[string]any{"decision": "reject"}, owner)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject status = %d", resp.StatusCode)
	}
	rejected := decode[map[string]any](t, resp)
	if rejected["status"] != "available" {
		t.Fatalf("rejected task status = %v, want requeued", rejected["status"])
	}
	if _, assigned := rejected["assigned_to"]; assigned && rejected["assigned_to"] != nil {
		t.Fatalf("rejected task still assigned: %v", rejected["assigned_to"])
	}
}

func TestSyncEndpoint(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")
	projectID, _ := api.createActiveProject(owner, 3)

	resp := api.post("/api/projects/"+projectID+"/sync", nil, owner)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	res := decode[map[string]any](t, resp)
	if res["is_available"] != true {
		t.Fatalf("is_available = %v", res["is_available"])
	}
	if res["synced_tasks"].(float64) != 3 {
		t.Fatalf("synced_tasks = %v", res["synced_tasks"])
	}
}

func TestSyncUnavailableTool(t *testing.T) {
	api := newTestAPIWithTool(t, &fakeTool{available: false})
	owner := api.register("owner@example.com", "client")
	projectID, _ := api.createActiveProject(owner, 1)

	resp := api.post("/api/projects/"+projectID+"/sync", nil, owner)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	res := decode[map[string]any](t, resp)
	if res["is_available"] != false {
		t.Fatalf("is_available = %v", res["is_available"])
	}
}

func TestWithdrawOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")
	worker := api.register("worker@example.com", "annotator")

	// Profile bound to the authenticated annotator.
	resp := api.post("/api/annotators", map[string]any{
		"email":     "worker@example.com",
		"name":      "Worker",
		"languages": []string{"sw"},
		"country":   "KE",
	}, worker)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create annotator status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Earn 2 x 250 cents.
	_, taskIDs := api.createActiveProject(owner, 2)
	for _, id := range taskIDs {
		api.post("/api/tasks/"+id+"/claim", nil, worker).Body.Close()
		api.post("/api/tasks/"+id+"/submit", map[string]any{
			"result": map[string]any{"label": "positive"},
		}, worker).Body.Close()
		api.post("/api/tasks/"+id+"/review", map[string]any{"decision": "approve"}, owner).Body.Close()
	}

	resp = api.post("/api/payments/connect/onboard", map[string]any{
		"country":     "KE",
		"return_url":  "https://app/return",
		"refresh_url": "https://app/refresh",
	}, worker)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("onboard status = %d", resp.StatusCode)
	}
	onboard := decode[map[string]any](t, resp)
	if onboard["onboarding_url"] == "" {
		t.Fatal("missing onboarding url")
	}

	headers := map[string]string{
		"Authorization":   worker["Authorization"],
		"Idempotency-Key": "wd-http-1",
	}
	resp = api.do(http.MethodPost, "/api/payments/withdraw", map[string]any{"amount_cents": 300}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw status = %d", resp.StatusCode)
	}
	first := decode[map[string]any](t, resp)
	if first["status"] != "completed" {
		t.Fatalf("withdrawal status = %v", first["status"])
	}

	// Retrying with the same key replays the original withdrawal.
	resp = api.do(http.MethodPost, "/api/payments/withdraw", map[string]any{"amount_cents": 300}, headers)
	second := decode[map[string]any](t, resp)
	if second["id"] != first["id"] {
		t.Fatalf("replay produced a new withdrawal: %v vs %v", second["id"], first["id"])
	}

	// Overdrawing the remaining balance fails validation.
	resp = api.post("/api/payments/withdraw", map[string]any{"amount_cents": 5000}, worker)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("overdraw status = %d", resp.StatusCode)
	}
	errDetail(t, resp)
}

func TestPaymentsRequireAnnotatorRole(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")

	resp := api.get("/api/payments/earnings", owner)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	errDetail(t, resp)
}

func TestPublicCatalogAndStats(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/api/languages", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("languages status = %d", resp.StatusCode)
	}
	langs := decode[[]map[string]any](t, resp)
	if len(langs) == 0 {
		t.Fatal("empty language catalog")
	}

	resp = api.get("/api/languages/sw", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("language status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/api/languages/zz", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown language status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/api/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	stats := decode[map[string]any](t, resp)
	if stats["languages_supported"].(float64) == 0 {
		t.Fatal("stats missing language count")
	}
}

func TestValidationEnvelope(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")

	resp := api.post("/api/projects", map[string]any{
		"name": "", "language_code": "sw", "annotation_type": "sentiment", "price_per_task_cents": 0,
	}, owner)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	errDetail(t, resp)
}

func TestActivateEmptyProjectFails(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("owner@example.com", "client")

	resp := api.post("/api/projects", map[string]any{
		"name": "Empty", "description": "No tasks yet", "language_code": "sw",
		"annotation_type": "sentiment", "instructions": "n/a", "price_per_task_cents": 100,
	}, owner)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project status = %d", resp.StatusCode)
	}
	project := decode[map[string]any](t, resp)
	projectID := project["id"].(string)

	resp = api.post("/api/projects/"+projectID+"/activate", nil, owner)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	errDetail(t, resp)
}
