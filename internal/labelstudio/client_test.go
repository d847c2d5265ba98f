package labelstudio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "test-token", 2*time.Second)
	t.Cleanup(c.http.CloseIdleConnections)
	return c
}

func TestUnconfiguredClientIsUnavailable(t *testing.T) {
	c := New("", "", 0)
	if c.Configured() {
		t.Fatal("empty client must not be configured")
	}
	if c.Available(context.Background()) {
		t.Fatal("empty client must not be available")
	}
}

func TestAvailableProbe(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-token" {
			t.Errorf("auth header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 3})
	})
	if !c.Available(context.Background()) {
		t.Fatal("expected available")
	}
}

func TestCreateProject(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/projects" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["title"] != "NER batch" {
			t.Errorf("title = %v", body["title"])
		}
		if cfg, _ := body["label_config"].(string); cfg == "" {
			t.Error("label_config must be set")
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 17})
	})

	id, err := c.CreateProject(context.Background(), "NER batch", "desc", "ner")
	if err != nil {
		t.Fatal(err)
	}
	if id != 17 {
		t.Fatalf("project id = %d", id)
	}
}

func TestImportTasks(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/17/import" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"task_ids": []int64{101, 102}})
	})

	ids, err := c.ImportTasks(context.Background(), 17, []map[string]any{{"text": "a"}, {"text": "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 101 || ids[1] != 102 {
		t.Fatalf("task ids = %v", ids)
	}
}

func TestListAnnotations(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"id": 101,
				"annotations": []map[string]any{
					{"id": 9, "result": []any{map[string]any{"value": "positive"}}},
				},
			},
			{"id": 102, "annotations": []map[string]any{}},
		})
	})

	anns, err := c.ListAnnotations(context.Background(), 17)
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 1 {
		t.Fatalf("annotations = %d, want 1", len(anns))
	}
	if anns[0].TaskID != 101 || anns[0].AnnotationID != 9 || len(anns[0].Result) != 1 {
		t.Fatalf("unexpected annotation: %+v", anns[0])
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	if _, err := c.CreateProject(context.Background(), "x", "y", "ner"); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestLabelConfigFallback(t *testing.T) {
	if labelConfigFor("made-up") != labelConfigs["classification"] {
		t.Fatal("unknown type must fall back to classification")
	}
	for _, typ := range []string{"classification", "sentiment", "ner", "transcription", "translation"} {
		if labelConfigFor(typ) == "" {
			t.Errorf("empty config for %s", typ)
		}
	}
}
