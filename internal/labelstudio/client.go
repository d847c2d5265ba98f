// Package labelstudio is a thin REST client for the Label Studio API,
// covering project creation, task import, and annotation retrieval.
package labelstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lingualabel.org/internal/obs"
)

// Annotation is one completed annotation attached to an external task.
type Annotation struct {
	TaskID       int64          `json:"task_id"`
	AnnotationID int64          `json:"annotation_id"`
	Result       []any          `json:"result"`
	CompletedBy  map[string]any `json:"completed_by,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client. An empty baseURL or token yields a client whose
// Available always reports false; callers degrade gracefully.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether both the URL and the token are set.
func (c *Client) Configured() bool { return c.baseURL != "" && c.token != "" }

// Available probes the projects endpoint. Probe failures are reported as
// unavailability, never as errors.
func (c *Client) Available(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/api/projects?page_size=1", nil, &out)
	obs.ObserveExternalCall("label_studio", "probe", err)
	return err == nil
}

// CreateProject creates an annotation project with the default labeling
// config for the given annotation type and returns its id.
func (c *Client) CreateProject(ctx context.Context, title, description, annotationType string) (int64, error) {
	body := map[string]any{
		"title":        title,
		"description":  description,
		"label_config": labelConfigFor(annotationType),
	}
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/projects", body, &out)
	obs.ObserveExternalCall("label_studio", "create_project", err)
	if err != nil {
		return 0, err
	}
	return out.ID, nil
}

// ImportTasks pushes task payloads into a project and returns the created
// external task ids in input order.
func (c *Client) ImportTasks(ctx context.Context, projectID int64, items []map[string]any) ([]int64, error) {
	var out struct {
		TaskIDs []int64 `json:"task_ids"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%d/import?return_task_ids=true", projectID), items, &out)
	obs.ObserveExternalCall("label_studio", "import_tasks", err)
	if err != nil {
		return nil, err
	}
	return out.TaskIDs, nil
}

// ListAnnotations fetches all tasks of a project and flattens their
// annotations.
func (c *Client) ListAnnotations(ctx context.Context, projectID int64) ([]Annotation, error) {
	var tasks []struct {
		ID          int64            `json:"id"`
		Annotations []map[string]any `json:"annotations"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks?page_size=1000", projectID), nil, &tasks)
	obs.ObserveExternalCall("label_studio", "list_annotations", err)
	if err != nil {
		return nil, err
	}

	var out []Annotation
	for _, t := range tasks {
		for _, raw := range t.Annotations {
			a := Annotation{TaskID: t.ID}
			if id, ok := raw["id"].(float64); ok {
				a.AnnotationID = int64(id)
			}
			if res, ok := raw["result"].([]any); ok {
				a.Result = res
			}
			if by, ok := raw["completed_by"].(map[string]any); ok {
				a.CompletedBy = by
			}
			if s, ok := raw["created_at"].(string); ok {
				a.CreatedAt = s
			}
			if s, ok := raw["updated_at"].(string); ok {
				a.UpdatedAt = s
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// ProjectURL returns the editor URL for an external project.
func (c *Client) ProjectURL(projectID int64) string {
	if c.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/projects/%d", c.baseURL, projectID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("label studio: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 256))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("label studio: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Default labeling configs keyed by annotation type. Unknown types fall back
// to single-choice classification.
var labelConfigs = map[string]string{
	"classification": `<View>
  <Text name="text" value="$text"/>
  <Choices name="label" toName="text" choice="single">
    <Choice value="positive"/>
    <Choice value="negative"/>
    <Choice value="neutral"/>
  </Choices>
</View>`,
	"sentiment": `<View>
  <Text name="text" value="$text"/>
  <Choices name="sentiment" toName="text" choice="single">
    <Choice value="very_positive" alias="Very Positive"/>
    <Choice value="positive" alias="Positive"/>
    <Choice value="neutral" alias="Neutral"/>
    <Choice value="negative" alias="Negative"/>
    <Choice value="very_negative" alias="Very Negative"/>
  </Choices>
</View>`,
	"ner": `<View>
  <Labels name="label" toName="text">
    <Label value="PER" background="#FF0000"/>
    <Label value="ORG" background="#00FF00"/>
    <Label value="LOC" background="#0000FF"/>
    <Label value="MISC" background="#FFFF00"/>
  </Labels>
  <Text name="text" value="$text"/>
</View>`,
	"transcription": `<View>
  <Audio name="audio" value="$audio"/>
  <TextArea name="transcription" toName="audio"
            rows="4" editable="true" maxSubmissions="1"/>
</View>`,
	"translation": `<View>
  <Text name="source_text" value="$text"/>
  <Header value="Translation"/>
  <TextArea name="translation" toName="source_text"
            rows="4" editable="true" maxSubmissions="1"/>
</View>`,
}

func labelConfigFor(annotationType string) string {
	if cfg, ok := labelConfigs[annotationType]; ok {
		return cfg
	}
	return labelConfigs["classification"]
}
