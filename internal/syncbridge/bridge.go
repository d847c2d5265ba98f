// Package syncbridge reconciles local projects and tasks with an external
// annotation tool. Projects are created in the tool lazily on first sync and
// keyed by the stored external id, so re-running a sync never duplicates
// anything.
package syncbridge

import (
	"context"
	"errors"
	"fmt"

	"lingualabel.org/internal/audit"
	"lingualabel.org/internal/labelstudio"
	"lingualabel.org/internal/market"
)

// AnnotationTool is the external tool surface the bridge needs. Satisfied by
// *labelstudio.Client.
type AnnotationTool interface {
	Available(ctx context.Context) bool
	CreateProject(ctx context.Context, title, description, annotationType string) (int64, error)
	ImportTasks(ctx context.Context, projectID int64, items []map[string]any) ([]int64, error)
	ListAnnotations(ctx context.Context, projectID int64) ([]labelstudio.Annotation, error)
	ProjectURL(projectID int64) string
}

// Result summarizes one sync run.
type Result struct {
	Available         bool   `json:"is_available"`
	ExternalProjectID *int64 `json:"external_project_id,omitempty"`
	ProjectURL        string `json:"project_url,omitempty"`
	SyncedTasks       int    `json:"synced_tasks"`
	SyncedAnnotations int    `json:"synced_annotations"`
	Message           string `json:"message,omitempty"`
}

type Bridge struct {
	svc  market.Service
	tool AnnotationTool
}

func New(svc market.Service, tool AnnotationTool) *Bridge {
	return &Bridge{svc: svc, tool: tool}
}

// Sync pushes a project and its unsynced tasks to the external tool, and
// optionally pulls completed annotations back. When the tool is unreachable
// the call succeeds with Available=false and no side effects.
func (b *Bridge) Sync(ctx context.Context, projectID string, syncAnnotations bool) (Result, error) {
	p, err := b.svc.GetProject(ctx, projectID)
	if err != nil {
		return Result{}, err
	}

	if b.tool == nil || !b.tool.Available(ctx) {
		return Result{Available: false, Message: "annotation tool is not available"}, nil
	}

	res := Result{Available: true}

	extID, err := b.ensureExternalProject(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", market.ErrExternal, err)
	}
	res.ExternalProjectID = &extID
	res.ProjectURL = b.tool.ProjectURL(extID)

	synced, err := b.pushTasks(ctx, projectID, extID)
	if err != nil {
		return Result{}, err
	}
	res.SyncedTasks = synced

	if syncAnnotations {
		applied, err := b.pullAnnotations(ctx, projectID, extID)
		if err != nil {
			return Result{}, err
		}
		res.SyncedAnnotations = applied
	}

	audit.LogEvent(ctx, "project.synced", map[string]any{
		"project_id":          projectID,
		"external_project_id": extID,
		"synced_tasks":        res.SyncedTasks,
		"synced_annotations":  res.SyncedAnnotations,
	})
	return res, nil
}

func (b *Bridge) ensureExternalProject(ctx context.Context, p market.Project) (int64, error) {
	if p.ExternalProjectID != nil {
		return *p.ExternalProjectID, nil
	}
	extID, err := b.tool.CreateProject(ctx, p.Name, p.Description, string(p.AnnotationType))
	if err != nil {
		return 0, err
	}
	if err := b.svc.SetProjectExternalID(ctx, p.ID, extID); err != nil {
		return 0, err
	}
	return extID, nil
}

func (b *Bridge) pushTasks(ctx context.Context, projectID string, extID int64) (int, error) {
	tasks, err := b.svc.ListUnsyncedTasks(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	items := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		items[i] = t.Data
	}
	extIDs, err := b.tool.ImportTasks(ctx, extID, items)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", market.ErrExternal, err)
	}

	// Bind only ids the tool actually returned; a short response leaves the
	// tail unsynced for the next run rather than guessing.
	n := len(extIDs)
	if n > len(tasks) {
		n = len(tasks)
	}
	byTaskID := make(map[string]int64, n)
	for i := 0; i < n; i++ {
		byTaskID[tasks[i].ID] = extIDs[i]
	}
	if len(byTaskID) == 0 {
		return 0, nil
	}
	if err := b.svc.BindTaskExternalIDs(ctx, projectID, byTaskID); err != nil {
		return 0, err
	}
	return len(byTaskID), nil
}

func (b *Bridge) pullAnnotations(ctx context.Context, projectID string, extID int64) (int, error) {
	anns, err := b.tool.ListAnnotations(ctx, extID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", market.ErrExternal, err)
	}
	applied := 0
	for _, a := range anns {
		result := map[string]any{
			"annotations": a.Result,
			"source":      "label_studio",
		}
		_, moved, err := b.svc.ApplyExternalAnnotation(ctx, projectID, a.TaskID, result)
		if err != nil {
			// Annotations for tasks the platform never pushed are skipped.
			if errors.Is(err, market.ErrNotFound) {
				continue
			}
			return applied, err
		}
		if moved {
			applied++
		}
	}
	return applied, nil
}
