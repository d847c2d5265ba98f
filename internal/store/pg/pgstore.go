package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lingualabel.org/internal/ids"
	"lingualabel.org/internal/market"
)

type Store struct {
	db *sql.DB
}

var _ market.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle. Used by tests with sqlmock.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const projectCols = `id, client_id, name, description, language_code, annotation_type, instructions,
	price_per_task_cents, currency, status, total_tasks, completed_tasks, external_project_id,
	created_at, updated_at`

const taskCols = `id, project_id, data, status, assigned_to, assigned_at, completed_at,
	time_spent_seconds, result, external_task_id, created_at, updated_at`

const annotatorCols = `id, user_id, email, name, languages, country, is_native_speaker,
	status, rating, tasks_completed, payout_account_id, created_at, updated_at`

const withdrawalCols = `id, annotator_id, amount_cents, currency, status, idempotency_key,
	external_payout_id, failure_reason, created_at, updated_at`

// --- projects ---

func (s *Store) CreateProject(ctx context.Context, in market.CreateProjectInput) (market.Project, error) {
	if err := market.ValidateCreateProject(in); err != nil {
		return market.Project{}, err
	}
	p := market.Project{
		ID:                ids.New(),
		ClientID:          in.ClientID,
		Name:              strings.TrimSpace(in.Name),
		Description:       strings.TrimSpace(in.Description),
		LanguageCode:      strings.ToLower(strings.TrimSpace(in.LanguageCode)),
		AnnotationType:    in.AnnotationType,
		Instructions:      strings.TrimSpace(in.Instructions),
		PricePerTaskCents: in.PricePerTaskCents,
		Currency:          market.NormalizeCurrency(in.Currency),
		Status:            market.ProjectDraft,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		insert into projects(id, client_id, name, description, language_code, annotation_type,
			instructions, price_per_task_cents, currency, status, total_tasks, completed_tasks,
			created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,0,$11,$11)
	`, p.ID, p.ClientID, p.Name, p.Description, p.LanguageCode, string(p.AnnotationType),
		p.Instructions, p.PricePerTaskCents, p.Currency, string(p.Status), p.CreatedAt)
	if err != nil {
		return market.Project{}, err
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (market.Project, error) {
	row := s.db.QueryRowContext(ctx, `select `+projectCols+` from projects where id=$1`, id)
	return scanProject(row)
}

func (s *Store) ListProjects(ctx context.Context, f market.ProjectFilter) ([]market.Project, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.ClientID != "" {
		args = append(args, f.ClientID)
		where = append(where, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if f.ActiveOnly {
		args = append(args, string(market.ProjectActive))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	} else if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.LanguageCode != "" {
		args = append(args, strings.ToLower(f.LanguageCode))
		where = append(where, fmt.Sprintf("language_code=$%d", len(args)))
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from projects where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(f.Limit, f.Offset)
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select %s from projects where %s order by created_at desc, id limit $%d offset $%d`,
		projectCols, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []market.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, p)
	}
	return res, total, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, id string, upd market.ProjectUpdate) (market.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return market.Project{}, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProject(tx.QueryRowContext(ctx, `select `+projectCols+` from projects where id=$1 for update`, id))
	if err != nil {
		return market.Project{}, err
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return market.Project{}, fmt.Errorf("%w: name must not be empty", market.ErrValidation)
		}
		p.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		p.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Instructions != nil {
		p.Instructions = strings.TrimSpace(*upd.Instructions)
	}
	if upd.PricePerTaskCents != nil {
		if *upd.PricePerTaskCents <= 0 {
			return market.Project{}, fmt.Errorf("%w: price_per_task_cents must be > 0", market.ErrValidation)
		}
		p.PricePerTaskCents = *upd.PricePerTaskCents
	}
	if upd.Status != nil {
		if !market.CanProjectTransition(p.Status, *upd.Status) {
			return market.Project{}, fmt.Errorf("%w: %s -> %s", market.ErrInvalidTransition, p.Status, *upd.Status)
		}
		p.Status = *upd.Status
	}
	p.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		update projects set name=$2, description=$3, instructions=$4, price_per_task_cents=$5,
			status=$6, updated_at=$7
		where id=$1
	`, p.ID, p.Name, p.Description, p.Instructions, p.PricePerTaskCents, string(p.Status), p.UpdatedAt); err != nil {
		return market.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return market.Project{}, err
	}
	return p, nil
}

func (s *Store) ActivateProject(ctx context.Context, id string) (market.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return market.Project{}, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProject(tx.QueryRowContext(ctx, `select `+projectCols+` from projects where id=$1 for update`, id))
	if err != nil {
		return market.Project{}, err
	}
	if p.Status != market.ProjectDraft {
		return market.Project{}, fmt.Errorf("%w: %s -> %s", market.ErrInvalidTransition, p.Status, market.ProjectActive)
	}
	if p.TotalTasks == 0 {
		return market.Project{}, fmt.Errorf("%w: project has no tasks", market.ErrPrecondition)
	}
	p.Status = market.ProjectActive
	p.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`update projects set status=$2, updated_at=$3 where id=$1`,
		p.ID, string(p.Status), p.UpdatedAt); err != nil {
		return market.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return market.Project{}, err
	}
	return p, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var dummy int
	err = tx.QueryRowContext(ctx, `select 1 from projects where id=$1 for update`, id).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return market.ErrNotFound
	}
	if err != nil {
		return err
	}

	var busy int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from tasks where project_id=$1 and status<>$2`,
		id, string(market.TaskAvailable)).Scan(&busy); err != nil {
		return err
	}
	if busy > 0 {
		return fmt.Errorf("%w: project has tasks past the queue and cannot be deleted", market.ErrConflict)
	}
	// Tasks go with the project via on delete cascade.
	if _, err := tx.ExecContext(ctx, `delete from projects where id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- tasks ---

func (s *Store) AddTasks(ctx context.Context, projectID string, items []map[string]any) ([]market.Task, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no task items given", market.ErrValidation)
	}
	for i, item := range items {
		if len(item) == 0 {
			return nil, fmt.Errorf("%w: task item %d is empty", market.ErrValidation, i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the project so the counter moves with the batch.
	var dummy int
	err = tx.QueryRowContext(ctx, `select 1 from projects where id=$1 for update`, projectID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := make([]market.Task, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", market.ErrValidation, err)
		}
		t := market.Task{
			ID:        ids.New(),
			ProjectID: projectID,
			Data:      item,
			Status:    market.TaskAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.ExecContext(ctx, `
			insert into tasks(id, project_id, data, status, created_at, updated_at)
			values ($1,$2,$3,$4,$5,$5)
		`, t.ID, projectID, data, string(t.Status), now); err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	if _, err := tx.ExecContext(ctx,
		`update projects set total_tasks = total_tasks + $2, updated_at=$3 where id=$1`,
		projectID, len(created), now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ListTasks(ctx context.Context, projectID string, status market.TaskStatus, limit, offset int) ([]market.Task, int, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `select 1 from projects where id=$1`, projectID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, market.ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	cond := `project_id=$1`
	args := []any{projectID}
	if status != "" {
		args = append(args, string(status))
		cond += fmt.Sprintf(" and status=$%d", len(args))
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from tasks where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	lim, off := pageBounds(limit, offset)
	args = append(args, lim, off)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select %s from tasks where %s order by id limit $%d offset $%d`,
		taskCols, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []market.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, t)
	}
	return res, total, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, id string) (market.Task, error) {
	row := s.db.QueryRowContext(ctx, `select `+taskCols+` from tasks where id=$1`, id)
	return scanTask(row)
}

func (s *Store) ClaimTask(ctx context.Context, taskID, annotatorID string) (market.Task, error) {
	if strings.TrimSpace(annotatorID) == "" {
		return market.Task{}, fmt.Errorf("%w: annotator id is required", market.ErrValidation)
	}
	// Single conditional update; exactly one concurrent claimant flips the row.
	row := s.db.QueryRowContext(ctx, `
		update tasks
		set status=$3, assigned_to=$2, assigned_at=now(), updated_at=now()
		where id=$1 and status=$4
		returning `+taskCols+`
	`, taskID, annotatorID, string(market.TaskAssigned), string(market.TaskAvailable))
	t, err := scanTask(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, market.ErrNotFound) {
		return market.Task{}, err
	}
	// Lost the race or the task never existed; look at the row to say which.
	var status string
	var assigned sql.NullString
	err = s.db.QueryRowContext(ctx, `select status, assigned_to from tasks where id=$1`, taskID).Scan(&status, &assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Task{}, market.ErrNotFound
	}
	if err != nil {
		return market.Task{}, err
	}
	if assigned.Valid {
		return market.Task{}, fmt.Errorf("%w: task already claimed", market.ErrConflict)
	}
	return market.Task{}, fmt.Errorf("%w: %s -> %s", market.ErrInvalidTransition, status, market.TaskAssigned)
}

func (s *Store) StartTask(ctx context.Context, taskID, annotatorID string) (market.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		update tasks set status=$3, updated_at=now()
		where id=$1 and assigned_to=$2 and status=$4
		returning `+taskCols+`
	`, taskID, annotatorID, string(market.TaskInProgress), string(market.TaskAssigned))
	t, err := scanTask(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, market.ErrNotFound) {
		return market.Task{}, err
	}
	return market.Task{}, s.diagnoseTaskError(ctx, taskID, annotatorID, market.TaskInProgress)
}

func (s *Store) SubmitTask(ctx context.Context, taskID, annotatorID string, result map[string]any, timeSpentSeconds int) (market.Task, error) {
	if len(result) == 0 {
		return market.Task{}, fmt.Errorf("%w: result is required", market.ErrValidation)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return market.Task{}, fmt.Errorf("%w: %v", market.ErrValidation, err)
	}
	var spent sql.NullInt64
	if timeSpentSeconds > 0 {
		spent = sql.NullInt64{Int64: int64(timeSpentSeconds), Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		update tasks
		set status=$3, result=$4, time_spent_seconds=$5, completed_at=now(), updated_at=now()
		where id=$1 and assigned_to=$2 and status in ($6,$7)
		returning `+taskCols+`
	`, taskID, annotatorID, string(market.TaskSubmitted), payload, spent,
		string(market.TaskAssigned), string(market.TaskInProgress))
	t, err := scanTask(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, market.ErrNotFound) {
		return market.Task{}, err
	}
	return market.Task{}, s.diagnoseTaskError(ctx, taskID, annotatorID, market.TaskSubmitted)
}

func (s *Store) diagnoseTaskError(ctx context.Context, taskID, annotatorID string, to market.TaskStatus) error {
	var status string
	var assigned sql.NullString
	err := s.db.QueryRowContext(ctx, `select status, assigned_to from tasks where id=$1`, taskID).Scan(&status, &assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return market.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !assigned.Valid || assigned.String != annotatorID {
		return fmt.Errorf("%w: task is not assigned to this annotator", market.ErrForbidden)
	}
	return fmt.Errorf("%w: %s -> %s", market.ErrInvalidTransition, status, to)
}

func (s *Store) ReviewTask(ctx context.Context, taskID string, decision market.ReviewDecision) (market.Task, error) {
	if decision != market.DecisionApprove && decision != market.DecisionReject {
		return market.Task{}, fmt.Errorf("%w: decision must be approve or reject", market.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return market.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTask(tx.QueryRowContext(ctx, `select `+taskCols+` from tasks where id=$1 for update`, taskID))
	if err != nil {
		return market.Task{}, err
	}
	if !market.Reviewable(t.Status) {
		return market.Task{}, fmt.Errorf("%w: task is not under review (status %s)", market.ErrInvalidTransition, t.Status)
	}

	now := time.Now().UTC()
	if decision == market.DecisionApprove {
		// Counter moves in the same transaction; completed can never pass total.
		res, err := tx.ExecContext(ctx, `
			update projects set completed_tasks = completed_tasks + 1, updated_at=$2
			where id=$1 and completed_tasks < total_tasks
		`, t.ProjectID, now)
		if err != nil {
			return market.Task{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return market.Task{}, fmt.Errorf("%w: completed task counter would exceed total", market.ErrConflict)
		}
		if _, err := tx.ExecContext(ctx,
			`update tasks set status=$2, updated_at=$3 where id=$1`,
			t.ID, string(market.TaskApproved), now); err != nil {
			return market.Task{}, err
		}
		if t.AssignedTo != nil {
			if _, err := tx.ExecContext(ctx,
				`update annotators set tasks_completed = tasks_completed + 1, updated_at=$2 where user_id=$1`,
				*t.AssignedTo, now); err != nil {
				return market.Task{}, err
			}
		}
		t.Status = market.TaskApproved
	} else {
		if _, err := tx.ExecContext(ctx, `
			update tasks
			set status=$2, assigned_to=null, assigned_at=null, completed_at=null,
				time_spent_seconds=null, result=null, updated_at=$3
			where id=$1
		`, t.ID, string(market.TaskAvailable), now); err != nil {
			return market.Task{}, err
		}
		t.Status = market.TaskAvailable
		t.AssignedTo = nil
		t.AssignedAt = nil
		t.CompletedAt = nil
		t.TimeSpentSeconds = nil
		t.Result = nil
	}
	t.UpdatedAt = now
	if err := tx.Commit(); err != nil {
		return market.Task{}, err
	}
	return t, nil
}

// --- external annotation-tool bookkeeping ---

func (s *Store) SetProjectExternalID(ctx context.Context, projectID string, externalID int64) error {
	res, err := s.db.ExecContext(ctx, `
		update projects set external_project_id=$2, updated_at=now()
		where id=$1 and (external_project_id is null or external_project_id=$2)
	`, projectID, externalID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var current sql.NullInt64
	err = s.db.QueryRowContext(ctx, `select external_project_id from projects where id=$1`, projectID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return market.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: project already bound to external id %d", market.ErrConflict, current.Int64)
}

func (s *Store) ListUnsyncedTasks(ctx context.Context, projectID string) ([]market.Task, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `select 1 from projects where id=$1`, projectID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+taskCols+` from tasks where project_id=$1 and external_task_id is null order by id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []market.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *Store) BindTaskExternalIDs(ctx context.Context, projectID string, byTaskID map[string]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `select 1 from projects where id=$1`, projectID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return market.ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for tid, ext := range byTaskID {
		res, err := tx.ExecContext(ctx, `
			update tasks set external_task_id=$3, updated_at=$4
			where id=$1 and project_id=$2 and (external_task_id is null or external_task_id=$3)
		`, tid, projectID, ext, now)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			continue
		}
		var current sql.NullInt64
		err = tx.QueryRowContext(ctx,
			`select external_task_id from tasks where id=$1 and project_id=$2`, tid, projectID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: task %s", market.ErrNotFound, tid)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: task %s already bound to external id %d", market.ErrConflict, tid, current.Int64)
	}
	return tx.Commit()
}

func (s *Store) ApplyExternalAnnotation(ctx context.Context, projectID string, externalTaskID int64, result map[string]any) (market.Task, bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return market.Task{}, false, fmt.Errorf("%w: %v", market.ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return market.Task{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTask(tx.QueryRowContext(ctx,
		`select `+taskCols+` from tasks where project_id=$1 and external_task_id=$2 for update`,
		projectID, externalTaskID))
	if errors.Is(err, market.ErrNotFound) {
		var exists int
		perr := tx.QueryRowContext(ctx, `select 1 from projects where id=$1`, projectID).Scan(&exists)
		if errors.Is(perr, sql.ErrNoRows) {
			return market.Task{}, false, market.ErrNotFound
		}
		if perr != nil {
			return market.Task{}, false, perr
		}
		return market.Task{}, false, fmt.Errorf("%w: external task %d", market.ErrNotFound, externalTaskID)
	}
	if err != nil {
		return market.Task{}, false, err
	}

	now := time.Now().UTC()
	t.Result = result
	t.UpdatedAt = now
	// Only tasks with a local assignee may advance.
	applied := t.AssignedTo != nil && market.CanTaskTransition(t.Status, market.TaskSubmitted)
	if applied {
		if _, err := tx.ExecContext(ctx,
			`update tasks set result=$2, status=$3, completed_at=$4, updated_at=$4 where id=$1`,
			t.ID, payload, string(market.TaskSubmitted), now); err != nil {
			return market.Task{}, false, err
		}
		t.Status = market.TaskSubmitted
		t.CompletedAt = &now
	} else {
		if _, err := tx.ExecContext(ctx,
			`update tasks set result=$2, updated_at=$3 where id=$1`,
			t.ID, payload, now); err != nil {
			return market.Task{}, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return market.Task{}, false, err
	}
	return t, applied, nil
}

// --- annotator profiles ---

func (s *Store) CreateAnnotator(ctx context.Context, in market.CreateAnnotatorInput) (market.AnnotatorProfile, error) {
	if err := market.ValidateCreateAnnotator(in); err != nil {
		return market.AnnotatorProfile{}, err
	}
	langs := make([]string, 0, len(in.Languages))
	for _, c := range in.Languages {
		langs = append(langs, strings.ToLower(strings.TrimSpace(c)))
	}
	langJSON, err := json.Marshal(langs)
	if err != nil {
		return market.AnnotatorProfile{}, err
	}
	a := market.AnnotatorProfile{
		ID:            ids.New(),
		UserID:        in.UserID,
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Name:          strings.TrimSpace(in.Name),
		Languages:     langs,
		Country:       strings.TrimSpace(in.Country),
		NativeSpeaker: in.NativeSpeaker,
		Status:        market.AnnotatorPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx, `
		insert into annotators(id, user_id, email, name, languages, country, is_native_speaker,
			status, tasks_completed, created_at, updated_at)
		values ($1, nullif($2,''), $3, $4, $5, $6, $7, $8, 0, $9, $9)
		on conflict (email) do nothing
	`, a.ID, a.UserID, a.Email, a.Name, langJSON, a.Country, a.NativeSpeaker, string(a.Status), a.CreatedAt)
	if err != nil {
		return market.AnnotatorProfile{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return market.AnnotatorProfile{}, fmt.Errorf("%w: annotator profile already exists", market.ErrConflict)
	}
	return a, nil
}

func (s *Store) GetAnnotator(ctx context.Context, id string) (market.AnnotatorProfile, error) {
	row := s.db.QueryRowContext(ctx, `select `+annotatorCols+` from annotators where id=$1`, id)
	return scanAnnotator(row)
}

func (s *Store) GetAnnotatorByUser(ctx context.Context, userID string) (market.AnnotatorProfile, error) {
	row := s.db.QueryRowContext(ctx, `select `+annotatorCols+` from annotators where user_id=$1`, userID)
	return scanAnnotator(row)
}

func (s *Store) ListAnnotators(ctx context.Context, f market.AnnotatorFilter) ([]market.AnnotatorProfile, error) {
	cond := `1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		cond += fmt.Sprintf(" and status=$%d", len(args))
	}
	if f.LanguageCode != "" {
		lang, err := json.Marshal([]string{strings.ToLower(f.LanguageCode)})
		if err != nil {
			return nil, err
		}
		args = append(args, lang)
		cond += fmt.Sprintf(" and languages @> $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, `select `+annotatorCols+` from annotators where `+cond+` order by id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []market.AnnotatorProfile
	for rows.Next() {
		a, err := scanAnnotator(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *Store) SetAnnotatorPayoutAccount(ctx context.Context, userID, accountID string) error {
	res, err := s.db.ExecContext(ctx,
		`update annotators set payout_account_id=$2, updated_at=now() where user_id=$1`, userID, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return market.ErrNotFound
	}
	return nil
}

// --- earnings and withdrawals ---

const earnedQuery = `
	select
		coalesce(sum(case when t.status = 'approved' then p.price_per_task_cents else 0 end), 0),
		coalesce(sum(case when t.status in ('submitted','under_review') then p.price_per_task_cents else 0 end), 0)
	from tasks t
	join projects p on p.id = t.project_id
	where t.assigned_to = $1`

const reservedQuery = `
	select coalesce(sum(amount_cents), 0)
	from withdrawals
	where annotator_id = $1 and status <> 'failed'`

func (s *Store) Earnings(ctx context.Context, annotatorID string) (market.Earnings, error) {
	e := market.Earnings{Currency: market.DefaultCurrency}
	if err := s.db.QueryRowContext(ctx, earnedQuery, annotatorID).Scan(&e.TotalEarnedCents, &e.PendingCents); err != nil {
		return market.Earnings{}, err
	}
	var reserved int64
	if err := s.db.QueryRowContext(ctx, reservedQuery, annotatorID).Scan(&reserved); err != nil {
		return market.Earnings{}, err
	}
	e.AvailableCents = e.TotalEarnedCents - reserved
	if e.AvailableCents < 0 {
		e.AvailableCents = 0
	}
	return e, nil
}

func (s *Store) ReserveWithdrawal(ctx context.Context, annotatorID string, amountCents int64, currency, idemKey string) (market.Withdrawal, error) {
	if amountCents <= 0 {
		return market.Withdrawal{}, fmt.Errorf("%w: amount_cents must be > 0", market.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return market.Withdrawal{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Idempotency: return the recorded withdrawal if the key was seen.
	if idemKey != "" {
		w, err := scanWithdrawal(tx.QueryRowContext(ctx,
			`select `+withdrawalCols+` from withdrawals where idempotency_key=$1`, idemKey))
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, market.ErrNotFound) {
			return market.Withdrawal{}, err
		}
	}

	// Serialize reservations per annotator; the balance check and the insert
	// must see the same reserved sum.
	var dummy int
	err = tx.QueryRowContext(ctx, `select 1 from annotators where user_id=$1 for update`, annotatorID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Withdrawal{}, market.ErrNotFound
	}
	if err != nil {
		return market.Withdrawal{}, err
	}

	var earned, pending, reserved int64
	if err := tx.QueryRowContext(ctx, earnedQuery, annotatorID).Scan(&earned, &pending); err != nil {
		return market.Withdrawal{}, err
	}
	if err := tx.QueryRowContext(ctx, reservedQuery, annotatorID).Scan(&reserved); err != nil {
		return market.Withdrawal{}, err
	}
	available := earned - reserved
	if available < 0 {
		available = 0
	}
	if amountCents > available {
		return market.Withdrawal{}, fmt.Errorf("%w: insufficient balance, available %d", market.ErrValidation, available)
	}

	w := market.Withdrawal{
		ID:             ids.New(),
		AnnotatorID:    annotatorID,
		AmountCents:    amountCents,
		Currency:       market.NormalizeCurrency(currency),
		Status:         market.WithdrawalPending,
		IdempotencyKey: idemKey,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		insert into withdrawals(id, annotator_id, amount_cents, currency, status, idempotency_key, created_at, updated_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,$7)
	`, w.ID, w.AnnotatorID, w.AmountCents, w.Currency, string(w.Status), w.IdempotencyKey, w.CreatedAt); err != nil {
		return market.Withdrawal{}, err
	}
	if err := tx.Commit(); err != nil {
		return market.Withdrawal{}, err
	}
	return w, nil
}

func (s *Store) SettleWithdrawal(ctx context.Context, id, payoutID string) (market.Withdrawal, error) {
	row := s.db.QueryRowContext(ctx, `
		update withdrawals
		set status=$2, external_payout_id=nullif($3,''), updated_at=now()
		where id=$1 and status<>$4
		returning `+withdrawalCols+`
	`, id, string(market.WithdrawalCompleted), payoutID, string(market.WithdrawalFailed))
	w, err := scanWithdrawal(row)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, market.ErrNotFound) {
		return market.Withdrawal{}, err
	}
	var status string
	err = s.db.QueryRowContext(ctx, `select status from withdrawals where id=$1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Withdrawal{}, market.ErrNotFound
	}
	if err != nil {
		return market.Withdrawal{}, err
	}
	return market.Withdrawal{}, fmt.Errorf("%w: withdrawal already failed", market.ErrConflict)
}

func (s *Store) FailWithdrawal(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		update withdrawals set status=$2, failure_reason=$3, updated_at=now()
		where id=$1 and status<>$4
	`, id, string(market.WithdrawalFailed), reason, string(market.WithdrawalCompleted))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `select status from withdrawals where id=$1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return market.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: withdrawal already completed", market.ErrConflict)
}

// --- stats ---

func (s *Store) Stats(ctx context.Context) (market.Stats, error) {
	st := market.Stats{
		LanguagesSupported:   len(market.Languages()),
		TotalSpeakersReached: market.TotalSpeakers(),
		Regions:              market.LanguageRegions(),
	}
	err := s.db.QueryRowContext(ctx, `
		select
			(select count(*) from annotators),
			(select count(*) from projects),
			(select count(*) from tasks)
	`).Scan(&st.AnnotatorsRegistered, &st.ProjectsCreated, &st.TasksCreated)
	if err != nil {
		return market.Stats{}, err
	}
	return st, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (market.Project, error) {
	var p market.Project
	var annType, status string
	var ext sql.NullInt64
	err := row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Description, &p.LanguageCode, &annType,
		&p.Instructions, &p.PricePerTaskCents, &p.Currency, &status, &p.TotalTasks,
		&p.CompletedTasks, &ext, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Project{}, market.ErrNotFound
	}
	if err != nil {
		return market.Project{}, err
	}
	p.AnnotationType = market.AnnotationType(annType)
	p.Status = market.ProjectStatus(status)
	if ext.Valid {
		p.ExternalProjectID = &ext.Int64
	}
	return p, nil
}

func scanTask(row rowScanner) (market.Task, error) {
	var t market.Task
	var status string
	var data, result []byte
	var assigned sql.NullString
	var assignedAt, completedAt sql.NullTime
	var spent, ext sql.NullInt64
	err := row.Scan(&t.ID, &t.ProjectID, &data, &status, &assigned, &assignedAt, &completedAt,
		&spent, &result, &ext, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Task{}, market.ErrNotFound
	}
	if err != nil {
		return market.Task{}, err
	}
	t.Status = market.TaskStatus(status)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t.Data); err != nil {
			return market.Task{}, err
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &t.Result); err != nil {
			return market.Task{}, err
		}
	}
	if assigned.Valid {
		t.AssignedTo = &assigned.String
	}
	if assignedAt.Valid {
		at := assignedAt.Time
		t.AssignedAt = &at
	}
	if completedAt.Valid {
		ct := completedAt.Time
		t.CompletedAt = &ct
	}
	if spent.Valid {
		n := int(spent.Int64)
		t.TimeSpentSeconds = &n
	}
	if ext.Valid {
		t.ExternalTaskID = &ext.Int64
	}
	return t, nil
}

func scanAnnotator(row rowScanner) (market.AnnotatorProfile, error) {
	var a market.AnnotatorProfile
	var status string
	var userID, payout sql.NullString
	var rating sql.NullFloat64
	var langs []byte
	err := row.Scan(&a.ID, &userID, &a.Email, &a.Name, &langs, &a.Country, &a.NativeSpeaker,
		&status, &rating, &a.TasksCompleted, &payout, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.AnnotatorProfile{}, market.ErrNotFound
	}
	if err != nil {
		return market.AnnotatorProfile{}, err
	}
	a.Status = market.AnnotatorStatus(status)
	if userID.Valid {
		a.UserID = userID.String
	}
	if payout.Valid {
		a.PayoutAccountID = &payout.String
	}
	if rating.Valid {
		a.Rating = &rating.Float64
	}
	if len(langs) > 0 {
		if err := json.Unmarshal(langs, &a.Languages); err != nil {
			return market.AnnotatorProfile{}, err
		}
	}
	return a, nil
}

func scanWithdrawal(row rowScanner) (market.Withdrawal, error) {
	var w market.Withdrawal
	var status string
	var idem, payout sql.NullString
	var reason sql.NullString
	err := row.Scan(&w.ID, &w.AnnotatorID, &w.AmountCents, &w.Currency, &status, &idem,
		&payout, &reason, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Withdrawal{}, market.ErrNotFound
	}
	if err != nil {
		return market.Withdrawal{}, err
	}
	w.Status = market.WithdrawalStatus(status)
	if idem.Valid {
		w.IdempotencyKey = idem.String
	}
	if payout.Valid {
		w.ExternalPayoutID = &payout.String
	}
	if reason.Valid {
		w.FailureReason = reason.String
	}
	return w, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
