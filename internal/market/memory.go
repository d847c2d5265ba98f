package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lingualabel.org/internal/ids"
)

// InMemory implements Service with in-process concurrency safety. It backs
// the test harness and the database-less development mode; the Postgres
// store is the durable implementation.
type InMemory struct {
	mu          sync.RWMutex
	projects    map[string]*Project
	tasks       map[string]*Task
	tasksByProj map[string][]string
	annotators  map[string]*AnnotatorProfile
	withdrawals map[string]*Withdrawal
	idem        map[string]string // idempotency key -> withdrawal id
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty marketplace store.
func NewInMemory() *InMemory {
	return &InMemory{
		projects:    make(map[string]*Project),
		tasks:       make(map[string]*Task),
		tasksByProj: make(map[string][]string),
		annotators:  make(map[string]*AnnotatorProfile),
		withdrawals: make(map[string]*Withdrawal),
		idem:        make(map[string]string),
	}
}

// Projects -----------------------------------------------------------------

func (s *InMemory) CreateProject(ctx context.Context, in CreateProjectInput) (Project, error) {
	if err := ValidateCreateProject(in); err != nil {
		return Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := &Project{
		ID:                ids.New(),
		ClientID:          in.ClientID,
		Name:              strings.TrimSpace(in.Name),
		Description:       strings.TrimSpace(in.Description),
		LanguageCode:      strings.ToLower(strings.TrimSpace(in.LanguageCode)),
		AnnotationType:    in.AnnotationType,
		Instructions:      strings.TrimSpace(in.Instructions),
		PricePerTaskCents: in.PricePerTaskCents,
		Currency:          NormalizeCurrency(in.Currency),
		Status:            ProjectDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.projects[p.ID] = p
	return *p, nil
}

func (s *InMemory) GetProject(ctx context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return *p, nil
}

func (s *InMemory) ListProjects(ctx context.Context, f ProjectFilter) ([]Project, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Project
	for _, p := range s.projects {
		if f.ClientID != "" && p.ClientID != f.ClientID {
			continue
		}
		if f.ActiveOnly && p.Status != ProjectActive {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.LanguageCode != "" && p.LanguageCode != strings.ToLower(f.LanguageCode) {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	return paginate(all, f.Limit, f.Offset), total, nil
}

func (s *InMemory) UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return Project{}, fmt.Errorf("%w: name must not be empty", ErrValidation)
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
			return Project{}, fmt.Errorf("%w: price_per_task_cents must be > 0", ErrValidation)
		}
		p.PricePerTaskCents = *upd.PricePerTaskCents
	}
	if upd.Status != nil {
		if !CanProjectTransition(p.Status, *upd.Status) {
			return Project{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, *upd.Status)
		}
		p.Status = *upd.Status
	}
	p.UpdatedAt = time.Now().UTC()
	return *p, nil
}

func (s *InMemory) ActivateProject(ctx context.Context, id string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	if !CanProjectTransition(p.Status, ProjectActive) || p.Status != ProjectDraft {
		return Project{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, ProjectActive)
	}
	if p.TotalTasks == 0 {
		return Project{}, fmt.Errorf("%w: project has no tasks", ErrPrecondition)
	}
	p.Status = ProjectActive
	p.UpdatedAt = time.Now().UTC()
	return *p, nil
}

func (s *InMemory) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	for _, tid := range s.tasksByProj[id] {
		if s.tasks[tid].Status != TaskAvailable {
			return fmt.Errorf("%w: project has tasks past the queue and cannot be deleted", ErrConflict)
		}
	}
	for _, tid := range s.tasksByProj[id] {
		delete(s.tasks, tid)
	}
	delete(s.tasksByProj, id)
	delete(s.projects, p.ID)
	return nil
}

// Tasks --------------------------------------------------------------------

func (s *InMemory) AddTasks(ctx context.Context, projectID string, items []map[string]any) ([]Task, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no task items given", ErrValidation)
	}
	for i, item := range items {
		if len(item) == 0 {
			return nil, fmt.Errorf("%w: task item %d is empty", ErrValidation, i)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	created := make([]Task, 0, len(items))
	for _, item := range items {
		t := &Task{
			ID:        ids.New(),
			ProjectID: projectID,
			Data:      copyPayload(item),
			Status:    TaskAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.tasks[t.ID] = t
		s.tasksByProj[projectID] = append(s.tasksByProj[projectID], t.ID)
		created = append(created, *t)
	}
	// Counter moves with the batch; the whole insert is one critical section.
	p.TotalTasks += len(created)
	p.UpdatedAt = now
	return created, nil
}

func (s *InMemory) ListTasks(ctx context.Context, projectID string, status TaskStatus, limit, offset int) ([]Task, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, 0, ErrNotFound
	}
	var all []Task
	for _, tid := range s.tasksByProj[projectID] {
		t := s.tasks[tid]
		if status != "" && t.Status != status {
			continue
		}
		all = append(all, *t)
	}
	total := len(all)
	return paginate(all, limit, offset), total, nil
}

func (s *InMemory) GetTask(ctx context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *t, nil
}

func (s *InMemory) ClaimTask(ctx context.Context, taskID, annotatorID string) (Task, error) {
	if strings.TrimSpace(annotatorID) == "" {
		return Task{}, fmt.Errorf("%w: annotator id is required", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	// The check and the write happen under one lock; exactly one concurrent
	// claimant wins.
	if t.Status != TaskAvailable {
		if t.AssignedTo != nil {
			return Task{}, fmt.Errorf("%w: task already claimed", ErrConflict)
		}
		return Task{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskAssigned)
	}
	now := time.Now().UTC()
	t.Status = TaskAssigned
	t.AssignedTo = &annotatorID
	t.AssignedAt = &now
	t.UpdatedAt = now
	return *t, nil
}

func (s *InMemory) StartTask(ctx context.Context, taskID, annotatorID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	if t.AssignedTo == nil || *t.AssignedTo != annotatorID {
		return Task{}, fmt.Errorf("%w: task is not assigned to this annotator", ErrForbidden)
	}
	if !CanTaskTransition(t.Status, TaskInProgress) {
		return Task{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskInProgress)
	}
	t.Status = TaskInProgress
	t.UpdatedAt = time.Now().UTC()
	return *t, nil
}

func (s *InMemory) SubmitTask(ctx context.Context, taskID, annotatorID string, result map[string]any, timeSpentSeconds int) (Task, error) {
	if len(result) == 0 {
		return Task{}, fmt.Errorf("%w: result is required", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	if t.AssignedTo == nil || *t.AssignedTo != annotatorID {
		return Task{}, fmt.Errorf("%w: task is not assigned to this annotator", ErrForbidden)
	}
	if !CanTaskTransition(t.Status, TaskSubmitted) {
		return Task{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskSubmitted)
	}
	now := time.Now().UTC()
	t.Status = TaskSubmitted
	t.Result = copyPayload(result)
	t.CompletedAt = &now
	if timeSpentSeconds > 0 {
		t.TimeSpentSeconds = &timeSpentSeconds
	}
	t.UpdatedAt = now
	return *t, nil
}

func (s *InMemory) ReviewTask(ctx context.Context, taskID string, decision ReviewDecision) (Task, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return Task{}, fmt.Errorf("%w: decision must be approve or reject", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	if !Reviewable(t.Status) {
		return Task{}, fmt.Errorf("%w: task is not under review (status %s)", ErrInvalidTransition, t.Status)
	}
	p := s.projects[t.ProjectID]
	now := time.Now().UTC()

	if decision == DecisionApprove {
		if p != nil && p.CompletedTasks >= p.TotalTasks {
			return Task{}, fmt.Errorf("%w: completed task counter would exceed total", ErrConflict)
		}
		t.Status = TaskApproved
		if p != nil {
			p.CompletedTasks++
			p.UpdatedAt = now
		}
		if t.AssignedTo != nil {
			if prof := s.annotatorByUserLocked(*t.AssignedTo); prof != nil {
				prof.TasksCompleted++
				prof.UpdatedAt = now
			}
		}
	} else {
		// Rejected work goes back to the queue with the assignment cleared.
		t.Status = TaskAvailable
		t.AssignedTo = nil
		t.AssignedAt = nil
		t.CompletedAt = nil
		t.TimeSpentSeconds = nil
		t.Result = nil
	}
	t.UpdatedAt = now
	return *t, nil
}

// External annotation-tool bookkeeping --------------------------------------

func (s *InMemory) SetProjectExternalID(ctx context.Context, projectID string, externalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	if p.ExternalProjectID != nil {
		if *p.ExternalProjectID == externalID {
			return nil
		}
		return fmt.Errorf("%w: project already bound to external id %d", ErrConflict, *p.ExternalProjectID)
	}
	p.ExternalProjectID = &externalID
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) ListUnsyncedTasks(ctx context.Context, projectID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrNotFound
	}
	var out []Task
	for _, tid := range s.tasksByProj[projectID] {
		t := s.tasks[tid]
		if t.ExternalTaskID == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *InMemory) BindTaskExternalIDs(ctx context.Context, projectID string, byTaskID map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return ErrNotFound
	}
	// Validate the whole batch before touching anything; a task must never be
	// tracked under two external ids.
	for tid, ext := range byTaskID {
		t, ok := s.tasks[tid]
		if !ok || t.ProjectID != projectID {
			return fmt.Errorf("%w: task %s", ErrNotFound, tid)
		}
		if t.ExternalTaskID != nil && *t.ExternalTaskID != ext {
			return fmt.Errorf("%w: task %s already bound to external id %d", ErrConflict, tid, *t.ExternalTaskID)
		}
	}
	now := time.Now().UTC()
	for tid, ext := range byTaskID {
		t := s.tasks[tid]
		e := ext
		t.ExternalTaskID = &e
		t.UpdatedAt = now
	}
	return nil
}

func (s *InMemory) ApplyExternalAnnotation(ctx context.Context, projectID string, externalTaskID int64, result map[string]any) (Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return Task{}, false, ErrNotFound
	}
	for _, tid := range s.tasksByProj[projectID] {
		t := s.tasks[tid]
		if t.ExternalTaskID == nil || *t.ExternalTaskID != externalTaskID {
			continue
		}
		now := time.Now().UTC()
		t.Result = copyPayload(result)
		// Only tasks with a local assignee may advance; the assignee
		// invariant holds over externally-completed work too.
		applied := false
		if t.AssignedTo != nil && CanTaskTransition(t.Status, TaskSubmitted) {
			t.Status = TaskSubmitted
			t.CompletedAt = &now
			applied = true
		}
		t.UpdatedAt = now
		return *t, applied, nil
	}
	return Task{}, false, fmt.Errorf("%w: external task %d", ErrNotFound, externalTaskID)
}

// Annotator profiles --------------------------------------------------------

func (s *InMemory) CreateAnnotator(ctx context.Context, in CreateAnnotatorInput) (AnnotatorProfile, error) {
	if err := ValidateCreateAnnotator(in); err != nil {
		return AnnotatorProfile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(in.Email))
	for _, a := range s.annotators {
		if a.Email == email {
			return AnnotatorProfile{}, fmt.Errorf("%w: annotator profile already exists", ErrConflict)
		}
	}
	now := time.Now().UTC()
	a := &AnnotatorProfile{
		ID:            ids.New(),
		UserID:        in.UserID,
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		Languages:     normalizeLanguages(in.Languages),
		Country:       strings.TrimSpace(in.Country),
		NativeSpeaker: in.NativeSpeaker,
		Status:        AnnotatorPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.annotators[a.ID] = a
	return *a, nil
}

func (s *InMemory) GetAnnotator(ctx context.Context, id string) (AnnotatorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.annotators[id]
	if !ok {
		return AnnotatorProfile{}, ErrNotFound
	}
	return *a, nil
}

func (s *InMemory) GetAnnotatorByUser(ctx context.Context, userID string) (AnnotatorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.annotatorByUserLocked(userID); a != nil {
		return *a, nil
	}
	return AnnotatorProfile{}, ErrNotFound
}

func (s *InMemory) ListAnnotators(ctx context.Context, f AnnotatorFilter) ([]AnnotatorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []AnnotatorProfile
	for _, a := range s.annotators {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.LanguageCode != "" && !containsString(a.Languages, strings.ToLower(f.LanguageCode)) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) SetAnnotatorPayoutAccount(ctx context.Context, userID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.annotatorByUserLocked(userID)
	if a == nil {
		return ErrNotFound
	}
	a.PayoutAccountID = &accountID
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) annotatorByUserLocked(userID string) *AnnotatorProfile {
	if userID == "" {
		return nil
	}
	for _, a := range s.annotators {
		if a.UserID == userID {
			return a
		}
	}
	return nil
}

// Earnings and withdrawals --------------------------------------------------

func (s *InMemory) Earnings(ctx context.Context, annotatorID string) (Earnings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.earningsLocked(annotatorID), nil
}

func (s *InMemory) earningsLocked(annotatorID string) Earnings {
	e := Earnings{Currency: DefaultCurrency}
	for _, t := range s.tasks {
		if t.AssignedTo == nil || *t.AssignedTo != annotatorID {
			continue
		}
		p, ok := s.projects[t.ProjectID]
		if !ok {
			continue
		}
		switch t.Status {
		case TaskSubmitted, TaskUnderReview:
			e.PendingCents += p.PricePerTaskCents
		case TaskApproved:
			e.TotalEarnedCents += p.PricePerTaskCents
		}
	}
	var reserved int64
	for _, w := range s.withdrawals {
		if w.AnnotatorID == annotatorID && w.Status != WithdrawalFailed {
			reserved += w.AmountCents
		}
	}
	e.AvailableCents = e.TotalEarnedCents - reserved
	if e.AvailableCents < 0 {
		e.AvailableCents = 0
	}
	return e
}

func (s *InMemory) ReserveWithdrawal(ctx context.Context, annotatorID string, amountCents int64, currency, idemKey string) (Withdrawal, error) {
	if amountCents <= 0 {
		return Withdrawal{}, fmt.Errorf("%w: amount_cents must be > 0", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if idemKey != "" {
		if wid, ok := s.idem[idemKey]; ok {
			return *s.withdrawals[wid], nil
		}
	}
	// Balance check and reservation in one critical section: two concurrent
	// requests cannot both pass the check.
	available := s.earningsLocked(annotatorID).AvailableCents
	if amountCents > available {
		return Withdrawal{}, fmt.Errorf("%w: insufficient balance, available %d", ErrValidation, available)
	}
	now := time.Now().UTC()
	w := &Withdrawal{
		ID:             ids.New(),
		AnnotatorID:    annotatorID,
		AmountCents:    amountCents,
		Currency:       NormalizeCurrency(currency),
		Status:         WithdrawalPending,
		IdempotencyKey: idemKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.withdrawals[w.ID] = w
	if idemKey != "" {
		s.idem[idemKey] = w.ID
	}
	return *w, nil
}

func (s *InMemory) SettleWithdrawal(ctx context.Context, id, payoutID string) (Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return Withdrawal{}, ErrNotFound
	}
	switch w.Status {
	case WithdrawalCompleted:
		return *w, nil
	case WithdrawalFailed:
		return Withdrawal{}, fmt.Errorf("%w: withdrawal already failed", ErrConflict)
	}
	w.Status = WithdrawalCompleted
	if payoutID != "" {
		w.ExternalPayoutID = &payoutID
	}
	w.UpdatedAt = time.Now().UTC()
	return *w, nil
}

func (s *InMemory) FailWithdrawal(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return ErrNotFound
	}
	if w.Status == WithdrawalCompleted {
		return fmt.Errorf("%w: withdrawal already completed", ErrConflict)
	}
	w.Status = WithdrawalFailed
	w.FailureReason = reason
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Stats ---------------------------------------------------------------------

func (s *InMemory) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		LanguagesSupported:   len(languageCatalog),
		TotalSpeakersReached: TotalSpeakers(),
		AnnotatorsRegistered: len(s.annotators),
		ProjectsCreated:      len(s.projects),
		TasksCreated:         len(s.tasks),
		Regions:              LanguageRegions(),
	}, nil
}

// Helpers -------------------------------------------------------------------

// ValidateCreateProject checks project creation input. Both backends call
// it before touching storage.
func ValidateCreateProject(in CreateProjectInput) error {
	if strings.TrimSpace(in.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(in.Instructions) == "" {
		return fmt.Errorf("%w: instructions are required", ErrValidation)
	}
	if !in.AnnotationType.Valid() {
		return fmt.Errorf("%w: unknown annotation type %q", ErrValidation, in.AnnotationType)
	}
	if in.PricePerTaskCents <= 0 {
		return fmt.Errorf("%w: price_per_task_cents must be > 0", ErrValidation)
	}
	if _, ok := LanguageByCode(in.LanguageCode); !ok {
		return fmt.Errorf("%w: unknown language code %q", ErrValidation, in.LanguageCode)
	}
	return nil
}

func ValidateCreateAnnotator(in CreateAnnotatorInput) error {
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(in.Country) == "" {
		return fmt.Errorf("%w: country is required", ErrValidation)
	}
	if len(in.Languages) == 0 {
		return fmt.Errorf("%w: at least one language is required", ErrValidation)
	}
	for _, code := range in.Languages {
		if _, ok := LanguageByCode(code); !ok {
			return fmt.Errorf("%w: unknown language code %q", ErrValidation, code)
		}
	}
	return nil
}

func NormalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

func normalizeLanguages(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, strings.ToLower(strings.TrimSpace(c)))
	}
	return out
}

func copyPayload(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func paginate[T any](all []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
