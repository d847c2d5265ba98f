package market

import "context"

// CreateProjectInput is everything needed to open a draft project.
type CreateProjectInput struct {
	ClientID          string
	Name              string
	Description       string
	LanguageCode      string
	AnnotationType    AnnotationType
	Instructions      string
	PricePerTaskCents int64
	Currency          string
}

// ProjectUpdate applies only the fields that are set.
type ProjectUpdate struct {
	Name              *string
	Description       *string
	Instructions      *string
	PricePerTaskCents *int64
	Status            *ProjectStatus
}

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	ClientID     string
	Status       ProjectStatus
	LanguageCode string
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// CreateAnnotatorInput registers a marketplace profile. UserID is optional;
// it binds the profile to an existing annotator account.
type CreateAnnotatorInput struct {
	UserID        string
	Email         string
	Name          string
	Languages     []string
	Country       string
	NativeSpeaker bool
}

// AnnotatorFilter narrows an annotator listing.
type AnnotatorFilter struct {
	LanguageCode string
	Status       AnnotatorStatus
}

// ReviewDecision is the outcome of reviewing a submitted task.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// Service defines the marketplace lifecycle operations. Implementations must
// enforce the transition tables, the at-most-one-assignee claim invariant,
// and counter consistency within each operation.
type Service interface {
	// Projects.
	CreateProject(ctx context.Context, in CreateProjectInput) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]Project, int, error)
	UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (Project, error)
	ActivateProject(ctx context.Context, id string) (Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Tasks.
	AddTasks(ctx context.Context, projectID string, items []map[string]any) ([]Task, error)
	ListTasks(ctx context.Context, projectID string, status TaskStatus, limit, offset int) ([]Task, int, error)
	GetTask(ctx context.Context, id string) (Task, error)
	ClaimTask(ctx context.Context, taskID, annotatorID string) (Task, error)
	StartTask(ctx context.Context, taskID, annotatorID string) (Task, error)
	SubmitTask(ctx context.Context, taskID, annotatorID string, result map[string]any, timeSpentSeconds int) (Task, error)
	ReviewTask(ctx context.Context, taskID string, decision ReviewDecision) (Task, error)

	// External annotation-tool bookkeeping, used by the sync bridge.
	SetProjectExternalID(ctx context.Context, projectID string, externalID int64) error
	ListUnsyncedTasks(ctx context.Context, projectID string) ([]Task, error)
	BindTaskExternalIDs(ctx context.Context, projectID string, byTaskID map[string]int64) error
	ApplyExternalAnnotation(ctx context.Context, projectID string, externalTaskID int64, result map[string]any) (Task, bool, error)

	// Annotator profiles.
	CreateAnnotator(ctx context.Context, in CreateAnnotatorInput) (AnnotatorProfile, error)
	GetAnnotator(ctx context.Context, id string) (AnnotatorProfile, error)
	GetAnnotatorByUser(ctx context.Context, userID string) (AnnotatorProfile, error)
	ListAnnotators(ctx context.Context, f AnnotatorFilter) ([]AnnotatorProfile, error)
	SetAnnotatorPayoutAccount(ctx context.Context, userID, accountID string) error

	// Earnings and withdrawals.
	Earnings(ctx context.Context, annotatorID string) (Earnings, error)
	ReserveWithdrawal(ctx context.Context, annotatorID string, amountCents int64, currency, idemKey string) (Withdrawal, error)
	SettleWithdrawal(ctx context.Context, id, payoutID string) (Withdrawal, error)
	FailWithdrawal(ctx context.Context, id, reason string) error

	// Platform counters.
	Stats(ctx context.Context) (Stats, error)
}

// DefaultCurrency is used when a project does not specify one.
const DefaultCurrency = "USD"
