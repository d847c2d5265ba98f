package market

import "time"

// ProjectStatus is the lifecycle state of an annotation project.
type ProjectStatus string

const (
	ProjectDraft         ProjectStatus = "draft"
	ProjectPendingReview ProjectStatus = "pending_review"
	ProjectActive        ProjectStatus = "active"
	ProjectPaused        ProjectStatus = "paused"
	ProjectCompleted     ProjectStatus = "completed"
	ProjectCancelled     ProjectStatus = "cancelled"
)

// TaskStatus is the per-task pipeline state. The pipeline is forward-biased;
// the only backward move is rejected work returning to the queue.
type TaskStatus string

const (
	TaskAvailable   TaskStatus = "available"
	TaskAssigned    TaskStatus = "assigned"
	TaskInProgress  TaskStatus = "in_progress"
	TaskSubmitted   TaskStatus = "submitted"
	TaskUnderReview TaskStatus = "under_review"
	TaskApproved    TaskStatus = "approved"
	TaskRejected    TaskStatus = "rejected"
)

// AnnotationType tags what kind of labeling a project asks for.
type AnnotationType string

const (
	AnnotationClassification AnnotationType = "classification"
	AnnotationNER            AnnotationType = "ner"
	AnnotationSentiment      AnnotationType = "sentiment"
	AnnotationTranscription  AnnotationType = "transcription"
	AnnotationTranslation    AnnotationType = "translation"
)

// Valid reports whether t is a supported annotation type.
func (t AnnotationType) Valid() bool {
	switch t {
	case AnnotationClassification, AnnotationNER, AnnotationSentiment,
		AnnotationTranscription, AnnotationTranslation:
		return true
	}
	return false
}

// Project is an annotation project owned by a client. Task prices are in
// minor units (cents). No floats.
type Project struct {
	ID                string         `json:"id"`
	ClientID          string         `json:"client_id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	LanguageCode      string         `json:"language_code"`
	AnnotationType    AnnotationType `json:"annotation_type"`
	Instructions      string         `json:"instructions"`
	PricePerTaskCents int64          `json:"price_per_task_cents"`
	Currency          string         `json:"currency"`
	Status            ProjectStatus  `json:"status"`
	TotalTasks        int            `json:"total_tasks"`
	CompletedTasks    int            `json:"completed_tasks"`
	ExternalProjectID *int64         `json:"external_project_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Task is one unit of annotation work inside a project. Data is the opaque
// payload to annotate; Result is the submitted annotation.
type Task struct {
	ID               string         `json:"id"`
	ProjectID        string         `json:"project_id"`
	Data             map[string]any `json:"data"`
	Status           TaskStatus     `json:"status"`
	AssignedTo       *string        `json:"assigned_to,omitempty"`
	AssignedAt       *time.Time     `json:"assigned_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	TimeSpentSeconds *int           `json:"time_spent_seconds,omitempty"`
	Result           map[string]any `json:"result,omitempty"`
	ExternalTaskID   *int64         `json:"external_task_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// AnnotatorStatus tracks marketplace onboarding of an annotator profile.
type AnnotatorStatus string

const (
	AnnotatorPending  AnnotatorStatus = "pending"
	AnnotatorApproved AnnotatorStatus = "approved"
	AnnotatorActive   AnnotatorStatus = "active"
	AnnotatorInactive AnnotatorStatus = "inactive"
)

// AnnotatorProfile extends a user account with marketplace-facing details.
// UserID is empty for profiles created before the account registered.
type AnnotatorProfile struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id,omitempty"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Languages       []string        `json:"languages"`
	Country         string          `json:"country"`
	NativeSpeaker   bool            `json:"is_native_speaker"`
	Status          AnnotatorStatus `json:"status"`
	Rating          *float64        `json:"rating,omitempty"`
	TasksCompleted  int             `json:"tasks_completed"`
	PayoutAccountID *string         `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// WithdrawalStatus tracks a payout request through the external processor.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// Withdrawal is a recorded movement of available earnings toward the
// annotator's connected payout account. Failed withdrawals release their
// reservation; pending and completed ones count against the balance.
type Withdrawal struct {
	ID               string           `json:"id"`
	AnnotatorID      string           `json:"annotator_id"`
	AmountCents      int64            `json:"amount_cents"`
	Currency         string           `json:"currency"`
	Status           WithdrawalStatus `json:"status"`
	IdempotencyKey   string           `json:"idempotency_key,omitempty"`
	ExternalPayoutID *string          `json:"external_payout_id,omitempty"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Earnings is a derived snapshot, never a stored counter.
type Earnings struct {
	TotalEarnedCents int64  `json:"total_earned_cents"`
	PendingCents     int64  `json:"pending_cents"`
	AvailableCents   int64  `json:"available_cents"`
	Currency         string `json:"currency"`
}

// Stats aggregates platform-wide counters for the public stats endpoint.
type Stats struct {
	LanguagesSupported   int      `json:"languages_supported"`
	TotalSpeakersReached int64    `json:"total_speakers_reached"`
	AnnotatorsRegistered int      `json:"annotators_registered"`
	ProjectsCreated      int      `json:"projects_created"`
	TasksCreated         int      `json:"tasks_created"`
	Regions              []string `json:"regions"`
}
