package market

// Single authoritative transition tables for both lifecycles. Anything not
// listed here is rejected with ErrInvalidTransition.

var projectTransitions = map[ProjectStatus]map[ProjectStatus]bool{
	ProjectDraft:         {ProjectActive: true},
	ProjectActive:        {ProjectPaused: true, ProjectCompleted: true, ProjectPendingReview: true},
	ProjectPaused:        {ProjectActive: true},
	ProjectPendingReview: {ProjectActive: true},
}

// CanProjectTransition reports whether from->to is a legal project move.
// Cancellation is reachable from every non-cancelled state.
func CanProjectTransition(from, to ProjectStatus) bool {
	if to == ProjectCancelled {
		return from != ProjectCancelled
	}
	return projectTransitions[from][to]
}

var taskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskAvailable:   {TaskAssigned: true},
	TaskAssigned:    {TaskInProgress: true, TaskSubmitted: true},
	TaskInProgress:  {TaskSubmitted: true},
	TaskSubmitted:   {TaskUnderReview: true},
	TaskUnderReview: {TaskApproved: true, TaskRejected: true},
	TaskRejected:    {TaskAvailable: true},
}

// CanTaskTransition reports whether from->to is a legal task move.
func CanTaskTransition(from, to TaskStatus) bool {
	return taskTransitions[from][to]
}

// AssigneeRequired reports whether a task in the given status must have a
// non-null assignee. Only queued tasks are unassigned.
func AssigneeRequired(s TaskStatus) bool {
	return s != TaskAvailable
}

// Reviewable reports whether a task can enter review. A submitted task passes
// through under_review on the way to a decision.
func Reviewable(s TaskStatus) bool {
	return s == TaskSubmitted || s == TaskUnderReview
}
