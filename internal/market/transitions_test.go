package market

import "testing"

func TestProjectTransitions(t *testing.T) {
	cases := []struct {
		from, to ProjectStatus
		ok       bool
	}{
		{ProjectDraft, ProjectActive, true},
		{ProjectActive, ProjectPaused, true},
		{ProjectPaused, ProjectActive, true},
		{ProjectActive, ProjectCompleted, true},
		{ProjectActive, ProjectPendingReview, true},
		{ProjectPendingReview, ProjectActive, true},
		{ProjectDraft, ProjectCancelled, true},
		{ProjectActive, ProjectCancelled, true},
		{ProjectCompleted, ProjectCancelled, true},
		{ProjectDraft, ProjectPaused, false},
		{ProjectDraft, ProjectCompleted, false},
		{ProjectCompleted, ProjectActive, false},
		{ProjectCancelled, ProjectActive, false},
		{ProjectCancelled, ProjectCancelled, false},
		{ProjectPaused, ProjectCompleted, false},
	}
	for _, tc := range cases {
		if got := CanProjectTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("project %s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTaskTransitions(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskAvailable, TaskAssigned, true},
		{TaskAssigned, TaskInProgress, true},
		{TaskAssigned, TaskSubmitted, true},
		{TaskInProgress, TaskSubmitted, true},
		{TaskSubmitted, TaskUnderReview, true},
		{TaskUnderReview, TaskApproved, true},
		{TaskUnderReview, TaskRejected, true},
		{TaskRejected, TaskAvailable, true},
		{TaskAvailable, TaskSubmitted, false},
		{TaskAvailable, TaskInProgress, false},
		{TaskSubmitted, TaskAvailable, false},
		{TaskApproved, TaskAvailable, false},
		{TaskApproved, TaskUnderReview, false},
		{TaskInProgress, TaskAssigned, false},
	}
	for _, tc := range cases {
		if got := CanTaskTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("task %s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestAssigneeRequired(t *testing.T) {
	if AssigneeRequired(TaskAvailable) {
		t.Fatal("available must not require an assignee")
	}
	for _, s := range []TaskStatus{TaskAssigned, TaskInProgress, TaskSubmitted, TaskUnderReview, TaskApproved, TaskRejected} {
		if !AssigneeRequired(s) {
			t.Errorf("%s must require an assignee", s)
		}
	}
}

func TestReviewable(t *testing.T) {
	if !Reviewable(TaskSubmitted) || !Reviewable(TaskUnderReview) {
		t.Fatal("submitted and under_review must be reviewable")
	}
	for _, s := range []TaskStatus{TaskAvailable, TaskAssigned, TaskInProgress, TaskApproved, TaskRejected} {
		if Reviewable(s) {
			t.Errorf("%s must not be reviewable", s)
		}
	}
}
