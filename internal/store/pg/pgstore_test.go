package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"lingualabel.org/internal/market"
)

var taskColumns = []string{
	"id", "project_id", "data", "status", "assigned_to", "assigned_at", "completed_at",
	"time_spent_seconds", "result", "external_task_id", "created_at", "updated_at",
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func taskRow(status string, assignedTo any) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(taskColumns).AddRow(
		"t1", "p1", []byte(`{"text":"habari"}`), status, assignedTo, nil, nil,
		nil, nil, nil, now, now,
	)
}

func TestClaimTaskWins(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`update tasks`).
		WithArgs("t1", "ann-1", "assigned", "available").
		WillReturnRows(taskRow("assigned", "ann-1"))

	got, err := s.ClaimTask(context.Background(), "t1", "ann-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != market.TaskAssigned || got.AssignedTo == nil || *got.AssignedTo != "ann-1" {
		t.Fatalf("unexpected task: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimTaskLostRace(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`update tasks`).
		WithArgs("t1", "ann-2", "assigned", "available").
		WillReturnRows(sqlmock.NewRows(taskColumns))
	mock.ExpectQuery(`select status, assigned_to from tasks`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_to"}).AddRow("assigned", "ann-1"))

	_, err := s.ClaimTask(context.Background(), "t1", "ann-2")
	if !errors.Is(err, market.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimTaskMissing(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`update tasks`).
		WillReturnRows(sqlmock.NewRows(taskColumns))
	mock.ExpectQuery(`select status, assigned_to from tasks`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_to"}))

	_, err := s.ClaimTask(context.Background(), "missing", "ann-1")
	if !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartTaskWrongAssignee(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`update tasks`).
		WillReturnRows(sqlmock.NewRows(taskColumns))
	mock.ExpectQuery(`select status, assigned_to from tasks`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_to"}).AddRow("assigned", "ann-1"))

	_, err := s.StartTask(context.Background(), "t1", "ann-2")
	if !errors.Is(err, market.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEarningsAggregation(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(`from tasks t`).
		WithArgs("ann-1").
		WillReturnRows(sqlmock.NewRows([]string{"earned", "pending"}).AddRow(1000, 250))
	mock.ExpectQuery(`from withdrawals`).
		WithArgs("ann-1").
		WillReturnRows(sqlmock.NewRows([]string{"reserved"}).AddRow(400))

	e, err := s.Earnings(context.Background(), "ann-1")
	if err != nil {
		t.Fatal(err)
	}
	if e.TotalEarnedCents != 1000 || e.PendingCents != 250 || e.AvailableCents != 600 {
		t.Fatalf("unexpected earnings: %+v", e)
	}
	if e.Currency != market.DefaultCurrency {
		t.Fatalf("currency = %s", e.Currency)
	}
}

func TestFailWithdrawalAlreadyCompleted(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(`update withdrawals`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select status from withdrawals`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

	err := s.FailWithdrawal(context.Background(), "w1", "boom")
	if !errors.Is(err, market.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSetProjectExternalIDConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(`update projects`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select external_project_id from projects`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"external_project_id"}).AddRow(42))

	err := s.SetProjectExternalID(context.Background(), "p1", 43)
	if !errors.Is(err, market.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
