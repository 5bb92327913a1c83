package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umeed-health/asha-service/internal/adapters/repository"
	"github.com/umeed-health/asha-service/internal/core/domain"
)

var followUpCols = []string{"id", "patient_name", "age", "village", "conditions", "last_visit", "due_date", "status", "completed"}

func newSQLFollowUps(t *testing.T) (*repository.SQLFollowUpRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLFollowUpRepository(db, repository.DefaultBreakerSettings()).WithRetry(1, time.Millisecond), mock
}

func TestSQLFollowUpRepository_List(t *testing.T) {
	repo, mock := newSQLFollowUps(t)
	due := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM followups ORDER BY due_date ASC").
		WillReturnRows(sqlmock.NewRows(followUpCols).
			AddRow("1", "Ramesh Kumar", int64(58), "Mavli", []byte(`["Diabetes","Hypertension"]`), due.AddDate(0, -1, 0), due, "overdue", false).
			AddRow("2", "Sunita Devi", int64(45), "Gogunda", nil, nil, due.AddDate(0, 0, 12), nil, true))

	items, err := repo.ListFollowUps(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"Diabetes", "Hypertension"}, items[0].Conditions)
	assert.Equal(t, domain.FollowUpOverdue, items[0].Status)
	assert.True(t, items[1].LastVisit.IsZero())
	assert.Equal(t, domain.FollowUpStatus(""), items[1].Status)
	assert.True(t, items[1].Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFollowUpRepository_GetNotFound(t *testing.T) {
	repo, mock := newSQLFollowUps(t)

	mock.ExpectQuery("FROM followups WHERE id = \\$1").WithArgs("99").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetFollowUp(context.Background(), "99")
	assert.ErrorIs(t, err, domain.ErrFollowUpNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFollowUpRepository_SetCompleted(t *testing.T) {
	repo, mock := newSQLFollowUps(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE followups SET completed = $1")).
		WithArgs(true, "2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE followups SET completed = $1")).
		WithArgs(true, "99").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetCompleted(context.Background(), "2", true))
	assert.ErrorIs(t, repo.SetCompleted(context.Background(), "99", true), domain.ErrFollowUpNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFollowUpRepository_UpsertInTransaction(t *testing.T) {
	repo, mock := newSQLFollowUps(t)
	due := time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO followups").
		WithArgs("1", "Geeta Bai", 62, "Mavli", `["Hypertension"]`, nil, due, nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO followups").
		WithArgs("2", "Mohan Lal", 0, "", `[]`, nil, due, "due-today", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpsertFollowUps(context.Background(), []*domain.FollowUp{
		{ID: "1", PatientName: "Geeta Bai", Age: 62, Village: "Mavli", Conditions: []string{"Hypertension"}, DueDate: due},
		{ID: "2", PatientName: "Mohan Lal", DueDate: due, Status: domain.FollowUpDueToday, Completed: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
