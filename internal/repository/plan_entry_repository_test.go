package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opsgrid-api/internal/models"
)

func TestPlanEntryRepositoryInsertBatchInTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPlanEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_plan_entries")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_plan_entries")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	entries := []models.PlanEntry{
		{PlanID: "p1", Position: 0, Day: "Mon", TimeSlot: "AM", TaskID: "t1", SiteID: "s1", ResourceName: "Ana"},
		{PlanID: "p1", Position: 1, Day: "Mon", TimeSlot: "PM", TaskID: "t2", SiteID: "s1", ResourceName: "Ben"},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), tx, entries))
	require.NoError(t, tx.Commit())

	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanEntryRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPlanEntryRepository(db)

	require.NoError(t, repo.InsertBatch(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanEntryRepositoryListByPlan(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPlanEntryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "plan_id", "position", "day", "time_slot", "task_id", "site_id", "resource_name", "created_at"}).
		AddRow("e1", "p1", 0, "Mon", "AM", "t1", "s1", "Ana", time.Now()).
		AddRow("e2", "p1", 1, "Mon", "PM", "t2", "s1", "Ben", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_plan_entries WHERE plan_id = $1 ORDER BY position ASC")).
		WithArgs("p1").
		WillReturnRows(rows)

	entries, err := repo.ListByPlan(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ben", entries[1].ResourceName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
