package runs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-report/internal/database"
)

type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	called := m.Called(ctx, sql, args)
	return called.Get(0).(pgconn.CommandTag), called.Error(1)
}

func (m *MockQuerier) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	called := m.Called(ctx, sql, args)
	if called.Get(0) == nil {
		return nil, called.Error(1)
	}
	return called.Get(0).(pgx.Rows), called.Error(1)
}

func TestPostgresStore_Start(t *testing.T) {
	db := new(MockQuerier)
	store := NewPostgresStore(db)
	run := NewRun("phones", 3)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []interface{}{
		run.ID, "phones", "running", 3, run.StartedAt,
	}).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, store.Start(context.Background(), run))
	db.AssertExpectations(t)
}

func TestPostgresStore_Finish(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the row", func(t *testing.T) {
		db := new(MockQuerier)
		store := NewPostgresStore(db)
		run := NewRun("phones", 1)
		finished := time.Now().UTC()
		run.FinishedAt = &finished
		run.Status = StatusCompleted
		run.Records = 7

		db.On("Exec", ctx, mock.AnythingOfType("string"), []interface{}{
			run.ID, "completed", 7, "", "", "", run.FinishedAt,
		}).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

		require.NoError(t, store.Finish(ctx, run))
		db.AssertExpectations(t)
	})

	t.Run("unknown run", func(t *testing.T) {
		db := new(MockQuerier)
		store := NewPostgresStore(db)

		db.On("Exec", ctx, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

		err := store.Finish(ctx, NewRun("phones", 1))
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("database error", func(t *testing.T) {
		db := new(MockQuerier)
		store := NewPostgresStore(db)

		db.On("Exec", ctx, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, errors.New("connection reset"))

		err := store.Finish(ctx, NewRun("phones", 1))
		assert.ErrorContains(t, err, "failed to update run")
	})
}

func TestPostgresStore_ListError(t *testing.T) {
	db := new(MockQuerier)
	store := NewPostgresStore(db)

	db.On("Query", mock.Anything, mock.Anything, []interface{}{defaultListLimit}).Return(nil, errors.New("relation does not exist"))

	_, err := store.List(context.Background(), 0)
	assert.ErrorContains(t, err, "failed to list runs")
	db.AssertExpectations(t)
}

func TestPostgresStoreIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: os.Getenv("DB_PASSWORD"),
		Database: "listing_report",
		MaxConns: 2,
	})
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	require.NoError(t, store.Migrate(ctx))

	run := NewRun("integration", 2)
	require.NoError(t, store.Start(ctx, run))

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = StatusCompleted
	run.Records = 4
	require.NoError(t, store.Finish(ctx, run))

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	var found *Run
	for _, r := range list {
		if r.ID == run.ID {
			found = r
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, StatusCompleted, found.Status)
	assert.Equal(t, 4, found.Records)
}
