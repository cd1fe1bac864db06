package registry

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func newMock(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, DriverSQLite)), mock
}

func TestStart(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs (id, status, started_at)")).
		WithArgs("run-1", StatusRunning, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, r.Start(context.Background(), "run-1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish(t *testing.T) {
	r, mock := newMock(t)
	score := 0.83
	mock.ExpectExec(regexp.QuoteMeta("UPDATE runs SET")).
		WithArgs(StatusSucceeded, "Random Forest", sqlmock.AnyArg(), `{"R2_Score":0.8}`, "", sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.Finish(context.Background(), "run-1", Finish{
		Status:    StatusSucceeded,
		BestModel: "Random Forest",
		Score:     &score,
		Metrics:   map[string]float64{"R2_Score": 0.8},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishUnknownRun(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE runs SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.Finish(context.Background(), "ghost", Finish{Status: StatusFailed, Err: errors.New("boom")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestList(t *testing.T) {
	r, mock := newMock(t)
	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "status", "best_model", "score", "metrics", "error", "started_at", "finished_at"}).
		AddRow("run-2", StatusFailed, "", nil, "{}", "stage train failed", started.Add(time.Hour), nil).
		AddRow("run-1", StatusSucceeded, "Decision Tree", 0.9, `{"MSE":1.5}`, "", started, started.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("FROM runs ORDER BY started_at DESC LIMIT ?")).
		WithArgs(5).
		WillReturnRows(rows)

	runs, err := r.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Nil(t, runs[0].Score)
	assert.Nil(t, runs[0].FinishedAt)
	require.NotNil(t, runs[1].Score)
	assert.InDelta(t, 0.9, *runs[1].Score, 1e-12)

	m, err := runs[1].MetricsMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"MSE": 1.5}, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM runs WHERE id = ?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := r.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Skipf("sqlite3 unavailable: %v", err)
	}
	defer r.Close()

	start := time.Now().Add(-time.Minute)
	require.NoError(t, r.Start(ctx, "a", start))
	require.NoError(t, r.Start(ctx, "b", start.Add(time.Second)))
	score := 0.75
	require.NoError(t, r.Finish(ctx, "a", Finish{
		Status:    StatusSucceeded,
		BestModel: "XGBRegressor",
		Score:     &score,
		Metrics:   map[string]float64{"R2_Score": 0.7},
	}))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, "XGBRegressor", got.BestModel)
	require.NotNil(t, got.FinishedAt)

	runs, err := r.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, StatusRunning, runs[0].Status)
}
