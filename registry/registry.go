// Package registry records the history of pipeline runs in a SQL database.
//
// SQLite (mattn/go-sqlite3) is the default backend; PostgreSQL (lib/pq)
// is selected with the "postgres" driver name. Queries are written once
// with named or "?" parameters and rebound for the driver by sqlx.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when no row matches a run id.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	best_model  TEXT NOT NULL DEFAULT '',
	score       DOUBLE PRECISION,
	metrics     TEXT NOT NULL DEFAULT '{}',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
)`

const runColumns = `id, status, best_model, score, metrics, error, started_at, finished_at`

// Run is one row of the runs table.
type Run struct {
	ID         string     `db:"id"`
	Status     string     `db:"status"`
	BestModel  string     `db:"best_model"`
	Score      *float64   `db:"score"`
	Metrics    string     `db:"metrics"`
	Error      string     `db:"error"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// MetricsMap decodes the stored evaluation metrics.
func (r *Run) MetricsMap() (map[string]float64, error) {
	out := map[string]float64{}
	if r.Metrics == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Metrics), &out); err != nil {
		return nil, errors.Wrapf(err, "registry: decode metrics of run %s", r.ID)
	}
	return out, nil
}

// Finish describes the terminal state of a run.
type Finish struct {
	Status     string
	BestModel  string
	Score      *float64
	Metrics    map[string]float64
	Err        error
	FinishedAt time.Time
}

// Registry stores run records.
type Registry struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Registry {
	return &Registry{db: db}
}

// Open connects to the database and creates the runs table if needed.
func Open(ctx context.Context, driver, dsn string) (*Registry, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, errors.NewValidationError("registry.driver", "must be sqlite3 or postgres", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: open %s", driver)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "registry: connect %s", driver)
	}
	r := New(db)
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Migrate creates the runs table.
func (r *Registry) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "registry: create runs table")
	}
	return nil
}

// Start inserts a running row.
func (r *Registry) Start(ctx context.Context, id string, startedAt time.Time) error {
	params := map[string]interface{}{
		"id":         id,
		"status":     StatusRunning,
		"started_at": startedAt.UTC(),
	}
	query := `
		INSERT INTO runs (id, status, started_at)
		VALUES (:id, :status, :started_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, params); err != nil {
		return errors.Wrapf(err, "registry: insert run %s", id)
	}
	return nil
}

// Finish records the terminal state of run id.
func (r *Registry) Finish(ctx context.Context, id string, f Finish) error {
	metricsJSON := []byte("{}")
	if len(f.Metrics) > 0 {
		var err error
		if metricsJSON, err = json.Marshal(f.Metrics); err != nil {
			return errors.Wrapf(err, "registry: encode metrics of run %s", id)
		}
	}
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	finishedAt := f.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	params := map[string]interface{}{
		"id":          id,
		"status":      f.Status,
		"best_model":  f.BestModel,
		"score":       f.Score,
		"metrics":     string(metricsJSON),
		"error":       errText,
		"finished_at": finishedAt.UTC(),
	}
	query := `
		UPDATE runs SET
			status = :status,
			best_model = :best_model,
			score = :score,
			metrics = :metrics,
			error = :error,
			finished_at = :finished_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return errors.Wrapf(err, "registry: update run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "registry: update run %s", id)
	}
	if n == 0 {
		return errors.Wrapf(ErrRunNotFound, "registry: update run %s", id)
	}
	return nil
}

// Get returns one run.
func (r *Registry) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM runs WHERE id = ?`)
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrRunNotFound, "registry: get run %s", id)
		}
		return nil, errors.Wrapf(err, "registry: get run %s", id)
	}
	return &run, nil
}

// List returns up to limit runs, newest first.
func (r *Registry) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []Run{}
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, errors.Wrap(err, "registry: list runs")
	}
	return runs, nil
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}
