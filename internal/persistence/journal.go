// Package persistence records task outcomes, pipeline runs, and health
// warnings in SQLite so past runs survive process restarts.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/scheduler"
	_ "modernc.org/sqlite"
)

// TaskRecord is the stored form of a task. Payloads and outputs are not
// persisted; the journal keeps lifecycle facts only.
type TaskRecord struct {
	ID        string
	Type      string
	Priority  string
	Status    string
	Error     string
	Cost      float64
	Duration  time.Duration
	DependsOn []string
}

// PipelineRun is one recorded pipeline execution.
type PipelineRun struct {
	RunID    string
	Workflow string
	Status   string // "completed" or "failed"
	Phase    string // failing phase, empty on success
	Error    string
	Duration time.Duration
}

// HealthWarning is one recorded low-health observation.
type HealthWarning struct {
	AgentID    string
	Score      int
	ObservedAt time.Time
}

// Journal is the persistence interface for run history.
type Journal interface {
	RecordTask(ctx context.Context, task *scheduler.Task) error
	ListTasks(ctx context.Context) ([]TaskRecord, error)

	RecordPipelineRun(ctx context.Context, run PipelineRun) error
	ListPipelineRuns(ctx context.Context) ([]PipelineRun, error)

	RecordHealthWarning(ctx context.Context, warning HealthWarning) error
	ListHealthWarnings(ctx context.Context, agentID string) ([]HealthWarning, error)

	Close() error
}

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal creates a SQLite-backed journal at the given path.
// Creates parent directories if needed. Enables WAL mode and a busy timeout.
func NewSQLiteJournal(ctx context.Context, dbPath string) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newJournal(ctx, db)
}

// NewMemoryJournal creates an in-memory journal for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryJournal(ctx context.Context) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return newJournal(ctx, db)
}

func newJournal(ctx context.Context, db *sql.DB) (*SQLiteJournal, error) {
	// Foreign keys need a PRAGMA with modernc.org/sqlite; the connection
	// string form is ignored.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One connection for primary queries, one for dependency subqueries.
	db.SetMaxOpenConns(2)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
