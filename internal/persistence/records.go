package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/scheduler"
)

// RecordTask saves or updates a task's lifecycle facts and dependency edges.
// Uses ON CONFLICT to make saves idempotent.
func (j *SQLiteJournal) RecordTask(ctx context.Context, task *scheduler.Task) error {
	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	errorStr := ""
	if task.Err != nil {
		errorStr = task.Err.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, type, priority, status, error, cost, duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			cost = excluded.cost,
			duration_ms = excluded.duration_ms,
			updated_at = CURRENT_TIMESTAMP
	`, task.ID, string(task.Type), task.Priority.String(), task.Status.String(),
		errorStr, task.Cost, task.Duration().Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	for _, depID := range task.DependsOn {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id)
			VALUES (?, ?)
		`, task.ID, depID)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", task.ID, depID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListTasks returns all recorded tasks with their dependency edges, oldest first.
func (j *SQLiteJournal) ListTasks(ctx context.Context) ([]TaskRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, type, priority, status, error, cost, duration_ms
		FROM tasks
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Priority, &rec.Status, &rec.Error, &rec.Cost, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond

		depRows, err := j.db.QueryContext(ctx, `
			SELECT depends_on_id
			FROM task_dependencies
			WHERE task_id = ?
		`, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to query dependencies for task %s: %w", rec.ID, err)
		}
		for depRows.Next() {
			var depID string
			if err := depRows.Scan(&depID); err != nil {
				depRows.Close()
				return nil, fmt.Errorf("failed to scan dependency: %w", err)
			}
			rec.DependsOn = append(rec.DependsOn, depID)
		}
		depRows.Close()
		if err := depRows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating dependencies: %w", err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return records, nil
}

// RecordPipelineRun saves one pipeline execution.
func (j *SQLiteJournal) RecordPipelineRun(ctx context.Context, run PipelineRun) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_id, workflow, status, phase, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			phase = excluded.phase,
			error = excluded.error,
			duration_ms = excluded.duration_ms
	`, run.RunID, run.Workflow, run.Status, run.Phase, run.Error, run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return nil
}

// ListPipelineRuns returns all recorded pipeline runs, oldest first.
func (j *SQLiteJournal) ListPipelineRuns(ctx context.Context) ([]PipelineRun, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, workflow, status, phase, error, duration_ms
		FROM pipeline_runs
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		var run PipelineRun
		var durationMS int64
		if err := rows.Scan(&run.RunID, &run.Workflow, &run.Status, &run.Phase, &run.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipeline runs: %w", err)
	}
	return runs, nil
}

// RecordHealthWarning saves one low-health observation.
func (j *SQLiteJournal) RecordHealthWarning(ctx context.Context, warning HealthWarning) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO health_warnings (agent_id, score, observed_at)
		VALUES (?, ?, ?)
	`, warning.AgentID, warning.Score, warning.ObservedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record health warning: %w", err)
	}
	return nil
}

// ListHealthWarnings returns recorded warnings for an agent, oldest first.
func (j *SQLiteJournal) ListHealthWarnings(ctx context.Context, agentID string) ([]HealthWarning, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT agent_id, score, observed_at
		FROM health_warnings
		WHERE agent_id = ?
		ORDER BY observed_at
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query health warnings: %w", err)
	}
	defer rows.Close()

	var warnings []HealthWarning
	for rows.Next() {
		var w HealthWarning
		if err := rows.Scan(&w.AgentID, &w.Score, &w.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan health warning: %w", err)
		}
		warnings = append(warnings, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health warnings: %w", err)
	}
	return warnings, nil
}
