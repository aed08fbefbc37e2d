package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (j *SQLiteJournal) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		cost REAL NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on_id),
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_task_dependencies_task_id ON task_dependencies(task_id);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		status TEXT NOT NULL,
		phase TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS health_warnings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		observed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_health_warnings_agent ON health_warnings(agent_id, observed_at);
	`

	_, err := j.db.ExecContext(ctx, schema)
	return err
}
