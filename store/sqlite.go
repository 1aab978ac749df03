package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/agentswarm/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable TaskStore backed by a sqlite database in WAL
// mode. Structured fields (requirements, child ids, context, metadata) are
// stored as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the task database at the given
// path and ensures the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             TEXT PRIMARY KEY,
	description    TEXT NOT NULL,
	requirements   TEXT NOT NULL DEFAULT '[]',
	priority       INTEGER NOT NULL DEFAULT 0,
	parent_task_id TEXT NOT NULL DEFAULT '',
	child_task_ids TEXT NOT NULL DEFAULT '[]',
	context        TEXT NOT NULL DEFAULT '{}',
	tool_call_budget INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	saved_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS results (
	task_id           TEXT NOT NULL,
	agent_id          TEXT NOT NULL,
	success           INTEGER NOT NULL,
	payload           TEXT NOT NULL DEFAULT 'null',
	error             TEXT NOT NULL DEFAULT '',
	execution_time_ns INTEGER NOT NULL DEFAULT 0,
	quality_score     REAL NOT NULL DEFAULT 0,
	metadata          TEXT NOT NULL DEFAULT '{}',
	created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_task ON results(task_id);
`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// SaveTask persists a task snapshot, overwriting by id.
func (s *SQLiteStore) SaveTask(task *core.Task) error {
	requirements, err := json.Marshal(sliceOrEmpty(task.Requirements))
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}

	childIDs, err := json.Marshal(sliceOrEmpty(task.ChildTaskIDs))
	if err != nil {
		return fmt.Errorf("marshal child ids: %w", err)
	}

	context, err := json.Marshal(mapOrEmpty(task.Context))
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	_, err = s.db.Exec(`
INSERT INTO tasks (id, description, requirements, priority, parent_task_id, child_task_ids, context, tool_call_budget, status, created_at, saved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	description      = excluded.description,
	requirements     = excluded.requirements,
	priority         = excluded.priority,
	parent_task_id   = excluded.parent_task_id,
	child_task_ids   = excluded.child_task_ids,
	context          = excluded.context,
	tool_call_budget = excluded.tool_call_budget,
	status           = excluded.status,
	saved_at         = excluded.saved_at`,
		task.ID, task.Description, string(requirements), task.Priority, task.ParentTaskID,
		string(childIDs), string(context), task.ToolCallBudget, string(task.Status), task.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}

	return nil
}

// SaveResult appends the result to the task's result history.
func (s *SQLiteStore) SaveResult(result *core.Result) error {
	payload, err := json.Marshal(result.Payload)
	if err != nil {
		// Payloads may carry arbitrary values; fall back to their string form
		// rather than losing the row.
		payload = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", result.Payload)))
	}

	metadata, err := json.Marshal(mapOrEmpty(result.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.Exec(`
INSERT INTO results (task_id, agent_id, success, payload, error, execution_time_ns, quality_score, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.TaskID, result.AgentID, boolToInt(result.Success), string(payload), result.Error,
		int64(result.ExecutionTime), result.QualityScore, string(metadata), result.CreatedAt)
	if err != nil {
		return fmt.Errorf("save result for task %s: %w", result.TaskID, err)
	}

	return nil
}

// QueryTasks returns up to limit tasks matching the status filter, most
// recently saved first. An empty status matches all tasks; a limit of zero or
// less means no limit.
func (s *SQLiteStore) QueryTasks(status core.TaskStatus, limit int) ([]*core.Task, error) {
	query := `SELECT id, description, requirements, priority, parent_task_id, child_task_ids, context, tool_call_budget, status, created_at FROM tasks`

	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY saved_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*core.Task

	for rows.Next() {
		var task core.Task
		var requirements, childIDs, contextJSON, statusStr string

		if err := rows.Scan(&task.ID, &task.Description, &requirements, &task.Priority,
			&task.ParentTaskID, &childIDs, &contextJSON, &task.ToolCallBudget, &statusStr, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		task.Status = core.TaskStatus(statusStr)

		if err := json.Unmarshal([]byte(requirements), &task.Requirements); err != nil {
			return nil, fmt.Errorf("unmarshal requirements: %w", err)
		}
		if err := json.Unmarshal([]byte(childIDs), &task.ChildTaskIDs); err != nil {
			return nil, fmt.Errorf("unmarshal child ids: %w", err)
		}
		if err := json.Unmarshal([]byte(contextJSON), &task.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}

		out = append(out, &task)
	}

	return out, rows.Err()
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
