package learning

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// schemaVersion identifies the snapshot layout. Bump it when the table shape
// changes; LoadValues refuses snapshots written by a newer layout.
const schemaVersion = 1

// Snapshotter persists learning tables through an explicit versioned schema
// (engine, state key, action, value) so the on-disk format is not tied to
// any runtime's object graph.
type Snapshotter interface {
	// SaveValues replaces the stored table for an engine name atomically.
	SaveValues(engine string, values map[string]map[string]float64) error

	// LoadValues returns the stored table for an engine name; an unknown
	// engine yields an empty map, not an error.
	LoadValues(engine string) (map[string]map[string]float64, error)
}

// SQLiteSnapshotter stores learning tables in a sqlite database in WAL mode.
type SQLiteSnapshotter struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteSnapshotter opens (creating if needed) the snapshot database at
// the given path and ensures the schema exists.
func NewSQLiteSnapshotter(dbPath string) (*SQLiteSnapshotter, error) {
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

	s := &SQLiteSnapshotter{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteSnapshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteSnapshotter) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS learned_values (
	engine    TEXT NOT NULL,
	state_key TEXT NOT NULL,
	action    TEXT NOT NULL,
	value     REAL NOT NULL,
	PRIMARY KEY (engine, state_key, action)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec("INSERT INTO schema_info (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("snapshot schema version %d is newer than supported %d", version, schemaVersion)
	}
	return nil
}

// SaveValues implements Snapshotter.
func (s *SQLiteSnapshotter) SaveValues(engine string, values map[string]map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM learned_values WHERE engine = ?", engine); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO learned_values (engine, state_key, action, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for stateKey, actions := range values {
		for action, value := range actions {
			if _, err := stmt.Exec(engine, stateKey, action, value); err != nil {
				return fmt.Errorf("insert %s/%s: %w", stateKey, action, err)
			}
		}
	}
	return tx.Commit()
}

// LoadValues implements Snapshotter.
func (s *SQLiteSnapshotter) LoadValues(engine string) (map[string]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT state_key, action, value FROM learned_values WHERE engine = ?", engine)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	values := make(map[string]map[string]float64)
	for rows.Next() {
		var stateKey, action string
		var value float64
		if err := rows.Scan(&stateKey, &action, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		actions, ok := values[stateKey]
		if !ok {
			actions = make(map[string]float64)
			values[stateKey] = actions
		}
		actions[action] = value
	}
	return values, rows.Err()
}
