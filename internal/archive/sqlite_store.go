package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	sterrors "github.com/cadre-oss/storyline/internal/errors"
)

// SQLiteStore persists turns in a SQLite database. The full record is kept
// as JSON; indexed columns mirror the fields used for lookups.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		status TEXT NOT NULL,
		source TEXT,
		started_at INTEGER NOT NULL,
		completed_at INTEGER,
		data JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_turns_started_at ON turns(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTurn inserts or updates a turn. Updates keep the row's position.
func (s *SQLiteStore) SaveTurn(turn *TurnRecord) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	var completed interface{}
	if !turn.CompletedAt.IsZero() {
		completed = turn.CompletedAt.UnixNano()
	}

	_, err = s.db.Exec(`
		INSERT INTO turns (id, session_id, status, source, started_at, completed_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			status = excluded.status,
			source = excluded.source,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			data = excluded.data
	`, turn.ID, turn.SessionID, string(turn.Status), turn.Source, turn.StartedAt.UnixNano(), completed, data)

	return err
}

// GetTurn retrieves a turn
func (s *SQLiteStore) GetTurn(id string) (*TurnRecord, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM turns WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, sterrors.Newf(sterrors.CodeTurnNotFound, "turn not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	var turn TurnRecord
	if err := json.Unmarshal(data, &turn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
	}

	return &turn, nil
}

// ListTurns lists the most recent turns, newest first
func (s *SQLiteStore) ListTurns(limit int) ([]*TurnRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	return s.query(`
		SELECT data FROM turns
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
}

// ListSessionTurns lists a session's turns in the order they were asked
func (s *SQLiteStore) ListSessionTurns(sessionID string) ([]*TurnRecord, error) {
	return s.query(`
		SELECT data FROM turns
		WHERE session_id = ?
		ORDER BY started_at ASC, rowid ASC
	`, sessionID)
}

func (s *SQLiteStore) query(q string, args ...interface{}) ([]*TurnRecord, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]*TurnRecord, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var turn TurnRecord
		if err := json.Unmarshal(data, &turn); err != nil {
			continue
		}
		turns = append(turns, &turn)
	}

	return turns, rows.Err()
}

// DeleteTurn deletes a turn
func (s *SQLiteStore) DeleteTurn(id string) error {
	_, err := s.db.Exec("DELETE FROM turns WHERE id = ?", id)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
