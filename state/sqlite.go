package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/use-agent/harvester/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_state (
	slot TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const slotKey = "current"

// SQLiteSlot persists the RunState in a single SQLite row so that a
// restarted process can serve the last known state.
type SQLiteSlot struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and prepares the
// schema. ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLiteSlot, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Every :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteSlot(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSlot wraps an open database and creates the schema.
func NewSQLiteSlot(db *sql.DB) (*SQLiteSlot, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init run_state schema: %w", err)
	}
	return &SQLiteSlot{db: db}, nil
}

// Save upserts st as the only row.
func (s *SQLiteSlot) Save(ctx context.Context, st models.RunState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_state (slot, run_id, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			run_id = excluded.run_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		slotKey, st.ID, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}

// Load reads the stored row back.
func (s *SQLiteSlot) Load(ctx context.Context) (models.RunState, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM run_state WHERE slot = ?`, slotKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunState{}, false, nil
	}
	if err != nil {
		return models.RunState{}, false, fmt.Errorf("load run state: %w", err)
	}

	var st models.RunState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return models.RunState{}, false, fmt.Errorf("decode run state: %w", err)
	}
	if st.Records == nil {
		st.Records = []*models.Record{}
	}
	return st, true, nil
}

// Close closes the underlying database.
func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}
