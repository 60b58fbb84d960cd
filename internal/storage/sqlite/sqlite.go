package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"presencelight/internal/core"
	"presencelight/internal/poller"
	"presencelight/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

// MaxListLimit caps ListTransitions
const MaxListLimit = 500

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	// SQLite will store times as UTC strings
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer (the poll loop) and occasional API readers
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS light_transitions (
			id TEXT PRIMARY KEY,
			poll_id TEXT NOT NULL,
			occurred_at DATETIME NOT NULL,
			light_on INTEGER NOT NULL,
			availability TEXT NOT NULL,
			activity TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_light_transitions_occurred ON light_transitions(occurred_at);

		CREATE TABLE IF NOT EXISTS last_presence (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			poll_id TEXT NOT NULL,
			observed_at DATETIME NOT NULL,
			availability TEXT NOT NULL,
			activity TEXT NOT NULL,
			active INTEGER NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTransition appends a light transition attempt
func (s *SQLiteStorage) SaveTransition(ctx context.Context, tr *core.Transition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO light_transitions (id, poll_id, occurred_at, light_on, availability, activity, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tr.ID, tr.PollID, tr.At.UTC(), tr.On, tr.Status.Availability, tr.Status.Activity, tr.Success, tr.Error)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}
	return nil
}

// ListTransitions returns the most recent transitions, newest first
func (s *SQLiteStorage) ListTransitions(ctx context.Context, limit int) ([]*core.Transition, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, occurred_at, light_on, availability, activity, success, error
		FROM light_transitions
		ORDER BY occurred_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*core.Transition
	for rows.Next() {
		var tr core.Transition
		if err := rows.Scan(&tr.ID, &tr.PollID, &tr.At, &tr.On,
			&tr.Status.Availability, &tr.Status.Activity, &tr.Success, &tr.Error); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, &tr)
	}

	return transitions, rows.Err()
}

// SaveLastPresence saves or replaces the single last-presence row
func (s *SQLiteStorage) SaveLastPresence(ctx context.Context, obs *core.Observation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO last_presence (id, poll_id, observed_at, availability, activity, active, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			poll_id = excluded.poll_id,
			observed_at = excluded.observed_at,
			availability = excluded.availability,
			activity = excluded.activity,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, obs.PollID, obs.At.UTC(), obs.Status.Availability, obs.Status.Activity, obs.Active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save last presence: %w", err)
	}
	return nil
}

// GetLastPresence returns the last saved presence, or storage.ErrNotFound
func (s *SQLiteStorage) GetLastPresence(ctx context.Context) (*core.Observation, error) {
	var obs core.Observation
	err := s.db.QueryRowContext(ctx, `
		SELECT poll_id, observed_at, availability, activity, active
		FROM last_presence WHERE id = 1
	`).Scan(&obs.PollID, &obs.At, &obs.Status.Availability, &obs.Status.Activity, &obs.Active)

	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last presence: %w", err)
	}
	return &obs, nil
}

// ObservePresence implements poller.Observer
func (s *SQLiteStorage) ObservePresence(ctx context.Context, obs core.Observation) error {
	return s.SaveLastPresence(ctx, &obs)
}

// ObserveTransition implements poller.Observer
func (s *SQLiteStorage) ObserveTransition(ctx context.Context, tr core.Transition) error {
	return s.SaveTransition(ctx, &tr)
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStorage implements the interfaces
var (
	_ storage.Storage = (*SQLiteStorage)(nil)
	_ poller.Observer = (*SQLiteStorage)(nil)
)
