// Package events provides a SQLite-backed history of recording sessions.
// The store is a write-only audit log: nothing reads it to make control
// decisions, so the system keeps running without it.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nats-io/nats.go"

	"github.com/sentrycam/sentrycam/internal/bus"
	"github.com/sentrycam/sentrycam/internal/recording"
)

// SessionRecord is one recorded session in the history
type SessionRecord struct {
	ID        string     `json:"id"`
	VideoPath string     `json:"video_path"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Store persists session history in SQLite
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the store, creating the database file and schema as needed
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "events"),
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info("Event store opened", "path", path)
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			video_path TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at   INTEGER,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a newly started session
func (s *Store) CreateSession(ctx context.Context, ev recording.SessionEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, video_path, started_at, created_at)
		VALUES (?, ?, ?, ?)
	`, ev.SessionID, ev.VideoPath, ev.StartedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create session record: %w", err)
	}
	return nil
}

// EndSession marks a session as closed
func (s *Store) EndSession(ctx context.Context, ev recording.SessionEvent) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET ended_at = ? WHERE id = ?
	`, ev.EndedAt.Unix(), ev.SessionID)
	if err != nil {
		return fmt.Errorf("failed to end session record: %w", err)
	}
	return nil
}

// List returns the most recent sessions, newest first
func (s *Store) List(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, video_path, started_at, ended_at, created_at
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []SessionRecord{}
	for rows.Next() {
		var rec SessionRecord
		var startedAt, createdAt int64
		var endedAt sql.NullInt64

		if err := rows.Scan(&rec.ID, &rec.VideoPath, &startedAt, &endedAt, &createdAt); err != nil {
			return nil, err
		}

		rec.StartedAt = time.Unix(startedAt, 0)
		rec.CreatedAt = time.Unix(createdAt, 0)
		if endedAt.Valid {
			t := time.Unix(endedAt.Int64, 0)
			rec.EndedAt = &t
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Count returns the total number of recorded sessions
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

// Attach subscribes the store to session events on the bus
func (s *Store) Attach(b *bus.Bus) error {
	_, err := b.Subscribe(recording.SubjectSessionStarted, func(msg *nats.Msg) {
		var ev recording.SessionEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			s.logger.Error("Failed to unmarshal session event", "error", err)
			return
		}
		if err := s.CreateSession(context.Background(), ev); err != nil {
			s.logger.Error("Failed to record session start", "session", ev.SessionID, "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = b.Subscribe(recording.SubjectSessionStopped, func(msg *nats.Msg) {
		var ev recording.SessionEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			s.logger.Error("Failed to unmarshal session event", "error", err)
			return
		}
		if err := s.EndSession(context.Background(), ev); err != nil {
			s.logger.Error("Failed to record session end", "session", ev.SessionID, "error", err)
		}
	})
	return err
}
