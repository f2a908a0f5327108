// Package history keeps a record of every report attempt in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusSent     Status = "sent"
	StatusRendered Status = "rendered"
	StatusFailed   Status = "failed"
)

// Attempt is a single invocation of the report pipeline. The optional fields are empty
// if the pipeline failed before reaching the corresponding stage.
type Attempt struct {
	RunID      string
	Attempt    int
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	FileID     string
	Revision   string
	PrintArea  string
	Image      string
	MessageID  string
	Error      string
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database. An empty path or ':memory:'
// opens a transient in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := strings.TrimSpace(path)
	memory := dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if !memory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id      TEXT NOT NULL,
            attempt     INTEGER NOT NULL,
            started_at  INTEGER NOT NULL,
            finished_at INTEGER NOT NULL,
            status      TEXT NOT NULL,
            file_id     TEXT NOT NULL DEFAULT '',
            revision    TEXT NOT NULL DEFAULT '',
            print_area  TEXT NOT NULL DEFAULT '',
            image       TEXT NOT NULL DEFAULT '',
            message_id  TEXT NOT NULL DEFAULT '',
            error       TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id, attempt);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_started ON attempts(started_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}

func (s *Store) Record(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts
        (run_id, attempt, started_at, finished_at, status, file_id, revision, print_area, image, message_id, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		a.RunID,
		a.Attempt,
		a.StartedAt.UnixMilli(),
		a.FinishedAt.UnixMilli(),
		string(a.Status),
		a.FileID,
		a.Revision,
		a.PrintArea,
		a.Image,
		a.MessageID,
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	return nil
}

// List returns the most recent attempts, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
        run_id, attempt, started_at, finished_at, status, file_id, revision, print_area, image, message_id, error
        FROM attempts
        ORDER BY started_at DESC, id DESC
        LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var a Attempt
		var status string
		var started, finished int64

		if err := rows.Scan(&a.RunID, &a.Attempt, &started, &finished, &status, &a.FileID, &a.Revision, &a.PrintArea, &a.Image, &a.MessageID, &a.Error); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}

		a.Status = Status(status)
		a.StartedAt = time.UnixMilli(started)
		a.FinishedAt = time.UnixMilli(finished)

		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	return attempts, nil
}
