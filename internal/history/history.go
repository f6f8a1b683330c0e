// Package history persists run and attempt records to a local SQLite
// database so booking behavior can be audited after unattended runs.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rsvpbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// RunRecord describes one run's criteria and, once known, its outcome.
type RunRecord struct {
	StartedAt     time.Time
	Club          string
	DayOfWeek     string
	TitleQuery    string
	EventID       string
	EventTitle    string
	EventStartsAt time.Time
}

type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the store. It returns (nil, nil) when cfg.Path is
// empty: history is optional and a nil *Store is a safe no-op receiver.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts the run header and returns its id.
func (s *Store) BeginRun(ctx context.Context, r RunRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(started_at, club, day_of_week, title_query)
		 VALUES(?,?,?,?)`,
		r.StartedAt.Format(time.RFC3339Nano), r.Club, r.DayOfWeek, r.TitleQuery,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetEvent records which event the selector picked for the run.
func (s *Store) SetEvent(ctx context.Context, runID int64, eventID, title string, startsAt time.Time) error {
	if s == nil || s.db == nil || runID == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET event_id=?, event_title=?, event_starts_at=? WHERE id=?`,
		eventID, title, startsAt.UTC().Format(time.RFC3339Nano), runID,
	)
	return err
}

// RecordAttempt appends one attempt row. Codes are stored comma-joined;
// the known codes never contain commas.
func (s *Store) RecordAttempt(ctx context.Context, runID int64, n int, status string, codes []string) error {
	if s == nil || s.db == nil || runID == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts(run_id, n, at, status, codes) VALUES(?,?,?,?,?)`,
		runID, n, time.Now().UTC().Format(time.RFC3339Nano), status, strings.Join(codes, ","),
	)
	return err
}

// FinishRun stamps the run's terminal outcome.
func (s *Store) FinishRun(ctx context.Context, runID int64, outcome string, attempts int, elapsed time.Duration, runErr error) error {
	if s == nil || s.db == nil || runID == 0 {
		return nil
	}
	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET outcome=?, attempts=?, elapsed_ms=?, err=? WHERE id=?`,
		outcome, attempts, elapsed.Milliseconds(), errStr, runID,
	)
	return err
}
