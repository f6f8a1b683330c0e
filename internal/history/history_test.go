package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rsvpbot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "history.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenDisabledWhenPathEmpty(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if s != nil {
		t.Fatal("empty path must disable the store")
	}
	// All writes are no-ops on a nil store.
	if _, err := s.BeginRun(context.Background(), RunRecord{}); err != nil {
		t.Fatalf("nil store BeginRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nil store Close: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.BeginRun(ctx, RunRecord{
		Club:       "run-club",
		DayOfWeek:  "tue",
		TitleQuery: "run",
	})
	if err != nil {
		t.Fatalf("BeginRun error: %v", err)
	}
	if id == 0 {
		t.Fatal("BeginRun returned id 0")
	}

	starts := time.Date(2026, 8, 4, 18, 0, 0, 0, time.UTC)
	if err := s.SetEvent(ctx, id, "e1", "Weekly Run Club", starts); err != nil {
		t.Fatalf("SetEvent error: %v", err)
	}
	if err := s.RecordAttempt(ctx, id, 1, "", []string{"too_few_spots"}); err != nil {
		t.Fatalf("RecordAttempt error: %v", err)
	}
	if err := s.RecordAttempt(ctx, id, 2, "YES", nil); err != nil {
		t.Fatalf("RecordAttempt error: %v", err)
	}
	if err := s.FinishRun(ctx, id, "SUCCEEDED", 2, 1500*time.Millisecond, nil); err != nil {
		t.Fatalf("FinishRun error: %v", err)
	}

	var (
		outcome  string
		attempts int
		elapsed  int64
		eventID  string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT outcome, attempts, elapsed_ms, event_id FROM runs WHERE id=?`, id,
	).Scan(&outcome, &attempts, &elapsed, &eventID)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if outcome != "SUCCEEDED" || attempts != 2 || elapsed != 1500 || eventID != "e1" {
		t.Fatalf("run row = %s/%d/%d/%s", outcome, attempts, elapsed, eventID)
	}

	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE run_id=?`, id,
	).Scan(&n); err != nil {
		t.Fatalf("query attempts: %v", err)
	}
	if n != 2 {
		t.Fatalf("attempt rows = %d, want 2", n)
	}
}
