package booking

import (
	"context"
	"testing"
	"time"

	"rsvpbot/internal/meetup"
	"rsvpbot/pkg/logx"
)

type scriptedBooker struct {
	results []meetup.AttemptResult
	err     error
	calls   int
}

func (b *scriptedBooker) RSVP(_ context.Context, _, _ string) (meetup.AttemptResult, error) {
	b.calls++
	if b.err != nil {
		return meetup.AttemptResult{}, b.err
	}
	i := b.calls - 1
	if i >= len(b.results) {
		i = len(b.results) - 1
	}
	return b.results[i], nil
}

func testLoop(b Booker, opts Options) *Loop {
	l := New(b, 0, opts, logx.Nop())
	l.now = func() time.Time { return time.Date(2026, time.August, 4, 18, 0, 0, 0, time.UTC) }
	l.sleep = func(context.Context, time.Duration) {}
	return l
}

var transient = meetup.AttemptResult{Codes: []string{meetup.CodeTooFewSpots}}

func pastDeadline(l *Loop) time.Time { return l.now().Add(-time.Minute) }

func TestRunStopsImmediatelyOnNonTransientResult(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{results: []meetup.AttemptResult{{Status: "YES"}}}
	l := testLoop(b, Options{Interval: time.Second})

	out, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 2, MaxAttempts: 5, Deadline: l.now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.State != StateSucceeded || out.Attempts != 1 {
		t.Fatalf("out = %+v, want SUCCEEDED after 1 attempt", out)
	}
	if b.calls != 1 {
		t.Fatalf("booker called %d times, want 1", b.calls)
	}
}

func TestRunStopsOnOtherErrorCode(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{results: []meetup.AttemptResult{{Codes: []string{"event_full"}}}}
	l := testLoop(b, Options{Interval: time.Second})

	out, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 2, MaxAttempts: 5, Deadline: l.now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// Any non-transient code is terminal, booking success or not.
	if out.State != StateSucceeded || out.Attempts != 1 {
		t.Fatalf("out = %+v, want terminal after 1 attempt", out)
	}
}

func TestRunTransientRetriesCappedByMaxAttempts(t *testing.T) {
	t.Parallel()
	// min=2, max=3, deadline already past, transient responses: the loop
	// must make exactly 3 attempts and end EXHAUSTED.
	b := &scriptedBooker{results: []meetup.AttemptResult{transient}}
	l := testLoop(b, Options{Interval: time.Second})

	out, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 2, MaxAttempts: 3, Deadline: pastDeadline(l),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.State != StateExhausted {
		t.Fatalf("state = %s, want EXHAUSTED", out.State)
	}
	if out.Attempts != 3 || b.calls != 3 {
		t.Fatalf("attempts = %d (calls %d), want exactly 3", out.Attempts, b.calls)
	}
}

func TestRunNeverExceedsMaxAttempts(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{results: []meetup.AttemptResult{transient}}
	l := testLoop(b, Options{Interval: time.Second})

	out, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 1, MaxAttempts: 4, Deadline: l.now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Attempts != 4 {
		t.Fatalf("attempts = %d, want 4 (max cap regardless of time budget)", out.Attempts)
	}
}

func TestRunMinAttemptsDespitePastDeadline(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{results: []meetup.AttemptResult{transient, {Status: "YES"}}}
	l := testLoop(b, Options{Interval: time.Second})

	out, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 2, MaxAttempts: 3, Deadline: pastDeadline(l),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.State != StateSucceeded || out.Attempts != 2 {
		t.Fatalf("out = %+v, want SUCCEEDED after 2 attempts", out)
	}
}

func TestRunDryRunMakesNoBookingCalls(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{results: []meetup.AttemptResult{transient}}
	l := testLoop(b, Options{Interval: time.Second, DryRun: true})

	out, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 2, MaxAttempts: 3, Deadline: l.now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if b.calls != 0 {
		t.Fatalf("dry run made %d booking calls, want 0", b.calls)
	}
	if out.State != StateSucceeded || out.Last.Status != "DRY_RUN" {
		t.Fatalf("out = %+v, want deterministic DRY_RUN success", out)
	}
}

func TestRunTransportErrorIsFatal(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{err: context.DeadlineExceeded}
	l := testLoop(b, Options{Interval: time.Second})

	_, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 2, MaxAttempts: 3, Deadline: l.now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
	if b.calls != 1 {
		t.Fatalf("booker called %d times, want 1 (no retry on transport error)", b.calls)
	}
}

func TestRunCancellationDuringRetryWaitIsNotExhaustion(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{results: []meetup.AttemptResult{transient}}
	l := testLoop(b, Options{Interval: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	l.sleep = func(context.Context, time.Duration) { cancel() }

	out, err := l.Run(ctx, meetup.Event{ID: "e"}, Budget{
		MinAttempts: 1, MaxAttempts: 3, Deadline: l.now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected the cancellation to surface as an error")
	}
	if out.State == StateExhausted {
		t.Fatalf("state = %s, cancellation must not masquerade as a spent budget", out.State)
	}
	if b.calls != 1 {
		t.Fatalf("booker called %d times, want 1", b.calls)
	}
}

func TestRunAttemptHookSeesEveryAttempt(t *testing.T) {
	t.Parallel()
	b := &scriptedBooker{results: []meetup.AttemptResult{transient, transient, {Status: "YES"}}}
	var seen []int
	l := testLoop(b, Options{
		Interval:  time.Second,
		OnAttempt: func(n int, _ meetup.AttemptResult) { seen = append(seen, n) },
	})

	out, err := l.Run(context.Background(), meetup.Event{ID: "e"}, Budget{
		MinAttempts: 1, MaxAttempts: 5, Deadline: l.now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", out.Attempts)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("hook saw %v, want [1 2 3]", seen)
	}
}
