package gate

import (
	"context"
	"testing"
	"time"

	"rsvpbot/pkg/logx"
)

func testGate(cfg Config, now time.Time) (*Gate, *[]time.Duration) {
	slept := &[]time.Duration{}
	g := New(cfg, 0, logx.Nop())
	g.now = func() time.Time { return now }
	g.sleep = func(_ context.Context, d time.Duration) { *slept = append(*slept, d) }
	return g, slept
}

func TestWaitNoOpOutsideWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.August, 4, 14, 30, 0, 0, time.UTC)
	g, slept := testGate(Config{
		StartMinute: 55, EndMinute: 59,
		TargetHour: TargetHourUnset, TargetMinute: 0,
		Margin: 100 * time.Millisecond,
	}, now)

	g.Wait(context.Background())
	if len(*slept) != 0 {
		t.Fatalf("expected no sleep outside window, slept %v", *slept)
	}
}

func TestPlanNextHourBoundary(t *testing.T) {
	t.Parallel()
	// Current minute 57, window [55,59], target minute 0, hour unset:
	// the target is 15:00 plus margin.
	now := time.Date(2026, time.August, 4, 14, 57, 30, 0, time.UTC)
	g, _ := testGate(Config{
		StartMinute: 55, EndMinute: 59,
		TargetHour: TargetHourUnset, TargetMinute: 0,
		Margin: 100 * time.Millisecond,
	}, now)

	wait, target, armed := g.plan(now)
	if !armed {
		t.Fatal("expected armed inside window")
	}
	wantTarget := time.Date(2026, time.August, 4, 15, 0, 0, 0, time.UTC).Add(100 * time.Millisecond)
	if !target.Equal(wantTarget) {
		t.Fatalf("target = %v, want %v", target, wantTarget)
	}
	if want := wantTarget.Sub(now); wait != want {
		t.Fatalf("wait = %v, want %v", wait, want)
	}
	if wait <= 0 {
		t.Fatal("wait must be strictly positive with positive margin and future target")
	}
}

func TestPlanKeepsCurrentHourWhenMinuteBelowTarget(t *testing.T) {
	t.Parallel()
	// Minute 30 is below target minute 45, so the boundary stays at 14:45.
	now := time.Date(2026, time.August, 4, 14, 30, 0, 0, time.UTC)
	g, _ := testGate(Config{
		StartMinute: 0, EndMinute: 59,
		TargetHour: TargetHourUnset, TargetMinute: 45,
	}, now)

	_, target, armed := g.plan(now)
	if !armed {
		t.Fatal("expected armed")
	}
	want := time.Date(2026, time.August, 4, 14, 45, 0, 0, time.UTC)
	if !target.Equal(want) {
		t.Fatalf("target = %v, want %v", target, want)
	}
}

func TestPlanRollsForwardADayWhenTargetPassed(t *testing.T) {
	t.Parallel()
	// Explicit hour already behind corrected now rolls to tomorrow.
	now := time.Date(2026, time.August, 4, 14, 57, 0, 0, time.UTC)
	g, _ := testGate(Config{
		StartMinute: 55, EndMinute: 59,
		TargetHour: 10, TargetMinute: 0,
	}, now)

	wait, target, armed := g.plan(now)
	if !armed {
		t.Fatal("expected armed")
	}
	want := time.Date(2026, time.August, 5, 10, 0, 0, 0, time.UTC)
	if !target.Equal(want) {
		t.Fatalf("target = %v, want %v", target, want)
	}
	if wait < 0 {
		t.Fatalf("wait must be non-negative, got %v", wait)
	}
}

func TestPlanMidnightRollover(t *testing.T) {
	t.Parallel()
	// 23:57 with target minute 0 wraps the hour to 0, which lands earlier
	// the same day and is pushed 24h forward: next midnight.
	now := time.Date(2026, time.August, 4, 23, 57, 0, 0, time.UTC)
	g, _ := testGate(Config{
		StartMinute: 55, EndMinute: 59,
		TargetHour: TargetHourUnset, TargetMinute: 0,
	}, now)

	_, target, armed := g.plan(now)
	if !armed {
		t.Fatal("expected armed")
	}
	want := time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC)
	if !target.Equal(want) {
		t.Fatalf("target = %v, want %v", target, want)
	}
}

func TestWaitSleepsInsideWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.August, 4, 14, 57, 0, 0, time.UTC)
	g, slept := testGate(Config{
		StartMinute: 55, EndMinute: 59,
		TargetHour: TargetHourUnset, TargetMinute: 0,
		Margin: 100 * time.Millisecond,
	}, now)

	g.Wait(context.Background())
	if len(*slept) != 1 {
		t.Fatalf("expected exactly one sleep, got %d", len(*slept))
	}
	if (*slept)[0] <= 0 {
		t.Fatalf("sleep duration must be positive, got %v", (*slept)[0])
	}
}
