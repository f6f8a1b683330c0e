package clock

import (
	"testing"
	"time"

	"rsvpbot/pkg/logx"
)

func TestNowAppliesOffset(t *testing.T) {
	t.Parallel()
	plain := Now(0)
	ahead := Now(3600)

	if plain.Location() != time.UTC || ahead.Location() != time.UTC {
		t.Fatal("corrected now must be UTC")
	}
	diff := ahead.Sub(plain)
	if diff < 59*time.Minute || diff > 61*time.Minute {
		t.Fatalf("offset of 3600s shifted by %v", diff)
	}
}

func TestNowNegativeOffset(t *testing.T) {
	t.Parallel()
	behind := Now(-30)
	if !behind.Before(time.Now().UTC()) {
		t.Fatal("negative offset must move the clock backwards")
	}
}

func TestProbeFailureDegradesToZero(t *testing.T) {
	t.Parallel()
	// An unresolvable server fails the probe; the offset degrades to 0.
	got := Probe("ntp.invalid", 200*time.Millisecond, logx.Nop())
	if got != 0.0 {
		t.Fatalf("Probe = %v, want 0.0 on failure", got)
	}
}
