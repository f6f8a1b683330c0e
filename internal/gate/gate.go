// Package gate blocks a run until a target minute boundary, but only when
// started inside a configured arming window.
//
// The window prevents a process started far from the target from computing
// a "next hour" boundary and sleeping for most of an hour: outside the
// window the gate falls through immediately and the run proceeds.
package gate

import (
	"context"
	"time"

	"rsvpbot/internal/clock"
	"rsvpbot/pkg/logx"
)

// TargetHourUnset selects the next hour boundary relative to corrected now.
const TargetHourUnset = -1

type Config struct {
	// Arming window, inclusive, in minute-of-hour.
	StartMinute int
	EndMinute   int

	// TargetHour is an absolute hour of day, or TargetHourUnset to roll to
	// the next occurrence of TargetMinute.
	TargetHour   int
	TargetMinute int

	// Margin pads the target so the action fires strictly after the
	// boundary, never before.
	Margin time.Duration
}

type Gate struct {
	cfg    Config
	offset float64
	log    logx.Logger

	// injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(cfg Config, offsetSeconds float64, log logx.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		offset: offsetSeconds,
		log:    log,
		now:    func() time.Time { return clock.NowLocal(offsetSeconds) },
		sleep:  blockingSleep,
	}
}

func blockingSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Wait blocks until the computed target boundary when corrected now lies
// inside the arming window, and returns immediately otherwise. The sleep
// only ends early if ctx is cancelled.
func (g *Gate) Wait(ctx context.Context) {
	now := g.now()
	wait, target, armed := g.plan(now)
	if !armed {
		g.log.Info("outside arming window, continuing without wait",
			logx.Int("minute", now.Minute()),
			logx.Int("window_start", g.cfg.StartMinute),
			logx.Int("window_end", g.cfg.EndMinute))
		return
	}
	g.log.Info("waiting for target boundary",
		logx.Duration("wait", wait),
		logx.Time("target", target))
	g.sleep(ctx, wait)
}

// plan computes the wait for now. It reports armed=false when now's minute
// is outside [StartMinute, EndMinute].
func (g *Gate) plan(now time.Time) (wait time.Duration, target time.Time, armed bool) {
	minute := now.Minute()
	if minute < g.cfg.StartMinute || minute > g.cfg.EndMinute {
		return 0, time.Time{}, false
	}

	tgtMin := ((g.cfg.TargetMinute % 60) + 60) % 60
	hour := now.Hour()
	if g.cfg.TargetHour != TargetHourUnset {
		tgtH := ((g.cfg.TargetHour % 24) + 24) % 24
		hour = tgtH
	} else if minute >= tgtMin {
		hour = (hour + 1) % 24
	}

	target = time.Date(now.Year(), now.Month(), now.Day(), hour, tgtMin, 0, 0, now.Location()).
		Add(g.cfg.Margin)
	// Guards against clock-edge miscalculation (e.g. the %24 rollover
	// landing earlier the same day).
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	return target.Sub(now), target, true
}
