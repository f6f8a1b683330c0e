// Package booking runs the bounded RSVP attempt loop.
package booking

import (
	"context"
	"time"

	"rsvpbot/internal/clock"
	"rsvpbot/internal/meetup"
	"rsvpbot/pkg/logx"
)

// State is the loop's terminal (or in-flight) state.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateAttempting State = "ATTEMPTING"
	StateRetryWait  State = "RETRY_WAIT"
	StateSucceeded  State = "SUCCEEDED"
	StateExhausted  State = "EXHAUSTED"
)

// Budget bounds the loop: the loop never stops before MinAttempts, never
// starts an attempt past MaxAttempts, and Deadline (corrected absolute
// time) gates non-forced entries between the two.
type Budget struct {
	MinAttempts int
	MaxAttempts int
	Deadline    time.Time
}

// Outcome reports how the loop ended. State is SUCCEEDED for any
// non-retryable result — including hard rejections: "terminal" and
// "booking logically succeeded" are deliberately distinct notions, only
// the transient code earns a retry.
type Outcome struct {
	State    State
	Attempts int
	Last     meetup.AttemptResult
}

// Booker issues one observable booking call.
type Booker interface {
	RSVP(ctx context.Context, eventID, venueID string) (meetup.AttemptResult, error)
}

// AttemptHook observes each attempt's result (for history persistence).
type AttemptHook func(n int, res meetup.AttemptResult)

type Loop struct {
	booker    Booker
	transient map[string]bool
	interval  time.Duration
	dryRun    bool
	venueID   string
	log       logx.Logger
	onAttempt AttemptHook

	// injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

type Options struct {
	// TransientCodes defaults to {meetup.CodeTooFewSpots}.
	TransientCodes []string
	Interval       time.Duration
	DryRun         bool
	VenueID        string
	OnAttempt      AttemptHook
}

func New(booker Booker, offsetSeconds float64, opts Options, log logx.Logger) *Loop {
	codes := opts.TransientCodes
	if len(codes) == 0 {
		codes = []string{meetup.CodeTooFewSpots}
	}
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return &Loop{
		booker:    booker,
		transient: set,
		interval:  opts.Interval,
		dryRun:    opts.DryRun,
		venueID:   opts.VenueID,
		log:       log,
		onAttempt: opts.OnAttempt,
		now:       func() time.Time { return clock.Now(offsetSeconds) },
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
		},
	}
}

// Run attempts to book event until a non-retryable result arrives or the
// budget is spent. The attempt counter is monotonic within a run.
//
// Loop entry: attempts < MinAttempts, or attempts < MaxAttempts while the
// deadline has not passed. A transient rejection additionally forces its
// own retry as long as the attempt cap allows it: the RETRY_WAIT edge is
// bounded by MaxAttempts, not by the deadline. A transport error is fatal
// for the run, not a transient rejection, and propagates to the caller; so
// does a context cancelled during the retry wait, which is a caller
// decision, not a spent budget.
func (l *Loop) Run(ctx context.Context, event meetup.Event, budget Budget) (Outcome, error) {
	out := Outcome{State: StateNotStarted}

	for l.mayEnter(out, budget) {
		out.State = StateAttempting
		out.Attempts++
		l.log.Info("rsvp attempt",
			logx.Int("attempt", out.Attempts),
			logx.String("event_id", event.ID))

		res, err := l.attempt(ctx, event)
		if err != nil {
			return out, err
		}
		out.Last = res
		if l.onAttempt != nil {
			l.onAttempt(out.Attempts, res)
		}
		l.log.Info("rsvp status",
			logx.Int("attempt", out.Attempts),
			logx.String("status", res.Status),
			logx.Strings("codes", res.Codes))

		if !res.HasAnyCode(l.transient) {
			out.State = StateSucceeded
			return out, nil
		}

		out.State = StateRetryWait
		if out.Attempts >= budget.MaxAttempts {
			break
		}
		l.log.Warn("transient rejection, retrying",
			logx.Duration("interval", l.interval))
		l.sleep(ctx, l.interval)
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}

	out.State = StateExhausted
	return out, nil
}

func (l *Loop) mayEnter(out Outcome, budget Budget) bool {
	if out.Attempts >= budget.MaxAttempts {
		return false
	}
	if out.Attempts < budget.MinAttempts {
		return true
	}
	// A transient rejection already holds a forced retry ticket.
	if out.State == StateRetryWait {
		return true
	}
	return l.now().Before(budget.Deadline)
}

func (l *Loop) attempt(ctx context.Context, event meetup.Event) (meetup.AttemptResult, error) {
	if l.dryRun {
		l.log.Info("dry run, skipping booking call", logx.String("event_id", event.ID))
		return meetup.AttemptResult{Status: "DRY_RUN"}, nil
	}
	return l.booker.RSVP(ctx, event.ID, l.venueID)
}
