// Package app wires one booking run end to end: clock correction, event
// selection, the wait gate, and the attempt loop.
//
// Run is the single error boundary of the process. Every failure below it
// is returned inside the Summary, logged by the caller, and never turns
// into a nonzero exit: unattended cron invocations are expected to watch
// the log stream and the history database, not the exit code.
package app

import (
	"context"
	"fmt"
	"time"

	"rsvpbot/internal/booking"
	"rsvpbot/internal/clock"
	"rsvpbot/internal/config"
	"rsvpbot/internal/gate"
	"rsvpbot/internal/history"
	"rsvpbot/internal/meetup"
	"rsvpbot/internal/notify"
	"rsvpbot/internal/selector"
	"rsvpbot/pkg/logx"
)

// Params are the resolved CLI values for one run.
type Params struct {
	ClubName       string // group URL name
	DayOfWeek      string // "mon".."sun"
	SessionName    string // title substring, case-insensitive
	Interval       time.Duration
	MinDaysFromNow int
	DryRun         bool
	VenueID        string
}

// Outcome values beyond the booking loop's own states.
const (
	OutcomeNoEvent = "NO_EVENT"
	OutcomeError   = "ERROR"
)

// Summary is what one run produced, error included.
type Summary struct {
	Outcome  string
	Event    *meetup.Event
	Attempts int
	Status   string
	Elapsed  time.Duration
	Err      error
}

type App struct {
	cfg      *config.Config
	log      logx.Logger
	store    *history.Store
	notifier *notify.Notifier
}

func New(cfg *config.Config, log logx.Logger, store *history.Store, notifier *notify.Notifier) *App {
	return &App{cfg: cfg, log: log, store: store, notifier: notifier}
}

// Run executes the whole pipeline once and reports the outcome.
func (a *App) Run(ctx context.Context, p Params) Summary {
	a.log.Info("booking run started",
		logx.String("club", p.ClubName),
		logx.String("day", p.DayOfWeek),
		logx.String("session", p.SessionName))

	// Every duration field was parse-checked by Config.Normalize at load
	// time, so the duration reads in this file discard the error.
	ntpTimeout, _ := config.ParseDurationOrDefault("ntp.timeout", a.cfg.NTP.Timeout, clock.DefaultTimeout)
	offset := clock.Probe(a.cfg.NTP.Server, ntpTimeout, a.log)
	a.log.Info("clock drift", logx.Float64("offset_seconds", offset))

	start := clock.Now(offset)
	runID, err := a.store.BeginRun(ctx, history.RunRecord{
		StartedAt:  start,
		Club:       p.ClubName,
		DayOfWeek:  p.DayOfWeek,
		TitleQuery: p.SessionName,
	})
	if err != nil {
		a.log.Warn("history write failed", logx.Err(err))
	}

	sum := a.run(ctx, p, offset, start, runID)
	sum.Elapsed = clock.Now(offset).Sub(start)

	if err := a.store.FinishRun(ctx, runID, sum.Outcome, sum.Attempts, sum.Elapsed, sum.Err); err != nil {
		a.log.Warn("history write failed", logx.Err(err))
	}
	a.report(ctx, sum)
	return sum
}

// run is the fallible part of the pipeline; Run wraps it with bookkeeping.
func (a *App) run(ctx context.Context, p Params, offset float64, start time.Time, runID int64) Summary {
	client, err := meetup.NewClient(a.meetupConfig(), a.log)
	if err != nil {
		return Summary{Outcome: OutcomeError, Err: err}
	}

	events, err := client.UpcomingEvents(ctx, p.ClubName)
	if err != nil {
		return Summary{Outcome: OutcomeError, Err: err}
	}

	event, err := selector.Next(events, p.DayOfWeek, p.SessionName, offset, p.MinDaysFromNow)
	if err != nil {
		return Summary{Outcome: OutcomeError, Err: err}
	}
	if event == nil {
		a.log.Info("no matching event found")
		return Summary{Outcome: OutcomeNoEvent}
	}
	a.log.Info("booking event",
		logx.String("event_id", event.ID),
		logx.String("title", event.Title),
		logx.Time("starts_at", event.StartsAt))
	if err := a.store.SetEvent(ctx, runID, event.ID, event.Title, event.StartsAt); err != nil {
		a.log.Warn("history write failed", logx.Err(err))
	}

	margin, _ := config.ParseDurationOrDefault("gate.margin", a.cfg.Gate.Margin, 100*time.Millisecond)
	gate.New(a.gateConfig(margin), offset, a.log).Wait(ctx)
	if ctx.Err() != nil {
		return Summary{Outcome: OutcomeError, Event: event, Err: ctx.Err()}
	}

	timeBudget, _ := config.ParseDurationOrDefault("booking.time_budget", a.cfg.Booking.TimeBudget, 2*time.Minute)
	budget := booking.Budget{
		MinAttempts: a.cfg.Booking.MinAttempts,
		MaxAttempts: a.cfg.Booking.MaxAttempts,
		Deadline:    start.Add(timeBudget),
	}

	loop := booking.New(client, offset, booking.Options{
		TransientCodes: a.cfg.Meetup.TransientCodes,
		Interval:       p.Interval,
		DryRun:         p.DryRun || a.cfg.Meetup.DryRun,
		VenueID:        p.VenueID,
		OnAttempt: func(n int, res meetup.AttemptResult) {
			if err := a.store.RecordAttempt(ctx, runID, n, res.Status, res.Codes); err != nil {
				a.log.Warn("history write failed", logx.Err(err))
			}
		},
	}, a.log)

	out, err := loop.Run(ctx, *event, budget)
	sum := Summary{
		Outcome:  string(out.State),
		Event:    event,
		Attempts: out.Attempts,
		Status:   out.Last.Status,
	}
	if err != nil {
		sum.Outcome = OutcomeError
		sum.Err = err
		return sum
	}
	if out.State == booking.StateExhausted {
		sum.Err = fmt.Errorf("booking exhausted after %d attempts", out.Attempts)
	}
	return sum
}

func (a *App) meetupConfig() meetup.Config {
	waitMin, _ := config.ParseDurationField("meetup.retry_wait_min", a.cfg.Meetup.RetryWaitMin)
	waitMax, _ := config.ParseDurationField("meetup.retry_wait_max", a.cfg.Meetup.RetryWaitMax)
	return meetup.Config{
		Endpoint:      a.cfg.Meetup.Endpoint,
		AccessToken:   a.cfg.Meetup.AccessToken,
		RSVPQueryHash: a.cfg.Meetup.RSVPQueryHash,
		RetryMax:      a.cfg.Meetup.RetryMax,
		RetryWaitMin:  waitMin,
		RetryWaitMax:  waitMax,
	}
}

func (a *App) gateConfig(margin time.Duration) gate.Config {
	hour := gate.TargetHourUnset
	if a.cfg.Gate.TargetHour != nil {
		hour = *a.cfg.Gate.TargetHour
	}
	return gate.Config{
		StartMinute:  a.cfg.Gate.StartMinute,
		EndMinute:    a.cfg.Gate.EndMinute,
		TargetHour:   hour,
		TargetMinute: a.cfg.Gate.TargetMinute,
		Margin:       margin,
	}
}

// report logs the final line and pushes the optional chat notification.
func (a *App) report(ctx context.Context, sum Summary) {
	fields := []logx.Field{
		logx.String("outcome", sum.Outcome),
		logx.Int("attempts", sum.Attempts),
		logx.Duration("elapsed", sum.Elapsed),
	}
	if sum.Event != nil {
		fields = append(fields, logx.String("event", sum.Event.Title))
	}
	if sum.Err != nil {
		a.log.Error("booking run failed", append(fields, logx.Err(sum.Err))...)
	} else {
		a.log.Info("booking run finished", fields...)
	}

	text := fmt.Sprintf("rsvpbot: %s", sum.Outcome)
	if sum.Event != nil {
		text += fmt.Sprintf("\nevent: %s (%s)", sum.Event.Title, sum.Event.StartsAt.Format(time.RFC3339))
	}
	text += fmt.Sprintf("\nattempts: %d, elapsed: %s", sum.Attempts, sum.Elapsed.Round(time.Millisecond))
	if sum.Err != nil {
		text += fmt.Sprintf("\nerror: %v", sum.Err)
	}
	if err := a.notifier.Send(ctx, text); err != nil {
		a.log.Warn("outcome notification failed", logx.Err(err))
	}
}
