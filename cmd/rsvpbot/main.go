package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rsvpbot/internal/app"
	"rsvpbot/internal/config"
	"rsvpbot/internal/daemon"
	"rsvpbot/internal/history"
	"rsvpbot/internal/notify"
	"rsvpbot/pkg/logx"
)

// Exit policy: the process exits 0 even when the run fails. Failures are
// logged (and pushed to Telegram when configured); cron/systemd callers
// watch those channels, not the exit code.
func main() {
	var (
		cfgPath         string
		clubName        string
		dayInWeek       string
		sessionName     string
		intervalSeconds int
		minDaysFromNow  int
		dryRun          bool
		venueID         string
		schedule        string
	)
	flag.StringVar(&cfgPath, "config", "./rsvpbot.yaml", "path to config yaml/json")
	flag.StringVar(&clubName, "club_name", "", "group URL name (required)")
	flag.StringVar(&dayInWeek, "day_in_week", "", "target weekday, mon..sun (required)")
	flag.StringVar(&sessionName, "session_name", "", "required title substring (required)")
	flag.IntVar(&intervalSeconds, "interval_seconds", 5, "seconds between transient retries")
	flag.IntVar(&minDaysFromNow, "min_days_from_now", 0, "earliest eligible event, days from now")
	flag.BoolVar(&dryRun, "dry_run", false, "log attempts without calling the booking API")
	flag.StringVar(&venueID, "venue_id", "", "optional venue restriction for the RSVP")
	flag.StringVar(&schedule, "schedule", "", "cron spec; when set, run as a daemon instead of once")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot := logx.NewConsole("info")

	mgr := config.NewManager(cfgPath, boot)
	cfg, err := mgr.Load()
	if err != nil {
		boot.Error("config load failed", logx.String("path", cfgPath), logx.Err(err))
		return
	}
	if clubName == "" || dayInWeek == "" || sessionName == "" {
		boot.Error("missing required flags: --club_name, --day_in_week, --session_name")
		return
	}

	// Notifications are optional; a broken telegram section must not stop
	// the booking pipeline.
	notifier, err := notify.New(notify.Config{
		Token:  cfg.Telegram.Token,
		ChatID: cfg.Telegram.ChatID,
	}, boot)
	if err != nil {
		boot.Warn("telegram notifications disabled", logx.Err(err))
		notifier = nil
	}

	log, closeLogs := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, notifier)
	defer func() { _ = closeLogs() }()

	busy, _ := config.ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout)
	store, err := history.Open(history.Config{Path: cfg.History.Path, BusyTimeout: busy}, log)
	if err != nil {
		log.Warn("history disabled", logx.Err(err))
		store = nil
	}
	defer func() { _ = store.Close() }()

	params := app.Params{
		ClubName:       clubName,
		DayOfWeek:      dayInWeek,
		SessionName:    sessionName,
		Interval:       resolveInterval(intervalSeconds, cfg),
		MinDaysFromNow: minDaysFromNow,
		DryRun:         dryRun,
		VenueID:        venueID,
	}

	if schedule != "" {
		svc := daemon.New(mgr, schedule, func(ctx context.Context, cfg *config.Config) {
			app.New(cfg, log, store, notifier).Run(ctx, params)
		}, log)
		if err := svc.Start(ctx); err != nil {
			log.Error("daemon failed", logx.Err(err))
		}
		return
	}

	app.New(cfg, log, store, notifier).Run(ctx, params)
}

// resolveInterval prefers an explicitly passed --interval_seconds over the
// config file's booking.interval.
func resolveInterval(flagVal int, cfg *config.Config) time.Duration {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "interval_seconds" {
			explicit = true
		}
	})
	if explicit {
		return time.Duration(flagVal) * time.Second
	}
	if d, err := config.ParseDurationField("booking.interval", cfg.Booking.Interval); err == nil && d > 0 {
		return d
	}
	return time.Duration(flagVal) * time.Second
}
