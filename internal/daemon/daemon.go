// Package daemon runs the booking pipeline on a cron schedule instead of
// once. Intended for a systemd service that snipes the same session every
// week; one-shot invocations never touch this package.
package daemon

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"rsvpbot/internal/config"
	"rsvpbot/pkg/logx"
)

// RunFunc executes one booking run with the current config snapshot.
type RunFunc func(ctx context.Context, cfg *config.Config)

type Service struct {
	mgr  *config.Manager
	log  logx.Logger
	run  RunFunc
	spec string

	running atomic.Bool
}

func New(mgr *config.Manager, spec string, run RunFunc, log logx.Logger) *Service {
	return &Service{mgr: mgr, log: log, run: run, spec: spec}
}

// Start blocks until ctx is cancelled. It registers the cron entry,
// watches the config file for reloads, and keeps systemd informed.
func (s *Service) Start(ctx context.Context) error {
	loc, err := s.location()
	if err != nil {
		return err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	_, err = c.AddFunc(s.spec, func() {
		// Runs are strictly sequential; a trigger that fires while the
		// previous run is still going is skipped, not queued.
		if !s.running.CompareAndSwap(false, true) {
			s.log.Warn("previous run still active, skipping trigger")
			return
		}
		defer s.running.Store(false)
		s.run(ctx, s.mgr.Get())
	})
	if err != nil {
		return fmt.Errorf("daemon: invalid schedule %q: %w", s.spec, err)
	}

	go s.mgr.Watch(ctx)
	go s.observeReloads(ctx, loc)
	c.Start()
	s.log.Info("daemon started",
		logx.String("schedule", s.spec),
		logx.String("tz", loc.String()))

	if sent, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		s.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		s.log.Debug("sd_notify ready sent")
	}
	s.watchdog(ctx)

	<-ctx.Done()
	<-c.Stop().Done()
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	s.log.Info("daemon stopped")
	return nil
}

// observeReloads watches committed config reloads. Most fields take effect
// on the next trigger via mgr.Get(); the cron location cannot be swapped on
// a live scheduler, so a timezone change only logs a restart hint.
func (s *Service) observeReloads(ctx context.Context, loc *time.Location) {
	updates := s.mgr.Subscribe(1)
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-updates:
			if tz := strings.TrimSpace(next.Daemon.Timezone); tz != "" && tz != loc.String() {
				s.log.Warn("daemon.timezone changed, restart required to apply",
					logx.String("active", loc.String()),
					logx.String("configured", tz))
			}
		}
	}
}

func (s *Service) location() (*time.Location, error) {
	tz := strings.TrimSpace(s.mgr.Get().Daemon.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("daemon: invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// watchdog pings systemd at half the configured WatchdogSec interval.
func (s *Service) watchdog(ctx context.Context) {
	if !s.mgr.Get().Daemon.Watchdog {
		return
	}
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	}()
}
