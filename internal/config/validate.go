package config

import (
	"fmt"
	"strings"
)

// Normalize applies defaults in place and validates ranges. It must be
// called once after a successful parse, before any field is consumed.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Meetup.Endpoint) == "" {
		return fmt.Errorf("meetup.endpoint is required")
	}

	if c.NTP.Server == "" {
		c.NTP.Server = "pool.ntp.org"
	}
	if c.NTP.Timeout == "" {
		c.NTP.Timeout = "5s"
	}

	g := &c.Gate
	if g.StartMinute == 0 && g.EndMinute == 0 {
		g.StartMinute, g.EndMinute = 55, 59
	}
	if g.StartMinute < 0 || g.StartMinute > 59 || g.EndMinute < 0 || g.EndMinute > 59 {
		return fmt.Errorf("gate: minutes must be in 0..59 (got %d..%d)", g.StartMinute, g.EndMinute)
	}
	if g.StartMinute > g.EndMinute {
		return fmt.Errorf("gate: start_minute %d > end_minute %d", g.StartMinute, g.EndMinute)
	}
	if g.TargetHour != nil && (*g.TargetHour < 0 || *g.TargetHour > 23) {
		return fmt.Errorf("gate.target_hour must be in 0..23 (got %d)", *g.TargetHour)
	}
	if g.TargetMinute < 0 || g.TargetMinute > 59 {
		return fmt.Errorf("gate.target_minute must be in 0..59 (got %d)", g.TargetMinute)
	}
	if g.Margin == "" {
		g.Margin = "100ms"
	}

	b := &c.Booking
	if b.MinAttempts == 0 {
		b.MinAttempts = 2
	}
	if b.MaxAttempts == 0 {
		b.MaxAttempts = 3
	}
	if b.MinAttempts < 1 {
		return fmt.Errorf("booking.min_attempts must be >= 1 (got %d)", b.MinAttempts)
	}
	if b.MaxAttempts < b.MinAttempts {
		return fmt.Errorf("booking.max_attempts %d < min_attempts %d", b.MaxAttempts, b.MinAttempts)
	}
	if b.TimeBudget == "" {
		b.TimeBudget = "2m"
	}
	if b.Interval == "" {
		b.Interval = "5s"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	// Durations must at least parse, even when consumed later.
	for _, f := range []struct{ path, raw string }{
		{"ntp.timeout", c.NTP.Timeout},
		{"gate.margin", g.Margin},
		{"booking.time_budget", b.TimeBudget},
		{"booking.interval", b.Interval},
		{"history.busy_timeout", c.History.BusyTimeout},
		{"meetup.retry_wait_min", c.Meetup.RetryWaitMin},
		{"meetup.retry_wait_max", c.Meetup.RetryWaitMax},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
