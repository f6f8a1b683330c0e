// Package clock corrects the local wall clock against an NTP source.
//
// The offset is probed once per run and passed down explicitly; there is
// no process-wide clock state.
package clock

import (
	"time"

	"github.com/beevik/ntp"

	"rsvpbot/pkg/logx"
)

// DefaultServer is the pool queried when the config leaves ntp.server empty.
const DefaultServer = "pool.ntp.org"

// DefaultTimeout bounds the single NTP probe.
const DefaultTimeout = 5 * time.Second

// Probe queries server once and returns (trusted time - local time) in
// seconds. Any failure degrades to 0.0 with a warning: a missed probe is
// cheaper than aborting the run, the local clock is then trusted as-is.
func Probe(server string, timeout time.Duration, log logx.Logger) float64 {
	if server == "" {
		server = DefaultServer
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		log.Warn("ntp probe failed, trusting local clock",
			logx.String("server", server), logx.Err(err))
		return 0.0
	}
	if err := resp.Validate(); err != nil {
		log.Warn("ntp response rejected, trusting local clock",
			logx.String("server", server), logx.Err(err))
		return 0.0
	}
	return resp.ClockOffset.Seconds()
}

// Now returns the local wall clock advanced by offsetSeconds, in UTC.
func Now(offsetSeconds float64) time.Time {
	return time.Now().
		Add(time.Duration(offsetSeconds * float64(time.Second))).
		UTC()
}

// NowLocal is Now in the local zone; the wait gate computes its target
// minute boundary in local time.
func NowLocal(offsetSeconds float64) time.Time {
	return time.Now().Add(time.Duration(offsetSeconds * float64(time.Second)))
}
