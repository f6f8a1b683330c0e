package meetup

import (
	"fmt"
	"strings"
	"time"
)

// Event is one upcoming group event, immutable once received.
type Event struct {
	ID       string
	Title    string
	StartsAt time.Time // timezone-aware, normalized to UTC
}

// AttemptResult is the application-level outcome of one RSVP attempt.
// Status may be empty when the API returned errors without an rsvp object.
type AttemptResult struct {
	Status string
	Codes  []string
}

// HasCode reports whether any returned error code equals code.
func (r AttemptResult) HasCode(code string) bool {
	for _, c := range r.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// HasAnyCode reports whether any returned error code is in set.
func (r AttemptResult) HasAnyCode(set map[string]bool) bool {
	for _, c := range r.Codes {
		if set[c] {
			return true
		}
	}
	return false
}

// ParseEventTime parses the API's ISO-8601 timestamps ("Z" or numeric
// offset) into UTC. A malformed timestamp is fatal for the run; events are
// never silently skipped over bad data.
func ParseEventTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("meetup: empty event timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("meetup: unparseable event timestamp %q", raw)
}
