// Package selector picks the single soonest event matching the run's
// criteria: weekday, title substring, and an earliest-eligible date floor.
package selector

import (
	"fmt"
	"strings"
	"time"

	"rsvpbot/internal/clock"
	"rsvpbot/internal/meetup"
)

var weekdays = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// ParseWeekday maps "mon".."sun" (any case) to a time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("selector: invalid day of week %q", name)
	}
	return d, nil
}

// Next returns the soonest event whose title contains titleSubstring
// (case-insensitive), whose UTC start falls on the named weekday, and
// whose start is at least minDaysFromNow days after corrected now.
//
// Ties on equal start times keep the earlier list entry. A nil result with
// a nil error means no event qualified; that ends the run early but is not
// an error. An unknown weekday name fails before any filtering.
func Next(events []meetup.Event, dayOfWeek, titleSubstring string, offsetSeconds float64, minDaysFromNow int) (*meetup.Event, error) {
	target, err := ParseWeekday(dayOfWeek)
	if err != nil {
		return nil, err
	}
	floor := clock.Now(offsetSeconds).AddDate(0, 0, minDaysFromNow)
	return nextAfter(events, target, titleSubstring, floor), nil
}

func nextAfter(events []meetup.Event, target time.Weekday, titleSubstring string, floor time.Time) *meetup.Event {
	needle := strings.ToLower(titleSubstring)

	var best *meetup.Event
	for i := range events {
		ev := &events[i]
		if !strings.Contains(strings.ToLower(ev.Title), needle) {
			continue
		}
		at := ev.StartsAt.UTC()
		if at.Weekday() != target || at.Before(floor) {
			continue
		}
		if best == nil || at.Before(best.StartsAt) {
			best = ev
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}
