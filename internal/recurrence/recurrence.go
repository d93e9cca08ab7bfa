// Package recurrence parses recurrence specification strings and computes
// next occurrences. It is pure: no clock access, no side effects, so results
// are fully determined by the inputs.
package recurrence

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates parsed patterns.
type Kind string

const (
	Daily     Kind = "daily"
	Weekly    Kind = "weekly"  // every 7 days, or a specific weekday when Weekday is set
	Weekdays  Kind = "weekdays" // Monday through Friday
	Weekends  Kind = "weekends" // Saturday and Sunday
	EveryDays Kind = "days"
	EveryHrs  Kind = "hours"
)

// Pattern is a parsed recurrence specification.
type Pattern struct {
	Kind    Kind
	Weekday time.Weekday // meaningful only for Weekly with HasWeekday
	N       int          // interval size for EveryDays/EveryHrs

	HasWeekday bool
}

// ErrInvalid is returned for specifications Parse does not recognize.
var ErrInvalid = errors.New("unrecognized recurrence pattern")

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var (
	reEveryDays  = regexp.MustCompile(`^every (\d+) days?$`)
	reEveryHours = regexp.MustCompile(`^every (\d+) hours?$`)
)

// Interval bounds accepted by Parse.
const (
	maxDays  = 365
	maxHours = 168 // one week
)

// Parse converts a specification string into a Pattern. Recognized forms:
// "daily", "weekly", "every <weekday>", "weekdays", "weekends",
// "every N days" (1-365) and "every N hours" (1-168).
func Parse(spec string) (Pattern, error) {
	s := strings.ToLower(strings.TrimSpace(spec))

	switch s {
	case "daily", "every day", "everyday":
		return Pattern{Kind: Daily}, nil
	case "weekly", "every week":
		return Pattern{Kind: Weekly}, nil
	case "weekdays", "every weekday", "weekday":
		return Pattern{Kind: Weekdays}, nil
	case "weekends", "every weekend", "weekend":
		return Pattern{Kind: Weekends}, nil
	}

	for name, wd := range weekdayNames {
		if s == "every "+name || s == name+"s" || s == "every "+name+"s" {
			return Pattern{Kind: Weekly, Weekday: wd, HasWeekday: true}, nil
		}
	}

	if m := reEveryDays.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= maxDays {
			return Pattern{Kind: EveryDays, N: n}, nil
		}
		return Pattern{}, ErrInvalid
	}
	if m := reEveryHours.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= maxHours {
			return Pattern{Kind: EveryHrs, N: n}, nil
		}
		return Pattern{}, ErrInvalid
	}

	return Pattern{}, ErrInvalid
}

// pin returns t with the hour/minute taken from ref and seconds zeroed.
func pin(t, ref time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), ref.Hour(), ref.Minute(), 0, 0, t.Location())
}

// Next computes the next fire time strictly after lastFired. Day-granularity
// patterns keep the hour/minute of ref; hour intervals simply add the
// interval. The zero time and false are returned for malformed patterns.
func Next(p Pattern, lastFired, ref time.Time) (time.Time, bool) {
	switch p.Kind {
	case Daily:
		return pin(lastFired.AddDate(0, 0, 1), ref), true

	case Weekly:
		if p.HasWeekday {
			next := lastFired.AddDate(0, 0, 1)
			for next.Weekday() != p.Weekday {
				next = next.AddDate(0, 0, 1)
			}
			return pin(next, ref), true
		}
		return pin(lastFired.AddDate(0, 0, 7), ref), true

	case Weekdays:
		next := lastFired.AddDate(0, 0, 1)
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return pin(next, ref), true

	case Weekends:
		next := lastFired.AddDate(0, 0, 1)
		for next.Weekday() != time.Saturday && next.Weekday() != time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return pin(next, ref), true

	case EveryDays:
		if p.N < 1 {
			return time.Time{}, false
		}
		return pin(lastFired.AddDate(0, 0, p.N), ref), true

	case EveryHrs:
		if p.N < 1 {
			return time.Time{}, false
		}
		return lastFired.Add(time.Duration(p.N) * time.Hour), true
	}
	return time.Time{}, false
}

// Format renders a pattern for display.
func Format(p Pattern) string {
	switch p.Kind {
	case Daily:
		return "Every day"
	case Weekly:
		if p.HasWeekday {
			return "Every " + p.Weekday.String()
		}
		return "Every week"
	case Weekdays:
		return "Every weekday (Mon-Fri)"
	case Weekends:
		return "Every weekend (Sat-Sun)"
	case EveryDays:
		return fmt.Sprintf("Every %d days", p.N)
	case EveryHrs:
		return fmt.Sprintf("Every %d hours", p.N)
	}
	return "Unknown pattern"
}

// Examples lists sample specifications for user-facing help text.
func Examples() []string {
	return []string{
		"daily",
		"every monday",
		"every friday",
		"weekdays",
		"weekends",
		"every 3 days",
		"every 12 hours",
	}
}
