package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM or HH:MM:SS", s)
	}

	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
		}
		values[i] = n
	}

	return TimeOfDay{Hour: values[0], Minute: values[1], Second: values[2]}, nil
}

// On combines the time of day with the calendar date of day in loc
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, loc)
}

// Before reports whether t is earlier in the day than other
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.seconds() < other.seconds()
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MealSlot is a named time window that gets one recipe per day
type MealSlot struct {
	Name  string    `json:"name"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
	// Filter is carried through to candidate selection. Whether it
	// narrows the candidates depends on the recipe store settings.
	Filter string `json:"filter,omitempty"`
}

// Interval returns the absolute start and end of the slot on day.
// A slot whose end is earlier than its start ends on the following day.
func (s MealSlot) Interval(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := s.Start.On(day, loc)
	end := s.End.On(day, loc)
	if s.End.Before(s.Start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// DateLayout is the ISO date format used for plan keys
const DateLayout = "2006-01-02"

// Plan maps an ISO date to the recipe title chosen for each meal slot
type Plan map[string]map[string]string

// Dates returns the plan's dates in chronological order
func (p Plan) Dates() []string {
	dates := make([]string, 0, len(p))
	for date := range p {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Covers reports whether the plan has assignments for day
func (p Plan) Covers(day time.Time) bool {
	_, ok := p[day.Format(DateLayout)]
	return ok
}

// Clone returns a deep copy of the plan
func (p Plan) Clone() Plan {
	out := make(Plan, len(p))
	for date, meals := range p {
		copied := make(map[string]string, len(meals))
		for slot, title := range meals {
			copied[slot] = title
		}
		out[date] = copied
	}
	return out
}

// Event is a calendar event as returned by the events listing
type Event struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// EventTime wraps a timestamp the way the host expects for the current event:
// either a full timestamp or an all-day date
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// CurrentEvent is the entity's active event
type CurrentEvent struct {
	Summary     string    `json:"summary"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

// FormatTimestamp renders t as RFC3339, or as a bare local date for all-day events
func FormatTimestamp(t time.Time, allDay bool) string {
	if allDay {
		return t.Format(DateLayout)
	}
	return t.Format(time.RFC3339)
}

// WrapTimestamp formats t and wraps it in the matching EventTime field
func WrapTimestamp(t time.Time, allDay bool) EventTime {
	if allDay {
		return EventTime{Date: FormatTimestamp(t, true)}
	}
	return EventTime{DateTime: FormatTimestamp(t, false)}
}

// ParseWeekday parses a weekday name, full ("monday") or abbreviated ("mon"),
// ignoring case
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if n == full || n == full[:3] {
				return d, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", name)
}
