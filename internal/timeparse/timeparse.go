// Package timeparse converts human-entered time tokens into absolute instants
// and recurrence rules. Parsing is pure: no clock is read beyond the caller's
// "now" anchor and nothing is persisted.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Frequency is a normalized recurrence keyword.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Recurrence is a normalized recurrence rule: fire every Interval units of Freq.
type Recurrence struct {
	Freq     Frequency `json:"frequency"`
	Interval int       `json:"interval"` // >= 1
}

// Next returns the first occurrence strictly after now, stepping from the
// previous trigger instant so the occurrence phase (time of day, weekday,
// day of month) is preserved across missed windows.
func (r Recurrence) Next(from, now time.Time) time.Time {
	n := r.Interval
	if n < 1 {
		n = 1
	}
	t := from
	for !t.After(now) {
		switch r.Freq {
		case Daily:
			t = t.AddDate(0, 0, n)
		case Weekly:
			t = t.AddDate(0, 0, 7*n)
		case Monthly:
			t = t.AddDate(0, n, 0)
		case Yearly:
			t = t.AddDate(n, 0, 0)
		default:
			// Unknown frequency: fall back to daily so a bad rule cannot
			// loop forever.
			t = t.AddDate(0, 0, n)
		}
	}
	return t
}

// reRelative matches a numeric count followed by a unit word, e.g. "10s",
// "15secs", "20seconds", "3d". The number must be a positive integer.
var reRelative = regexp.MustCompile(`^(\d+)\s*([a-zA-Z]+)$`)

var unitSeconds = map[string]int64{
	"s": 1, "sec": 1, "secs": 1, "second": 1, "seconds": 1,
	"m": 60, "min": 60, "mins": 60, "minute": 60, "minutes": 60,
	"h": 3600, "hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600,
	"d": 86400, "day": 86400, "days": 86400,
}

// ParseRelative parses a relative token like "10s", "5m", "2h", "3d" and
// returns now + duration. ok is false for non-numeric, zero, negative, or
// unknown-unit input.
func ParseRelative(text string) (time.Time, bool) {
	d, ok := ParseOffset(text)
	if !ok {
		return time.Time{}, false
	}
	return time.Now().Add(d), true
}

// ParseOffset is ParseRelative without the "now" anchor: it returns the
// parsed duration itself. Used for remind-before offsets.
func ParseOffset(text string) (time.Duration, bool) {
	m := reRelative.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		// Overflow of a huge digit string lands here too.
		return 0, false
	}
	mult, ok := unitSeconds[strings.ToLower(m[2])]
	if !ok {
		return 0, false
	}
	const maxSeconds = int64(1<<62) / int64(time.Second)
	if n > maxSeconds/mult {
		return 0, false
	}
	return time.Duration(n*mult) * time.Second, true
}

// ParseRecurrence parses a recurrence expression: a frequency keyword with an
// optional leading interval count, e.g. "daily", "weekly", "2 weekly",
// "3 monthly". ok is false for anything else.
func ParseRecurrence(text string) (*Recurrence, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	var (
		interval = 1
		keyword  string
	)
	switch len(fields) {
	case 1:
		keyword = fields[0]
	case 2:
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 1 {
			return nil, false
		}
		interval = n
		keyword = fields[1]
	default:
		return nil, false
	}

	var freq Frequency
	switch keyword {
	case "daily", "day", "days":
		freq = Daily
	case "weekly", "week", "weeks":
		freq = Weekly
	case "monthly", "month", "months":
		freq = Monthly
	case "yearly", "year", "years", "annually":
		freq = Yearly
	default:
		return nil, false
	}
	return &Recurrence{Freq: freq, Interval: interval}, true
}
