package nlp

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized is returned when no expression family matches.
var ErrUnrecognized = errors.New("unrecognized time expression")

type namedMoment struct {
	phrase string
	hour   int
}

// Checked in order; the first phrase contained in the expression wins.
var namedMoments = []namedMoment{
	{"lunch", 13},
	{"after lunch", 13},
	{"bedtime", 22},
	{"before bed", 22},
	{"evening", 18},
	{"afternoon", 14},
	{"morning", 8},
}

var (
	relativeRe = regexp.MustCompile(`(?:in|after)\s+(?:(\d+)\s*(?:hours?|hrs?|h))?\s*(?:(\d+)\s*(?:minutes?|mins?|min|m))?`)
	clock12Re  = regexp.MustCompile(`(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	clock24Re  = regexp.MustCompile(`at\s+(\d{1,2}):(\d{2})`)
	ampmNext   = regexp.MustCompile(`^\s*[ap]m`)
)

// Resolve turns a natural-language time expression into an absolute
// instant in the reference's location. Families are tried in a fixed
// order: named moments, relative offsets, 12-hour clock, 24-hour
// clock. A "tomorrow" token forces the next calendar day; otherwise
// wall-clock results at or before the reference roll one day forward.
// Relative offsets never roll.
func Resolve(expr string, ref time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	tomorrow := strings.Contains(s, "tomorrow")
	s = strings.TrimSpace(strings.ReplaceAll(s, "tomorrow", ""))

	for _, nm := range namedMoments {
		if strings.Contains(s, nm.phrase) {
			return wallClock(ref, nm.hour, 0, tomorrow), nil
		}
	}

	// "in 2h 30m" style. At least one of the groups must be present;
	// a bare "in" is not a zero-duration match.
	if m := relativeRe.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "") {
		hours := atoiDefault(m[1])
		minutes := atoiDefault(m[2])
		return ref.Add(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute), nil
	}

	if m := clock12Re.FindStringSubmatch(s); m != nil {
		hour := atoiDefault(m[1])
		minute := atoiDefault(m[2])
		if hour >= 1 && hour <= 12 && minute <= 59 {
			if m[3] == "pm" && hour != 12 {
				hour += 12
			} else if m[3] == "am" && hour == 12 {
				hour = 0
			}
			return wallClock(ref, hour, minute, tomorrow), nil
		}
	}

	if idx := clock24Re.FindStringSubmatchIndex(s); idx != nil {
		// am/pm forms belong to the 12-hour family.
		if !ampmNext.MatchString(s[idx[1]:]) {
			hour := atoiDefault(s[idx[2]:idx[3]])
			minute := atoiDefault(s[idx[4]:idx[5]])
			if hour <= 23 && minute <= 59 {
				return wallClock(ref, hour, minute, tomorrow), nil
			}
		}
	}

	return time.Time{}, ErrUnrecognized
}

// wallClock pins hour:minute onto the reference date, rolling one day
// forward when forced by a tomorrow token or when the computed instant
// would not be after the reference.
func wallClock(ref time.Time, hour, minute int, tomorrow bool) time.Time {
	t := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	if tomorrow || !t.After(ref) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
