package nlp

import (
	"regexp"
	"strings"

	"memoryping/internal/model"
)

// Trigger phrases, most specific first. The task is whatever follows
// the trigger up to the first time indicator.
var triggerPhrases = []*regexp.Regexp{
	regexp.MustCompile(`remind\s+me\s+to\s+`),
	regexp.MustCompile(`send\s+me\s+(?:a\s+)?`),
	regexp.MustCompile(`tell\s+me\s+(?:to\s+)?`),
	regexp.MustCompile(`ping\s+me\s+(?:about\s+|to\s+)?`),
	regexp.MustCompile(`alert\s+me\s+(?:about\s+|to\s+)?`),
	regexp.MustCompile(`remember\s+(?:to\s+)?`),
	regexp.MustCompile(`notify\s+me\s+(?:about\s+|to\s+)?`),
}

var timeIndicator = regexp.MustCompile(`\s+(?:at|in|after)\s+`)

// SplitTaskTime splits raw text into a task description and a time
// expression. Without a trigger phrase it falls back to splitting on
// the first time indicator, provided something precedes it.
func SplitTaskTime(text string) (task, timeExpr string, ok bool) {
	lower := strings.ToLower(text)
	for _, trig := range triggerPhrases {
		loc := trig.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		if t, expr, found := splitOnIndicator(text[loc[1]:]); found {
			return t, expr, true
		}
	}
	if t, expr, found := splitOnIndicator(text); found && t != "" {
		return t, expr, true
	}
	return "", "", false
}

func splitOnIndicator(text string) (string, string, bool) {
	loc := timeIndicator.FindStringIndex(strings.ToLower(text))
	if loc == nil {
		return "", "", false
	}
	return strings.TrimSpace(text[:loc[0]]), strings.TrimSpace(text[loc[0]:]), true
}

// Metadata is everything tagged onto a request besides task and time.
type Metadata struct {
	Cleaned    string
	Category   string
	Priority   string
	Notes      string
	Recurrence model.Recurrence
	SharedWith []string
}

var (
	categoryTag = regexp.MustCompile(`#(\w+)`)
	priorityTag = regexp.MustCompile(`(?i)!(high|medium|low)`)
	notesTag    = regexp.MustCompile(`--\s*(.+?)(?:\s+#|\s+!|$)`)
	shareTag    = regexp.MustCompile(`@(\w+)`)
)

// Ordered so "every weekday" is not shadowed by "every week".
var recurrencePatterns = []struct {
	re   *regexp.Regexp
	rule model.Recurrence
}{
	{regexp.MustCompile(`every\s+day|daily`), model.RecurDaily},
	{regexp.MustCompile(`every\s+weekday`), model.RecurWeekday},
	{regexp.MustCompile(`every\s+week(?:ly)?`), model.RecurWeekly},
	{regexp.MustCompile(`every\s+month(?:ly)?`), model.RecurMonthly},
	{regexp.MustCompile(`every\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)`), model.RecurWeekly},
}

// ExtractMetadata pulls tags out of raw text. Category, priority and
// note tokens are removed from Cleaned so they cannot shift the
// task/time split; recurrence phrases and @mentions stay in place.
// Unknown #tags are ignored.
func ExtractMetadata(text string) Metadata {
	meta := Metadata{Category: model.DefaultCategory, Priority: model.PriorityMedium}

	if m := categoryTag.FindStringSubmatch(text); m != nil && model.Categories[strings.ToLower(m[1])] {
		meta.Category = strings.ToLower(m[1])
		text = strings.ReplaceAll(text, m[0], "")
	}

	if m := priorityTag.FindStringSubmatch(text); m != nil {
		meta.Priority = strings.ToLower(m[1])
		text = strings.ReplaceAll(text, m[0], "")
	}

	if loc := notesTag.FindStringSubmatchIndex(text); loc != nil {
		meta.Notes = strings.TrimSpace(text[loc[2]:loc[3]])
		text = text[:loc[0]] + text[loc[1]:]
	}

	lower := strings.ToLower(text)
	for _, rp := range recurrencePatterns {
		if rp.re.MatchString(lower) {
			meta.Recurrence = rp.rule
			break
		}
	}

	for _, m := range shareTag.FindAllStringSubmatch(text, -1) {
		meta.SharedWith = append(meta.SharedWith, m[1])
	}

	meta.Cleaned = strings.TrimSpace(text)
	return meta
}
