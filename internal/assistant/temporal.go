package assistant

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date form used throughout the assistant.
const DateLayout = "2006-01-02"

// Bucket is a coarse part of the day.
type Bucket string

const (
	BucketNone      Bucket = ""
	BucketMorning   Bucket = "morning"
	BucketAfternoon Bucket = "afternoon"
	BucketEvening   Bucket = "evening"
	BucketNight     Bucket = "night"
)

// bucket hours are [from, to) on a 24h clock; 00-06 belongs to none
var bucketRanges = []struct {
	bucket   Bucket
	from, to int
}{
	{BucketMorning, 7, 12},
	{BucketAfternoon, 12, 17},
	{BucketEvening, 17, 20},
	{BucketNight, 20, 24},
}

var (
	isoDatePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	meridiemPattern = regexp.MustCompile(`\b(1[0-2]|0?[1-9])(?::([0-5]\d))?\s*([ap])\.?m\b`)
	clockPattern    = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	weekdayPattern  = regexp.MustCompile(`\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)

	dayAfterTomorrowWord = regexp.MustCompile(`\bday after tomorrow\b`)
	tomorrowWord         = regexp.MustCompile(`\btomorrow\b`)
	todayWord            = regexp.MustCompile(`\b(?:today|tonight)\b`)

	morningWord   = regexp.MustCompile(`\bmorning\b`)
	afternoonWord = regexp.MustCompile(`\b(?:afternoon|matinee)\b`)
	eveningWord   = regexp.MustCompile(`\b(?:evening|tonight)\b`)
	nightWord     = regexp.MustCompile(`\bnight\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// ResolveDate finds a calendar date in text relative to now. A valid explicit
// YYYY-MM-DD wins over relative words. The result is formatted in now's
// location. Callers default to today when nothing is found.
func ResolveDate(text string, now time.Time) (string, bool) {
	t := strings.ToLower(text)
	for _, m := range isoDatePattern.FindAllString(t, -1) {
		if d, err := time.ParseInLocation(DateLayout, m, now.Location()); err == nil {
			return d.Format(DateLayout), true
		}
	}
	switch {
	case dayAfterTomorrowWord.MatchString(t):
		return now.AddDate(0, 0, 2).Format(DateLayout), true
	case tomorrowWord.MatchString(t):
		return now.AddDate(0, 0, 1).Format(DateLayout), true
	case todayWord.MatchString(t):
		return now.Format(DateLayout), true
	}
	if m := weekdayPattern.FindString(t); m != "" {
		ahead := (int(weekdays[m]) - int(now.Weekday()) + 7) % 7
		return now.AddDate(0, 0, ahead).Format(DateLayout), true
	}
	return "", false
}

// ResolveBucket finds the part of day the user asked for. An explicit hour
// ("9 am", "9:30pm", "21:00") wins over keywords and yields no bucket when it
// falls outside every bucket.
func ResolveBucket(text string) (Bucket, bool) {
	t := strings.ToLower(text)
	if hour, ok := explicitHour(t); ok {
		return BucketOf(hour)
	}
	switch {
	case morningWord.MatchString(t):
		return BucketMorning, true
	case afternoonWord.MatchString(t):
		return BucketAfternoon, true
	case eveningWord.MatchString(t):
		return BucketEvening, true
	case nightWord.MatchString(t):
		return BucketNight, true
	}
	return BucketNone, false
}

// BucketOf maps a 24h hour to its bucket.
func BucketOf(hour int) (Bucket, bool) {
	for _, r := range bucketRanges {
		if hour >= r.from && hour < r.to {
			return r.bucket, true
		}
	}
	return BucketNone, false
}

func explicitHour(t string) (int, bool) {
	if m := meridiemPattern.FindStringSubmatch(t); m != nil {
		h, _ := strconv.Atoi(m[1])
		switch {
		case m[3] == "p" && h != 12:
			h += 12
		case m[3] == "a" && h == 12:
			h = 0
		}
		return h, true
	}
	if m := clockPattern.FindStringSubmatch(t); m != nil {
		h, _ := strconv.Atoi(m[1])
		return h, true
	}
	return 0, false
}
