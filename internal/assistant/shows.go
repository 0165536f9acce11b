package assistant

import (
	"sort"
	"time"
)

var startLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseStart reads a show start time. Values without an offset are taken to
// be in loc.
func ParseStart(iso string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, iso, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SelectShow picks a screening on date. With a bucket it takes the earliest
// show whose local start hour falls in that bucket and otherwise the earliest
// show of the day. It reports false only when date has no shows.
func SelectShow(shows ShowsByDate, date string, bucket Bucket, loc *time.Location) (ShowSlot, bool) {
	if loc == nil {
		loc = time.UTC
	}
	ordered := orderShows(shows[date], loc)
	if len(ordered) == 0 {
		return ShowSlot{}, false
	}
	if bucket != BucketNone {
		for _, s := range ordered {
			if !s.parsed {
				continue
			}
			if b, ok := BucketOf(s.start.In(loc).Hour()); ok && b == bucket {
				return s.slot, true
			}
		}
	}
	return ordered[0].slot, true
}

type timedSlot struct {
	slot   ShowSlot
	start  time.Time
	parsed bool
}

// orderShows sorts by start time then show ID; unreadable times go last.
func orderShows(slots []ShowSlot, loc *time.Location) []timedSlot {
	out := make([]timedSlot, 0, len(slots))
	for _, s := range slots {
		t, ok := ParseStart(s.StartTimeISO, loc)
		out = append(out, timedSlot{slot: s, start: t, parsed: ok})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.parsed != b.parsed {
			return a.parsed
		}
		if a.parsed && !a.start.Equal(b.start) {
			return a.start.Before(b.start)
		}
		if !a.parsed && a.slot.StartTimeISO != b.slot.StartTimeISO {
			return a.slot.StartTimeISO < b.slot.StartTimeISO
		}
		return a.slot.ShowID < b.slot.ShowID
	})
	return out
}

// findShow looks a show up by ID across all dates.
func findShow(shows ShowsByDate, showID uint64) (string, ShowSlot, bool) {
	dates := make([]string, 0, len(shows))
	for d := range shows {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		for _, s := range shows[d] {
			if s.ShowID == showID {
				return d, s, true
			}
		}
	}
	return "", ShowSlot{}, false
}
