package discovery

import "time"

// DateRange is a half-open [From, To) discovery window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// DateRanges splits [start, end) into windows of months months each, the last
// window clamped to end. The Zoom recordings listing caps ranges, so long
// backfills must be walked in slices.
func DateRanges(start, end time.Time, months int) []DateRange {
	if months < 1 {
		months = 1
	}
	var ranges []DateRange
	current := start
	for current.Before(end) {
		next := current.AddDate(0, months, 0)
		if next.After(end) {
			next = end
		}
		ranges = append(ranges, DateRange{From: current, To: next})
		current = next
	}
	return ranges
}
