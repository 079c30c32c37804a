package portfolio

import "time"

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// dayKey collapses a timestamp to its UTC calendar day so dates read back
// from different drivers compare equal.
func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// eachDay returns every calendar day in [start, end], inclusive.
func eachDay(start, end time.Time) []time.Time {
	start, end = dayKey(start), dayKey(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
