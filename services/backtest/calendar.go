package backtest

import "time"

// IsTradingDay reports whether the UTC date falls on a weekday.
// Exchange holidays are a data concern: a holiday simply has no bars
// and the day degrades to zero candidates.
func IsTradingDay(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// TradingDays expands the closed interval [start, end] into its weekday
// dates, oldest first.
func TradingDays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := dayOf(start); !d.After(dayOf(end)); d = d.Add(24 * time.Hour) {
		if IsTradingDay(d) {
			out = append(out, d)
		}
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
