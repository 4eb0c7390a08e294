package marketdata

import (
	"fmt"
	"sort"
	"time"
)

// Bar is a single OHLCV candle. Timestamps are UTC.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// TypicalPrice is (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Range is high - low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body is the absolute open-close distance.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Day returns the bar's UTC calendar date truncated to midnight.
func (b Bar) Day() time.Time {
	y, m, d := b.Timestamp.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateBars checks the series invariants: strictly increasing
// timestamps, high/low bounding open and close, non-negative volume.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if i > 0 && !bars[i-1].Timestamp.Before(b.Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s not after previous %s",
				i, b.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
		if b.High < b.Open || b.High < b.Close || b.High < b.Low {
			return fmt.Errorf("bar %d: high %.4f below open/close/low", i, b.High)
		}
		if b.Low > b.Open || b.Low > b.Close {
			return fmt.Errorf("bar %d: low %.4f above open/close", i, b.Low)
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar %d: negative volume %.2f", i, b.Volume)
		}
	}
	return nil
}

// SortDedup sorts bars by timestamp and drops duplicates, keeping the
// last occurrence of each timestamp.
func SortDedup(bars []Bar) []Bar {
	if len(bars) == 0 {
		return bars
	}
	byTs := make(map[int64]Bar, len(bars))
	for _, b := range bars {
		byTs[b.Timestamp.UnixMilli()] = b
	}
	out := make([]Bar, 0, len(byTs))
	for _, b := range byTs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// BarsUpTo returns the prefix of bars with timestamps at or before cutoff.
func BarsUpTo(bars []Bar, cutoff time.Time) []Bar {
	n := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp.After(cutoff) })
	return bars[:n]
}

// BarsOnDay returns the bars whose UTC calendar date equals day.
func BarsOnDay(bars []Bar, day time.Time) []Bar {
	y, m, d := day.UTC().Date()
	want := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	var out []Bar
	for _, b := range bars {
		if b.Day().Equal(want) {
			out = append(out, b)
		}
	}
	return out
}
