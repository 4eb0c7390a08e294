// Package indicators computes EMA, VWAP, ATR and derived classifications
// over ordered OHLCV bars. All functions are pure: same input, same
// output, no I/O.
package indicators

import (
	"math"

	"intraday-screener/services/marketdata"
)

type Trend int

const (
	TrendSideways Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "uptrend"
	case TrendDown:
		return "downtrend"
	default:
		return "sideways"
	}
}

// EMA returns the exponential moving average of values, aligned 1:1 with
// the input. Seeded TradingView-style: the value at index period-1 is the
// SMA of the first period values; earlier indices carry the running
// partial average so the output is defined everywhere.
func EMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if len(values) == 0 || period < 1 {
		return result
	}

	var sum float64
	for i := 0; i < len(values) && i < period; i++ {
		sum += values[i]
		result[i] = sum / float64(i+1)
	}
	if len(values) < period {
		return result
	}

	alpha := 2.0 / float64(period+1)
	oneMinusAlpha := 1.0 - alpha
	for i := period; i < len(values); i++ {
		result[i] = values[i]*alpha + result[i-1]*oneMinusAlpha
	}
	return result
}

// Closes extracts the close series from bars.
func Closes(bars []marketdata.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// VWAP returns the volume-weighted average price aligned 1:1 with bars.
// Accumulation resets at every UTC calendar-day boundary; VWAP never
// carries price or volume across days. Bars with zero cumulative volume
// yield the typical price.
func VWAP(bars []marketdata.Bar) []float64 {
	result := make([]float64, len(bars))
	var cumPV, cumV float64
	var day int64 = math.MinInt64
	for i, b := range bars {
		d := b.Day().Unix()
		if d != day {
			day = d
			cumPV, cumV = 0, 0
		}
		tp := b.TypicalPrice()
		cumPV += tp * b.Volume
		cumV += b.Volume
		if cumV == 0 {
			result[i] = tp
		} else {
			result[i] = cumPV / cumV
		}
	}
	return result
}

// ATR returns the average true range using Wilder's smoothing: the value
// at index period is the SMA of the first period true ranges, then
// RMA = (prev*(N-1) + TR) / N. Earlier indices carry the running partial
// TR average.
func ATR(bars []marketdata.Bar, period int) []float64 {
	result := make([]float64, len(bars))
	if len(bars) < 2 || period < 1 {
		return result
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		h, l, pc := bars[i].High, bars[i].Low, bars[i-1].Close
		tr[i] = math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
	}

	var sum float64
	for i := 1; i < len(bars) && i <= period; i++ {
		sum += tr[i]
		result[i] = sum / float64(i)
	}
	result[0] = tr[0]
	if len(bars) <= period {
		return result
	}

	pm1, pf := float64(period-1), float64(period)
	for i := period + 1; i < len(bars); i++ {
		result[i] = (result[i-1]*pm1 + tr[i]) / pf
	}
	return result
}

// TrendOf classifies price against an EMA reference. Price more than
// tolerancePct percent above the EMA is an uptrend, more than that below
// is a downtrend, anything in between is sideways.
func TrendOf(price, ema, tolerancePct float64) Trend {
	if ema == 0 {
		return TrendSideways
	}
	distPct := (price - ema) / ema * 100
	switch {
	case distPct > tolerancePct:
		return TrendUp
	case distPct < -tolerancePct:
		return TrendDown
	default:
		return TrendSideways
	}
}

// OpeningRange returns the high and low of the first n bars.
func OpeningRange(bars []marketdata.Bar, n int) (hi, lo float64) {
	if len(bars) == 0 || n < 1 {
		return 0, 0
	}
	if n > len(bars) {
		n = len(bars)
	}
	hi, lo = bars[0].High, bars[0].Low
	for _, b := range bars[1:n] {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	return hi, lo
}

// PriorDayLevels returns the high, low and close of the last daily bar.
func PriorDayLevels(daily []marketdata.Bar) (hi, lo, closep float64) {
	if len(daily) == 0 {
		return 0, 0, 0
	}
	last := daily[len(daily)-1]
	return last.High, last.Low, last.Close
}

// AverageVolume returns the mean volume of the trailing n bars ending at
// (and excluding) index end. Shorter prefixes average what is available.
func AverageVolume(bars []marketdata.Bar, end, n int) float64 {
	if end > len(bars) {
		end = len(bars)
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	if end <= start {
		return 0
	}
	var sum float64
	for _, b := range bars[start:end] {
		sum += b.Volume
	}
	return sum / float64(end-start)
}
