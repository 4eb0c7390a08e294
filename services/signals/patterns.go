package signals

import "intraday-screener/services/marketdata"

// Pattern is a single-bar or two-bar reversal shape with an associated
// strength used by the quality score. Strength is in (0, 1].
type Pattern struct {
	Name     string
	Bullish  bool
	Strength float64
}

// dojiBodyFrac: a body under a tenth of the bar range reads as
// indecision, not reversal.
const dojiBodyFrac = 0.1

func IsDoji(b marketdata.Bar) bool {
	r := b.Range()
	if r == 0 {
		return true
	}
	return b.Body() < dojiBodyFrac*r
}

// IsHammer: long lower wick, small upper wick, body near the top.
func IsHammer(b marketdata.Bar) bool {
	body := b.Body()
	if body == 0 || IsDoji(b) {
		return false
	}
	lowerWick := min64(b.Open, b.Close) - b.Low
	upperWick := b.High - max64(b.Open, b.Close)
	return lowerWick >= 2*body && upperWick < 0.5*body
}

// IsShootingStar is the bearish mirror of the hammer.
func IsShootingStar(b marketdata.Bar) bool {
	body := b.Body()
	if body == 0 || IsDoji(b) {
		return false
	}
	lowerWick := min64(b.Open, b.Close) - b.Low
	upperWick := b.High - max64(b.Open, b.Close)
	return upperWick >= 2*body && lowerWick < 0.5*body
}

// IsBullishEngulfing: current bullish body fully engulfs and reverses a
// prior bearish body.
func IsBullishEngulfing(prev, cur marketdata.Bar) bool {
	return prev.Close < prev.Open &&
		cur.Close > cur.Open &&
		cur.Open <= prev.Close &&
		cur.Close >= prev.Open
}

func IsBearishEngulfing(prev, cur marketdata.Bar) bool {
	return prev.Close > prev.Open &&
		cur.Close < cur.Open &&
		cur.Open >= prev.Close &&
		cur.Close <= prev.Open
}

// DetectReversal inspects the last bar (and its predecessor for
// engulfing shapes) and returns the matched patterns. A doji alone
// matches nothing; it is neutral and insufficient for entry.
func DetectReversal(bars []marketdata.Bar) []Pattern {
	if len(bars) == 0 {
		return nil
	}
	cur := bars[len(bars)-1]

	var out []Pattern
	if IsHammer(cur) {
		out = append(out, Pattern{Name: "hammer", Bullish: true, Strength: 0.8})
	}
	if IsShootingStar(cur) {
		out = append(out, Pattern{Name: "shooting_star", Bullish: false, Strength: 0.8})
	}
	if len(bars) >= 2 {
		prev := bars[len(bars)-2]
		if IsBullishEngulfing(prev, cur) {
			out = append(out, Pattern{Name: "bullish_engulfing", Bullish: true, Strength: 1.0})
		}
		if IsBearishEngulfing(prev, cur) {
			out = append(out, Pattern{Name: "bearish_engulfing", Bullish: false, Strength: 1.0})
		}
	}
	return out
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
