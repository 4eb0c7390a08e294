package livefilter

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/screener"
)

var testDate = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

// risingIntraday builds n five-minute bars climbing stepPerBar per bar
// from base, with a high-volume final bar.
func risingIntraday(date time.Time, n int, base, stepPerBar float64) []marketdata.Bar {
	start := date.Add(9*time.Hour + 30*time.Minute)
	bars := make([]marketdata.Bar, 0, n)
	for i := 0; i < n; i++ {
		c := base + stepPerBar*float64(i)
		o := c - stepPerBar
		if i == 0 {
			o = base
		}
		hi, lo := c, o
		if o > c {
			hi, lo = o, c
		}
		bars = append(bars, marketdata.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      o,
			High:      hi + 0.02,
			Low:       lo - 0.02,
			Close:     c,
			Volume:    1000,
		})
	}
	bars[n-1].Volume = 2000
	return bars
}

// flatIntraday sits exactly on its own EMA and VWAP: no trend, no trade.
func flatIntraday(date time.Time, n int) []marketdata.Bar {
	start := date.Add(9*time.Hour + 30*time.Minute)
	bars := make([]marketdata.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, marketdata.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      100, High: 100.02, Low: 99.98, Close: 100,
			Volume: 1000,
		})
	}
	bars[n-1].Volume = 2000
	return bars
}

func newTestFilter(store *marketdata.MemoryStore) *Filter {
	return New(store, config.Default(), zap.NewNop())
}

func cand(symbol string) screener.Candidate {
	return screener.Candidate{Symbol: symbol, GapPct: 1.0, Direction: 1, Score: 50}
}

func TestBullishCandidatePasses(t *testing.T) {
	store := marketdata.NewMemoryStore()
	store.SetIntraday("UP", risingIntraday(testDate, 220, 100, 0.05))

	got, err := newTestFilter(store).Apply(context.Background(), []screener.Candidate{cand("UP")}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	c := got[0]
	if c.Bias != "bullish" {
		t.Fatalf("bias %q, want bullish", c.Bias)
	}
	if c.LastPrice <= c.EMA200 || c.LastPrice <= c.VWAP {
		t.Fatalf("trend fields inconsistent: price=%f ema200=%f vwap=%f", c.LastPrice, c.EMA200, c.VWAP)
	}
	if c.VolumeRatio < 1 {
		t.Fatalf("volume ratio %f, want >= 1", c.VolumeRatio)
	}
}

func TestBearishCandidatePasses(t *testing.T) {
	store := marketdata.NewMemoryStore()
	store.SetIntraday("DN", risingIntraday(testDate, 220, 200, -0.05))

	got, err := newTestFilter(store).Apply(context.Background(), []screener.Candidate{cand("DN")}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Bias != "bearish" {
		t.Fatalf("got %+v, want one bearish candidate", got)
	}
}

func TestNoTrendIsDropped(t *testing.T) {
	store := marketdata.NewMemoryStore()
	store.SetIntraday("FLAT", flatIntraday(testDate, 220))

	got, err := newTestFilter(store).Apply(context.Background(), []screener.Candidate{cand("FLAT")}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("flat symbol must be dropped, got %+v", got)
	}
}

func TestWeakVolumeIsDropped(t *testing.T) {
	store := marketdata.NewMemoryStore()
	bars := risingIntraday(testDate, 220, 100, 0.05)
	bars[len(bars)-1].Volume = 400 // below the trailing average
	store.SetIntraday("WEAK", bars)

	got, err := newTestFilter(store).Apply(context.Background(), []screener.Candidate{cand("WEAK")}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("weak-volume symbol must be dropped, got %+v", got)
	}
}

func TestFlatRangeIsDropped(t *testing.T) {
	store := marketdata.NewMemoryStore()
	// 0.001 per bar over 220 bars is ~0.25% of price, under the 0.5%
	// minimum range.
	store.SetIntraday("TIGHT", risingIntraday(testDate, 220, 100, 0.001))

	got, err := newTestFilter(store).Apply(context.Background(), []screener.Candidate{cand("TIGHT")}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("tight-range symbol must be dropped, got %+v", got)
	}
}

func TestInsufficientIntradayDataDegradesToEmpty(t *testing.T) {
	store := marketdata.NewMemoryStore()
	store.SetIntraday("SHORT", risingIntraday(testDate, 50, 100, 0.05))

	got, err := newTestFilter(store).Apply(context.Background(),
		[]screener.Candidate{cand("SHORT"), cand("MISSING")}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty result, got %+v", got)
	}
}

func TestPriorDayLevelAddsScore(t *testing.T) {
	store := marketdata.NewMemoryStore()
	bars := risingIntraday(testDate, 220, 100, 0.05)
	store.SetIntraday("NEAR", bars)
	store.SetIntraday("FAR", bars)

	// NEAR's prior-day high sits at the last intraday close; FAR's is
	// nowhere close.
	last := bars[len(bars)-1].Close
	prior := testDate.AddDate(0, 0, -1)
	store.SetDaily("NEAR", []marketdata.Bar{{
		Timestamp: prior.Add(10 * time.Hour),
		Open:      last - 1, High: last, Low: last - 2, Close: last - 0.5,
		Volume: 100000,
	}})
	store.SetDaily("FAR", []marketdata.Bar{{
		Timestamp: prior.Add(10 * time.Hour),
		Open:      50, High: 51, Low: 49, Close: 50,
		Volume: 100000,
	}})

	got, err := newTestFilter(store).Apply(context.Background(),
		[]screener.Candidate{cand("NEAR"), cand("FAR")}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Symbol != "NEAR" || got[0].NearLevel != "prior_day_high" {
		t.Fatalf("level-adjacent symbol should rank first: %+v", got)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("location bonus missing: %f <= %f", got[0].Score, got[1].Score)
	}
}

func TestLiveCandidateLimit(t *testing.T) {
	store := marketdata.NewMemoryStore()
	var cands []screener.Candidate
	for _, sym := range []string{"A", "B", "C", "D", "E", "F"} {
		store.SetIntraday(sym, risingIntraday(testDate, 220, 100, 0.05))
		cands = append(cands, cand(sym))
	}

	got, err := newTestFilter(store).Apply(context.Background(), cands, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("limit: got %d, want 4", len(got))
	}
}
