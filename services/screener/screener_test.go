package screener

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/indicators"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/news"
)

var testDate = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

// flatDaily builds n calendar-daily bars ending on end. Closes sit at
// 1000 except the last bar, which opens with the requested gap in
// percent (exact at a 1000 base: 0.3% = +3 points).
func flatDaily(end time.Time, n int, gapPct, volume float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		b := marketdata.Bar{
			Timestamp: day.Add(10 * time.Hour),
			Open:      1000, High: 1001, Low: 999, Close: 1000,
			Volume: volume,
		}
		if i == 0 {
			b.Open = 1000 + gapPct*10
			b.Close = b.Open
			if b.Open > b.High {
				b.High = b.Open + 1
			}
			if b.Open < b.Low {
				b.Low = b.Open - 1
			}
		}
		bars = append(bars, b)
	}
	return bars
}

// risingDaily builds a steadily rising series, for index trend tests.
func risingDaily(end time.Time, n int, volume float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		c := 1000 + float64(n-1-i)*5
		bars = append(bars, marketdata.Bar{
			Timestamp: day.Add(10 * time.Hour),
			Open:      c - 1, High: c + 2, Low: c - 2, Close: c,
			Volume: volume,
		})
	}
	return bars
}

func newTestScreener(store *marketdata.MemoryStore, provider news.Provider) *Screener {
	cfg := config.Default()
	return New(store, provider, cfg, zap.NewNop())
}

func setupIndex(store *marketdata.MemoryStore) {
	store.SetDaily("NIFTY50", risingDaily(testDate, 250, 1e7))
}

func TestGapBoundariesAreInclusive(t *testing.T) {
	store := marketdata.NewMemoryStore()
	setupIndex(store)
	store.SetDaily("ATMIN", flatDaily(testDate, 210, 0.3, 200000))  // exactly min
	store.SetDaily("ATMAX", flatDaily(testDate, 210, 2.0, 200000))  // exactly max
	store.SetDaily("BELOW", flatDaily(testDate, 210, 0.29, 200000)) // just under
	store.SetDaily("ABOVE", flatDaily(testDate, 210, 2.1, 200000))  // just over

	s := newTestScreener(store, news.NoEvents{})
	got, err := s.Screen(context.Background(), []string{"ATMIN", "ATMAX", "BELOW", "ABOVE"}, testDate)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"ATMIN": true, "ATMAX": true}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for _, c := range got {
		if !want[c.Symbol] {
			t.Fatalf("unexpected candidate %s (gap %.4f)", c.Symbol, c.GapPct)
		}
	}
}

func TestNegativeGapPassesWithDirectionDown(t *testing.T) {
	store := marketdata.NewMemoryStore()
	setupIndex(store)
	store.SetDaily("GAPDN", flatDaily(testDate, 210, -1.0, 200000))

	s := newTestScreener(store, news.NoEvents{})
	got, err := s.Screen(context.Background(), []string{"GAPDN"}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Direction != -1 {
		t.Fatalf("got %+v, want one candidate with direction -1", got)
	}
}

func TestLiquidityFilter(t *testing.T) {
	store := marketdata.NewMemoryStore()
	setupIndex(store)
	store.SetDaily("LIQ", flatDaily(testDate, 210, 1.0, 200000))
	store.SetDaily("THIN", flatDaily(testDate, 210, 1.0, 50000)) // below 100k floor

	s := newTestScreener(store, news.NoEvents{})
	got, err := s.Screen(context.Background(), []string{"LIQ", "THIN"}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Symbol != "LIQ" {
		t.Fatalf("got %+v, want only LIQ", got)
	}
}

func TestInsufficientHistoryIsSkippedNotFatal(t *testing.T) {
	store := marketdata.NewMemoryStore()
	setupIndex(store)
	store.SetDaily("SHORT", flatDaily(testDate, 50, 1.0, 200000)) // < 200 bars
	store.SetDaily("OK", flatDaily(testDate, 210, 1.0, 200000))

	s := newTestScreener(store, news.NoEvents{})
	got, err := s.Screen(context.Background(), []string{"SHORT", "OK", "GHOST"}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Symbol != "OK" {
		t.Fatalf("got %+v, want only OK", got)
	}
}

func TestMissingIndexSeriesIsFatal(t *testing.T) {
	store := marketdata.NewMemoryStore()
	store.SetDaily("OK", flatDaily(testDate, 210, 1.0, 200000))

	s := newTestScreener(store, news.NoEvents{})
	if _, err := s.Screen(context.Background(), []string{"OK"}, testDate); err == nil {
		t.Fatal("missing index series must fail the run")
	}
}

func TestCandidateLimitAndOrdering(t *testing.T) {
	store := marketdata.NewMemoryStore()
	setupIndex(store)
	var universe []string
	for i := 0; i < 12; i++ {
		sym := fmt.Sprintf("SYM%02d", i)
		// Spread gaps so scores differ.
		gap := 0.4 + float64(i)*0.1
		store.SetDaily(sym, flatDaily(testDate, 210, gap, 200000))
		universe = append(universe, sym)
	}

	s := newTestScreener(store, news.NoEvents{})
	got, err := s.Screen(context.Background(), universe, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 8 {
		t.Fatalf("limit: got %d, want 8", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("not ordered by score: %f after %f", got[i].Score, got[i-1].Score)
		}
	}
	// Largest gaps win.
	if got[0].Symbol != "SYM11" {
		t.Fatalf("best candidate %s, want SYM11", got[0].Symbol)
	}
}

func TestAdverseNewsLowersScoreButNeverRemoves(t *testing.T) {
	store := marketdata.NewMemoryStore()
	setupIndex(store)
	store.SetDaily("CLEAN", flatDaily(testDate, 210, 1.0, 200000))
	store.SetDaily("TAINT", flatDaily(testDate, 210, 1.0, 200000))

	provider := news.NewStaticProvider()
	provider.Add(testDate, "TAINT", "regulator opens fraud probe")

	s := newTestScreener(store, provider)
	got, err := s.Screen(context.Background(), []string{"CLEAN", "TAINT"}, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("news must tag, not remove: got %d candidates", len(got))
	}
	scores := map[string]float64{}
	for _, c := range got {
		scores[c.Symbol] = c.Score
	}
	if scores["TAINT"] >= scores["CLEAN"] {
		t.Fatalf("adverse news should lower score: taint=%f clean=%f", scores["TAINT"], scores["CLEAN"])
	}
}

func TestScoreMonotonicInLiquidity(t *testing.T) {
	cfg := config.Default()
	s := &Screener{cfg: cfg, logger: zap.NewNop()}

	cands := []Candidate{
		{Symbol: "A", GapPct: 1.0, AvgVolume: 500000},
		{Symbol: "B", GapPct: 1.0, AvgVolume: 900000},
	}
	s.score(cands, indicators.TrendSideways)
	if cands[1].Score < cands[0].Score {
		t.Fatalf("higher liquidity lowered score: %f < %f", cands[1].Score, cands[0].Score)
	}
}

func TestScoreMonotonicInAlignment(t *testing.T) {
	cfg := config.Default()
	s := &Screener{cfg: cfg, logger: zap.NewNop()}

	cands := []Candidate{
		{Symbol: "A", GapPct: 1.0, Direction: 1, AvgVolume: 500000, IndexAligned: false},
		{Symbol: "B", GapPct: 1.0, Direction: 1, AvgVolume: 500000, IndexAligned: true},
	}
	s.score(cands, indicators.TrendUp)
	if cands[1].Score < cands[0].Score {
		t.Fatalf("alignment lowered score: %f < %f", cands[1].Score, cands[0].Score)
	}
}
