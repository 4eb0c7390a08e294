package backtest

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/news"
	"intraday-screener/services/risk"
)

func TestTradingDaysSkipWeekends(t *testing.T) {
	fri := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	mon := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	days := TradingDays(fri, mon)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2: %v", len(days), days)
	}
	if !days[0].Equal(fri) || !days[1].Equal(mon) {
		t.Fatalf("got %v, want [Fri, Mon]", days)
	}
}

func TestIsTradingDay(t *testing.T) {
	sat := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	if IsTradingDay(sat) {
		t.Fatal("Saturday is not a trading day")
	}
	wed := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	if !IsTradingDay(wed) {
		t.Fatal("Wednesday is a trading day")
	}
}

func TestSharpeZeroVarianceIsZero(t *testing.T) {
	m := ComputeMetrics(nil, []float64{0.01, 0.01, 0.01}, 252)
	if m.Sharpe != 0 {
		t.Fatalf("constant returns must give Sharpe 0, got %f", m.Sharpe)
	}
	if ComputeMetrics(nil, nil, 252).Sharpe != 0 {
		t.Fatal("no returns must give Sharpe 0")
	}
}

func TestMaxDrawdownFromCumulativePnL(t *testing.T) {
	trades := []risk.Trade{
		{PnL: decimal.NewFromInt(100)},
		{PnL: decimal.NewFromInt(-30)},
		{PnL: decimal.NewFromInt(-40)},
		{PnL: decimal.NewFromInt(10)},
	}
	m := ComputeMetrics(trades, nil, 252)
	// Curve: 100, 70, 30, 40. Peak 100, trough 30.
	if !m.MaxDrawdown.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("max drawdown %s, want 70", m.MaxDrawdown)
	}
	if m.Wins != 2 || m.Losses != 2 || m.WinRate != 50 {
		t.Fatalf("counts wrong: %+v", m)
	}
	if !m.TotalPnL.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("total pnl %s, want 40", m.TotalPnL)
	}
}

// gapDaily builds n calendar-daily bars ending on end. Every bar opens
// 0.5% above the prior close, so the symbol gaps into range every day.
func gapDaily(end time.Time, n int) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		bars = append(bars, marketdata.Bar{
			Timestamp: day.Add(10 * time.Hour),
			Open:      1005, High: 1006, Low: 999, Close: 1000,
			Volume: 200000,
		})
	}
	return bars
}

func indexDaily(end time.Time, n int) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		c := 1000 + float64(n-1-i)*5
		bars = append(bars, marketdata.Bar{
			Timestamp: day.Add(10 * time.Hour),
			Open:      c - 1, High: c + 2, Low: c - 2, Close: c,
			Volume: 1e7,
		})
	}
	return bars
}

// hammerIntraday climbs through the session and closes on a hammer with
// doubled volume, producing one BUY signal for the day.
func hammerIntraday(day time.Time) []marketdata.Bar {
	start := day.Add(9*time.Hour + 30*time.Minute)
	n := 220
	bars := make([]marketdata.Bar, 0, n)
	for i := 0; i < n-1; i++ {
		c := 100 + 0.05*float64(i)
		o := c - 0.05
		if i == 0 {
			o = 100
		}
		bars = append(bars, marketdata.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      o, High: c + 0.02, Low: o - 0.02, Close: c,
			Volume: 1000,
		})
	}
	prevClose := bars[len(bars)-1].Close
	bars = append(bars, marketdata.Bar{
		Timestamp: start.Add(time.Duration(n-1) * 5 * time.Minute),
		Open:      prevClose,
		High:      prevClose + 0.16,
		Low:       prevClose - 0.60,
		Close:     prevClose + 0.12,
		Volume:    2000,
	})
	return bars
}

// fixtureStore wires the index plus the given symbols so each symbol
// produces exactly one BUY signal on every day in days.
func fixtureStore(days []time.Time, symbols ...string) *marketdata.MemoryStore {
	store := marketdata.NewMemoryStore()
	last := days[len(days)-1]
	store.SetDaily("NIFTY50", indexDaily(last, 250))
	for _, sym := range symbols {
		store.SetDaily(sym, gapDaily(last, 210))
		var intraday []marketdata.Bar
		for _, day := range days {
			intraday = append(intraday, hammerIntraday(day)...)
		}
		store.SetIntraday(sym, intraday)
	}
	return store
}

var (
	runStart = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) // Wed
	runEnd   = time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC) // Fri
)

func runDays() []time.Time { return TradingDays(runStart, runEnd) }

func newTestEngine(store *marketdata.MemoryStore, cfg *config.Config) *Engine {
	return NewEngine(store, news.NoEvents{}, store.Symbols(), cfg, zap.NewNop())
}

func TestRunAllWins(t *testing.T) {
	cfg := config.Default()
	cfg.Backtest.TargetProbability = 1.0

	eng := newTestEngine(fixtureStore(runDays(), "UPTREND"), cfg)
	res, err := eng.Run(context.Background(), runStart, runEnd, decimal.NewFromInt(100000), 42)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Days) != 3 {
		t.Fatalf("got %d days, want 3", len(res.Days))
	}
	if len(res.Trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(res.Trades))
	}
	for _, tr := range res.Trades {
		if tr.ExitReason != risk.ExitTarget {
			t.Fatalf("trade %s exited at %s, want target", tr.ID, tr.ExitReason)
		}
		if !tr.PnL.IsPositive() {
			t.Fatalf("target exit must profit, pnl %s", tr.PnL)
		}
	}
	if res.Metrics.WinRate != 100 {
		t.Fatalf("win rate %f, want 100", res.Metrics.WinRate)
	}
	if !res.FinalCapital.GreaterThan(res.InitialCapital) {
		t.Fatalf("winning run must grow capital: %s -> %s", res.InitialCapital, res.FinalCapital)
	}
}

func TestRunAllLossesStopsAfterLossStreak(t *testing.T) {
	cfg := config.Default()
	cfg.Backtest.TargetProbability = 0.0

	// Three signal-producing symbols in one day, but two straight
	// losses close the day for new trades.
	day := []time.Time{runStart}
	eng := newTestEngine(fixtureStore(day, "UPA", "UPB", "UPC"), cfg)
	res, err := eng.Run(context.Background(), runStart, runStart, decimal.NewFromInt(100000), 7)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Days) != 1 {
		t.Fatalf("got %d days, want 1", len(res.Days))
	}
	dr := res.Days[0]
	if dr.Signals != 3 {
		t.Fatalf("got %d signals, want 3", dr.Signals)
	}
	if dr.TradesOpened != 2 {
		t.Fatalf("loss streak must cap the day at 2 trades, got %d", dr.TradesOpened)
	}
	for _, tr := range res.Trades {
		if tr.ExitReason != risk.ExitStop || tr.PnL.IsPositive() {
			t.Fatalf("stop exit must lose: %+v", tr)
		}
	}
	if !res.FinalCapital.LessThan(res.InitialCapital) {
		t.Fatalf("losing run must shrink capital: %s -> %s", res.InitialCapital, res.FinalCapital)
	}
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	cfg := config.Default()
	capital := decimal.NewFromInt(100000)

	run := func(seed int64) *Result {
		eng := newTestEngine(fixtureStore(runDays(), "UPTREND"), cfg)
		res, err := eng.Run(context.Background(), runStart, runEnd, capital, seed)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	a, b := run(42), run(42)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed must reproduce the result bit for bit")
	}
	c := run(43)
	if a.Manifest.JobID == c.Manifest.JobID {
		t.Fatal("different seeds must produce different job IDs")
	}
}

func TestRunManifestRecordsInputs(t *testing.T) {
	cfg := config.Default()
	eng := newTestEngine(fixtureStore(runDays(), "UPTREND"), cfg)
	res, err := eng.Run(context.Background(), runStart, runEnd, decimal.NewFromInt(100000), 99)
	if err != nil {
		t.Fatal(err)
	}

	m := res.Manifest
	if m.Seed != 99 || m.Start != "2024-01-10" || m.End != "2024-01-12" {
		t.Fatalf("manifest inputs wrong: %+v", m)
	}
	if m.ConfigHash != cfg.Snapshot() {
		t.Fatal("manifest must carry the config hash")
	}
	if m.JobID == "" {
		t.Fatal("manifest must carry a job id")
	}
}

func TestRunFailsWithoutIndexSeries(t *testing.T) {
	store := marketdata.NewMemoryStore()
	store.SetDaily("UPTREND", gapDaily(runEnd, 210))
	store.SetIntraday("UPTREND", hammerIntraday(runStart))

	eng := newTestEngine(store, config.Default())
	if _, err := eng.Run(context.Background(), runStart, runStart, decimal.NewFromInt(100000), 1); err == nil {
		t.Fatal("missing index series must fail the run")
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newTestEngine(fixtureStore(runDays(), "UPTREND"), config.Default())
	if _, err := eng.Run(ctx, runStart, runEnd, decimal.NewFromInt(100000), 1); err == nil {
		t.Fatal("cancelled context must abort the run")
	}
}
