// Package backtest replays the screening, filtering, signal and risk
// chain day by day over a date range. Days run strictly in order: each
// day's closing risk state feeds the next day's eligibility.
//
// Exit model: each opened trade resolves with a single draw from a
// seeded generator (default 60% target, 40% stop). This is an explicit
// approximation standing in for tick-level fills; it does not model the
// price path touching stop before target. Results are comparative, not
// executable.
package backtest

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/livefilter"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/news"
	"intraday-screener/services/risk"
	"intraday-screener/services/screener"
	"intraday-screener/services/signals"
)

// DayResult is one simulated trading day.
type DayResult struct {
	Date            time.Time       `json:"date"`
	Candidates      int             `json:"candidates"`
	FinalCandidates int             `json:"final_candidates"`
	Signals         int             `json:"signals"`
	TradesOpened    int             `json:"trades_opened"`
	PnL             decimal.Decimal `json:"pnl"`
	CapitalClose    decimal.Decimal `json:"capital_close"`
}

// Manifest ties a result to the exact inputs that produced it.
type Manifest struct {
	JobID      string `json:"job_id"`
	ConfigHash string `json:"config_hash"`
	Seed       int64  `json:"seed"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// Result is immutable once produced. Identical inputs and seed yield a
// bit-identical Result.
type Result struct {
	Manifest       Manifest        `json:"manifest"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalCapital   decimal.Decimal `json:"final_capital"`
	Days           []DayResult     `json:"days"`
	Trades         []risk.Trade    `json:"trades"`
	Metrics        Metrics         `json:"metrics"`
}

type Engine struct {
	store    marketdata.Store
	news     news.Provider
	cfg      *config.Config
	logger   *zap.Logger
	universe []string
}

func NewEngine(store marketdata.Store, provider news.Provider, universe []string, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		news:     provider,
		cfg:      cfg,
		logger:   logger,
		universe: universe,
	}
}

// Run simulates the closed interval [start, end], skipping weekends.
// Only a configuration problem or a missing index series fails the run;
// any per-day or per-symbol trouble collapses to zero trades that day.
func (e *Engine) Run(ctx context.Context, start, end time.Time, initialCapital decimal.Decimal, seed int64) (*Result, error) {
	rng := rand.New(rand.NewSource(seed))

	jobID := uuid.New().String()
	if id, err := uuid.NewRandomFromReader(rng); err == nil {
		jobID = id.String()
	}

	scr := screener.New(e.store, e.news, e.cfg, e.logger)
	filt := livefilter.New(e.store, e.cfg, e.logger)
	gen := signals.NewGenerator(e.cfg, e.logger)
	mgr := risk.NewManager(initialCapital, e.cfg, e.logger)
	mgr.UseIDReader(rng)

	result := &Result{
		Manifest: Manifest{
			JobID:      jobID,
			ConfigHash: e.cfg.Snapshot(),
			Seed:       seed,
			Start:      dayOf(start).Format("2006-01-02"),
			End:        dayOf(end).Format("2006-01-02"),
		},
		InitialCapital: initialCapital,
	}

	var dailyReturns []float64
	for _, day := range TradingDays(start, end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dr, err := e.runDay(ctx, day, scr, filt, gen, mgr, rng)
		if err != nil {
			return nil, err // index series gone or config broken
		}
		result.Days = append(result.Days, dr)

		capOpen := dr.CapitalClose.Sub(dr.PnL)
		ret := 0.0
		if !capOpen.IsZero() {
			ret, _ = dr.PnL.Div(capOpen).Float64()
		}
		dailyReturns = append(dailyReturns, ret)

		if !e.cfg.Backtest.Compounding {
			mgr.SetCapital(initialCapital)
		}
	}

	result.Trades = mgr.Ledger().All()
	result.FinalCapital = mgr.Capital()
	if !e.cfg.Backtest.Compounding {
		result.FinalCapital = initialCapital.Add(sumPnL(result.Trades))
	}
	result.Metrics = ComputeMetrics(result.Trades, dailyReturns, e.cfg.Backtest.TradingDaysPerYear)

	e.logger.Info("backtest complete",
		zap.String("job_id", jobID),
		zap.Int("days", len(result.Days)),
		zap.Int("trades", result.Metrics.TotalTrades),
		zap.Float64("win_rate", result.Metrics.WinRate),
		zap.String("total_pnl", result.Metrics.TotalPnL.StringFixed(2)),
	)
	return result, nil
}

func (e *Engine) runDay(
	ctx context.Context,
	day time.Time,
	scr *screener.Screener,
	filt *livefilter.Filter,
	gen *signals.Generator,
	mgr *risk.Manager,
	rng *rand.Rand,
) (DayResult, error) {
	mgr.StartDay(day)
	dr := DayResult{Date: day, PnL: decimal.Zero}

	candidates, err := scr.Screen(ctx, e.universe, day)
	if err != nil {
		return dr, err
	}
	dr.Candidates = len(candidates)

	final, err := filt.Apply(ctx, candidates, day)
	if err != nil {
		return dr, err
	}
	dr.FinalCandidates = len(final)

	var sigs []*signals.Signal
	for _, cand := range final {
		bars, err := e.store.IntradaySeries(ctx, cand.Symbol, day)
		if err != nil {
			continue
		}
		if sig := gen.Generate(cand, bars); sig != nil {
			sigs = append(sigs, sig)
		}
	}
	dr.Signals = len(sigs)

	// Best signals claim the limited trade slots first.
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Score != sigs[j].Score {
			return sigs[i].Score > sigs[j].Score
		}
		return sigs[i].Symbol < sigs[j].Symbol
	})

	for _, sig := range sigs {
		sizing, ok, reason := mgr.ValidateSignal(sig)
		if !ok {
			e.logger.Debug("signal rejected",
				zap.String("symbol", sig.Symbol),
				zap.String("reason", reason),
			)
			continue
		}
		trade := mgr.OpenTrade(sig, sizing)
		dr.TradesOpened++

		closed, err := e.simulateExit(mgr, trade, rng)
		if err != nil {
			return dr, err
		}
		dr.PnL = dr.PnL.Add(closed.PnL)
	}

	dr.CapitalClose = mgr.Capital()
	summary := mgr.Summary()
	e.logger.Info("day complete",
		zap.String("date", day.Format("2006-01-02")),
		zap.Int("trades", summary.Trades),
		zap.Float64("win_rate", summary.WinRate),
		zap.String("pnl", summary.TotalPnL.StringFixed(2)),
	)
	return dr, nil
}

// simulateExit resolves a trade with one draw from the run's generator.
func (e *Engine) simulateExit(mgr *risk.Manager, trade *risk.Trade, rng *rand.Rand) (risk.Trade, error) {
	exitPrice := trade.StopLoss
	reason := risk.ExitStop
	if rng.Float64() < e.cfg.Backtest.TargetProbability {
		exitPrice = trade.Target
		reason = risk.ExitTarget
	}
	return mgr.CloseTrade(trade, exitPrice, reason, trade.EntryTime.Add(time.Hour))
}

func sumPnL(trades []risk.Trade) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.PnL)
	}
	return sum
}
