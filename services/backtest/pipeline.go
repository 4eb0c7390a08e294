package backtest

import (
	"context"
	"time"

	"intraday-screener/services/livefilter"
	"intraday-screener/services/screener"
	"intraday-screener/services/signals"
)

// Single-day entry points for the CLI and HTTP layers. These run the
// same stages as Run without the simulation loop around them.

// RunScreening produces the pre-market candidate list for one date.
func (e *Engine) RunScreening(ctx context.Context, date time.Time) ([]screener.Candidate, error) {
	scr := screener.New(e.store, e.news, e.cfg, e.logger)
	return scr.Screen(ctx, e.universe, date)
}

// RunFiltering narrows candidates against their intraday tape.
func (e *Engine) RunFiltering(ctx context.Context, candidates []screener.Candidate, date time.Time) ([]screener.Candidate, error) {
	filt := livefilter.New(e.store, e.cfg, e.logger)
	return filt.Apply(ctx, candidates, date)
}

// GenerateSignals evaluates final candidates into trade signals.
// Symbols whose intraday series cannot be loaded are skipped.
func (e *Engine) GenerateSignals(ctx context.Context, candidates []screener.Candidate, date time.Time) ([]*signals.Signal, error) {
	gen := signals.NewGenerator(e.cfg, e.logger)
	var out []*signals.Signal
	for _, cand := range candidates {
		bars, err := e.store.IntradaySeries(ctx, cand.Symbol, date)
		if err != nil {
			continue
		}
		if sig := gen.Generate(cand, bars); sig != nil {
			out = append(out, sig)
		}
	}
	return out, nil
}
