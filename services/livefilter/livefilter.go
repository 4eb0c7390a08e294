// Package livefilter narrows pre-market candidates against their
// intraday tape: trend vs EMA200/VWAP, volume surge, day range, and
// proximity to reference levels.
package livefilter

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/indicators"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/screener"
)

type Filter struct {
	store  marketdata.Store
	cfg    *config.Config
	logger *zap.Logger
}

func New(store marketdata.Store, cfg *config.Config, logger *zap.Logger) *Filter {
	return &Filter{store: store, cfg: cfg, logger: logger}
}

// Apply enriches and narrows the candidate list for one trading day.
// Symbols with short or missing intraday history are skipped; an
// all-skip day degrades to an empty list, never an error.
func (f *Filter) Apply(ctx context.Context, candidates []screener.Candidate, date time.Time) ([]screener.Candidate, error) {
	lc := f.cfg.Live

	var out []screener.Candidate
	for _, cand := range candidates {
		enriched, ok := f.filterSymbol(ctx, cand, date)
		if !ok {
			continue
		}
		out = append(out, enriched)
	}

	// Level proximity deprioritizes rather than excludes: sort by the
	// enriched score, then cut to the live limit.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > lc.LiveCandidateLimit {
		out = out[:lc.LiveCandidateLimit]
	}

	f.logger.Info("live filter complete",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("in", len(candidates)),
		zap.Int("out", len(out)),
	)
	return out, nil
}

func (f *Filter) filterSymbol(ctx context.Context, cand screener.Candidate, date time.Time) (screener.Candidate, bool) {
	lc := f.cfg.Live
	emaSlow := f.cfg.Screening.EMASlow

	bars, err := f.store.IntradaySeries(ctx, cand.Symbol, date)
	if err != nil {
		if errors.Is(err, marketdata.ErrSeriesUnavailable) {
			f.logger.Debug("no intraday series", zap.String("symbol", cand.Symbol))
		} else {
			f.logger.Warn("intraday load failed", zap.String("symbol", cand.Symbol), zap.Error(err))
		}
		return cand, false
	}
	if len(bars) < emaSlow {
		f.logger.Debug("insufficient intraday data",
			zap.String("symbol", cand.Symbol),
			zap.Int("bars", len(bars)),
			zap.Int("need", emaSlow),
		)
		return cand, false
	}

	closes := indicators.Closes(bars)
	ema200 := indicators.EMA(closes, emaSlow)
	vwap := indicators.VWAP(bars)

	last := bars[len(bars)-1]
	price := last.Close
	cand.LastPrice = price
	cand.EMA200 = ema200[len(ema200)-1]
	cand.VWAP = vwap[len(vwap)-1]

	// Trend filter: both references must agree or there is no trade.
	switch {
	case price > cand.EMA200 && price > cand.VWAP:
		cand.Bias = "bullish"
	case price < cand.EMA200 && price < cand.VWAP:
		cand.Bias = "bearish"
	default:
		return cand, false
	}

	// Volume surge vs the trailing window.
	avgVol := indicators.AverageVolume(bars, len(bars)-1, lc.VolumeLookbackBars)
	if avgVol <= 0 || last.Volume < avgVol {
		return cand, false
	}
	cand.VolumeRatio = last.Volume / avgVol

	// Day range must be worth trading.
	dayHi, dayLo := bars[0].High, bars[0].Low
	for _, b := range bars {
		if b.High > dayHi {
			dayHi = b.High
		}
		if b.Low < dayLo {
			dayLo = b.Low
		}
	}
	cand.RangePct = (dayHi - dayLo) / price * 100
	if cand.RangePct < lc.MinRangePct {
		return cand, false
	}

	cand.NearLevel = f.nearestLevel(ctx, cand.Symbol, bars, price, date)
	if cand.NearLevel != "" {
		// Location bonus keeps level-adjacent symbols ahead of
		// mid-range ones when the list is cut to the live limit.
		cand.Score += 10
	}
	return cand, true
}

// nearestLevel reports which reference level price sits near: prior-day
// high/low or the opening-range extremes. Empty means mid-range.
func (f *Filter) nearestLevel(ctx context.Context, symbol string, intraday []marketdata.Bar, price float64, date time.Time) string {
	lc := f.cfg.Live
	tol := lc.LevelTolerancePct / 100

	orHi, orLo := indicators.OpeningRange(intraday, lc.OpeningRangeBars)
	levels := []struct {
		name  string
		value float64
	}{
		{"opening_range_high", orHi},
		{"opening_range_low", orLo},
	}

	daily, err := f.store.DailySeries(ctx, symbol)
	if err == nil {
		prior := marketdata.BarsUpTo(daily, dayStart(date).Add(-time.Millisecond))
		if len(prior) > 0 {
			hi, lo, _ := indicators.PriorDayLevels(prior)
			levels = append(levels,
				struct {
					name  string
					value float64
				}{"prior_day_high", hi},
				struct {
					name  string
					value float64
				}{"prior_day_low", lo},
			)
		}
	}

	for _, lv := range levels {
		if lv.value <= 0 {
			continue
		}
		dist := (price - lv.value) / lv.value
		if dist < 0 {
			dist = -dist
		}
		if dist <= tol {
			return lv.name
		}
	}
	return ""
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
