// Package screener produces the pre-market candidate short-list: gap and
// liquidity filters over daily history, news tagging, and a composite
// score ordered against the index trend.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/indicators"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/news"
)

// Candidate survives the screening stages. The live filter enriches the
// same record rather than replacing it. Scoped to one trading day.
type Candidate struct {
	Symbol       string  `json:"symbol"`
	GapPct       float64 `json:"gap_pct"`
	Direction    int     `json:"direction"` // +1 gap up, -1 gap down
	AvgVolume    float64 `json:"avg_volume"`
	IndexAligned bool    `json:"index_aligned"`
	NewsAdverse  bool    `json:"news_adverse"`
	NewsPositive bool    `json:"news_positive"`
	Score        float64 `json:"score"`

	// Filled by the live filter.
	LastPrice   float64 `json:"last_price,omitempty"`
	EMA200      float64 `json:"ema_200,omitempty"`
	VWAP        float64 `json:"vwap,omitempty"`
	Bias        string  `json:"bias,omitempty"` // bullish | bearish
	VolumeRatio float64 `json:"volume_ratio,omitempty"`
	RangePct    float64 `json:"range_pct,omitempty"`
	NearLevel   string  `json:"near_level,omitempty"`
}

type Screener struct {
	store  marketdata.Store
	news   news.Provider
	cfg    *config.Config
	logger *zap.Logger
}

func New(store marketdata.Store, provider news.Provider, cfg *config.Config, logger *zap.Logger) *Screener {
	return &Screener{store: store, news: provider, cfg: cfg, logger: logger}
}

// IndexTrend classifies the index by its fast/slow EMA relationship as
// of date. A missing index series is fatal to the whole run.
func (s *Screener) IndexTrend(ctx context.Context, date time.Time) (indicators.Trend, error) {
	sc := s.cfg.Screening
	bars, err := s.store.DailySeries(ctx, sc.IndexSymbol)
	if err != nil {
		return indicators.TrendSideways, fmt.Errorf("index series %s: %w", sc.IndexSymbol, err)
	}
	bars = marketdata.BarsUpTo(bars, endOfDay(date))
	if len(bars) < sc.EMASlow {
		return indicators.TrendSideways, fmt.Errorf("index series %s: %d bars, need %d", sc.IndexSymbol, len(bars), sc.EMASlow)
	}
	closes := indicators.Closes(bars)
	fast := indicators.EMA(closes, sc.EMAFast)
	slow := indicators.EMA(closes, sc.EMASlow)
	return indicators.TrendOf(fast[len(fast)-1], slow[len(slow)-1], sc.TrendTolerancePct), nil
}

// Screen runs the full pre-market pipeline over the universe for one
// trading day. Per-symbol data problems skip the symbol; only a missing
// index series fails the call.
func (s *Screener) Screen(ctx context.Context, universe []string, date time.Time) ([]Candidate, error) {
	sc := s.cfg.Screening
	indexTrend, err := s.IndexTrend(ctx, date)
	if err != nil {
		return nil, err
	}

	events := s.news.Events(date)

	var candidates []Candidate
	for _, symbol := range universe {
		if symbol == sc.IndexSymbol {
			continue
		}
		cand, ok := s.screenSymbol(ctx, symbol, date, indexTrend, events[symbol])
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}

	s.score(candidates, indexTrend)

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})
	if len(candidates) > sc.PreMarketCandidateLimit {
		candidates = candidates[:sc.PreMarketCandidateLimit]
	}

	s.logger.Info("screening complete",
		zap.String("date", date.Format("2006-01-02")),
		zap.String("index_trend", indexTrend.String()),
		zap.Int("universe", len(universe)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

func (s *Screener) screenSymbol(ctx context.Context, symbol string, date time.Time, indexTrend indicators.Trend, evs []news.Event) (Candidate, bool) {
	sc := s.cfg.Screening

	bars, err := s.store.DailySeries(ctx, symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrSeriesUnavailable) {
			s.logger.Debug("no daily series", zap.String("symbol", symbol))
		} else {
			s.logger.Warn("daily series load failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return Candidate{}, false
	}
	bars = marketdata.BarsUpTo(bars, endOfDay(date))
	if len(bars) < sc.EMASlow {
		s.logger.Debug("insufficient daily history",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)),
		)
		return Candidate{}, false
	}

	today := bars[len(bars)-1]
	if !today.Day().Equal(dayOf(date)) {
		return Candidate{}, false // no bar for the screening date
	}
	prev := bars[len(bars)-2]
	if prev.Close == 0 {
		return Candidate{}, false
	}

	// Gap filter, inclusive on both bounds.
	gapPct := (today.Open - prev.Close) / prev.Close * 100
	absGap := gapPct
	if absGap < 0 {
		absGap = -absGap
	}
	if absGap < sc.GapMinPct || absGap > sc.GapMaxPct {
		return Candidate{}, false
	}
	direction := 1
	if gapPct < 0 {
		direction = -1
	}

	// Liquidity filter over the trailing window, excluding today.
	avgVol := indicators.AverageVolume(bars, len(bars)-1, sc.VolumeLookbackDays)
	if avgVol < sc.MinAvgVolume {
		return Candidate{}, false
	}

	cand := Candidate{
		Symbol:    symbol,
		GapPct:    gapPct,
		Direction: direction,
		AvgVolume: avgVol,
	}
	cand.IndexAligned = aligned(direction, indexTrend)
	for _, e := range evs {
		switch e.Sentiment {
		case news.SentimentAdverse:
			cand.NewsAdverse = true
		case news.SentimentPositive:
			cand.NewsPositive = true
		}
	}
	return cand, true
}

// score assigns the composite 0-100 score. Each factor maps to [0,1] and
// is monotonic: a larger gap, higher liquidity, index alignment or
// cleaner news never lowers the score.
func (s *Screener) score(candidates []Candidate, indexTrend indicators.Trend) {
	sc := s.cfg.Screening

	var maxVol float64
	for _, c := range candidates {
		if c.AvgVolume > maxVol {
			maxVol = c.AvgVolume
		}
	}

	for i := range candidates {
		c := &candidates[i]

		absGap := c.GapPct
		if absGap < 0 {
			absGap = -absGap
		}
		gapScore := (absGap - sc.GapMinPct) / (sc.GapMaxPct - sc.GapMinPct)

		alignScore := 0.0
		if indexTrend == indicators.TrendSideways {
			alignScore = 0.5
		} else if c.IndexAligned {
			alignScore = 1.0
		}

		liqScore := 0.0
		if maxVol > 0 {
			liqScore = c.AvgVolume / maxVol
		}

		newsScore := 0.5
		if c.NewsAdverse {
			newsScore = 0.0
		} else if c.NewsPositive {
			newsScore = 1.0
		}

		c.Score = sc.WeightGap*gapScore +
			sc.WeightAlignment*alignScore +
			sc.WeightLiquidity*liqScore +
			sc.WeightNews*newsScore
	}
}

func aligned(direction int, trend indicators.Trend) bool {
	return (direction > 0 && trend == indicators.TrendUp) ||
		(direction < 0 && trend == indicators.TrendDown)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return dayOf(t).Add(24*time.Hour - time.Millisecond)
}
