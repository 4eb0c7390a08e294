// Package signals turns filtered candidates into priced trade signals:
// trend plus pullback plus reversal pattern plus volume, with ATR-sized
// stops and risk-reward targets fixed by construction.
package signals

import (
	"time"

	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/indicators"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/screener"
)

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Signal is immutable once created. At most one per symbol per day.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stop_loss"`
	Target      float64   `json:"target"`
	Score       float64   `json:"score"`
	Pattern     string    `json:"pattern"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Generator struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewGenerator(cfg *config.Config, logger *zap.Logger) *Generator {
	return &Generator{cfg: cfg, logger: logger}
}

// Generate evaluates one candidate against its intraday bars. Returns
// nil when no entry condition set holds. When both the BUY and SELL
// condition sets hold simultaneously the generator emits nothing and
// logs the anomaly: contradictory structure means no trade, never an
// arbitrary pick.
func (g *Generator) Generate(cand screener.Candidate, bars []marketdata.Bar) *Signal {
	sc := g.cfg.Signals
	emaSlow := g.cfg.Screening.EMASlow
	if len(bars) < emaSlow {
		return nil
	}

	closes := indicators.Closes(bars)
	ema200 := indicators.EMA(closes, emaSlow)
	emaPull := indicators.EMA(closes, sc.EMAPullback)
	vwap := indicators.VWAP(bars)
	atr := indicators.ATR(bars, sc.ATRPeriod)

	last := bars[len(bars)-1]
	price := last.Close
	i := len(bars) - 1

	avgVol := indicators.AverageVolume(bars, i, g.cfg.Live.VolumeLookbackBars)
	volumeOK := avgVol > 0 && last.Volume >= avgVol

	patterns := DetectReversal(bars)
	var bullPattern, bearPattern *Pattern
	for idx := range patterns {
		p := &patterns[idx]
		if p.Bullish && (bullPattern == nil || p.Strength > bullPattern.Strength) {
			bullPattern = p
		}
		if !p.Bullish && (bearPattern == nil || p.Strength > bearPattern.Strength) {
			bearPattern = p
		}
	}

	pullOK := g.pullbackNear(bars, emaPull, price)

	buy := price > ema200[i] && price > vwap[i] && pullOK && bullPattern != nil && volumeOK
	sell := price < ema200[i] && price < vwap[i] && pullOK && bearPattern != nil && volumeOK

	// Fail closed on contradictory structure: if the bar shows both
	// bullish and bearish reversal evidence, no side gets picked.
	if (buy || sell) && bullPattern != nil && bearPattern != nil {
		g.logger.Warn("contradictory reversal patterns, no signal emitted",
			zap.String("symbol", cand.Symbol),
			zap.String("bullish", bullPattern.Name),
			zap.String("bearish", bearPattern.Name),
			zap.Float64("price", price),
		)
		return nil
	}
	if !buy && !sell {
		return nil
	}

	a := atr[i]
	if a <= 0 {
		return nil
	}
	stopDist := a * sc.ATRMultiplier

	sig := &Signal{
		Symbol:      cand.Symbol,
		GeneratedAt: last.Timestamp,
		Entry:       price,
	}
	var pattern *Pattern
	if buy {
		sig.Direction = Buy
		sig.StopLoss = price - stopDist
		sig.Target = price + sc.RiskRewardRatio*stopDist
		pattern = bullPattern
	} else {
		sig.Direction = Sell
		sig.StopLoss = price + stopDist
		sig.Target = price - sc.RiskRewardRatio*stopDist
		pattern = bearPattern
	}
	sig.Pattern = pattern.Name
	sig.Score = g.quality(price, ema200[i], vwap[i], last.Volume, avgVol, pattern.Strength)

	g.logger.Info("signal generated",
		zap.String("symbol", sig.Symbol),
		zap.String("direction", string(sig.Direction)),
		zap.String("pattern", sig.Pattern),
		zap.Float64("entry", sig.Entry),
		zap.Float64("stop", sig.StopLoss),
		zap.Float64("target", sig.Target),
		zap.Float64("score", sig.Score),
	)
	return sig
}

// pullbackNear: price within pullback_pct of the pullback EMA, or the
// EMA was touched by a bar range within the trailing window.
func (g *Generator) pullbackNear(bars []marketdata.Bar, emaPull []float64, price float64) bool {
	sc := g.cfg.Signals
	i := len(bars) - 1
	if emaPull[i] > 0 {
		dist := (price - emaPull[i]) / emaPull[i] * 100
		if dist < 0 {
			dist = -dist
		}
		if dist <= sc.PullbackPct {
			return true
		}
	}
	start := i - sc.PullbackWindow + 1
	if start < 0 {
		start = 0
	}
	for j := start; j <= i; j++ {
		if bars[j].Low <= emaPull[j] && emaPull[j] <= bars[j].High {
			return true
		}
	}
	return false
}

// quality maps each factor to [0,1] and combines them with the
// configured weights. Monotonic: a stronger pattern, higher volume
// ratio, wider trend distance or richer risk-reward never lowers the
// score.
func (g *Generator) quality(price, ema200, vwap, vol, avgVol, patternStrength float64) float64 {
	sc := g.cfg.Signals

	trendDist := 0.0
	if ema200 > 0 {
		d := (price - ema200) / ema200 * 100
		if d < 0 {
			d = -d
		}
		trendDist = clamp01(d / 1.0)
	}
	if vwap > 0 {
		d := (price - vwap) / vwap * 100
		if d < 0 {
			d = -d
		}
		trendDist = (trendDist + clamp01(d/1.0)) / 2
	}

	volScore := 0.0
	if avgVol > 0 {
		volScore = clamp01(vol / avgVol / 2.0)
	}

	rrScore := clamp01(sc.RiskRewardRatio / 3.0)

	return sc.WeightTrend*trendDist +
		sc.WeightVolume*volScore +
		sc.WeightPattern*patternStrength +
		sc.WeightRiskReward*rrScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
