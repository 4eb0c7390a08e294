// Package config loads and validates the strategy, risk and
// infrastructure parameters. Validation fails fast: a missing or
// out-of-range parameter aborts the run before any money math happens.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"intraday-screener/services/marketdata"
)

// ConfigurationError names the offending parameter. It is always fatal.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Param, e.Reason)
}

type ScreeningConfig struct {
	IndexSymbol             string  `yaml:"index_symbol"`
	GapMinPct               float64 `yaml:"gap_min_pct"`
	GapMaxPct               float64 `yaml:"gap_max_pct"`
	MinAvgVolume            float64 `yaml:"min_avg_volume"`
	VolumeLookbackDays      int     `yaml:"volume_lookback_days"`
	PreMarketCandidateLimit int     `yaml:"pre_market_candidate_limit"`
	EMAFast                 int     `yaml:"ema_fast"`
	EMASlow                 int     `yaml:"ema_slow"`
	TrendTolerancePct       float64 `yaml:"trend_tolerance_pct"`

	// Score weights, must sum to 100.
	WeightGap       float64 `yaml:"weight_gap"`
	WeightAlignment float64 `yaml:"weight_alignment"`
	WeightLiquidity float64 `yaml:"weight_liquidity"`
	WeightNews      float64 `yaml:"weight_news"`
}

type LiveConfig struct {
	LiveCandidateLimit int     `yaml:"live_candidate_limit"`
	MinRangePct        float64 `yaml:"min_range_pct"`
	VolumeLookbackBars int     `yaml:"volume_lookback_bars"`
	LevelTolerancePct  float64 `yaml:"level_tolerance_pct"`
	OpeningRangeBars   int     `yaml:"opening_range_bars"`
}

type SignalConfig struct {
	EMAPullback     int     `yaml:"ema_pullback"`
	PullbackPct     float64 `yaml:"pullback_pct"`
	PullbackWindow  int     `yaml:"pullback_window"`
	ATRPeriod       int     `yaml:"atr_period"`
	ATRMultiplier   float64 `yaml:"atr_multiplier"`
	RiskRewardRatio float64 `yaml:"risk_reward_ratio"`

	// Quality score weights, must sum to 100.
	WeightTrend      float64 `yaml:"weight_trend"`
	WeightVolume     float64 `yaml:"weight_volume"`
	WeightPattern    float64 `yaml:"weight_pattern"`
	WeightRiskReward float64 `yaml:"weight_risk_reward"`
}

type RiskConfig struct {
	RiskPerTradePct      float64 `yaml:"risk_per_trade_pct"`
	MaxTradesPerDay      int     `yaml:"max_trades_per_day"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	MaxPositionPct       float64 `yaml:"max_position_pct"`
	MinCapitalPct        float64 `yaml:"min_capital_pct"`
}

type BacktestConfig struct {
	// TargetProbability is the chance a simulated trade reaches its
	// target rather than its stop. The exit model is a single draw per
	// trade, an explicit approximation, not modeled fills.
	TargetProbability  float64 `yaml:"target_probability"`
	Compounding        bool    `yaml:"compounding"`
	TradingDaysPerYear int     `yaml:"trading_days_per_year"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type DataConfig struct {
	Source     string                      `yaml:"source"` // csv | clickhouse
	CSVDir     string                      `yaml:"csv_dir"`
	ClickHouse marketdata.ClickHouseConfig `yaml:"clickhouse"`
}

type Config struct {
	Screening ScreeningConfig `yaml:"screening"`
	Live      LiveConfig      `yaml:"live"`
	Signals   SignalConfig    `yaml:"signals"`
	Risk      RiskConfig      `yaml:"risk"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
}

// Default returns the canonical parameter set. CLI and tests start here;
// Load never falls back to it.
func Default() *Config {
	return &Config{
		Screening: ScreeningConfig{
			IndexSymbol:             "NIFTY50",
			GapMinPct:               0.3,
			GapMaxPct:               2.0,
			MinAvgVolume:            100000,
			VolumeLookbackDays:      20,
			PreMarketCandidateLimit: 8,
			EMAFast:                 50,
			EMASlow:                 200,
			TrendTolerancePct:       0.1,
			WeightGap:               40,
			WeightAlignment:         20,
			WeightLiquidity:         25,
			WeightNews:              15,
		},
		Live: LiveConfig{
			LiveCandidateLimit: 4,
			MinRangePct:        0.5,
			VolumeLookbackBars: 10,
			LevelTolerancePct:  0.3,
			OpeningRangeBars:   3,
		},
		Signals: SignalConfig{
			EMAPullback:      20,
			PullbackPct:      0.5,
			PullbackWindow:   3,
			ATRPeriod:        14,
			ATRMultiplier:    1.5,
			RiskRewardRatio:  2.0,
			WeightTrend:      30,
			WeightVolume:     25,
			WeightPattern:    25,
			WeightRiskReward: 20,
		},
		Risk: RiskConfig{
			RiskPerTradePct:      1.0,
			MaxTradesPerDay:      3,
			MaxConsecutiveLosses: 2,
			MaxPositionPct:       20.0,
			MinCapitalPct:        20.0,
		},
		Backtest: BacktestConfig{
			TargetProbability:  0.60,
			Compounding:        true,
			TradingDaysPerYear: 252,
		},
		Server: ServerConfig{ListenAddr: ":8080"},
		Data:   DataConfig{Source: "csv", CSVDir: "data"},
	}
}

// Load reads a YAML config file and validates it. Every parameter must
// be present and in range.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigurationError{Param: path, Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces presence and ranges of every risk-relevant
// parameter.
func (c *Config) Validate() error {
	checks := []struct {
		ok     bool
		param  string
		reason string
	}{
		{c.Screening.IndexSymbol != "", "screening.index_symbol", "must be set"},
		{c.Screening.GapMinPct > 0, "screening.gap_min_pct", "must be > 0"},
		{c.Screening.GapMaxPct > c.Screening.GapMinPct, "screening.gap_max_pct", "must exceed gap_min_pct"},
		{c.Screening.MinAvgVolume > 0, "screening.min_avg_volume", "must be > 0"},
		{c.Screening.VolumeLookbackDays > 0, "screening.volume_lookback_days", "must be > 0"},
		{c.Screening.PreMarketCandidateLimit > 0, "screening.pre_market_candidate_limit", "must be > 0"},
		{c.Screening.EMAFast > 0, "screening.ema_fast", "must be > 0"},
		{c.Screening.EMASlow > c.Screening.EMAFast, "screening.ema_slow", "must exceed ema_fast"},
		{weightsSum(c.Screening.WeightGap, c.Screening.WeightAlignment, c.Screening.WeightLiquidity, c.Screening.WeightNews), "screening weights", "must sum to 100"},
		{c.Live.LiveCandidateLimit > 0, "live.live_candidate_limit", "must be > 0"},
		{c.Live.MinRangePct > 0, "live.min_range_pct", "must be > 0"},
		{c.Live.VolumeLookbackBars > 0, "live.volume_lookback_bars", "must be > 0"},
		{c.Live.LevelTolerancePct > 0, "live.level_tolerance_pct", "must be > 0"},
		{c.Live.OpeningRangeBars > 0, "live.opening_range_bars", "must be > 0"},
		{c.Signals.EMAPullback > 0, "signals.ema_pullback", "must be > 0"},
		{c.Signals.PullbackPct > 0, "signals.pullback_pct", "must be > 0"},
		{c.Signals.PullbackWindow > 0, "signals.pullback_window", "must be > 0"},
		{c.Signals.ATRPeriod > 0, "signals.atr_period", "must be > 0"},
		{c.Signals.ATRMultiplier > 0, "signals.atr_multiplier", "must be > 0"},
		{c.Signals.RiskRewardRatio >= 1, "signals.risk_reward_ratio", "must be >= 1"},
		{weightsSum(c.Signals.WeightTrend, c.Signals.WeightVolume, c.Signals.WeightPattern, c.Signals.WeightRiskReward), "signals weights", "must sum to 100"},
		{c.Risk.RiskPerTradePct > 0 && c.Risk.RiskPerTradePct <= 100, "risk.risk_per_trade_pct", "must be in (0, 100]"},
		{c.Risk.MaxTradesPerDay > 0, "risk.max_trades_per_day", "must be > 0"},
		{c.Risk.MaxConsecutiveLosses > 0, "risk.max_consecutive_losses", "must be > 0"},
		{c.Risk.MaxPositionPct > 0 && c.Risk.MaxPositionPct <= 100, "risk.max_position_pct", "must be in (0, 100]"},
		{c.Risk.MinCapitalPct >= 0 && c.Risk.MinCapitalPct < 100, "risk.min_capital_pct", "must be in [0, 100)"},
		{c.Backtest.TargetProbability >= 0 && c.Backtest.TargetProbability <= 1, "backtest.target_probability", "must be in [0, 1]"},
		{c.Backtest.TradingDaysPerYear > 0, "backtest.trading_days_per_year", "must be > 0"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return &ConfigurationError{Param: chk.param, Reason: chk.reason}
		}
	}
	if c.Data.Source != "csv" && c.Data.Source != "clickhouse" && c.Data.Source != "" {
		return &ConfigurationError{Param: "data.source", Reason: "must be csv or clickhouse"}
	}
	return nil
}

func weightsSum(ws ...float64) bool {
	var sum float64
	for _, w := range ws {
		if w < 0 {
			return false
		}
		sum += w
	}
	return sum > 99.999 && sum < 100.001
}

// Snapshot hashes the full parameter set for the run manifest, so a
// result can be tied back to the exact configuration that produced it.
func (c *Config) Snapshot() string {
	raw, _ := json.Marshal(c)
	return fmt.Sprintf("%x", sha256.Sum256(raw))
}
