package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"intraday-screener/services/risk"
)

// Metrics are the aggregate statistics of one backtest run.
type Metrics struct {
	TotalTrades int             `json:"total_trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	WinRate     float64         `json:"win_rate"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	AvgPnL      decimal.Decimal `json:"avg_pnl"`
	MaxDrawdown decimal.Decimal `json:"max_drawdown"`
	Sharpe      float64         `json:"sharpe"`
}

// ComputeMetrics derives win rate and P&L stats from the ledger, max
// drawdown from the cumulative P&L curve, and the annualized Sharpe
// ratio from daily returns. Sharpe is defined as 0 whenever the daily
// return variance is 0; no infinity or NaN ever leaves this function.
func ComputeMetrics(trades []risk.Trade, dailyReturns []float64, tradingDaysPerYear int) Metrics {
	m := Metrics{
		TotalPnL:    decimal.Zero,
		AvgPnL:      decimal.Zero,
		MaxDrawdown: decimal.Zero,
	}

	cum := decimal.Zero
	peak := decimal.Zero
	for _, t := range trades {
		m.TotalTrades++
		if t.PnL.IsPositive() {
			m.Wins++
		} else {
			m.Losses++
		}
		m.TotalPnL = m.TotalPnL.Add(t.PnL)

		cum = cum.Add(t.PnL)
		if cum.GreaterThan(peak) {
			peak = cum
		}
		if dd := peak.Sub(cum); dd.GreaterThan(m.MaxDrawdown) {
			m.MaxDrawdown = dd
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.TotalTrades) * 100
		m.AvgPnL = m.TotalPnL.Div(decimal.NewFromInt(int64(m.TotalTrades)))
	}

	m.Sharpe = sharpe(dailyReturns, tradingDaysPerYear)
	return m
}

func sharpe(returns []float64, tradingDaysPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(tradingDaysPerYear))
}
