package risk

import (
	"github.com/shopspring/decimal"
)

// Sizing is the pure derivation of quantity from capital, entry, stop
// and the per-trade risk fraction.
type Sizing struct {
	Quantity      int64           `json:"quantity"`
	RiskAmount    decimal.Decimal `json:"risk_amount"`
	RiskPerShare  decimal.Decimal `json:"risk_per_share"`
	PositionValue decimal.Decimal `json:"position_value"`
	Capped        bool            `json:"capped"`
}

var hundred = decimal.NewFromInt(100)

// CalculatePositionSize risks exactly riskPct percent of capital:
// quantity = floor(riskAmount / |entry - stop|). Quantity zero means
// the trade cannot be taken within budget; rounding up would exceed it,
// so zero is a hard rejection, decided by the caller.
func CalculatePositionSize(capital, entry, stop decimal.Decimal, riskPct float64) Sizing {
	riskAmount := capital.Mul(decimal.NewFromFloat(riskPct)).Div(hundred)
	riskPerShare := entry.Sub(stop).Abs()
	if riskPerShare.IsZero() {
		return Sizing{RiskAmount: riskAmount, RiskPerShare: riskPerShare}
	}
	qty := riskAmount.Div(riskPerShare).Floor().IntPart()
	if qty < 0 {
		qty = 0
	}
	return Sizing{
		Quantity:      qty,
		RiskAmount:    riskAmount,
		RiskPerShare:  riskPerShare,
		PositionValue: entry.Mul(decimal.NewFromInt(qty)),
	}
}

// ApplyPositionCap shrinks a sizing so the position value never exceeds
// maxPositionPct percent of capital. The risk budget still holds after
// capping since quantity only ever shrinks.
func ApplyPositionCap(s Sizing, capital, entry decimal.Decimal, maxPositionPct float64) Sizing {
	if s.Quantity == 0 || entry.IsZero() {
		return s
	}
	maxValue := capital.Mul(decimal.NewFromFloat(maxPositionPct)).Div(hundred)
	if s.PositionValue.LessThanOrEqual(maxValue) {
		return s
	}
	qty := maxValue.Div(entry).Floor().IntPart()
	if qty < 0 {
		qty = 0
	}
	s.Quantity = qty
	s.PositionValue = entry.Mul(decimal.NewFromInt(qty))
	s.Capped = true
	return s
}
