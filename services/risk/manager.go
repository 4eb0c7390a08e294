// Package risk owns the trade lifecycle: fixed-fractional position
// sizing, the per-day trade and loss limits, and the append-only ledger
// of closed trades.
package risk

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/signals"
)

type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

type ExitReason string

const (
	ExitTarget  ExitReason = "target"
	ExitStop    ExitReason = "stop"
	ExitTimeout ExitReason = "timeout"
)

// Trade moves OPEN -> CLOSED exactly once. After closing it lives in
// the ledger and is never mutated again.
type Trade struct {
	ID        string            `json:"id"`
	Symbol    string            `json:"symbol"`
	Direction signals.Direction `json:"direction"`
	Entry     decimal.Decimal   `json:"entry"`
	StopLoss  decimal.Decimal   `json:"stop_loss"`
	Target    decimal.Decimal   `json:"target"`
	Quantity  int64             `json:"quantity"`
	EntryTime time.Time         `json:"entry_time"`
	Status    TradeStatus       `json:"status"`

	ExitPrice  decimal.Decimal `json:"exit_price"`
	ExitTime   time.Time       `json:"exit_time"`
	ExitReason ExitReason      `json:"exit_reason"`
	PnL        decimal.Decimal `json:"pnl"`
}

func (t Trade) directionSign() decimal.Decimal {
	if t.Direction == signals.Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Ledger is append-only: closed trades go in, nothing comes out or
// changes. Reads take copies.
type Ledger struct {
	mu     sync.RWMutex
	trades []Trade
}

func (l *Ledger) Append(t Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, t)
}

func (l *Ledger) All() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// DailySummary is a pure read over the current day's closed trades.
type DailySummary struct {
	Date     time.Time       `json:"date"`
	Trades   int             `json:"trades"`
	Wins     int             `json:"wins"`
	Losses   int             `json:"losses"`
	WinRate  float64         `json:"win_rate"`
	TotalPnL decimal.Decimal `json:"total_pnl"`
	AvgPnL   decimal.Decimal `json:"avg_pnl"`
}

// Manager serializes all signal validation and trade opening through a
// single mutex: the daily counters have exactly one writer.
type Manager struct {
	mu sync.Mutex

	cfg            *config.Config
	logger         *zap.Logger
	initialCapital decimal.Decimal
	capital        decimal.Decimal

	day               time.Time
	tradesToday       int
	consecutiveLosses int
	dayClosed         []Trade

	open   map[string]*Trade
	ledger *Ledger
	newID  func() string
}

func NewManager(initialCapital decimal.Decimal, cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:            cfg,
		logger:         logger,
		initialCapital: initialCapital,
		capital:        initialCapital,
		open:           make(map[string]*Trade),
		ledger:         &Ledger{},
		newID:          func() string { return uuid.New().String() },
	}
}

// UseIDReader derives trade IDs from r instead of the process entropy
// pool. Backtests pass their seeded generator here so IDs, and with
// them the whole result, reproduce bit for bit under a fixed seed.
func (m *Manager) UseIDReader(r io.Reader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newID = func() string {
		id, err := uuid.NewRandomFromReader(r)
		if err != nil {
			return uuid.New().String()
		}
		return id.String()
	}
}

// StartDay resets the daily risk state: trade count, consecutive-loss
// counter and the capital snapshot all restart; the ledger persists.
func (m *Manager) StartDay(date time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.day = date
	m.tradesToday = 0
	m.consecutiveLosses = 0
	m.dayClosed = nil
	m.logger.Debug("daily risk state reset",
		zap.String("date", date.Format("2006-01-02")),
		zap.String("capital", m.capital.StringFixed(2)),
	)
}

// ValidateSignal gates a signal against the daily limits and sizes it.
// Cheapest checks run first. A false return is a recorded outcome, not
// an error.
func (m *Manager) ValidateSignal(sig *signals.Signal) (Sizing, bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc := m.cfg.Risk
	if m.tradesToday >= rc.MaxTradesPerDay {
		return Sizing{}, false, fmt.Sprintf("max trades per day reached (%d)", rc.MaxTradesPerDay)
	}
	if m.consecutiveLosses >= rc.MaxConsecutiveLosses {
		return Sizing{}, false, fmt.Sprintf("max consecutive losses reached (%d)", rc.MaxConsecutiveLosses)
	}
	floor := m.initialCapital.Mul(decimal.NewFromFloat(rc.MinCapitalPct)).Div(hundred)
	if m.capital.LessThan(floor) {
		return Sizing{}, false, fmt.Sprintf("capital below %.0f%% of initial", rc.MinCapitalPct)
	}

	entry := decimal.NewFromFloat(sig.Entry)
	stop := decimal.NewFromFloat(sig.StopLoss)
	sizing := CalculatePositionSize(m.capital, entry, stop, rc.RiskPerTradePct)
	sizing = ApplyPositionCap(sizing, m.capital, entry, rc.MaxPositionPct)
	if sizing.Quantity == 0 {
		return sizing, false, "position size rounds to zero"
	}
	return sizing, true, ""
}

// OpenTrade opens a validated, sized trade and bumps the daily counter.
func (m *Manager) OpenTrade(sig *signals.Signal, sizing Sizing) *Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &Trade{
		ID:        m.newID(),
		Symbol:    sig.Symbol,
		Direction: sig.Direction,
		Entry:     decimal.NewFromFloat(sig.Entry),
		StopLoss:  decimal.NewFromFloat(sig.StopLoss),
		Target:    decimal.NewFromFloat(sig.Target),
		Quantity:  sizing.Quantity,
		EntryTime: sig.GeneratedAt,
		Status:    StatusOpen,
	}
	m.open[t.ID] = t
	m.tradesToday++

	m.logger.Info("trade opened",
		zap.String("trade_id", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("direction", string(t.Direction)),
		zap.Int64("quantity", t.Quantity),
		zap.String("entry", t.Entry.StringFixed(2)),
		zap.Int("trades_today", m.tradesToday),
	)
	return t
}

// CloseTrade realizes P&L, updates capital and the consecutive-loss
// counter, and appends the now-immutable trade to the ledger.
func (m *Manager) CloseTrade(t *Trade, exitPrice decimal.Decimal, reason ExitReason, at time.Time) (Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Status != StatusOpen {
		return Trade{}, fmt.Errorf("trade %s already %s", t.ID, t.Status)
	}
	if _, ok := m.open[t.ID]; !ok {
		return Trade{}, fmt.Errorf("trade %s not held open here", t.ID)
	}

	t.ExitPrice = exitPrice
	t.ExitTime = at
	t.ExitReason = reason
	t.PnL = exitPrice.Sub(t.Entry).Mul(decimal.NewFromInt(t.Quantity)).Mul(t.directionSign())
	t.Status = StatusClosed

	m.capital = m.capital.Add(t.PnL)
	if t.PnL.IsPositive() {
		m.consecutiveLosses = 0
	} else {
		m.consecutiveLosses++
	}

	delete(m.open, t.ID)
	closed := *t
	m.ledger.Append(closed)
	m.dayClosed = append(m.dayClosed, closed)

	outcome := "LOSS"
	if t.PnL.IsPositive() {
		outcome = "WIN"
	}
	m.logger.Info("trade closed",
		zap.String("trade_id", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("outcome", outcome),
		zap.String("reason", string(reason)),
		zap.String("pnl", t.PnL.StringFixed(2)),
		zap.Int("consecutive_losses", m.consecutiveLosses),
	)
	return closed, nil
}

// Summary derives the current day's statistics from closed trades.
func (m *Manager) Summary() DailySummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := DailySummary{Date: m.day, TotalPnL: decimal.Zero, AvgPnL: decimal.Zero}
	for _, t := range m.dayClosed {
		s.Trades++
		if t.PnL.IsPositive() {
			s.Wins++
		} else {
			s.Losses++
		}
		s.TotalPnL = s.TotalPnL.Add(t.PnL)
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
		s.AvgPnL = s.TotalPnL.Div(decimal.NewFromInt(int64(s.Trades)))
	}
	return s
}

func (m *Manager) Capital() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capital
}

// SetCapital overrides the capital snapshot, used when compounding is
// disabled between days.
func (m *Manager) SetCapital(c decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capital = c
}

func (m *Manager) Ledger() *Ledger { return m.ledger }

func (m *Manager) ConsecutiveLosses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveLosses
}

func (m *Manager) TradesToday() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tradesToday
}
