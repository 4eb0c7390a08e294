package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSeriesUnavailable signals that a store has no usable series for the
// requested symbol/date. Callers degrade per symbol, never abort a stage.
var ErrSeriesUnavailable = errors.New("series unavailable")

// Store provides the pre-loaded price series the pipeline runs on.
type Store interface {
	// DailySeries returns the full daily history for symbol, oldest first.
	DailySeries(ctx context.Context, symbol string) ([]Bar, error)
	// IntradaySeries returns the intraday bars for symbol on the given
	// UTC calendar date, oldest first.
	IntradaySeries(ctx context.Context, symbol string, date time.Time) ([]Bar, error)
}

// MemoryStore holds series in memory. Used for backtests over fixture
// data and throughout the tests.
type MemoryStore struct {
	daily    map[string][]Bar
	intraday map[string][]Bar // all days concatenated, sliced per request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		daily:    make(map[string][]Bar),
		intraday: make(map[string][]Bar),
	}
}

func (m *MemoryStore) SetDaily(symbol string, bars []Bar) {
	m.daily[symbol] = SortDedup(bars)
}

func (m *MemoryStore) SetIntraday(symbol string, bars []Bar) {
	m.intraday[symbol] = SortDedup(bars)
}

func (m *MemoryStore) DailySeries(_ context.Context, symbol string) ([]Bar, error) {
	bars, ok := m.daily[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("daily %s: %w", symbol, ErrSeriesUnavailable)
	}
	return bars, nil
}

func (m *MemoryStore) IntradaySeries(_ context.Context, symbol string, date time.Time) ([]Bar, error) {
	bars := BarsOnDay(m.intraday[symbol], date)
	if len(bars) == 0 {
		return nil, fmt.Errorf("intraday %s %s: %w", symbol, date.Format("2006-01-02"), ErrSeriesUnavailable)
	}
	return bars, nil
}

// Symbols lists every symbol with daily history, for universe discovery.
func (m *MemoryStore) Symbols() []string {
	out := make([]string, 0, len(m.daily))
	for s := range m.daily {
		out = append(out, s)
	}
	return out
}
