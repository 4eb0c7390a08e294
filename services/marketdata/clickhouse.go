package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

// ClickHouseConfig carries the connection settings for the candle store.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// ClickHouseStore serves series from a candles table with layout
// (symbol, interval, ts_ms, open, high, low, close, volume, version)
// ENGINE ReplacingMergeTree(version). Daily bars use interval '1d',
// intraday bars '5m'.
type ClickHouseStore struct {
	conn   clickhouse.Conn
	cfg    ClickHouseConfig
	logger *zap.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig, logger *zap.Logger) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseStore{conn: conn, cfg: cfg, logger: logger}, nil
}

func (s *ClickHouseStore) Close() error { return s.conn.Close() }

func (s *ClickHouseStore) DailySeries(ctx context.Context, symbol string) ([]Bar, error) {
	return s.query(ctx, symbol, "1d", 0, 0)
}

func (s *ClickHouseStore) IntradaySeries(ctx context.Context, symbol string, date time.Time) ([]Bar, error) {
	y, m, d := date.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	return s.query(ctx, symbol, "5m", from.UnixMilli(), to.UnixMilli())
}

func (s *ClickHouseStore) query(ctx context.Context, symbol, interval string, fromMs, toMs int64) ([]Bar, error) {
	q := fmt.Sprintf(`
        SELECT ts_ms, open, high, low, close, volume
        FROM %s.%s FINAL
        WHERE symbol = ? AND interval = ?`, s.cfg.Database, s.cfg.Table)
	args := []any{symbol, interval}
	if toMs > 0 {
		q += " AND ts_ms >= ? AND ts_ms < ?"
		args = append(args, uint64(fromMs), uint64(toMs))
	}
	q += " ORDER BY ts_ms"

	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query %s/%s: %w", symbol, interval, err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var tsMs uint64
		var open, high, low, closep, vol float64
		if err := rows.Scan(&tsMs, &open, &high, &low, &closep, &vol); err != nil {
			return nil, fmt.Errorf("clickhouse scan: %w", err)
		}
		bars = append(bars, Bar{
			Timestamp: time.UnixMilli(int64(tsMs)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closep,
			Volume:    vol,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, interval, ErrSeriesUnavailable)
	}
	return bars, nil
}

// Symbols lists the distinct symbols with daily candles.
func (s *ClickHouseStore) Symbols(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT symbol FROM %s.%s WHERE interval = '1d' ORDER BY symbol`,
		s.cfg.Database, s.cfg.Table)
	rows, err := s.conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("clickhouse symbols: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}
