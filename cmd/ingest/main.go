// Package main loads per-symbol candle CSVs into the ClickHouse candle
// store used by the screener and backtester.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"intraday-screener/services/config"
	"intraday-screener/services/marketdata"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dir := flag.String("dir", "", "directory of <SYMBOL>.csv files")
	interval := flag.String("interval", "1d", "bar interval to tag rows with (1d or 5m)")
	flag.Parse()

	if *dir == "" {
		log.Fatal("-dir is required")
	}
	if *interval != "1d" && *interval != "5m" {
		log.Fatalf("unsupported interval %q", *interval)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	ch := cfg.Data.ClickHouse

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{ch.Addr},
		Auth: clickhouse.Auth{
			Database: ch.Database,
			Username: ch.Username,
			Password: ch.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		logger.Fatal("clickhouse open", zap.Error(err))
	}
	defer conn.Close()
	if err := conn.Ping(ctx); err != nil {
		logger.Fatal("clickhouse ping", zap.Error(err))
	}

	if err := ensureSchema(ctx, conn, ch); err != nil {
		logger.Fatal("schema bootstrap", zap.Error(err))
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.csv"))
	if err != nil {
		logger.Fatal("glob", zap.Error(err))
	}
	if len(files) == 0 {
		logger.Fatal("no csv files found", zap.String("dir", *dir))
	}

	var total uint64
	for _, file := range files {
		symbol := strings.TrimSuffix(filepath.Base(file), ".csv")
		n, err := ingestFile(ctx, conn, ch, file, symbol, *interval)
		if err != nil {
			logger.Error("ingest failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}
		total += n
		logger.Info("ingested",
			zap.String("symbol", symbol),
			zap.String("interval", *interval),
			zap.Uint64("rows", n),
		)
	}
	logger.Info("ingest complete",
		zap.Int("files", len(files)),
		zap.Uint64("rows", total),
	)
}

func ensureSchema(ctx context.Context, conn clickhouse.Conn, ch marketdata.ClickHouseConfig) error {
	if err := conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, ch.Database)); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.%s (
            symbol      LowCardinality(String),
            interval    LowCardinality(String),
            ts_ms       UInt64,
            open        Float64,
            high        Float64,
            low         Float64,
            close       Float64,
            volume      Float64,
            ingested_at DateTime64(3) DEFAULT now64(3),
            version     UInt64
        )
        ENGINE = ReplacingMergeTree(version)
        ORDER BY (symbol, interval, ts_ms)
    `, ch.Database, ch.Table)
	if err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func ingestFile(ctx context.Context, conn clickhouse.Conn, ch marketdata.ClickHouseConfig, path, symbol, interval string) (uint64, error) {
	bars, err := marketdata.LoadBarsCSV(path)
	if err != nil {
		return 0, err
	}

	batch, err := conn.PrepareBatch(ctx, fmt.Sprintf(
		`INSERT INTO %s.%s (symbol, interval, ts_ms, open, high, low, close, volume, ingested_at, version) SETTINGS insert_deduplicate=1`,
		ch.Database, ch.Table))
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	ver := uint64(now.UnixNano())
	var rows uint64
	for _, b := range bars {
		if err := batch.Append(
			symbol, interval,
			uint64(b.Timestamp.UnixMilli()),
			b.Open, b.High, b.Low, b.Close,
			b.Volume,
			now,
			ver,
		); err != nil {
			return rows, fmt.Errorf("batch append: %w", err)
		}
		rows++
	}
	if err := batch.Send(); err != nil {
		return rows, fmt.Errorf("batch send: %w", err)
	}
	return rows, nil
}
