// Package main runs a historical backtest of the screening pipeline
// from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"intraday-screener/services/backtest"
	"intraday-screener/services/config"
	"intraday-screener/services/export"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/news"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	start := flag.String("start", "", "start date YYYY-MM-DD")
	end := flag.String("end", "", "end date YYYY-MM-DD")
	capital := flag.Float64("capital", 100000, "initial capital")
	seed := flag.Int64("seed", 42, "exit simulation seed")
	outJSON := flag.String("out", "backtest_result.json", "result JSON path")
	outTrades := flag.String("trades-arrow", "", "optional Arrow IPC path for the trade ledger")
	outEquity := flag.String("equity-arrow", "", "optional Arrow IPC path for the equity curve")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("bad -start: %v", err)
	}
	endDate, err := time.Parse("2006-01-02", *end)
	if err != nil {
		log.Fatalf("bad -end: %v", err)
	}
	if endDate.Before(startDate) {
		log.Fatal("-end before -start")
	}
	if *capital <= 0 {
		log.Fatal("-capital must be positive")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store := marketdata.NewCSVStore(cfg.Data.CSVDir, logger)
	universe, err := store.Symbols()
	if err != nil {
		logger.Fatal("universe discovery failed", zap.Error(err))
	}

	engine := backtest.NewEngine(store, news.NewStaticProvider(), universe, cfg, logger)
	result, err := engine.Run(ctx, startDate, endDate, decimal.NewFromFloat(*capital), *seed)
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}

	if err := export.WriteResultJSON(*outJSON, result); err != nil {
		logger.Fatal("write result", zap.Error(err))
	}
	if *outTrades != "" {
		if err := writeArrow(*outTrades, func(f *os.File) error {
			return export.WriteTradesArrow(f, result.Trades)
		}); err != nil {
			logger.Fatal("write trades arrow", zap.Error(err))
		}
	}
	if *outEquity != "" {
		if err := writeArrow(*outEquity, func(f *os.File) error {
			return export.WriteEquityArrow(f, result.Days)
		}); err != nil {
			logger.Fatal("write equity arrow", zap.Error(err))
		}
	}

	m := result.Metrics
	fmt.Printf("Backtest %s -> %s (job %s)\n", result.Manifest.Start, result.Manifest.End, result.Manifest.JobID)
	fmt.Printf("  trading days:   %d\n", len(result.Days))
	fmt.Printf("  trades:         %d (%d wins / %d losses)\n", m.TotalTrades, m.Wins, m.Losses)
	fmt.Printf("  win rate:       %.1f%%\n", m.WinRate)
	fmt.Printf("  total pnl:      %s\n", m.TotalPnL.StringFixed(2))
	fmt.Printf("  max drawdown:   %s\n", m.MaxDrawdown.StringFixed(2))
	fmt.Printf("  sharpe (ann.):  %.2f\n", m.Sharpe)
	fmt.Printf("  final capital:  %s\n", result.FinalCapital.StringFixed(2))
	fmt.Printf("  result written: %s\n", *outJSON)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func writeArrow(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}
