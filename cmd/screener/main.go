// Package main runs the pre-market screen, live filter and signal
// generation for a single date and prints the survivors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"intraday-screener/services/backtest"
	"intraday-screener/services/config"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/news"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dateStr := flag.String("date", "", "trading date YYYY-MM-DD")
	withSignals := flag.Bool("signals", true, "run signal generation on final candidates")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	date, err := time.Parse("2006-01-02", *dateStr)
	if err != nil {
		log.Fatalf("bad -date: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	var logger *zap.Logger
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
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

	candidates, err := engine.RunScreening(ctx, date)
	if err != nil {
		logger.Fatal("screening failed", zap.Error(err))
	}
	fmt.Printf("Pre-market candidates for %s (%d):\n", *dateStr, len(candidates))
	for _, c := range candidates {
		fmt.Printf("  %-12s gap %+.2f%%  avg vol %.0f  score %.1f\n",
			c.Symbol, c.GapPct, c.AvgVolume, c.Score)
	}

	final, err := engine.RunFiltering(ctx, candidates, date)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	fmt.Printf("Final candidates (%d):\n", len(final))
	for _, c := range final {
		fmt.Printf("  %-12s %s  vol x%.2f  range %.2f%%  level %s  score %.1f\n",
			c.Symbol, c.Bias, c.VolumeRatio, c.RangePct, orDash(c.NearLevel), c.Score)
	}

	if !*withSignals {
		return
	}
	sigs, err := engine.GenerateSignals(ctx, final, date)
	if err != nil {
		logger.Fatal("signal generation failed", zap.Error(err))
	}
	fmt.Printf("Signals (%d):\n", len(sigs))
	for _, s := range sigs {
		fmt.Printf("  %-12s %-4s entry %.2f stop %.2f target %.2f [%s] score %.1f\n",
			s.Symbol, s.Direction, s.Entry, s.StopLoss, s.Target, s.Pattern, s.Score)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
