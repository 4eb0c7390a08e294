// Package main serves the screening and backtesting pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"intraday-screener/services/api"
	"intraday-screener/services/backtest"
	"intraday-screener/services/config"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/news"
)

// PipelineService wires the stores and pipeline behind the HTTP routes.
type PipelineService struct {
	engine   *backtest.Engine
	cfg      *config.Config
	logger   *zap.Logger
	universe []string
}

func NewPipelineService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*PipelineService, error) {
	var (
		store    marketdata.Store
		universe []string
		err      error
	)
	switch cfg.Data.Source {
	case "clickhouse":
		ch, cerr := marketdata.NewClickHouseStore(ctx, cfg.Data.ClickHouse, logger)
		if cerr != nil {
			return nil, cerr
		}
		store = ch
		universe, err = ch.Symbols(ctx)
	default:
		csv := marketdata.NewCSVStore(cfg.Data.CSVDir, logger)
		store = csv
		universe, err = csv.Symbols()
	}
	if err != nil {
		return nil, err
	}

	engine := backtest.NewEngine(store, news.NewStaticProvider(), universe, cfg, logger)
	return &PipelineService{
		engine:   engine,
		cfg:      cfg,
		logger:   logger,
		universe: universe,
	}, nil
}

func (s *PipelineService) setupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/screen", s.handleScreen)
		v1.POST("/filter", s.handleFilter)
		v1.POST("/signals", s.handleSignals)
		v1.POST("/backtest", s.handleBacktest)
		v1.GET("/health", s.handleHealth)
	}
}

func (s *PipelineService) handleScreen(c *gin.Context) {
	var req api.ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}

	candidates, err := s.engine.RunScreening(c.Request.Context(), date)
	if err != nil {
		apiErr := api.Classify(err)
		c.JSON(http.StatusInternalServerError, api.ScreenResponse{Date: req.Date, Error: &apiErr})
		return
	}
	c.JSON(http.StatusOK, api.ScreenResponse{Date: req.Date, Candidates: candidates})
}

func (s *PipelineService) handleFilter(c *gin.Context) {
	var req api.FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}

	filtered, err := s.engine.RunFiltering(c.Request.Context(), req.Candidates, date)
	if err != nil {
		apiErr := api.Classify(err)
		c.JSON(http.StatusInternalServerError, api.FilterResponse{Date: req.Date, Error: &apiErr})
		return
	}
	c.JSON(http.StatusOK, api.FilterResponse{Date: req.Date, Candidates: filtered})
}

func (s *PipelineService) handleSignals(c *gin.Context) {
	var req api.SignalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}

	sigs, err := s.engine.GenerateSignals(c.Request.Context(), req.Candidates, date)
	if err != nil {
		apiErr := api.Classify(err)
		c.JSON(http.StatusInternalServerError, api.SignalsResponse{Date: req.Date, Error: &apiErr})
		return
	}
	c.JSON(http.StatusOK, api.SignalsResponse{Date: req.Date, Signals: sigs})
}

func (s *PipelineService) handleBacktest(c *gin.Context) {
	var req api.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}
	start, err1 := time.Parse("2006-01-02", req.Start)
	end, err2 := time.Parse("2006-01-02", req.End)
	if err1 != nil || err2 != nil || end.Before(start) || req.InitialCapital <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": api.ErrInvalidParams})
		return
	}

	started := time.Now()
	result, err := s.engine.Run(c.Request.Context(), start, end, decimal.NewFromFloat(req.InitialCapital), req.Seed)
	if err != nil {
		apiErr := api.Classify(err)
		c.JSON(http.StatusInternalServerError, api.BacktestResponse{Error: &apiErr})
		return
	}
	s.logger.Info("backtest served",
		zap.String("job_id", result.Manifest.JobID),
		zap.Duration("elapsed", time.Since(started)),
	)
	c.JSON(http.StatusOK, api.BacktestResponse{JobID: result.Manifest.JobID, Result: result})
}

func (s *PipelineService) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"universe":  len(s.universe),
	})
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting screener service",
		zap.String("listen", cfg.Server.ListenAddr),
		zap.String("data_source", cfg.Data.Source),
		zap.String("config_hash", cfg.Snapshot()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := NewPipelineService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("service init failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	service.setupRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
