// Package api defines the HTTP request/response surface and its error
// taxonomy.
package api

import (
	"errors"

	"intraday-screener/services/backtest"
	"intraday-screener/services/config"
	"intraday-screener/services/marketdata"
	"intraday-screener/services/screener"
	"intraday-screener/services/signals"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

var (
	ErrInvalidParams   = APIError{Code: "INVALID_PARAMS", Message: "Invalid parameters provided"}
	ErrDataNotFound    = APIError{Code: "DATA_NOT_FOUND", Message: "Required data not available"}
	ErrConfigInvalid   = APIError{Code: "CONFIG_INVALID", Message: "Configuration rejected"}
	ErrExecutionFailed = APIError{Code: "EXECUTION_FAILED", Message: "Pipeline execution failed"}
)

// Classify maps internal errors onto the wire taxonomy.
func Classify(err error) APIError {
	var cfgErr *config.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		out := ErrConfigInvalid
		out.Details = err.Error()
		return out
	case errors.Is(err, marketdata.ErrSeriesUnavailable):
		out := ErrDataNotFound
		out.Details = err.Error()
		return out
	default:
		out := ErrExecutionFailed
		out.Details = err.Error()
		return out
	}
}

type ScreenRequest struct {
	Date     string   `json:"date"` // YYYY-MM-DD
	Universe []string `json:"universe,omitempty"`
}

type ScreenResponse struct {
	Date       string               `json:"date"`
	IndexTrend string               `json:"index_trend,omitempty"`
	Candidates []screener.Candidate `json:"candidates"`
	Error      *APIError            `json:"error,omitempty"`
}

type FilterRequest struct {
	Date       string               `json:"date"`
	Candidates []screener.Candidate `json:"candidates"`
}

type FilterResponse struct {
	Date       string               `json:"date"`
	Candidates []screener.Candidate `json:"candidates"`
	Error      *APIError            `json:"error,omitempty"`
}

type SignalsRequest struct {
	Date       string               `json:"date"`
	Candidates []screener.Candidate `json:"candidates"`
}

type SignalsResponse struct {
	Date    string            `json:"date"`
	Signals []*signals.Signal `json:"signals"`
	Error   *APIError         `json:"error,omitempty"`
}

type BacktestRequest struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	InitialCapital float64 `json:"initial_capital"`
	Seed           int64   `json:"seed"`
}

type BacktestResponse struct {
	JobID  string           `json:"job_id"`
	Result *backtest.Result `json:"result,omitempty"`
	Error  *APIError        `json:"error,omitempty"`
}
