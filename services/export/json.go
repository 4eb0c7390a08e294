package export

import (
	"encoding/json"
	"fmt"
	"os"

	"intraday-screener/services/backtest"
)

// WriteResultJSON writes the full backtest result to path, indented.
func WriteResultJSON(path string, result *backtest.Result) error {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
