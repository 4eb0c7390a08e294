package marketdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVStore serves series from a directory of per-symbol CSV files:
// <dir>/daily/<SYMBOL>.csv and <dir>/intraday/<SYMBOL>.csv.
// Expected columns: timestamp,open,high,low,close,volume with a header
// row. Timestamps are RFC3339 or unix milliseconds.
type CSVStore struct {
	dir    string
	logger *zap.Logger

	daily    map[string][]Bar
	intraday map[string][]Bar
}

func NewCSVStore(dir string, logger *zap.Logger) *CSVStore {
	return &CSVStore{
		dir:      dir,
		logger:   logger,
		daily:    make(map[string][]Bar),
		intraday: make(map[string][]Bar),
	}
}

func (s *CSVStore) DailySeries(_ context.Context, symbol string) ([]Bar, error) {
	bars, err := s.load(s.daily, "daily", symbol)
	if err != nil {
		return nil, err
	}
	return bars, nil
}

func (s *CSVStore) IntradaySeries(_ context.Context, symbol string, date time.Time) ([]Bar, error) {
	all, err := s.load(s.intraday, "intraday", symbol)
	if err != nil {
		return nil, err
	}
	bars := BarsOnDay(all, date)
	if len(bars) == 0 {
		return nil, fmt.Errorf("intraday %s %s: %w", symbol, date.Format("2006-01-02"), ErrSeriesUnavailable)
	}
	return bars, nil
}

// Symbols lists the symbols present under the daily directory.
func (s *CSVStore) Symbols() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "daily"))
	if err != nil {
		return nil, fmt.Errorf("list daily dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".csv"))
	}
	return out, nil
}

func (s *CSVStore) load(cache map[string][]Bar, kind, symbol string) ([]Bar, error) {
	if bars, ok := cache[symbol]; ok {
		if len(bars) == 0 {
			return nil, fmt.Errorf("%s %s: %w", kind, symbol, ErrSeriesUnavailable)
		}
		return bars, nil
	}
	path := filepath.Join(s.dir, kind, symbol+".csv")
	bars, err := LoadBarsCSV(path)
	if err != nil {
		cache[symbol] = nil
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s %s: %w", kind, symbol, ErrSeriesUnavailable)
		}
		return nil, fmt.Errorf("%s %s: %w", kind, symbol, err)
	}
	s.validate(symbol, bars)
	cache[symbol] = bars
	return bars, nil
}

// validate runs soft data-quality checks. Problems are logged, never
// fatal; bad files simply screen out downstream.
func (s *CSVStore) validate(symbol string, bars []Bar) {
	if err := ValidateBars(bars); err != nil {
		s.logger.Warn("data quality check failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}
	s.logger.Debug("loaded series",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
	)
}

// LoadBarsCSV parses one bar file. Handles UTF-16 files (BOM sniff) and
// UTF-8 BOM prefixes; duplicate timestamps are dropped keeping the last
// occurrence and output is sorted ascending.
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	br := bufio.NewReader(f)
	head, _ := br.Peek(2)
	if len(head) >= 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		f.Seek(0, 0)
		reader = transform.NewReader(f, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	} else {
		reader = br
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++
		if len(rec) < 6 {
			continue
		}
		rec[0] = strings.TrimPrefix(rec[0], "\uFEFF")
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return nil, fmt.Errorf("%s line %d: bad timestamp %q", path, line, rec[0])
		}
		open, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		low, err3 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		closep, err4 := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		vol, err5 := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return nil, fmt.Errorf("%s line %d: bad numeric field", path, line)
		}
		bars = append(bars, Bar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closep,
			Volume:    vol,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}
	return SortDedup(bars), nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
