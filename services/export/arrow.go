// Package export serializes backtest results: the closed-trade ledger
// and equity curve as Arrow IPC for columnar consumers, and the full
// result as JSON for the CLI.
package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"intraday-screener/services/backtest"
	"intraday-screener/services/risk"
)

// TradeSchema is the Arrow layout of one closed trade per row.
var TradeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "trade_id", Type: arrow.BinaryTypes.String},
	{Name: "symbol", Type: arrow.BinaryTypes.String},
	{Name: "direction", Type: arrow.BinaryTypes.String},
	{Name: "entry_ts", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "exit_ts", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "entry", Type: arrow.PrimitiveTypes.Float64},
	{Name: "exit", Type: arrow.PrimitiveTypes.Float64},
	{Name: "stop_loss", Type: arrow.PrimitiveTypes.Float64},
	{Name: "target", Type: arrow.PrimitiveTypes.Float64},
	{Name: "quantity", Type: arrow.PrimitiveTypes.Int64},
	{Name: "pnl", Type: arrow.PrimitiveTypes.Float64},
	{Name: "exit_reason", Type: arrow.BinaryTypes.String},
}, nil)

// EquitySchema is the Arrow layout of the per-day capital curve.
var EquitySchema = arrow.NewSchema([]arrow.Field{
	{Name: "date", Type: arrow.BinaryTypes.String},
	{Name: "pnl", Type: arrow.PrimitiveTypes.Float64},
	{Name: "capital_close", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// WriteTradesArrow streams the ledger as one Arrow IPC record batch.
func WriteTradesArrow(w io.Writer, trades []risk.Trade) error {
	pool := memory.NewGoAllocator()

	ids := array.NewStringBuilder(pool)
	symbols := array.NewStringBuilder(pool)
	directions := array.NewStringBuilder(pool)
	entryTs := array.NewUint64Builder(pool)
	exitTs := array.NewUint64Builder(pool)
	entries := array.NewFloat64Builder(pool)
	exits := array.NewFloat64Builder(pool)
	stops := array.NewFloat64Builder(pool)
	targets := array.NewFloat64Builder(pool)
	quantities := array.NewInt64Builder(pool)
	pnls := array.NewFloat64Builder(pool)
	reasons := array.NewStringBuilder(pool)

	for _, t := range trades {
		ids.Append(t.ID)
		symbols.Append(t.Symbol)
		directions.Append(string(t.Direction))
		entryTs.Append(uint64(t.EntryTime.UnixMilli()))
		exitTs.Append(uint64(t.ExitTime.UnixMilli()))
		entries.Append(t.Entry.InexactFloat64())
		exits.Append(t.ExitPrice.InexactFloat64())
		stops.Append(t.StopLoss.InexactFloat64())
		targets.Append(t.Target.InexactFloat64())
		quantities.Append(t.Quantity)
		pnls.Append(t.PnL.InexactFloat64())
		reasons.Append(string(t.ExitReason))
	}

	record := array.NewRecord(TradeSchema, []arrow.Array{
		ids.NewStringArray(),
		symbols.NewStringArray(),
		directions.NewStringArray(),
		entryTs.NewUint64Array(),
		exitTs.NewUint64Array(),
		entries.NewFloat64Array(),
		exits.NewFloat64Array(),
		stops.NewFloat64Array(),
		targets.NewFloat64Array(),
		quantities.NewInt64Array(),
		pnls.NewFloat64Array(),
		reasons.NewStringArray(),
	}, int64(len(trades)))
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(TradeSchema))
	defer writer.Close()
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("write trade record: %w", err)
	}
	return nil
}

// WriteEquityArrow streams the per-day P&L and closing capital curve.
func WriteEquityArrow(w io.Writer, days []backtest.DayResult) error {
	pool := memory.NewGoAllocator()

	dates := array.NewStringBuilder(pool)
	pnls := array.NewFloat64Builder(pool)
	capitals := array.NewFloat64Builder(pool)

	for _, d := range days {
		dates.Append(d.Date.Format("2006-01-02"))
		pnls.Append(d.PnL.InexactFloat64())
		capitals.Append(d.CapitalClose.InexactFloat64())
	}

	record := array.NewRecord(EquitySchema, []arrow.Array{
		dates.NewStringArray(),
		pnls.NewFloat64Array(),
		capitals.NewFloat64Array(),
	}, int64(len(days)))
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(EquitySchema))
	defer writer.Close()
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("write equity record: %w", err)
	}
	return nil
}
