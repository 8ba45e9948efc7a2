package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// Headers is the CSV header row, matching the JSON member names.
var Headers = []string{
	"date",
	"price",
	"shares_bought",
	"total_shares",
	"total_invested",
	"current_value",
	"profit",
	"profit_percentage",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures CSV writing behavior
type CSVOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes the header row and one row per record.
func WriteCSV(w io.Writer, records dca.SimulationResult, opts CSVOptions) error {
	sw, err := NewStreamWriter(w, opts)
	if err != nil {
		return err
	}
	for i, r := range records {
		if err := sw.WriteRecord(r); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return sw.Flush()
}

// StreamWriter writes records as they become available.
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter writes the optional BOM and the header row.
func NewStreamWriter(w io.Writer, opts CSVOptions) (*StreamWriter, error) {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(r dca.PeriodRecord) error {
	return s.writer.Write(row(r))
}

// Flush flushes buffered rows and reports any write error.
func (s *StreamWriter) Flush() error {
	s.writer.Flush()
	return s.writer.Error()
}

func row(r dca.PeriodRecord) []string {
	return []string{
		r.Date.Format(dca.DateLayout),
		formatMoney(r.Price),
		formatShares(r.SharesBought),
		formatShares(r.TotalShares),
		formatMoney(r.TotalInvested),
		formatMoney(r.CurrentValue),
		formatMoney(r.Profit),
		formatPercent(r.ProfitPercentage),
	}
}
