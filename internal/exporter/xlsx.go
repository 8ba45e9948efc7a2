package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// Sheet names of the workbook produced by WriteXLSX.
const (
	DetailSheet  = "Simulation"
	SummarySheet = "Summary"
)

const (
	moneyFormat  = "#,##0.00"
	sharesFormat = "0.0000"
)

// WriteXLSX writes a workbook with one row per record and a summary sheet.
func WriteXLSX(w io.Writer, ticker string, records dca.SimulationResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DetailSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := writeDetail(f, records, styles); err != nil {
		return err
	}
	if err := writeSummary(f, ticker, records, styles); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type xlsxStyles struct {
	header, money, shares int
}

func newStyles(f *excelize.File) (xlsxStyles, error) {
	var s xlsxStyles
	var err error

	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	money := moneyFormat
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &money}); err != nil {
		return s, fmt.Errorf("failed to create money style: %w", err)
	}
	shares := sharesFormat
	if s.shares, err = f.NewStyle(&excelize.Style{CustomNumFmt: &shares}); err != nil {
		return s, fmt.Errorf("failed to create shares style: %w", err)
	}
	return s, nil
}

func writeDetail(f *excelize.File, records dca.SimulationResult, styles xlsxStyles) error {
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(DetailSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(DetailSheet, "A1", "H1", styles.header); err != nil {
		return err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.Date.Format(dca.DateLayout),
			r.Price,
			r.SharesBought,
			r.TotalShares,
			r.TotalInvested,
			r.CurrentValue,
			r.Profit,
			r.ProfitPercentage,
		}
		if err := f.SetSheetRow(DetailSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if last := len(records) + 1; last > 1 {
		for _, span := range []struct {
			from, to string
			style    int
		}{
			{"B", "B", styles.money},
			{"C", "D", styles.shares},
			{"E", "H", styles.money},
		} {
			if err := f.SetCellStyle(DetailSheet, fmt.Sprintf("%s2", span.from), fmt.Sprintf("%s%d", span.to, last), span.style); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(DetailSheet, "A", "H", 16)
}

func writeSummary(f *excelize.File, ticker string, records dca.SimulationResult, styles xlsxStyles) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	last, _ := records.Last()
	rows := [][]interface{}{
		{"Ticker", ticker},
		{"Purchases", len(records)},
		{"Total invested", last.TotalInvested},
		{"Final value", last.CurrentValue},
		{"Profit", last.Profit},
		{"Profit %", last.ProfitPercentage},
	}
	for i := range rows {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := f.SetCellStyle(SummarySheet, "A1", "A6", styles.header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "B3", "B6", styles.money); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "B", 18)
}
