// Package exporter turns simulation results into downloadable artifacts.
//
// WriteCSV and StreamWriter produce CSV with fixed decimal places (2 for
// currency, 4 for shares). WriteXLSX builds an excelize workbook with a
// detail sheet and a summary sheet. RenderChartPNG draws current value
// against total invested.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := exporter.WriteCSV(&buf, result, exporter.CSVOptions{BOMPrefix: true}); err != nil {
//		return err
//	}
//
//	png, err := exporter.RenderChartPNG("AAPL", result)
package exporter
