package exporter

import (
	"errors"
	"fmt"
	"math"
	"strings"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// ErrNoRecords is returned when there is nothing to draw.
var ErrNoRecords = errors.New("no records to chart")

// Chart legend labels.
const (
	SeriesCurrentValue  = "Current value"
	SeriesTotalInvested = "Total invested"
)

// RenderChartPNG draws current value and total invested over time.
func RenderChartPNG(ticker string, records dca.SimulationResult) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	labels := make([]string, len(records))
	value := make([]float64, len(records))
	invested := make([]float64, len(records))
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, r := range records {
		labels[i] = r.Date.Format(dca.DateLayout)
		value[i] = r.CurrentValue
		invested[i] = r.TotalInvested
		yMin = math.Min(yMin, math.Min(r.CurrentValue, r.TotalInvested))
		yMax = math.Max(yMax, math.Max(r.CurrentValue, r.TotalInvested))
	}

	padding := (yMax - yMin) * 0.05
	if padding == 0 {
		padding = yMax * 0.05
	}
	yMin = math.Max(0, yMin-padding)
	yMax += padding

	split := 6
	if len(labels) <= 30 {
		split = max(len(labels)/3, 1)
	}

	title, subtitle := chartTitles(ticker, records[len(records)-1])

	p, err := charts.LineRender(
		[][]float64{value, invested},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: split,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{SeriesCurrentValue, SeriesTotalInvested},
			Left: charts.PositionRight,
		}),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// chartTitles stays ASCII: the bundled default font has no glyphs beyond it.
func chartTitles(ticker string, last dca.PeriodRecord) (string, string) {
	title := fmt.Sprintf("%s - monthly DCA", strings.ToUpper(ticker))
	subtitle := fmt.Sprintf("Invested %s | Value %s | Return %s%%",
		formatMoney(last.TotalInvested), formatMoney(last.CurrentValue), formatPercent(last.ProfitPercentage))
	return title, subtitle
}
