package client

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"github.com/0rShemesh/InvestGraph/internal/dca"
)

// Currency of every amount the server reports.
const Currency = money.USD

// Markdown renders s as a markdown document.
func Markdown(s State) string {
	var b strings.Builder
	switch s := s.(type) {
	case Idle:
		b.WriteString("Enter a ticker and an amount to start a simulation.\n")
	case Loading:
		b.WriteString("Calculating...\n")
	case Failed:
		fmt.Fprintf(&b, "> **Error:** %s\n", s.Err)
	case Succeeded:
		writeResult(&b, s)
	}
	return b.String()
}

// Render renders s for a terminal through glamour. Style is a glamour
// standard style name such as "dark" or "notty"; empty picks one from the
// terminal.
func Render(s State, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	return r.Render(Markdown(s))
}

func writeResult(b *strings.Builder, s Succeeded) {
	fmt.Fprintf(b, "# %s dollar-cost averaging\n\n", s.Ticker)

	last, ok := s.Records.Last()
	if !ok {
		b.WriteString("No purchases in the selected window.\n")
		return
	}

	fmt.Fprintf(b, "- **Purchases:** %d\n", len(s.Records))
	fmt.Fprintf(b, "- **Total invested:** %s\n", formatMoney(last.TotalInvested))
	fmt.Fprintf(b, "- **Current value:** %s\n", formatMoney(last.CurrentValue))
	fmt.Fprintf(b, "- **Profit:** %s (%s)\n\n", signedMoney(last.Profit), signedPercent(last.ProfitPercentage))

	b.WriteString("| Date | Price | Shares Bought | Total Shares | Invested | Value | Profit | Profit % |\n")
	b.WriteString("|:---|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, r := range s.Records {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			r.Date.Format(dca.DateLayout),
			formatMoney(r.Price),
			formatShares(r.SharesBought),
			formatShares(r.TotalShares),
			formatMoney(r.TotalInvested),
			formatMoney(r.CurrentValue),
			signedMoney(r.Profit),
			signedPercent(r.ProfitPercentage),
		)
	}
}

func toMoney(v float64) *money.Money {
	cur := money.GetCurrency(Currency)
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), Currency)
}

func formatMoney(v float64) string {
	return toMoney(v).Display()
}

func signedMoney(v float64) string {
	m := toMoney(v)
	if m.IsPositive() {
		return "+" + m.Display()
	}
	return m.Display()
}

func formatShares(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}

func signedPercent(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}
