package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/0rShemesh/InvestGraph/internal/client"
	"github.com/0rShemesh/InvestGraph/internal/dca"
)

const defaultServer = "http://localhost:8080"

// requestFlags are shared by every command that runs a simulation.
type requestFlags struct {
	server  string
	ticker  string
	amount  float64
	day     int
	months  int
	verbose bool
}

func (f *requestFlags) register(fs *flag.FlagSet) {
	server := os.Getenv("INVESTGRAPH_SERVER")
	if server == "" {
		server = defaultServer
	}
	fs.StringVar(&f.server, "server", server, "Base URL of the calculation server (env INVESTGRAPH_SERVER)")
	fs.StringVar(&f.ticker, "ticker", "", "Ticker symbol, e.g. AAPL")
	fs.Float64Var(&f.amount, "amount", 0, "Amount invested every month")
	fs.IntVar(&f.day, "day", 1, "Day of the month to invest (1-31)")
	fs.IntVar(&f.months, "months", 12, "Number of monthly purchases")
	fs.BoolVar(&f.verbose, "v", false, "Log HTTP exchanges to stderr")
}

func (f *requestFlags) raw() dca.RawRequest {
	return dca.RawRequest{
		Ticker:            strings.TrimSpace(f.ticker),
		MonthlyInvestment: f.amount,
		StartDay:          f.day,
		NumMonths:         f.months,
	}
}

func (f *requestFlags) client(opts ...client.Option) *client.Client {
	var w io.Writer = io.Discard
	if f.verbose {
		w = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return client.New(f.server, append([]client.Option{client.WithLogger(logger)}, opts...)...)
}

// check catches obvious flag mistakes before a request is made.
func (f *requestFlags) check() error {
	if strings.TrimSpace(f.ticker) == "" {
		return fmt.Errorf("-ticker is required")
	}
	if f.amount <= 0 {
		return fmt.Errorf("-amount must be positive")
	}
	return nil
}
