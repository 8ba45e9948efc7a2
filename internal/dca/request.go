package dca

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// DefaultMaxMonths bounds the simulation horizon.
const DefaultMaxMonths = 1200

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]{1,15}$`)

// RawRequest is the typed decode of the calculation body.
type RawRequest struct {
	Ticker            string  `json:"ticker"`
	MonthlyInvestment float64 `json:"monthlyInvestment"`
	StartDay          int     `json:"startDay"`
	NumMonths         int     `json:"numMonths"`
}

// InvestmentRequest is a validated, normalized request. The zero value is not
// valid; use Validate.
type InvestmentRequest struct {
	ticker    string
	monthly   float64
	startDay  int
	numMonths int
}

func (r InvestmentRequest) Ticker() string             { return r.ticker }
func (r InvestmentRequest) MonthlyInvestment() float64 { return r.monthly }
func (r InvestmentRequest) StartDay() int              { return r.startDay }
func (r InvestmentRequest) NumMonths() int             { return r.numMonths }

// Validate checks every field of raw and returns either a normalized request
// or a single InvalidInput error listing all offending fields.
func Validate(raw RawRequest, maxMonths int) (InvestmentRequest, error) {
	if maxMonths <= 0 {
		maxMonths = DefaultMaxMonths
	}

	var fields []FieldError
	ticker := strings.ToUpper(strings.TrimSpace(raw.Ticker))
	switch {
	case ticker == "":
		fields = append(fields, FieldError{Field: "ticker", Message: "ticker is required"})
	case !tickerPattern.MatchString(ticker):
		fields = append(fields, FieldError{Field: "ticker", Message: fmt.Sprintf("ticker %q is not a valid symbol", ticker)})
	}

	if math.IsNaN(raw.MonthlyInvestment) || math.IsInf(raw.MonthlyInvestment, 0) || raw.MonthlyInvestment <= 0 {
		fields = append(fields, FieldError{Field: "monthlyInvestment", Message: "monthlyInvestment must be positive"})
	}

	if raw.StartDay < 1 || raw.StartDay > 31 {
		fields = append(fields, FieldError{Field: "startDay", Message: "startDay must be between 1 and 31"})
	}

	switch {
	case raw.NumMonths <= 0:
		fields = append(fields, FieldError{Field: "numMonths", Message: "numMonths must be positive"})
	case raw.NumMonths > maxMonths:
		fields = append(fields, FieldError{Field: "numMonths", Message: fmt.Sprintf("numMonths must not exceed %d", maxMonths)})
	}

	if len(fields) > 0 {
		return InvestmentRequest{}, NewInvalidInput(fields)
	}

	return InvestmentRequest{
		ticker:    ticker,
		monthly:   raw.MonthlyInvestment,
		startDay:  raw.StartDay,
		numMonths: raw.NumMonths,
	}, nil
}
