package dca

import (
	"math"
	"time"
)

// Step is one accumulated purchase in the running trajectory.
type Step struct {
	Date             time.Time
	Price            float64
	SharesBought     float64
	TotalShares      float64
	TotalInvested    float64
	CurrentValue     float64
	Profit           float64
	ProfitPercentage float64
}

// Fold accumulates purchases of a fixed monthly amount over prices in
// chronological order. It never returns a partial trajectory.
func Fold(monthly float64, prices []PricePoint) ([]Step, error) {
	if math.IsNaN(monthly) || math.IsInf(monthly, 0) || monthly <= 0 {
		return nil, newError(KindInternal, nil, "monthly investment must be positive, got %v", monthly)
	}

	steps := make([]Step, 0, len(prices))
	var totalShares float64
	for i, p := range prices {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return nil, newError(KindInternal, nil, "invalid close %v on %s", p.Close, p.Date.Format(DateLayout))
		}
		if i > 0 && !p.Date.After(prices[i-1].Date) {
			return nil, newError(KindInternal, nil, "prices out of order at %s", p.Date.Format(DateLayout))
		}

		bought := monthly / p.Close
		totalShares += bought
		// Closed form keeps the invested total exact however long the horizon.
		invested := monthly * float64(i+1)
		value := totalShares * p.Close
		profit := value - invested

		steps = append(steps, Step{
			Date:             p.Date,
			Price:            p.Close,
			SharesBought:     bought,
			TotalShares:      totalShares,
			TotalInvested:    invested,
			CurrentValue:     value,
			Profit:           profit,
			ProfitPercentage: profit / invested * 100,
		})
	}
	return steps, nil
}
