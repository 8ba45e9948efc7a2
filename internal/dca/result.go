package dca

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format of PeriodRecord dates.
const DateLayout = "2006-01-02"

// PeriodRecord is the externally exposed snapshot of one purchase.
type PeriodRecord struct {
	Date             time.Time `json:"-"`
	Price            float64   `json:"price"`
	SharesBought     float64   `json:"shares_bought"`
	TotalShares      float64   `json:"total_shares"`
	TotalInvested    float64   `json:"total_invested"`
	CurrentValue     float64   `json:"current_value"`
	Profit           float64   `json:"profit"`
	ProfitPercentage float64   `json:"profit_percentage"`
}

// SimulationResult is the ordered record sequence of one calculation.
type SimulationResult []PeriodRecord

type periodRecordJSON struct {
	Date             string  `json:"date"`
	Price            float64 `json:"price"`
	SharesBought     float64 `json:"shares_bought"`
	TotalShares      float64 `json:"total_shares"`
	TotalInvested    float64 `json:"total_invested"`
	CurrentValue     float64 `json:"current_value"`
	Profit           float64 `json:"profit"`
	ProfitPercentage float64 `json:"profit_percentage"`
}

// MarshalJSON writes the record with a YYYY-MM-DD date.
func (r PeriodRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodRecordJSON{
		Date:             r.Date.Format(DateLayout),
		Price:            r.Price,
		SharesBought:     r.SharesBought,
		TotalShares:      r.TotalShares,
		TotalInvested:    r.TotalInvested,
		CurrentValue:     r.CurrentValue,
		Profit:           r.Profit,
		ProfitPercentage: r.ProfitPercentage,
	})
}

// UnmarshalJSON reads the wire shape back, used by API consumers.
func (r *PeriodRecord) UnmarshalJSON(data []byte) error {
	var raw periodRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return err
	}
	*r = PeriodRecord{
		Date:             d,
		Price:            raw.Price,
		SharesBought:     raw.SharesBought,
		TotalShares:      raw.TotalShares,
		TotalInvested:    raw.TotalInvested,
		CurrentValue:     raw.CurrentValue,
		Profit:           raw.Profit,
		ProfitPercentage: raw.ProfitPercentage,
	}
	return nil
}

// MarshalJSON always writes an array, never null.
func (s SimulationResult) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]PeriodRecord(s))
}

// Assemble converts the trajectory into records, keeping order and precision.
func Assemble(steps []Step) SimulationResult {
	out := make(SimulationResult, len(steps))
	for i, s := range steps {
		out[i] = PeriodRecord{
			Date:             Date(s.Date),
			Price:            s.Price,
			SharesBought:     s.SharesBought,
			TotalShares:      s.TotalShares,
			TotalInvested:    s.TotalInvested,
			CurrentValue:     s.CurrentValue,
			Profit:           s.Profit,
			ProfitPercentage: s.ProfitPercentage,
		}
	}
	return out
}

// Last returns the final record, or false for an empty result.
func (s SimulationResult) Last() (PeriodRecord, bool) {
	if len(s) == 0 {
		return PeriodRecord{}, false
	}
	return s[len(s)-1], true
}
