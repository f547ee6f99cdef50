package types

import "time"

// BehaviorStats accumulates success reports for one behavior or command kind.
type BehaviorStats struct {
	Behavior    string    `json:"behavior"`
	Successes   uint64    `json:"successes"`
	Failures    uint64    `json:"failures"`
	LastSuccess bool      `json:"last_success"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Total returns the number of reports.
func (s BehaviorStats) Total() uint64 {
	return s.Successes + s.Failures
}

// SuccessRate returns the share of successful reports, 0 when there are none.
func (s BehaviorStats) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total())
}
