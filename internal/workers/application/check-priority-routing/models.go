// internal/workers/application/check-priority-routing/models.go
package checkpriorityrouting

type Input struct {
	ApplicationID  string  `json:"applicationId"`
	LoanAmount     float64 `json:"loanAmount"`
	SettlementDays int     `json:"settlementDays"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Priority      string `json:"priority"`
}

// Routing thresholds
const (
	HighAmount           = 1_000_000
	MediumAmount         = 500_000
	HighSettlementDays   = 14
	MediumSettlementDays = 30
)
