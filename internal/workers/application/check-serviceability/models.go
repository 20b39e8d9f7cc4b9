// internal/workers/application/check-serviceability/models.go
package checkserviceability

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID       string         `json:"applicationId"`
	ServiceabilityScore int            `json:"serviceabilityScore"`
	Level               string         `json:"serviceabilityLevel"`
	ScoreBreakdown      ScoreBreakdown `json:"scoreBreakdown"`
	LVR                 float64        `json:"lvr"`
	LoanToIncome        float64        `json:"loanToIncome"`
}

type ScoreBreakdown struct {
	Deposit    int `json:"deposit"`
	Income     int `json:"income"`
	Savings    int `json:"savings"`
	Employment int `json:"employment"`
}

const (
	LevelStrong       = "strong"
	LevelModerate     = "moderate"
	LevelWeak         = "weak"
	LevelInsufficient = "insufficient"
)
