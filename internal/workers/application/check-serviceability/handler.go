// internal/workers/application/check-serviceability/handler.go
package checkserviceability

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "check-serviceability"
)

// ApplicationReader loads the current state of an application.
type ApplicationReader interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
}

type Handler struct {
	config *Config
	apps   ApplicationReader
	logger logger.Logger
}

func NewHandler(config *Config, apps ApplicationReader, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		apps:   apps,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(ctx context.Context, client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return errors.NewValidationError(fmt.Sprintf("parse input: %v", err), nil)
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		return err
	}

	h.completeJob(ctx, client, job, output)
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required",
			[]errors.FieldError{{Field: "applicationId", Message: "required"}})
	}

	app, err := h.apps.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	loanAmount := h.number(app.Sections[models.SectionLoanRequirements], "loanAmount")
	propertyValue := h.number(app.Sections[models.SectionProperty], "estimatedValue")
	income := h.householdIncome(app)

	var lvr, lti float64
	if propertyValue > 0 {
		lvr = round2(loanAmount / propertyValue * 100)
	}
	if income > 0 {
		lti = round2(loanAmount / income)
	}

	breakdown := ScoreBreakdown{
		Deposit:    h.scoreDeposit(lvr),
		Income:     h.scoreIncome(lti),
		Savings:    h.scoreSavings(app.Sections[models.SectionFinancial]),
		Employment: h.scoreEmployment(app.Sections[models.SectionEmployment]),
	}

	// Deposit(30%) + Income(30%) + Savings(20%) + Employment(20%)
	finalScore := int(
		float64(breakdown.Deposit)*0.30 +
			float64(breakdown.Income)*0.30 +
			float64(breakdown.Savings)*0.20 +
			float64(breakdown.Employment)*0.20)

	level := h.classify(finalScore)

	h.logger.Info("serviceability score calculated", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"score":         finalScore,
		"level":         level,
		"lvr":           lvr,
		"loanToIncome":  lti,
	})

	return &Output{
		ApplicationID:       input.ApplicationID,
		ServiceabilityScore: finalScore,
		Level:               level,
		ScoreBreakdown:      breakdown,
		LVR:                 lvr,
		LoanToIncome:        lti,
	}, nil
}

func (h *Handler) householdIncome(app *models.LoanApplication) float64 {
	income := h.number(app.Sections[models.SectionEmployment], "annualIncome")
	if app.DeriveFlags().HasPartner {
		if partner, ok := app.Sections[models.SectionPersonal]["partner"].(map[string]interface{}); ok {
			income += h.number(partner, "annualIncome")
		}
	}
	return income
}

// scoreDeposit grades the loan-to-value ratio. Unknown LVR scores zero.
func (h *Handler) scoreDeposit(lvr float64) int {
	switch {
	case lvr <= 0:
		return 0
	case lvr <= 60:
		return 100
	case lvr <= 80:
		return 80
	case lvr <= 90:
		return 50
	case lvr <= 95:
		return 25
	default:
		return 0
	}
}

func (h *Handler) scoreIncome(lti float64) int {
	switch {
	case lti <= 0:
		return 0
	case lti <= 4:
		return 100
	case lti <= 5:
		return 75
	case lti <= 6:
		return 50
	case lti <= 7:
		return 25
	default:
		return 0
	}
}

// scoreSavings grades how many months of expenses savings cover.
func (h *Handler) scoreSavings(data map[string]interface{}) int {
	savings := h.number(data, "savings")
	expenses := h.number(data, "monthlyExpenses")
	if expenses <= 0 {
		if savings > 0 {
			return 100
		}
		return 0
	}

	months := savings / expenses
	switch {
	case months >= 6:
		return 100
	case months >= 3:
		return 70
	case months >= 1:
		return 40
	default:
		return 10
	}
}

func (h *Handler) scoreEmployment(data map[string]interface{}) int {
	score := 0
	switch data["employmentType"] {
	case "full_time":
		score += 60
	case "part_time", "contract", "self_employed":
		score += 40
	case "casual":
		score += 20
	}

	years := h.number(data, "yearsInRole")
	if years >= 2 {
		score += 40
	} else if years >= 1 {
		score += 20
	}

	return h.clamp(score, 0, 100)
}

func (h *Handler) classify(score int) string {
	switch {
	case score >= 75:
		return LevelStrong
	case score >= 55:
		return LevelModerate
	case score >= 35:
		return LevelWeak
	default:
		return LevelInsufficient
	}
}

// number reads a numeric answer, accepting strings with thousands separators.
func (h *Handler) number(data map[string]interface{}, key string) float64 {
	raw, ok := data[key]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func (h *Handler) clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
