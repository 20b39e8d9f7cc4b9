// internal/workers/application/check-priority-routing/handler.go
package checkpriorityrouting

import (
	"context"
	"encoding/json"
	"fmt"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "check-priority-routing"

	actor = "priority-routing"
)

// PrioritySetter applies a review priority to an application.
type PrioritySetter interface {
	SetPriority(ctx context.Context, appID string, priority models.Priority, actor string) (*models.LoanApplication, *models.Notice, error)
}

type Handler struct {
	config *Config
	setter PrioritySetter
	redis  redis.Cmdable
	logger logger.Logger
}

func NewHandler(config *Config, setter PrioritySetter, redis redis.Cmdable, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		setter: setter,
		redis:  redis,
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

	cacheKey := h.cacheKey(input.ApplicationID)
	if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil && models.Priority(val).Valid() {
		h.logger.Debug("priority served from cache", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"priority":      val,
		})
		return &Output{ApplicationID: input.ApplicationID, Priority: val}, nil
	}

	priority := DeterminePriority(input.LoanAmount, input.SettlementDays)
	if _, _, err := h.setter.SetPriority(ctx, input.ApplicationID, priority, actor); err != nil {
		return nil, err
	}

	if err := h.redis.Set(ctx, cacheKey, string(priority), h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("failed to cache priority", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"error":         err.Error(),
		})
	}

	h.logger.Info("priority routing determined", map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"loanAmount":     input.LoanAmount,
		"settlementDays": input.SettlementDays,
		"priority":       string(priority),
	})

	return &Output{ApplicationID: input.ApplicationID, Priority: string(priority)}, nil
}

// DeterminePriority ranks a new application by size and settlement urgency.
// A settlement of zero days means none was given.
func DeterminePriority(loanAmount float64, settlementDays int) models.Priority {
	urgent := func(limit int) bool { return settlementDays > 0 && settlementDays <= limit }
	switch {
	case loanAmount >= HighAmount || urgent(HighSettlementDays):
		return models.PriorityHigh
	case loanAmount >= MediumAmount || urgent(MediumSettlementDays):
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func (h *Handler) cacheKey(appID string) string {
	prefix := h.config.KeyPrefix
	if prefix == "" {
		prefix = "loan-intake"
	}
	return prefix + ":priority:" + appID
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
