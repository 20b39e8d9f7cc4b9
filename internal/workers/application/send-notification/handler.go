// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/models"
	"loan-intake/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-notification"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ContactReader looks up how to reach an applicant.
type ContactReader interface {
	GetContact(ctx context.Context, appID string) (*repository.Contact, error)
}

type Handler struct {
	config    *Config
	contacts  ContactReader
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	templates map[models.ApplicationStatus]template
}

func NewHandler(config *Config, contacts ContactReader, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		contacts:  contacts,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		sesClient: sesClient,
		snsClient: snsClient,
		templates: loadTemplates(),
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required",
			[]errors.FieldError{{Field: "applicationId", Message: "required"}})
	}

	contact, err := h.contacts.GetContact(ctx, input.ApplicationID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeApplicationNotFound) {
			h.logger.Warn("recipient not found", map[string]interface{}{
				"applicationId": input.ApplicationID,
			})
			return h.output(StatusDisabled), nil
		}
		return nil, err
	}

	status := models.ApplicationStatus(input.Status)
	tmpl, exists := h.templates[status]
	if !exists {
		return nil, errors.NewBusinessRuleError("no notification template", "status: "+input.Status)
	}

	// Build data map for template rendering
	data := map[string]interface{}{
		"name":          contact.Name,
		"applicationId": input.ApplicationID,
		"status":        status.Label(),
		"priority":      input.Priority,
		"description":   input.Description,
	}
	subject := renderTemplate(tmpl.Subject, data)
	body := renderTemplate(tmpl.Body, data)

	emailSent := false
	smsSent := false

	if h.config.EmailEnabled && contact.Email != "" {
		if err := h.sendEmail(ctx, contact.Email, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error":         err.Error(),
				"applicationId": input.ApplicationID,
			})
			return h.output(StatusFailed), nil
		}
		emailSent = true
	}

	// SMS only goes out for applications at or above the priority threshold
	if h.config.SMSEnabled && contact.Phone != "" && h.meetsThreshold(models.Priority(input.Priority)) {
		if err := h.sendSMS(ctx, contact.Phone, subject+": "+body); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error":         err.Error(),
				"applicationId": input.ApplicationID,
			})
			return h.output(StatusFailed), nil
		}
		smsSent = true
	}

	out := h.output(StatusDisabled)
	if emailSent || smsSent {
		out.Status = StatusSent
	}
	h.logger.Info("notification processed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"status":        out.Status,
		"email":         emailSent,
		"sms":           smsSent,
	})
	return out, nil
}

func (h *Handler) meetsThreshold(p models.Priority) bool {
	if !p.Valid() {
		return false
	}
	threshold := h.config.PriorityThreshold
	if !threshold.Valid() {
		threshold = models.PriorityHigh
	}
	return p.Rank() <= threshold.Rank()
}

func (h *Handler) output(status string) *Output {
	return &Output{
		NotificationID: uuid.New().String(),
		Status:         status,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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

// renderTemplate replaces {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}
	return result
}

func loadTemplates() map[models.ApplicationStatus]template {
	return map[models.ApplicationStatus]template{
		models.StatusPendingReview: {
			Subject: "We have received your loan application",
			Body:    "Hi {{name}}, your application {{applicationId}} has been submitted and is now with our assessment team.",
		},
		models.StatusPreApproved: {
			Subject: "Your loan has been pre-approved",
			Body:    "Good news {{name}}! Application {{applicationId}} is pre-approved. {{description}}",
		},
		models.StatusNeedsAttention: {
			Subject: "Action needed on your loan application",
			Body:    "Hi {{name}}, we need a little more from you on application {{applicationId}}. Please sign in to review the outstanding items.",
		},
		models.StatusApproved: {
			Subject: "Your loan is approved",
			Body:    "Congratulations {{name}}, application {{applicationId}} has been approved. Your broker will be in touch about settlement.",
		},
		models.StatusRejected: {
			Subject: "An update on your loan application",
			Body:    "Hi {{name}}, unfortunately we are unable to proceed with application {{applicationId}} at this time.",
		},
		models.StatusDraft: {
			Subject: "Your loan application has been reopened",
			Body:    "Hi {{name}}, application {{applicationId}} has been returned to draft so you can make changes.",
		},
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
