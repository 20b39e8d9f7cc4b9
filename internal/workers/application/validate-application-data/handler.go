// internal/workers/application/validate-application-data/handler.go
package validateapplicationdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/loan/documents"
	"loan-intake/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-application-data"
)

// ApplicationReader loads the current state of an application.
type ApplicationReader interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
}

type Handler struct {
	config    *Config
	apps      ApplicationReader
	validator *validation.Validator
	catalog   []models.DocumentDefinition
	logger    logger.Logger
}

func NewHandler(config *Config, apps ApplicationReader, validator *validation.Validator, catalog []models.DocumentDefinition, log logger.Logger) *Handler {
	if len(catalog) == 0 {
		catalog = documents.DefaultCatalog()
	}
	return &Handler{
		config:    config,
		apps:      apps,
		validator: validator,
		catalog:   catalog,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

// execute re-checks every section against its schema and, when configured,
// that all applicable required documents have a file.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required",
			[]errors.FieldError{{Field: "applicationId", Message: "required"}})
	}

	app, err := h.apps.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	var problems []ValidationError
	for _, section := range h.validator.Sections() {
		result, err := h.validator.ValidateSection(section, app.Sections[models.Section(section)])
		if err != nil {
			return nil, err
		}
		for _, e := range result.Errors {
			code := e.Code
			if code == "" {
				code = CodeSchema
			}
			problems = append(problems, ValidationError{
				Field:   section + "." + e.Field,
				Code:    code,
				Message: e.Message,
			})
		}
	}

	flags := app.DeriveFlags()
	docs := documents.Merge(h.catalog, app.Files)
	progress := documents.ComputeProgress(docs, flags, app.DocumentProgress)
	if h.config.RequireDocuments {
		for _, d := range documents.Applicable(docs, flags) {
			if d.Required && len(d.UploadedFiles) == 0 {
				problems = append(problems, ValidationError{
					Field:   "documents." + d.ID,
					Code:    CodeMissingDocument,
					Message: d.Name + " has not been uploaded",
				})
			}
		}
	}
	sort.SliceStable(problems, func(i, j int) bool { return problems[i].Field < problems[j].Field })

	h.logger.Info("application validated", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"errors":        len(problems),
		"progress":      progress,
	})

	return &Output{
		ApplicationID:    input.ApplicationID,
		IsValid:          len(problems) == 0,
		DocumentProgress: progress,
		ValidationErrors: problems,
	}, nil
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
