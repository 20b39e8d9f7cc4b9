// Package intake handles the applicant side of the wizard: creating a draft,
// saving sections and working out which step comes next.
package intake

import (
	"context"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/loan/documents"
	"loan-intake/internal/loan/steps"
	"loan-intake/internal/models"

	"github.com/google/uuid"
)

// ApplicationStore is the part of the form data store intake needs.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.LoanApplication) error
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	Update(ctx context.Context, id string, fn func(app *models.LoanApplication) error) (*models.LoanApplication, error)
	Commit(ctx context.Context, id string) error
}

// Indexer keeps the admin search projection current.
type Indexer interface {
	Index(ctx context.Context, summary models.ApplicationSummary) error
}

// StepView is the wizard as seen from one step.
type StepView struct {
	ApplicationID string                  `json:"applicationId"`
	Steps         []steps.Step            `json:"steps"`
	Current       steps.StepID            `json:"current"`
	Next          *steps.Step             `json:"next,omitempty"`
	Previous      *steps.Step             `json:"previous,omitempty"`
	Completion    map[models.Section]bool `json:"completion"`
	Flags         models.Flags            `json:"flags"`
}

type Service struct {
	store     ApplicationStore
	validator *validation.Validator
	index     Indexer
	catalog   []models.DocumentDefinition
	logger    logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewService wires the intake service. index may be nil.
func NewService(store ApplicationStore, validator *validation.Validator, index Indexer, catalog []models.DocumentDefinition, log logger.Logger) *Service {
	if len(catalog) == 0 {
		catalog = documents.DefaultCatalog()
	}
	return &Service{
		store:     store,
		validator: validator,
		index:     index,
		catalog:   catalog,
		logger:    log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create starts a new draft application.
func (s *Service) Create(ctx context.Context) (*models.LoanApplication, error) {
	app := models.NewApplication(s.newID(), s.now())
	documents.Refresh(app, s.catalog)
	if err := s.store.Create(ctx, app); err != nil {
		return nil, err
	}
	s.project(ctx, app)
	s.logger.Info("Application created", map[string]interface{}{"applicationId": app.ID})
	return app, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	return s.store.Get(ctx, id)
}

// SaveSection validates the section answers merged over what is already
// stored, marks the section complete and persists the application. Invalid
// answers are never stored. When persisting fails the updated application is
// returned together with a retryable error.
func (s *Service) SaveSection(ctx context.Context, id, section string, answers map[string]interface{}) (*models.LoanApplication, error) {
	sec, ok := models.ParseSection(section)
	if !ok {
		return nil, errors.NewInvalidSectionError(section)
	}

	app, err := s.store.Update(ctx, id, func(app *models.LoanApplication) error {
		if !app.Status.Editable() {
			return errors.NewAlreadySubmittedError(app.ID)
		}

		merged := map[string]interface{}{}
		for k, v := range app.Sections[sec] {
			merged[k] = v
		}
		for k, v := range answers {
			merged[k] = v
		}

		result, err := s.validator.ValidateSection(string(sec), merged)
		if err != nil {
			return err
		}
		if !result.Valid {
			return errors.NewValidationError("Please fix the highlighted fields", result.FieldErrors())
		}

		app.Sections[sec] = merged
		app.Completion[sec] = true
		documents.Refresh(app, s.catalog)
		app.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, id); err != nil {
		s.logger.Warn("Section kept in memory but not persisted", map[string]interface{}{
			"applicationId": id,
			"section":       string(sec),
			"error":         err.Error(),
		})
		return app, err
	}

	s.project(ctx, app)
	s.logger.Info("Section saved", map[string]interface{}{
		"applicationId": id,
		"section":       string(sec),
		"progress":      app.DocumentProgress,
	})
	return app, nil
}

// Steps returns the included wizard steps and the neighbours of current.
// An empty current means the first step.
func (s *Service) Steps(ctx context.Context, id string, current steps.StepID) (*StepView, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	flags := app.DeriveFlags()
	list := steps.FormSteps(flags)
	if current == "" {
		current = list[0].ID
	}
	if !steps.IsStep(current) {
		return nil, errors.NewValidationError("Unknown step", []errors.FieldError{
			{Field: "current", Message: "unknown step " + string(current)},
		})
	}

	view := &StepView{
		ApplicationID: id,
		Steps:         list,
		Current:       current,
		Completion:    app.Completion,
		Flags:         flags,
	}
	if next, ok := steps.NextStep(current, flags); ok {
		view.Next = &next
	}
	if prev, ok := steps.PreviousStep(current, flags); ok {
		view.Previous = &prev
	}
	return view, nil
}

func (s *Service) project(ctx context.Context, app *models.LoanApplication) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, models.SummaryOf(app)); err != nil {
		s.logger.Warn("Search projection not updated", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}
}
