// Package review implements the admin review actions on loan applications
// and the applicant's final submission.
package review

import (
	"context"
	"fmt"
	"sort"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/observability"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Repository performs the transactional review writes.
type Repository interface {
	UpdateStatus(ctx context.Context, appID string, status models.ApplicationStatus, event models.TimelineEvent, updatedAt time.Time) error
	UpdatePriority(ctx context.Context, appID string, priority models.Priority, updatedAt time.Time) error
	UpdateFileVerification(ctx context.Context, appID, fileID string, status models.VerificationStatus, updatedAt time.Time) error
	UpdateFileSignature(ctx context.Context, appID, fileID string, required bool, updatedAt time.Time) error
}

// ApplicationStore is the form data store as seen by review.
type ApplicationStore interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	Apply(ctx context.Context, id string, fn func(app *models.LoanApplication)) (*models.LoanApplication, error)
	Commit(ctx context.Context, id string) error
	Dirty(id string) bool
}

// Indexer keeps the admin search projection current.
type Indexer interface {
	Index(ctx context.Context, summary models.ApplicationSummary) error
}

// Notifier starts workflow processes.
type Notifier interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

type Config struct {
	ReviewProcessID string
	StatusProcessID string
}

type Service struct {
	repo      Repository
	store     ApplicationStore
	index     Indexer
	notifier  Notifier
	validator *validation.Validator
	tracker   *Tracker
	obs       *observability.Observability
	cfg       Config
	logger    logger.Logger
	now       func() time.Time
}

// NewService wires the review service. index and notifier may be nil.
func NewService(repo Repository, store ApplicationStore, index Indexer, notifier Notifier, validator *validation.Validator, obs *observability.Observability, cfg Config, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		index:     index,
		notifier:  notifier,
		validator: validator,
		tracker:   NewTracker(),
		obs:       obs,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// Pending lists the mutation targets of appID that are in flight.
func (s *Service) Pending(appID string) []string {
	return s.tracker.Pending(appID)
}

// ChangeStatus moves the application to status. Any status may follow any
// other; each change appends a timeline event.
func (s *Service) ChangeStatus(ctx context.Context, appID string, status models.ApplicationStatus, actor string) (*models.LoanApplication, *models.Notice, error) {
	if !status.Valid() {
		return nil, nil, errors.NewInvalidStatusError(string(status))
	}

	var out *models.LoanApplication
	err := s.mutate(ctx, "status", appID, TargetStatus, func(ctx context.Context) error {
		app, err := s.store.Get(ctx, appID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		desc := fmt.Sprintf("Status changed from %s to %s", app.Status.Label(), status.Label())
		ev := app.AppendEvent(status, desc, actorOrDefault(actor), now)

		if err := s.repo.UpdateStatus(ctx, appID, status, ev, now); err != nil {
			return writeError("update_status", err)
		}
		out, err = s.store.Apply(ctx, appID, func(app *models.LoanApplication) {
			app.Status = status
			app.AppendEvent(ev.Status, ev.Description, ev.Actor, ev.Timestamp)
			app.UpdatedAt = now
		})
		if err != nil {
			return err
		}

		s.project(ctx, out)
		s.notify(ctx, s.cfg.StatusProcessID, out, ev)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, &models.Notice{Message: fmt.Sprintf("Application status updated to %s", status.Label())}, nil
}

// SetPriority changes the review priority without touching status.
func (s *Service) SetPriority(ctx context.Context, appID string, priority models.Priority, actor string) (*models.LoanApplication, *models.Notice, error) {
	if !priority.Valid() {
		return nil, nil, errors.NewInvalidPriorityError(string(priority))
	}

	var out *models.LoanApplication
	err := s.mutate(ctx, "priority", appID, TargetPriority, func(ctx context.Context) error {
		if _, err := s.store.Get(ctx, appID); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.repo.UpdatePriority(ctx, appID, priority, now); err != nil {
			return writeError("update_priority", err)
		}
		var err error
		out, err = s.store.Apply(ctx, appID, func(app *models.LoanApplication) {
			app.Priority = priority
			app.UpdatedAt = now
		})
		if err != nil {
			return err
		}
		s.logger.Info("Application priority changed", map[string]interface{}{
			"applicationId": appID,
			"priority":      string(priority),
			"actor":         actorOrDefault(actor),
		})
		s.project(ctx, out)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, &models.Notice{Message: fmt.Sprintf("Priority set to %s", priority)}, nil
}

// SetFileVerification records the verification outcome of one uploaded file.
// The last completed write wins.
func (s *Service) SetFileVerification(ctx context.Context, appID, fileID string, status models.VerificationStatus, actor string) (*models.LoanApplication, *models.Notice, error) {
	if !status.Valid() {
		return nil, nil, errors.NewInvalidVerificationStatusError(string(status))
	}

	var out *models.LoanApplication
	err := s.mutate(ctx, "verification", appID, fileID, func(ctx context.Context) error {
		app, err := s.store.Get(ctx, appID)
		if err != nil {
			return err
		}
		if app.FindFile(fileID) < 0 {
			return errors.NewFileNotFoundError(fileID)
		}
		if err := s.flushPending(ctx, appID); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.repo.UpdateFileVerification(ctx, appID, fileID, status, now); err != nil {
			return writeError("update_file_verification", err)
		}
		out, err = s.store.Apply(ctx, appID, func(app *models.LoanApplication) {
			if i := app.FindFile(fileID); i >= 0 {
				app.Files[i].VerificationStatus = status
			}
			app.UpdatedAt = now
		})
		if err != nil {
			return err
		}
		s.logger.Info("File verification updated", map[string]interface{}{
			"applicationId": appID,
			"fileId":        fileID,
			"status":        string(status),
			"actor":         actorOrDefault(actor),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, &models.Notice{Message: fmt.Sprintf("File marked as %s", status)}, nil
}

// SetSignatureRequired flags whether a file must be signed.
func (s *Service) SetSignatureRequired(ctx context.Context, appID, fileID string, required bool, actor string) (*models.LoanApplication, *models.Notice, error) {
	var out *models.LoanApplication
	err := s.mutate(ctx, "signature", appID, fileID+"/signature", func(ctx context.Context) error {
		app, err := s.store.Get(ctx, appID)
		if err != nil {
			return err
		}
		if app.FindFile(fileID) < 0 {
			return errors.NewFileNotFoundError(fileID)
		}
		if err := s.flushPending(ctx, appID); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.repo.UpdateFileSignature(ctx, appID, fileID, required, now); err != nil {
			return writeError("update_file_signature", err)
		}
		out, err = s.store.Apply(ctx, appID, func(app *models.LoanApplication) {
			if i := app.FindFile(fileID); i >= 0 {
				app.Files[i].SignatureRequired = required
			}
			app.UpdatedAt = now
		})
		if err != nil {
			return err
		}
		s.logger.Info("File signature requirement updated", map[string]interface{}{
			"applicationId": appID,
			"fileId":        fileID,
			"required":      required,
			"actor":         actorOrDefault(actor),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	msg := "Signature no longer required"
	if required {
		msg = "Signature requested"
	}
	return out, &models.Notice{Message: msg}, nil
}

// Submit is the applicant's terminal action: every section must validate,
// pending answers are persisted and the application moves to pending_review.
// Applications sent back as needs_attention may be submitted again.
func (s *Service) Submit(ctx context.Context, appID string) (*models.LoanApplication, *models.Notice, error) {
	var (
		out  *models.LoanApplication
		desc string
	)
	err := s.mutate(ctx, "submit", appID, TargetStatus, func(ctx context.Context) error {
		app, err := s.store.Get(ctx, appID)
		if err != nil {
			return err
		}
		if !app.Status.Editable() {
			return errors.NewAlreadySubmittedError(appID)
		}
		desc = "Application submitted for review"
		if app.Status == models.StatusNeedsAttention {
			desc = "Application resubmitted for review"
		}
		if fields := s.validateAll(app); len(fields) > 0 {
			return errors.NewValidationError("Please complete all sections before submitting", fields)
		}
		if err := s.store.Commit(ctx, appID); err != nil {
			return err
		}

		now := s.now().UTC()
		ev := app.AppendEvent(models.StatusPendingReview, desc, models.ActorApplicant, now)
		if err := s.repo.UpdateStatus(ctx, appID, models.StatusPendingReview, ev, now); err != nil {
			return writeError("submit_application", err)
		}
		out, err = s.store.Apply(ctx, appID, func(app *models.LoanApplication) {
			app.Status = models.StatusPendingReview
			app.AppendEvent(ev.Status, ev.Description, ev.Actor, ev.Timestamp)
			app.UpdatedAt = now
		})
		if err != nil {
			return err
		}

		s.project(ctx, out)
		s.notify(ctx, s.cfg.ReviewProcessID, out, ev)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, &models.Notice{Message: desc}, nil
}

// flushPending commits uncommitted applicant changes so that a per-file
// write finds its row. A failed commit is returned as is (retryable).
func (s *Service) flushPending(ctx context.Context, appID string) error {
	if !s.store.Dirty(appID) {
		return nil
	}
	return s.store.Commit(ctx, appID)
}

func (s *Service) validateAll(app *models.LoanApplication) []errors.FieldError {
	if s.validator == nil {
		return nil
	}
	var fields []errors.FieldError
	for _, section := range s.validator.Sections() {
		data := app.Sections[models.Section(section)]
		if data == nil {
			data = map[string]interface{}{}
		}
		result, err := s.validator.ValidateSection(section, data)
		if err != nil {
			fields = append(fields, errors.FieldError{Field: section, Message: err.Error()})
			continue
		}
		for _, fe := range result.FieldErrors() {
			fields = append(fields, errors.FieldError{Field: section + "." + fe.Field, Message: fe.Message})
		}
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}

// mutate runs fn while holding target and records the outcome.
func (s *Service) mutate(ctx context.Context, kind, appID, target string, fn func(ctx context.Context) error) error {
	release := s.tracker.Acquire(appID, target)
	defer release()

	ctx, span := observability.StartSpan(ctx, "review", kind,
		attribute.String("application.id", appID),
		attribute.String("review.target", target),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	outcome := "ok"
	if err != nil {
		outcome = string(errors.AsStandard(err).Category())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("Review mutation failed", map[string]interface{}{
			"applicationId": appID,
			"kind":          kind,
			"target":        target,
			"error":         err.Error(),
		})
	}
	metrics.ReviewMutations.WithLabelValues(kind, outcome).Inc()
	s.obs.RecordMutation(ctx, kind, outcome, time.Since(start))
	return err
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

func (s *Service) notify(ctx context.Context, processID string, app *models.LoanApplication, ev models.TimelineEvent) {
	if s.notifier == nil || processID == "" {
		return
	}
	vars := map[string]interface{}{
		"applicationId":  app.ID,
		"status":         string(app.Status),
		"priority":       string(app.Priority),
		"description":    ev.Description,
		"actor":          ev.Actor,
		"loanAmount":     app.NumberField(models.SectionLoanRequirements, "loanAmount"),
		"settlementDays": app.NumberField(models.SectionLoanRequirements, "settlementDays"),
	}
	key, err := s.notifier.StartProcess(ctx, processID, vars)
	if err != nil {
		s.logger.Warn("Workflow not started", map[string]interface{}{
			"applicationId": app.ID,
			"processId":     processID,
			"error":         err.Error(),
		})
		return
	}
	s.logger.Info("Workflow started", map[string]interface{}{
		"applicationId":      app.ID,
		"processId":          processID,
		"processInstanceKey": key,
	})
}

func writeError(op string, err error) error {
	if errors.HasCode(err, errors.ErrCodeApplicationNotFound) || errors.HasCode(err, errors.ErrCodeFileNotFound) {
		return err
	}
	if std := errors.AsStandard(err); std.Category() == errors.CategoryRemote {
		return std
	}
	return errors.NewDatabaseWriteFailedError(op, err)
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "admin"
	}
	return actor
}
