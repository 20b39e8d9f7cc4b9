package documents

import (
	"context"
	"io"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/storage"
	"loan-intake/internal/loan/steps"
	"loan-intake/internal/models"

	"github.com/google/uuid"
)

// ApplicationStore is the part of the form data store the service needs.
type ApplicationStore interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	Update(ctx context.Context, id string, fn func(app *models.LoanApplication) error) (*models.LoanApplication, error)
	Commit(ctx context.Context, id string) error
}

// FileUpload is an incoming file.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DocumentSet is the applicant's view of their documents.
type DocumentSet struct {
	ApplicationID string                    `json:"applicationId"`
	Documents     []models.Document         `json:"documents"`
	Progress      int                       `json:"progress"`
	Categories    []models.DocumentCategory `json:"categories"`
	Flags         models.Flags              `json:"flags"`
}

// Navigation is the result of moving between documents.
type Navigation struct {
	Position steps.Position   `json:"position"`
	Document *models.Document `json:"document,omitempty"`
}

type Service struct {
	store    ApplicationStore
	files    storage.FileStore
	catalog  []models.DocumentDefinition
	maxBytes int64
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(store ApplicationStore, files storage.FileStore, catalog []models.DocumentDefinition, maxBytes int64, log logger.Logger) *Service {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	return &Service{
		store:    store,
		files:    files,
		catalog:  catalog,
		maxBytes: maxBytes,
		logger:   log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Service) Catalog() []models.DocumentDefinition {
	return s.catalog
}

// Refresh re-derives the applicant flags and document progress of app.
func Refresh(app *models.LoanApplication, catalog []models.DocumentDefinition) {
	app.Flags = app.DeriveFlags()
	docs := Merge(catalog, app.Files)
	app.DocumentProgress = ComputeProgress(docs, app.Flags, app.DocumentProgress)
}

func (s *Service) view(app *models.LoanApplication) *DocumentSet {
	return &DocumentSet{
		ApplicationID: app.ID,
		Documents:     Applicable(Merge(s.catalog, app.Files), app.Flags),
		Progress:      app.DocumentProgress,
		Categories:    steps.DocumentCategories(app.Flags),
		Flags:         app.Flags,
	}
}

// List returns the merged applicable documents with progress.
func (s *Service) List(ctx context.Context, appID string) (*DocumentSet, error) {
	app, err := s.store.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	return s.view(app), nil
}

// Navigate moves one document forward or back from pos.
func (s *Service) Navigate(ctx context.Context, appID string, pos steps.Position, direction string) (*Navigation, error) {
	app, err := s.store.Get(ctx, appID)
	if err != nil {
		return nil, err
	}

	counts := CountByCategory(s.catalog, app.Flags)
	var next steps.Position
	switch direction {
	case "next":
		next = steps.NextDocument(pos, app.Flags, counts)
	case "previous", "prev":
		next = steps.PreviousDocument(pos, app.Flags, counts)
	default:
		return nil, errors.NewValidationError("Unknown navigation direction", []errors.FieldError{
			{Field: "direction", Message: "must be next or previous"},
		})
	}

	nav := &Navigation{Position: next}
	if def, ok := At(s.catalog, app.Flags, next); ok {
		docs := Merge([]models.DocumentDefinition{def}, app.Files)
		nav.Document = &docs[0]
	}
	return nav, nil
}

// applyDocs writes docs back into app, keeping files of documents that are
// no longer in the catalog.
func (s *Service) applyDocs(app *models.LoanApplication, docs []models.Document) {
	files := Flatten(docs)
	for _, f := range app.Files {
		if _, ok := Find(s.catalog, f.DocumentID); !ok {
			files = append(files, f)
		}
	}
	app.Files = files
	app.DocumentProgress = ComputeProgress(docs, app.Flags, app.DocumentProgress)
	app.UpdatedAt = s.now().UTC()
}

// Upload stores the file, attaches it to the document and persists the
// application. When persisting fails the updated set is returned together
// with a retryable error; the in-memory change is kept.
func (s *Service) Upload(ctx context.Context, appID, documentID string, in FileUpload) (*DocumentSet, error) {
	if in.Size <= 0 {
		return nil, errors.NewEmptyFileError(in.Name)
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, errors.NewFileTooLargeError(in.Name, s.maxBytes)
	}
	if _, ok := Find(s.catalog, documentID); !ok {
		return nil, errors.NewDocumentNotFoundError(documentID)
	}
	if _, err := s.store.Get(ctx, appID); err != nil {
		return nil, err
	}

	fileID := s.newID()
	key := storage.ObjectKey(appID, documentID, fileID, in.Name)
	stored, err := s.files.Upload(ctx, key, in.Body, in.Size, in.ContentType)
	if err != nil {
		metrics.DocumentUploads.WithLabelValues("upload", "storage_error").Inc()
		return nil, errors.NewStorageUploadFailedError(in.Name, err)
	}

	file := models.UploadedFile{
		ID:                 fileID,
		Name:               in.Name,
		Size:               in.Size,
		ContentType:        in.ContentType,
		UploadedAt:         s.now().UTC(),
		URL:                stored.URL,
		StorageKey:         stored.ProviderID,
		VerificationStatus: models.VerificationPending,
	}

	var replaced []models.UploadedFile
	app, err := s.store.Update(ctx, appID, func(app *models.LoanApplication) error {
		docs, old, err := AddFile(Merge(s.catalog, app.Files), documentID, file)
		if err != nil {
			return err
		}
		replaced = old
		s.applyDocs(app, docs)
		return nil
	})
	if err != nil {
		s.deleteBlob(ctx, stored.ProviderID)
		return nil, err
	}

	metrics.DocumentProgress.Observe(float64(app.DocumentProgress))
	s.logger.Info("Document file uploaded", map[string]interface{}{
		"applicationId": appID,
		"documentId":    documentID,
		"fileId":        fileID,
		"size":          in.Size,
		"replaced":      len(replaced),
		"progress":      app.DocumentProgress,
	})

	set, err := s.commit(ctx, app, "upload")
	if err != nil {
		return set, err
	}
	for _, f := range replaced {
		s.deleteBlob(ctx, f.StorageKey)
	}
	return set, nil
}

// Remove detaches a file and persists the application. The blob is deleted
// only once the record no longer references it.
func (s *Service) Remove(ctx context.Context, appID, documentID, fileID string) (*DocumentSet, error) {
	var removed models.UploadedFile
	app, err := s.store.Update(ctx, appID, func(app *models.LoanApplication) error {
		docs, f, err := RemoveFile(Merge(s.catalog, app.Files), documentID, fileID)
		if err != nil {
			return err
		}
		removed = f
		s.applyDocs(app, docs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DocumentProgress.Observe(float64(app.DocumentProgress))
	s.logger.Info("Document file removed", map[string]interface{}{
		"applicationId": appID,
		"documentId":    documentID,
		"fileId":        fileID,
		"progress":      app.DocumentProgress,
	})

	set, err := s.commit(ctx, app, "remove")
	if err != nil {
		return set, err
	}
	s.deleteBlob(ctx, removed.StorageKey)
	return set, nil
}

func (s *Service) commit(ctx context.Context, app *models.LoanApplication, op string) (*DocumentSet, error) {
	set := s.view(app)
	if err := s.store.Commit(ctx, app.ID); err != nil {
		metrics.DocumentUploads.WithLabelValues(op, "persist_error").Inc()
		s.logger.Warn("Document change kept in memory but not persisted", map[string]interface{}{
			"applicationId": app.ID,
			"operation":     op,
			"error":         err,
		})
		if errors.AsStandard(err).Category() == errors.CategoryRemote {
			return set, err
		}
		return set, errors.NewDatabaseWriteFailedError(op, err)
	}
	metrics.DocumentUploads.WithLabelValues(op, "ok").Inc()
	return set, nil
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete stored file", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
}
