package intake

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/loan/steps"
	"loan-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type memStore struct {
	mu        sync.Mutex
	apps      map[string]*models.LoanApplication
	createErr error
	commitErr error
	commits   int
}

func newMemStore(apps ...*models.LoanApplication) *memStore {
	s := &memStore{apps: map[string]*models.LoanApplication{}}
	for _, a := range apps {
		s.apps[a.ID] = a
	}
	return s
}

func (m *memStore) Create(_ context.Context, app *models.LoanApplication) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = app.Clone()
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	return app.Clone(), nil
}

func (m *memStore) Update(_ context.Context, id string, fn func(*models.LoanApplication) error) (*models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	work := app.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	m.apps[id] = work
	return work.Clone(), nil
}

func (m *memStore) Commit(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	return m.commitErr
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []models.ApplicationSummary
	err     error
}

func (f *fakeIndexer) Index(_ context.Context, s models.ApplicationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, s)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, store *memStore, index Indexer) *Service {
	t.Helper()
	v, err := validation.NewValidator()
	require.NoError(t, err)
	s := NewService(store, v, index, nil, logger.NewTestLogger(t))
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "app-1" }
	return s
}

func personal() map[string]interface{} {
	return map[string]interface{}{
		"firstName":   "Sam",
		"lastName":    "Lee",
		"email":       "sam@example.com",
		"phone":       "0412345678",
		"dateOfBirth": "1990-04-12",
	}
}

// ==========================
// Create / Get
// ==========================

func TestCreate(t *testing.T) {
	store := newMemStore()
	index := &fakeIndexer{}
	s := newService(t, store, index)

	app, err := s.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, models.StatusDraft, app.Status)
	assert.Equal(t, models.PriorityMedium, app.Priority)
	require.Len(t, app.Timeline, 1)
	assert.Equal(t, "Application created", app.Timeline[0].Description)

	stored, err := s.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, app.ID, stored.ID)
	require.Len(t, index.indexed, 1)
	assert.Equal(t, models.StatusDraft, index.indexed[0].Status)
}

func TestCreate_RepositoryFailure(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.NewDatabaseWriteFailedError("create_application", stderrors.New("down"))
	index := &fakeIndexer{}
	s := newService(t, store, index)

	_, err := s.Create(context.Background())
	assert.True(t, errors.IsRetryable(err))
	assert.Empty(t, index.indexed)
}

// ==========================
// SaveSection
// ==========================

func TestSaveSection_Valid(t *testing.T) {
	store := newMemStore(models.NewApplication("app-1", fixedNow))
	index := &fakeIndexer{}
	s := newService(t, store, index)

	app, err := s.SaveSection(context.Background(), "app-1", "personal", personal())
	require.NoError(t, err)
	assert.True(t, app.Completion[models.SectionPersonal])
	assert.Equal(t, "Sam", app.StringField(models.SectionPersonal, "firstName"))
	assert.Equal(t, 1, store.commits)
	require.Len(t, index.indexed, 1)
	assert.Equal(t, "Sam Lee", index.indexed[0].ApplicantName)
}

func TestSaveSection_MergesOverStoredAnswers(t *testing.T) {
	store := newMemStore(models.NewApplication("app-1", fixedNow))
	s := newService(t, store, nil)

	_, err := s.SaveSection(context.Background(), "app-1", "personal", personal())
	require.NoError(t, err)

	app, err := s.SaveSection(context.Background(), "app-1", "personal", map[string]interface{}{
		"hasPartner": true,
		"partner":    map[string]interface{}{"firstName": "Alex", "lastName": "Lee"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", app.StringField(models.SectionPersonal, "email"))
	assert.True(t, app.Flags.HasPartner)
}

func TestSaveSection_FlagChangeRecomputesProgress(t *testing.T) {
	app := models.NewApplication("app-1", fixedNow)
	for _, doc := range []string{"photo-id", "payslips", "bank-statements", "contract-of-sale"} {
		app.Files = append(app.Files, models.UploadedFile{ID: doc + "-f", DocumentID: doc})
	}
	app.DocumentProgress = 100
	store := newMemStore(app)
	s := newService(t, store, nil)

	p := personal()
	p["hasPartner"] = true
	p["partner"] = map[string]interface{}{"firstName": "Alex", "lastName": "Lee"}
	out, err := s.SaveSection(context.Background(), "app-1", "personal", p)
	require.NoError(t, err)
	assert.Equal(t, 67, out.DocumentProgress)

	out, err = s.SaveSection(context.Background(), "app-1", "personal", map[string]interface{}{"hasPartner": false})
	require.NoError(t, err)
	assert.Equal(t, 100, out.DocumentProgress)
}

func TestSaveSection_InvalidIsNotStored(t *testing.T) {
	store := newMemStore(models.NewApplication("app-1", fixedNow))
	s := newService(t, store, nil)

	p := personal()
	delete(p, "email")
	_, err := s.SaveSection(context.Background(), "app-1", "personal", p)
	require.Error(t, err)

	std := errors.AsStandard(err)
	assert.Equal(t, errors.ErrCodeValidationFailed, std.Code)
	require.NotEmpty(t, std.FieldErrors)
	assert.Equal(t, "email", std.FieldErrors[0].Field)

	app, _ := store.Get(context.Background(), "app-1")
	assert.Empty(t, app.Sections[models.SectionPersonal])
	assert.False(t, app.Completion[models.SectionPersonal])
	assert.Equal(t, 0, store.commits)
}

func TestSaveSection_KebabSectionName(t *testing.T) {
	store := newMemStore(models.NewApplication("app-1", fixedNow))
	s := newService(t, store, nil)

	app, err := s.SaveSection(context.Background(), "app-1", "loan-requirements", map[string]interface{}{
		"loanAmount": 500000.0, "loanTermYears": 30.0, "loanPurpose": "purchase",
	})
	require.NoError(t, err)
	assert.True(t, app.Completion[models.SectionLoanRequirements])
}

func TestSaveSection_Errors(t *testing.T) {
	submitted := models.NewApplication("app-2", fixedNow)
	submitted.Status = models.StatusPendingReview
	store := newMemStore(models.NewApplication("app-1", fixedNow), submitted)
	s := newService(t, store, nil)

	_, err := s.SaveSection(context.Background(), "app-1", "hobbies", map[string]interface{}{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidSection))

	_, err = s.SaveSection(context.Background(), "missing", "personal", personal())
	assert.True(t, errors.HasCode(err, errors.ErrCodeApplicationNotFound))

	_, err = s.SaveSection(context.Background(), "app-2", "personal", personal())
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadySubmitted))
}

func TestSaveSection_NeedsAttentionIsEditable(t *testing.T) {
	app := models.NewApplication("app-1", fixedNow)
	app.Status = models.StatusNeedsAttention
	s := newService(t, newMemStore(app), nil)

	_, err := s.SaveSection(context.Background(), "app-1", "personal", personal())
	assert.NoError(t, err)
}

func TestSaveSection_CommitFailureKeepsMemory(t *testing.T) {
	store := newMemStore(models.NewApplication("app-1", fixedNow))
	store.commitErr = errors.NewDatabaseWriteFailedError("save_application", stderrors.New("timeout"))
	index := &fakeIndexer{}
	s := newService(t, store, index)

	app, err := s.SaveSection(context.Background(), "app-1", "personal", personal())
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	require.NotNil(t, app)
	assert.True(t, app.Completion[models.SectionPersonal])

	stored, _ := store.Get(context.Background(), "app-1")
	assert.Equal(t, "Sam", stored.StringField(models.SectionPersonal, "firstName"))
	assert.Empty(t, index.indexed)
}

// ==========================
// Steps
// ==========================

func TestSteps(t *testing.T) {
	app := models.NewApplication("app-1", fixedNow)
	app.Sections[models.SectionPersonal] = map[string]interface{}{"hasPartner": true}
	s := newService(t, newMemStore(app), nil)

	view, err := s.Steps(context.Background(), "app-1", steps.StepPersonal)
	require.NoError(t, err)
	require.NotNil(t, view.Next)
	assert.Equal(t, steps.StepPartner, view.Next.ID)
	require.NotNil(t, view.Previous)
	assert.Equal(t, steps.StepProperty, view.Previous.ID)
	assert.True(t, view.Flags.HasPartner)

	view, err = s.Steps(context.Background(), "app-1", "")
	require.NoError(t, err)
	assert.Equal(t, steps.StepProperty, view.Current)
	assert.Nil(t, view.Previous)

	_, err = s.Steps(context.Background(), "app-1", "garage")
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
}

func TestSaveSection_ProjectionFailureIsNotFatal(t *testing.T) {
	store := newMemStore(models.NewApplication("app-1", fixedNow))
	s := newService(t, store, &fakeIndexer{err: stderrors.New("es down")})

	_, err := s.SaveSection(context.Background(), "app-1", "personal", personal())
	assert.NoError(t, err)
}
