package review

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type fakeRepo struct {
	mu        sync.Mutex
	statusErr error
	events    []models.TimelineEvent
	statuses  []models.ApplicationStatus
	priority  models.Priority
	verified  map[string]models.VerificationStatus
	signature map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{verified: map[string]models.VerificationStatus{}, signature: map[string]bool{}}
}

func (r *fakeRepo) UpdateStatus(_ context.Context, _ string, status models.ApplicationStatus, ev models.TimelineEvent, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusErr != nil {
		return r.statusErr
	}
	r.statuses = append(r.statuses, status)
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) UpdatePriority(_ context.Context, _ string, p models.Priority, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priority = p
	return nil
}

func (r *fakeRepo) UpdateFileVerification(_ context.Context, _ string, fileID string, s models.VerificationStatus, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verified[fileID] = s
	return nil
}

func (r *fakeRepo) UpdateFileSignature(_ context.Context, _ string, fileID string, required bool, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signature[fileID] = required
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	apps      map[string]*models.LoanApplication
	commits   int
	commitErr error
	dirty     map[string]bool
}

func (s *fakeStore) Get(_ context.Context, id string) (*models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	return app.Clone(), nil
}

func (s *fakeStore) Apply(_ context.Context, id string, fn func(app *models.LoanApplication)) (*models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	work := app.Clone()
	fn(work)
	s.apps[id] = work
	return work.Clone(), nil
}

func (s *fakeStore) Commit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	if s.commitErr != nil {
		return s.commitErr
	}
	delete(s.dirty, id)
	return nil
}

func (s *fakeStore) Dirty(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[id]
}

type fakeIndexer struct {
	mu        sync.Mutex
	summaries []models.ApplicationSummary
}

func (f *fakeIndexer) Index(_ context.Context, s models.ApplicationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return nil
}

type fakeNotifier struct {
	processes []string
	vars      []map[string]interface{}
	err       error
}

func (f *fakeNotifier) StartProcess(_ context.Context, processID string, variables interface{}) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.processes = append(f.processes, processID)
	f.vars = append(f.vars, variables.(map[string]interface{}))
	return 2251799813685249, nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	store    *fakeStore
	index    *fakeIndexer
	notifier *fakeNotifier
	app      *models.LoanApplication
}

func setup(t *testing.T) *fixture {
	t.Helper()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	app := models.NewApplication("app-1", created)
	app.Files = []models.UploadedFile{
		{ID: "file-1", DocumentID: "photo-id", Name: "passport.pdf", VerificationStatus: models.VerificationPending},
	}

	f := &fixture{
		repo:     newFakeRepo(),
		store:    &fakeStore{apps: map[string]*models.LoanApplication{"app-1": app}},
		index:    &fakeIndexer{},
		notifier: &fakeNotifier{},
		app:      app,
	}
	validator, err := validation.NewValidatorFromSchemas(map[string]string{
		"personal": `{"type":"object","required":["firstName"],"properties":{"firstName":{"type":"string","minLength":1}}}`,
	})
	require.NoError(t, err)

	f.svc = NewService(f.repo, f.store, f.index, f.notifier, validator, nil,
		Config{ReviewProcessID: "loan-application-review", StatusProcessID: "loan-status-notification"},
		logger.NewTestLogger(t))
	f.svc.now = func() time.Time { return created.Add(time.Hour) }
	return f
}

// ==========================
// Status
// ==========================

func TestChangeStatus_AppendsTimelineEvent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.store.apps["app-1"].Status = models.StatusPendingReview

	app, notice, err := f.svc.ChangeStatus(ctx, "app-1", models.StatusNeedsAttention, "reviewer@bank")
	require.NoError(t, err)
	require.NotNil(t, notice)
	assert.NotEmpty(t, notice.Message)

	assert.Equal(t, models.StatusNeedsAttention, app.Status)
	require.Len(t, app.Timeline, 2)
	last := app.Timeline[1]
	assert.Equal(t, models.StatusNeedsAttention, last.Status)
	assert.NotEmpty(t, last.Description)
	assert.Equal(t, "reviewer@bank", last.Actor)
	assert.False(t, last.Timestamp.Before(app.Timeline[0].Timestamp))

	require.Len(t, f.repo.events, 1)
	assert.Equal(t, last, f.repo.events[0])
	require.Len(t, f.index.summaries, 1)
	assert.Equal(t, models.StatusNeedsAttention, f.index.summaries[0].Status)
	assert.Equal(t, []string{"loan-status-notification"}, f.notifier.processes)
	assert.Equal(t, "needs_attention", f.notifier.vars[0]["status"])
}

func TestChangeStatus_ClampsTimestamp(t *testing.T) {
	f := setup(t)
	// clock behind the creation event
	f.svc.now = func() time.Time { return f.app.CreatedAt.Add(-time.Minute) }

	app, _, err := f.svc.ChangeStatus(context.Background(), "app-1", models.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, app.Timeline[0].Timestamp, app.Timeline[1].Timestamp)
	assert.Equal(t, "admin", app.Timeline[1].Actor)
}

func TestChangeStatus_AnyTransitionAllowed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, s := range []models.ApplicationStatus{models.StatusRejected, models.StatusDraft, models.StatusApproved, models.StatusApproved} {
		_, _, err := f.svc.ChangeStatus(ctx, "app-1", s, "ops")
		require.NoError(t, err)
	}
	app, _ := f.store.Get(ctx, "app-1")
	assert.Len(t, app.Timeline, 5)
	assert.Equal(t, models.StatusApproved, app.Status)
}

func TestChangeStatus_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, _, err := f.svc.ChangeStatus(ctx, "app-1", "archived", "ops")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidStatus))

	_, _, err = f.svc.ChangeStatus(ctx, "missing", models.StatusApproved, "ops")
	assert.True(t, errors.HasCode(err, errors.ErrCodeApplicationNotFound))

	f.repo.statusErr = stderrors.New("connection reset by peer")
	_, _, err = f.svc.ChangeStatus(ctx, "app-1", models.StatusApproved, "ops")
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))

	app, _ := f.store.Get(ctx, "app-1")
	assert.Equal(t, models.StatusDraft, app.Status)
	assert.Len(t, app.Timeline, 1)
	assert.Empty(t, f.notifier.processes)
}

func TestChangeStatus_NotifierFailureIsNotFatal(t *testing.T) {
	f := setup(t)
	f.notifier.err = errors.NewWorkflowStartFailedError("loan-status-notification", stderrors.New("unavailable"))

	app, notice, err := f.svc.ChangeStatus(context.Background(), "app-1", models.StatusPreApproved, "ops")
	require.NoError(t, err)
	assert.NotNil(t, notice)
	assert.Equal(t, models.StatusPreApproved, app.Status)
}

// ==========================
// Priority and files
// ==========================

func TestSetPriority(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	app, notice, err := f.svc.SetPriority(ctx, "app-1", models.PriorityHigh, "ops")
	require.NoError(t, err)
	assert.NotEmpty(t, notice.Message)
	assert.Equal(t, models.PriorityHigh, app.Priority)
	assert.Equal(t, models.StatusDraft, app.Status)
	assert.Equal(t, models.PriorityHigh, f.repo.priority)
	assert.Len(t, app.Timeline, 1)

	_, _, err = f.svc.SetPriority(ctx, "app-1", "urgent", "ops")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidPriority))
}

func TestSetFileVerification_RejectedThenVerified(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, first, err := f.svc.SetFileVerification(ctx, "app-1", "file-1", models.VerificationRejected, "ops")
	require.NoError(t, err)
	app, second, err := f.svc.SetFileVerification(ctx, "app-1", "file-1", models.VerificationVerified, "ops")
	require.NoError(t, err)

	assert.NotEmpty(t, first.Message)
	assert.NotEmpty(t, second.Message)
	assert.Equal(t, models.VerificationVerified, app.Files[0].VerificationStatus)
	assert.Equal(t, models.VerificationVerified, f.repo.verified["file-1"])
}

func TestSetFileVerification_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, _, err := f.svc.SetFileVerification(ctx, "app-1", "file-1", "maybe", "ops")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidVerificationStatus))

	_, _, err = f.svc.SetFileVerification(ctx, "app-1", "nope", models.VerificationVerified, "ops")
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}

func TestSetFileVerification_CommitsPendingUploadFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.store.apps["app-1"].Files = append(f.store.apps["app-1"].Files,
		models.UploadedFile{ID: "file-2", DocumentID: "payslips", Name: "march.pdf", VerificationStatus: models.VerificationPending})
	f.store.dirty = map[string]bool{"app-1": true}

	app, _, err := f.svc.SetFileVerification(ctx, "app-1", "file-2", models.VerificationVerified, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.commits)
	assert.False(t, f.store.Dirty("app-1"))
	assert.Equal(t, models.VerificationVerified, f.repo.verified["file-2"])
	assert.Equal(t, models.VerificationVerified, app.Files[1].VerificationStatus)

	_, _, err = f.svc.SetFileVerification(ctx, "app-1", "file-2", models.VerificationRejected, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.commits)
}

func TestFileWrites_PendingCommitFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.store.dirty = map[string]bool{"app-1": true}
	f.store.commitErr = errors.NewDatabaseWriteFailedError("save_application", stderrors.New("timeout"))

	_, _, err := f.svc.SetFileVerification(ctx, "app-1", "file-1", models.VerificationVerified, "ops")
	assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseWriteFailed))
	assert.True(t, errors.IsRetryable(err))

	_, _, err = f.svc.SetSignatureRequired(ctx, "app-1", "file-1", true, "ops")
	assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseWriteFailed))

	assert.Empty(t, f.repo.verified)
	assert.Empty(t, f.repo.signature)
	assert.True(t, f.store.Dirty("app-1"))

	app, _ := f.store.Get(ctx, "app-1")
	assert.Equal(t, models.VerificationPending, app.Files[0].VerificationStatus)
	assert.False(t, app.Files[0].SignatureRequired)
}

func TestSetSignatureRequired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	app, notice, err := f.svc.SetSignatureRequired(ctx, "app-1", "file-1", true, "ops")
	require.NoError(t, err)
	assert.Equal(t, "Signature requested", notice.Message)
	assert.True(t, app.Files[0].SignatureRequired)
	assert.Equal(t, models.VerificationPending, app.Files[0].VerificationStatus)

	app, _, err = f.svc.SetSignatureRequired(ctx, "app-1", "file-1", false, "ops")
	require.NoError(t, err)
	assert.False(t, app.Files[0].SignatureRequired)
	assert.False(t, f.repo.signature["file-1"])
}

func TestConcurrentMutationsOnDifferentTargets(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, _, _ = f.svc.ChangeStatus(ctx, "app-1", models.StatusPendingReview, "ops")
	}()
	go func() {
		defer wg.Done()
		_, _, _ = f.svc.SetPriority(ctx, "app-1", models.PriorityLow, "ops")
	}()
	go func() {
		defer wg.Done()
		_, _, _ = f.svc.SetSignatureRequired(ctx, "app-1", "file-1", true, "ops")
	}()
	wg.Wait()

	app, _ := f.store.Get(ctx, "app-1")
	assert.Equal(t, models.StatusPendingReview, app.Status)
	assert.Equal(t, models.PriorityLow, app.Priority)
	assert.True(t, app.Files[0].SignatureRequired)
	assert.Empty(t, f.svc.Pending("app-1"))
}

// ==========================
// Submit
// ==========================

func TestSubmit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, _, err := f.svc.Submit(ctx, "app-1")
	require.Error(t, err)
	std := errors.AsStandard(err)
	assert.Equal(t, errors.ErrCodeValidationFailed, std.Code)
	require.NotEmpty(t, std.FieldErrors)
	assert.Equal(t, "personal.firstName", std.FieldErrors[0].Field)

	f.store.apps["app-1"].Sections[models.SectionPersonal] = map[string]interface{}{"firstName": "Ada"}
	f.store.apps["app-1"].Sections[models.SectionLoanRequirements] = map[string]interface{}{"loanAmount": 750000.0, "settlementDays": 21.0}

	app, notice, err := f.svc.Submit(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "Application submitted for review", notice.Message)
	assert.Equal(t, models.StatusPendingReview, app.Status)
	assert.Equal(t, models.ActorApplicant, app.Timeline[len(app.Timeline)-1].Actor)
	assert.Equal(t, 1, f.store.commits)
	assert.Equal(t, []string{"loan-application-review"}, f.notifier.processes)
	assert.Equal(t, 750000.0, f.notifier.vars[0]["loanAmount"])

	_, _, err = f.svc.Submit(ctx, "app-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadySubmitted))
}

func TestSubmit_ResubmitFromNeedsAttention(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.store.apps["app-1"].Sections[models.SectionPersonal] = map[string]interface{}{"firstName": "Ada"}
	f.store.apps["app-1"].Status = models.StatusNeedsAttention

	app, notice, err := f.svc.Submit(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "Application resubmitted for review", notice.Message)
	assert.Equal(t, models.StatusPendingReview, app.Status)
	last := app.Timeline[len(app.Timeline)-1]
	assert.Equal(t, "Application resubmitted for review", last.Description)
	assert.Equal(t, models.ActorApplicant, last.Actor)
	assert.Equal(t, []models.ApplicationStatus{models.StatusPendingReview}, f.repo.statuses)
	assert.Equal(t, []string{"loan-application-review"}, f.notifier.processes)
}

func TestSubmit_LockedStatuses(t *testing.T) {
	for _, status := range []models.ApplicationStatus{models.StatusPendingReview, models.StatusPreApproved, models.StatusApproved, models.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			f := setup(t)
			f.store.apps["app-1"].Sections[models.SectionPersonal] = map[string]interface{}{"firstName": "Ada"}
			f.store.apps["app-1"].Status = status

			_, _, err := f.svc.Submit(context.Background(), "app-1")
			assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadySubmitted))
			assert.Empty(t, f.repo.statuses)
		})
	}
}

func TestSubmit_CommitFailureStops(t *testing.T) {
	f := setup(t)
	f.store.apps["app-1"].Sections[models.SectionPersonal] = map[string]interface{}{"firstName": "Ada"}
	f.store.commitErr = errors.NewDatabaseWriteFailedError("save_application", stderrors.New("timeout"))

	_, _, err := f.svc.Submit(context.Background(), "app-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseWriteFailed))
	assert.Empty(t, f.repo.statuses)
}
