package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-intake/internal/common/config"
	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/loan/documents"
	"loan-intake/internal/loan/intake"
	"loan-intake/internal/loan/steps"
	"loan-intake/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==========================
// Mocks
// ==========================

type MockIntake struct {
	CreateFunc      func(ctx context.Context) (*models.LoanApplication, error)
	GetFunc         func(ctx context.Context, id string) (*models.LoanApplication, error)
	SaveSectionFunc func(ctx context.Context, id, section string, answers map[string]interface{}) (*models.LoanApplication, error)
	StepsFunc       func(ctx context.Context, id string, current steps.StepID) (*intake.StepView, error)
}

func (m *MockIntake) Create(ctx context.Context) (*models.LoanApplication, error) {
	return m.CreateFunc(ctx)
}

func (m *MockIntake) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockIntake) SaveSection(ctx context.Context, id, section string, answers map[string]interface{}) (*models.LoanApplication, error) {
	return m.SaveSectionFunc(ctx, id, section, answers)
}

func (m *MockIntake) Steps(ctx context.Context, id string, current steps.StepID) (*intake.StepView, error) {
	return m.StepsFunc(ctx, id, current)
}

type MockDocuments struct {
	ListFunc     func(ctx context.Context, appID string) (*documents.DocumentSet, error)
	NavigateFunc func(ctx context.Context, appID string, pos steps.Position, direction string) (*documents.Navigation, error)
	UploadFunc   func(ctx context.Context, appID, documentID string, in documents.FileUpload) (*documents.DocumentSet, error)
	RemoveFunc   func(ctx context.Context, appID, documentID, fileID string) (*documents.DocumentSet, error)
}

func (m *MockDocuments) List(ctx context.Context, appID string) (*documents.DocumentSet, error) {
	return m.ListFunc(ctx, appID)
}

func (m *MockDocuments) Navigate(ctx context.Context, appID string, pos steps.Position, direction string) (*documents.Navigation, error) {
	return m.NavigateFunc(ctx, appID, pos, direction)
}

func (m *MockDocuments) Upload(ctx context.Context, appID, documentID string, in documents.FileUpload) (*documents.DocumentSet, error) {
	return m.UploadFunc(ctx, appID, documentID, in)
}

func (m *MockDocuments) Remove(ctx context.Context, appID, documentID, fileID string) (*documents.DocumentSet, error) {
	return m.RemoveFunc(ctx, appID, documentID, fileID)
}

type MockOffers struct {
	ListFunc   func(ctx context.Context, appID, sortBy string) ([]models.OfferQuote, error)
	SelectFunc func(ctx context.Context, appID, offerID string) (*models.LoanApplication, error)
}

func (m *MockOffers) List(ctx context.Context, appID, sortBy string) ([]models.OfferQuote, error) {
	return m.ListFunc(ctx, appID, sortBy)
}

func (m *MockOffers) Select(ctx context.Context, appID, offerID string) (*models.LoanApplication, error) {
	return m.SelectFunc(ctx, appID, offerID)
}

type reviewCall struct {
	kind, appID, target, value, actor string
}

type MockReview struct {
	calls   []reviewCall
	err     error
	pending []string
}

func (m *MockReview) result(call reviewCall, msg string) (*models.LoanApplication, *models.Notice, error) {
	m.calls = append(m.calls, call)
	if m.err != nil {
		return nil, nil, m.err
	}
	return models.NewApplication(call.appID, time.Now()), &models.Notice{Message: msg}, nil
}

func (m *MockReview) Submit(_ context.Context, appID string) (*models.LoanApplication, *models.Notice, error) {
	return m.result(reviewCall{kind: "submit", appID: appID}, "Application submitted for review")
}

func (m *MockReview) ChangeStatus(_ context.Context, appID string, status models.ApplicationStatus, actor string) (*models.LoanApplication, *models.Notice, error) {
	if !status.Valid() {
		return nil, nil, errors.NewInvalidStatusError(string(status))
	}
	return m.result(reviewCall{"status", appID, "status", string(status), actor}, "Application status updated to "+status.Label())
}

func (m *MockReview) SetPriority(_ context.Context, appID string, priority models.Priority, actor string) (*models.LoanApplication, *models.Notice, error) {
	return m.result(reviewCall{"priority", appID, "priority", string(priority), actor}, "Priority set to "+string(priority))
}

func (m *MockReview) SetFileVerification(_ context.Context, appID, fileID string, status models.VerificationStatus, actor string) (*models.LoanApplication, *models.Notice, error) {
	return m.result(reviewCall{"verification", appID, fileID, string(status), actor}, "File marked as "+string(status))
}

func (m *MockReview) SetSignatureRequired(_ context.Context, appID, fileID string, required bool, actor string) (*models.LoanApplication, *models.Notice, error) {
	v := "false"
	if required {
		v = "true"
	}
	return m.result(reviewCall{"signature", appID, fileID, v, actor}, "Signature requested")
}

func (m *MockReview) Pending(string) []string { return m.pending }

type MockSearch struct {
	lastQuery models.ListQuery
	err       error
}

func (m *MockSearch) List(_ context.Context, q models.ListQuery) (*models.ListResult, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return &models.ListResult{Items: []models.ApplicationSummary{{ID: "app-1"}}, Total: 1, Page: 1, PageSize: 20}, nil
}

func (m *MockSearch) TabCounts(_ context.Context, _ string) (*models.TabCounts, error) {
	return &models.TabCounts{All: 3, ByStatus: map[models.ApplicationStatus]int{models.StatusDraft: 3}}, nil
}

func (m *MockSearch) Stats(_ context.Context) (*models.Stats, error) {
	return &models.Stats{Total: 3}, m.err
}

// ==========================
// Test Helper Functions
// ==========================

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  []errors.FieldError `json:"errors"`
}

type testServer struct {
	router  *gin.Engine
	intake  *MockIntake
	docs    *MockDocuments
	offers  *MockOffers
	review  *MockReview
	search  *MockSearch
	checkOK bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		intake: &MockIntake{
			GetFunc: func(_ context.Context, id string) (*models.LoanApplication, error) {
				if id != "app-1" {
					return nil, errors.NewApplicationNotFoundError(id)
				}
				return models.NewApplication(id, time.Now()), nil
			},
		},
		docs:    &MockDocuments{},
		offers:  &MockOffers{},
		review:  &MockReview{},
		search:  &MockSearch{},
		checkOK: true,
	}
	ts.router = NewRouter(Deps{
		Intake:    ts.intake,
		Documents: ts.docs,
		Offers:    ts.offers,
		Review:    ts.review,
		Search:    ts.search,
		Checks: map[string]Check{
			"postgres": func(context.Context) error {
				if !ts.checkOK {
					return stderrors.New("connection refused")
				}
				return nil
			},
		},
		Logger: logger.NewTestLogger(t),
	}, config.HTTPConfig{AllowedOrigins: []string{"http://localhost:3000"}})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// ==========================
// Applicant Routes
// ==========================

func TestCreateAndGetApplication(t *testing.T) {
	ts := newTestServer(t)
	ts.intake.CreateFunc = func(context.Context) (*models.LoanApplication, error) {
		return models.NewApplication("app-1", time.Now()), nil
	}

	rec, env := ts.do(t, http.MethodPost, "/api/applications", nil, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Application created", env.Message)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec, env = ts.do(t, http.MethodGet, "/api/applications/app-1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var app models.LoanApplication
	require.NoError(t, json.Unmarshal(env.Data, &app))
	assert.Equal(t, models.StatusDraft, app.Status)

	rec, env = ts.do(t, http.MethodGet, "/api/applications/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Application not found", env.Message)
}

func TestSaveSection(t *testing.T) {
	ts := newTestServer(t)
	var gotSection string
	var gotAnswers map[string]interface{}
	ts.intake.SaveSectionFunc = func(_ context.Context, id, section string, answers map[string]interface{}) (*models.LoanApplication, error) {
		gotSection, gotAnswers = section, answers
		return models.NewApplication(id, time.Now()), nil
	}

	rec, env := ts.do(t, http.MethodPut, "/api/applications/app-1/sections/loan-requirements",
		jsonBody(map[string]interface{}{"loanAmount": 500000}), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "loan-requirements", gotSection)
	assert.Equal(t, 500000.0, gotAnswers["loanAmount"])
}

func TestSaveSection_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.intake.SaveSectionFunc = func(context.Context, string, string, map[string]interface{}) (*models.LoanApplication, error) {
		return nil, errors.NewValidationError("Please fix the highlighted fields", []errors.FieldError{{Field: "email", Message: "required"}})
	}

	rec, env := ts.do(t, http.MethodPut, "/api/applications/app-1/sections/personal", jsonBody(map[string]interface{}{}), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, []errors.FieldError{{Field: "email", Message: "required"}}, env.Errors)
	assert.Empty(t, env.Data)
}

func TestSaveSection_PersistFailureReturnsData(t *testing.T) {
	ts := newTestServer(t)
	ts.intake.SaveSectionFunc = func(_ context.Context, id, _ string, _ map[string]interface{}) (*models.LoanApplication, error) {
		app := models.NewApplication(id, time.Now())
		app.Completion[models.SectionPersonal] = true
		return app, errors.NewDatabaseWriteFailedError("save_application", stderrors.New("timeout"))
	}

	rec, env := ts.do(t, http.MethodPut, "/api/applications/app-1/sections/personal", jsonBody(map[string]interface{}{"firstName": "Sam"}), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, env.Success)
	var app models.LoanApplication
	require.NoError(t, json.Unmarshal(env.Data, &app))
	assert.True(t, app.Completion[models.SectionPersonal])
}

func TestSaveSection_BadJSON(t *testing.T) {
	ts := newTestServer(t)
	rec, env := ts.do(t, http.MethodPut, "/api/applications/app-1/sections/personal", bytes.NewReader([]byte("{")), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid request body", env.Message)
}

func TestGetSteps(t *testing.T) {
	ts := newTestServer(t)
	ts.intake.StepsFunc = func(_ context.Context, id string, current steps.StepID) (*intake.StepView, error) {
		return &intake.StepView{ApplicationID: id, Current: current}, nil
	}

	_, env := ts.do(t, http.MethodGet, "/api/applications/app-1/steps?current=employment", nil, nil)
	var view intake.StepView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, steps.StepEmployment, view.Current)
}

func TestSubmit(t *testing.T) {
	ts := newTestServer(t)
	rec, env := ts.do(t, http.MethodPost, "/api/applications/app-1/submit", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Application submitted for review", env.Message)

	ts.review.err = errors.NewAlreadySubmittedError("app-1")
	rec, env = ts.do(t, http.MethodPost, "/api/applications/app-1/submit", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Application has already been submitted", env.Message)
}

func TestNavigateDocuments(t *testing.T) {
	ts := newTestServer(t)
	var gotPos steps.Position
	var gotDir string
	ts.docs.NavigateFunc = func(_ context.Context, _ string, pos steps.Position, direction string) (*documents.Navigation, error) {
		gotPos, gotDir = pos, direction
		return &documents.Navigation{Position: pos}, nil
	}

	rec, _ := ts.do(t, http.MethodGet, "/api/applications/app-1/documents/navigate?category=income&index=1&direction=previous", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, steps.Position{Category: models.CategoryIncome, Index: 1}, gotPos)
	assert.Equal(t, "previous", gotDir)

	ts.do(t, http.MethodGet, "/api/applications/app-1/documents/navigate", nil, nil)
	assert.Equal(t, steps.Overview(), gotPos)
	assert.Equal(t, "next", gotDir)

	rec, _ = ts.do(t, http.MethodGet, "/api/applications/app-1/documents/navigate?category=income&index=x", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadFile(t *testing.T) {
	ts := newTestServer(t)
	var got documents.FileUpload
	var content string
	ts.docs.UploadFunc = func(_ context.Context, appID, documentID string, in documents.FileUpload) (*documents.DocumentSet, error) {
		got = in
		b, _ := io.ReadAll(in.Body)
		content = string(b)
		return &documents.DocumentSet{ApplicationID: appID, Progress: 25}, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "payslip.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	rec, env := ts.do(t, http.MethodPost, "/api/applications/app-1/documents/payslips/files", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "payslip.pdf", got.Name)
	assert.Equal(t, int64(8), got.Size)
	assert.Equal(t, "%PDF-1.4", content)
}

func TestUploadFile_MissingFile(t *testing.T) {
	ts := newTestServer(t)
	rec, env := ts.do(t, http.MethodPost, "/api/applications/app-1/documents/payslips/files", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Please choose a file to upload", env.Message)
}

func TestRemoveFile_PersistFailureKeepsSet(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.RemoveFunc = func(_ context.Context, appID, _, _ string) (*documents.DocumentSet, error) {
		return &documents.DocumentSet{ApplicationID: appID, Progress: 0},
			errors.NewDatabaseWriteFailedError("remove", stderrors.New("down"))
	}

	rec, env := ts.do(t, http.MethodDelete, "/api/applications/app-1/documents/payslips/files/f-1", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, env.Success)
	var set documents.DocumentSet
	require.NoError(t, json.Unmarshal(env.Data, &set))
	assert.Equal(t, "app-1", set.ApplicationID)
}

func TestOffers(t *testing.T) {
	ts := newTestServer(t)
	var gotSort string
	ts.offers.ListFunc = func(_ context.Context, _, sortBy string) ([]models.OfferQuote, error) {
		gotSort = sortBy
		return []models.OfferQuote{}, nil
	}
	ts.offers.SelectFunc = func(_ context.Context, _, offerID string) (*models.LoanApplication, error) {
		return nil, errors.NewOfferNotFoundError(offerID)
	}

	rec, _ := ts.do(t, http.MethodGet, "/api/applications/app-1/offers?sort=repayment", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "repayment", gotSort)

	rec, env := ts.do(t, http.MethodPost, "/api/applications/app-1/offers/ghost/select", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

// ==========================
// Admin Routes
// ==========================

func TestAdminList(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/admin/applications?status=pending_review&q=lee&sort=loanAmount&order=asc&page=2&pageSize=10", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, models.ListQuery{
		Status: models.StatusPendingReview, Search: "lee", Sort: "loanAmount", Order: "asc", Page: 2, PageSize: 10,
	}, ts.search.lastQuery)

	rec, env = ts.do(t, http.MethodGet, "/api/admin/applications?status=archived", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, env.Success)
}

func TestAdminList_SearchDown(t *testing.T) {
	ts := newTestServer(t)
	ts.search.err = errors.NewSearchQueryFailedError(stderrors.New("503"))

	rec, env := ts.do(t, http.MethodGet, "/api/admin/applications", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, env.Success)
}

func TestAdminTabsAndStats(t *testing.T) {
	ts := newTestServer(t)

	_, env := ts.do(t, http.MethodGet, "/api/admin/applications/tabs", nil, nil)
	var tabs models.TabCounts
	require.NoError(t, json.Unmarshal(env.Data, &tabs))
	assert.Equal(t, 3, tabs.All)

	rec, _ := ts.do(t, http.MethodGet, "/api/admin/applications/stats", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminGet(t *testing.T) {
	ts := newTestServer(t)
	ts.review.pending = []string{"status"}
	ts.docs.ListFunc = func(_ context.Context, appID string) (*documents.DocumentSet, error) {
		return &documents.DocumentSet{ApplicationID: appID, Progress: 50}, nil
	}

	_, env := ts.do(t, http.MethodGet, "/api/admin/applications/app-1", nil, nil)
	var detail adminDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "app-1", detail.Application.ID)
	assert.Equal(t, 50, detail.Documents.Progress)
	assert.Equal(t, []string{"status"}, detail.Pending)

	ts.review.pending = nil
	_, env = ts.do(t, http.MethodGet, "/api/admin/applications/app-1/pending", nil, nil)
	assert.JSONEq(t, `{"pending": []}`, string(env.Data))
}

func TestAdminMutations(t *testing.T) {
	ts := newTestServer(t)
	admin := map[string]string{AdminUserHeader: "jordan"}

	rec, env := ts.do(t, http.MethodPatch, "/api/admin/applications/app-1/status", jsonBody(map[string]string{"status": "needs_attention"}), admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Application status updated to Needs Attention", env.Message)

	ts.do(t, http.MethodPatch, "/api/admin/applications/app-1/priority", jsonBody(map[string]string{"priority": "high"}), admin)
	ts.do(t, http.MethodPatch, "/api/admin/applications/app-1/files/f-1/verification", jsonBody(map[string]string{"status": "verified"}), admin)
	ts.do(t, http.MethodPatch, "/api/admin/applications/app-1/files/f-1/signature", jsonBody(map[string]bool{"required": false}), nil)

	assert.Equal(t, []reviewCall{
		{"status", "app-1", "status", "needs_attention", "jordan"},
		{"priority", "app-1", "priority", "high", "jordan"},
		{"verification", "app-1", "f-1", "verified", "jordan"},
		{"signature", "app-1", "f-1", "false", ""},
	}, ts.review.calls)
}

func TestAdminMutations_BadInput(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPatch, "/api/admin/applications/app-1/status", jsonBody(map[string]string{"status": "archived"}), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = ts.do(t, http.MethodPatch, "/api/admin/applications/app-1/signature", jsonBody(map[string]string{}), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := ts.do(t, http.MethodPatch, "/api/admin/applications/app-1/files/f-1/signature", jsonBody(map[string]string{}), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid request body", env.Message)
	assert.Empty(t, ts.review.calls)
}

// ==========================
// Ops Routes
// ==========================

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.checkOK = false
	rec, _ = ts.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", nil, nil)

	rec, _ := ts.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loan_http_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(t, http.MethodGet, "/health", nil, map[string]string{RequestIDHeader: "abc123"})
	assert.Equal(t, "abc123", rec.Header().Get(RequestIDHeader))
}
