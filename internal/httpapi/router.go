// Package httpapi exposes the applicant wizard and the admin review
// dashboard over JSON.
package httpapi

import (
	"context"
	"time"

	"loan-intake/internal/common/config"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/loan/documents"
	"loan-intake/internal/loan/intake"
	"loan-intake/internal/loan/steps"
	"loan-intake/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IntakeService interface {
	Create(ctx context.Context) (*models.LoanApplication, error)
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	SaveSection(ctx context.Context, id, section string, answers map[string]interface{}) (*models.LoanApplication, error)
	Steps(ctx context.Context, id string, current steps.StepID) (*intake.StepView, error)
}

type DocumentService interface {
	List(ctx context.Context, appID string) (*documents.DocumentSet, error)
	Navigate(ctx context.Context, appID string, pos steps.Position, direction string) (*documents.Navigation, error)
	Upload(ctx context.Context, appID, documentID string, in documents.FileUpload) (*documents.DocumentSet, error)
	Remove(ctx context.Context, appID, documentID, fileID string) (*documents.DocumentSet, error)
}

type OfferService interface {
	List(ctx context.Context, appID, sortBy string) ([]models.OfferQuote, error)
	Select(ctx context.Context, appID, offerID string) (*models.LoanApplication, error)
}

type ReviewService interface {
	Submit(ctx context.Context, appID string) (*models.LoanApplication, *models.Notice, error)
	ChangeStatus(ctx context.Context, appID string, status models.ApplicationStatus, actor string) (*models.LoanApplication, *models.Notice, error)
	SetPriority(ctx context.Context, appID string, priority models.Priority, actor string) (*models.LoanApplication, *models.Notice, error)
	SetFileVerification(ctx context.Context, appID, fileID string, status models.VerificationStatus, actor string) (*models.LoanApplication, *models.Notice, error)
	SetSignatureRequired(ctx context.Context, appID, fileID string, required bool, actor string) (*models.LoanApplication, *models.Notice, error)
	Pending(appID string) []string
}

type SearchService interface {
	List(ctx context.Context, q models.ListQuery) (*models.ListResult, error)
	TabCounts(ctx context.Context, text string) (*models.TabCounts, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Deps are the services behind the routes.
type Deps struct {
	Intake    IntakeService
	Documents DocumentService
	Offers    OfferService
	Review    ReviewService
	Search    SearchService
	Checks    map[string]Check
	Logger    logger.Logger
}

type Server struct {
	intake    IntakeService
	documents DocumentService
	offers    OfferService
	review    ReviewService
	search    SearchService
	checks    map[string]Check
	logger    logger.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps, cfg config.HTTPConfig) *gin.Engine {
	s := &Server{
		intake:    d.Intake,
		documents: d.Documents,
		offers:    d.Offers,
		review:    d.Review,
		search:    d.Search,
		checks:    d.Checks,
		logger:    d.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(d.Logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", AdminUserHeader, RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		apps := api.Group("/applications")
		apps.POST("", s.createApplication)
		apps.GET("/:id", s.getApplication)
		apps.PUT("/:id/sections/:section", s.saveSection)
		apps.GET("/:id/steps", s.getSteps)
		apps.POST("/:id/submit", s.submit)

		apps.GET("/:id/documents", s.listDocuments)
		apps.GET("/:id/documents/navigate", s.navigateDocuments)
		apps.POST("/:id/documents/:documentId/files", s.uploadFile)
		apps.DELETE("/:id/documents/:documentId/files/:fileId", s.removeFile)

		apps.GET("/:id/offers", s.listOffers)
		apps.POST("/:id/offers/:offerId/select", s.selectOffer)
	}

	admin := api.Group("/admin/applications")
	{
		admin.GET("", s.adminList)
		admin.GET("/tabs", s.adminTabs)
		admin.GET("/stats", s.adminStats)
		admin.GET("/:id", s.adminGet)
		admin.GET("/:id/pending", s.adminPending)
		admin.PATCH("/:id/status", s.adminStatus)
		admin.PATCH("/:id/priority", s.adminPriority)
		admin.PATCH("/:id/files/:fileId/verification", s.adminVerification)
		admin.PATCH("/:id/files/:fileId/signature", s.adminSignature)
	}

	return r
}
