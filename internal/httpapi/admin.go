package httpapi

import (
	"net/http"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/loan/documents"
	"loan-intake/internal/models"

	"github.com/gin-gonic/gin"
)

// adminDetail is an application with its merged documents and busy targets.
type adminDetail struct {
	Application *models.LoanApplication `json:"application"`
	Documents   *documents.DocumentSet  `json:"documents"`
	Pending     []string                `json:"pending"`
}

// GET /api/admin/applications
func (s *Server) adminList(c *gin.Context) {
	var q models.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badBody(c, err)
		return
	}
	if q.Status != "" && !q.Status.Valid() {
		fail(c, errors.NewInvalidStatusError(string(q.Status)), nil)
		return
	}
	if q.Priority != "" && !q.Priority.Valid() {
		fail(c, errors.NewInvalidPriorityError(string(q.Priority)), nil)
		return
	}

	result, err := s.search.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, result, "")
}

// GET /api/admin/applications/tabs?q=
func (s *Server) adminTabs(c *gin.Context) {
	counts, err := s.search.TabCounts(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, counts, "")
}

// GET /api/admin/applications/stats
func (s *Server) adminStats(c *gin.Context) {
	stats, err := s.search.Stats(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, stats, "")
}

// GET /api/admin/applications/:id
func (s *Server) adminGet(c *gin.Context) {
	id := c.Param("id")
	app, err := s.intake.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, nil)
		return
	}
	set, err := s.documents.List(c.Request.Context(), id)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, adminDetail{Application: app, Documents: set, Pending: s.pending(id)}, "")
}

// GET /api/admin/applications/:id/pending
func (s *Server) adminPending(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"pending": s.pending(c.Param("id"))}, "")
}

func (s *Server) pending(id string) []string {
	p := s.review.Pending(id)
	if p == nil {
		return []string{}
	}
	return p
}

// PATCH /api/admin/applications/:id/status {status}
func (s *Server) adminStatus(c *gin.Context) {
	var body struct {
		Status models.ApplicationStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	app, n, err := s.review.ChangeStatus(c.Request.Context(), c.Param("id"), body.Status, adminActor(c))
	s.reviewResult(c, app, n, err)
}

// PATCH /api/admin/applications/:id/priority {priority}
func (s *Server) adminPriority(c *gin.Context) {
	var body struct {
		Priority models.Priority `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	app, n, err := s.review.SetPriority(c.Request.Context(), c.Param("id"), body.Priority, adminActor(c))
	s.reviewResult(c, app, n, err)
}

// PATCH /api/admin/applications/:id/files/:fileId/verification {status}
func (s *Server) adminVerification(c *gin.Context) {
	var body struct {
		Status models.VerificationStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	app, n, err := s.review.SetFileVerification(c.Request.Context(), c.Param("id"), c.Param("fileId"), body.Status, adminActor(c))
	s.reviewResult(c, app, n, err)
}

// PATCH /api/admin/applications/:id/files/:fileId/signature {required}
func (s *Server) adminSignature(c *gin.Context) {
	var body struct {
		Required *bool `json:"required" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	app, n, err := s.review.SetSignatureRequired(c.Request.Context(), c.Param("id"), c.Param("fileId"), *body.Required, adminActor(c))
	s.reviewResult(c, app, n, err)
}

func (s *Server) reviewResult(c *gin.Context, app *models.LoanApplication, n *models.Notice, err error) {
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, app, notice(n))
}
