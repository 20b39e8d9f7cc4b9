package httpapi

import (
	"net/http"
	"strconv"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/loan/documents"
	"loan-intake/internal/loan/steps"
	"loan-intake/internal/models"

	"github.com/gin-gonic/gin"
)

// POST /api/applications
func (s *Server) createApplication(c *gin.Context) {
	app, err := s.intake.Create(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusCreated, app, "Application created")
}

// GET /api/applications/:id
func (s *Server) getApplication(c *gin.Context) {
	app, err := s.intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, app, "")
}

// PUT /api/applications/:id/sections/:section
func (s *Server) saveSection(c *gin.Context) {
	var answers map[string]interface{}
	if err := c.ShouldBindJSON(&answers); err != nil {
		badBody(c, err)
		return
	}

	app, err := s.intake.SaveSection(c.Request.Context(), c.Param("id"), c.Param("section"), answers)
	if err != nil {
		fail(c, err, app)
		return
	}
	ok(c, http.StatusOK, app, "Section saved")
}

// GET /api/applications/:id/steps?current=
func (s *Server) getSteps(c *gin.Context) {
	view, err := s.intake.Steps(c.Request.Context(), c.Param("id"), steps.StepID(c.Query("current")))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, view, "")
}

// POST /api/applications/:id/submit
func (s *Server) submit(c *gin.Context) {
	app, n, err := s.review.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, app)
		return
	}
	ok(c, http.StatusOK, app, notice(n))
}

// GET /api/applications/:id/documents
func (s *Server) listDocuments(c *gin.Context) {
	set, err := s.documents.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, set, "")
}

// GET /api/applications/:id/documents/navigate?category=&index=&direction=
func (s *Server) navigateDocuments(c *gin.Context) {
	pos := steps.Overview()
	if category := c.Query("category"); category != "" && category != "overview" {
		index := 0
		if raw := c.Query("index"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				fail(c, errors.NewValidationError("Invalid document index", []errors.FieldError{
					{Field: "index", Message: "must be a non-negative integer"},
				}), nil)
				return
			}
			index = n
		}
		pos = steps.Position{Category: models.DocumentCategory(category), Index: index}
	}

	nav, err := s.documents.Navigate(c.Request.Context(), c.Param("id"), pos, c.DefaultQuery("direction", "next"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, nav, "")
}

// POST /api/applications/:id/documents/:documentId/files (multipart "file")
func (s *Server) uploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, errors.NewValidationError("Please choose a file to upload", []errors.FieldError{
			{Field: "file", Message: "required"},
		}), nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, errors.NewStorageUploadFailedError(fh.Filename, err), nil)
		return
	}
	defer f.Close()

	set, err := s.documents.Upload(c.Request.Context(), c.Param("id"), c.Param("documentId"), documents.FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		fail(c, err, set)
		return
	}
	ok(c, http.StatusCreated, set, "File uploaded")
}

// DELETE /api/applications/:id/documents/:documentId/files/:fileId
func (s *Server) removeFile(c *gin.Context) {
	set, err := s.documents.Remove(c.Request.Context(), c.Param("id"), c.Param("documentId"), c.Param("fileId"))
	if err != nil {
		fail(c, err, set)
		return
	}
	ok(c, http.StatusOK, set, "File removed")
}

// GET /api/applications/:id/offers?sort=
func (s *Server) listOffers(c *gin.Context) {
	quotes, err := s.offers.List(c.Request.Context(), c.Param("id"), c.Query("sort"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, quotes, "")
}

// POST /api/applications/:id/offers/:offerId/select
func (s *Server) selectOffer(c *gin.Context) {
	app, err := s.offers.Select(c.Request.Context(), c.Param("id"), c.Param("offerId"))
	if err != nil {
		fail(c, err, app)
		return
	}
	ok(c, http.StatusOK, app, "Loan offer selected")
}
