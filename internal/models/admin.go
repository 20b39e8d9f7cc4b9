// internal/models/admin.go
package models

import "time"

// ApplicationSummary is the admin list projection of an application.
type ApplicationSummary struct {
	ID               string            `json:"id"`
	ApplicantName    string            `json:"applicantName"`
	Email            string            `json:"email"`
	Status           ApplicationStatus `json:"status"`
	Priority         Priority          `json:"priority"`
	LoanAmount       float64           `json:"loanAmount"`
	PropertyValue    float64           `json:"propertyValue"`
	DocumentProgress int               `json:"documentProgress"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// SummaryOf builds the projection of app.
func SummaryOf(app *LoanApplication) ApplicationSummary {
	return ApplicationSummary{
		ID:               app.ID,
		ApplicantName:    app.ApplicantName(),
		Email:            app.StringField(SectionPersonal, "email"),
		Status:           app.Status,
		Priority:         app.Priority,
		LoanAmount:       app.NumberField(SectionLoanRequirements, "loanAmount"),
		PropertyValue:    app.NumberField(SectionProperty, "estimatedValue"),
		DocumentProgress: app.DocumentProgress,
		CreatedAt:        app.CreatedAt,
		UpdatedAt:        app.UpdatedAt,
	}
}

// ListQuery filters, sorts and pages the admin list.
type ListQuery struct {
	Status   ApplicationStatus `form:"status"`
	Priority Priority          `form:"priority"`
	Search   string            `form:"q"`
	Sort     string            `form:"sort"`
	Order    string            `form:"order"`
	Page     int               `form:"page"`
	PageSize int               `form:"pageSize"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize fills defaults and clamps paging.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	switch q.Sort {
	case "createdAt", "updatedAt", "loanAmount", "documentProgress", "priority", "applicantName":
	default:
		q.Sort = "createdAt"
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}
}

type ListResult struct {
	Items    []ApplicationSummary `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

// TabCounts is the number of applications per status plus the overall total.
type TabCounts struct {
	All      int                       `json:"all"`
	ByStatus map[ApplicationStatus]int `json:"byStatus"`
}

type Stats struct {
	Total             int                       `json:"total"`
	ByStatus          map[ApplicationStatus]int `json:"byStatus"`
	ByPriority        map[Priority]int          `json:"byPriority"`
	AverageLoanAmount float64                   `json:"averageLoanAmount"`
	AverageProgress   float64                   `json:"averageProgress"`
	SubmittedLast7d   int                       `json:"submittedLast7d"`
}

// Notice is the success message returned by a mutation.
type Notice struct {
	Message string `json:"message"`
}
