// internal/workers/application/validate-application-data/models.go
package validateapplicationdata

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID    string            `json:"applicationId"`
	IsValid          bool              `json:"isValid"`
	DocumentProgress int               `json:"documentProgress"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeMissingDocument = "missing_document"
	CodeSchema          = "schema"
)
