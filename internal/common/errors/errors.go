// Package errors provides the standardized error type shared by the HTTP API,
// the loan services and the workflow workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Remote / infrastructure failures (retryable)
const (
	ErrCodeDatabaseReadFailed   ErrorCode = "DATABASE_READ_FAILED"
	ErrCodeDatabaseWriteFailed  ErrorCode = "DATABASE_WRITE_FAILED"
	ErrCodeCacheFailed          ErrorCode = "CACHE_FAILED"
	ErrCodeStorageUploadFailed  ErrorCode = "STORAGE_UPLOAD_FAILED"
	ErrCodeStorageDeleteFailed  ErrorCode = "STORAGE_DELETE_FAILED"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchIndexFailed    ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeWorkflowStartFailed  ErrorCode = "WORKFLOW_START_FAILED"
	ErrCodeNotificationFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout              ErrorCode = "TIMEOUT_ERROR"
)

// Validation failures (never persisted)
const (
	ErrCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidStatus             ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidPriority           ErrorCode = "INVALID_PRIORITY"
	ErrCodeInvalidVerificationStatus ErrorCode = "INVALID_VERIFICATION_STATUS"
	ErrCodeInvalidSection            ErrorCode = "INVALID_SECTION"
	ErrCodeEmptyFile                 ErrorCode = "EMPTY_FILE"
	ErrCodeFileTooLarge              ErrorCode = "FILE_TOO_LARGE"
)

// Business-rule denials
const (
	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeDocumentNotFound    ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeFileNotFound        ErrorCode = "FILE_NOT_FOUND"
	ErrCodeOfferNotFound       ErrorCode = "OFFER_NOT_FOUND"
	ErrCodeOfferNotEligible    ErrorCode = "OFFER_NOT_ELIGIBLE"
	ErrCodeAlreadySubmitted    ErrorCode = "ALREADY_SUBMITTED"
	ErrCodeBusinessRule        ErrorCode = "BUSINESS_RULE_VIOLATION"
)

// Category groups codes by how callers react to them.
type Category string

const (
	CategoryRemote     Category = "remote"
	CategoryValidation Category = "validation"
	CategoryBusiness   Category = "business"
	CategoryInternal   Category = "internal"
)

// FieldError is a single inline validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Retryable   bool                   `json:"retryable"`
	FieldErrors []FieldError           `json:"fieldErrors,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	cause       error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Category returns the category of the error's code.
func (e *StandardError) Category() Category {
	return GetErrorCategory(e.Code)
}

// HTTPStatus maps the error onto an HTTP status code.
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeApplicationNotFound, ErrCodeDocumentNotFound, ErrCodeFileNotFound, ErrCodeOfferNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadySubmitted, ErrCodeOfferNotEligible, ErrCodeBusinessRule:
		return http.StatusConflict
	case ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	switch e.Category() {
	case CategoryValidation:
		return http.StatusUnprocessableEntity
	case CategoryRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewDatabaseReadFailedError creates a retryable read error.
func NewDatabaseReadFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseReadFailed, "Could not load data, please try again",
		fmt.Sprintf("operation: %s, error: %s", operation, detailOf(err)), true, err)
}

// NewDatabaseWriteFailedError creates a retryable write error.
func NewDatabaseWriteFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseWriteFailed, "Could not save changes, please try again",
		fmt.Sprintf("operation: %s, error: %s", operation, detailOf(err)), true, err)
}

func NewCacheFailedError(err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Draft cache unavailable", detailOf(err), true, err)
}

func NewStorageUploadFailedError(fileName string, err error) *StandardError {
	return newError(ErrCodeStorageUploadFailed, "File upload failed, please try again",
		fmt.Sprintf("file: %s, error: %s", fileName, detailOf(err)), true, err)
}

func NewStorageDeleteFailedError(key string, err error) *StandardError {
	return newError(ErrCodeStorageDeleteFailed, "File could not be deleted from storage",
		fmt.Sprintf("key: %s, error: %s", key, detailOf(err)), true, err)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Application search failed", detailOf(err), true, err)
}

func NewSearchIndexFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Application index update failed",
		fmt.Sprintf("applicationId: %s, error: %s", applicationID, detailOf(err)), true, err)
}

func NewWorkflowStartFailedError(processID string, err error) *StandardError {
	return newError(ErrCodeWorkflowStartFailed, "Review workflow could not be started",
		fmt.Sprintf("processId: %s, error: %s", processID, detailOf(err)), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, detailOf(err)), true, err)
}

// NewValidationError creates a non-retryable error carrying inline field errors.
func NewValidationError(message string, fields []FieldError) *StandardError {
	e := newError(ErrCodeValidationFailed, message, "", false, nil)
	e.FieldErrors = fields
	return e
}

func NewInvalidStatusError(status string) *StandardError {
	return newError(ErrCodeInvalidStatus, fmt.Sprintf("Unknown application status %q", status), "", false, nil)
}

func NewInvalidPriorityError(priority string) *StandardError {
	return newError(ErrCodeInvalidPriority, fmt.Sprintf("Unknown priority %q", priority), "", false, nil)
}

func NewInvalidVerificationStatusError(status string) *StandardError {
	return newError(ErrCodeInvalidVerificationStatus, fmt.Sprintf("Unknown verification status %q", status), "", false, nil)
}

func NewInvalidSectionError(section string) *StandardError {
	return newError(ErrCodeInvalidSection, fmt.Sprintf("Unknown application section %q", section), "", false, nil)
}

func NewEmptyFileError(fileName string) *StandardError {
	return newError(ErrCodeEmptyFile, "The selected file is empty", fmt.Sprintf("file: %s", fileName), false, nil)
}

func NewFileTooLargeError(fileName string, limit int64) *StandardError {
	return newError(ErrCodeFileTooLarge, fmt.Sprintf("Files must be smaller than %d bytes", limit),
		fmt.Sprintf("file: %s", fileName), false, nil)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found",
		fmt.Sprintf("applicationId: %s", applicationID), false, nil)
}

func NewDocumentNotFoundError(documentID string) *StandardError {
	return newError(ErrCodeDocumentNotFound, "Document not found",
		fmt.Sprintf("documentId: %s", documentID), false, nil)
}

func NewFileNotFoundError(fileID string) *StandardError {
	return newError(ErrCodeFileNotFound, "File not found", fmt.Sprintf("fileId: %s", fileID), false, nil)
}

func NewOfferNotFoundError(offerID string) *StandardError {
	return newError(ErrCodeOfferNotFound, "Loan offer not found", fmt.Sprintf("offerId: %s", offerID), false, nil)
}

func NewOfferNotEligibleError(offerID, reason string) *StandardError {
	return newError(ErrCodeOfferNotEligible, "This loan is not available for your application",
		fmt.Sprintf("offerId: %s, reason: %s", offerID, reason), false, nil)
}

func NewAlreadySubmittedError(applicationID string) *StandardError {
	return newError(ErrCodeAlreadySubmitted, "Application has already been submitted",
		fmt.Sprintf("applicationId: %s", applicationID), false, nil)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceError, fmt.Sprintf("External service '%s' error", service), detailOf(err), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), detailOf(err), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseReadFailed, ErrCodeDatabaseWriteFailed, ErrCodeNotificationFailed, ErrCodeExternalServiceError:
		return 3
	case ErrCodeCacheFailed, ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        GetRetryCount(stdErr.Code),
		ErrorVariables: stdErr.Metadata,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from err, wrapping unknown errors as internal.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError("INTERNAL_ERROR", "Unexpected error", err.Error(), false, err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Retryable
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) Category {
	c := string(code)
	switch {
	case strings.HasPrefix(c, "DATABASE_"), strings.HasPrefix(c, "CACHE_"), strings.HasPrefix(c, "STORAGE_"),
		strings.HasPrefix(c, "SEARCH_"), strings.HasPrefix(c, "WORKFLOW_"), strings.HasPrefix(c, "NOTIFICATION_"),
		code == ErrCodeExternalServiceError, code == ErrCodeTimeout:
		return CategoryRemote
	case code == ErrCodeValidationFailed, strings.HasPrefix(c, "INVALID_"), code == ErrCodeEmptyFile, code == ErrCodeFileTooLarge:
		return CategoryValidation
	case strings.HasSuffix(c, "_NOT_FOUND"), code == ErrCodeOfferNotEligible, code == ErrCodeAlreadySubmitted, code == ErrCodeBusinessRule:
		return CategoryBusiness
	default:
		return CategoryInternal
	}
}
