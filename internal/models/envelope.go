// internal/models/envelope.go
package models

import "loan-intake/internal/common/errors"

// Response is the JSON envelope every API response uses.
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  []errors.FieldError `json:"errors,omitempty"`
}

func OK(data interface{}, message string) Response {
	return Response{Success: true, Message: message, Data: data}
}

func Fail(message string, data interface{}, fieldErrors []errors.FieldError) Response {
	return Response{Success: false, Message: message, Data: data, Errors: fieldErrors}
}
