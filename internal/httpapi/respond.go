package httpapi

import (
	"reflect"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/models"

	"github.com/gin-gonic/gin"
)

func ok(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, models.OK(data, message))
}

// fail renders err in the envelope. data carries the optimistic state when a
// remote write failed after the in-memory change was kept.
func fail(c *gin.Context, err error, data interface{}) {
	if v := reflect.ValueOf(data); data != nil && v.Kind() == reflect.Ptr && v.IsNil() {
		data = nil
	}
	std := errors.AsStandard(err)
	c.JSON(std.HTTPStatus(), models.Fail(std.Message, data, std.FieldErrors))
}

func badBody(c *gin.Context, err error) {
	fail(c, errors.NewValidationError("Invalid request body", []errors.FieldError{
		{Field: "body", Message: err.Error()},
	}), nil)
}

func notice(n *models.Notice) string {
	if n == nil {
		return ""
	}
	return n.Message
}
