package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ohsms/internal/application/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{workflow.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{workflow.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{workflow.ErrAlreadyClosed, http.StatusConflict, "ALREADY_CLOSED"},
	{workflow.ErrConcurrentUpdate, http.StatusConflict, "CONCURRENT_UPDATE"},
	{workflow.ErrMissingAssignment, http.StatusUnprocessableEntity, "MISSING_ASSIGNMENT"},
	{workflow.ErrEmptyNote, http.StatusUnprocessableEntity, "EMPTY_NOTE"},
	{workflow.ErrInvalidStage, http.StatusUnprocessableEntity, "INVALID_STAGE"},
	{workflow.ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
}

// statusFor maps an error kind to its status code and error code
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// writeError writes the error envelope. data is included when the operation
// still produced a result, as for actions on a closed report.
func (h *Handlers) writeError(c *gin.Context, err error, data interface{}) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		message = "internal error"
	}

	c.JSON(status, Response{
		Success:   false,
		Data:      data,
		Error:     message,
		ErrorCode: code,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success:   false,
		Error:     message,
		ErrorCode: "BAD_REQUEST",
	})
}
