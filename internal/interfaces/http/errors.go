package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	StatusCode int      `json:"statusCode"`
	Violations []string `json:"violations,omitempty"`
}

const internalErrorMessage = "An unexpected error occurred"

// errorResponse maps an error kind to its status code and body. Internal
// error details never reach the client.
func errorResponse(err error) ErrorResponse {
	var wfErr *domainwf.Error
	if !errors.As(err, &wfErr) {
		return ErrorResponse{
			Error:      "Internal Server Error",
			Message:    internalErrorMessage,
			StatusCode: http.StatusInternalServerError,
		}
	}

	switch wfErr.Kind {
	case domainwf.KindValidation:
		return ErrorResponse{
			Error:      "Validation Error",
			Message:    wfErr.Message,
			StatusCode: http.StatusBadRequest,
			Violations: wfErr.Violations,
		}
	case domainwf.KindNotFound:
		return ErrorResponse{Error: "Not Found", Message: wfErr.Message, StatusCode: http.StatusNotFound}
	case domainwf.KindInvalidOperation:
		return ErrorResponse{Error: "Invalid Operation", Message: wfErr.Message, StatusCode: http.StatusBadRequest}
	default:
		return ErrorResponse{
			Error:      "Internal Server Error",
			Message:    internalErrorMessage,
			StatusCode: http.StatusInternalServerError,
		}
	}
}

// abortWithError writes the mapped error and logs internal failures
func (h *Handlers) abortWithError(c *gin.Context, err error) {
	resp := errorResponse(err)
	if resp.StatusCode == http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(resp.StatusCode, resp)
}

// abortWithBindError reports a malformed or incomplete request body
func (h *Handlers) abortWithBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:      "Validation Error",
		Message:    "Invalid request body: " + err.Error(),
		StatusCode: http.StatusBadRequest,
	})
}
