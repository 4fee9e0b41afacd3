package http

import (
	"errors"
	"log"
	"net/http"

	"fulfillment-service/internal/domain"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindConflict, domain.KindInvariant:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    code,
		Message: message,
	})
}

// respondErr maps a service error onto the response. Errors that are not
// domain errors are logged and hidden behind a generic message.
func respondErr(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		RespondWithError(c, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}
	status := statusFor(de.Kind)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	RespondWithError(c, status, de.Code, de.Message)
}

func badRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "invalid_request", message)
}
