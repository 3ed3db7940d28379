// internal/interfaces/http/handlers/response.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/shopsphere-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/shopsphere-backend/internal/interfaces/http/middleware"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
)

// statusFor maps a service error onto an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrEmptyCart),
		errors.Is(err, apperrors.ErrInvalidSignature),
		errors.Is(err, apperrors.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrUnavailable), postgres.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body and attaches err to the context for the request logger.
// Server errors never leak their message.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "Internal server error"
	case http.StatusServiceUnavailable:
		msg = apperrors.ErrUnavailable.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

// currentUser reads the authenticated user, writing a 401 when absent
func currentUser(c *gin.Context) (uint, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return 0, false
	}
	return userID, true
}

// paramID parses a positive numeric path parameter, writing a 400 when it is malformed
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return uint(id), true
}
