package handler

import (
	"errors"
	"log"
	"net/http"

	"nagarpalika/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"message": ...}. Internal errors are logged, not echoed.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)

	message := err.Error()
	switch status {
	case http.StatusNotFound:
		message = "Report not found"
	case http.StatusInternalServerError:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"message": message})
}
