package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/betty-pap/BookTracker-app-backend/internal/catalog"
	"github.com/betty-pap/BookTracker-app-backend/internal/services"
)

// respondError writes the JSON error payload for err. Unknown errors become
// a 500 carrying msg, with the cause in "details".
func respondError(c *gin.Context, msg string, err error) {
	var validation *services.ValidationError
	switch {
	case errors.Is(err, services.ErrBookNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Work not found"})
	case errors.As(err, &validation):
		body := gin.H{"error": validation.Message, "field": validation.Field}
		if validation.TotalPages > 0 {
			body["totalPages"] = validation.TotalPages
		}
		c.JSON(http.StatusBadRequest, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
	}
}
