// README: Base handler utilities (JSON helpers, error mapping, parameter parsing).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldforce/internal/modules/assignment"
	"fieldforce/internal/modules/calendar"
	"fieldforce/internal/modules/route"
	"fieldforce/internal/modules/visit"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module errors onto HTTP statuses. Unknown errors are
// logged by the caller's middleware and reported as 500 without detail.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, visit.ErrValidation),
		errors.Is(err, assignment.ErrBadRequest),
		errors.Is(err, calendar.ErrInvalidRange),
		errors.Is(err, route.ErrInvalidSample):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, visit.ErrAuthorizationDenied):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, visit.ErrNotFound),
		errors.Is(err, assignment.ErrNotFound),
		errors.Is(err, route.ErrNoPosition):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, visit.ErrConflictActiveVisit),
		errors.Is(err, visit.ErrConflict),
		errors.Is(err, route.ErrNotTracking):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// parseDate reads a YYYY-MM-DD query parameter. An empty value yields the
// fallback.
func parseDate(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, name+" must be a date formatted YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
