package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var errFeatureDisabled = errors.New("feature not configured")

// writeError maps a service error to its HTTP status.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, errFeatureDisabled) {
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error(), Kind: "unavailable"})
		return
	}

	kind := entities.ErrorKind(err)
	status := statusForKind(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		msg = "internal error"
	}
	c.JSON(status, errorBody{Error: msg, Kind: kind})
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "validation":
		return http.StatusUnprocessableEntity
	case "forbidden":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// badRequest answers malformed bodies and query parameters.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
}
