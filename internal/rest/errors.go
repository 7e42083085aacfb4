package rest

import (
	"errors"
	"net/http"

	"github.com/dfryer1193/spacetraveling/api"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrNoMorePages), errors.Is(err, domain.ErrInvalidCursor):
		return http.StatusBadRequest, false
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, domain.ErrLoadMoreInFlight):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrMalformedRecord):
		return http.StatusInternalServerError, false
	case domain.IsTransportError(err):
		if domain.IsRetryable(err) {
			return http.StatusServiceUnavailable, true
		}
		return http.StatusBadGateway, false
	default:
		return http.StatusInternalServerError, false
	}
}

func writeError(c *gin.Context, err error) {
	status, retryable := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.JSON(status, api.Error{Error: err.Error(), Retryable: retryable})
}
