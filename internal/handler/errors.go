package handler

import (
	"errors"
	"net/http"

	"github.com/yourorg/pairs-analytics/internal/alert"
	"github.com/yourorg/pairs-analytics/internal/analytics"
	"github.com/yourorg/pairs-analytics/internal/feed"
	"github.com/yourorg/pairs-analytics/internal/model"
	"github.com/yourorg/pairs-analytics/internal/service"
	"github.com/yourorg/pairs-analytics/internal/store"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var parseErr *store.ParseError
	var validationErr *store.ValidationError

	switch {
	case errors.Is(err, service.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, feed.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidTimeframe),
		errors.Is(err, model.ErrInvalidTimestamp),
		errors.Is(err, store.ErrInvalidTick),
		errors.Is(err, store.ErrEmptyTable),
		errors.Is(err, alert.ErrInvalidRule),
		errors.Is(err, feed.ErrUnknownMode),
		errors.Is(err, feed.ErrNoSymbols),
		errors.As(err, &parseErr),
		errors.As(err, &validationErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
