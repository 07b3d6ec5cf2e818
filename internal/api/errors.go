package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/geo"
)

// errorResponse maps err to a status, a machine readable type and a detail.
func errorResponse(err error) (int, string, string) {
	var (
		reqErr   *requestError
		valErr   *domain.ValidationError
		geoErr   *geo.GeocodingError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "invalid_request", "request body too large"
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, "invalid_request", reqErr.detail
	case errors.As(err, &valErr):
		return http.StatusBadRequest, "validation_failed", valErr.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized", err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, domain.ErrActivityNotFound), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrAlreadyFavourite):
		return http.StatusConflict, "conflict", err.Error()
	case errors.As(err, &geoErr):
		return http.StatusBadGateway, "geocoding_failed", geoErr.Error()
	default:
		return http.StatusInternalServerError, "server_error", "internal error"
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, detail := errorResponse(err)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}
	writeError(w, status, code, detail)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}
