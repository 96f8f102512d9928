package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/templateshop/internal/domain"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, envelope{Success: false, Code: code, Message: message})
}

// handleError maps the domain error taxonomy onto HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		status  int
		code    string
		message = err.Error()
		data    any
	)

	switch domain.KindOf(err) {
	case domain.KindValidation:
		status, code = http.StatusBadRequest, "invalid_request"
	case domain.KindNotFound:
		status, code = http.StatusNotFound, "not_found"
	case domain.KindConflict:
		status, code = http.StatusConflict, "conflict"
	case domain.KindForbidden:
		status, code = http.StatusForbidden, "forbidden"
		if errors.Is(err, domain.ErrNotEntitled) {
			code = "not_entitled"
		}
	case domain.KindQuotaExceeded:
		status, code = http.StatusForbidden, "quota_exceeded"
		if errors.Is(err, domain.ErrCartQuotaExceeded) {
			status = http.StatusBadRequest
		}
	case domain.KindUnavailable:
		status, code = http.StatusBadRequest, "product_unavailable"
		var unavailable *domain.ProductUnavailableError
		if errors.As(err, &unavailable) {
			data = map[string][]string{"productIds": unavailable.IDs}
		}
	case domain.KindRateLimited:
		status, code = http.StatusTooManyRequests, "rate_limit_exceeded"
	case domain.KindUpstream:
		status, code, message = http.StatusInternalServerError, "upstream_error", domain.ErrUpstream.Error()
	default:
		status, code, message = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, status, envelope{Success: false, Code: code, Message: message, Data: data})
}

// decodeJSON rejects malformed bodies and unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
