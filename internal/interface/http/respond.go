package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// Envelope wraps every JSON response.
type Envelope struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError is the error part of the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta carries paging info and the server time.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, Envelope{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: requestIDFrom(r.Context()),
	})
}

// writeList writes a page with count/limit/offset in meta.
func writeList[T any](w http.ResponseWriter, r *http.Request, items []T, limit, offset int) {
	n := len(items)
	writeEnvelope(w, http.StatusOK, Envelope{
		Success:   true,
		Data:      items,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Count: &n, Limit: limit, Offset: offset},
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, Envelope{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

// statusFor maps error kinds to HTTP status codes. Unknown errors are 500.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "bad_request"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage hides internal details of 5xx errors.
func publicMessage(status int, err error) string {
	if status >= 500 {
		return "An unexpected error occurred"
	}
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
	}
	writeError(w, r, status, code, publicMessage(status, err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Query params
// ─────────────────────────────────────────────────────────────────────────────

var errBadID = shared.NewDomainError("http", "Parse", shared.ErrValidation, "id must be a positive integer")

// intParam reads an integer query parameter; missing means def.
func intParam(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.WrapError("http", "Parse", shared.ErrValidation, key+" must be an integer", err)
	}
	return v, nil
}

func boolParam(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// idVar reads a positive int64 path variable.
func idVar(vars map[string]string, key string) (int64, error) {
	v, err := strconv.ParseInt(vars[key], 10, 64)
	if err != nil || v <= 0 {
		return 0, errBadID
	}
	return v, nil
}
