package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pagesmith/internal/deploy"
	"pagesmith/internal/generator"
	"pagesmith/internal/sanitize"
	"pagesmith/internal/store"
	"pagesmith/pkg/editor"
)

type success struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type failure struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Errors    []string  `json:"errors,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// httpError carries a status and client facing message for err.
type httpError struct {
	status  int
	message string
	err     error
}

func (e *httpError) Error() string {
	if e.err == nil {
		return e.message
	}
	return e.message + ": " + e.err.Error()
}

func (e *httpError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &httpError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) ok(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, success{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: s.now().UTC(),
	})
}

// fail maps err to a status code. fallback is the message used for
// unexpected errors; their text only reaches the client in development.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	resp := failure{Error: fallback, Timestamp: s.now().UTC()}
	status := http.StatusInternalServerError

	var (
		herr     *httpError
		verr     *sanitize.ValidationError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		resp.Error = "Validation failed"
		resp.Errors = []string{verr.Reason}
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
		resp.Error = "Request body too large"
	case errors.As(err, &herr):
		status = herr.status
		resp.Error = herr.message
		if status == http.StatusBadRequest {
			resp.Error = "Validation failed"
			resp.Errors = []string{herr.message}
		}
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "Component not found"
	case errors.Is(err, errSessionNotFound):
		status = http.StatusNotFound
		resp.Error = "Editor session not found"
	case errors.Is(err, errTooManySessions):
		status = http.StatusTooManyRequests
		resp.Error = "Too many editor sessions, close one and try again"
	case errors.Is(err, editor.ErrNoSelection), errors.Is(err, editor.ErrNotLoaded):
		status = http.StatusConflict
		resp.Error = err.Error()
	case errors.Is(err, editor.ErrNotSelectable):
		status = http.StatusUnprocessableEntity
		resp.Error = err.Error()
	case errors.Is(err, deploy.ErrTimeout):
		status = http.StatusRequestTimeout
		resp.Error = "Deployment timeout - please try again"
	case errors.Is(err, deploy.ErrNotConfigured):
		resp.Error = "Netlify access token not configured"
	case errors.Is(err, generator.ErrNotConfigured):
		resp.Error = "Generator API key not configured"
	}

	if status >= http.StatusInternalServerError {
		s.log.Error(fallback,
			zap.String("request", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if s.cfg.Development() {
			resp.Details = err.Error()
		}
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into v. Unknown fields are ignored.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &maxBytes):
		return err
	case errors.Is(err, io.EOF):
		return badRequest("Request body is required")
	default:
		return badRequest("Invalid JSON body")
	}
}
