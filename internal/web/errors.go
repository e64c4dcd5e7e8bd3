package web

// errors.go turns pipeline errors into responses.
//
// The technical error is logged with the request ID; the client gets the
// message, action and code from core.MapError plus, for errors that describe
// the user's own file, the details needed to fix it (one line per bad row,
// the header that was found, the bytes that failed to decode).

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/JonMunkholm/ledgercsv/internal/logging"
	"github.com/JonMunkholm/ledgercsv/internal/web/templates"
)

// errNoFile is returned when the multipart form has no "file" part.
var errNoFile = errors.New("no file provided")

// queryError reports a query parameter that could not be parsed.
type queryError struct {
	Param string
	Value string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("invalid query parameter %s=%q", e.Param, e.Value)
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Action  string          `json:"action,omitempty"`
	Code    string          `json:"code"`
	Details []string        `json:"details,omitempty"`
	Result  *ImportResponse `json:"result,omitempty"`
}

// respondError logs err and writes the mapped user message, as an HTML
// fragment for HTMX requests and as JSON otherwise. result, when non-nil,
// reports what a partially failed import did commit.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, result *core.ImportResult) {
	status := statusFor(err)
	userMsg := core.MapError(err)
	details := errorDetails(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", userMsg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code, details).Render(r.Context(), w); err != nil {
			logger.Error("render error alert", "error", err)
		}
		return
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Details: details,
	}
	if result != nil {
		ir := toImportResponse(result)
		resp.Result = &ir
	}
	writeJSON(w, status, resp)
}

// statusFor picks the HTTP status for a pipeline error.
func statusFor(err error) int {
	var (
		rowErrs   *core.RowErrors
		dupErr    *core.DuplicateCountError
		decodeErr *core.DecodeError
		countErr  *core.HeaderColumnCountError
		headerErr *core.HeaderMismatchError
		maxBytes  *http.MaxBytesError
		queryErr  *queryError
	)

	switch {
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, core.ErrEmptyFile),
		errors.As(err, &decodeErr), errors.As(err, &countErr), errors.As(err, &headerErr),
		errors.As(err, &queryErr):
		return http.StatusBadRequest
	case errors.As(err, &rowErrs):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dupErr):
		return http.StatusConflict
	case errors.Is(err, core.ErrImportBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorDetails returns the lines a user needs to fix their file. Errors not
// caused by the file return nil so internals never reach the client.
func errorDetails(err error) []string {
	var rowErrs *core.RowErrors
	if errors.As(err, &rowErrs) {
		details := make([]string, len(rowErrs.Errors))
		for i, re := range rowErrs.Errors {
			details[i] = re.Error()
		}
		return details
	}

	var (
		dupErr    *core.DuplicateCountError
		decodeErr *core.DecodeError
		countErr  *core.HeaderColumnCountError
		headerErr *core.HeaderMismatchError
		queryErr  *queryError
	)
	if errors.As(err, &dupErr) || errors.As(err, &decodeErr) ||
		errors.As(err, &countErr) || errors.As(err, &headerErr) ||
		errors.Is(err, core.ErrFileTooLarge) || errors.As(err, &queryErr) {
		return []string{err.Error()}
	}
	return nil
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
