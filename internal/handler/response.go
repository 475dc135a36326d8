package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON, and every failure through
// Responder.Error, so the API has exactly two body shapes:
//
//	{"success": true,  "message": "Effort logged successfully"}
//	{"success": false, "error": "Calories must be positive"}
//
// ERROR MAPPING:
// Services return *apperror.AppError wrapping a sentinel. This file is the
// only place those sentinels become status codes:
//
//	ErrValidation   → 400    ErrNotFound    → 404
//	ErrUnauthorized → 401    ErrConflict    → 409
//	ErrForbidden    → 403    ErrUnavailable → 503
//	anything else   → 500
//
// DETAILS:
// An AppError may carry the underlying cause (a SQL error, a JWT parse
// error). The cause is always logged. It is echoed to the client as
// "details" only when EXPOSE_ERROR_DETAILS is on, because it can leak table
// names or token contents to an untrusted caller.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/f3-invigorate/invigorate/internal/apperror"
)

// maxBodyBytes caps request bodies. The largest legitimate body is a
// reflection with four 5000-character answers.
const maxBodyBytes = 64 << 10

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func success(message string) MessageResponse {
	return MessageResponse{Success: true, Message: message}
}

// writeJSON sets the header, then the status, then the body. Headers set
// after WriteHeader are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// Responder renders errors. One is shared by every handler and by the
// auth middleware.
type Responder struct {
	logger        *slog.Logger
	exposeDetails bool
}

func NewResponder(logger *slog.Logger, exposeDetails bool) *Responder {
	return &Responder{logger: logger, exposeDetails: exposeDetails}
}

// Status maps err to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error writes the standard failure body for err. It matches auth.ErrorWriter.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	resp := ErrorResponse{Error: "Internal server error"}

	var appErr *apperror.AppError
	hasAppErr := errors.As(err, &appErr)

	// 500s keep a generic message; the AppError message there is written
	// for operators ("saving attendance"), not for users.
	if hasAppErr && status != http.StatusInternalServerError {
		resp.Error = appErr.Message
	}

	detail := err.Error()
	if hasAppErr {
		detail = appErr.Detail()
	}

	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed",
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
			slog.String("cause", detail),
		)
	}

	if rs.exposeDetails && detail != "" && (status >= 500 || status == http.StatusUnauthorized) {
		resp.Details = detail
	}

	writeJSON(w, status, resp)
}

// decodeJSON reads one JSON object into dst.
//
// An empty body decodes as {} so the field rules, not the decoder, report
// what is missing. Malformed JSON, a wrong value type and an oversized
// body are all 400s.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var tooBig *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &tooBig):
		return apperror.ValidationFailed("body", "Request body too large")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		field := typeErr.Field
		if i := strings.LastIndex(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return apperror.ValidationFailed(field, "Invalid value for "+field)
	}
	return apperror.ValidationFailed("body", "Invalid JSON body")
}
