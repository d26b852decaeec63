package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/openshelf/openshelf/pkg/openshelf"
)

// Machine-readable error codes surfaced in the response envelope.
const (
	CodeOK               = "OK"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA_TYPE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Envelope is the uniform response shape for every endpoint.
type Envelope struct {
	Status    int         `json:"status"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{
		Status:    status,
		Code:      CodeOK,
		Message:   http.StatusText(status),
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)
	if status == http.StatusInternalServerError {
		// Internals are logged, never leaked in the response body.
		slog.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, Envelope{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func respondErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, openshelf.ErrBookNotFound):
		return http.StatusNotFound, CodeNotFound, "book not found"
	case errors.Is(err, openshelf.ErrStatusConflict):
		return http.StatusConflict, CodeConflict, "book is not in the required status"
	case errors.Is(err, openshelf.ErrNotApproved):
		return http.StatusForbidden, CodeForbidden, "book is not approved for reading"
	case errors.Is(err, openshelf.ErrNotEntitled):
		return http.StatusForbidden, CodeForbidden, "not allowed to act on this book"
	case errors.Is(err, openshelf.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, CodeFileTooLarge, "declared file size exceeds the upload limit"
	case errors.Is(err, openshelf.ErrExtensionNotAllowed):
		return http.StatusUnsupportedMediaType, CodeUnsupportedMedia, "file extension is not allowed"
	case errors.Is(err, openshelf.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest, "invalid request"
	default:
		return http.StatusInternalServerError, CodeInternalError, "internal error"
	}
}
