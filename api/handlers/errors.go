package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/malbeclabs/feevault/api/handlers/dberror"
	"github.com/malbeclabs/feevault/api/metrics"
	"github.com/malbeclabs/feevault/vault/pkg/vault"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// ErrorResponse is the body of every failed request. Code is set for vault failures.
type ErrorResponse struct {
	Error string        `json:"error"`
	Code  vaulterr.Code `json:"code,omitempty"`
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// writeError maps err onto a status code and reports unexpected failures.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		metrics.ErrorResponsesTotal.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: reqErr.msg})
		return
	}

	var vErr *vaulterr.Error
	if errors.As(err, &vErr) {
		status := http.StatusBadRequest
		switch vErr.Code {
		case vaulterr.CodeReserveNotFound:
			status = http.StatusNotFound
		case vaulterr.CodeReserveAlreadyExists:
			status = http.StatusConflict
		}
		metrics.ErrorResponsesTotal.WithLabelValues(strconv.FormatUint(uint64(vErr.Code), 10)).Inc()
		writeJSON(w, status, ErrorResponse{Error: vErr.Name, Code: vErr.Code})
		return
	}

	if errors.Is(err, vault.ErrUnauthorized) {
		metrics.ErrorResponsesTotal.WithLabelValues("unauthorized").Inc()
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error()})
		return
	}

	if dberror.IsTransient(err) {
		h.log.Warn("api: upstream unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		metrics.ErrorResponsesTotal.WithLabelValues("unavailable").Inc()
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: dberror.UserMessage(err)})
		return
	}

	h.log.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	metrics.ErrorResponsesTotal.WithLabelValues("internal").Inc()
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: dberror.UserMessage(err)})
}
