package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/talkboard/internal/common"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

func writeErrorStatus(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: msg, Code: code}})
}

// statusFor maps a service error onto its HTTP status, a stable code and the
// message shown to the client. Unknown errors are reported as internal.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation", err.Error()
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "already_exists", err.Error()
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "token expired"
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized", "invalid credentials"
	case errors.Is(err, common.ErrTerminalExternal):
		return http.StatusBadRequest, "upstream_rejected", err.Error()
	case errors.Is(err, common.ErrTransientExternal):
		return http.StatusServiceUnavailable, "upstream_unavailable", "upstream unavailable"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeErrorStatus(w, status, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErrorStatus(w, http.StatusBadRequest, "bad_request", msg)
}
