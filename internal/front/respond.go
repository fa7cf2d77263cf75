package front

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/relay-id/authsvc/internal/apperr"
)

// envelope is the wire shape of every response.
type envelope struct {
	Code        apperr.Code  `json:"code"`
	Msg         string       `json:"msg"`
	FieldErrors []fieldError `json:"field_errors,omitempty"`
	Data        any          `json:"data,omitempty"`
}

type fieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// respondOK writes a success envelope with code 0.
func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: 0, Msg: "ok", Data: data})
}

// respondErr maps err to the envelope plus an HTTP status. Errors without
// a stable code are logged server-side and surfaced as a bare Internal.
func respondErr(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("unclassified_handler_error", "error", err)
		e = apperr.New(apperr.Internal, "internal error")
	}

	env := envelope{Code: e.Code, Msg: e.Msg}
	for _, fe := range e.FieldErrors {
		env.FieldErrors = append(env.FieldErrors, fieldError{Field: fe.Field, Msg: fe.Msg})
	}
	writeJSON(w, httpStatus(e.Code), env)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("response_encode_failed", "error", err)
	}
}

// httpStatus picks the transport status for a stable code. The envelope
// code is authoritative; the status only exists so generic HTTP tooling
// (load balancers, dashboards) classifies responses sensibly.
func httpStatus(code apperr.Code) int {
	switch code {
	case apperr.InvalidArgument, apperr.InvalidPage, apperr.InvalidPageSize,
		apperr.CaptchaWrong, apperr.CaptchaExpired:
		return http.StatusBadRequest
	case apperr.Unauthenticated, apperr.TokenMissing, apperr.TokenInvalid,
		apperr.TokenExpired, apperr.TokenRevoked, apperr.LoginFailed,
		apperr.WrongPassword:
		return http.StatusUnauthorized
	case apperr.AccountLocked:
		return http.StatusLocked
	case apperr.RateLimited, apperr.QuotaExceeded:
		return http.StatusTooManyRequests
	case apperr.UserNotFound:
		return http.StatusNotFound
	case apperr.UserAlreadyExists, apperr.MobileTaken:
		return http.StatusConflict
	case apperr.UserDisabled, apperr.UserDeleted, apperr.UserNotVerified,
		apperr.PermissionDenied, apperr.AdminRequired, apperr.OwnerRequired:
		return http.StatusForbidden
	case apperr.ServiceUnavailable, apperr.Timeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body strictly: unknown fields are rejected
// so payload pollution never passes validation silently.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
