package front

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/metrics"
	"github.com/relay-id/authsvc/internal/token"
	"github.com/relay-id/authsvc/internal/user"
)

type contextKey int

const principalKey contextKey = iota

// Principal returns the access-token payload injected by RequireAuth.
func Principal(ctx context.Context) (token.AccessPayload, bool) {
	p, ok := ctx.Value(principalKey).(token.AccessPayload)
	return p, ok
}

// Verifier is the slice of the token codec this middleware needs.
type Verifier interface {
	VerifyAccess(tok string) (token.AccessPayload, error)
}

// RequireAuth parses the authorization header, verifies the bearer token,
// and injects the caller principal into the request context. Every way a
// header can be malformed gets its own log line but the same outward code.
func RequireAuth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				slog.Warn("authorization_header_missing", "ip", r.RemoteAddr, "path", r.URL.Path)
				respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
				return
			}

			scheme, rest, found := strings.Cut(header, " ")
			if !found || scheme != "Bearer" {
				slog.Warn("authorization_scheme_invalid", "ip", r.RemoteAddr, "scheme", scheme)
				respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
				return
			}
			if rest == "" {
				slog.Warn("authorization_token_empty", "ip", r.RemoteAddr)
				respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
				return
			}

			payload, err := verifier.VerifyAccess(rest)
			if err != nil {
				slog.Warn("access_token_rejected", "ip", r.RemoteAddr, "error", err)
				respondErr(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows only admin and super-admin principals through. Must
// run inside RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := Principal(r.Context())
		if !ok {
			respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
			return
		}
		switch user.Role(p.Role) {
		case user.RoleAdmin, user.RoleSuperAdmin:
			next.ServeHTTP(w, r)
		default:
			respondErr(w, apperr.New(apperr.AdminRequired, "administrator access required"))
		}
	})
}

// RequestLogger logs every completed request with its status and latency,
// and feeds the request counter.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()

		level := slog.LevelInfo
		if ww.Status() >= 500 {
			level = slog.LevelError
		} else if ww.Status() >= 400 {
			level = slog.LevelWarn
		}

		slog.Log(r.Context(), level, "http_request_completed",
			"status", ww.Status(),
			"method", r.Method,
			"path", r.URL.Path,
			"duration", duration,
			"req_id", reqID,
			"ip", r.RemoteAddr,
		)
	})
}

// PanicRecovery captures handler panics, reports them, and converts them
// to a generic Internal response.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic_recovered",
					"error", rec,
					"path", r.URL.Path,
					"method", r.Method,
					"ip", r.RemoteAddr,
					"stack", string(debug.Stack()),
				)
				if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
					hub.Recover(rec)
				}
				respondErr(w, apperr.New(apperr.Internal, "internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
