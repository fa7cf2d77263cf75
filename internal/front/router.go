// Package front is the HTTP surface in front of the auth orchestrator: it
// parses the bearer header, surfaces the caller principal to handlers, and
// maps the stable error taxonomy onto a JSON envelope.
package front

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/relay-id/authsvc/internal/authsvc"
	"github.com/relay-id/authsvc/internal/metrics"
	"golang.org/x/time/rate"
)

// Options tunes the edge middleware.
type Options struct {
	// RPS and Burst bound per-IP request rates. Zero disables the limiter.
	RPS   float64
	Burst int
	// Sentry enables the sentry request handler when a DSN was configured
	// at process startup.
	Sentry bool
	// Health reports readiness of the process's dependencies; wired to
	// GET /healthz. Nil means always healthy.
	Health func() error
}

// NewRouter assembles the complete HTTP surface.
func NewRouter(svc *authsvc.Service, verifier Verifier, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Sentry {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(RequestLogger)
	r.Use(PanicRecovery)
	if opts.RPS > 0 {
		r.Use(NewIPRateLimiter(rate.Limit(opts.RPS), opts.Burst).Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Health != nil {
			if err := opts.Health(); err != nil {
				respondErr(w, err)
				return
			}
		}
		respondOK(w, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	requireAuth := RequireAuth(verifier)
	h := NewAuthHandler(svc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/code", h.SendVerifyCode)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.LoginByPassword)
		r.Post("/auth/login/code", h.LoginByCode)
		r.Post("/auth/refresh", h.RefreshToken)
		r.Post("/auth/logout", h.Logout)
		r.Post("/auth/password/reset", h.ResetPassword)
		r.Post("/auth/validate", h.ValidateToken)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", h.Me)
			r.Get("/auth/sessions", h.GetSessions)
			r.Delete("/auth/sessions/{id}", h.RevokeSession)
			r.Post("/auth/logout_all", h.LogoutAll)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Get("/users", h.ListUsers)
				r.Patch("/users/{id}/disabled", h.SetUserDisabled)
			})
		})
	})

	return r
}
