package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck probes one dependency. Name shows up in the /healthz body.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// RouterConfig wires handlers and middleware into the router.
type RouterConfig struct {
	KYC    *KYCHandler
	OTP    *OTPHandler
	Auth   *Authenticator
	Health []HealthCheck
}

// NewRouter builds the service's HTTP surface. The verification endpoints
// require authentication; the review endpoint additionally requires the
// admin role; the challenge endpoints are pre-auth (they exist to prove
// subject ownership before a session exists).
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestContext)

	r.Route("/kyc", func(r chi.Router) {
		r.Use(cfg.Auth.Require)
		r.Post("/submit", cfg.KYC.handleSubmit)
		r.Get("/status", cfg.KYC.handleStatus)
		r.With(cfg.Auth.RequireRole("admin")).Post("/review", cfg.KYC.handleReview)
	})

	r.Route("/otp", func(r chi.Router) {
		r.Post("/request", cfg.OTP.handleRequest)
		r.Post("/verify", cfg.OTP.handleVerify)
	})

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := make(map[string]string, len(checks)+1)
		body["status"] = "ok"
		for _, check := range checks {
			if err := check.Probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[check.Name] = err.Error()
				continue
			}
			body[check.Name] = "ok"
		}
		writeJSON(w, status, body)
	}
}
