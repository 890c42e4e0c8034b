// Package web serves the server-rendered pages of the service.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Proton-105/sohaeng-web/internal/account"
	"github.com/Proton-105/sohaeng-web/internal/api"
	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/i18n"
	"github.com/Proton-105/sohaeng-web/internal/idempotency"
	"github.com/Proton-105/sohaeng-web/internal/lifecycle"
	"github.com/Proton-105/sohaeng-web/internal/media"
	"github.com/Proton-105/sohaeng-web/internal/middleware"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/payment"
	"github.com/Proton-105/sohaeng-web/internal/query"
	"github.com/Proton-105/sohaeng-web/internal/ratelimit"
	"github.com/Proton-105/sohaeng-web/internal/session"
	"github.com/Proton-105/sohaeng-web/internal/swipe"
	"github.com/Proton-105/sohaeng-web/internal/validation"
	"github.com/Proton-105/sohaeng-web/pkg/logger"
)

const (
	maxBodyBytes    = int64(media.MaxPhotoBytes*6 + 1<<20)
	multipartMemory = 8 << 20
)

// PaymentDeps configures the payment pages.
type PaymentDeps struct {
	Account  payment.Account
	Window   time.Duration
	Refs     *payment.Refs
	Streamer *payment.Streamer
}

// Deps are the collaborators of the page handlers. Limits, Guard, Photos and Metrics are optional.
type Deps struct {
	Log      *slog.Logger
	Errors   *apperrors.Handler
	I18n     *i18n.Manager
	Cookies  *session.Cookies
	Auth     *session.Handlers
	Account  *account.Service
	Swipe    *swipe.Service
	API      *api.Client
	Cache    *query.Cache
	Notices  *notice.Store
	Photos   *media.Photos
	Payment  PaymentDeps
	Limits   *middleware.RateLimitMiddleware
	Guard    idempotency.Manager
	Validate *validation.Validator
	Health   *lifecycle.HealthEndpoints
	Metrics  http.Handler
	Origins  []string
	Now      func() time.Time
}

// Server holds the page handlers.
type Server struct {
	Deps
	views *Renderer
}

// New builds the page server and parses its templates.
func New(d Deps) (*Server, error) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Errors == nil {
		d.Errors = apperrors.NewHandler(d.Log, false)
	}
	if d.I18n == nil {
		return nil, errors.New("web: translations are required")
	}
	if d.Validate == nil {
		d.Validate = validation.New()
	}
	if d.Payment.Streamer == nil {
		d.Payment.Streamer = payment.NewStreamer(d.Payment.Window)
	}

	views, err := NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{Deps: d, views: views}, nil
}

// Router wires every route with its middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.New(s.Log))
	r.Use(middleware.Metrics)
	r.Use(middleware.Recoverer(s.Log))

	if s.Health != nil {
		r.Get("/healthz", s.Health.LivenessHandler)
		r.Get("/readyz", s.Health.ReadinessHandler)
	}
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}

	crossOrigin := cors.Handler(cors.Options{
		AllowedOrigins:   s.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Form-Token", logger.HeaderRequestID},
		ExposedHeaders:   []string{logger.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Group(func(r chi.Router) {
		r.Use(limitBody(maxBodyBytes))
		r.Use(session.Gate(s.Cookies, s.Log))
		r.Use(middleware.Idempotency(s.Guard, s.Log))

		r.Get("/", s.landing)
		if s.Auth != nil {
			r.With(s.Limits.Limit(ratelimit.RuleLogin, middleware.ByIP)).Get("/auth/login", s.Auth.Login)
			r.Get("/auth/callback", s.Auth.Callback)
			r.Post("/auth/logout", s.Auth.Logout)
		}
		r.Get("/auth/error", s.authError)

		r.Get("/discover", s.discover)
		r.With(s.Limits.Limit(ratelimit.RuleLikes, middleware.ByUser)).Post("/discover", s.discoverAct)

		r.Get("/profile/edit", s.profileEdit)
		r.Post("/profile/edit", s.profileSave)
		r.Get("/profile/preferences", s.preferencesEdit)
		r.Post("/profile/preferences", s.preferencesSave)

		r.Get("/matches", s.matches)
		r.Get("/matches/{id}", s.matchDetail)

		r.Route("/payment/{matchId}", func(r chi.Router) {
			r.Get("/", s.paymentPage)
			r.Post("/", s.paymentCreate)
			r.Group(func(r chi.Router) {
				r.Use(crossOrigin)
				r.Get("/countdown", s.paymentCountdown)
				r.Post("/copy", s.paymentCopy)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/", s.adminHome)
			r.Get("/users", s.adminUsers)
			r.Get("/matches", s.adminMatches)
			r.Get("/payments", s.adminPayments)
			r.Group(func(r chi.Router) {
				r.Use(s.Limits.Limit(ratelimit.RuleAdmin, middleware.ByUser))
				r.Post("/payments/{id}/verify", s.adminVerifyPayment)
				r.Post("/matches/{id}/activate", s.adminActivateMatch)
				r.Post("/recs/run", s.adminRunRecommendations)
			})
		})

		r.NotFound(s.notFound)
	})

	return r
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
