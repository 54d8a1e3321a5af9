package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grepdeck/authgate/internal/transport/http/middleware"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Providers(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler

	// AppHandler serves everything behind the gate; nil gets a 404 fallback
	// so the service can run as a standalone auth front.
	AppHandler http.Handler

	Session   func(http.Handler) http.Handler
	Gate      func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler

	Production bool
}

// New assembles the full middleware chain and route table.
func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("nil Session middleware")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("nil Gate middleware")
	}
	if deps.RateLimit == nil {
		deps.RateLimit = passthrough
	}
	if deps.AppHandler == nil {
		deps.AppHandler = http.NotFoundHandler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders(deps.Production))
	r.Use(chimw.Timeout(60 * time.Second))

	// The gate sees every request before any identity work happens.
	r.Use(deps.Gate)
	r.Use(deps.Session)

	r.Get("/healthz", deps.Health.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/providers", deps.Auth.Providers)
		r.With(deps.RateLimit).Get("/login/{provider}", deps.Auth.Login)
		r.With(deps.RateLimit).Get("/callback/{provider}", deps.Auth.Callback)
		r.Post("/logout", deps.Auth.Logout)
	})

	r.Get("/api/auth/user", deps.Auth.Me)

	r.NotFound(deps.AppHandler.ServeHTTP)

	return r, nil
}

func passthrough(next http.Handler) http.Handler { return next }
