package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumen-im/server/internal/auth"
	"github.com/lumen-im/server/internal/http/handlers"
	"github.com/lumen-im/server/internal/middleware"
	"github.com/lumen-im/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	loginHandler *handlers.LoginHandler,
	devicesHandler *handlers.DevicesHandler,
	jwtService *auth.JWTService,
	tokenRepo repo.TokenRepo,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	// IP rate limits: 10 logins per 10min, 30 destructive device requests
	// per 10min (UIA retries count against the same budget).
	loginLimiter := middleware.NewRateLimiter(10*60*time.Second, 10)
	deleteLimiter := middleware.NewRateLimiter(10*60*time.Second, 30)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(loginLimiter, middleware.GetIPKey))
		r.Post("/login", loginHandler.HandleLogin)
	})

	// Read path: a valid access token is enough, guests included.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, tokenRepo, true))
		r.Get("/devices", devicesHandler.HandleList)
		r.Get("/devices/{deviceID}", devicesHandler.HandleGet)
		r.Put("/devices/{deviceID}", devicesHandler.HandleUpdate)
	})

	// Destructive path: non-guest token plus the interactive-auth gate
	// inside the handlers.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, tokenRepo, false))
		r.Use(middleware.RateLimitMiddleware(deleteLimiter, middleware.GetIPKey))
		r.Delete("/devices/{deviceID}", devicesHandler.HandleDelete)
		r.Post("/delete_devices", devicesHandler.HandleDeleteMany)
	})

	return r
}
