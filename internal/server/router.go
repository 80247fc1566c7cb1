// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"event-checkout-platform/internal/checkout"
	"event-checkout-platform/internal/handlers"
	"event-checkout-platform/internal/middleware"
)

// Dependencies are the router's handlers. Optional ones are left nil when unused.
type Dependencies struct {
	SessionStore sessions.Store
	Checkout     *handlers.CheckoutHandler
	Orders       *handlers.OrderHandler
	Payments     *handlers.PaymentHandler
	BackendAPI   *handlers.BackendAPIHandler
	SubmitLimit  *middleware.RateLimiter
	Health       http.HandlerFunc
	CORS         middleware.CORSConfig
}

// NewRouter wires the middleware stack and routes
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.ErrorHandlingMiddleware)
	r.Use(middleware.SecurityHeadersMiddleware)

	r.NotFound(middleware.NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler().ServeHTTP)

	if deps.Health != nil {
		r.Get("/health", deps.Health)
	}

	csrf := middleware.NewCSRFMiddleware(deps.SessionStore, checkout.SessionName)

	r.Route("/o/{org}/e/{event}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(csrf.CSRFProtection)
			var submit []func(http.Handler) http.Handler
			if deps.SubmitLimit != nil {
				submit = append(submit, middleware.RateLimit(deps.SubmitLimit))
			}
			deps.Checkout.Routes(r, submit...)
		})
		deps.Orders.Routes(r)
	})

	if deps.Payments != nil {
		r.Route("/payments", deps.Payments.Routes)
	}

	if deps.BackendAPI != nil {
		r.Route("/v1", func(r chi.Router) {
			r.Use(middleware.CORSMiddleware(deps.CORS))
			deps.BackendAPI.Routes(r)
		})
	}

	return r
}
