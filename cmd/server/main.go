package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"

	"event-checkout-platform/internal/checkout"
	"event-checkout-platform/internal/clock"
	"event-checkout-platform/internal/config"
	"event-checkout-platform/internal/database"
	"event-checkout-platform/internal/handlers"
	"event-checkout-platform/internal/middleware"
	"event-checkout-platform/internal/poller"
	"event-checkout-platform/internal/repositories"
	"event-checkout-platform/internal/server"
	"event-checkout-platform/internal/services"
)

const expiryBatchSize = 100

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionStore := newSessionStore(cfg)

	deps := server.Dependencies{
		SessionStore: sessionStore,
		CORS:         middleware.DefaultCORSConfig(),
	}

	var backend services.Backend
	switch cfg.Backend.Mode {
	case config.BackendRemote:
		log.Printf("Backend: remote (%s)", cfg.Backend.BaseURL)
		backend = services.NewRemoteBackend(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout)
		deps.Health = handlers.Health("event-checkout", nil)

	case config.BackendLocal:
		db, err := database.NewConnection(ctx, database.Config{
			URL:      cfg.Database.URL,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Database connection established successfully")

		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		// Payment provider: Paystack when credentials are set, otherwise the built-in mock
		var provider services.PaymentProvider
		var verifier handlers.WebhookVerifier
		var mockProvider *services.MockPaymentProvider
		if cfg.Paystack.Enabled() {
			paystack := services.NewPaystackService(services.PaystackConfig{
				SecretKey:   cfg.Paystack.SecretKey,
				Environment: cfg.Paystack.Environment,
				BaseURL:     cfg.Paystack.BaseURL,
			})
			provider, verifier = paystack, paystack
		} else {
			mockProvider = services.NewMockPaymentProvider(cfg.Server.PublicBaseURL + "/payments/mock")
			provider = mockProvider
		}

		local := services.NewLocalBackend(
			repositories.NewCatalogRepository(db.DB),
			repositories.NewOrderRepository(db.DB),
			provider,
			cfg.Server.PublicBaseURL,
			cfg.Orders.PaymentTTL,
		)
		backend = local

		deps.Payments = handlers.NewPaymentHandler(local, verifier, mockProvider)
		deps.Health = handlers.Health("event-checkout", db)
		if cfg.Backend.ExposeAPI {
			deps.BackendAPI = handlers.NewBackendAPIHandler(local, cfg.Backend.APIKey)
		}

		go expireStaleOrders(ctx, local, cfg.Orders.PaymentTTL/2)
	}

	reconciler := checkout.NewReconciler(cfg.Checkout.MaxQuantity, checkout.ParseInvalidationPolicy(cfg.Checkout.Invalidation))
	svc := checkout.NewService(reconciler, backend)

	deps.Checkout = handlers.NewCheckoutHandler(backend, svc, sessionStore, cfg.Checkout.AntiAbuseTokenName)
	deps.Orders = handlers.NewOrderHandler(backend, poller.Config{
		Interval: cfg.Checkout.PollInterval,
		Timeout:  cfg.Checkout.PollTimeout,
	})

	if cfg.Checkout.SubmitRateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.Checkout.SubmitRateLimit, cfg.Checkout.SubmitRateWindow, clock.Real())
		defer limiter.Close()
		deps.SubmitLimit = limiter
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Order pages may hold the request open for the whole poll timeout
		WriteTimeout: cfg.Checkout.PollTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		log.Printf("Server starting on %s (Environment: %s, backend: %s)", srv.Addr, cfg.Server.Env, cfg.Backend.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

func newSessionStore(cfg *config.Config) sessions.Store {
	options := &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}

	// Cookie sessions cap out at 4096 bytes, which only suits small drafts
	if cfg.Session.Store == "cookie" {
		store := sessions.NewCookieStore([]byte(cfg.Session.Secret))
		store.Options = options
		return store
	}

	store := checkout.NewFilesystemSessionStore(cfg.Session.Dir, []byte(cfg.Session.Secret))
	store.Options = options
	return store
}

// expireStaleOrders expires unpaid orders past their payment window until ctx is done
func expireStaleOrders(ctx context.Context, backend *services.LocalBackend, every time.Duration) {
	if every < time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := backend.ExpireStale(ctx, expiryBatchSize)
			if err != nil {
				log.Printf("Failed to expire stale orders: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Expired %d unpaid orders", n)
			}
		}
	}
}
