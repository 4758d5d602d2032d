package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridebid/internal/cache"
	"ridebid/internal/config"
	"ridebid/internal/database"
	"ridebid/internal/handler"
	"ridebid/internal/middleware"
	"ridebid/internal/notifier"
	"ridebid/internal/repository"
	"ridebid/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
			newrelic.ConfigInfoLogger(os.Stdout),
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize New Relic: %v", err)
		} else {
			log.Println("New Relic initialized successfully")
			if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
				log.Printf("Warning: New Relic connection timeout: %v", err)
			}
		}
	}

	// Initialize PostgreSQL
	db, err := database.NewPostgres(
		cfg.DatabaseURL,
		cfg.DBMaxConnections,
		cfg.DBMaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis
	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword, cfg.RedisPoolSize)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Println("Connected to Redis")

	// Initialize cache and notifier
	leaderboardCache := cache.NewLeaderboardCache(redis.Client)
	hub := notifier.NewHub(redis.Client)

	// Initialize repositories
	passengerRepo := repository.NewPassengerRepository(db.DB)
	driverRepo := repository.NewDriverRepository(db.DB)
	requestRepo := repository.NewTripRequestRepository(db.DB)

	// Initialize services
	ratingEngine := service.NewRatingEngine()
	reputationService := service.NewReputationService(driverRepo, leaderboardCache, hub)
	accountService := service.NewAccountService(passengerRepo, driverRepo)
	negotiationService := service.NewNegotiationService(
		requestRepo, driverRepo, passengerRepo,
		reputationService, ratingEngine, hub,
		cfg.OfferSubmitRetries,
	)

	// Initialize handlers
	requestHandler := handler.NewRequestHandler(negotiationService)
	passengerHandler := handler.NewPassengerHandler(accountService, negotiationService)
	driverHandler := handler.NewDriverHandler(accountService, reputationService, negotiationService)
	eventsHandler := handler.NewEventsHandler(hub)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Actor-ID"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// New Relic middleware
	if nrApp != nil {
		r.Use(middleware.NewRelicMiddleware(nrApp))
	}

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(
		redis.Client,
		cfg.RateLimitRequests,
		time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
	)
	r.Use(rateLimiter.Handler)

	// Idempotency middleware
	idempotencyMw := middleware.NewIdempotencyMiddleware(redis.Client)
	r.Use(idempotencyMw.Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := redis.Health(ctx); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","services":{"database":"up","redis":"up"}}`))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		requestHandler.RegisterRoutes(r)
		passengerHandler.RegisterRoutes(r)
		driverHandler.RegisterRoutes(r)
		eventsHandler.RegisterRoutes(r)
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("  POST /v1/passengers                - Create passenger")
	log.Println("  POST /v1/drivers                   - Create driver")
	log.Println("  POST /v1/requests                  - Open trip request for bidding")
	log.Println("  GET  /v1/requests                  - Browse open requests")
	log.Println("  POST /v1/requests/{id}/offers      - Submit driver offer")
	log.Println("  POST /v1/requests/{id}/accept      - Accept an offer")
	log.Println("  POST /v1/requests/{id}/cancel      - Cancel request")
	log.Println("  POST /v1/requests/{id}/complete    - Complete trip and score it")
	log.Println("  GET  /v1/drivers/{id}/rewards      - Driver progression")
	log.Println("  GET  /v1/drivers/leaderboard       - Driver leaderboard")
	log.Println("  GET  /v1/events/users/{id}         - SSE user events")
	log.Println("  GET  /v1/events/drivers            - SSE open-request feed")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
