package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkout-engine/internal/adapters/auth/opa"
	httphandler "checkout-engine/internal/adapters/http"
	"checkout-engine/internal/adapters/messaging/kafka"
	mockbroker "checkout-engine/internal/adapters/messaging/mock"
	"checkout-engine/internal/adapters/provider/hostedcheckout"
	mockprovider "checkout-engine/internal/adapters/provider/mock"
	"checkout-engine/internal/adapters/storage/memory"
	"checkout-engine/internal/adapters/storage/postgres"
	"checkout-engine/internal/adapters/storage/redis"
	"checkout-engine/internal/app"
	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
	"checkout-engine/internal/core/ports"
	"checkout-engine/internal/observability"
)

const serviceName = "checkout-engine"

func main() {
	// --- 1. Configuration and Logging ---
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fallbackLogger.Warn("Failed to load .env file", "error", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("Application starting", "env", cfg.App.Env, "port", cfg.Server.Port, "gateway", cfg.Gateway.ID, "mode", cfg.Gateway.Mode)

	// --- 2. Validate critical config ---
	if err := cfg.Gateway.Validate(); err != nil {
		logger.Error("Invalid gateway configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWT.JWTSecret == "" && cfg.OIDC.URL == "" {
		logger.Error("Neither JWT_SECRET nor OIDC is configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 3. Observability ---
	if cfg.Jaeger.Port != "" {
		shutdownTracer, err := observability.InitTracer(ctx, cfg.Jaeger.Port, serviceName)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Warn("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	// --- 4. Dependencies ---
	var (
		orders    ports.OrderRepository
		payments  ports.PaymentRepository
		devOrders *memory.OrderStore
	)
	switch cfg.Storage.Driver {
	case "memory":
		devOrders = memory.NewOrderStore()
		orders, payments = devOrders, memory.NewPaymentStore()
		logger.Warn("Using in-memory storage; data is lost on restart")
	default:
		repo, err := postgres.NewRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to prepare schema", "error", err)
			os.Exit(1)
		}
		orders, payments = repo.Orders(), repo.Payments()
		logger.Info("Connected to PostgreSQL")
	}

	var (
		locker      ports.OrderLocker = memory.NewLocker()
		rateLimiter *httphandler.RateLimiterMiddleware
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("Failed to close Redis", "error", err)
			}
		}()
		locker = redis.NewLocker(rdb, cfg.Gateway.LockTTL)
		rateLimiter = httphandler.NewRateLimiterMiddleware(
			redis.NewRateLimiterAdapter(rdb), cfg.RateLimit.Limit, cfg.RateLimit.Window(), logger)
		logger.Info("Connected to Redis")
	}

	var broker ports.MessageBroker
	if cfg.Kafka.BootstrapServers != "" {
		kb, err := kafka.NewBroker(ctx, strings.Split(cfg.Kafka.BootstrapServers, ","), cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Error("Failed to create Kafka broker", "error", err)
			os.Exit(1)
		}
		defer kb.Close()
		broker = kb
		logger.Info("Kafka broker created", "topic", cfg.Kafka.Topic)
	} else {
		broker = mockbroker.NewBroker(logger)
	}

	var (
		gateway ports.RemoteTransactionGateway
		devProv *mockprovider.Provider
	)
	switch cfg.Gateway.Provider {
	case "mock":
		devProv = mockprovider.NewProvider()
		gateway = devProv
		logger.Warn("Using the in-memory checkout provider")
	default:
		gateway = hostedcheckout.NewClient(cfg.Gateway, logger)
	}

	// --- 5. Service Layer ---
	checkoutService := app.NewCheckoutService(cfg.Gateway, gateway, orders, payments, logger,
		app.WithLocker(locker),
		app.WithBroker(broker),
	)
	checkoutHandler := httphandler.NewCheckoutHandler(checkoutService, cfg.Gateway.ID, logger)

	apiAuth, err := apiAuthentication(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to set up API authentication", "error", err)
		os.Exit(1)
	}

	// --- 6. HTTP Router ---
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		observability.NewLoggerMiddleware(logger),
		observability.NewMetricsMiddleware(serviceName),
		observability.NewTracingMiddleware(serviceName),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": serviceName,
		}); err != nil {
			logger.Error("Failed to write health response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public callbacks from the customer's browser and the provider.
	r.Group(func(r chi.Router) {
		if rateLimiter != nil {
			r.Use(rateLimiter.Handler)
		}
		checkoutHandler.Routes(r)
	})

	// Protected storefront API: /api/v1/*
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiAuth)
		if cfg.OPA.URL != "" {
			r.Use(opa.NewMiddleware(cfg.OPA.URL, logger).Authorize(httphandler.OrderID))
		}
		checkoutHandler.APIRoutes(r)
	})

	if cfg.OIDC.URL == "" {
		r.Post("/auth/login", httphandler.NewAuthHandler(logger, cfg.JWT.JWTSecret).HandleLogin)
	}

	// Lets a developer finish a checkout against the in-memory provider.
	if devProv != nil {
		r.Post("/dev/provider/{remoteID}/complete", func(w http.ResponseWriter, r *http.Request) {
			if err := devProv.Complete(chi.URLParam(r, "remoteID")); err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}

	// Orders normally come from the order subsystem; in memory mode they are
	// seeded by hand.
	if devOrders != nil {
		r.Put("/dev/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
			var order domain.Order
			if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
				http.Error(w, "invalid order document", http.StatusBadRequest)
				return
			}
			order.ID = chi.URLParam(r, "orderID")
			if err := devOrders.Save(r.Context(), &order); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}

	// --- 7. HTTP Server ---
	serverAddr := cfg.Server.Port
	if serverAddr == "" {
		serverAddr = ":8080"
	}

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Gateway.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

// apiAuthentication prefers OIDC when configured and falls back to HS256 JWTs.
func apiAuthentication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.OIDC.URL != "" {
		authenticator, err := httphandler.NewOIDCAuthenticator(ctx, cfg.OIDC.URL, cfg.OIDC.ClientID, logger)
		if err != nil {
			return nil, err
		}
		return authenticator.Middleware, nil
	}
	return httphandler.JWTMiddleware([]byte(cfg.JWT.JWTSecret), logger), nil
}
