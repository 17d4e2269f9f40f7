package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/draftops/auctioneer/internal/auction"
	"github.com/draftops/auctioneer/internal/config"
	"github.com/draftops/auctioneer/internal/gateway"
	"github.com/draftops/auctioneer/internal/handler"
	"github.com/draftops/auctioneer/internal/middleware"
	"github.com/draftops/auctioneer/internal/store"
	"github.com/draftops/auctioneer/internal/tracing"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Error("failed to init sentry", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Initialize tracing
	ctx := context.Background()
	tracingShutdown, err := tracing.Init(ctx, "auctioneer", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Warn("failed to init tracing", slog.String("error", err.Error()))
	} else {
		defer tracingShutdown(ctx)
	}

	// Connect to database (read-only preset lookups only, see internal/store)
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to parse database config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dbConfig.MaxConns = int32(cfg.DBMaxConns)
	dbConfig.MinConns = int32(cfg.DBMinConns)
	dbConfig.MaxConnLifetime = cfg.DBMaxConnLife

	db, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		logger.Error("failed to ping database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("database_connected")

	// Map process tunables onto the auction engine's config shape and
	// start the manager that owns every live auction's goroutine.
	defaults := cfg.AuctionDefaults()
	auctionCfg := auction.Config{
		TimerDuration:   defaults.TimerDuration,
		WaitingTTL:      defaults.WaitingTTL,
		TerminateGrace:  defaults.TerminateGrace,
		MaxTeamSize:     defaults.MaxTeamSize,
		MinBidIncrement: defaults.MinBidIncrement,
	}
	manager := auction.NewManager(auctionCfg, logger)
	defer manager.Shutdown()

	presets := store.NewPresetReader(db, logger)
	dispatcher := &gateway.LogDispatcher{Logger: logger}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(db)
	adminHandler := handler.NewAdminHandler(manager, presets, dispatcher, logger)
	debugHandler := handler.NewDebugHandler(manager, db, logger)
	gatewayHandler := gateway.NewHandler(manager, logger)

	adminAuth := middleware.NewAdminAuth(logger, cfg.AdminJWTSecret)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)

	// Metrics endpoint
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	// Session ingress: the per-client websocket handshake and message
	// loop (no admin auth — the token in the URL is the capability).
	r.Get("/ws/{token}", gatewayHandler.ServeHTTP)

	// Admin surface: seating, inspecting, and tearing down auctions.
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminAuth.Middleware)

		r.Post("/auctions", adminHandler.CreateAuction)
		r.Get("/auctions", adminHandler.ListAuctions)
		r.Get("/auctions/{id}", adminHandler.GetAuction)
		r.Delete("/auctions/{id}", adminHandler.RemoveAuction)
	})

	// Debug endpoints (gated by DEBUG_ENDPOINTS_ENABLED; seeding is further
	// limited to development/test by the handler)
	if cfg.DebugEndpointsEnabled {
		r.Route("/debug", func(r chi.Router) {
			r.Get("/stats", debugHandler.AllStats)
			r.Get("/auctions/{id}", debugHandler.AuctionStats)
			r.Post("/seed", debugHandler.SeedPreset)
			r.Delete("/seed", debugHandler.ClearSeed)
		})
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server_starting",
			slog.Int("port", cfg.Port),
			slog.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", slog.String("error", err.Error()))
	}

	logger.Info("server_stopped")
}
