package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ambulink/ambulink/internal/config"
	"github.com/ambulink/ambulink/internal/domain/booking"
	"github.com/ambulink/ambulink/internal/domain/fleet"
	"github.com/ambulink/ambulink/internal/domain/payment"
	"github.com/ambulink/ambulink/internal/platform/auth"
	"github.com/ambulink/ambulink/internal/platform/clock"
	"github.com/ambulink/ambulink/internal/platform/db"
	"github.com/ambulink/ambulink/internal/platform/eventbus"
	"github.com/ambulink/ambulink/internal/platform/middleware"
	"github.com/ambulink/ambulink/internal/platform/notification"
	"github.com/ambulink/ambulink/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ambulanced",
		Short: "Ambulance dispatch API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatch API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Event bus, clock, deadline scheduler
	bus := eventbus.New()
	defer bus.Close()
	clk := clock.New()
	scheduler := clock.NewScheduler(clk)
	defer scheduler.Shutdown()

	// Payment ledger
	planPolicy := payment.PlanPolicy{
		FullDue:         cfg.PaymentDue(),
		DownpaymentHold: cfg.DownpaymentHold(),
		FinalLead:       cfg.FinalPaymentLead(),
		DownpaymentRate: cfg.DownpaymentRate,
	}
	paymentRepo := payment.NewRepoPG(pool)
	ledger := payment.NewLedger(paymentRepo, bus, scheduler, clk, planPolicy, logger)

	// Fleet registry
	ambulanceRepo := fleet.NewAmbulanceRepoPG(pool)
	driverRepo := fleet.NewDriverRepoPG(pool)
	registry := fleet.NewRegistry(ambulanceRepo, driverRepo, logger)

	// Dispatch coordinator
	bookingRepo := booking.NewRepoPG(pool)
	coordinator := booking.NewService(bookingRepo, registry, ledger, bus, clk, logger)
	teardownHandlers := coordinator.RegisterEventHandlers()
	defer teardownHandlers()

	// Deadlines for payments that were pending across a restart.
	if err := ledger.RearmPending(ctx); err != nil {
		logger.Error().Err(err).Msg("rearm pending payment deadlines")
	}

	// Notifications
	templates := notification.NewTemplateEngine()
	sender := notification.NewLogSender(logger)
	manager := notification.NewManager(sender, sender, templates)
	notifier := notification.NewSubscriber(manager, coordinator, logger)
	notifier.Start(bus)
	defer notifier.Stop()

	// Dispatch board
	hub := websocket.NewHub(logger)
	unbridge := hub.Bridge(bus)
	defer unbridge()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
		}))
	}

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Domain routes
	booking.NewHandler(coordinator).RegisterRoutes(apiV1)
	fleet.NewHandler(registry).RegisterRoutes(apiV1)
	payment.NewHandler(ledger).RegisterRoutes(apiV1)
	notification.NewHandler(manager).RegisterRoutes(apiV1)
	websocket.NewHandler(hub).RegisterRoutes(e.Group(""))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
