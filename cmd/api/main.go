package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/pharmacare/accounts/internal/handlers"
	"github.com/pharmacare/accounts/internal/mailer"
	"github.com/pharmacare/accounts/internal/repository"
	"github.com/pharmacare/accounts/internal/service"
	"github.com/pharmacare/accounts/internal/session"
	"github.com/pharmacare/accounts/pkg/config"
	"github.com/pharmacare/accounts/pkg/database"
	"github.com/pharmacare/accounts/pkg/events"
	"github.com/pharmacare/accounts/pkg/logger"
	mw "github.com/pharmacare/accounts/pkg/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to redis for session state
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid redis URL", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisOpts.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Initialize repositories and collaborators
	userRepo := repository.NewUserRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)
	mailService := mailer.FromConfig(cfg.Email)
	sessionStore := session.NewRedisStore(redisClient, cfg.Session.IdleTTL)
	sessionManager := session.NewManager(sessionStore, cfg.Session.CookieName, cfg.Session.Secure)

	// Initialize services
	accountService := service.NewAccountService(userRepo, mailService, eventBus, cfg)

	// Initialize handlers
	h := handlers.New(accountService, sessionManager, rateLimitRepo, cfg)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("accounts"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.App.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(h.WithSession)
		r.Use(mw.NoCache)
		r.Use(h.RequireCSRF)

		r.Get("/csrf", h.CsrfToken)

		r.Get("/login", h.LoginPage)
		r.With(h.RateLimit("login", 10, time.Minute)).Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.With(h.RateLimit("register", 5, time.Minute)).Post("/register", h.Register)

		r.Get("/verify-otp", h.VerifyOtpPage)
		r.With(h.RateLimit("verify_otp", 10, time.Minute)).Post("/verify-otp", h.VerifyOtp)
		r.With(h.RateLimit("resend_otp", 3, time.Minute)).Post("/resend-otp", h.ResendOtp)

		r.Get("/forgot-password", h.ForgotPasswordPage)
		r.With(h.RateLimit("forgot_password", 3, time.Minute)).Post("/forgot-password", h.ForgotPassword)
		r.Get("/reset-password", h.ResetPasswordLookup)
		r.Post("/reset-password", h.ResetPassword)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down accounts service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Accounts service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting accounts service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Accounts service error", "error", err)
		os.Exit(1)
	}
}
