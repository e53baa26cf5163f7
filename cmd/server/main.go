package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"

	"github.com/yukikurage/catena-api/internal/auth"
	"github.com/yukikurage/catena-api/internal/broadcast"
	"github.com/yukikurage/catena-api/internal/config"
	"github.com/yukikurage/catena-api/internal/constants"
	"github.com/yukikurage/catena-api/internal/database"
	"github.com/yukikurage/catena-api/internal/handlers"
	"github.com/yukikurage/catena-api/internal/logging"
	"github.com/yukikurage/catena-api/internal/mail"
	"github.com/yukikurage/catena-api/internal/middleware"
	"github.com/yukikurage/catena-api/internal/repository"
	"github.com/yukikurage/catena-api/internal/services"
	"github.com/yukikurage/catena-api/internal/validation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewJSON(os.Stdout, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.MigrateDatabase(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := validation.Register(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	// Repositories and services
	users := repository.NewUserRepository(db)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	hub := broadcast.NewHub(64)

	var taskOpts []services.TaskServiceOption
	if cfg.OpenAIAPIKey != "" {
		taskOpts = append(taskOpts, services.WithAI(services.NewAIService(cfg.OpenAIAPIKey)))
	}
	taskService := services.NewTaskService(
		repository.NewTaskRepository(db),
		repository.NewScheduleRepository(db),
		hub,
		log.With("component", "tasks"),
		cfg.Timezone,
		taskOpts...,
	)
	authService := services.NewAuthService(users, tokens, log.With("component", "auth"))
	resetService := services.NewPasswordResetService(
		users,
		repository.NewPasswordResetRepository(db),
		authService,
		newMailer(cfg, log),
		log.With("component", "password_reset"),
		cfg.PasswordResetTTL,
		cfg.PasswordResetURL,
	)

	// Housekeeping
	scheduler := services.NewSchedulerService(cfg.Timezone, log.With("component", "scheduler"))
	if _, err := scheduler.ScheduleTask("purge_password_resets", cfg.PasswordResetPurgeInterval, func(ctx context.Context) error {
		_, err := resetService.PurgeExpired(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("failed to schedule purge: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize Gin router
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(log.With("component", "http")))

	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Health check endpoint
	r.GET("/health", handlers.Health)

	// API routes
	handlers.RegisterRoutes(r.Group("/api/v1"), handlers.Handlers{
		Auth:   handlers.NewAuthHandler(authService, log),
		Reset:  handlers.NewPasswordResetHandler(resetService, log),
		Tasks:  handlers.NewTaskHandler(taskService, log),
		Events: handlers.NewEventHandler(hub, log),
	}, middleware.RequireAuth(tokens))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting", "addr", srv.Addr, "db_driver", cfg.DBDriver, "timezone", cfg.Timezone.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSessionStore uses Redis when REDIS_HOST is set and a signed cookie
// otherwise.
func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	if cfg.RedisHost != "" {
		redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
		rs, err := redisStore.NewStore(
			10,        // Redis pool size
			"tcp",     // network type
			redisAddr, // Redis address from config
			"",        // password (empty = no password)
			[]byte(cfg.SessionSecret),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		store = rs
	} else {
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	isProduction := cfg.GinMode == gin.ReleaseMode
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(constants.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

func newMailer(cfg *config.Config, log logging.Logger) mail.Mailer {
	if cfg.SMTPHost == "" {
		return mail.NewLogMailer(log.With("component", "mail"))
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}
