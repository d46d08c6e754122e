package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dchat/internal/config"
	"dchat/internal/dispatch"
	"dchat/internal/domain"
	"dchat/internal/handler"
	"dchat/internal/messaging"
	"dchat/internal/middleware"
	"dchat/internal/observability"
	"dchat/internal/repository/postgres"
	"dchat/internal/service"
	"dchat/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting chat server", slog.String("environment", cfg.Environment))

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(connCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.EnsureSchema(connCtx, db); err != nil {
		slog.Error("failed to apply schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	brokerCtx, brokerCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer brokerCancel()

	broker, err := messaging.Connect(brokerCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Close()
	slog.Info("connected to rabbitmq", slog.String("queue", broker.QueueName()))

	userRepo := postgres.NewUserRepository(db)
	sessionRepo, err := postgres.NewSessionRepository(db)
	if err != nil {
		slog.Error("failed to prepare session statements", slog.String("error", err.Error()))
		os.Exit(1)
	}
	messageRepo := postgres.NewMessageRepository(db)

	authService := service.NewAuthService(userRepo, sessionRepo)
	chatService := service.NewChatService(messageRepo, authService, broker)
	chatService.SetHistoryPageSize(cfg.HistoryPageSize)

	registry := websocket.NewRegistry()
	dispatcher := dispatch.NewDispatcher(registry, dispatch.DefaultCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("dispatcher error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("delivery dispatcher started")

	consumer := messaging.NewConsumer(broker, dispatcher)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("failed to start broker consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("broker consumer started")

	go startSessionCleanup(ctx, sessionRepo)
	slog.Info("session cleanup task started")

	origins := middleware.ParseOrigins(cfg.AllowedOrigins)

	authHandler := handler.NewAuthHandler(authService)
	wsHandler := handler.NewWebSocketHandler(registry, chatService, authService, origins)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(origins))
	r.Use(middleware.Metrics())
	r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig()))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, broker))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		authLimiter := middleware.NewRateLimiter(5, 10)
		apiLimiter := middleware.NewRateLimiter(20, 50)

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionRepo))
			r.Use(apiLimiter.Middleware())

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
		})
	})

	// Token may arrive as a query param, so upgrade auth is optional here
	// and the frame protocol rejects sends from anonymous connections.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(sessionRepo))
		r.Get("/ws", wsHandler.HandleConnection)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chat server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()

	time.Sleep(100 * time.Millisecond)

	slog.Info("server stopped gracefully")
}

// startSessionCleanup runs a background task to delete expired sessions
func startSessionCleanup(ctx context.Context, repo domain.SessionRepository) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := repo.DeleteExpired(cleanupCtx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("session cleanup completed",
					slog.Int64("sessions_deleted", count))
			}
			cleanupCancel()
		}
	}
}
