package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/Dosada05/trivia-duel/cache"
	"github.com/Dosada05/trivia-duel/config"
	"github.com/Dosada05/trivia-duel/db"
	"github.com/Dosada05/trivia-duel/events"
	"github.com/Dosada05/trivia-duel/handlers"
	"github.com/Dosada05/trivia-duel/hub"
	"github.com/Dosada05/trivia-duel/repositories"
	api "github.com/Dosada05/trivia-duel/routes"
	"github.com/Dosada05/trivia-duel/services"
	"github.com/Dosada05/trivia-duel/storage"
)

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.DBAutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(migrateCtx, dbConn)
		cancel()
		if err != nil {
			logger.Error("failed to apply schema", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("database schema applied")
	}

	// Redis: живые сессии, очереди, счётчики
	redisClient, err := cache.NewClient(cfg.Redis, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}()
	store := cache.NewStore(redisClient, cache.Options{
		SessionTTL:     cfg.Game.SessionTTL,
		ReservationTTL: cfg.Game.MatchmakingTimeout,
	})
	logger.Info("redis connection established", slog.String("addr", cfg.Redis.Addr))

	// Архив результатов в Cloudflare R2 (опционально)
	var archiver services.ResultArchiver
	if cfg.R2.Enabled() {
		objectStorage, err := storage.NewR2Storage(context.Background(), storage.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 storage", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = services.NewResultArchiver(objectStorage)
		logger.Info("Cloudflare R2 result archive enabled", slog.String("bucket", cfg.R2.BucketName))
	} else {
		logger.Info("result archiving disabled")
	}

	// Публикация результатов в RabbitMQ (опционально)
	var publisher services.ResultPublisher
	if cfg.RabbitMQ.URL != "" {
		amqpPublisher := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, events.DialAMQP, logger)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		logger.Info("match result publishing enabled", slog.String("queue", cfg.RabbitMQ.Queue))
	} else {
		logger.Info("match result publishing disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := hub.New(logger)
	logger.Info("WebSocket Hub initialized")

	// Инициализация репозиториев
	tx := repositories.NewPostgresTransactor(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	participationRepo := repositories.NewPostgresParticipationRepository(dbConn)
	answerRepo := repositories.NewPostgresAnswerRepository(dbConn)
	questionRepo := repositories.NewPostgresQuestionRepository(dbConn)
	userStatsRepo := repositories.NewPostgresUserStatsRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	matchService := services.NewMatchService(
		tx,
		matchRepo,
		teamRepo,
		participationRepo,
		answerRepo,
		questionRepo,
		userStatsRepo,
		store,
		wsHub,
		publisher,
		archiver,
		services.MatchConfig{
			QuestionsPerMatch: cfg.Game.QuestionsPerMatch,
			GameDuration:      cfg.Game.Duration,
			SessionTTL:        cfg.Game.SessionTTL,
		},
		logger,
	)
	scoringService := services.NewScoringService(
		tx,
		participationRepo,
		answerRepo,
		store,
		matchService,
		wsHub,
		cfg.Game.AnswerMaxTime,
		logger,
	)
	matchmakingService := services.NewMatchmakingService(
		tx,
		matchRepo,
		teamRepo,
		questionRepo,
		store,
		matchService,
		services.MatchmakingConfig{
			TeamSize:      cfg.Game.TeamSize,
			Timeout:       cfg.Game.MatchmakingTimeout,
			SessionTTL:    cfg.Game.SessionTTL,
			SweepInterval: cfg.SupervisorInterval,
		},
		logger,
	)
	supervisor := services.NewSupervisor(
		matchRepo,
		matchService,
		matchmakingService,
		store,
		services.SupervisorConfig{StartDeadline: cfg.Game.StartDeadline},
		logger,
	)
	wsHub.SetGameReader(matchService)
	logger.Info("Services initialized")

	// Запуск супервизора матчей
	supervisorCtx, stopSupervisor := context.WithCancel(context.Background())
	defer stopSupervisor()
	go func() {
		ticker := time.NewTicker(cfg.SupervisorInterval)
		defer ticker.Stop()
		logger.Info("Match supervisor started", slog.Duration("interval", cfg.SupervisorInterval))

		for {
			if err := supervisor.Sweep(supervisorCtx); err != nil {
				logger.Error("Supervisor: sweep finished with errors", slog.Any("error", err))
			}
			select {
			case <-supervisorCtx.Done():
				logger.Info("Match supervisor stopped")
				return
			case <-ticker.C:
			}
		}
	}()

	// Инициализация обработчиков HTTP
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"postgres": dbConn.PingContext,
		"redis":    store.Ping,
	}, wsHub.ConnectionCount)
	matchmakingHandler := handlers.NewMatchmakingHandler(matchmakingService)
	matchHandler := handlers.NewMatchHandler(matchService, scoringService)
	userHandler := handlers.NewUserHandler(matchService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, matchService)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{
			JWTSecret:      []byte(cfg.JWTSecretKey),
			AllowedOrigins: cfg.CORSAllowedOrigins,
		},
		healthHandler,
		matchmakingHandler,
		matchHandler,
		userHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopSupervisor()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
