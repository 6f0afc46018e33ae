package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storybot-server/internal/clients"
	"storybot-server/internal/config"
	"storybot-server/internal/configservice"
	"storybot-server/internal/database"
	"storybot-server/internal/handler"
	"storybot-server/internal/logger"
	"storybot-server/internal/messaging"
	"storybot-server/internal/repository"
	"storybot-server/internal/service"
	"storybot-server/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const notificationConsumerConcurrency = 4

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Storybot Server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// Подключение к PostgreSQL и миграции
	dbPool, err := setupDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
	}
	defer dbPool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.RunMigrations(ctx, dbPool, cfg.MigrationsDir, zapLogger); err != nil {
		cancel()
		zapLogger.Fatal("Ошибка выполнения миграций", zap.Error(err))
	}
	cancel()

	// Подключение к RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	zapLogger.Info("Успешное подключение к RabbitMQ")

	notificationPublisher, err := messaging.NewRabbitMQNotificationPublisher(rabbitConn, cfg.NotificationsQueueName)
	if err != nil {
		zapLogger.Fatal("Не удалось создать паблишер уведомлений", zap.Error(err))
	}

	// Инициализация зависимостей
	gatewayClient := clients.NewHTTPGatewayClient(cfg.GatewayBaseURL, cfg.GatewayToken, zapLogger)
	txHelper := repository.NewTransactionHelper(dbPool, zapLogger)

	storyRepo := repository.NewPgStoryRepository(zapLogger)
	writerRepo := repository.NewPgWriterRepository(zapLogger)
	turnRepo := repository.NewPgTurnRepository(zapLogger)
	entryRepo := repository.NewPgEntryRepository(zapLogger)
	jobRepo := repository.NewPgScheduledJobRepository(zapLogger)
	configRepo := repository.NewPgConfigRepository(zapLogger)

	textResolver, err := configservice.NewResolver(configRepo, dbPool, cfg.DefaultLanguage, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось загрузить тексты конфигурации", zap.Error(err))
	}

	writerSelector := service.NewWriterSelector(writerRepo, turnRepo, zapLogger)
	turnService := service.NewTurnService(writerRepo, turnRepo, writerSelector, gatewayClient, textResolver, zapLogger)
	storyService := service.NewStoryService(
		txHelper, dbPool, storyRepo, writerRepo, turnRepo, jobRepo,
		turnService, gatewayClient, textResolver, notificationPublisher, zapLogger,
	)
	entryService := service.NewEntryService(
		txHelper, storyRepo, writerRepo, turnRepo, entryRepo,
		turnService, gatewayClient, textResolver, notificationPublisher,
		time.Duration(cfg.EntryPreviewTimeoutMin)*time.Minute, cfg.FinalizeFetchLimit, zapLogger,
	)

	// Воркеры: доставка уведомлений и поллер отложенной активации
	dispatcher := worker.NewDispatcher(zapLogger, gatewayClient)
	notificationConsumer := worker.NewNotificationConsumer(
		rabbitConn, zapLogger, cfg.NotificationsQueueName, notificationConsumerConcurrency, dispatcher,
	)
	go func() {
		if err := notificationConsumer.Start(); err != nil {
			zapLogger.Error("Консьюмер уведомлений завершился с ошибкой", zap.Error(err))
		}
	}()

	activationPoller := worker.NewActivationPoller(txHelper, jobRepo, storyService, cfg.ActivationPollInterval, zapLogger)
	go activationPoller.Start()

	// Настройка Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())

	storyHandler := handler.NewStoryHandler(storyService, entryService, cfg.GatewayToken, zapLogger)
	storyHandler.RegisterRoutes(e)

	go func() {
		zapLogger.Info("HTTP сервер слушает", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	activationPoller.Stop()
	notificationConsumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Ошибка при graceful shutdown Echo", zap.Error(err))
	}

	zapLogger.Info("Storybot Server успешно остановлен")
}

// setupDatabase инициализирует и возвращает пул соединений с БД.
func setupDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД (ping failed): %w", err)
	}
	logger.Info("Успешное подключение к PostgreSQL")
	return dbPool, nil
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("не удалось подключиться к RabbitMQ после %d попыток: %w", maxRetries, err)
}
