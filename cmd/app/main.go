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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/untibullet/teamup-coach/internal/coaching"
	"github.com/untibullet/teamup-coach/internal/config"
	"github.com/untibullet/teamup-coach/internal/feedback"
	"github.com/untibullet/teamup-coach/internal/handlers"
	"github.com/untibullet/teamup-coach/internal/matching"
	"github.com/untibullet/teamup-coach/internal/models"
	"github.com/untibullet/teamup-coach/internal/notify"
	"github.com/untibullet/teamup-coach/internal/records"
	"github.com/untibullet/teamup-coach/internal/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger, err := initLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting TeamUp coaching service",
		zap.String("server_address", cfg.Server.GetAddress()),
		zap.String("database_driver", cfg.Database.Driver))

	// Подключение к хранилищу
	store, err := initStore(context.Background(), cfg.Database)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	logger.Info("store ready")

	// Уведомления: лог, WebSocket и, если настроен, Telegram
	hub := notify.NewHub(logger)
	defer hub.Close()

	notifiers := notify.Multi{notify.NewLog(logger), hub}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
		if err != nil {
			logger.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			defer tg.Wait()
			notifiers = append(notifiers, tg)
		}
	}

	// Коучинг: удаленный сервис или локальная генерация
	gen := coaching.NewGenerator(nil, models.TeamDNA(cfg.Coaching.DefaultDNA))
	var backend coaching.Backend
	if cfg.Coaching.BackendURL != "" {
		backend = coaching.NewRemoteBackend(cfg.Coaching.BackendURL, cfg.Coaching.Timeout)
		logger.Info("using remote coaching backend", zap.String("url", cfg.Coaching.BackendURL))
	} else {
		backend = coaching.NewLocalBackend(gen, store)
		logger.Info("using local comment generator")
	}

	// Сервисы
	recs := records.New(store)
	match := matching.New(recs, notifiers, logger)
	fb := feedback.New(recs, gen, backend, notifiers, logger)

	// Инициализация обработчиков
	handler := handlers.New(recs, match, fb, hub, logger)

	// Настройка Echo сервера
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.Info("request",
					zap.String("method", c.Request().Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
				)
			} else {
				logger.Error("request error",
					zap.String("method", c.Request().Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Error(v.Error),
				)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Регистрация роутов
	handler.RegisterRoutes(e)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Запуск сервера в горутине
	go func() {
		addr := cfg.Server.GetAddress()
		logger.Info("server listening", zap.String("address", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start failed", zap.Error(err))
		}
	}()

	// Ожидание сигнала завершения
	<-ctx.Done()
	logger.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}

// initLogger инициализирует zap логгер на основе конфигурации
func initLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// initStore открывает хранилище выбранного драйвера и применяет миграции
func initStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	if cfg.Driver == config.DriverSQLite {
		store, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	pool, err := initDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := repository.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return repository.NewPostgres(pool), nil
}

// initDatabase инициализирует пул подключений к PostgreSQL
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Настройки пула
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
