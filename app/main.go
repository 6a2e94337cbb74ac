// Файл: main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"region-system/internal/repositories"
	"region-system/internal/routes"
	"region-system/pkg/config"
	"region-system/pkg/database/postgresql"
	apperrors "region-system/pkg/errors"
	"region-system/pkg/eventbus"
	applogger "region-system/pkg/logger"
	appmiddleware "region-system/pkg/middleware"
	"region-system/pkg/utils"
	"region-system/pkg/validation"
)

func main() {
	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	e := echo.New()
	e.HideBanner = true

	// 2. Middleware
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(appmiddleware.RequestLogger(logger.Named("http")))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Disposition", echo.HeaderXRequestID},
	}))

	// 3. Валидатор
	e.Validator = validation.New()

	// 4. Хранилище
	deps := routes.Dependencies{Bus: eventbus.New(logger.Named("eventbus"))}
	switch cfg.Postgres.Driver {
	case config.DriverMemory:
		memRepo := repositories.NewOrganizationUnitMemoryRepository()
		deps.UnitRepo = memRepo
		deps.TxManager = repositories.NewMemoryTxManager(memRepo)
		logger.Warn("Используется хранилище в памяти, данные не сохранятся после перезапуска")
	default:
		dbConn := postgresql.ConnectDB(cfg.Postgres.DSN)
		defer dbConn.Close()
		if cfg.Postgres.MigrateOnStart {
			if err := postgresql.Migrate(dbConn); err != nil {
				logger.Fatal("Не удалось применить миграции", zap.Error(err))
			}
		}
		deps.UnitRepo = repositories.NewOrganizationUnitRepository(dbConn, logger.Named("repository"))
		deps.TxManager = repositories.NewTxManager(dbConn)
	}

	// 5. Кеш
	switch cfg.Cache.Driver {
	case config.DriverMemory:
		deps.CacheRepo = repositories.NewMemoryCacheRepository()
	default:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
		}
		deps.CacheRepo = repositories.NewRedisCacheRepository(redisClient)
	}

	// 6. Роуты
	loggers := &routes.Loggers{
		Main:  logger,
		Unit:  logger.Named("organization"),
		Cache: logger.Named("cache"),
		Audit: logger.Named("audit"),
	}
	routes.InitRouter(e, deps, loggers, cfg)

	// 7. Запуск и плавная остановка
	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Ошибка при остановке сервера", zap.Error(err))
	}
	deps.Bus.Wait()
	logger.Info("Сервер остановлен")
}
