package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"region-system/internal/repositories"
	"region-system/internal/services"
	"region-system/pkg/config"
	"region-system/pkg/database/postgresql"
	applogger "region-system/pkg/logger"
	"region-system/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runUnits := flag.Bool("units", false, "Создать демонстрационную иерархию подразделений")
	runMigrate := flag.Bool("migrate", false, "Применить миграции перед наполнением")
	runAll := flag.Bool("all", false, "Запустить всё (эквивалентно -migrate -units)")

	flag.Parse()

	if !*runUnits && !*runMigrate && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -units")
		log.Println("  go run ./seeders/cmd/seed -all")
		log.Println("======================================================")
		return
	}

	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log)
	log.Println("📦 Используется DSN:", cfg.Postgres.DSN)
	dbPool := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbPool.Close()

	log.Println("======================================================")

	if *runAll || *runMigrate {
		if err := postgresql.Migrate(dbPool); err != nil {
			log.Fatalf("❌ Ошибка миграции: %v", err)
		}
		log.Println("✅ Миграции применены")
		log.Println("======================================================")
	}

	if *runAll || *runUnits {
		unitRepo := repositories.NewOrganizationUnitRepository(dbPool, logger)
		// Кеш сервера должен увидеть новые узлы, поэтому пишем в тот же Redis
		var cacheRepo repositories.CacheRepositoryInterface = repositories.NewMemoryCacheRepository()
		if cfg.Cache.Driver == config.DriverRedis {
			redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer redisClient.Close()
			cacheRepo = repositories.NewRedisCacheRepository(redisClient)
		}
		checker := services.NewAncestryChecker(unitRepo, logger)
		unitService := services.NewOrganizationUnitService(
			repositories.NewTxManager(dbPool),
			unitRepo,
			services.NewUnitValidator(unitRepo, checker),
			services.NewHierarchicalIndexService(unitRepo, cacheRepo, logger, time.Minute),
			services.NewTreeCache(unitRepo, cacheRepo, logger, time.Minute),
			nil,
			logger,
		)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := seeders.SeedOrganizationUnits(ctx, unitRepo, unitService); err != nil {
			log.Fatalf("❌ Ошибка наполнения подразделений: %v", err)
		}
		log.Println("======================================================")
	}

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
