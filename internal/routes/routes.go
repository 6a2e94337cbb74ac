package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"region-system/internal/controllers"
	"region-system/internal/listeners"
	"region-system/internal/repositories"
	"region-system/internal/services"
	"region-system/pkg/config"
	"region-system/pkg/eventbus"
	"region-system/pkg/metrics"
)

type Loggers struct {
	Main  *zap.Logger
	Unit  *zap.Logger
	Cache *zap.Logger
	Audit *zap.Logger
}

// Dependencies - всё, что зависит от выбранных драйверов хранилища и кеша.
type Dependencies struct {
	UnitRepo  repositories.OrganizationUnitRepositoryInterface
	TxManager repositories.TxManagerInterface
	CacheRepo repositories.CacheRepositoryInterface
	Bus       *eventbus.Bus
}

func InitRouter(e *echo.Echo, deps Dependencies, loggers *Loggers, cfg *config.Config) {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")

	// --- 1. СЕРВИСЫ ---
	checker := services.NewAncestryChecker(deps.UnitRepo, loggers.Unit)
	validator := services.NewUnitValidator(deps.UnitRepo, checker)
	indexService := services.NewHierarchicalIndexService(deps.UnitRepo, deps.CacheRepo, loggers.Cache, cfg.Cache.IndexTTL)
	treeCache := services.NewTreeCache(deps.UnitRepo, deps.CacheRepo, loggers.Cache, cfg.Cache.TreeTTL)
	unitService := services.NewOrganizationUnitService(
		deps.TxManager, deps.UnitRepo, validator, indexService, treeCache, deps.Bus, loggers.Unit,
	)

	// --- 2. СЛУШАТЕЛИ ---
	if deps.Bus != nil {
		listeners.NewAuditListener(loggers.Audit).Register(deps.Bus)
	}

	// --- 3. РОУТЕРЫ ---
	runOrganizationUnitRouter(api, unitService, loggers.Unit)
	runServiceRouter(e)

	loggers.Main.Info("INIT_ROUTER: Создание маршрутов завершено")
}

func runOrganizationUnitRouter(group *echo.Group, unitService services.OrganizationUnitServiceInterface, logger *zap.Logger) {
	ctrl := controllers.NewOrganizationUnitController(unitService, logger)

	units := group.Group("/organizations")
	units.GET("", ctrl.GetUnits)
	units.POST("", ctrl.CreateUnit)
	units.GET("/tree", ctrl.GetTree)
	units.GET("/tree/export", ctrl.ExportTree)
	units.GET("/:id", ctrl.FindUnit)
	units.PUT("/:id", ctrl.UpdateUnit)
	units.PATCH("/:id", ctrl.UpdateUnit)
	units.DELETE("/:id", ctrl.DeleteUnit)
	units.GET("/:id/available_levels", ctrl.GetAvailableLevels)
	units.GET("/:id/path", ctrl.GetPath)
	units.GET("/:id/descendants", ctrl.GetDescendants)
}

func runServiceRouter(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": true, "message": "ok"})
	})
}
