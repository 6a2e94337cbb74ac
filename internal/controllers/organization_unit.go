package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"region-system/internal/dto"
	"region-system/internal/services"
	"region-system/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type OrganizationUnitController struct {
	unitService services.OrganizationUnitServiceInterface
	logger      *zap.Logger
}

func NewOrganizationUnitController(service services.OrganizationUnitServiceInterface, logger *zap.Logger) *OrganizationUnitController {
	return &OrganizationUnitController{unitService: service, logger: logger}
}

func (c *OrganizationUnitController) GetUnits(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	units, total, err := c.unitService.ListUnits(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, units, "Подразделения успешно получены", http.StatusOK, total)
}

func (c *OrganizationUnitController) GetTree(ctx echo.Context) error {
	forceRefresh, _ := strconv.ParseBool(ctx.QueryParam("force_refresh"))
	tree, err := c.unitService.ListTree(ctx.Request().Context(), ctx.QueryParam("search"), forceRefresh)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, tree, "Дерево подразделений успешно получено", http.StatusOK)
}

// ExportTree отдаёт дерево файлом xlsx. Книга собирается в буфер,
// чтобы ошибка не оборвала уже начатый ответ.
func (c *OrganizationUnitController) ExportTree(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := c.unitService.ExportTree(ctx.Request().Context(), ctx.QueryParam("search"), &buf); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	fileName := fmt.Sprintf("organizations_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (c *OrganizationUnitController) FindUnit(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.unitService.GetUnit(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Подразделение успешно найдено", http.StatusOK)
}

func (c *OrganizationUnitController) CreateUnit(ctx echo.Context) error {
	var payload dto.CreateOrganizationUnitDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Неверное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.unitService.CreateUnit(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Подразделение успешно создано", http.StatusCreated)
}

func (c *OrganizationUnitController) UpdateUnit(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.UpdateOrganizationUnitDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Неверное тело запроса"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.unitService.UpdateUnit(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Подразделение успешно обновлено", http.StatusOK)
}

func (c *OrganizationUnitController) DeleteUnit(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.unitService.DeleteUnit(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Подразделение успешно удалено", http.StatusOK)
}

func (c *OrganizationUnitController) GetAvailableLevels(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	levels, err := c.unitService.AvailableChildLevels(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, levels, "Доступные уровни успешно получены", http.StatusOK)
}

func (c *OrganizationUnitController) GetPath(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	path, err := c.unitService.FullPath(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, path, "Путь подразделения успешно получен", http.StatusOK)
}

func (c *OrganizationUnitController) GetDescendants(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	units, err := c.unitService.Descendants(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, units, "Дочерние подразделения успешно получены", http.StatusOK)
}
