package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"region-system/internal/dto"
	"region-system/internal/entities"
	"region-system/internal/events"
	"region-system/internal/hierarchy"
	"region-system/internal/repositories"
	"region-system/pkg/eventbus"
	apperrors "region-system/pkg/errors"
	"region-system/pkg/metrics"
	"region-system/pkg/types"
	"region-system/pkg/utils"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	pathSeparator  = " / "
)

type OrganizationUnitServiceInterface interface {
	CreateUnit(ctx context.Context, payload dto.CreateOrganizationUnitDTO) (*dto.OrganizationUnitDTO, error)
	UpdateUnit(ctx context.Context, id uint64, payload dto.UpdateOrganizationUnitDTO) (*dto.OrganizationUnitDTO, error)
	DeleteUnit(ctx context.Context, id uint64) error
	GetUnit(ctx context.Context, id uint64) (*dto.OrganizationUnitDTO, error)
	ListUnits(ctx context.Context, filter types.Filter) ([]dto.OrganizationUnitDTO, uint64, error)
	ListTree(ctx context.Context, search string, forceRefresh bool) ([]*hierarchy.Node, error)
	AvailableChildLevels(ctx context.Context, id uint64) ([]dto.LevelOptionDTO, error)
	FullPath(ctx context.Context, id uint64) (*dto.UnitPathDTO, error)
	Descendants(ctx context.Context, id uint64) ([]dto.OrganizationUnitDTO, error)
	ExportTree(ctx context.Context, search string, w io.Writer) error
}

type OrganizationUnitService struct {
	txManager repositories.TxManagerInterface
	unitRepo  repositories.OrganizationUnitRepositoryInterface
	validator UnitValidatorInterface
	index     HierarchicalIndexServiceInterface
	treeCache TreeCacheInterface
	bus       *eventbus.Bus
	logger    *zap.Logger
}

func NewOrganizationUnitService(
	txManager repositories.TxManagerInterface,
	unitRepo repositories.OrganizationUnitRepositoryInterface,
	validator UnitValidatorInterface,
	index HierarchicalIndexServiceInterface,
	treeCache TreeCacheInterface,
	bus *eventbus.Bus,
	logger *zap.Logger,
) *OrganizationUnitService {
	return &OrganizationUnitService{
		txManager: txManager,
		unitRepo:  unitRepo,
		validator: validator,
		index:     index,
		treeCache: treeCache,
		bus:       bus,
		logger:    logger,
	}
}

func (s *OrganizationUnitService) CreateUnit(ctx context.Context, payload dto.CreateOrganizationUnitDTO) (*dto.OrganizationUnitDTO, error) {
	draft, err := draftFromDTO(payload)
	if err != nil {
		return nil, s.reject("create", err)
	}

	var created *entities.OrganizationUnit
	err = s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		unit, err := s.validator.ValidateCreate(txCtx, draft)
		if err != nil {
			return err
		}
		if _, err := s.unitRepo.Create(txCtx, unit); err != nil {
			return err
		}
		created = unit
		return nil
	})
	if err != nil {
		return nil, s.reject("create", err)
	}

	s.afterWrite(ctx, events.ActionCreated, created.ID, []uint64{created.ID}, created)
	s.logger.Info("Подразделение успешно создано",
		zap.Uint64("id", created.ID), zap.String("name", created.Name), zap.String("level", created.Level.String()))
	return s.toDTO(ctx, created), nil
}

func (s *OrganizationUnitService) UpdateUnit(ctx context.Context, id uint64, payload dto.UpdateOrganizationUnitDTO) (*dto.OrganizationUnitDTO, error) {
	patch, err := patchFromDTO(payload)
	if err != nil {
		return nil, s.reject("update", err)
	}

	var updated *entities.OrganizationUnit
	var affected []uint64
	err = s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.unitRepo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		merged, err := s.validator.ValidateUpdate(txCtx, *current, patch)
		if err != nil {
			return err
		}
		if err := s.unitRepo.Update(txCtx, merged); err != nil {
			return err
		}

		affected = []uint64{id}
		subtreeMoved := merged.Code != current.Code || utils.DiffPtr(merged.ParentID, current.ParentID) || merged.SortOrder != current.SortOrder
		if merged.Code != current.Code {
			if _, err := s.unitRepo.UpdateSubtreeCode(txCtx, id, merged.Code); err != nil {
				return err
			}
		}
		if subtreeMoved {
			descendants, err := s.unitRepo.FindDescendants(txCtx, id)
			if err != nil {
				return err
			}
			for _, d := range descendants {
				affected = append(affected, d.ID)
			}
		}
		updated = merged
		return nil
	})
	if err != nil {
		return nil, s.reject("update", err)
	}

	s.afterWrite(ctx, events.ActionUpdated, id, affected, updated)
	s.logger.Info("Подразделение успешно обновлено", zap.Uint64("id", id), zap.Int("affected", len(affected)))
	return s.toDTO(ctx, updated), nil
}

func (s *OrganizationUnitService) DeleteUnit(ctx context.Context, id uint64) error {
	var removed []uint64
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		removed, err = s.unitRepo.Delete(txCtx, id)
		return err
	})
	if err != nil {
		s.logger.Error("Ошибка при удалении подразделения", zap.Uint64("id", id), zap.Error(err))
		return err
	}

	s.afterWrite(ctx, events.ActionDeleted, id, removed, nil)
	s.logger.Info("Подразделение удалено", zap.Uint64("id", id), zap.Uint64s("removed", removed))
	return nil
}

func (s *OrganizationUnitService) GetUnit(ctx context.Context, id uint64) (*dto.OrganizationUnitDTO, error) {
	unit, err := s.unitRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, unit), nil
}

// ListUnits - плоский список с фильтрами и пагинацией; у каждой строки свой иерархический индекс.
func (s *OrganizationUnitService) ListUnits(ctx context.Context, filter types.Filter) ([]dto.OrganizationUnitDTO, uint64, error) {
	units, total, err := s.unitRepo.GetAll(ctx, filter)
	if err != nil {
		s.logger.Error("Ошибка при получении списка подразделений", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.OrganizationUnitDTO, 0, len(units))
	for i := range units {
		result = append(result, *s.toDTO(ctx, &units[i]))
	}
	return result, total, nil
}

func (s *OrganizationUnitService) ListTree(ctx context.Context, search string, forceRefresh bool) ([]*hierarchy.Node, error) {
	return s.treeCache.ListTree(ctx, search, forceRefresh)
}

// AvailableChildLevels отвечает на вопрос, какие уровни можно создать под подразделением id.
func (s *OrganizationUnitService) AvailableChildLevels(ctx context.Context, id uint64) ([]dto.LevelOptionDTO, error) {
	unit, err := s.unitRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	levels := hierarchy.AvailableChildLevels(unit.Level)
	options := make([]dto.LevelOptionDTO, 0, len(levels))
	for _, level := range levels {
		options = append(options, dto.LevelOptionDTO{Value: level.String(), Label: level.Label(), Order: level.Order()})
	}
	return options, nil
}

// FullPath собирает цепочку от корня до id, например "省 / 市 / 区".
func (s *OrganizationUnitService) FullPath(ctx context.Context, id uint64) (*dto.UnitPathDTO, error) {
	unit, err := s.unitRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []dto.ShortOrganizationUnitDTO{shortDTO(unit)}
	visited := map[uint64]struct{}{unit.ID: {}}
	for current := unit; current.ParentID != nil; {
		if len(chain) >= entities.MaxDepth {
			break
		}
		parent, err := s.unitRepo.FindByID(ctx, *current.ParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				s.logger.Warn("FullPath: цепочка родителей оборвана", zap.Uint64("id", id), zap.Uint64("parent_id", *current.ParentID))
				break
			}
			return nil, err
		}
		if _, seen := visited[parent.ID]; seen {
			break
		}
		visited[parent.ID] = struct{}{}
		chain = append([]dto.ShortOrganizationUnitDTO{shortDTO(parent)}, chain...)
		current = parent
	}

	names := make([]string, 0, len(chain))
	for _, link := range chain {
		names = append(names, link.Name)
	}
	return &dto.UnitPathDTO{ID: id, FullPath: strings.Join(names, pathSeparator), Chain: chain}, nil
}

// Descendants возвращает само подразделение и всех его потомков плоским списком.
func (s *OrganizationUnitService) Descendants(ctx context.Context, id uint64) ([]dto.OrganizationUnitDTO, error) {
	unit, err := s.unitRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	descendants, err := s.unitRepo.FindDescendants(ctx, id)
	if err != nil {
		return nil, err
	}

	result := make([]dto.OrganizationUnitDTO, 0, len(descendants)+1)
	result = append(result, *s.toDTO(ctx, unit))
	for i := range descendants {
		result = append(result, *s.toDTO(ctx, &descendants[i]))
	}
	return result, nil
}

// afterWrite выполняется только после успешного коммита.
func (s *OrganizationUnitService) afterWrite(ctx context.Context, action string, unitID uint64, affected []uint64, unit *entities.OrganizationUnit) {
	s.treeCache.Invalidate(ctx, affected...)
	if s.bus != nil {
		s.bus.Publish(ctx, events.NewOrganizationUnitChangedEvent(action, unitID, affected, unit))
	}
}

func (s *OrganizationUnitService) reject(op string, err error) error {
	kind := apperrors.KindOf(err)
	if kind != "" && kind != apperrors.KindStorage && kind != apperrors.KindNotFound {
		metrics.ValidationRejectionsTotal.WithLabelValues(string(kind)).Inc()
		s.logger.Warn("Запрос отклонён валидацией", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
		return err
	}
	s.logger.Error("Ошибка при записи подразделения", zap.String("op", op), zap.Error(err))
	return err
}

func (s *OrganizationUnitService) toDTO(ctx context.Context, unit *entities.OrganizationUnit) *dto.OrganizationUnitDTO {
	result := &dto.OrganizationUnitDTO{
		ID:                unit.ID,
		Name:              unit.Name,
		Code:              unit.Code,
		Level:             unit.Level.String(),
		LevelLabel:        unit.Level.Label(),
		ParentID:          unit.ParentID,
		Active:            unit.Active,
		SortOrder:         unit.SortOrder,
		HierarchicalIndex: s.index.IndexOf(ctx, unit.ID),
	}
	if unit.CreatedAt != nil {
		result.CreatedAt = unit.CreatedAt.Format(dateTimeLayout)
	}
	if unit.UpdatedAt != nil {
		result.UpdatedAt = unit.UpdatedAt.Format(dateTimeLayout)
	}
	return result
}

func shortDTO(unit *entities.OrganizationUnit) dto.ShortOrganizationUnitDTO {
	return dto.ShortOrganizationUnitDTO{ID: unit.ID, Name: unit.Name, Level: unit.Level.String()}
}

func draftFromDTO(payload dto.CreateOrganizationUnitDTO) (UnitDraft, error) {
	draft := UnitDraft{Name: payload.Name, Code: payload.Code}
	if strings.TrimSpace(payload.Level) != "" {
		level, err := parseLevel(payload.Level)
		if err != nil {
			return UnitDraft{}, err
		}
		draft.Level = level
	}
	if payload.ParentID.Valid {
		pid := payload.ParentID.Uint64
		draft.ParentID = &pid
	}
	if payload.Active.Valid {
		active := payload.Active.Bool
		draft.Active = &active
	}
	if payload.SortOrder.Valid {
		order := payload.SortOrder.Int
		draft.SortOrder = &order
	}
	return draft, nil
}

func patchFromDTO(payload dto.UpdateOrganizationUnitDTO) (UnitPatch, error) {
	patch := UnitPatch{
		Name:      payload.Name,
		Code:      payload.Code,
		ParentID:  payload.ParentID,
		Active:    payload.Active,
		SortOrder: payload.SortOrder,
	}
	if payload.Level != nil {
		var level entities.Level
		if strings.TrimSpace(*payload.Level) != "" {
			parsed, err := parseLevel(*payload.Level)
			if err != nil {
				return UnitPatch{}, err
			}
			level = parsed
		}
		patch.Level = &level
	}
	return patch, nil
}

func parseLevel(raw string) (entities.Level, error) {
	level, err := entities.ParseLevel(raw)
	if err != nil {
		return 0, apperrors.NewUnitError(apperrors.KindInvalidLevelTransition, "level", "неизвестный уровень %q", raw)
	}
	return level, nil
}
