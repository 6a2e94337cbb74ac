package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"region-system/internal/entities"
	"region-system/internal/repositories"
	apperrors "region-system/pkg/errors"
)

type AncestryCheckerInterface interface {
	WouldCreateCycle(ctx context.Context, candidateParentID, nodeID uint64) (bool, error)
	DepthOf(ctx context.Context, id uint64) (int, error)
	SubtreeHeight(ctx context.Context, id uint64) (int, error)
}

// AncestryChecker проходит цепочку родителей точечными запросами в репозиторий.
// Каждый обход ограничен MaxDepth и защищён множеством посещённых узлов.
type AncestryChecker struct {
	unitRepo repositories.OrganizationUnitRepositoryInterface
	logger   *zap.Logger
}

func NewAncestryChecker(unitRepo repositories.OrganizationUnitRepositoryInterface, logger *zap.Logger) *AncestryChecker {
	return &AncestryChecker{unitRepo: unitRepo, logger: logger}
}

// WouldCreateCycle возвращает true, если nodeID встречается среди candidateParentID и его предков.
// Повторное посещение или слишком длинная цепочка тоже считаются циклом.
func (c *AncestryChecker) WouldCreateCycle(ctx context.Context, candidateParentID, nodeID uint64) (bool, error) {
	if candidateParentID == nodeID {
		return true, nil
	}

	visited := make(map[uint64]struct{}, entities.MaxDepth)
	current := candidateParentID
	for steps := 0; steps <= entities.MaxDepth; steps++ {
		if current == nodeID {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			c.logger.Warn("AncestryChecker: повторное посещение узла в цепочке родителей", zap.Uint64("id", current))
			return true, nil
		}
		visited[current] = struct{}{}

		unit, err := c.unitRepo.FindByID(ctx, current)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if unit.ParentID == nil {
			return false, nil
		}
		current = *unit.ParentID
	}

	c.logger.Warn("AncestryChecker: цепочка родителей длиннее допустимой", zap.Uint64("start", candidateParentID))
	return true, nil
}

// DepthOf - число подразделений на пути от корня до id включительно.
// При разрыве цепочки возвращает ErrParentNotFound, при зацикливании - ErrCycleDetected.
func (c *AncestryChecker) DepthOf(ctx context.Context, id uint64) (int, error) {
	visited := make(map[uint64]struct{}, entities.MaxDepth)
	current := id
	depth := 0
	for depth <= entities.MaxDepth {
		if _, seen := visited[current]; seen {
			return 0, apperrors.NewUnitError(apperrors.KindCycleDetected, "parent_id", "цепочка родителей зациклена на узле %d", current)
		}
		visited[current] = struct{}{}

		unit, err := c.unitRepo.FindByID(ctx, current)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return 0, apperrors.NewUnitError(apperrors.KindParentNotFound, "parent_id", "подразделение %d не найдено", current)
			}
			return 0, err
		}
		depth++
		if unit.ParentID == nil {
			return depth, nil
		}
		current = *unit.ParentID
	}
	return depth, nil
}

// SubtreeHeight - высота поддерева id, включая сам узел (лист = 1).
func (c *AncestryChecker) SubtreeHeight(ctx context.Context, id uint64) (int, error) {
	visited := map[uint64]struct{}{id: {}}
	frontier := []uint64{id}
	height := 0
	for len(frontier) > 0 && height <= entities.MaxDepth {
		height++
		var next []uint64
		for _, parentID := range frontier {
			pid := parentID
			children, err := c.unitRepo.FindChildren(ctx, &pid)
			if err != nil {
				return 0, err
			}
			for _, child := range children {
				if _, seen := visited[child.ID]; seen {
					return 0, apperrors.NewUnitError(apperrors.KindCycleDetected, "parent_id", "поддерево %d зациклено", id)
				}
				visited[child.ID] = struct{}{}
				next = append(next, child.ID)
			}
		}
		frontier = next
	}
	return height, nil
}
