package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"region-system/internal/entities"
	"region-system/internal/hierarchy"
	"region-system/internal/repositories"
	apperrors "region-system/pkg/errors"
)

var rootCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// UnitDraft - входные данные для создания подразделения.
type UnitDraft struct {
	Name      string
	Code      string
	Level     entities.Level
	ParentID  *uint64
	Active    *bool
	SortOrder *int
}

// UnitPatch - частичное обновление; nil означает "не менять".
// ParentID переносит узел под другого родителя, отвязать узел в корень нельзя.
type UnitPatch struct {
	Name      *string
	Code      *string
	Level     *entities.Level
	ParentID  *uint64
	Active    *bool
	SortOrder *int
}

type UnitValidatorInterface interface {
	ValidateCreate(ctx context.Context, draft UnitDraft) (*entities.OrganizationUnit, error)
	ValidateUpdate(ctx context.Context, current entities.OrganizationUnit, patch UnitPatch) (*entities.OrganizationUnit, error)
}

// UnitValidator проверяет правила по порядку и останавливается на первой ошибке.
type UnitValidator struct {
	unitRepo repositories.OrganizationUnitRepositoryInterface
	checker  AncestryCheckerInterface
}

func NewUnitValidator(unitRepo repositories.OrganizationUnitRepositoryInterface, checker AncestryCheckerInterface) *UnitValidator {
	return &UnitValidator{unitRepo: unitRepo, checker: checker}
}

func (v *UnitValidator) ValidateCreate(ctx context.Context, draft UnitDraft) (*entities.OrganizationUnit, error) {
	// 1. Обязательные поля
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return nil, apperrors.NewUnitError(apperrors.KindMissingField, "name", "название обязательно")
	}
	if draft.Level == 0 {
		return nil, apperrors.NewUnitError(apperrors.KindMissingField, "level", "уровень обязателен")
	}

	unit := &entities.OrganizationUnit{
		Name:      name,
		Level:     draft.Level,
		ParentID:  draft.ParentID,
		Active:    true,
		SortOrder: draft.Level.Order(),
	}
	if draft.Active != nil {
		unit.Active = *draft.Active
	}
	if draft.SortOrder != nil {
		unit.SortOrder = *draft.SortOrder
	}

	var parent *entities.OrganizationUnit
	if draft.ParentID != nil {
		// 2. Родитель и допустимость уровня; код наследуется
		var err error
		parent, err = v.findParent(ctx, *draft.ParentID)
		if err != nil {
			return nil, err
		}
		if err := checkLevel(&parent.Level, draft.Level); err != nil {
			return nil, err
		}
		unit.Code = parent.Code
	} else {
		// 3. Корень: формат и уникальность кода
		if err := checkLevel(nil, draft.Level); err != nil {
			return nil, err
		}
		code := strings.TrimSpace(draft.Code)
		if err := v.checkRootCode(ctx, code, 0); err != nil {
			return nil, err
		}
		unit.Code = code
	}

	// 4. Уникальность названия среди соседей
	if err := v.checkSiblingName(ctx, unit.ParentID, unit.Name, 0); err != nil {
		return nil, err
	}

	// 5. Глубина
	if parent != nil {
		depth, err := v.checker.DepthOf(ctx, parent.ID)
		if err != nil {
			return nil, err
		}
		if depth+1 > entities.MaxDepth {
			return nil, apperrors.NewUnitError(apperrors.KindMaxDepthExceeded, "parent_id", "глубина иерархии не может превышать %d", entities.MaxDepth)
		}
	}

	return unit, nil
}

func (v *UnitValidator) ValidateUpdate(ctx context.Context, current entities.OrganizationUnit, patch UnitPatch) (*entities.OrganizationUnit, error) {
	merged := current

	// 1. Обязательные поля, если их передали
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.NewUnitError(apperrors.KindMissingField, "name", "название обязательно")
		}
		merged.Name = name
	}
	if patch.Level != nil {
		if *patch.Level == 0 {
			return nil, apperrors.NewUnitError(apperrors.KindMissingField, "level", "уровень обязателен")
		}
		merged.Level = *patch.Level
	}
	if patch.Active != nil {
		merged.Active = *patch.Active
	}
	if patch.SortOrder != nil {
		merged.SortOrder = *patch.SortOrder
	}

	parentChanged := patch.ParentID != nil && (current.ParentID == nil || *current.ParentID != *patch.ParentID)
	if parentChanged {
		pid := *patch.ParentID
		merged.ParentID = &pid
	}

	var parent *entities.OrganizationUnit
	if merged.ParentID != nil {
		// 2. Родитель; при переносе сначала цикл, иначе перенос под потомка
		// маскировался бы ошибкой уровня
		var err error
		parent, err = v.findParent(ctx, *merged.ParentID)
		if err != nil {
			return nil, err
		}
		if parentChanged {
			cycle, err := v.checker.WouldCreateCycle(ctx, parent.ID, current.ID)
			if err != nil {
				return nil, err
			}
			if cycle {
				return nil, apperrors.NewUnitError(apperrors.KindCycleDetected, "parent_id", "нельзя выбрать родителем само подразделение или его потомка")
			}
		}
		if err := checkLevel(&parent.Level, merged.Level); err != nil {
			return nil, err
		}
		merged.Code = parent.Code
	} else {
		// 3. Корень
		if err := checkLevel(nil, merged.Level); err != nil {
			return nil, err
		}
		if patch.Code != nil {
			code := strings.TrimSpace(*patch.Code)
			if code != current.Code {
				if err := v.checkRootCode(ctx, code, current.ID); err != nil {
					return nil, err
				}
			}
			merged.Code = code
		}
	}

	// 4. Уникальность названия
	if merged.Name != current.Name || parentChanged {
		if err := v.checkSiblingName(ctx, merged.ParentID, merged.Name, current.ID); err != nil {
			return nil, err
		}
	}

	// 5. Глубина с учётом переносимого поддерева
	if parentChanged {
		depth, err := v.checker.DepthOf(ctx, parent.ID)
		if err != nil {
			return nil, err
		}
		height, err := v.checker.SubtreeHeight(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if depth+height > entities.MaxDepth {
			return nil, apperrors.NewUnitError(apperrors.KindMaxDepthExceeded, "parent_id", "глубина иерархии не может превышать %d", entities.MaxDepth)
		}
	}

	// 6. Смена уровня при наличии детей
	if merged.Level != current.Level {
		hasChildren, err := v.unitRepo.HasChildren(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if hasChildren {
			return nil, apperrors.NewUnitError(apperrors.KindLevelChangeBlocked, "level", "у подразделения есть дочерние элементы, менять уровень нельзя")
		}
	}

	return &merged, nil
}

func (v *UnitValidator) findParent(ctx context.Context, id uint64) (*entities.OrganizationUnit, error) {
	parent, err := v.unitRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewUnitError(apperrors.KindParentNotFound, "parent_id", "родительское подразделение %d не найдено", id)
		}
		return nil, err
	}
	return parent, nil
}

func checkLevel(parent *entities.Level, child entities.Level) error {
	if hierarchy.PermitsChild(parent, child) {
		return nil
	}
	if parent == nil {
		return apperrors.NewUnitError(apperrors.KindInvalidLevelTransition, "level", "неизвестный уровень %d", uint8(child))
	}
	return apperrors.NewUnitError(apperrors.KindInvalidLevelTransition, "level",
		"уровень %s недопустим под уровнем %s", child.String(), parent.String())
}

func (v *UnitValidator) checkRootCode(ctx context.Context, code string, selfID uint64) error {
	if !rootCodePattern.MatchString(code) {
		return apperrors.NewUnitError(apperrors.KindInvalidCodeFormat, "code", "код корневого подразделения должен состоять из 6 цифр")
	}
	existing, err := v.unitRepo.FindRootByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return apperrors.NewUnitError(apperrors.KindDuplicateCode, "code", "код %s уже используется", code)
	}
	return nil
}

func (v *UnitValidator) checkSiblingName(ctx context.Context, parentID *uint64, name string, selfID uint64) error {
	siblings, err := v.unitRepo.FindSiblings(ctx, parentID, selfID)
	if err != nil {
		return err
	}
	for _, s := range siblings {
		if s.Name == name {
			return apperrors.NewUnitError(apperrors.KindDuplicateSiblingName, "name", "название %q уже используется на этом уровне", name)
		}
	}
	return nil
}
