package seeders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aarondl/null/v8"

	"region-system/internal/dto"
	"region-system/internal/repositories"
	"region-system/internal/services"
	apperrors "region-system/pkg/errors"
)

// SeedOrganizationUnits создаёт демонстрационную иерархию через сервис, поэтому
// все правила валидации применяются и к сидам. Уже существующие узлы пропускаются.
func SeedOrganizationUnits(ctx context.Context, unitRepo repositories.OrganizationUnitRepositoryInterface, unitService services.OrganizationUnitServiceInterface) error {
	log.Println("▶️  Запуск наполнения иерархии подразделений...")

	created := 0
	for _, seed := range organizationUnitsData {
		n, err := seedUnit(ctx, unitRepo, unitService, seed, nil)
		if err != nil {
			return err
		}
		created += n
	}

	log.Printf("✅ Наполнение иерархии завершено, создано подразделений: %d", created)
	return nil
}

func seedUnit(ctx context.Context, unitRepo repositories.OrganizationUnitRepositoryInterface, unitService services.OrganizationUnitServiceInterface, seed unitSeed, parentID *uint64) (int, error) {
	created := 0

	id, err := findSeeded(ctx, unitRepo, seed, parentID)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		payload := dto.CreateOrganizationUnitDTO{Name: seed.Name, Code: seed.Code, Level: seed.Level}
		if parentID != nil {
			payload.ParentID = null.Uint64From(*parentID)
		}
		unit, err := unitService.CreateUnit(ctx, payload)
		if err != nil {
			return 0, fmt.Errorf("не удалось создать подразделение %q: %w", seed.Name, err)
		}
		id = unit.ID
		created++
	} else {
		log.Printf("   - %s уже существует, пропускаем", seed.Name)
	}

	for _, child := range seed.Children {
		n, err := seedUnit(ctx, unitRepo, unitService, child, &id)
		if err != nil {
			return 0, err
		}
		created += n
	}
	return created, nil
}

func findSeeded(ctx context.Context, unitRepo repositories.OrganizationUnitRepositoryInterface, seed unitSeed, parentID *uint64) (uint64, error) {
	if parentID == nil {
		existing, err := unitRepo.FindRootByCode(ctx, seed.Code)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return existing.ID, nil
	}

	siblings, err := unitRepo.FindChildren(ctx, parentID)
	if err != nil {
		return 0, err
	}
	for _, s := range siblings {
		if s.Name == seed.Name {
			return s.ID, nil
		}
	}
	return 0, nil
}
