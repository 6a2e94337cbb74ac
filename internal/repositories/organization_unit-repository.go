// Файл: internal/repositories/organization_unit-repository.go

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"region-system/internal/entities"
	db "region-system/internal/infrastructure/bd"
	apperrors "region-system/pkg/errors"
	"region-system/pkg/types"
)

const (
	organizationUnitTable  = "organization_units"
	organizationUnitFields = "id, name, code, level, parent_id, active, sort_order, created_at, updated_at"

	rootCodeConstraint    = "organization_units_root_code_uq"
	siblingNameConstraint = "organization_units_sibling_name_uq"
	rootNameConstraint    = "organization_units_root_name_uq"
)

// OrganizationUnitRepositoryInterface - контракт хранилища подразделений.
// Все методы работают внутри транзакции, если она лежит в контексте.
type OrganizationUnitRepositoryInterface interface {
	FindByID(ctx context.Context, id uint64) (*entities.OrganizationUnit, error)
	FindRootByCode(ctx context.Context, code string) (*entities.OrganizationUnit, error)
	FindChildren(ctx context.Context, parentID *uint64) ([]entities.OrganizationUnit, error)
	FindSiblings(ctx context.Context, parentID *uint64, excludeID uint64) ([]entities.OrganizationUnit, error)
	HasChildren(ctx context.Context, id uint64) (bool, error)
	FindDescendants(ctx context.Context, id uint64) ([]entities.OrganizationUnit, error)
	FindAll(ctx context.Context) ([]entities.OrganizationUnit, error)
	GetAll(ctx context.Context, filter types.Filter) ([]entities.OrganizationUnit, uint64, error)
	Create(ctx context.Context, unit *entities.OrganizationUnit) (uint64, error)
	Update(ctx context.Context, unit *entities.OrganizationUnit) error
	UpdateSubtreeCode(ctx context.Context, rootID uint64, code string) (int64, error)
	Delete(ctx context.Context, id uint64) ([]uint64, error)
}

type organizationUnitRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOrganizationUnitRepository(storage *pgxpool.Pool, logger *zap.Logger) OrganizationUnitRepositoryInterface {
	return &organizationUnitRepository{storage: storage, logger: logger}
}

func (r *organizationUnitRepository) q(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.storage
}

// scanUnit - вспомогательная функция для сканирования одной строки из БД.
func (r *organizationUnitRepository) scanUnit(row pgx.Row) (*entities.OrganizationUnit, error) {
	var u entities.OrganizationUnit
	var level int16
	var parentID sql.NullInt64

	err := row.Scan(&u.ID, &u.Name, &u.Code, &level, &parentID, &u.Active, &u.SortOrder, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewStorageError("ошибка сканирования строки organization_unit", err)
	}

	u.Level = entities.Level(level)
	if parentID.Valid {
		pid := uint64(parentID.Int64)
		u.ParentID = &pid
	}
	return &u, nil
}

func (r *organizationUnitRepository) queryUnits(ctx context.Context, builder sq.SelectBuilder) ([]entities.OrganizationUnit, error) {
	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("ошибка сборки запроса organization_units", err)
	}
	return r.collect(ctx, query, args...)
}

func (r *organizationUnitRepository) collect(ctx context.Context, query string, args ...interface{}) ([]entities.OrganizationUnit, error) {
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("ошибка получения списка organization_units", err)
	}
	defer rows.Close()

	units := make([]entities.OrganizationUnit, 0)
	for rows.Next() {
		unit, err := r.scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *unit)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("ошибка итерации по organization_units", err)
	}
	return units, nil
}

func (r *organizationUnitRepository) baseSelect() sq.SelectBuilder {
	return sq.Select(organizationUnitFields).From(organizationUnitTable)
}

func (r *organizationUnitRepository) FindByID(ctx context.Context, id uint64) (*entities.OrganizationUnit, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", organizationUnitFields, organizationUnitTable)
	return r.scanUnit(r.q(ctx).QueryRow(ctx, query, id))
}

// FindRootByCode ищет корневое подразделение с данным кодом.
func (r *organizationUnitRepository) FindRootByCode(ctx context.Context, code string) (*entities.OrganizationUnit, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE code = $1 AND parent_id IS NULL", organizationUnitFields, organizationUnitTable)
	return r.scanUnit(r.q(ctx).QueryRow(ctx, query, code))
}

func (r *organizationUnitRepository) FindChildren(ctx context.Context, parentID *uint64) ([]entities.OrganizationUnit, error) {
	builder := r.baseSelect().
		Where(sq.Eq{"parent_id": parentID}).
		OrderBy("sort_order", "code", "id")
	return r.queryUnits(ctx, builder)
}

func (r *organizationUnitRepository) FindSiblings(ctx context.Context, parentID *uint64, excludeID uint64) ([]entities.OrganizationUnit, error) {
	builder := r.baseSelect().
		Where(sq.Eq{"parent_id": parentID}).
		Where(sq.NotEq{"id": excludeID}).
		OrderBy("sort_order", "code", "id")
	return r.queryUnits(ctx, builder)
}

func (r *organizationUnitRepository) HasChildren(ctx context.Context, id uint64) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE parent_id = $1)", organizationUnitTable)
	var exists bool
	if err := r.q(ctx).QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, apperrors.NewStorageError("ошибка проверки дочерних подразделений", err)
	}
	return exists, nil
}

// FindDescendants возвращает все подразделения поддерева id, не включая сам id.
func (r *organizationUnitRepository) FindDescendants(ctx context.Context, id uint64) ([]entities.OrganizationUnit, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id, 1 AS depth FROM %[1]s WHERE parent_id = $1
			UNION ALL
			SELECT c.id, s.depth + 1 FROM %[1]s c JOIN subtree s ON c.parent_id = s.id
			WHERE s.depth < $2
		)
		SELECT %[2]s FROM %[1]s WHERE id IN (SELECT id FROM subtree)
		ORDER BY level, sort_order, code, id`, organizationUnitTable, organizationUnitFields)
	return r.collect(ctx, query, id, entities.MaxDepth)
}

func (r *organizationUnitRepository) FindAll(ctx context.Context) ([]entities.OrganizationUnit, error) {
	return r.queryUnits(ctx, r.baseSelect().OrderBy("level", "code", "sort_order", "id"))
}

// GetAll получает список с фильтрами, поиском и пагинацией.
func (r *organizationUnitRepository) GetAll(ctx context.Context, filter types.Filter) ([]entities.OrganizationUnit, uint64, error) {
	exact, contains, err := splitUnitFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	conditions := sq.And{}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions, sq.Or{sq.ILike{"name": pattern}, sq.ILike{"code": pattern}})
	}
	for field, value := range contains {
		conditions = append(conditions, sq.ILike{unitAllowedFields[field]: "%" + value + "%"})
	}

	countBuilder := db.ApplyFilters(sq.Select("COUNT(*)").From(organizationUnitTable), exact, unitAllowedFields)
	if len(conditions) > 0 {
		countBuilder = countBuilder.Where(conditions)
	}
	countSQL, countArgs, err := countBuilder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, 0, apperrors.NewStorageError("ошибка сборки запроса подсчёта", err)
	}
	var total uint64
	if err := r.q(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewStorageError("ошибка подсчета organization_units", err)
	}
	if total == 0 {
		return []entities.OrganizationUnit{}, 0, nil
	}

	builder := db.ApplyListParams(r.baseSelect(), exact, unitAllowedFields, "level", "code", "sort_order", "id")
	if len(conditions) > 0 {
		builder = builder.Where(conditions)
	}
	units, err := r.queryUnits(ctx, builder)
	if err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

func (r *organizationUnitRepository) Create(ctx context.Context, unit *entities.OrganizationUnit) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, code, level, parent_id, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`, organizationUnitTable)

	var id uint64
	err := r.q(ctx).QueryRow(ctx, query,
		unit.Name, unit.Code, int16(unit.Level), unit.ParentID, unit.Active, unit.SortOrder,
	).Scan(&id, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return 0, r.mapWriteError("ошибка создания organization_unit", err)
	}
	unit.ID = id
	return id, nil
}

func (r *organizationUnitRepository) Update(ctx context.Context, unit *entities.OrganizationUnit) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, code = $2, level = $3, parent_id = $4, active = $5, sort_order = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`, organizationUnitTable)

	err := r.q(ctx).QueryRow(ctx, query,
		unit.Name, unit.Code, int16(unit.Level), unit.ParentID, unit.Active, unit.SortOrder, unit.ID,
	).Scan(&unit.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return r.mapWriteError("ошибка обновления organization_unit", err)
	}
	return nil
}

// UpdateSubtreeCode переписывает код у всех потомков rootID.
func (r *organizationUnitRepository) UpdateSubtreeCode(ctx context.Context, rootID uint64, code string) (int64, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id, 1 AS depth FROM %[1]s WHERE parent_id = $1
			UNION ALL
			SELECT c.id, s.depth + 1 FROM %[1]s c JOIN subtree s ON c.parent_id = s.id
			WHERE s.depth < $3
		)
		UPDATE %[1]s SET code = $2, updated_at = NOW()
		WHERE id IN (SELECT id FROM subtree) AND code <> $2`, organizationUnitTable)

	result, err := r.q(ctx).Exec(ctx, query, rootID, code, entities.MaxDepth)
	if err != nil {
		return 0, apperrors.NewStorageError("ошибка обновления кода поддерева", err)
	}
	return result.RowsAffected(), nil
}

// Delete удаляет подразделение; потомки уходят каскадом по внешнему ключу.
// Возвращает id всех удалённых записей.
func (r *organizationUnitRepository) Delete(ctx context.Context, id uint64) ([]uint64, error) {
	descendants, err := r.FindDescendants(ctx, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", organizationUnitTable)
	result, err := r.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return nil, apperrors.NewStorageError("ошибка удаления organization_unit", err)
	}
	if result.RowsAffected() == 0 {
		return nil, apperrors.ErrNotFound
	}

	removed := make([]uint64, 0, len(descendants)+1)
	removed = append(removed, id)
	for _, d := range descendants {
		removed = append(removed, d.ID)
	}
	return removed, nil
}

// mapWriteError переводит нарушения уникальности в типизированные ошибки.
func (r *organizationUnitRepository) mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		switch pgErr.ConstraintName {
		case rootCodeConstraint:
			return apperrors.NewUnitError(apperrors.KindDuplicateCode, "code", "код уже используется другим корневым подразделением")
		case siblingNameConstraint, rootNameConstraint:
			return apperrors.NewUnitError(apperrors.KindDuplicateSiblingName, "name", "название уже используется на этом уровне")
		}
	}
	if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
		return apperrors.NewUnitError(apperrors.KindParentNotFound, "parent_id", "родительское подразделение не найдено")
	}
	r.logger.Error(op, zap.Error(err))
	return apperrors.NewStorageError(op, err)
}
