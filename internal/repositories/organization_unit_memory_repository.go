package repositories

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"region-system/internal/entities"
	"region-system/internal/hierarchy"
	apperrors "region-system/pkg/errors"
	"region-system/pkg/types"
)

// OrganizationUnitMemoryRepository - хранилище в памяти с теми же ограничениями, что и схема БД.
// Используется драйвером STORAGE_DRIVER=memory и в тестах.
type OrganizationUnitMemoryRepository struct {
	mu     sync.RWMutex
	units  map[uint64]entities.OrganizationUnit
	nextID uint64
	now    func() time.Time
}

func NewOrganizationUnitMemoryRepository() *OrganizationUnitMemoryRepository {
	return &OrganizationUnitMemoryRepository{
		units:  make(map[uint64]entities.OrganizationUnit),
		nextID: 1,
		now:    time.Now,
	}
}

type memorySnapshot struct {
	units  map[uint64]entities.OrganizationUnit
	nextID uint64
}

func (r *OrganizationUnitMemoryRepository) snapshot() memorySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	units := make(map[uint64]entities.OrganizationUnit, len(r.units))
	for id, u := range r.units {
		units[id] = u
	}
	return memorySnapshot{units: units, nextID: r.nextID}
}

func (r *OrganizationUnitMemoryRepository) restore(s memorySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = s.units
	r.nextID = s.nextID
}

func (r *OrganizationUnitMemoryRepository) FindByID(_ context.Context, id uint64) (*entities.OrganizationUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r *OrganizationUnitMemoryRepository) FindRootByCode(_ context.Context, code string) (*entities.OrganizationUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.units {
		if u.ParentID == nil && u.Code == code {
			found := u
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *OrganizationUnitMemoryRepository) FindChildren(_ context.Context, parentID *uint64) ([]entities.OrganizationUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.childrenLocked(parentID, 0), nil
}

func (r *OrganizationUnitMemoryRepository) FindSiblings(_ context.Context, parentID *uint64, excludeID uint64) ([]entities.OrganizationUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.childrenLocked(parentID, excludeID), nil
}

func (r *OrganizationUnitMemoryRepository) childrenLocked(parentID *uint64, excludeID uint64) []entities.OrganizationUnit {
	out := make([]entities.OrganizationUnit, 0)
	for _, u := range r.units {
		if u.ID == excludeID || !sameParent(u.ParentID, parentID) {
			continue
		}
		out = append(out, u)
	}
	hierarchy.SortSiblings(out)
	return out
}

func (r *OrganizationUnitMemoryRepository) HasChildren(_ context.Context, id uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.units {
		if u.ParentID != nil && *u.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *OrganizationUnitMemoryRepository) FindDescendants(_ context.Context, id uint64) ([]entities.OrganizationUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.descendantsLocked(id)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *OrganizationUnitMemoryRepository) descendantsLocked(id uint64) []entities.OrganizationUnit {
	var out []entities.OrganizationUnit
	frontier := []uint64{id}
	for depth := 0; len(frontier) > 0 && depth < entities.MaxDepth; depth++ {
		var next []uint64
		for _, parent := range frontier {
			for _, u := range r.units {
				if u.ParentID != nil && *u.ParentID == parent {
					out = append(out, u)
					next = append(next, u.ID)
				}
			}
		}
		frontier = next
	}
	return out
}

func (r *OrganizationUnitMemoryRepository) FindAll(_ context.Context) ([]entities.OrganizationUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.OrganizationUnit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return lessByDefaultOrder(out[i], out[j]) })
	return out, nil
}

func (r *OrganizationUnitMemoryRepository) GetAll(ctx context.Context, filter types.Filter) ([]entities.OrganizationUnit, uint64, error) {
	exact, contains, err := splitUnitFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	all, _ := r.FindAll(ctx)

	search := strings.ToLower(filter.Search)
	matched := make([]entities.OrganizationUnit, 0, len(all))
	for _, u := range all {
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(strings.ToLower(u.Code), search) {
			continue
		}
		if v, ok := contains["name"]; ok && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(v)) {
			continue
		}
		if v, ok := contains["code"]; ok && !strings.Contains(strings.ToLower(u.Code), strings.ToLower(v)) {
			continue
		}
		if !matchesExact(u, exact.Filter) {
			continue
		}
		matched = append(matched, u)
	}

	applySort(matched, exact.Sort)

	total := uint64(len(matched))
	if filter.WithPagination && filter.Limit > 0 {
		start := filter.Offset
		if start > len(matched) {
			start = len(matched)
		}
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *OrganizationUnitMemoryRepository) Create(_ context.Context, unit *entities.OrganizationUnit) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if unit.ParentID != nil {
		if _, ok := r.units[*unit.ParentID]; !ok {
			return 0, apperrors.NewUnitError(apperrors.KindParentNotFound, "parent_id", "родительское подразделение не найдено")
		}
	}
	if err := r.checkUniqueLocked(*unit, 0); err != nil {
		return 0, err
	}

	now := r.now()
	unit.ID = r.nextID
	unit.CreatedAt = &now
	unit.UpdatedAt = &now
	r.nextID++
	r.units[unit.ID] = *unit
	return unit.ID, nil
}

func (r *OrganizationUnitMemoryRepository) Update(_ context.Context, unit *entities.OrganizationUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.units[unit.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if err := r.checkUniqueLocked(*unit, unit.ID); err != nil {
		return err
	}
	now := r.now()
	unit.CreatedAt = current.CreatedAt
	unit.UpdatedAt = &now
	r.units[unit.ID] = *unit
	return nil
}

func (r *OrganizationUnitMemoryRepository) UpdateSubtreeCode(_ context.Context, rootID uint64, code string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	now := r.now()
	for _, d := range r.descendantsLocked(rootID) {
		if d.Code == code {
			continue
		}
		d.Code = code
		d.UpdatedAt = &now
		r.units[d.ID] = d
		affected++
	}
	return affected, nil
}

func (r *OrganizationUnitMemoryRepository) Delete(_ context.Context, id uint64) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[id]; !ok {
		return nil, apperrors.ErrNotFound
	}
	removed := []uint64{id}
	for _, d := range r.descendantsLocked(id) {
		removed = append(removed, d.ID)
	}
	for _, rid := range removed {
		delete(r.units, rid)
	}
	return removed, nil
}

// checkUniqueLocked повторяет уникальные индексы таблицы organization_units.
func (r *OrganizationUnitMemoryRepository) checkUniqueLocked(unit entities.OrganizationUnit, selfID uint64) error {
	for _, other := range r.units {
		if other.ID == selfID {
			continue
		}
		if unit.ParentID == nil && other.ParentID == nil && other.Code == unit.Code {
			return apperrors.NewUnitError(apperrors.KindDuplicateCode, "code", "код уже используется другим корневым подразделением")
		}
		if sameParent(other.ParentID, unit.ParentID) && other.Name == unit.Name {
			return apperrors.NewUnitError(apperrors.KindDuplicateSiblingName, "name", "название уже используется на этом уровне")
		}
	}
	return nil
}

func sameParent(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func lessByDefaultOrder(a, b entities.OrganizationUnit) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.ID < b.ID
}

func matchesExact(u entities.OrganizationUnit, filters map[string]interface{}) bool {
	for field, val := range filters {
		if _, ok := unitAllowedFields[field]; !ok {
			continue
		}
		if !fieldMatches(u, field, val) {
			return false
		}
	}
	return true
}

func fieldMatches(u entities.OrganizationUnit, field string, val interface{}) bool {
	if val == nil {
		return field == "parent_id" && u.ParentID == nil
	}
	if b, ok := val.(bool); ok {
		return field == "active" && u.Active == b
	}
	actual := unitFieldString(u, field)
	for _, candidate := range strings.Split(strings.TrimSpace(toString(val)), ",") {
		if strings.TrimSpace(candidate) == actual {
			return true
		}
	}
	return false
}

func unitFieldString(u entities.OrganizationUnit, field string) string {
	switch field {
	case "id":
		return uintString(u.ID)
	case "level":
		return uintString(uint64(u.Level.Order()))
	case "parent_id":
		if u.ParentID == nil {
			return ""
		}
		return uintString(*u.ParentID)
	case "sort_order":
		return intString(u.SortOrder)
	case "code":
		return u.Code
	case "name":
		return u.Name
	case "active":
		if u.Active {
			return "true"
		}
		return "false"
	}
	return ""
}

func applySort(units []entities.OrganizationUnit, order map[string]string) {
	fields := make([]string, 0, len(order))
	for field := range order {
		if _, ok := unitAllowedFields[field]; ok {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return
	}
	sort.Strings(fields)
	sort.SliceStable(units, func(i, j int) bool {
		for _, field := range fields {
			cmp := compareUnitField(units[i], units[j], field)
			if cmp == 0 {
				continue
			}
			if strings.ToLower(order[field]) == "desc" {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareUnitField(a, b entities.OrganizationUnit, field string) int {
	switch field {
	case "id":
		return compareUint(a.ID, b.ID)
	case "level":
		return compareUint(uint64(a.Level), uint64(b.Level))
	case "sort_order":
		return compareInt(a.SortOrder, b.SortOrder)
	case "created_at", "updated_at":
		ta, tb := a.CreatedAt, b.CreatedAt
		if field == "updated_at" {
			ta, tb = a.UpdatedAt, b.UpdatedAt
		}
		if ta == nil || tb == nil {
			return 0
		}
		return ta.Compare(*tb)
	}
	return strings.Compare(unitFieldString(a, field), unitFieldString(b, field))
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func uintString(v uint64) string { return strconv.FormatUint(v, 10) }

func intString(v int) string { return strconv.Itoa(v) }

func toString(v interface{}) string { return fmt.Sprint(v) }
