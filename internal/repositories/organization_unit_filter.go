package repositories

import (
	"fmt"
	"strconv"
	"strings"

	"region-system/internal/entities"
	apperrors "region-system/pkg/errors"
	"region-system/pkg/types"
)

// unitAllowedFields - поля, по которым разрешены filter[...] и sort[...].
var unitAllowedFields = map[string]string{
	"id":         "id",
	"level":      "level",
	"active":     "active",
	"parent_id":  "parent_id",
	"sort_order": "sort_order",
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// unitContainsFields фильтруются по вхождению подстроки, а не по равенству.
var unitContainsFields = map[string]struct{}{
	"name": {},
	"code": {},
}

// splitUnitFilter приводит фильтр к виду, понятному хранилищу: уровни в числа,
// "null" в parent_id в NULL, name/code уходят в отдельную карту для ILIKE.
func splitUnitFilter(filter types.Filter) (types.Filter, map[string]string, error) {
	exact := filter
	exact.Filter = make(map[string]interface{}, len(filter.Filter))
	contains := make(map[string]string)

	for field, raw := range filter.Filter {
		value := strings.TrimSpace(fmt.Sprint(raw))
		if _, ok := unitContainsFields[field]; ok {
			contains[field] = value
			continue
		}
		switch field {
		case "level":
			parts := strings.Split(value, ",")
			orders := make([]string, 0, len(parts))
			for _, p := range parts {
				level, err := entities.ParseLevel(p)
				if err != nil {
					return exact, nil, apperrors.NewInvalidInputError("некорректный фильтр level: %s", p)
				}
				orders = append(orders, strconv.Itoa(level.Order()))
			}
			exact.Filter[field] = strings.Join(orders, ",")
		case "parent_id":
			if strings.EqualFold(value, "null") || strings.EqualFold(value, "root") {
				exact.Filter[field] = nil
				continue
			}
			exact.Filter[field] = value
		case "active":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return exact, nil, apperrors.NewInvalidInputError("некорректный фильтр active: %s", value)
			}
			exact.Filter[field] = b
		default:
			exact.Filter[field] = raw
		}
	}
	return exact, contains, nil
}
