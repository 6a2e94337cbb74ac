package db

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"region-system/pkg/types"
)

// ApplyListParams накладывает filter[...], sort[...] и пагинацию на запрос.
// Неизвестные поля молча пропускаются. defaultOrder применяется, если сортировка не задана.
func ApplyListParams(builder sq.SelectBuilder, filter types.Filter, allowedMap map[string]string, defaultOrder ...string) sq.SelectBuilder {
	builder = ApplyFilters(builder, filter, allowedMap)

	sorted := false
	if len(filter.Sort) > 0 {
		fields := make([]string, 0, len(filter.Sort))
		for jsonField := range filter.Sort {
			fields = append(fields, jsonField)
		}
		sort.Strings(fields)
		for _, jsonField := range fields {
			dbCol, ok := allowedMap[jsonField]
			if !ok {
				continue
			}
			sqlDir := "ASC"
			if strings.ToLower(filter.Sort[jsonField]) == "desc" {
				sqlDir = "DESC"
			}
			builder = builder.OrderBy(fmt.Sprintf("%s %s", dbCol, sqlDir))
			sorted = true
		}
	}
	if !sorted && len(defaultOrder) > 0 {
		builder = builder.OrderBy(defaultOrder...)
	}

	if filter.WithPagination {
		if filter.Limit > 0 {
			builder = builder.Limit(uint64(filter.Limit))
		}
		if filter.Offset >= 0 {
			builder = builder.Offset(uint64(filter.Offset))
		}
	}

	return builder
}

// ApplyFilters - только условия WHERE, без сортировки и пагинации (нужно для COUNT).
func ApplyFilters(builder sq.SelectBuilder, filter types.Filter, allowedMap map[string]string) sq.SelectBuilder {
	for jsonField, val := range filter.Filter {
		dbCol, ok := allowedMap[jsonField]
		if !ok {
			continue
		}

		if s, ok := val.(string); ok && strings.Contains(s, ",") {
			builder = builder.Where(sq.Eq{dbCol: strings.Split(s, ",")})
		} else {
			builder = builder.Where(sq.Eq{dbCol: val})
		}
	}
	return builder
}
