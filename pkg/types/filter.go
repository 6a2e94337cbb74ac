package types

// Filter represents query parameters for filtering and pagination.
type Filter struct {
	Search         string                 `json:"search,omitempty"`
	Sort           map[string]string      `json:"sort,omitempty"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
	Page           int                    `json:"page"`
	WithPagination bool                   `json:"with_pagination"`
}

// Pagination represents pagination metadata.
type Pagination struct {
	TotalCount uint64 `json:"total_count"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
}

// TotalPages считает число страниц для total записей.
func TotalPages(total uint64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + uint64(limit) - 1) / uint64(limit))
}

// http://localhost:8080/api/organizations?search=北京&sort[code]=asc&filter[level]=city&filter[parent_id]=1&limit=10&page=1&withPagination=true
