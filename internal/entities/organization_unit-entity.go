package entities

import "region-system/pkg/types"

type OrganizationUnit struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	Code      string  `json:"code"`
	Level     Level   `json:"level"`
	ParentID  *uint64 `json:"parent_id"`
	Active    bool    `json:"active"`
	SortOrder int     `json:"sort_order"`

	types.BaseEntity
}

func (u *OrganizationUnit) IsRoot() bool {
	return u.ParentID == nil
}
