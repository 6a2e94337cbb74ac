package dto

import "github.com/aarondl/null/v8"

// CreateOrganizationUnitDTO - тело POST /api/organizations.
// name и level не помечены required: их отсутствие сообщает сервис как MissingField.
// code проверяет сервис: для корня это InvalidCodeFormat, дочерний узел наследует код родителя.
type CreateOrganizationUnitDTO struct {
	Name      string      `json:"name" validate:"max=100"`
	Code      string      `json:"code"`
	Level     string      `json:"level" validate:"omitempty,unit_level"`
	ParentID  null.Uint64 `json:"parent_id" validate:"omitempty,gt=0"`
	Active    null.Bool   `json:"active"`
	SortOrder null.Int    `json:"sort_order"`
}

// UpdateOrganizationUnitDTO - частичное обновление, nil-поля не меняются.
type UpdateOrganizationUnitDTO struct {
	Name      *string `json:"name" validate:"omitempty,max=100"`
	Code      *string `json:"code"`
	Level     *string `json:"level" validate:"omitempty,unit_level"`
	ParentID  *uint64 `json:"parent_id" validate:"omitempty,gt=0"`
	Active    *bool   `json:"active"`
	SortOrder *int    `json:"sort_order"`
}

type OrganizationUnitDTO struct {
	ID                uint64  `json:"id"`
	Name              string  `json:"name"`
	Code              string  `json:"code"`
	Level             string  `json:"level"`
	LevelLabel        string  `json:"level_label"`
	ParentID          *uint64 `json:"parent_id"`
	Active            bool    `json:"active"`
	SortOrder         int     `json:"sort_order"`
	HierarchicalIndex string  `json:"hierarchical_index"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type ShortOrganizationUnitDTO struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

type LevelOptionDTO struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

type UnitPathDTO struct {
	ID       uint64                     `json:"id"`
	FullPath string                     `json:"full_path"`
	Chain    []ShortOrganizationUnitDTO `json:"chain"`
}
