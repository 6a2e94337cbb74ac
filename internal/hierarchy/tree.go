package hierarchy

import (
	"sort"
	"strconv"
	"strings"

	"region-system/internal/entities"
)

// Node - узел материализованного дерева.
type Node struct {
	ID                uint64         `json:"id"`
	Name              string         `json:"name"`
	Code              string         `json:"code"`
	Level             entities.Level `json:"level"`
	LevelLabel        string         `json:"level_label"`
	ParentID          *uint64        `json:"parent_id"`
	Active            bool           `json:"active"`
	SortOrder         int            `json:"sort_order"`
	HierarchicalIndex string         `json:"hierarchical_index"`
	Children          []*Node        `json:"children,omitempty"`
}

// BuildForest собирает лес из плоского набора за один проход по списку смежности.
// Узлы, чей родитель отсутствует в наборе, отбрасываются. indices может быть nil.
func BuildForest(units []entities.OrganizationUnit, indices map[uint64]string) []*Node {
	present := make(map[uint64]struct{}, len(units))
	for i := range units {
		present[units[i].ID] = struct{}{}
	}

	var roots []entities.OrganizationUnit
	children := make(map[uint64][]entities.OrganizationUnit)
	for _, u := range units {
		if u.ParentID == nil {
			roots = append(roots, u)
			continue
		}
		if _, ok := present[*u.ParentID]; !ok {
			continue
		}
		children[*u.ParentID] = append(children[*u.ParentID], u)
	}

	var build func(group []entities.OrganizationUnit, depth int) []*Node
	build = func(group []entities.OrganizationUnit, depth int) []*Node {
		if len(group) == 0 || depth > entities.MaxDepth {
			return nil
		}
		sortForTree(group)
		nodes := make([]*Node, 0, len(group))
		for _, u := range group {
			node := newNode(u, indices[u.ID])
			node.Children = build(children[u.ID], depth+1)
			nodes = append(nodes, node)
		}
		return nodes
	}

	forest := build(roots, 1)
	if forest == nil {
		forest = []*Node{}
	}
	return forest
}

func newNode(u entities.OrganizationUnit, index string) *Node {
	return &Node{
		ID:                u.ID,
		Name:              u.Name,
		Code:              u.Code,
		Level:             u.Level,
		LevelLabel:        u.Level.Label(),
		ParentID:          u.ParentID,
		Active:            u.Active,
		SortOrder:         u.SortOrder,
		HierarchicalIndex: index,
	}
}

// sortForTree - порядок отображения: уровень, код, затем sort_order и id.
func sortForTree(group []entities.OrganizationUnit) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
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
	})
}

// SortSiblings - порядок нумерации: sort_order, код, id. Совпадает с порядком FindChildren.
func SortSiblings(group []entities.OrganizationUnit) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID < b.ID
	})
}

// SiblingRanks вычисляет иерархические индексы для полного плоского набора.
// Узлы с разорванной цепочкой получают пустую строку.
func SiblingRanks(units []entities.OrganizationUnit) map[uint64]string {
	byID := make(map[uint64]entities.OrganizationUnit, len(units))
	groups := make(map[uint64][]entities.OrganizationUnit)
	const rootKey = 0
	for _, u := range units {
		byID[u.ID] = u
		key := uint64(rootKey)
		if u.ParentID != nil {
			key = *u.ParentID
		}
		groups[key] = append(groups[key], u)
	}

	rank := make(map[uint64]int, len(units))
	for _, group := range groups {
		SortSiblings(group)
		for i, u := range group {
			rank[u.ID] = i + 1
		}
	}

	result := make(map[uint64]string, len(units))
	for _, u := range units {
		parts := make([]string, 0, entities.MaxDepth)
		current, ok := u, true
		for steps := 0; ok; steps++ {
			if steps >= entities.MaxDepth {
				parts = nil
				break
			}
			parts = append(parts, strconv.Itoa(rank[current.ID]))
			if current.ParentID == nil {
				break
			}
			current, ok = byID[*current.ParentID]
			if !ok {
				parts = nil
			}
		}
		result[u.ID] = JoinIndex(reverse(parts))
	}
	return result
}

// JoinIndex склеивает ранги от корня к узлу через точку.
func JoinIndex(ranks []string) string {
	return strings.Join(ranks, ".")
}

func reverse(parts []string) []string {
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}

// Matches - регистронезависимое вхождение term в название или код.
func Matches(u entities.OrganizationUnit, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Name), term) ||
		strings.Contains(strings.ToLower(u.Code), term)
}

// WithAncestors дополняет совпавшие узлы всеми их предками из полного набора, без дублей.
func WithAncestors(all []entities.OrganizationUnit, matched []entities.OrganizationUnit) []entities.OrganizationUnit {
	byID := make(map[uint64]entities.OrganizationUnit, len(all))
	for _, u := range all {
		byID[u.ID] = u
	}

	seen := make(map[uint64]struct{}, len(matched))
	out := make([]entities.OrganizationUnit, 0, len(matched))
	for _, u := range matched {
		current := u
		for steps := 0; steps < entities.MaxDepth; steps++ {
			if _, dup := seen[current.ID]; dup {
				break
			}
			seen[current.ID] = struct{}{}
			out = append(out, current)
			if current.ParentID == nil {
				break
			}
			parent, ok := byID[*current.ParentID]
			if !ok {
				break
			}
			current = parent
		}
	}
	return out
}

// Filter отбирает узлы, подходящие под term, вместе с предками.
func Filter(all []entities.OrganizationUnit, term string) []entities.OrganizationUnit {
	if strings.TrimSpace(term) == "" {
		return all
	}
	var matched []entities.OrganizationUnit
	for _, u := range all {
		if Matches(u, term) {
			matched = append(matched, u)
		}
	}
	return WithAncestors(all, matched)
}
