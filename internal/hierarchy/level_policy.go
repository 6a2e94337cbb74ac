package hierarchy

import "region-system/internal/entities"

// permittedChildren - единая таблица допустимых переходов уровней.
// Используется и при создании, и при обновлении, и в подсказке доступных уровней.
var permittedChildren = map[entities.Level][]entities.Level{
	entities.LevelProvince: {entities.LevelCity, entities.LevelDistrict, entities.LevelCounty},
	entities.LevelCity:     {entities.LevelDistrict, entities.LevelCounty},
	entities.LevelDistrict: {},
	entities.LevelCounty:   {},
}

// PermitsChild проверяет, можно ли разместить child под parent.
// parent == nil означает корень: корнем может быть любой уровень.
func PermitsChild(parent *entities.Level, child entities.Level) bool {
	if !child.Valid() {
		return false
	}
	if parent == nil {
		return true
	}
	for _, allowed := range permittedChildren[*parent] {
		if allowed == child {
			return true
		}
	}
	return false
}

// AvailableChildLevels возвращает уровни, которые можно добавить под подразделение уровня level.
func AvailableChildLevels(level entities.Level) []entities.Level {
	allowed := permittedChildren[level]
	out := make([]entities.Level, len(allowed))
	copy(out, allowed)
	return out
}
