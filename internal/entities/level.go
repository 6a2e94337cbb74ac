package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// Level - административный уровень подразделения. Числовое значение совпадает с порядком уровня.
type Level uint8

const (
	LevelProvince Level = iota + 1
	LevelCity
	LevelDistrict
	LevelCounty
)

// MaxDepth - максимальная глубина цепочки от корня до листа.
const MaxDepth = 4

var levelNames = map[Level]string{
	LevelProvince: "province",
	LevelCity:     "city",
	LevelDistrict: "district",
	LevelCounty:   "county",
}

var levelLabels = map[Level]string{
	LevelProvince: "省级",
	LevelCity:     "市级",
	LevelDistrict: "区级",
	LevelCounty:   "县级",
}

// AllLevels возвращает уровни в порядке возрастания.
func AllLevels() []Level {
	return []Level{LevelProvince, LevelCity, LevelDistrict, LevelCounty}
}

func (l Level) Valid() bool {
	return l >= LevelProvince && l <= LevelCounty
}

func (l Level) Order() int {
	return int(l)
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// Label - отображаемое название уровня.
func (l Level) Label() string {
	return levelLabels[l]
}

// ParseLevel принимает каноническое имя, китайскую метку или порядковый номер.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	for level, name := range levelNames {
		if strings.EqualFold(s, name) {
			return level, nil
		}
	}
	for level, label := range levelLabels {
		if s == label {
			return level, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Level(n).Valid() {
		return Level(n), nil
	}
	return 0, fmt.Errorf("неизвестный уровень: %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("неизвестный уровень: %d", uint8(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
