package validation

import (
	"github.com/go-playground/validator/v10"

	"region-system/internal/entities"
)

// registerRules регистрирует теги, которые мы используем в struct tags
func registerRules(v *validator.Validate) error {
	return v.RegisterValidation("unit_level", isUnitLevel)
}

// isUnitLevel - имя, подпись или номер уровня
func isUnitLevel(fl validator.FieldLevel) bool {
	_, err := entities.ParseLevel(fl.Field().String())
	return err == nil
}
