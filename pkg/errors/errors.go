package errors

import (
	"errors"
	"fmt"
)

// ErrInternalServer - сообщение клиенту вместо внутренних причин.
var ErrInternalServer = fmt.Errorf("внутренняя ошибка сервера")

// Kind - категория ошибки подразделения. По ней транспорт выбирает HTTP-код.
type Kind string

const (
	KindMissingField           Kind = "MissingField"
	KindParentNotFound         Kind = "ParentNotFound"
	KindInvalidLevelTransition Kind = "InvalidLevelTransition"
	KindInvalidCodeFormat      Kind = "InvalidCodeFormat"
	KindDuplicateCode          Kind = "DuplicateCode"
	KindDuplicateSiblingName   Kind = "DuplicateSiblingName"
	KindCycleDetected          Kind = "CycleDetected"
	KindMaxDepthExceeded       Kind = "MaxDepthExceeded"
	KindLevelChangeBlocked     Kind = "LevelChangeBlocked"
	KindNotFound               Kind = "NotFound"
	KindStorage                Kind = "StorageError"
)

// UnitError - типизированная ошибка валидации или хранения.
// errors.Is сравнивает только Kind, поэтому сентинелы ниже подходят для любых экземпляров.
type UnitError struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *UnitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UnitError) Unwrap() error { return e.Err }

func (e *UnitError) Is(target error) bool {
	t, ok := target.(*UnitError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMissingField           = &UnitError{Kind: KindMissingField, Message: "обязательное поле не заполнено"}
	ErrParentNotFound         = &UnitError{Kind: KindParentNotFound, Message: "родительское подразделение не найдено"}
	ErrInvalidLevelTransition = &UnitError{Kind: KindInvalidLevelTransition, Message: "уровень не допускается под этим родителем"}
	ErrInvalidCodeFormat      = &UnitError{Kind: KindInvalidCodeFormat, Message: "код должен состоять из 6 цифр"}
	ErrDuplicateCode          = &UnitError{Kind: KindDuplicateCode, Message: "код уже используется"}
	ErrDuplicateSiblingName   = &UnitError{Kind: KindDuplicateSiblingName, Message: "название уже используется на этом уровне"}
	ErrCycleDetected          = &UnitError{Kind: KindCycleDetected, Message: "перемещение создаёт цикл"}
	ErrMaxDepthExceeded       = &UnitError{Kind: KindMaxDepthExceeded, Message: "превышена максимальная глубина иерархии"}
	ErrLevelChangeBlocked     = &UnitError{Kind: KindLevelChangeBlocked, Message: "нельзя менять уровень подразделения с дочерними элементами"}
	ErrNotFound               = &UnitError{Kind: KindNotFound, Message: "запись не найдена"}
	ErrStorage                = &UnitError{Kind: KindStorage, Message: "ошибка хранилища"}
)

func NewUnitError(kind Kind, field string, format string, args ...interface{}) error {
	return &UnitError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewStorageError оборачивает ошибку хранилища, сохраняя исходную причину.
func NewStorageError(op string, err error) error {
	return &UnitError{Kind: KindStorage, Message: op, Err: err}
}

// KindOf возвращает Kind первой UnitError в цепочке или пустую строку.
func KindOf(err error) Kind {
	var unitErr *UnitError
	if errors.As(err, &unitErr) {
		return unitErr.Kind
	}
	return ""
}

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}
