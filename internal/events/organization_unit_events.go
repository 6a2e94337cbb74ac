package events

import (
	"time"

	"github.com/google/uuid"

	"region-system/internal/entities"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// OrganizationUnitChangedEvent публикуется после коммита любой записи в иерархию.
type OrganizationUnitChangedEvent struct {
	EventID     uuid.UUID
	Action      string
	UnitID      uint64
	AffectedIDs []uint64
	Unit        *entities.OrganizationUnit // nil для удаления
	OccurredAt  time.Time
}

func NewOrganizationUnitChangedEvent(action string, unitID uint64, affected []uint64, unit *entities.OrganizationUnit) OrganizationUnitChangedEvent {
	return OrganizationUnitChangedEvent{
		EventID:     uuid.New(),
		Action:      action,
		UnitID:      unitID,
		AffectedIDs: affected,
		Unit:        unit,
		OccurredAt:  time.Now(),
	}
}

// Name - реализуем интерфейс eventbus.Event
func (e OrganizationUnitChangedEvent) Name() string {
	return "organization.unit.changed"
}
