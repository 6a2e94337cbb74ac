package listeners

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"region-system/internal/events"
	"region-system/pkg/eventbus"
)

const auditJournalSize = 100

// AuditListener пишет изменения иерархии в лог и держит журнал последних событий.
type AuditListener struct {
	logger  *zap.Logger
	mu      sync.Mutex
	journal []events.OrganizationUnitChangedEvent
}

func NewAuditListener(logger *zap.Logger) *AuditListener {
	return &AuditListener{logger: logger}
}

func (l *AuditListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.OrganizationUnitChangedEvent{}.Name(), l.handleUnitChanged)
	l.logger.Info("AuditListener подписан на событие 'organization.unit.changed'")
}

func (l *AuditListener) handleUnitChanged(_ context.Context, event eventbus.Event) error {
	e, ok := event.(events.OrganizationUnitChangedEvent)
	if !ok {
		return nil
	}

	fields := []zap.Field{
		zap.String("event_id", e.EventID.String()),
		zap.String("action", e.Action),
		zap.Uint64("unit_id", e.UnitID),
		zap.Uint64s("affected_ids", e.AffectedIDs),
		zap.Time("occurred_at", e.OccurredAt),
	}
	if e.Unit != nil {
		fields = append(fields,
			zap.String("name", e.Unit.Name),
			zap.String("code", e.Unit.Code),
			zap.String("level", e.Unit.Level.String()),
		)
	}
	l.logger.Info("Изменение иерархии подразделений", fields...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.journal = append(l.journal, e)
	if len(l.journal) > auditJournalSize {
		l.journal = l.journal[len(l.journal)-auditJournalSize:]
	}
	return nil
}

// Recent возвращает копию журнала, старые события первыми.
func (l *AuditListener) Recent() []events.OrganizationUnitChangedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.OrganizationUnitChangedEvent(nil), l.journal...)
}
