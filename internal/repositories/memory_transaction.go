package repositories

import (
	"context"
	"sync"
)

// MemoryTxManager сериализует записи мьютексом и откатывает хранилище к снимку при ошибке.
type MemoryTxManager struct {
	mu   sync.Mutex
	repo *OrganizationUnitMemoryRepository
}

func NewMemoryTxManager(repo *OrganizationUnitMemoryRepository) TxManagerInterface {
	return &MemoryTxManager{repo: repo}
}

func (m *MemoryTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.repo.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.repo.restore(snapshot)
			panic(p)
		} else if err != nil {
			m.repo.restore(snapshot)
		}
	}()

	err = fn(ctx)
	return err
}
