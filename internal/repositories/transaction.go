package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "region-system/pkg/errors"
)

// treeWriteLockKey - ключ advisory-блокировки, сериализующей все записи в дерево.
const treeWriteLockKey int64 = 0x6f7267756e6974

type TxManagerInterface interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// txBeginner - часть пула, нужная менеджеру транзакций.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type TxManager struct {
	pool txBeginner
}

func NewTxManager(pool *pgxpool.Pool) TxManagerInterface {
	return &TxManager{pool: pool}
}

// RunInTransaction выполняет `fn` в одной транзакции под блокировкой записи дерева.
// Транзакция передаётся через контекст; репозитории берут её оттуда.
// Сбои самой транзакции возвращаются как StorageError.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewStorageError("не удалось начать транзакцию", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			if errCommit := tx.Commit(ctx); errCommit != nil {
				err = apperrors.NewStorageError("ошибка при коммите транзакции", errCommit)
			}
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", treeWriteLockKey); err != nil {
		return apperrors.NewStorageError("не удалось взять блокировку дерева", err)
	}

	err = fn(withTx(ctx, tx))
	return err
}
