package tr

import (
	"context"

	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
)

// NewManager создаёт менеджер транзакций поверх пула pgx.
func NewManager(db trmpgx.Transactional) (*manager.Manager, error) {
	return manager.New(trmpgx.NewDefaultFactory(db))
}

// ConnFromCtx возвращает активную транзакцию из контекста или db, если транзакции нет.
func ConnFromCtx(ctx context.Context, db trmpgx.Tr) trmpgx.Tr {
	return trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, db)
}

// TxFromCtx извлекает транзакцию из контекста. Используется операциями, которые обязаны выполняться в транзакции.
func TxFromCtx(ctx context.Context) (trmpgx.Tr, error) {
	tx := trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, nil)
	if tx == nil {
		return nil, e.ErrTransactionNotFound
	}
	return tx, nil
}
