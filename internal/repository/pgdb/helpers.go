package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation              = "23505"
	foreignKeyViolation          = "23503"
	integrityConstraintViolation = "23000"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	return ""
}

func postgresDuplicate(err error) bool {
	return pgErrCode(err) == uniqueViolation
}

// integrityViolation сообщает о нарушении ссылочной целостности (например, удаление товара из заказа).
func integrityViolation(err error) bool {
	switch pgErrCode(err) {
	case foreignKeyViolation, integrityConstraintViolation:
		return true
	default:
		return false
	}
}

// mapNoRows превращает pgx.ErrNoRows в ошибку «не найдено» с указанием сущности.
func mapNoRows(err error, kind string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return e.NotFound(kind, id)
	}

	return err
}

// pgxConn — общее подмножество методов пула и транзакции, используемое репозиториями.
type pgxConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
