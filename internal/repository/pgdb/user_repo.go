package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const selectUser = `
	SELECT u.id, u.name, u.email, u.phone, u.birth_date, u.password,
		COALESCE(array_agg(r.authority ORDER BY r.id) FILTER (WHERE r.id IS NOT NULL), '{}') AS authorities
	FROM tb_user u
	LEFT JOIN tb_user_role ur ON ur.user_id = u.id
	LEFT JOIN tb_role r ON r.id = ur.role_id
`

// UserRepo реализует репозиторий пользователей поверх PostgreSQL.
type UserRepo struct {
	pool *pgxpool.Pool
	conv converter.UserConverter
}

func NewUserRepo(pool *pgxpool.Pool, conv converter.UserConverter) *UserRepo {
	return &UserRepo{pool: pool, conv: conv}
}

func (u *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := u.getOne(ctx, selectUser+` WHERE u.id = $1 GROUP BY u.id;`, id)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), mapNoRows(err, "user", id))
	}

	return user, nil
}

// GetByEmail ищет пользователя по email без учёта регистра.
func (u *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := u.getOne(ctx, selectUser+` WHERE LOWER(u.email) = LOWER($1) GROUP BY u.id;`, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrResourceNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return user, nil
}

func (u *UserRepo) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	conn := tr.ConnFromCtx(ctx, u.pool)

	rows, err := conn.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}

	model, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[converter.UserModel])
	if err != nil {
		return nil, err
	}

	return u.conv.ToEntity(&model)
}
