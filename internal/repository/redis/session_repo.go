package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/pkg/clients"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionRepo хранит токены доступа: session:{token} -> id пользователя с TTL.
type SessionRepo struct {
	client *clients.RedisClient
}

func NewSessionRepo(client *clients.RedisClient) *SessionRepo {
	return &SessionRepo{client: client}
}

func (s *SessionRepo) Save(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	if err := s.client.Client.Set(ctx, sessionKey(token), userID, ttl).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetUserID возвращает e.ErrUnauthenticated, если токен неизвестен или истёк.
func (s *SessionRepo) GetUserID(ctx context.Context, token string) (int64, error) {
	val, err := s.client.Client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return 0, e.Wrap(whereami.WhereAmI(), e.ErrUnauthenticated)
		}
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), e.ErrUnauthenticated)
	}

	return id, nil
}

func (s *SessionRepo) Delete(ctx context.Context, token string) error {
	if err := s.client.Client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}
