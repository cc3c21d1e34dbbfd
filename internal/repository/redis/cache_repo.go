package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/cfg"
	"github.com/DRSN-tech/dscommerce-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/clients"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const (
	catalogKeyPrefix = "catalog:product:"
	versionKeySuffix = ":ver"
	// versionTTL должен заметно превышать время между чтением кэша и фоновым заполнением.
	versionTTL = 24 * time.Hour
)

// fillScript записывает карточку, только если версия товара не изменилась
// с момента чтения кэша. KEYS: карточка, версия. ARGV: ожидаемая версия, JSON, TTL в мс.
var fillScript = r.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
if current ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// CacheRepo кэширует карточки товаров каталога.
//
// Каждому товару сопоставлен счётчик версии catalog:product:{id}:ver.
// InvalidateProducts увеличивает его вместе с удалением карточки, а SetProducts
// записывает карточку через fillScript только при совпадении версии. Так чтение из БД,
// начатое до изменения товара, не может вернуть устаревшую карточку в кэш.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ProductInfoConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ProductInfoConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetProducts одним MGET читает карточки и версии товаров.
// Битые записи считаются промахом; версия отсутствующего счётчика равна нулю.
func (c *CacheRepo) GetProducts(ctx context.Context, ids []int64) (*usecase.CachedProducts, error) {
	res := &usecase.CachedProducts{
		Products: make(map[int64]usecase.ProductInfo, len(ids)),
		Versions: make(usecase.CacheVersions, len(ids)),
	}
	if len(ids) == 0 {
		return res, nil
	}

	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	for _, id := range ids {
		keys = append(keys, versionKey(id))
	}

	values, err := c.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	for i, id := range ids {
		version, err := parseVersion(values[len(ids)+i])
		if err != nil {
			c.logger.Warnf("bad cache version for product %d: %v", id, err)
			continue
		}
		res.Versions[id] = version

		data, err := redisValueToBytes(values[i], keys[i])
		if err != nil {
			c.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
			continue
		}
		if data == nil {
			continue
		}

		var model converter.ProductInfoRedisModel
		if err := json.Unmarshal(data, &model); err != nil || model.ID != id {
			c.logger.Warnf("dropping corrupted cache entry %s", keys[i])
			if err := c.client.Client.Del(ctx, keys[i]).Err(); err != nil {
				c.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
			}
			continue
		}
		res.Products[id] = *c.conv.ToUseCase(&model)
	}

	return res, nil
}

// SetProducts заполняет кэш карточками, прочитанными из БД.
// Товар без версии в versions пропускается, как и товар, инвалидированный после чтения версии.
func (c *CacheRepo) SetProducts(ctx context.Context, products []usecase.ProductInfo, versions usecase.CacheVersions) error {
	if len(products) == 0 {
		return nil
	}

	ttl := c.cfg.ProductTTL.Milliseconds()
	pipe := c.client.Client.Pipeline()
	cmds := make(map[int64]*r.Cmd, len(products))
	for _, model := range c.conv.ToArrRedisModel(products) {
		version, ok := versions[model.ID]
		if !ok {
			continue
		}

		data, err := json.Marshal(model)
		if err != nil {
			c.logger.Warnf("marshal product %d for cache: %v", model.ID, err)
			continue
		}

		cmds[model.ID] = fillScript.Eval(ctx, pipe,
			[]string{productKey(model.ID), versionKey(model.ID)}, version, data, ttl)
	}
	if len(cmds) == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	for id, cmd := range cmds {
		if n, _ := cmd.Int(); n == 0 {
			c.logger.Debugf("skipped cache fill for product %d: invalidated after read", id)
		}
	}

	return nil
}

// InvalidateProducts удаляет карточки и увеличивает версии товаров в одной транзакции MULTI.
func (c *CacheRepo) InvalidateProducts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := c.client.Client.TxPipelined(ctx, func(pipe r.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, versionKey(id))
			pipe.Expire(ctx, versionKey(id), versionTTL)
			pipe.Del(ctx, productKey(id))
		}
		return nil
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func productKey(id int64) string {
	return fmt.Sprintf("%s%d", catalogKeyPrefix, id)
}

func versionKey(id int64) string {
	return productKey(id) + versionKeySuffix
}

func parseVersion(val any) (int64, error) {
	data, err := redisValueToBytes(val, "version")
	if err != nil || data == nil {
		return 0, err
	}

	return strconv.ParseInt(string(data), 10, 64)
}

// redisValueToBytes конвертирует значение из Redis в []byte.
func redisValueToBytes(val any, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}
