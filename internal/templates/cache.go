// internal/templates/cache.go
package templates

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"time"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheTTL    = 10 * time.Minute
	DefaultCachePrefix = "templates:"
)

// CachedRepository is a read-through Redis cache in front of another
// Repository. Cached entries live under a write generation: every write goes
// to the backing repository first and then bumps the generation, so an entry
// filled by a read that raced the write is never served again. A failing
// cache is logged and bypassed.
type CachedRepository struct {
	next   Repository
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewCachedRepository(next Repository, rdb redis.Cmdable, ttl time.Duration, prefix string, log logger.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if prefix == "" {
		prefix = DefaultCachePrefix
	}
	return &CachedRepository{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
		logger: log.WithFields(map[string]interface{}{"component": "template_cache"}),
	}
}

func (c *CachedRepository) generationKey() string { return c.prefix + "gen" }

func (c *CachedRepository) recordKey(gen int64, id string) string {
	return c.prefix + "g" + strconv.FormatInt(gen, 10) + ":record:" + id
}

func (c *CachedRepository) listKey(gen int64) string {
	return c.prefix + "g" + strconv.FormatInt(gen, 10) + ":all"
}

// generation must be read before the backing repository. ok is false when
// Redis cannot be reached and the cache should be skipped.
func (c *CachedRepository) generation(ctx context.Context) (gen int64, ok bool) {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if stderrors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.warn("cache generation read failed", errors.NewCacheOperationFailedError("get", err), c.generationKey())
		return 0, false
	}
	return gen, true
}

func (c *CachedRepository) Add(ctx context.Context, draft Draft) (*models.TemplateRecord, error) {
	rec, err := c.next.Add(ctx, draft)
	if err != nil {
		return nil, err
	}
	c.bump(ctx)
	return rec, nil
}

func (c *CachedRepository) GetByID(ctx context.Context, id string) (*models.TemplateRecord, error) {
	gen, ok := c.generation(ctx)
	if !ok {
		return c.next.GetByID(ctx, id)
	}
	var rec models.TemplateRecord
	if c.load(ctx, c.recordKey(gen, id), &rec) {
		return &rec, nil
	}
	found, err := c.next.GetByID(ctx, id)
	if err != nil || found == nil {
		return found, err
	}
	c.store(ctx, c.recordKey(gen, id), found)
	return found, nil
}

func (c *CachedRepository) ListAll(ctx context.Context) ([]models.TemplateRecord, error) {
	gen, ok := c.generation(ctx)
	if !ok {
		return c.next.ListAll(ctx)
	}
	var all []models.TemplateRecord
	if c.load(ctx, c.listKey(gen), &all) {
		return all, nil
	}
	all, err := c.next.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, c.listKey(gen), all)
	return all, nil
}

// FindCandidates filters the cached full list.
func (c *CachedRepository) FindCandidates(ctx context.Context, board, program string) ([]models.TemplateRecord, error) {
	all, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(all, board, program), nil
}

func (c *CachedRepository) Update(ctx context.Context, id string, update Update) (*models.TemplateRecord, error) {
	rec, err := c.next.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	c.bump(ctx)
	return rec, nil
}

func (c *CachedRepository) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.bump(ctx)
	return nil
}

// bump retires every entry of the current generation. Retired entries are
// left to expire with their TTL.
func (c *CachedRepository) bump(ctx context.Context) {
	if err := c.rdb.Incr(ctx, c.generationKey()).Err(); err != nil {
		c.warn("cache generation bump failed", errors.NewCacheOperationFailedError("incr", err), c.generationKey())
	}
}

func (c *CachedRepository) load(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.warn("cache read failed", errors.NewCacheOperationFailedError("get", err), key)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.warn("cache entry unreadable", errors.NewCacheOperationFailedError("decode", err), key)
		c.invalidate(ctx, key)
		return false
	}
	return true
}

func (c *CachedRepository) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.warn("cache encode failed", errors.NewCacheOperationFailedError("encode", err), key)
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.warn("cache write failed", errors.NewCacheOperationFailedError("set", err), key)
	}
}

func (c *CachedRepository) invalidate(ctx context.Context, keys ...string) {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.warn("cache invalidation failed", errors.NewCacheOperationFailedError("del", err), keys...)
	}
}

func (c *CachedRepository) warn(msg string, err error, keys ...string) {
	c.logger.WithError(err).Warn(msg, map[string]interface{}{"keys": keys})
}
