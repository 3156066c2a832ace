package similarity

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/siftmod/sift/decisionstore"
)

// DecisionCache is a read-through cache over decision lookups by
// fingerprint. Misses return nil with no error. Delete must succeed on
// absent keys: finalizers invalidate unconditionally after a decision
// upsert so a superseded verdict never serves from cache.
type DecisionCache interface {
	Get(ctx context.Context, fingerprint string) (*decisionstore.Decision, error)
	Set(ctx context.Context, fingerprint string, d *decisionstore.Decision) error
	Delete(ctx context.Context, fingerprint string) error
}

type MemDecisionCache struct {
	Data *expirable.LRU[string, decisionstore.Decision]
}

var _ DecisionCache = (*MemDecisionCache)(nil)

func NewMemDecisionCache(capacity int, ttl time.Duration) MemDecisionCache {
	return MemDecisionCache{
		Data: expirable.NewLRU[string, decisionstore.Decision](capacity, nil, ttl),
	}
}

func (c MemDecisionCache) Get(ctx context.Context, fingerprint string) (*decisionstore.Decision, error) {
	v, ok := c.Data.Get(fingerprint)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c MemDecisionCache) Set(ctx context.Context, fingerprint string, d *decisionstore.Decision) error {
	c.Data.Add(fingerprint, *d)
	return nil
}

func (c MemDecisionCache) Delete(ctx context.Context, fingerprint string) error {
	c.Data.Remove(fingerprint)
	return nil
}

type RedisDecisionCache struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ DecisionCache = (*RedisDecisionCache)(nil)

func NewRedisDecisionCache(redisURL string, ttl time.Duration) (*RedisDecisionCache, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisDecisionCache{
		Data: data,
		TTL:  ttl,
	}, nil
}

func redisCacheKey(fingerprint string) string {
	return "decision/" + fingerprint
}

func (c *RedisDecisionCache) Get(ctx context.Context, fingerprint string) (*decisionstore.Decision, error) {
	var d decisionstore.Decision
	err := c.Data.Get(ctx, redisCacheKey(fingerprint), &d)
	if err == cache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *RedisDecisionCache) Set(ctx context.Context, fingerprint string, d *decisionstore.Decision) error {
	return c.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(fingerprint),
		Value: d,
		TTL:   c.TTL,
	})
}

func (c *RedisDecisionCache) Delete(ctx context.Context, fingerprint string) error {
	return c.Data.Delete(ctx, redisCacheKey(fingerprint))
}
