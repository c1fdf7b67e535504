package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Published list cache keys. Every list key embeds the current generation;
// invalidation bumps the generation instead of deleting, so a list computed
// before a mutation lands under a key no reader asks for again. Old
// generations age out through their TTL.
const (
	publishedKeyPrefix = "sessions:published:"
	publishedGenKey    = publishedKeyPrefix + "gen"
)

// noGeneration is returned by Get when the generation is unknown. Set
// ignores lists tagged with it.
const noGeneration int64 = -1

// PublishedCache caches the public session list. Get returns the generation
// it read so the caller can hand it back to Set: a list is only stored under
// the generation that was current before the store was queried.
// Implementations treat read failures as misses and invalidation failures
// as a reason to stop serving cached lists.
type PublishedCache interface {
	Get(ctx context.Context, tag string) (sessions []Session, gen int64, ok bool)
	Set(ctx context.Context, tag string, gen int64, sessions []Session)
	Invalidate(ctx context.Context)
}

// NewPublishedCache returns a Redis-backed cache, or a cache that never
// hits when rdb is nil or ttl is not positive.
func NewPublishedCache(rdb *redis.Client, ttl time.Duration) PublishedCache {
	if rdb == nil || ttl <= 0 {
		return noopCache{}
	}
	return &redisPublishedCache{rdb: rdb, ttl: ttl}
}

// redisPublishedCache stores each list as a JSON blob with a TTL.
type redisPublishedCache struct {
	rdb *redis.Client
	ttl time.Duration

	// stale is set when an invalidation could not be recorded. Until a
	// later bump succeeds nothing is served from the cache.
	stale atomic.Bool
}

func publishedKey(gen int64, tag string) string {
	if tag == "" {
		return fmt.Sprintf("%s%d:all", publishedKeyPrefix, gen)
	}
	return fmt.Sprintf("%s%d:tag:%s", publishedKeyPrefix, gen, tag)
}

// generation reads the current generation. A missing counter is seeded from
// the clock so a lost key never brings back lists from an old generation.
func (c *redisPublishedCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, publishedGenKey).Int64()
	if !errors.Is(err, redis.Nil) {
		return gen, err
	}
	if err := c.rdb.SetNX(ctx, publishedGenKey, time.Now().UnixNano(), 0).Err(); err != nil {
		return 0, err
	}
	return c.rdb.Get(ctx, publishedGenKey).Int64()
}

// bump advances the generation, orphaning every cached list.
func (c *redisPublishedCache) bump(ctx context.Context) (int64, error) {
	return c.rdb.Incr(ctx, publishedGenKey).Result()
}

// Get returns the cached list for tag, if present and decodable, along with
// the generation to store a fresh list under on a miss.
func (c *redisPublishedCache) Get(ctx context.Context, tag string) ([]Session, int64, bool) {
	if c.stale.Load() {
		gen, err := c.bump(ctx)
		if err != nil {
			slog.Warn("retrying published cache invalidation", slog.Any("error", err))
			return nil, noGeneration, false
		}
		c.stale.Store(false)
		return nil, gen, false
	}

	gen, err := c.generation(ctx)
	if err != nil {
		slog.Warn("reading published cache generation", slog.Any("error", err))
		return nil, noGeneration, false
	}

	data, err := c.rdb.Get(ctx, publishedKey(gen, tag)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false
	}
	if err != nil {
		slog.Warn("reading published cache", slog.Any("error", err))
		return nil, gen, false
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		slog.Warn("decoding published cache", slog.Any("error", err))
		return nil, gen, false
	}
	return sessions, gen, true
}

// Set stores the list for tag under gen.
func (c *redisPublishedCache) Set(ctx context.Context, tag string, gen int64, sessions []Session) {
	if gen == noGeneration || c.stale.Load() {
		return
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		slog.Warn("encoding published cache", slog.Any("error", err))
		return
	}
	if err := c.rdb.Set(ctx, publishedKey(gen, tag), data, c.ttl).Err(); err != nil {
		slog.Warn("writing published cache", slog.Any("error", err))
	}
}

// Invalidate moves every reader to a new generation. If Redis refuses the
// bump, this instance stops serving cached lists until a bump succeeds.
func (c *redisPublishedCache) Invalidate(ctx context.Context) {
	if _, err := c.bump(ctx); err != nil {
		c.stale.Store(true)
		slog.Warn("invalidating published cache", slog.Any("error", err))
	}
}

// noopCache never hits.
type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]Session, int64, bool) {
	return nil, noGeneration, false
}
func (noopCache) Set(context.Context, string, int64, []Session) {}
func (noopCache) Invalidate(context.Context)                    {}
