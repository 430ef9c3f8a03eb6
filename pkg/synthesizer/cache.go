package synthesizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 24 * time.Hour
	redisKeyPrefix   = "forgestate:pattern:"
)

// PatternCache stores classification results keyed by state fingerprint.
type PatternCache interface {
	Get(ctx context.Context, key string) (models.Pattern, bool)
	Set(ctx context.Context, key string, pattern models.Pattern)
}

// Fingerprint hashes the graph of a state. Metadata is left out so touching a
// workflow does not invalidate its classification.
func Fingerprint(state *models.WorkflowState) (string, error) {
	data, err := models.CanonicalJSON(struct {
		Blocks    map[string]*models.Block `json:"blocks"`
		Edges     []models.Edge            `json:"edges"`
		Subflows  map[string]any           `json:"subflows"`
		Variables map[string]any           `json:"variables"`
	}{state.Blocks, state.Edges, state.Subflows, state.Variables})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint state: %w", err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}

// LRUCache is an in-process PatternCache.
type LRUCache struct {
	cache *lru.Cache[string, models.Pattern]
}

func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, models.Pattern](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	return &LRUCache{cache: cache}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (models.Pattern, bool) {
	return c.cache.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, pattern models.Pattern) {
	c.cache.Add(key, pattern)
}

func (c *LRUCache) Len() int {
	return c.cache.Len()
}

// RedisCache shares classification results between API replicas. Redis faults
// are logged and treated as misses.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("module", "pattern_cache"),
	}
}

// NewRedisCacheFromURL connects to a redis:// URL and pings it.
func NewRedisCacheFromURL(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCache(client, ttl, logger), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.Pattern, bool) {
	value, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Pattern cache read failed", "error", err)
		}

		return "", false
	}

	return models.ParsePattern(value), true
}

func (c *RedisCache) Set(ctx context.Context, key string, pattern models.Pattern) {
	err := c.client.Set(ctx, redisKeyPrefix+key, string(pattern), c.ttl).Err()
	if err != nil {
		c.logger.WarnContext(ctx, "Pattern cache write failed", "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
