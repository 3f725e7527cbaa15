package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
	"github.com/leozzy13/Health-Benchmark/pkg/canonjson"
)

const cacheKeyPrefix = "medbench:llm:"

// cacheStore is the subset of redis.Cmdable the cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedClient serves repeated prompts from redis. Generate never stores:
// a response is cached only through Commit, after the caller has validated
// it, so a rejected response is never replayed to a repair. Read errors are
// logged and the call goes through.
type CachedClient struct {
	next   Client
	store  cacheStore
	params Params
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedClient(next Client, store cacheStore, p Params, ttl time.Duration, logger zerolog.Logger) *CachedClient {
	return &CachedClient{
		next:   next,
		store:  store,
		params: p,
		ttl:    ttl,
		logger: logger.With().Str("component", "llm.cache").Logger(),
	}
}

// NewRedis parses url and returns a connected client.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

type cachedEntry struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw"`
}

// Key hashes every input that can change the response.
func (c *CachedClient) Key(system, user string) (string, error) {
	h, err := canonjson.Hash(map[string]any{
		"provider":          c.params.Provider,
		"model":             c.params.Model,
		"temperature":       c.params.Temperature,
		"max_output_tokens": c.params.MaxOutputTokens,
		"seed":              c.params.Seed,
		"reasoning_effort":  c.params.ReasoningEffort,
		"system":            system,
		"user":              user,
	})
	if err != nil {
		return "", err
	}
	return cacheKeyPrefix + h, nil
}

func (c *CachedClient) Generate(ctx context.Context, system, user string) (*CallResult, error) {
	key, err := c.Key(system, user)
	if err != nil {
		return nil, fmt.Errorf("cache key: %w", err)
	}

	if hit, ok := c.lookup(ctx, key); ok {
		metrics.RecordModelAttempt(c.params.Provider, "cached", 0, nil, nil)
		c.logger.Info().Str("key", key).Msg("model response served from cache")
		return &CallResult{
			Text:     hit.Text,
			Raw:      hit.Raw,
			Attempts: []Attempt{{AttemptIndex: 1, Status: StatusOK, Cached: true}},
		}, nil
	}

	return c.next.Generate(ctx, system, user)
}

// Commit stores an accepted response under the key of the prompt that
// produced it. Results that were themselves served from cache are skipped.
func (c *CachedClient) Commit(ctx context.Context, system, user string, res *CallResult) error {
	if res == nil || res.FromCache() {
		return nil
	}
	key, err := c.Key(system, user)
	if err != nil {
		return fmt.Errorf("cache key: %w", err)
	}
	payload, err := json.Marshal(cachedEntry{Text: res.Text, Raw: res.Raw})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.store.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}

func (c *CachedClient) lookup(ctx context.Context, key string) (cachedEntry, bool) {
	val, err := c.store.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cachedEntry{}, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return cachedEntry{}, false
	}
	var e cachedEntry
	if err := json.Unmarshal(val, &e); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt cache entry")
		return cachedEntry{}, false
	}
	return e, true
}
