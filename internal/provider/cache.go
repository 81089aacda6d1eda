package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is the subset of the redis wrapper used to memoise replies.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedProvider serves repeated prompts from a Cache before calling the
// wrapped provider. Cache errors never fail the attempt.
type CachedProvider struct {
	inner  Provider
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func WithCache(inner Provider, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedProvider) Name() string { return c.inner.Name() }

func (c *CachedProvider) Enabled() bool { return isEnabled(c.inner) }

func (c *CachedProvider) Generate(ctx context.Context, req Request) (string, error) {
	key := CacheKey(c.inner.Name(), req)
	if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
		c.logger.Debug().Str("provider", c.inner.Name()).Msg("reply cache hit")
		return cached, nil
	} else if err != nil && !isCacheMiss(err) {
		c.logger.Warn().Err(err).Str("provider", c.inner.Name()).Msg("reply cache read failed")
	}

	text, err := c.inner.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, text, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("provider", c.inner.Name()).Msg("reply cache write failed")
	}
	return text, nil
}

func isCacheMiss(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// CacheKey derives medchat:reply:<provider>:<sha256 of the prompt>.
func CacheKey(provider string, req Request) string {
	var b strings.Builder
	b.WriteString(req.SystemPrompt)
	b.WriteByte(0)
	for _, msg := range req.History {
		b.WriteString(string(msg.Role))
		b.WriteByte(':')
		b.WriteString(msg.Content)
		b.WriteByte(0)
	}
	b.WriteString(req.Message)
	sum := sha256.Sum256([]byte(b.String()))
	return "medchat:reply:" + provider + ":" + hex.EncodeToString(sum[:])
}
