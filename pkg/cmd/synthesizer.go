package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/forgestate/pkg/config"
	"github.com/dukex/forgestate/pkg/synthesizer"
	"go.opentelemetry.io/otel/trace"
)

const (
	patternCacheSize = 512
	patternCacheTTL  = 24 * time.Hour
)

// NewSynthesizer builds the Anthropic-backed synthesizer. Without an API key it
// reports itself unavailable.
func NewSynthesizer(logger *slog.Logger, settings config.Settings, tracer trace.Tracer) *synthesizer.Synthesizer {
	opts := []synthesizer.Option{}
	if settings.AnthropicModel != "" {
		opts = append(opts, synthesizer.WithModel(settings.AnthropicModel))
	}

	if tracer != nil {
		opts = append(opts, synthesizer.WithTracer(tracer))
	}

	if !settings.AIEnabled() {
		logger.Warn("ANTHROPIC_API_KEY is not set, prompt synthesis is disabled")
	}

	return synthesizer.New(synthesizer.NewAnthropicClient(settings.AnthropicAPIKey), logger, opts...)
}

// NewPatternCache returns a Redis cache when REDIS_URL is set and an in-process
// LRU otherwise. close releases the Redis client and is never nil.
func NewPatternCache(ctx context.Context, logger *slog.Logger, settings config.Settings) (synthesizer.PatternCache, func() error, error) {
	if settings.RedisURL != "" {
		cache, err := synthesizer.NewRedisCacheFromURL(ctx, settings.RedisURL, patternCacheTTL, logger)
		if err != nil {
			return nil, nil, err
		}

		return cache, cache.Close, nil
	}

	cache, err := synthesizer.NewLRUCache(patternCacheSize)
	if err != nil {
		return nil, nil, err
	}

	return cache, func() error { return nil }, nil
}
