package similar

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vibechain/internal/core"
	"vibechain/internal/llm"
	"vibechain/internal/spotify"
)

// New builds the configured provider wrapped in metrics, retries, and caching, innermost first.
func New(ctx context.Context, cfg *core.Config, metrics core.Metrics, logger *zap.Logger) (core.SimilarityService, error) {
	base, err := newBase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var service core.SimilarityService = NewInstrumented(base, metrics)
	service = NewRetrying(service, cfg.Similarity.MaxAttempts, cfg.Similarity.BackoffStep, logger)
	if cfg.Similarity.CacheTTL > 0 {
		service = NewCached(service, cfg.Similarity.CacheTTL)
	}

	logger.Info("Similarity service ready",
		zap.String("provider", service.Name()),
		zap.Int("max_attempts", cfg.Similarity.MaxAttempts),
		zap.Duration("cache_ttl", cfg.Similarity.CacheTTL))
	return service, nil
}

func newBase(ctx context.Context, cfg *core.Config, logger *zap.Logger) (core.SimilarityService, error) {
	switch cfg.Similarity.Provider {
	case core.ProviderLastFM, "":
		return NewLastFM(&cfg.LastFM, logger), nil
	case core.ProviderSpotify:
		return spotify.NewClient(ctx, &cfg.Spotify, logger), nil
	case core.ProviderOpenAI, core.ProviderAnthropic, core.ProviderOllama:
		return llm.NewProvider(cfg.Similarity.Provider, &cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("%w: unknown similarity provider %q", core.ErrConfig, cfg.Similarity.Provider)
	}
}
