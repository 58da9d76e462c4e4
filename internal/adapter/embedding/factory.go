package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ekb/config"
	"ekb/internal/adapter/analyzer"
	"ekb/internal/port"
)

// ErrDisabled is the load error for provider "none".
var ErrDisabled = errors.New("embedding provider disabled")

// NewLoader returns the Loader for the configured provider. Remote models are
// probed with a single request so that an unreachable or misconfigured
// endpoint marks the provider unavailable at startup.
func NewLoader(cfg config.EmbeddingConfig) Loader {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	return func(ctx context.Context) (port.EmbeddingModel, error) {
		switch cfg.Provider {
		case "hash":
			return NewHashModel(cfg.Dimension, analyzer.NewTokenizer()), nil
		case "openai":
			model, err := NewOpenAIModel(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, cfg.Dimension, timeout)
			if err != nil {
				return nil, err
			}
			return probe(ctx, model)
		case "ollama":
			return probe(ctx, NewOllamaModel(cfg.Model, cfg.BaseURL, cfg.Dimension, timeout))
		case "none", "":
			return nil, ErrDisabled
		default:
			return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
		}
	}
}

func probe(ctx context.Context, model *OpenAIModel) (port.EmbeddingModel, error) {
	vec, err := model.Embed(ctx, "ping")
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", model.ModelName(), err)
	}
	if len(vec) != model.Dimension() {
		return nil, fmt.Errorf("probe %s: returned %d dimensions, configured %d", model.ModelName(), len(vec), model.Dimension())
	}
	return model, nil
}
