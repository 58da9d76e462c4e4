package embedding

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"ekb/internal/domain"
	"ekb/internal/logger"
	"ekb/internal/port"
)

// Loader constructs the underlying embedding model.
type Loader func(ctx context.Context) (port.EmbeddingModel, error)

// Provider owns the process-wide embedding model. The model is loaded once by
// Init; if loading fails the provider stays unavailable for the rest of the
// process and every Embed call fails fast with domain.ErrEmbeddingUnavailable.
// A loaded provider is safe for concurrent use.
type Provider struct {
	load      Loader
	dimension int
	log       *logger.Logger

	once    sync.Once
	ready   atomic.Bool
	loaded  atomic.Bool // set after loadErr is final
	model   port.EmbeddingModel
	loadErr error
}

func NewProvider(load Loader, dimension int, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		load:      load,
		dimension: dimension,
		log:       log.With("component", "EmbeddingProvider"),
	}
}

// Init loads the model. Only the first call does any work; later calls
// return the outcome of that first load.
func (p *Provider) Init(ctx context.Context) error {
	p.once.Do(func() {
		defer p.loaded.Store(true)
		model, err := p.load(ctx)
		if err != nil {
			p.loadErr = fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
			p.log.Error("embedding model failed to load", "error", err)
			return
		}
		if model.Dimension() != p.dimension {
			p.loadErr = fmt.Errorf("%w: model %s has dimension %d, store expects %d",
				domain.ErrEmbeddingUnavailable, model.ModelName(), model.Dimension(), p.dimension)
			p.log.Error("embedding model dimension mismatch", "model", model.ModelName(),
				"model_dimension", model.Dimension(), "dimension", p.dimension)
			return
		}
		p.model = model
		p.ready.Store(true)
		p.log.Info("embedding model loaded", "model", model.ModelName(), "dimension", model.Dimension())
	})
	return p.loadErr
}

// Available reports whether the model loaded successfully.
func (p *Provider) Available() bool {
	return p.ready.Load()
}

// Err returns the load failure, if any. It is safe to call while Init is
// still running on another goroutine.
func (p *Provider) Err() error {
	if p.ready.Load() {
		return nil
	}
	if p.loaded.Load() && p.loadErr != nil {
		return p.loadErr
	}
	return fmt.Errorf("%w: provider not initialized", domain.ErrEmbeddingUnavailable)
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if !p.ready.Load() {
		return nil, p.Err()
	}
	vec, err := p.model.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != p.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, p.dimension, len(vec))
	}
	return vec, nil
}

func (p *Provider) Dimension() int {
	return p.dimension
}

func (p *Provider) ModelName() string {
	if p.ready.Load() {
		return p.model.ModelName()
	}
	return ""
}

// Close releases model resources at process exit.
func (p *Provider) Close() error {
	if !p.ready.Load() {
		return nil
	}
	if c, ok := p.model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ port.Embedder = (*Provider)(nil)
