package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ekb/config"
	"ekb/internal/adapter/cache"
	"ekb/internal/adapter/chunker"
	"ekb/internal/adapter/embedding"
	"ekb/internal/adapter/flow"
	"ekb/internal/adapter/processor"
	"ekb/internal/adapter/sqlstore"
	"ekb/internal/adapter/store"
	"ekb/internal/logger"
	"ekb/internal/port"
	"ekb/internal/usecase"
)

// app wires the components shared by every command. It is built once per
// command invocation and torn down with Close.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    port.CorpusStore
	provider *embedding.Provider
	flows    *flow.Loader

	ingest *usecase.IngestUseCase
	search *usecase.SearchUseCase
	docs   *usecase.DocumentUseCase
}

type appOptions struct {
	// skipEmbedding leaves the provider uninitialized for commands that never embed.
	skipEmbedding bool
	// skipMigrate opens the store without checking the embedding fingerprint
	// or dimension, so reset can clear a corpus built with other settings.
	skipMigrate bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg := GetConfig()
	dim := cfg.Embedding.Dimension

	st, err := openStore(cfg, dim, opts.skipMigrate)
	if err != nil {
		return nil, err
	}

	provider := embedding.NewProvider(embedding.NewLoader(cfg.Embedding), dim, log)
	if !opts.skipEmbedding {
		// A load failure leaves the provider unavailable; ingestion degrades
		// and search reports the backend as unavailable.
		_ = provider.Init(ctx)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		provider: provider,
		flows:    flow.NewLoader(cfg.Flows.Dir),
	}
	a.ingest = usecase.NewIngestUseCase(st, provider, chunker.NewParagraphChunker(cfg.Chunking.TargetSize), processor.Default(), log)

	var queryEmbedder port.Embedder = provider
	if cfg.Search.CacheSize > 0 {
		ttl := time.Duration(cfg.Search.CacheTTLSecs) * time.Second
		queryEmbedder = cache.NewCachedEmbedder(provider, cache.NewQueryCache(cfg.Search.CacheSize, ttl))
	}
	a.search = usecase.NewSearchUseCase(st, queryEmbedder, cfg.Search.MaxTopK, log)
	a.docs = usecase.NewDocumentUseCase(st, log)
	return a, nil
}

func openStore(cfg *config.Config, dim int, skipMigrate bool) (port.CorpusStore, error) {
	switch cfg.Database.Driver {
	case config.DriverBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewBoltStore(cfg.Database.Path, dim)
		if err != nil {
			return nil, err
		}
		if !skipMigrate {
			if err := st.Migrate(cfg.Embedding); err != nil {
				st.Close()
				return nil, err
			}
		}
		return st, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlstore.Open(cfg.Database, dim, log, sqlOptions(skipMigrate)...)
	case config.DriverPostgres:
		return sqlstore.Open(cfg.Database, dim, log, sqlOptions(skipMigrate)...)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
}

func sqlOptions(skipMigrate bool) []sqlstore.Option {
	if skipMigrate {
		return []sqlstore.Option{sqlstore.AllowDimensionChange()}
	}
	return nil
}

func (a *app) Close() {
	if err := a.provider.Close(); err != nil {
		a.log.Warn("failed to close embedding model", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close corpus store", "error", err)
	}
}
