package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ekb/config"
	"ekb/internal/adapter/embedding"
	"ekb/internal/adapter/sqlstore"
	"ekb/internal/adapter/store"
	"ekb/internal/logger"
	"ekb/internal/port"
	"ekb/internal/usecase"
)

func main() {
	rootDir := flag.String("dir", ".", "Directory holding ekb.yaml")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("runs", 5, "Timed search repetitions")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir ./kb -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding provider availability and dimension")
		fmt.Println("  2. L2 distance of the nearest chunks")
		fmt.Println("  3. Search latency over repeated runs")
		os.Exit(1)
	}

	root, _ := filepath.Abs(*rootDir)
	cfg, err := config.LoadFromDir(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ResolvePaths(root)

	ctx := context.Background()
	log := logger.Nop()

	st, err := openStore(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening corpus: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	provider := embedding.NewProvider(embedding.NewLoader(cfg.Embedding), cfg.Embedding.Dimension, log)
	if err := provider.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	search := usecase.NewSearchUseCase(st, provider, cfg.Search.MaxTopK, log)

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	docs, err := st.ListDocuments(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing documents: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Documents: %d\n", len(docs))
	fmt.Printf("Model: %s (%s)\n", provider.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", provider.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	var latencies []time.Duration
	var last []resultLine
	for i := 0; i < max(*runs, 1); i++ {
		start := time.Now()
		resp, err := search.Search(ctx, *query, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))

		last = last[:0]
		for _, r := range resp.Results {
			last = append(last, resultLine{source: r.SourceURI, text: r.ChunkText, score: r.Score})
		}
	}

	if len(last) == 0 {
		fmt.Println("No embedded chunks matched. Ingest documents with embeddings enabled first.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(last))
	total := 0.0
	for i, r := range last {
		total += r.score

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating(r.score), r.score, shortPath(r.source))
		fmt.Printf("   %s\n\n", preview(r.text, 150))
	}

	avg := total / float64(len(last))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS (L2 distance, lower is closer):\n")
	fmt.Printf("  Average distance: %.3f\n", avg)
	fmt.Printf("  Top-1 distance:   %.3f\n", last[0].score)
	fmt.Printf("  Status: %s\n", rating(avg))

	var sum time.Duration
	for _, d := range latencies {
		sum += d
	}
	fmt.Printf("LATENCY over %d runs: avg %s\n", len(latencies), sum/time.Duration(len(latencies)))
}

type resultLine struct {
	source string
	text   string
	score  float64
}

// rating buckets distances between unit vectors, which fall in [0, 2].
func rating(distance float64) string {
	switch {
	case distance < 0.8:
		return "HIGH"
	case distance < 1.0:
		return "GOOD"
	case distance < 1.2:
		return "OK"
	default:
		return "LOW"
	}
}

// preview flattens text to one line of at most n runes.
func preview(text string, n int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return parts[len(parts)-1]
	}
	return path
}

func openStore(cfg *config.Config, log *logger.Logger) (port.CorpusStore, error) {
	if cfg.Database.Driver != config.DriverBolt {
		return sqlstore.Open(cfg.Database, cfg.Embedding.Dimension, log)
	}
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("no corpus at %s - run 'ekb ingest' first", cfg.Database.Path)
	}
	st, err := store.NewBoltStore(cfg.Database.Path, cfg.Embedding.Dimension)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cfg.Embedding); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
