package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ekb/internal/adapter/fs"
	"ekb/internal/domain"
	"ekb/internal/usecase"
)

var (
	ingestFlow    string
	ingestWorkers int
	ingestSpace   string
	ingestUser    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest files into the knowledge base",
	Long: `Ingest files or directories through an ingestion flow. Directories are
walked using the configured include/exclude patterns.

Examples:
  ekb ingest ./docs                       # Ingest every matching file
  ekb ingest notes.md --flow my_flow      # Use flows/my_flow.yaml
  ekb ingest ./docs --workers 8           # Ingest with 8 concurrent workers`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlow, "flow", "", "flow name (default from config)")
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "concurrent ingestions (default from config)")
	ingestCmd.Flags().StringVar(&ingestSpace, "space", "", "space id attached to created documents")
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "uploader user id attached to created documents")
	rootCmd.AddCommand(ingestCmd)
}

type ingestSummary struct {
	mu         sync.Mutex
	completed  int
	failed     int
	duplicates int
	errors     int
	corpus     int
}

func (s *ingestSummary) record(doc domain.Document, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case errors.Is(err, domain.ErrDuplicateSource):
		s.duplicates++
	case err != nil:
		s.errors++
	case doc.Status == domain.StatusFailed:
		s.failed++
	default:
		s.completed++
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	identity, err := parseIdentity(ingestUser, ingestSpace)
	if err != nil {
		return err
	}

	flowName := ingestFlow
	if flowName == "" {
		flowName = cfg.Flows.Default
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	steps, err := a.flows.LoadSteps(flowName)
	if err != nil {
		return err
	}
	if !a.provider.Available() {
		fmt.Printf("Embeddings unavailable (%v); documents will be stored without chunks\n", a.provider.Err())
	}

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	inputs, err := walker.Expand(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	workers := ingestWorkers
	if workers <= 0 {
		workers = cfg.Ingest.Workers
	}

	fmt.Printf("Ingesting %d files with flow %q...\n", len(inputs), flowName)

	startTime := time.Now()
	bar := newIngestBar(len(inputs))
	summary := &ingestSummary{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, input := range inputs {
		g.Go(func() error {
			doc, err := a.ingest.Ingest(gctx, usecase.IngestRequest{
				FlowName: flowName,
				Steps:    steps,
				Input:    input,
				Identity: identity,
			})
			summary.record(doc, err)
			if err != nil && !errors.Is(err, domain.ErrDuplicateSource) {
				log.Error("ingest failed", "source", input.Locator, "error", err)
			}
			_ = bar.Add(1)
			// Per-file failures are counted, only cancellation stops the batch.
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	_ = bar.Finish()

	docs, err := a.docs.List(ctx)
	if err == nil {
		summary.corpus = len(docs)
	}

	fmt.Printf("Ingestion complete in %s\n", formatDuration(time.Since(startTime)))
	fmt.Printf("  Completed:  %d\n", summary.completed)
	fmt.Printf("  Failed:     %d\n", summary.failed)
	fmt.Printf("  Duplicates: %d\n", summary.duplicates)
	fmt.Printf("  Errors:     %d\n", summary.errors)
	fmt.Printf("  Documents in corpus: %d\n", summary.corpus)

	if summary.errors > 0 {
		return fmt.Errorf("%d of %d files could not be ingested", summary.errors, len(inputs))
	}
	return nil
}

func newIngestBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func parseIdentity(user, space string) (domain.Identity, error) {
	var identity domain.Identity
	if user != "" {
		id, err := uuid.Parse(user)
		if err != nil {
			return identity, fmt.Errorf("invalid user id %q: %w", user, err)
		}
		identity.UserID = &id
	}
	if space != "" {
		id, err := uuid.Parse(space)
		if err != nil {
			return identity, fmt.Errorf("invalid space id %q: %w", space, err)
		}
		identity.SpaceID = &id
	}
	return identity, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
