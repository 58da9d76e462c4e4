package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ekb/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion and search HTTP API",
	Long: `Serve the HTTP API until interrupted.

Endpoints:
  POST   /api/v1/ingestion/documents
  GET    /api/v1/ingestion/documents[/:id[/chunks]]
  DELETE /api/v1/ingestion/documents/:id
  POST   /api/v1/search/semantic
  GET    /healthz`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Logging.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := httpapi.NewServer(httpapi.RouterConfig{
		IngestionHandler: httpapi.NewIngestionHandler(a.ingest, a.docs, a.flows, cfg.Flows.Default),
		SearchHandler:    httpapi.NewSearchHandler(a.search, cfg.Search.DefaultTopK),
		HealthHandler:    httpapi.NewHealthHandler(a.provider),
		Logger:           log,
	})
	if err := srv.Run(ctx, addr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

