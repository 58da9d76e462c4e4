package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ekb/config"
	"ekb/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ekb",
	Short: "Enterprise knowledge base - ingest documents and search them semantically",
	Long: `ekb ingests documents through named flows, splits their text into
paragraph chunks, embeds every chunk and answers semantic queries by
nearest-neighbor search over the stored vectors.

Example usage:
  ekb ingest ./docs                   # Ingest every markdown/text file under ./docs
  ekb search -q "vector indexes"      # Ranked chunks, smaller score is closer
  ekb serve                           # HTTP API on :8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}
		rootDir, err = filepath.Abs(rootDir)
		if err != nil {
			return fmt.Errorf("invalid root directory: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ResolvePaths(rootDir)

		log, err = logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ekb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}
