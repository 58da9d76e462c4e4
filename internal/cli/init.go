package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ekb/config"
)

var (
	initForce    bool
	initDriver   string
	initProvider string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default ekb.yaml into the root directory",
	Long: `Write the default configuration to ekb.yaml so it can be edited.

Examples:
  ekb init                                # bolt corpus, hash embeddings
  ekb init --driver sqlite --provider openai`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing ekb.yaml")
	initCmd.Flags().StringVar(&initDriver, "driver", "", "database driver: bolt, sqlite or postgres")
	initCmd.Flags().StringVar(&initProvider, "provider", "", "embedding provider: hash, openai, ollama or none")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := writeDefaultConfig(rootDir, initDriver, initProvider, initForce)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// writeDefaultConfig saves the default configuration, with optional driver
// and provider overrides, to dir/ekb.yaml.
func writeDefaultConfig(dir, driver, provider string, force bool) (string, error) {
	path := filepath.Join(dir, "ekb.yaml")
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	c := config.DefaultConfig()
	if driver != "" {
		c.Database.Driver = driver
		if driver == config.DriverSQLite {
			c.Database.Path = filepath.Join(".ekb", "corpus.sqlite")
		}
	}
	if provider != "" {
		c.Embedding.Provider = provider
	}
	if driver == config.DriverPostgres {
		// The DSN normally comes from DATABASE_URL.
		c.Database.DSN = "postgres://localhost:5432/ekb"
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	if err := c.Save(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
