package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ekb/internal/adapter/sqlstore"
	"ekb/internal/adapter/store"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every document and chunk",
	Long: `Remove all ingested documents and chunks. Required after changing the
embedding dimension, or the provider or model of a bolt corpus. On
postgres the vector column is resized to the configured dimension.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	if !resetYes {
		fmt.Printf("This deletes every document in the %s corpus. Continue? [y/N] ", cfg.Database.Driver)
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	a, err := newApp(ctx, appOptions{skipEmbedding: true, skipMigrate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	switch st := a.store.(type) {
	case *store.BoltStore:
		if err := st.Clear(); err != nil {
			return err
		}
		// Record the current embedding fingerprint so the next open passes.
		if err := st.Migrate(cfg.Embedding); err != nil {
			return err
		}
	case *sqlstore.Store:
		if err := st.Clear(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("reset not supported for %T", st)
	}

	fmt.Println("Corpus cleared.")
	return nil
}
