package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	docJSON       bool
	docShowChunks bool
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Inspect and delete ingested documents",
}

var docListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocList,
}

var docShowCmd = &cobra.Command{
	Use:   "show <doc-id>",
	Short: "Show one document and optionally its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocShow,
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a document and all of its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocDelete,
}

func init() {
	docCmd.PersistentFlags().BoolVar(&docJSON, "json", false, "output as JSON")
	docShowCmd.Flags().BoolVar(&docShowChunks, "chunks", false, "include chunks in output")

	docCmd.AddCommand(docListCmd, docShowCmd, docDeleteCmd)
	rootCmd.AddCommand(docCmd)
}

func runDocList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{skipEmbedding: true})
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.docs.List(ctx)
	if err != nil {
		return err
	}
	if docJSON {
		return printJSON(docs)
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tSOURCE")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Status, d.DocType, d.SourceURI)
	}
	return w.Flush()
}

func runDocShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}

	a, err := newApp(ctx, appOptions{skipEmbedding: true})
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if !docShowChunks {
		if docJSON {
			return printJSON(doc)
		}
		printDocument(doc.ID, string(doc.Status), doc.DocType, doc.SourceURI, doc.ErrorMessage)
		return nil
	}

	chunks, err := a.docs.Chunks(ctx, id)
	if err != nil {
		return err
	}
	if docJSON {
		return printJSON(map[string]any{"document": doc, "chunks": chunks})
	}

	printDocument(doc.ID, string(doc.Status), doc.DocType, doc.SourceURI, doc.ErrorMessage)
	fmt.Printf("Chunks:  %d\n\n", len(chunks))
	for _, c := range chunks {
		embedded := "no"
		if c.Embedding != nil {
			embedded = "yes"
		}
		fmt.Printf("--- chunk %d (%s, embedded: %s) ---\n", c.Order, c.ID, embedded)
		fmt.Println(truncate(c.Text, 500))
		fmt.Println()
	}
	return nil
}

func runDocDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}

	a, err := newApp(ctx, appOptions{skipEmbedding: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.docs.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted document %s\n", id)
	return nil
}

func printDocument(id uuid.UUID, status, docType, source, errMsg string) {
	fmt.Printf("ID:      %s\n", id)
	fmt.Printf("Source:  %s\n", source)
	fmt.Printf("Type:    %s\n", docType)
	fmt.Printf("Status:  %s\n", status)
	if errMsg != "" {
		fmt.Printf("Error:   %s\n", errMsg)
	}
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
