package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ekb/internal/adapter/flow"
)

var flowsCmd = &cobra.Command{
	Use:   "flows [name]",
	Short: "List ingestion flows or print one definition",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFlows,
}

func init() {
	rootCmd.AddCommand(flowsCmd)
}

func runFlows(cmd *cobra.Command, args []string) error {
	loader := flow.NewLoader(GetConfig().Flows.Dir)

	if len(args) == 1 {
		f, err := loader.Load(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(f)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}

	names, err := loader.List()
	if err != nil {
		return err
	}
	def := GetConfig().Flows.Default
	for _, name := range names {
		marker := " "
		if name == def {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
	return nil
}
