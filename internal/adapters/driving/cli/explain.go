package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain <pipeline-file>",
	Short: "Print the optimised plan of a pipeline",
	Long: `Builds the pipeline declared in a file, applies the rewrite rules and
prints the resulting plan tree with the resources of every node.
Nothing is read or written.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	addPipelineFlags(explainCmd)
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	if pipelineRunner == nil {
		return errors.New("pipeline service not configured")
	}
	spec, err := preparePipeline(cmd, args[0])
	if err != nil {
		return err
	}
	out, err := pipelineRunner.Explain(spec)
	if err != nil {
		return fmt.Errorf("explain failed: %w", err)
	}
	cmd.Print(out)
	return nil
}
