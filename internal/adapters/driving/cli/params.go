package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

var paramsFormat string

var paramsCmd = &cobra.Command{
	Use:   "params [params-file]",
	Short: "Show the effective parameter sets",
	Long: `Prints the parameter sets from the config store merged with an optional
parameter file. Transforms resolve unset arguments from these sets.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParams,
}

var transformsCmd = &cobra.Command{
	Use:   "transforms",
	Short: "List the transforms available to pipeline files",
	RunE:  runTransforms,
}

func init() {
	paramsCmd.Flags().StringVarP(&paramsFormat, "format", "f", "toml", "output format (toml, yaml)")
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(transformsCmd)
}

func runParams(cmd *cobra.Command, args []string) error {
	params := domain.ParamSets{}
	if configuredParams != nil {
		params = configuredParams()
	}
	if len(args) > 0 {
		if loadParams == nil {
			return errors.New("params loader not configured")
		}
		overlay, err := loadParams(args[0])
		if err != nil {
			return err
		}
		params = params.Merge(overlay)
	}
	if len(params) == 0 {
		cmd.Println("No parameter sets configured.")
		return nil
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(paramsFormat) {
	case "toml":
		data, err = toml.Marshal(map[string]map[string]any(params))
	case "yaml", "yml":
		data, err = yaml.Marshal(map[string]map[string]any(params))
	default:
		return fmt.Errorf("unknown format %q", paramsFormat)
	}
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	cmd.Print(string(data))
	return nil
}

func runTransforms(cmd *cobra.Command, _ []string) error {
	if pipelineRunner == nil {
		return errors.New("pipeline service not configured")
	}
	for _, name := range pipelineRunner.Transforms() {
		cmd.Println(name)
	}
	return nil
}
