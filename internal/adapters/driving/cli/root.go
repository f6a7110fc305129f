// Package cli implements the sercha-flow command line.
//
// Commands read pipeline files, merge parameter sets and hand the result to
// the driving ports. Adapters are injected through Configure by main.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-flow/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose bool
	envFile string
)

// Dependencies are the services and loaders the commands call into.
type Dependencies struct {
	Runner driving.PipelineRunner

	// Config edits the stored defaults.
	Config driving.ConfigEditor

	// LoadPipeline reads a pipeline file.
	LoadPipeline func(path string) (*domain.PipelineSpec, error)

	// LoadParams reads a parameter set file.
	LoadParams func(path string) (domain.ParamSets, error)

	// ConfiguredParams returns the parameter sets of the config store.
	ConfiguredParams func() domain.ParamSets

	// DefaultRunner returns the runner used when neither the pipeline
	// file nor the flags select one. It may return nil.
	DefaultRunner func() *domain.RunnerSpec
}

var (
	pipelineRunner   driving.PipelineRunner
	configEditor     driving.ConfigEditor
	loadPipeline     func(path string) (*domain.PipelineSpec, error)
	loadParams       func(path string) (domain.ParamSets, error)
	configuredParams func() domain.ParamSets
	defaultRunner    func() *domain.RunnerSpec
)

var rootCmd = &cobra.Command{
	Use:   "sercha-flow",
	Short: "Run lazy document pipelines",
	Long: `sercha-flow reads documents, transforms them through a lazily
evaluated plan and writes the result to an index.

Pipelines are declared in TOML or YAML files and run with "sercha-flow run".`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return loadEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before running")
}

// Configure injects the services used by the commands.
func Configure(deps Dependencies) {
	pipelineRunner = deps.Runner
	configEditor = deps.Config
	loadPipeline = deps.LoadPipeline
	loadParams = deps.LoadParams
	configuredParams = deps.ConfiguredParams
	defaultRunner = deps.DefaultRunner
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadEnv loads a dotenv file without overriding variables already set.
// A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	logger.Debug("loaded environment from %s", path)
	return nil
}
