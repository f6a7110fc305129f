package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-flow/internal/logger"
)

var (
	pipelineParamsFile string
	runRunner          string
	runWorkers         int
	runFailFast        bool
	runWatch           bool
	runJSON            bool
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline-file>",
	Short: "Run a pipeline",
	Long: `Runs the pipeline declared in a TOML or YAML file.

Parameter sets are merged in order: config store, pipeline file, --params file.
With --watch the pipeline re-runs whenever the pipeline file or its scan
inputs change.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	addPipelineFlags(runCmd)
	runCmd.Flags().StringVar(&runRunner, "runner", "", "partition runner (sequential, pool)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "pool runner workers")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "stop at the first failing partition")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "re-run when inputs change")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(runCmd)
}

// addPipelineFlags registers flags shared by commands reading pipelines.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&pipelineParamsFile, "params", "p", "", "parameter set file (TOML or YAML)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if pipelineRunner == nil {
		return errors.New("pipeline service not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	spec, err := preparePipeline(cmd, args[0])
	if err != nil {
		return err
	}
	if !runWatch {
		return runOnce(ctx, cmd, spec)
	}

	w, err := newPipelineWatcher(args[0], spec, defaultDebounce)
	if err != nil {
		return fmt.Errorf("watch pipeline: %w", err)
	}
	defer w.Close()

	if err := runOnce(ctx, cmd, spec); err != nil {
		cmd.PrintErrf("Run failed: %v\n", err)
	}
	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	return w.Run(ctx, func() {
		spec, err := preparePipeline(cmd, args[0])
		if err != nil {
			cmd.PrintErrf("Reload failed: %v\n", err)
			return
		}
		if err := runOnce(ctx, cmd, spec); err != nil {
			cmd.PrintErrf("Run failed: %v\n", err)
		}
	})
}

// preparePipeline loads a pipeline file and applies parameter and runner
// overrides from the config store and flags.
func preparePipeline(cmd *cobra.Command, path string) (*domain.PipelineSpec, error) {
	if loadPipeline == nil {
		return nil, errors.New("pipeline loader not configured")
	}
	spec, err := loadPipeline(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}

	params := domain.ParamSets{}
	if configuredParams != nil {
		params = configuredParams()
	}
	params = params.Merge(spec.Params)
	if pipelineParamsFile != "" {
		if loadParams == nil {
			return nil, errors.New("params loader not configured")
		}
		overlay, err := loadParams(pipelineParamsFile)
		if err != nil {
			return nil, err
		}
		params = params.Merge(overlay)
	}
	spec.Params = params

	if spec.Runner == nil && defaultRunner != nil {
		spec.Runner = defaultRunner()
	}
	if flags := cmd.Flags(); flags.Changed("runner") || flags.Changed("workers") || flags.Changed("fail-fast") {
		r := domain.RunnerSpec{}
		if spec.Runner != nil {
			r = *spec.Runner
		}
		if flags.Changed("runner") {
			r.Kind = runRunner
		}
		if flags.Changed("workers") {
			r.Workers = runWorkers
		}
		if flags.Changed("fail-fast") {
			r.FailFast = runFailFast
		}
		spec.Runner = &r
	}
	if spec.Name == "" {
		spec.Name = path
	}
	logger.Debug("pipeline %s: %d transforms, %d parameter sets", spec.Name, len(spec.Transforms), len(spec.Params))
	return spec, nil
}

func runOnce(ctx context.Context, cmd *cobra.Command, spec *domain.PipelineSpec) error {
	result, err := pipelineRunner.Run(ctx, spec)
	if result != nil {
		if printErr := printResult(cmd, spec, result); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func printResult(cmd *cobra.Command, spec *domain.PipelineSpec, result *driving.PipelineResult) error {
	if runJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	if spec.Sink == nil {
		cmd.Printf("Pipeline %s: %d documents (%s)\n", result.Name, result.Documents, result.Duration)
		return nil
	}
	cmd.Printf("Pipeline %s: %d written, %d failed to %s (%s)\n",
		result.Name, result.Written, result.Failed, spec.Sink.Collection, result.Duration)
	if result.PartitionsFailed > 0 {
		cmd.Printf("%d partitions exceeded the allowed failures\n", result.PartitionsFailed)
	}
	return nil
}
