package domain

// Scan kinds accepted by a PipelineSpec.
const (
	ScanJSON   = "json"
	ScanBinary = "binary"
)

// Index kinds accepted by a PipelineSpec.
const (
	IndexSQLite = "sqlite"
	IndexMemory = "memory"
)

// Runner kinds accepted by a PipelineSpec.
const (
	RunnerSequential = "sequential"
	RunnerPool       = "pool"
)

// PipelineSpec declares a scan, an ordered list of transforms and an
// optional sink. It is the file format read by the CLI.
type PipelineSpec struct {
	// Name labels the pipeline in logs.
	Name string `toml:"name" yaml:"name"`

	// Scan is the single source of the pipeline.
	Scan ScanSpec `toml:"scan" yaml:"scan"`

	// Transforms run in order over the scanned documents.
	Transforms []TransformSpec `toml:"transforms" yaml:"transforms"`

	// Sink writes the result. Without a sink the pipeline is drained.
	Sink *SinkSpec `toml:"sink" yaml:"sink"`

	// Params are parameter sets merged over the configured ones.
	Params ParamSets `toml:"params" yaml:"params"`

	// Runner overrides the session runner when set.
	Runner *RunnerSpec `toml:"runner" yaml:"runner"`
}

// RunnerSpec selects how partitions are executed.
type RunnerSpec struct {
	Kind     string `toml:"kind" yaml:"kind"`
	Workers  int    `toml:"workers" yaml:"workers"`
	FailFast bool   `toml:"fail_fast" yaml:"fail_fast"`
}

// ScanSpec configures the pipeline scan.
type ScanSpec struct {
	Kind        string     `toml:"kind" yaml:"kind"`
	Paths       []string   `toml:"paths" yaml:"paths"`
	Format      string     `toml:"format" yaml:"format"`
	Extensions  []string   `toml:"extensions" yaml:"extensions"`
	Parallelism int        `toml:"parallelism" yaml:"parallelism"`
	Resources   *Resources `toml:"resources" yaml:"resources"`
}

// TransformSpec names a registered transform and its config.
type TransformSpec struct {
	Name      string         `toml:"name" yaml:"name"`
	Config    map[string]any `toml:"config" yaml:"config"`
	Resources *Resources     `toml:"resources" yaml:"resources"`
}

// SinkSpec configures the bulk index sink.
type SinkSpec struct {
	Collection        string             `toml:"collection" yaml:"collection"`
	Index             IndexSpec          `toml:"index" yaml:"index"`
	Settings          CollectionSettings `toml:"settings" yaml:"settings"`
	AllowedFailures   *int               `toml:"allowed_failures" yaml:"allowed_failures"`
	FailureLog        string             `toml:"failure_log" yaml:"failure_log"`
	FailureLogPolicy  string             `toml:"failure_log_policy" yaml:"failure_log_policy"`
	DispatchWorkers   int                `toml:"dispatch_workers" yaml:"dispatch_workers"`
	RequestsPerSecond float64            `toml:"requests_per_second" yaml:"requests_per_second"`
	IDStrategy        string             `toml:"id_strategy" yaml:"id_strategy"`
	Resources         *Resources         `toml:"resources" yaml:"resources"`
}

// IndexSpec locates the indexed store.
type IndexSpec struct {
	Kind string `toml:"kind" yaml:"kind"`
	Path string `toml:"path" yaml:"path"`
}

// Validate checks the parts of a pipeline that need no registry.
func (p *PipelineSpec) Validate() error {
	switch p.Scan.Kind {
	case ScanJSON:
	case ScanBinary:
		if p.Scan.Format == "" {
			return ConfigError("binary scan requires a format")
		}
	default:
		return ConfigError("unknown scan kind %q", p.Scan.Kind)
	}
	if len(p.Scan.Paths) == 0 {
		return ConfigError("scan requires at least one path")
	}
	for i, t := range p.Transforms {
		if t.Name == "" {
			return ConfigError("transform %d has no name", i)
		}
	}
	if r := p.Runner; r != nil {
		switch r.Kind {
		case "", RunnerSequential, RunnerPool:
		default:
			return ConfigError("unknown runner kind %q", r.Kind)
		}
		if r.Workers < 0 {
			return ConfigError("runner workers must be non-negative, got %d", r.Workers)
		}
	}
	if p.Sink == nil {
		return nil
	}
	if p.Sink.Collection == "" {
		return ConfigError("sink requires a collection")
	}
	if _, err := ParseFailureLogPolicy(p.Sink.FailureLogPolicy); err != nil {
		return ConfigError("%v", err)
	}
	return nil
}
