package domain

import "fmt"

// OperatorKind classifies a plan node.
type OperatorKind string

// Available operator kinds.
const (
	// KindScan produces an initial dataset from an external location.
	KindScan OperatorKind = "scan"

	// KindTransform maps one or more datasets to a new dataset.
	KindTransform OperatorKind = "transform"

	// KindSink consumes a dataset and performs an external write.
	KindSink OperatorKind = "sink"
)

// IsValid returns true if the kind is recognised.
func (k OperatorKind) IsValid() bool {
	switch k {
	case KindScan, KindTransform, KindSink:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k OperatorKind) String() string {
	return string(k)
}

// Resources is the resource request attached to a plan node.
// It is only mutated by rewrite rules, before execution starts.
type Resources struct {
	// CPUs requested per task.
	CPUs float64 `toml:"cpus" yaml:"cpus"`

	// GPUs requested per task.
	GPUs float64 `toml:"gpus" yaml:"gpus"`

	// MemoryMB requested per task.
	MemoryMB int `toml:"memory_mb" yaml:"memory_mb"`

	// Concurrency bounds the number of parallel tasks.
	// Zero lets the runtime decide.
	Concurrency int `toml:"concurrency" yaml:"concurrency"`

	// Explicit marks a directive given by the caller when building the plan.
	Explicit bool `toml:"-" yaml:"-"`

	// Optimized marks a request already processed by the optimisation rule.
	Optimized bool `toml:"-" yaml:"-"`

	// Fused marks a node merged into a chain of adjacent compatible nodes.
	Fused bool `toml:"-" yaml:"-"`

	// FusionHead is the id of the first node of the fused chain.
	FusionHead int `toml:"-" yaml:"-"`
}

// Validate rejects malformed resource directives.
func (r *Resources) Validate() error {
	if r == nil {
		return nil
	}
	if r.CPUs < 0 {
		return ConfigError("cpus must not be negative, got %v", r.CPUs)
	}
	if r.GPUs < 0 {
		return ConfigError("gpus must not be negative, got %v", r.GPUs)
	}
	if r.MemoryMB < 0 {
		return ConfigError("memory_mb must not be negative, got %d", r.MemoryMB)
	}
	if r.Concurrency < 0 {
		return ConfigError("concurrency must not be negative, got %d", r.Concurrency)
	}
	return nil
}

// Clone returns a copy of the request.
func (r *Resources) Clone() *Resources {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}

// String returns a compact description used by plan explain output.
func (r *Resources) String() string {
	if r == nil {
		return "<unset>"
	}
	s := fmt.Sprintf("cpus=%g gpus=%g memory_mb=%d concurrency=%d", r.CPUs, r.GPUs, r.MemoryMB, r.Concurrency)
	if r.Fused {
		s += fmt.Sprintf(" fused=%d", r.FusionHead)
	}
	if r.Optimized {
		s += " optimized"
	}
	return s
}

// ClusterCaps are the upper bounds a single node may request.
// A zero field means the dimension is not capped.
type ClusterCaps struct {
	MaxCPUs        float64
	MaxGPUs        float64
	MaxMemoryMB    int
	MaxConcurrency int
}

// Validate rejects negative caps.
func (c ClusterCaps) Validate() error {
	if c.MaxCPUs < 0 || c.MaxGPUs < 0 || c.MaxMemoryMB < 0 || c.MaxConcurrency < 0 {
		return ConfigError("cluster caps must not be negative")
	}
	return nil
}

// Clamp lowers every dimension of r that exceeds a cap. A zero concurrency
// is unbounded, so it takes MaxConcurrency when that cap is set.
// It reports whether anything changed.
func (c ClusterCaps) Clamp(r *Resources) bool {
	changed := false
	if c.MaxCPUs > 0 && r.CPUs > c.MaxCPUs {
		r.CPUs = c.MaxCPUs
		changed = true
	}
	if c.MaxGPUs > 0 && r.GPUs > c.MaxGPUs {
		r.GPUs = c.MaxGPUs
		changed = true
	}
	if c.MaxMemoryMB > 0 && r.MemoryMB > c.MaxMemoryMB {
		r.MemoryMB = c.MaxMemoryMB
		changed = true
	}
	if c.MaxConcurrency > 0 && (r.Concurrency == 0 || r.Concurrency > c.MaxConcurrency) {
		r.Concurrency = c.MaxConcurrency
		changed = true
	}
	return changed
}

// Within reports whether r satisfies every cap. A nil request is unbounded.
func (c ClusterCaps) Within(r *Resources) bool {
	req := r.Clone()
	if req == nil {
		req = &Resources{}
	}
	return !c.Clamp(req)
}
