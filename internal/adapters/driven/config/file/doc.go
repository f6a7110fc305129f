// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML-based CLI configuration with environment overrides
//   - LoadPipeline: TOML or YAML pipeline files decoded into a PipelineSpec
package file
