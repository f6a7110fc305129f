// Package domain defines the core entities of sercha-flow.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: The unit of data flowing through a plan, with Elements
//   - MetadataDocument: Pipeline metadata interleaved with documents
//   - Resources: Per-node resource requests set by rewrite rules
//   - WriteAction: One upsert issued against an indexed store
//   - PipelineSpec: A declarative scan, transforms and sink pipeline
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
