// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services and operators depend on these interfaces, and infrastructure
// adapters implement them.
//
// # Required Interfaces
//
//   - IndexConnector: Opens connections to the external indexed store
//   - IndexClient: One connection, owned by a single partition task
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - SimilarityScorer: Scores documents against a query. Only needed by
//     pipelines that rank documents.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, scan, transform or sink package
package driven
