// Package sqlite provides an indexed store backed by a SQLite database file.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. A Connector is only a path: every Connect call opens its
// own database handle, so partition tasks never share a connection.
//
// # Schema
//
// The schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files. Records are stored as JSON payloads keyed by (collection, id).
//
// # Thread Safety
//
// Concurrent clients are serialised by SQLite in WAL mode with a busy timeout.
package sqlite
