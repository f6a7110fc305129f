package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown operator, scan format or transform.
	ErrUnsupportedType = errors.New("unsupported type")

	// Plan Errors.

	// ErrConfiguration indicates malformed creation settings or a malformed
	// resource directive. It is raised while the plan is built and is never
	// silently corrected.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownNode indicates a plan references a child that was never added.
	ErrUnknownNode = errors.New("unknown plan node")

	// Sink Errors.

	// ErrPartitionWrite indicates a partition exceeded its allowed failures.
	ErrPartitionWrite = errors.New("partition write failed")

	// ErrRecordRejected indicates the store rejected a single record.
	// It is counted by the sink and only surfaces through the failure log.
	ErrRecordRejected = errors.New("record rejected")

	// ErrClientClosed indicates an index client has been closed.
	ErrClientClosed = errors.New("index client closed")
)

// ConfigError builds an error wrapping ErrConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// PartitionWriteError is raised when the failing record count of one
// partition exceeds the allowed threshold.
type PartitionWriteError struct {
	// Collection is the target collection name.
	Collection string

	// Partition is the index of the failed partition.
	Partition int

	// Failures is the number of failing records observed before aborting.
	Failures int

	// Allowed is the configured threshold.
	Allowed int

	// FailureLog is where the failing records were appended.
	// Empty when they could not be persisted.
	FailureLog string
}

// Error implements error. The partition is left to the PartitionError
// the runner wraps it in.
func (e *PartitionWriteError) Error() string {
	msg := fmt.Sprintf("%d documents failed to index into %q (allowed %d)", e.Failures, e.Collection, e.Allowed)
	if e.FailureLog == "" {
		return msg + ", failure log not written"
	}
	return msg + ", refer to " + e.FailureLog
}

// Is matches ErrPartitionWrite.
func (e *PartitionWriteError) Is(target error) bool {
	return target == ErrPartitionWrite
}

// PartitionError attributes a failure to the partition task that raised it.
type PartitionError struct {
	Partition int
	Err       error
}

// Error implements error.
func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %d: %v", e.Partition, e.Err)
}

// Unwrap returns the underlying error.
func (e *PartitionError) Unwrap() error {
	return e.Err
}
