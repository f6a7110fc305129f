package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultAllowedFailures is the number of failing records tolerated per
// partition before the partition write is aborted.
const DefaultAllowedFailures = 100

// DefaultFailureLog is where failing records are appended.
const DefaultFailureLog = "failures.txt"

// WriteAction is a single upsert issued against an indexed store.
type WriteAction struct {
	// Collection is the target collection name.
	Collection string

	// ID is the positional identifier within the partition, or a declared id.
	ID string

	// Payload is the record field mapping.
	Payload map[string]any
}

// ActionResult reports the outcome of one dispatched action.
type ActionResult struct {
	Action WriteAction
	Err    error
}

// CollectionSettings are the optional creation settings of a collection.
// Only the top-level sections below are accepted; their content is passed
// through to the store verbatim.
type CollectionSettings map[string]any

// Accepted top-level sections of CollectionSettings.
var collectionSettingSections = map[string]struct{}{
	"settings": {},
	"mappings": {},
	"aliases":  {},
}

// Validate rejects unknown sections and values that cannot be encoded.
func (s CollectionSettings) Validate() error {
	for key, value := range s {
		if _, ok := collectionSettingSections[key]; !ok {
			return ConfigError("unknown collection settings section %q", key)
		}
		if _, ok := value.(map[string]any); !ok {
			return ConfigError("collection settings section %q must be a mapping, got %T", key, value)
		}
	}
	if _, err := json.Marshal(map[string]any(s)); err != nil {
		return ConfigError("collection settings are not encodable: %v", err)
	}
	return nil
}

// FailureLogPolicy decides when failing records are persisted.
type FailureLogPolicy string

// Available failure log policies.
const (
	// LogOnAbort appends failing records only when a partition aborts.
	LogOnAbort FailureLogPolicy = "on_abort"

	// LogAlways also appends failures that stayed within the threshold.
	LogAlways FailureLogPolicy = "always"
)

// IsValid returns true if the policy is recognised.
func (p FailureLogPolicy) IsValid() bool {
	return p == LogOnAbort || p == LogAlways
}

// ParseFailureLogPolicy parses a policy name; empty means LogOnAbort.
func ParseFailureLogPolicy(s string) (FailureLogPolicy, error) {
	if s == "" {
		return LogOnAbort, nil
	}
	p := FailureLogPolicy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: unknown failure log policy %q", ErrInvalidInput, s)
	}
	return p, nil
}
