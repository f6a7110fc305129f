package driven

import "github.com/custodia-labs/sercha-flow/internal/core/domain"

// ConfigStore provides access to the CLI configuration.
// Keys use dot notation ("runner.workers"). Implementations may let the
// environment override stored values.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString returns "" if the key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt returns 0 if the key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetFloat returns 0 if the key doesn't exist or isn't a number.
	GetFloat(key string) float64

	// GetBool returns false if the key doesn't exist or isn't a boolean.
	GetBool(key string) bool

	// GetStringSlice returns nil if the key doesn't exist or isn't a slice.
	GetStringSlice(key string) []string

	// ParamSets returns the parameter sets stored under "params.<set>.<name>".
	ParamSets() domain.ParamSets

	// Set stores a configuration value and persists it immediately.
	Set(key string, value any) error

	// Keys returns the stored keys in sorted order.
	Keys() []string

	// Path returns the configuration file path.
	Path() string
}
