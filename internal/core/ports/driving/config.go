package driving

// ConfigEditor lets the CLI inspect and change stored defaults.
type ConfigEditor interface {
	// Get returns the effective value of key, environment overrides included.
	Get(key string) (any, bool)

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	// Keys returns the stored keys in sorted order.
	Keys() []string

	// Path returns where the configuration is stored.
	Path() string
}
