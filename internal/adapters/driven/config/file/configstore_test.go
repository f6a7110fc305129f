package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

func noEnv(string) (string, bool) { return "", false }

// newStore creates a store in a temp dir seeded with content.
func newStore(t *testing.T, content string) *ConfigStore {
	t.Helper()
	dir := t.TempDir()
	if content != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	}
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	store.lookup = noEnv
	return store
}

func TestNewConfigStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "conf")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sercha-flow", "config.toml"), store.Path())
}

func TestNewConfigStore_Errors(t *testing.T) {
	_, err := NewConfigStore("/dev/null/config")
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("runner = {{"), 0600))
	_, err = NewConfigStore(dir)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestConfigStore_EmptyFile(t *testing.T) {
	store := newStore(t, "# defaults\n")

	_, ok := store.Get("runner.kind")
	assert.False(t, ok)
	assert.Empty(t, store.ParamSets())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newStore(t, `
name = "flow"
workers = 6
ratio = 0.5
fail_fast = true
extensions = ["pdf", "html", 3]
`)

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{name: "string", got: store.GetString("name"), expected: "flow"},
		{name: "string wrong type", got: store.GetString("workers"), expected: ""},
		{name: "int from int64", got: store.GetInt("workers"), expected: 6},
		{name: "int wrong type", got: store.GetInt("name"), expected: 0},
		{name: "float", got: store.GetFloat("ratio"), expected: 0.5},
		{name: "float from int", got: store.GetFloat("workers"), expected: 6.0},
		{name: "bool", got: store.GetBool("fail_fast"), expected: true},
		{name: "bool wrong type", got: store.GetBool("workers"), expected: false},
		{name: "slice skips non-strings", got: store.GetStringSlice("extensions"), expected: []string{"pdf", "html"}},
		{name: "missing slice", got: store.GetStringSlice("missing"), expected: []string(nil)},
		{name: "missing int", got: store.GetInt("missing"), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestConfigStore_SetPersists(t *testing.T) {
	store := newStore(t, "[runner]\nkind = 'pool'\n")

	require.NoError(t, store.Set("runner.workers", int64(3)))
	require.NoError(t, store.Set("params.similarity.query", "cats"))
	assert.Equal(t, []string{"params.similarity.query", "runner.kind", "runner.workers"}, store.Keys())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	reloaded.lookup = noEnv
	assert.Equal(t, "pool", reloaded.GetString("runner.kind"))
	assert.Equal(t, 3, reloaded.GetInt("runner.workers"))
	assert.Equal(t, domain.ParamSets{"similarity": {"query": "cats"}}, reloaded.ParamSets())
	assert.Equal(t, store.Keys(), reloaded.Keys())
}

func TestConfigStore_SetErrors(t *testing.T) {
	store := newStore(t, "")

	for _, key := range []string{"", "  ", ".runner", "runner."} {
		assert.ErrorIs(t, store.Set(key, 1), domain.ErrConfiguration, "key %q", key)
	}

	require.NoError(t, store.Set("sink.failure_log", "a.txt"))
	assert.Error(t, store.Set("sink.failure_log", make(chan int)))
	assert.Equal(t, "a.txt", store.GetString("sink.failure_log"), "a failed save keeps the previous value")

	assert.Error(t, store.Set("new.key", make(chan int)))
	_, ok := store.Get("new.key")
	assert.False(t, ok)

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))
	assert.Error(t, store.Set("runner.workers", 2))
}

func TestConfigStore_LoadPicksUpEdits(t *testing.T) {
	store := newStore(t, "")
	require.NoError(t, os.WriteFile(store.Path(), []byte("[index]\nkind = 'memory'\n"), 0600))

	require.NoError(t, store.Load())
	assert.Equal(t, "memory", store.GetString("index.kind"))

	require.NoError(t, os.WriteFile(store.Path(), []byte("]["), 0600))
	assert.ErrorIs(t, store.Load(), domain.ErrConfiguration)
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := newStore(t, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "params.set.k" + string(rune('0'+n))
			assert.NoError(t, store.Set(key, int64(n)))
			_ = store.GetInt(key)
			_ = store.ParamSets()
			_ = store.Keys()
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.ParamSets()["set"], 8)
}

func TestConfigStore_EnvOverrides(t *testing.T) {
	store := newStore(t, "")
	require.NoError(t, store.Set("runner.workers", 2))

	env := map[string]string{
		"SERCHA_FLOW_RUNNER_WORKERS":           "8",
		"SERCHA_FLOW_SINK_REQUESTS_PER_SECOND": "2.5",
		"SERCHA_FLOW_RUNNER_FAIL_FAST":         "true",
		"SERCHA_FLOW_SCAN_EXTENSIONS":          "pdf, html,",
	}
	store.lookup = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	assert.Equal(t, 8, store.GetInt("runner.workers"))
	assert.Equal(t, 2.5, store.GetFloat("sink.requests_per_second"))
	assert.True(t, store.GetBool("runner.fail_fast"))
	assert.Equal(t, []string{"pdf", "html"}, store.GetStringSlice("scan.extensions"))

	store.lookup = noEnv
	assert.Equal(t, 2, store.GetInt("runner.workers"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "SERCHA_FLOW_SINK_ALLOWED_FAILURES", EnvKey("sink.allowed_failures"))
	assert.Equal(t, "SERCHA_FLOW_INDEX_PATH", EnvKey("index-path"))
}

func TestConfigStore_NestedTablesAndParamSets(t *testing.T) {
	store := newStore(t, `
[runner]
kind = "pool"
workers = 6

[sink]
requests_per_second = 10

[params.default]
chunk_size = 500

[params.similarity]
query = "cats"
ignore_doc_structure = true
`)

	assert.Equal(t, "pool", store.GetString("runner.kind"))
	assert.Equal(t, 6, store.GetInt("runner.workers"))
	assert.Equal(t, 10.0, store.GetFloat("sink.requests_per_second"))

	params := store.ParamSets()
	assert.Equal(t, map[string]any{"chunk_size": 500}, params["default"])
	assert.Equal(t, map[string]any{"query": "cats", "ignore_doc_structure": true}, params["similarity"])
	assert.Len(t, params, 2)
}
