package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/index/sqlite"
	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
)

func TestFactory_SupportedKinds(t *testing.T) {
	f := NewFactory(domain.IndexSQLite, "")
	assert.Equal(t, []string{"memory", "sqlite"}, f.SupportedKinds())
}

func TestFactory_SQLite(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(domain.IndexSQLite, dir)

	c, err := f.Create(domain.IndexSpec{})
	require.NoError(t, err)
	assert.Equal(t, sqlite.NewConnector(dir), c)

	path := filepath.Join(dir, "other.db")
	c, err = f.Create(domain.IndexSpec{Kind: domain.IndexSQLite, Path: path})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:"+path, c.Describe())
}

func TestFactory_MemoryIsShared(t *testing.T) {
	f := NewFactory(domain.IndexMemory, "")

	a, err := f.Create(domain.IndexSpec{Path: "x"})
	require.NoError(t, err)
	b, err := f.Create(domain.IndexSpec{Kind: domain.IndexMemory, Path: "x"})
	require.NoError(t, err)
	c, err := f.Create(domain.IndexSpec{Kind: domain.IndexMemory, Path: "y"})
	require.NoError(t, err)

	assert.Same(t, a.(*memory.Index), b.(*memory.Index))
	assert.NotSame(t, a.(*memory.Index), c.(*memory.Index))
}

func TestFactory_UnknownKind(t *testing.T) {
	f := NewFactory(domain.IndexSQLite, "")
	_, err := f.Create(domain.IndexSpec{Kind: "opensearch"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	f.Register("opensearch", func(domain.IndexSpec) (driven.IndexConnector, error) {
		return memory.NewIndex(), nil
	})
	_, err = f.Create(domain.IndexSpec{Kind: "opensearch"})
	assert.NoError(t, err)
}
