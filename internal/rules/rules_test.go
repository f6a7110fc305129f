package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
)

// passOp is a record-wise operator returning its input.
type passOp struct{ oneToOne bool }

func (passOp) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	if len(inputs) == 0 {
		return dataset.New(nil), nil
	}
	return inputs[0], nil
}

func (o passOp) OneToOne() bool { return o.oneToOne }

func snapshot(t *testing.T, p *plan.Plan, root plan.NodeID) []domain.Resources {
	t.Helper()
	order, err := p.PostOrder(root)
	require.NoError(t, err)
	out := make([]domain.Resources, len(order))
	for i, n := range order {
		require.NotNil(t, n.Resources)
		out[i] = *n.Resources
	}
	return out
}

// chain builds scan -> t1 -> t2 -> t3 -> sink.
func chain(t *testing.T, res ...*domain.Resources) (*plan.Plan, []plan.NodeID) {
	t.Helper()
	p := plan.New()
	scan, err := p.Add(domain.KindScan, "scan", passOp{}, nil)
	require.NoError(t, err)
	ids := []plan.NodeID{scan}
	prev := scan
	for i := 0; i < 3; i++ {
		var r *domain.Resources
		if i < len(res) {
			r = res[i]
		}
		id, err := p.Add(domain.KindTransform, "t", passOp{oneToOne: true}, r, prev)
		require.NoError(t, err)
		ids = append(ids, id)
		prev = id
	}
	sink, err := p.Add(domain.KindSink, "sink", passOp{}, nil, prev)
	require.NoError(t, err)
	return p, append(ids, sink)
}

func TestEnforceResourceUsage_FillsDefaults(t *testing.T) {
	explicit := &domain.Resources{CPUs: 3}
	p, ids := chain(t, explicit)

	require.NoError(t, EnforceResourceUsage{}.Apply(p, ids[len(ids)-1]))

	assert.Equal(t, *DefaultProfile(domain.KindScan), *p.MustNode(ids[0]).Resources)
	assert.InDelta(t, 3.0, p.MustNode(ids[1]).Resources.CPUs, 1e-9, "explicit directive is kept")
	assert.Equal(t, *DefaultProfile(domain.KindTransform), *p.MustNode(ids[2]).Resources)
	assert.Equal(t, *DefaultProfile(domain.KindSink), *p.MustNode(ids[4]).Resources)
}

func TestEnforceResourceUsage_Idempotent(t *testing.T) {
	p, ids := chain(t)
	root := ids[len(ids)-1]

	require.NoError(t, EnforceResourceUsage{}.Apply(p, root))
	first := snapshot(t, p, root)
	require.NoError(t, EnforceResourceUsage{}.Apply(p, root))

	assert.Equal(t, first, snapshot(t, p, root))
}

func TestOptimizeResourceArgs_RequiresEnforcement(t *testing.T) {
	p, ids := chain(t)

	err := OptimizeResourceArgs{}.Apply(p, ids[len(ids)-1])
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOptimizeResourceArgs_FusesChain(t *testing.T) {
	p, ids := chain(t)
	root := ids[len(ids)-1]
	require.NoError(t, EnforceResourceUsage{}.Apply(p, root))
	p.MustNode(ids[2]).Resources.MemoryMB = 4096
	p.MustNode(ids[3]).Resources.Concurrency = 2

	require.NoError(t, OptimizeResourceArgs{}.Apply(p, root))

	for _, id := range ids[1:4] {
		res := p.MustNode(id).Resources
		assert.True(t, res.Fused)
		assert.Equal(t, int(ids[1]), res.FusionHead)
		assert.Equal(t, 4096, res.MemoryMB)
		assert.Equal(t, 2, res.Concurrency)
		assert.True(t, res.Optimized)
	}
	assert.False(t, p.MustNode(ids[0]).Resources.Fused)
	assert.False(t, p.MustNode(ids[4]).Resources.Fused)
}

func TestOptimizeResourceArgs_GPUMismatchBreaksChain(t *testing.T) {
	p, ids := chain(t)
	root := ids[len(ids)-1]
	require.NoError(t, EnforceResourceUsage{}.Apply(p, root))
	p.MustNode(ids[3]).Resources.GPUs = 1

	require.NoError(t, OptimizeResourceArgs{}.Apply(p, root))

	assert.Equal(t, int(ids[1]), p.MustNode(ids[2]).Resources.FusionHead)
	assert.False(t, p.MustNode(ids[3]).Resources.Fused, "a single node is not a fusion group")
}

func TestOptimizeResourceArgs_ExplicitNotFused(t *testing.T) {
	p, ids := chain(t, nil, &domain.Resources{CPUs: 1, MemoryMB: 8192})
	root := ids[len(ids)-1]
	require.NoError(t, EnforceResourceUsage{}.Apply(p, root))

	require.NoError(t, OptimizeResourceArgs{}.Apply(p, root))

	assert.False(t, p.MustNode(ids[1]).Resources.Fused)
	assert.False(t, p.MustNode(ids[2]).Resources.Fused)
	assert.Equal(t, 1024, p.MustNode(ids[3]).Resources.MemoryMB)
}

func TestOptimizeResourceArgs_SharedChildNotFused(t *testing.T) {
	p := plan.New()
	scan, _ := p.Add(domain.KindScan, "scan", passOp{}, nil)
	shared, _ := p.Add(domain.KindTransform, "shared", passOp{oneToOne: true}, nil, scan)
	left, _ := p.Add(domain.KindTransform, "left", passOp{oneToOne: true}, nil, shared)
	right, _ := p.Add(domain.KindTransform, "right", passOp{oneToOne: true}, nil, shared)
	root, _ := p.Add(domain.KindSink, "sink", passOp{}, nil, left, right)

	require.NoError(t, p.Rewrite(root, Defaults(domain.ClusterCaps{})...))

	for _, id := range []plan.NodeID{shared, left, right} {
		assert.False(t, p.MustNode(id).Resources.Fused)
	}
}

func TestOptimizeResourceArgs_ClampsToCaps(t *testing.T) {
	p, ids := chain(t, &domain.Resources{CPUs: 16, GPUs: 4, MemoryMB: 65536, Concurrency: 64})
	root := ids[len(ids)-1]
	caps := domain.ClusterCaps{MaxCPUs: 4, MaxGPUs: 1, MaxMemoryMB: 2048, MaxConcurrency: 8}

	require.NoError(t, p.Rewrite(root, Defaults(caps)...))

	order, err := p.PostOrder(root)
	require.NoError(t, err)
	for _, n := range order {
		assert.True(t, caps.Within(n.Resources), "node #%d exceeds caps: %s", n.ID, n.Resources)
	}
	assert.Equal(t, 2048, p.MustNode(ids[1]).Resources.MemoryMB)
}

func TestOptimizeResourceArgs_NegativeCaps(t *testing.T) {
	p, ids := chain(t)
	root := ids[len(ids)-1]
	require.NoError(t, EnforceResourceUsage{}.Apply(p, root))

	err := OptimizeResourceArgs{Caps: domain.ClusterCaps{MaxCPUs: -1}}.Apply(p, root)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestDefaults_Idempotent(t *testing.T) {
	p, ids := chain(t)
	root := ids[len(ids)-1]
	rs := Defaults(domain.ClusterCaps{MaxMemoryMB: 768})

	require.NoError(t, p.Rewrite(root, rs...))
	first := snapshot(t, p, root)
	require.NoError(t, p.Rewrite(root, rs...))

	assert.Equal(t, first, snapshot(t, p, root))
}

func TestDefaults_Order(t *testing.T) {
	rs := Defaults(domain.ClusterCaps{})

	require.Len(t, rs, 2)
	assert.Equal(t, "enforce_resource_usage", rs[0].Name())
	assert.Equal(t, "optimize_resource_args", rs[1].Name())
}

func TestOptimizeResourceArgs_CapsUnsetConcurrency(t *testing.T) {
	p, ids := chain(t)
	root := ids[len(ids)-1]
	caps := domain.ClusterCaps{MaxConcurrency: 2}

	require.NoError(t, p.Rewrite(root, Defaults(caps)...))

	for _, id := range ids {
		res := p.MustNode(id).Resources
		assert.Equal(t, 2, res.Concurrency, "node #%d", id)
		assert.True(t, caps.Within(res))
	}
}
