package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/rules"
)

func TestInit_DefaultRules(t *testing.T) {
	ctx := Init()

	require.NotNil(t, ctx)
	rs := ctx.RewriteRules()
	require.Len(t, rs, 2)
	assert.IsType(t, rules.EnforceResourceUsage{}, rs[0])
	assert.IsType(t, rules.OptimizeResourceArgs{}, rs[1])
}

func TestInit_ReturnsFreshContext(t *testing.T) {
	first := Init()
	second := Init()

	assert.NotSame(t, first, second)
	assert.Equal(t, len(first.RewriteRules()), len(second.RewriteRules()))
	for i := range first.RewriteRules() {
		assert.Equal(t, first.RewriteRules()[i].Name(), second.RewriteRules()[i].Name())
	}
}

func TestInit_CapsFlowIntoOptimizeRule(t *testing.T) {
	caps := domain.ClusterCaps{MaxCPUs: 2}
	ctx := Init(WithClusterCaps(caps))

	opt, ok := ctx.RewriteRules()[1].(rules.OptimizeResourceArgs)
	require.True(t, ok)
	assert.Equal(t, caps, opt.Caps)
}

func TestInit_OverrideRules(t *testing.T) {
	ctx := Init(WithRewriteRules(rules.EnforceResourceUsage{}))

	require.Len(t, ctx.RewriteRules(), 1)
}

func TestNewContext_NoRules(t *testing.T) {
	ctx := NewContext()

	assert.Empty(t, ctx.RewriteRules())
	assert.Empty(t, ctx.Params())
	assert.Equal(t, "sequential", ctx.Runner().Name())
}

func TestNewContext_ParamsAreCopied(t *testing.T) {
	params := domain.ParamSets{"default": {"llm": "openai"}}
	ctx := NewContext(WithParams(params))

	params["default"]["llm"] = "changed"
	v, ok := Resolve(ctx, "llm")
	require.True(t, ok)
	assert.Equal(t, "openai", v)

	out := ctx.Params()
	out["default"]["llm"] = "changed again"
	v, _ = Resolve(ctx, "llm")
	assert.Equal(t, "openai", v)
}

func TestNewContext_WithRunner(t *testing.T) {
	ctx := NewContext(WithRunner(dataset.NewPoolRunner(2, false)))

	assert.Equal(t, "pool", ctx.Runner().Name())
	assert.Equal(t, "pool", ctx.Executor().Runner().Name())
}

func TestNilContext_Accessors(t *testing.T) {
	var ctx *Context

	assert.Empty(t, ctx.Params())
	assert.Nil(t, ctx.RewriteRules())
	assert.Equal(t, domain.ClusterCaps{}, ctx.ClusterCaps())
	assert.Equal(t, "sequential", ctx.Runner().Name())
}

func TestContext_With(t *testing.T) {
	base := Init(WithParams(domain.ParamSets{"default": {"a": 1}}))

	derived := base.With(WithParams(base.Params().Merge(domain.ParamSets{"default": {"b": 2}})))

	assert.NotSame(t, base, derived)
	assert.Equal(t, map[string]any{"a": 1}, base.Params()["default"], "receiver is unchanged")
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, derived.Params()["default"])
	assert.Len(t, derived.RewriteRules(), 2)

	var nilCtx *Context
	assert.Len(t, nilCtx.With().RewriteRules(), 2)
}
