package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

func TestResolve_Examples(t *testing.T) {
	ctx := NewContext(WithParams(domain.ParamSets{
		"paramKeyA": {"llm": 1},
		"paramKeyB": {"llm": []any{"llm1", "llm2"}},
		"default":   {"llm": "openai"},
	}))

	v, ok := Resolve(ctx, "llm")
	require.True(t, ok)
	assert.Equal(t, "openai", v)

	v, _ = Resolve(ctx, "llm", "paramKeyA")
	assert.Equal(t, 1, v)

	v, _ = Resolve(ctx, "llm", "paramKeyB")
	assert.Equal(t, []any{"llm1", "llm2"}, v)

	v, _ = Resolve(ctx, "llm", "paramKeyA", "paramKeyB")
	assert.Equal(t, 1, v, "candidate sets must be checked in order")

	v, ok = Resolve(ctx, "missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestResolve_EmptyContexts(t *testing.T) {
	_, ok := Resolve(nil, "missing")
	assert.False(t, ok)

	_, ok = Resolve(NewContext(), "missing")
	assert.False(t, ok)

	_, ok = Resolve(NewContext(WithParams(domain.ParamSets{})), "missing")
	assert.False(t, ok)
}

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		a, b, def  bool
		want       any
		wantExists bool
	}{
		{name: "all present", a: true, b: true, def: true, want: "A", wantExists: true},
		{name: "A and default", a: true, def: true, want: "A", wantExists: true},
		{name: "B and default", b: true, def: true, want: "B", wantExists: true},
		{name: "A and B", a: true, b: true, want: "A", wantExists: true},
		{name: "default only", def: true, want: "default", wantExists: true},
		{name: "none", want: nil, wantExists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := domain.ParamSets{}
			if tt.a {
				params["A"] = map[string]any{"k": "A"}
			}
			if tt.b {
				params["B"] = map[string]any{"k": "B"}
			}
			if tt.def {
				params[domain.DefaultParamSet] = map[string]any{"k": "default"}
			}
			ctx := NewContext(WithParams(params))

			got, ok := Resolve(ctx, "k", "A", "B")
			assert.Equal(t, tt.wantExists, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// firstCharacter returns the first byte of arg, resolving it when unset.
func firstCharacter(ctx *Context, receiver any, arg Arg[string]) string {
	r := NewResolver(ctx, receiver)
	s := r.String("some_function_arg", arg, "")
	if s == "" {
		return ""
	}
	return s[:1]
}

type contextHolder struct {
	ctx *Context
}

func (h contextHolder) Context() *Context { return h.ctx }

func TestResolver_ExplicitContext(t *testing.T) {
	ctx := NewContext(WithParams(domain.ParamSets{"default": {"some_function_arg": "Aryn"}}))

	assert.Equal(t, "A", firstCharacter(ctx, nil, Unset[string]()))
	assert.Equal(t, "B", firstCharacter(ctx, nil, Set("Baryn")))
	assert.Equal(t, "C", firstCharacter(nil, nil, Set("Caryn")))
	assert.Equal(t, "", firstCharacter(nil, nil, Unset[string]()))
}

func TestResolver_ReceiverContext(t *testing.T) {
	ctx := NewContext(WithParams(domain.ParamSets{"default": {"some_function_arg": "Aryn"}}))
	holder := contextHolder{ctx: ctx}

	assert.Equal(t, "A", firstCharacter(nil, holder, Unset[string]()))
	assert.Equal(t, "B", firstCharacter(nil, holder, Set("Baryn")))
}

func TestResolver_ExplicitContextBeatsReceiver(t *testing.T) {
	receiverCtx := NewContext(WithParams(domain.ParamSets{"default": {"some_function_arg": "Receiver"}}))
	explicitCtx := NewContext(WithParams(domain.ParamSets{"default": {"some_function_arg": "Explicit"}}))

	r := NewResolver(explicitCtx, contextHolder{ctx: receiverCtx})

	assert.Same(t, explicitCtx, r.Context())
	assert.Equal(t, "Explicit", r.String("some_function_arg", Unset[string](), "fallback"))
}

func TestResolver_ExplicitEqualToContextValue(t *testing.T) {
	ctx := NewContext(WithParams(domain.ParamSets{"default": {"limit": 5}}))
	r := NewResolver(ctx, nil)

	assert.Equal(t, 5, r.Int("limit", Set(5), 1))
	assert.Equal(t, 0, r.Int("limit", Set(0), 1), "explicit zero must not be replaced")
}

func TestResolver_SetKeys(t *testing.T) {
	ctx := NewContext(WithParams(domain.ParamSets{
		"similarity": {"target_property": "score"},
		"default":    {"target_property": "other"},
	}))

	assert.Equal(t, "score", NewResolver(ctx, nil, "similarity").String("target_property", Unset[string](), "x"))
	assert.Equal(t, "other", NewResolver(ctx, nil).String("target_property", Unset[string](), "x"))
}

func TestResolver_Resolve(t *testing.T) {
	ctx := NewContext(WithParams(domain.ParamSets{"default": {"query": "cat"}}))
	r := NewResolver(ctx, nil)

	v, ok := r.Resolve("query", nil)
	require.True(t, ok)
	assert.Equal(t, "cat", v)

	v, ok = r.Resolve("query", "dog")
	require.True(t, ok)
	assert.Equal(t, "dog", v)

	_, ok = r.Resolve("missing", nil)
	assert.False(t, ok)
}

func TestResolver_TypedConversions(t *testing.T) {
	ctx := NewContext(WithParams(domain.ParamSets{"default": {
		"size":      int64(300),
		"whole":     2.0,
		"fraction":  2.5,
		"ratio":     3,
		"enabled":   true,
		"wrongType": "yes",
	}}))
	r := NewResolver(ctx, nil)

	assert.Equal(t, 300, r.Int("size", Unset[int](), 0))
	assert.Equal(t, 2, r.Int("whole", Unset[int](), 0))
	assert.Equal(t, 7, r.Int("fraction", Unset[int](), 7))
	assert.InDelta(t, 3.0, r.Float("ratio", Unset[float64](), 0), 1e-9)
	assert.True(t, r.Bool("enabled", Unset[bool](), false))
	assert.False(t, r.Bool("wrongType", Unset[bool](), false))
	assert.Equal(t, 9, r.Int("missing", Unset[int](), 9))
}
