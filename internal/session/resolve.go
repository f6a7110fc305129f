package session

import (
	"encoding/json"
	"math"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/logger"
)

// HasContext is implemented by receivers that carry a session Context.
type HasContext interface {
	Context() *Context
}

// Resolve looks name up in the first candidate set that contains it, then in
// the default set. A nil Context or a miss resolves to (nil, false).
func Resolve(ctx *Context, name string, setKeys ...string) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	for _, key := range setKeys {
		if v, ok := ctx.params[key][name]; ok {
			return v, true
		}
	}
	if v, ok := ctx.params[domain.DefaultParamSet][name]; ok {
		return v, true
	}
	return nil, false
}

// Arg is an optional argument that records whether the caller supplied it.
type Arg[T any] struct {
	value T
	set   bool
}

// Set returns an explicitly supplied argument.
func Set[T any](v T) Arg[T] {
	return Arg[T]{value: v, set: true}
}

// Unset returns an argument the caller did not supply.
func Unset[T any]() Arg[T] {
	return Arg[T]{}
}

// Get returns the value and whether it was supplied.
func (a Arg[T]) Get() (T, bool) {
	return a.value, a.set
}

// IsSet reports whether the caller supplied the argument.
func (a Arg[T]) IsSet() bool { return a.set }

// Resolver binds an operator's optional arguments to a Context.
//
// Precedence is explicit argument, then context value, then the callee's
// default.
type Resolver struct {
	ctx     *Context
	setKeys []string
}

// NewResolver picks the explicit Context if given, otherwise the Context of
// receiver when it implements HasContext. Resolution with neither always
// misses.
func NewResolver(explicit *Context, receiver any, setKeys ...string) *Resolver {
	ctx := explicit
	if ctx == nil {
		if hc, ok := receiver.(HasContext); ok {
			ctx = hc.Context()
		}
	}
	return &Resolver{ctx: ctx, setKeys: append([]string(nil), setKeys...)}
}

// Context returns the Context in use, which may be nil.
func (r *Resolver) Context() *Context { return r.ctx }

// Resolve returns explicit when it is non-nil, otherwise the context value.
func (r *Resolver) Resolve(name string, explicit any) (any, bool) {
	if explicit != nil {
		return explicit, true
	}
	return Resolve(r.ctx, name, r.setKeys...)
}

// ResolveArg applies the precedence to a typed argument. A context value of
// the wrong type is ignored in favour of def.
func ResolveArg[T any](r *Resolver, name string, arg Arg[T], def T) T {
	if v, ok := arg.Get(); ok {
		return v
	}
	raw, ok := Resolve(r.ctx, name, r.setKeys...)
	if !ok {
		return def
	}
	v, ok := raw.(T)
	if !ok {
		logger.Warn("ignoring context value for %s: got %T", name, raw)
		return def
	}
	return v
}

// String resolves a string argument.
func (r *Resolver) String(name string, arg Arg[string], def string) string {
	return ResolveArg(r, name, arg, def)
}

// Bool resolves a boolean argument.
func (r *Resolver) Bool(name string, arg Arg[bool], def bool) bool {
	return ResolveArg(r, name, arg, def)
}

// Int resolves an integer argument. Whole floats and int64 values from
// parameter files are accepted.
func (r *Resolver) Int(name string, arg Arg[int], def int) int {
	if v, ok := arg.Get(); ok {
		return v
	}
	raw, ok := Resolve(r.ctx, name, r.setKeys...)
	if !ok {
		return def
	}
	if v, ok := toInt(raw); ok {
		return v
	}
	logger.Warn("ignoring context value for %s: got %T", name, raw)
	return def
}

// Float resolves a float argument. Integers are widened.
func (r *Resolver) Float(name string, arg Arg[float64], def float64) float64 {
	if v, ok := arg.Get(); ok {
		return v
	}
	raw, ok := Resolve(r.ctx, name, r.setKeys...)
	if !ok {
		return def
	}
	if v, ok := domain.ToFloat(raw); ok {
		return v
	}
	logger.Warn("ignoring context value for %s: got %T", name, raw)
	return def
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}
