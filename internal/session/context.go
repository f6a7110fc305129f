// Package session holds the per-session Context and the parameter resolution
// built on it.
//
// A Context is created once per pipeline session and handed by reference to
// every operator constructor that needs runtime-tunable arguments. It is
// immutable after construction and safe to share across partition tasks.
package session

import (
	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
	"github.com/custodia-labs/sercha-flow/internal/rules"
)

// Context is the immutable parameter store of a session.
type Context struct {
	params   domain.ParamSets
	rules    []plan.Rule
	rulesSet bool
	caps     domain.ClusterCaps
	runner   dataset.Runner
}

// Option configures a Context at construction.
type Option func(*Context)

// WithParams sets the parameter sets. The mapping is deep-copied.
func WithParams(params domain.ParamSets) Option {
	return func(c *Context) {
		c.params = params.Clone()
	}
}

// WithRewriteRules sets the rewrite rules, replacing the defaults.
func WithRewriteRules(rs ...plan.Rule) Option {
	return func(c *Context) {
		c.rules = append([]plan.Rule(nil), rs...)
		c.rulesSet = true
	}
}

// WithClusterCaps sets the caps used by the default optimisation rule.
func WithClusterCaps(caps domain.ClusterCaps) Option {
	return func(c *Context) {
		c.caps = caps
	}
}

// WithRunner sets the runner used to execute plans.
func WithRunner(r dataset.Runner) Option {
	return func(c *Context) {
		if r != nil {
			c.runner = r
		}
	}
}

// NewContext creates a Context. Without WithRewriteRules it carries no rules.
func NewContext(opts ...Option) *Context {
	c := &Context{
		params: domain.ParamSets{},
		runner: dataset.SequentialRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init starts a session. Every call returns a new Context whose rewrite rules
// are the default pipeline unless WithRewriteRules overrides them.
func Init(opts ...Option) *Context {
	c := NewContext(opts...)
	if !c.rulesSet {
		c.rules = rules.Defaults(c.caps)
		c.rulesSet = true
	}
	return c
}

// With returns a new Context carrying c's settings with opts applied.
// The receiver is left unchanged.
func (c *Context) With(opts ...Option) *Context {
	if c == nil {
		return Init(opts...)
	}
	out := &Context{
		params:   c.params.Clone(),
		rules:    append([]plan.Rule(nil), c.rules...),
		rulesSet: c.rulesSet,
		caps:     c.caps,
		runner:   c.runner,
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Params returns a copy of the parameter sets.
func (c *Context) Params() domain.ParamSets {
	if c == nil {
		return domain.ParamSets{}
	}
	return c.params.Clone()
}

// RewriteRules returns the ordered rewrite rules.
func (c *Context) RewriteRules() []plan.Rule {
	if c == nil {
		return nil
	}
	return append([]plan.Rule(nil), c.rules...)
}

// ClusterCaps returns the cluster caps.
func (c *Context) ClusterCaps() domain.ClusterCaps {
	if c == nil {
		return domain.ClusterCaps{}
	}
	return c.caps
}

// Runner returns the partition runner.
func (c *Context) Runner() dataset.Runner {
	if c == nil || c.runner == nil {
		return dataset.SequentialRunner{}
	}
	return c.runner
}

// Executor returns a plan executor using the session runner and caps.
func (c *Context) Executor() *plan.Executor {
	return plan.NewExecutor(plan.WithRunner(c.Runner()), plan.WithClusterCaps(c.ClusterCaps()))
}

// Context returns c, so a Context can itself be passed where a HasContext
// receiver is expected.
func (c *Context) Context() *Context { return c }
