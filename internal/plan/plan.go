// Package plan holds the operator graph of a pipeline.
//
// A Plan is an arena of nodes addressed by NodeID. A parent refers to its
// children by id, so two parents sharing a sub-plan simply list the same
// child. Children must exist before their parents are added, which keeps the
// graph acyclic. Building a plan never touches data.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
)

// NodeID is the stable index of a node within its plan.
type NodeID int

// Operator evaluates one node given the datasets of its children.
// Scans and transforms must stay lazy; sinks perform their write here.
type Operator interface {
	Execute(ctx context.Context, runner dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error)
}

// OneToOne is implemented by record-wise operators that may be fused with
// adjacent one-to-one operators.
type OneToOne interface {
	OneToOne() bool
}

// Describer is implemented by operators with a custom explain label.
type Describer interface {
	Describe() string
}

// Node is a single operator in the plan.
type Node struct {
	ID       NodeID
	Name     string
	Kind     domain.OperatorKind
	Op       Operator
	Children []NodeID

	// Resources is nil until a rewrite rule assigns it, unless the caller
	// supplied an explicit directive.
	Resources *domain.Resources
}

// IsOneToOne reports whether the node is a fusable record-wise transform.
func (n *Node) IsOneToOne() bool {
	if n.Kind != domain.KindTransform {
		return false
	}
	o, ok := n.Op.(OneToOne)
	return ok && o.OneToOne()
}

// Plan is an arena of nodes.
type Plan struct {
	nodes []*Node
}

// New creates an empty plan.
func New() *Plan {
	return &Plan{}
}

// Len returns the number of nodes.
func (p *Plan) Len() int { return len(p.nodes) }

// Node returns the node with the given id.
func (p *Plan) Node(id NodeID) (*Node, error) {
	if int(id) < 0 || int(id) >= len(p.nodes) {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownNode, id)
	}
	return p.nodes[id], nil
}

// MustNode returns the node with the given id and panics if it is unknown.
// It is meant for ids obtained from the same plan.
func (p *Plan) MustNode(id NodeID) *Node {
	n, err := p.Node(id)
	if err != nil {
		panic(err)
	}
	return n
}

// Add appends a node and returns its id.
// A non-nil resources argument is an explicit directive and is validated here.
func (p *Plan) Add(kind domain.OperatorKind, name string, op Operator, resources *domain.Resources, children ...NodeID) (NodeID, error) {
	if !kind.IsValid() {
		return 0, domain.ConfigError("unknown operator kind %q", kind)
	}
	if op == nil {
		return 0, domain.ConfigError("node %q has no operator", name)
	}
	switch kind {
	case domain.KindScan:
		if len(children) > 0 {
			return 0, domain.ConfigError("scan %q cannot have children", name)
		}
	default:
		if len(children) == 0 {
			return 0, domain.ConfigError("%s %q needs at least one child", kind, name)
		}
	}
	for _, c := range children {
		if _, err := p.Node(c); err != nil {
			return 0, fmt.Errorf("add node %q: %w", name, err)
		}
	}
	if err := resources.Validate(); err != nil {
		return 0, fmt.Errorf("add node %q: %w", name, err)
	}

	res := resources.Clone()
	if res != nil {
		res.Explicit = true
	}
	id := NodeID(len(p.nodes))
	p.nodes = append(p.nodes, &Node{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Op:        op,
		Children:  append([]NodeID(nil), children...),
		Resources: res,
	})
	return id, nil
}

// PostOrder returns the nodes reachable from root, children before parents.
// Children are visited in declaration order and every node appears once.
func (p *Plan) PostOrder(root NodeID) ([]*Node, error) {
	if _, err := p.Node(root); err != nil {
		return nil, err
	}
	visited := make(map[NodeID]bool)
	var order []*Node
	var visit func(id NodeID)
	visit = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := p.nodes[id]
		for _, c := range n.Children {
			visit(c)
		}
		order = append(order, n)
	}
	visit(root)
	return order, nil
}

// ParentCounts counts, for every node reachable from root, the distinct
// reachable nodes that list it as a child. Root itself has no entry.
func (p *Plan) ParentCounts(root NodeID) (map[NodeID]int, error) {
	order, err := p.PostOrder(root)
	if err != nil {
		return nil, err
	}
	return p.parentCounts(order), nil
}

// parentCounts counts distinct parents per node reachable from root.
func (p *Plan) parentCounts(order []*Node) map[NodeID]int {
	counts := make(map[NodeID]int, len(order))
	for _, n := range order {
		seen := make(map[NodeID]bool, len(n.Children))
		for _, c := range n.Children {
			if !seen[c] {
				seen[c] = true
				counts[c]++
			}
		}
	}
	return counts
}

// Rule is a rewrite pass over node resource metadata.
// Applying a rule to its own output must be a no-op.
type Rule interface {
	Name() string
	Apply(p *Plan, root NodeID) error
}

// Rewrite applies rules in order.
func (p *Plan) Rewrite(root NodeID, rules ...Rule) error {
	for _, r := range rules {
		if err := r.Apply(p, root); err != nil {
			return fmt.Errorf("apply rule %s: %w", r.Name(), err)
		}
	}
	return nil
}

// Describe renders the sub-plan under root as an indented tree.
// Shared nodes are expanded once and referenced afterwards.
func (p *Plan) Describe(root NodeID) (string, error) {
	if _, err := p.Node(root); err != nil {
		return "", err
	}
	var b strings.Builder
	printed := make(map[NodeID]bool)
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		n := p.nodes[id]
		indent := strings.Repeat("  ", depth)
		if printed[id] {
			fmt.Fprintf(&b, "%s#%d %s (shared)\n", indent, id, n.Name)
			return
		}
		printed[id] = true
		label := n.Name
		if d, ok := n.Op.(Describer); ok {
			label = d.Describe()
		}
		fmt.Fprintf(&b, "%s#%d %s %s [%s]\n", indent, id, n.Kind, label, n.Resources)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return b.String(), nil
}
