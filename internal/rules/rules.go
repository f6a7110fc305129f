// Package rules provides the resource rewrite rules applied to a plan before
// execution.
package rules

import (
	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/logger"
	"github.com/custodia-labs/sercha-flow/internal/plan"
)

// Ensure rules implement the interface.
var (
	_ plan.Rule = EnforceResourceUsage{}
	_ plan.Rule = OptimizeResourceArgs{}
)

// DefaultProfile returns the resource request given to a node of kind k that
// has no explicit directive.
func DefaultProfile(k domain.OperatorKind) *domain.Resources {
	switch k {
	case domain.KindScan:
		return &domain.Resources{CPUs: 1, MemoryMB: 512}
	case domain.KindSink:
		return &domain.Resources{CPUs: 1, MemoryMB: 512}
	default:
		return &domain.Resources{CPUs: 1, MemoryMB: 1024}
	}
}

// Defaults returns the default rule pipeline: enforcement then optimisation.
func Defaults(caps domain.ClusterCaps) []plan.Rule {
	return []plan.Rule{
		EnforceResourceUsage{},
		OptimizeResourceArgs{Caps: caps},
	}
}

// EnforceResourceUsage assigns the default profile of its kind to every node
// without a resource request.
type EnforceResourceUsage struct{}

// Name returns the rule name.
func (EnforceResourceUsage) Name() string { return "enforce_resource_usage" }

// Apply walks the plan in post-order and fills missing requests.
func (EnforceResourceUsage) Apply(p *plan.Plan, root plan.NodeID) error {
	order, err := p.PostOrder(root)
	if err != nil {
		return err
	}
	for _, n := range order {
		if n.Resources != nil {
			continue
		}
		n.Resources = DefaultProfile(n.Kind)
		logger.Debug("enforced %s profile on #%d %s: %s", n.Kind, n.ID, n.Name, n.Resources)
	}
	return nil
}

// OptimizeResourceArgs fuses chains of adjacent one-to-one transforms into a
// single resource group and clamps every request to the cluster caps.
//
// A chain link joins a transform to its only child when both are one-to-one,
// the child has no other parent, neither carries an explicit directive and
// both request the same number of GPUs. Every member of a chain receives the
// largest CPU and memory request of the chain and the smallest non-zero
// concurrency. Processed nodes are marked optimized and skipped on later
// passes.
type OptimizeResourceArgs struct {
	Caps domain.ClusterCaps
}

// Name returns the rule name.
func (OptimizeResourceArgs) Name() string { return "optimize_resource_args" }

// Apply optimises the sub-plan under root.
func (r OptimizeResourceArgs) Apply(p *plan.Plan, root plan.NodeID) error {
	if err := r.Caps.Validate(); err != nil {
		return err
	}
	order, err := p.PostOrder(root)
	if err != nil {
		return err
	}
	for _, n := range order {
		if n.Resources == nil {
			return domain.ConfigError("node #%d %s has no resource request; run %s first",
				n.ID, n.Name, EnforceResourceUsage{}.Name())
		}
	}

	parents, err := p.ParentCounts(root)
	if err != nil {
		return err
	}

	// Chains grow bottom-up, so the head is the member closest to the scan.
	head := make(map[plan.NodeID]plan.NodeID)
	var groups []plan.NodeID
	members := make(map[plan.NodeID][]*plan.Node)
	for _, n := range order {
		if !fusable(n) {
			continue
		}
		h := n.ID
		if len(n.Children) == 1 {
			child := p.MustNode(n.Children[0])
			if _, ok := head[child.ID]; ok && parents[child.ID] == 1 &&
				child.Resources.GPUs == n.Resources.GPUs {
				h = head[child.ID]
			}
		}
		head[n.ID] = h
		if h == n.ID {
			groups = append(groups, h)
		}
		members[h] = append(members[h], n)
	}

	for _, h := range groups {
		chain := members[h]
		if len(chain) < 2 {
			continue
		}
		fuse(h, chain)
		logger.Debug("fused %d nodes under head #%d", len(chain), h)
	}

	for _, n := range order {
		if n.Resources.Optimized {
			continue
		}
		if r.Caps.Clamp(n.Resources) {
			logger.Debug("clamped #%d %s to cluster caps: %s", n.ID, n.Name, n.Resources)
		}
		n.Resources.Optimized = true
	}
	return nil
}

func fusable(n *plan.Node) bool {
	return n.IsOneToOne() && !n.Resources.Optimized && !n.Resources.Explicit
}

func fuse(head plan.NodeID, chain []*plan.Node) {
	var (
		cpus        float64
		memory      int
		concurrency int
	)
	for _, n := range chain {
		res := n.Resources
		if res.CPUs > cpus {
			cpus = res.CPUs
		}
		if res.MemoryMB > memory {
			memory = res.MemoryMB
		}
		if res.Concurrency > 0 && (concurrency == 0 || res.Concurrency < concurrency) {
			concurrency = res.Concurrency
		}
	}
	for _, n := range chain {
		n.Resources.CPUs = cpus
		n.Resources.MemoryMB = memory
		n.Resources.Concurrency = concurrency
		n.Resources.Fused = true
		n.Resources.FusionHead = int(head)
	}
}
