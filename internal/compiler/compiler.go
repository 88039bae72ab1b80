// Package compiler turns a declarative flow definition into a resolved,
// executable Plan: iterate nodes, look up descriptors, build port-level
// wire adjacency, validate, and freeze.
package compiler

import (
	"fmt"
	"sort"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/registry"
)

// CompiledNode is a node definition paired with its registered descriptor
// and a freshly-constructed runtime instance.
type CompiledNode struct {
	Def        flow.NodeDef
	Descriptor flow.Descriptor
	Runtime    node.Runtime
}

// OutWire is one resolved outgoing wire: the source port it fires on, and
// the target node/port it is routed to.
type OutWire struct {
	SourcePort   string
	TargetNodeID string
	TargetPort   string
}

// Plan is the compiled, executable form of a flow definition.
type Plan struct {
	FlowID  string
	Nodes   map[string]*CompiledNode
	Outgoing map[string][]OutWire
	Triggers []string
}

// Compile builds a Plan from def using reg to resolve node types. Disabled
// nodes, and wires touching them, are pruned. Compilation is deterministic
// given the same inputs; re-compiling an unchanged definition with the same
// registry produces an equivalent plan but always fresh runtime instances —
// node-local state is never carried across compilations.
func Compile(def *flow.Definition, reg *registry.Registry) (*Plan, error) {
	plan := &Plan{
		FlowID:   def.ID,
		Nodes:    make(map[string]*CompiledNode, len(def.Nodes)),
		Outgoing: make(map[string][]OutWire),
	}

	for _, n := range def.Nodes {
		if n.Disabled {
			continue
		}

		desc, err := reg.Descriptor(n.Type)
		if err != nil {
			return nil, fmt.Errorf("compile node %s: %w", n.ID, err)
		}

		rt, err := reg.CreateRuntime(n.Type)
		if err != nil {
			return nil, fmt.Errorf("compile node %s: %w", n.ID, err)
		}

		if desc.NewConfig != nil {
			if _, err := registry.ValidateConfig(desc.NewConfig, n.Config); err != nil {
				return nil, fmt.Errorf("compile node %s: %w", n.ID, err)
			}
		}

		plan.Nodes[n.ID] = &CompiledNode{
			Def:        n,
			Descriptor: desc,
			Runtime:    rt,
		}
		plan.Outgoing[n.ID] = nil

		if desc.Trigger {
			plan.Triggers = append(plan.Triggers, n.ID)
		}
	}

	for _, w := range def.Wires {
		if _, ok := plan.Nodes[w.SourceNodeID]; !ok {
			continue
		}
		if _, ok := plan.Nodes[w.TargetNodeID]; !ok {
			continue
		}

		plan.Outgoing[w.SourceNodeID] = append(plan.Outgoing[w.SourceNodeID], OutWire{
			SourcePort:   w.SourcePort,
			TargetNodeID: w.TargetNodeID,
			TargetPort:   w.TargetPort,
		})
	}

	rewriteLinkTunnels(plan)

	return plan, nil
}

// rewriteLinkTunnels resolves declared link-in/link-out pairs into direct
// routing: a link_out node's outgoing wires are extended with the union of
// its matched link_in nodes' own outgoing wires (link_in nodes taken in id
// order), keyed by the shared link_name config value. This bypasses a separate activation of the
// link_in node for every message that crosses the tunnel; the link_in node
// stays in the plan (so flows that wire directly into it still work) but
// a link_out no longer dead-ends.
func rewriteLinkTunnels(plan *Plan) {
	linkInsByName := make(map[string][]string)
	for id, cn := range plan.Nodes {
		if cn.Def.Type != flow.NodeTypeLinkIn {
			continue
		}
		name, _ := cn.Def.Config[flow.ConfigKeyLinkName].(string)
		linkInsByName[name] = append(linkInsByName[name], id)
	}
	if len(linkInsByName) == 0 {
		return
	}
	for _, ids := range linkInsByName {
		sort.Strings(ids)
	}

	for id, cn := range plan.Nodes {
		if cn.Def.Type != flow.NodeTypeLinkOut {
			continue
		}
		name, _ := cn.Def.Config[flow.ConfigKeyLinkName].(string)

		var resolved []OutWire
		for _, linkInID := range linkInsByName[name] {
			resolved = append(resolved, plan.Outgoing[linkInID]...)
		}
		plan.Outgoing[id] = append(plan.Outgoing[id], resolved...)
	}
}

// OutgoingFor returns the resolved outgoing wires for a node's output port,
// in wire-declaration order — the ordering the executor uses to enqueue
// sibling emissions.
func (p *Plan) OutgoingFor(nodeID, port string) []OutWire {
	var out []OutWire
	for _, w := range p.Outgoing[nodeID] {
		if w.SourcePort == port {
			out = append(out, w)
		}
	}
	return out
}
