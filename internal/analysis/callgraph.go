package analysis

import "github.com/cyanlang/cyanc/internal/ir"

// CallGraphNode tracks the direct callers and callees of one function,
// resolved statically (a Call instruction whose callee is a Global
// naming a known function — method-dispatch calls through a vtable
// are not precalculated, mirroring the original's "TODO method call"
// in tryPrecalculateFunction).
type CallGraphNode struct {
	Func    *ir.Function
	Callers map[*ir.Function]bool
	Callees map[*ir.Function]bool
}

// CallGraph is the whole-module call graph the Inliner consumes to
// pick an inlining order (spec.md §4.7), grounded on the original's
// Inliner::constructCallingGraph (inliner.cpp).
type CallGraph struct {
	module *ir.Module
	nodes  map[*ir.Function]*CallGraphNode
}

// BuildCallGraph scans every instruction in every function of m and
// links each statically-resolvable call site's caller to its callee.
func BuildCallGraph(m *ir.Module) *CallGraph {
	g := &CallGraph{module: m, nodes: map[*ir.Function]*CallGraphNode{}}
	for _, f := range m.Functions() {
		g.nodes[f] = &CallGraphNode{Func: f, Callers: map[*ir.Function]bool{}, Callees: map[*ir.Function]bool{}}
	}
	for _, f := range m.Functions() {
		for _, b := range f.Blocks() {
			for _, inst := range b.Insts() {
				call, ok := inst.(*ir.Call)
				if !ok {
					continue
				}
				callee := ResolveCallee(m, call)
				if callee == nil {
					continue
				}
				g.nodes[callee].Callers[f] = true
				g.nodes[f].Callees[callee] = true
			}
		}
	}
	return g
}

// ResolveCallee returns the statically-known target of call, or nil if
// the callee is computed (an indirect call through a function pointer
// value, or a vtable method dispatch).
func ResolveCallee(m *ir.Module, call *ir.Call) *ir.Function {
	g, ok := call.Callee.(*ir.Global)
	if !ok {
		return nil
	}
	f, ok := m.Function(g.Symbol)
	if !ok {
		return nil
	}
	return f
}

// Node returns f's call graph node.
func (g *CallGraph) Node(f *ir.Function) *CallGraphNode { return g.nodes[f] }

// Functions returns every function with a node, in no particular
// order — callers needing a deterministic order should sort the
// result themselves.
func (g *CallGraph) Functions() []*ir.Function {
	out := make([]*ir.Function, 0, len(g.nodes))
	for f := range g.nodes {
		out = append(out, f)
	}
	return out
}

// Remove deletes f's node and every edge referencing it, used once a
// function has been fully resorted/inlined away.
func (g *CallGraph) Remove(f *ir.Function) {
	node := g.nodes[f]
	if node == nil {
		return
	}
	for caller := range node.Callers {
		delete(g.nodes[caller].Callees, f)
	}
	for callee := range node.Callees {
		delete(g.nodes[callee].Callers, f)
	}
	delete(g.nodes, f)
}

// Len reports the number of functions still in the graph.
func (g *CallGraph) Len() int { return len(g.nodes) }
