// Package analysis computes the dominator relation, loop nesting, and
// the call graph that internal/transform's passes consume — all
// read-only annotations hung off ir.BasicBlock and ir.Function, never
// a separate side table (spec.md §4.1, DESIGN NOTES §9).
package analysis

import "github.com/cyanlang/cyanc/internal/ir"

// Dominators walks fn's control-flow graph from the entry block,
// filling in each BasicBlock's Preds, Dominator, then runs Loops on
// top of the result. It is grounded on the original's DepAnalyzer
// (dep_analyzer.cpp): a DFS over then/else edges that folds a new
// predecessor into the running dominator with findDominator, which
// walks both dominator chains to their lowest common ancestor.
//
// Call this once per function before any transform pass runs, and
// again after any pass that changes control flow (UnreachableCodeEliminater,
// Inliner) before the next pass that reads Dominator/LoopHeader/Depth.
func Dominators(fn *ir.Function) {
	entry := fn.Entry()
	if entry == nil {
		return
	}
	for _, b := range fn.Blocks() {
		b.Preds = nil
		b.Dominator = nil
		b.LoopHeader = nil
		b.Depth = 0
	}
	scanDep(map[*ir.BasicBlock]bool{}, entry)
	Loops(fn)
}

func scanDep(scanned map[*ir.BasicBlock]bool, block *ir.BasicBlock) {
	if scanned[block] {
		return
	}
	scanned[block] = true

	succs := block.Successors()
	for _, s := range succs {
		setPreceder(s, block)
		scanDep(scanned, s)
	}
}

func setPreceder(block, preceder *ir.BasicBlock) {
	if block.Dominator != nil {
		block.Dominator = findDominator(block.Dominator, preceder)
	} else {
		block.Dominator = preceder
	}
	block.AddPred(preceder)
}

// findDominator returns the nearest common ancestor of p1 and p2 along
// their dominator-parent chains: collect p1's chain into a set, then
// walk p2's chain until a member of that set is found.
func findDominator(p1, p2 *ir.BasicBlock) *ir.BasicBlock {
	seen := map[*ir.BasicBlock]bool{}
	for b := p1; b != nil; b = b.Dominator {
		seen[b] = true
	}
	for b := p2; b != nil; b = b.Dominator {
		if seen[b] {
			return b
		}
	}
	panic("analysis: no common dominator — control-flow graph is not connected from entry")
}
