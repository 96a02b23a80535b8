package analysis

import "github.com/cyanlang/cyanc/internal/ir"

// Loops detects back edges in fn (an edge block -> succ where block is
// dominated by succ, i.e. succ dominates block) and marks every block
// on the loop body with a LoopHeader and an incremented Depth, walking
// backward through Preds from the back-edge's source to the header.
// Grounded on the original's LoopMarker (loop_marker.cpp): "isDominating"
// plus a backward mark that stops at the header itself.
//
// Requires Dominator and Preds to already be populated (Dominators
// calls this itself after computing them). Irreducible control flow —
// a loop with more than one entry block reachable without passing
// through a single header — leaves LoopHeader ambiguous, the same
// open question the original leaves unresolved (SPEC_FULL.md Open
// Question 3).
func Loops(fn *ir.Function) {
	entry := fn.Entry()
	if entry == nil {
		return
	}
	scan(map[*ir.BasicBlock]bool{}, entry)
}

func scan(scanned map[*ir.BasicBlock]bool, block *ir.BasicBlock) {
	if scanned[block] {
		return
	}
	scanned[block] = true

	if block.Then != nil {
		if isDominating(block, block.Then) {
			mark(map[*ir.BasicBlock]bool{}, block, block.Then)
		} else {
			scan(scanned, block.Then)
		}
	}

	if block.Condition != nil && block.Else != nil {
		if isDominating(block, block.Else) {
			mark(map[*ir.BasicBlock]bool{}, block, block.Else)
		} else {
			scan(scanned, block.Else)
		}
	}
}

// isDominating reports whether parent dominates child, by walking
// child's dominator-parent chain (same test as BasicBlock.Dominates,
// spelled out here to match the original's member-function name and
// argument order used throughout this file).
func isDominating(child, parent *ir.BasicBlock) bool {
	for b := child; b != nil; b = b.Dominator {
		if b == parent {
			return true
		}
	}
	return false
}

func mark(marked map[*ir.BasicBlock]bool, block, loopHeader *ir.BasicBlock) {
	if marked[block] {
		return
	}
	marked[block] = true

	if block.LoopHeader == nil {
		block.LoopHeader = loopHeader
	}
	block.Depth++
	if block == loopHeader {
		return
	}

	for pred := range block.Preds {
		mark(marked, pred, loopHeader)
	}
}
