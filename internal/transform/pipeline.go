package transform

import (
	"github.com/cyanlang/cyanc/internal/analysis"
	"github.com/cyanlang/cyanc/internal/ir"
)

// Level selects one of the four predefined optimization pipelines
// (spec.md §4.8).
type Level int

const (
	L0 Level = iota
	L1
	L2
	L3
)

// Run applies level's pipeline to every function in m, in place.
func Run(m *ir.Module, level Level) {
	switch level {
	case L0:
		return
	case L1:
		for _, fn := range m.Functions() {
			runL1(fn)
		}
	case L2:
		for _, fn := range m.Functions() {
			runL2(fn)
		}
	case L3:
		Inliner(m)
		for _, fn := range m.Functions() {
			runL2(fn)
		}
	}
}

// runL1 is Dominators -> Loops -> Mem2Reg -> PhiElim -> UnreachableElim
// -> Dominators -> Loops -> PhiElim -> DeadCodeElim, the original's
// default pipeline (spec.md §4.8 "L1"). Loops is folded into Dominators
// here (analysis.Dominators always runs Loops immediately after, since
// loop nesting depends on the dominator tree it just built).
func runL1(fn *ir.Function) {
	analysis.Dominators(fn)
	Mem2Reg(fn)
	PhiEliminator(fn)
	UnreachableCodeEliminater(fn)
	analysis.Dominators(fn)
	PhiEliminator(fn)
	DeadCodeEliminater(fn)
}

// runL2 is L1 with InstRewriter run after each PhiEliminator step, so
// that both constant folding/CSE/LICM and the branch-on-constant fold
// UnreachableCodeEliminater performs see a value_map already carrying
// any fold InstRewriter produced.
func runL2(fn *ir.Function) {
	analysis.Dominators(fn)
	Mem2Reg(fn)
	PhiEliminator(fn)
	InstRewriter(fn)
	UnreachableCodeEliminater(fn)
	analysis.Dominators(fn)
	PhiEliminator(fn)
	InstRewriter(fn)
	DeadCodeEliminater(fn)
}
