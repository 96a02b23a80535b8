package transform

import "github.com/cyanlang/cyanc/internal/ir"

// DeadCodeEliminater performs a mark-and-sweep pass: every instruction
// reachable from a side-effecting root (Call, Ret, Store, Delete — see
// Instruction.IsCodeGenRoot — or a block's branch condition) is kept;
// everything else is dropped. Grounded on the original's
// DeadCodeEliminater (dead_code_eliminater.cpp), whose hand-written
// per-type _scanner switch is exactly what Instruction.Operands()
// already encodes generically in this port, so the mark phase here is
// one generic walk instead of one case per instruction kind.
//
// Reports whether any instruction was removed.
func DeadCodeEliminater(fn *ir.Function) bool {
	reached := map[ir.Instruction]bool{}

	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			inst.ClearReferences()
		}
	}

	var mark func(inst ir.Instruction)
	mark = func(inst ir.Instruction) {
		if inst == nil || reached[inst] {
			return
		}
		reached[inst] = true
		inst.Reference()
		for _, op := range inst.Operands() {
			mark(op)
		}
	}

	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			if inst.IsCodeGenRoot() {
				mark(inst)
			}
		}
		if b.Condition != nil {
			mark(b.Condition)
		}
	}

	changed := false
	for _, b := range fn.Blocks() {
		b.RetainIf(func(inst ir.Instruction) bool {
			keep := reached[inst]
			if !keep {
				changed = true
			}
			return keep
		})
	}
	return changed
}
