package transform

import "github.com/cyanlang/cyanc/internal/ir"

// PhiEliminator collapses trivial phis: one whose branches all carry
// the same value, or whose branches carry exactly the phi itself plus
// one other distinct value (a self-loop that never actually changes
// the value). Grounded on the original's PhiEliminator
// (phi_eliminator.cpp); Mem2Reg already performs this simplification
// as it builds phis, so this pass exists to catch trivial phis a
// front-end or the Inliner produced directly.
//
// Reports whether any phi was removed.
func PhiEliminator(fn *ir.Function) bool {
	vm := ir.NewValueMap()
	changed := false

	for _, b := range fn.Blocks() {
		b.RetainIf(func(inst ir.Instruction) bool {
			phi, ok := inst.(*ir.Phi)
			if !ok {
				return true
			}

			distinct := map[ir.Instruction]bool{}
			var order []ir.Instruction
			for _, br := range phi.Branches {
				if !distinct[br.Value] {
					distinct[br.Value] = true
					order = append(order, br.Value)
				}
			}

			switch {
			case len(order) == 1:
				vm.Set(phi, order[0])
				changed = true
				return false
			case len(order) == 2 && (order[0] == ir.Instruction(phi) || order[1] == ir.Instruction(phi)):
				other := order[0]
				if other == ir.Instruction(phi) {
					other = order[1]
				}
				vm.Set(phi, other)
				changed = true
				return false
			default:
				return true
			}
		})
	}

	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			inst.Resolve(vm)
		}
		if b.Condition != nil {
			if next, ok := vm.Lookup(b.Condition); ok {
				b.Condition = vm.Resolve(next)
			}
		}
	}

	return changed
}
