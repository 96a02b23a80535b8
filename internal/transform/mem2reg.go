// Package transform implements the cyan compiler's IR-to-IR passes:
// Mem2Reg, InstRewriter (CSE + constant folding + LICM),
// UnreachableCodeEliminater, PhiEliminator, DeadCodeEliminater, Inliner,
// and the L0-L3 pipelines that compose them (spec.md §4.2-4.8).
package transform

import (
	"strconv"

	"github.com/cyanlang/cyanc/internal/ir"
)

// Mem2Reg promotes stack-allocated locals that are only ever addressed
// by a matching Load/Store pair into SSA values, inserting phi nodes
// lazily at join points. Grounded on the original's Mem2Reg
// (mem2reg.cpp): scanAllocInst + filterAllocInst select the
// promotable set, then each alloca is retired independently by a
// recursive per-block value-numbering pass.
//
// Reports whether any alloca was promoted.
func Mem2Reg(fn *ir.Function) bool {
	allocs := scanAllocaInsts(fn)
	allocs = filterAllocaInsts(fn, allocs)
	if len(allocs) == 0 {
		return false
	}
	for _, alloc := range allocs {
		p := newMem2RegPass(fn)
		for _, b := range fn.Blocks() {
			p.replaceInBlock(b, alloc)
		}
		p.resolveEmptyPhi(fn)
		p.resolveMultipleReplace()
		p.replaceUsage(fn)
	}
	return true
}

// scanAllocaInsts collects every Alloca in function-scan order.
func scanAllocaInsts(fn *ir.Function) []*ir.Alloca {
	var out []*ir.Alloca
	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			if a, ok := inst.(*ir.Alloca); ok {
				out = append(out, a)
			}
		}
	}
	return out
}

// filterAllocaInsts drops from allocs any alloca whose address escapes:
// stored as the *value* of some other Store, or used as an operand of
// any instruction other than its own matching Load/Store. A Load or a
// Store addressing the alloca itself is always allowed and never
// causes removal.
func filterAllocaInsts(fn *ir.Function, allocs []*ir.Alloca) []*ir.Alloca {
	set := make(map[*ir.Alloca]bool, len(allocs))
	for _, a := range allocs {
		set[a] = true
	}
	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			switch v := inst.(type) {
			case *ir.Load:
				// A load addressing the alloca is the expected pattern;
				// nothing to filter.
			case *ir.Store:
				if a, ok := v.Value.(*ir.Alloca); ok {
					delete(set, a)
				}
			default:
				for a := range set {
					if inst.UsedInstruction(a) {
						delete(set, a)
					}
				}
			}
		}
	}
	out := allocs[:0]
	for _, a := range allocs {
		if set[a] {
			out = append(out, a)
		}
	}
	return out
}

// mem2regPass holds the per-alloca working state: version_map (the
// alloca's current value reaching the end of each block, nil meaning
// "undefined here") and value_map (load- and trivial-phi
// replacements), matching the original's two member maps.
type mem2regPass struct {
	fn            *ir.Function
	versionMap    map[*ir.BasicBlock]ir.Instruction
	versionSet    map[*ir.BasicBlock]bool
	valueMap      *ir.ValueMap
	scannedPhi    map[*ir.Phi]bool
}

func newMem2RegPass(fn *ir.Function) *mem2regPass {
	return &mem2regPass{
		fn:         fn,
		versionMap: map[*ir.BasicBlock]ir.Instruction{},
		versionSet: map[*ir.BasicBlock]bool{},
		valueMap:   ir.NewValueMap(),
		scannedPhi: map[*ir.Phi]bool{},
	}
}

func (p *mem2regPass) replaceInBlock(block *ir.BasicBlock, alloc *ir.Alloca) {
	if p.versionSet[block] {
		return
	}

	if len(block.Preds) < 2 {
		if len(block.Preds) == 1 {
			var pred *ir.BasicBlock
			for pr := range block.Preds {
				pred = pr
			}
			p.replaceInBlock(pred, alloc)
			p.versionMap[block] = p.versionMap[pred]
			p.versionSet[block] = true
		}

		block.RetainIf(func(inst ir.Instruction) bool {
			if a, ok := inst.(*ir.Alloca); ok && a == alloc {
				return false
			}
			if l, ok := inst.(*ir.Load); ok && l.Address == ir.Instruction(alloc) {
				p.valueMap.Set(l, p.versionMap[block])
				return false
			}
			if s, ok := inst.(*ir.Store); ok && s.Address == ir.Instruction(alloc) {
				p.versionMap[block] = s.Value
				p.versionSet[block] = true
				return false
			}
			return true
		})
	} else {
		phi := p.fn.NewPhi(alloc.Type(), block, alloc.Name()+"."+strconv.Itoa(p.fn.CountLocalTemp()))
		p.versionMap[block] = phi
		p.versionSet[block] = true

		block.RetainIf(func(inst ir.Instruction) bool {
			if a, ok := inst.(*ir.Alloca); ok && a == alloc {
				return false
			}
			if l, ok := inst.(*ir.Load); ok && l.Address == ir.Instruction(alloc) {
				p.valueMap.Set(l, p.versionMap[block])
				return false
			}
			if s, ok := inst.(*ir.Store); ok && s.Address == ir.Instruction(alloc) {
				p.versionMap[block] = s.Value
				return false
			}
			return true
		})

		distinct := map[ir.Instruction]bool{}
		var order []ir.Instruction
		sawUndefined := false
		for pred := range block.Preds {
			p.replaceInBlock(pred, alloc)
			value := p.versionMap[pred]
			for {
				next, ok := p.valueMap.Lookup(value)
				if !ok {
					break
				}
				value = next
			}
			if value == nil {
				sawUndefined = true
			} else if !distinct[value] {
				distinct[value] = true
				order = append(order, value)
			}
			phi.AddBranch(value, pred)
		}

		switch {
		case sawUndefined:
			p.valueMap.Set(phi, nil)
		case len(order) == 1:
			if order[0] == ir.Instruction(phi) {
				p.valueMap.Set(phi, nil)
			} else {
				p.valueMap.Set(phi, order[0])
			}
		case len(order) == 2 && (order[0] == ir.Instruction(phi) || order[1] == ir.Instruction(phi)):
			var other ir.Instruction
			if order[0] == ir.Instruction(phi) {
				other = order[1]
			} else {
				other = order[0]
			}
			p.valueMap.Set(phi, other)
		default:
			// Keep the phi: it carries genuinely distinct incoming
			// values and must be prepended ahead of the instructions
			// just scanned.
			block.RemoveInst(phi)
			block.Prepend(phi)
		}
	}

	if !p.versionSet[block] {
		p.versionMap[block] = nil
		p.versionSet[block] = true
	}
}

// _phiScanner walks phi's branches, resolving each through value_map
// and recursing into any branch that is itself a phi, detecting
// "poisoned" phis that ultimately depend on an undefined value.
// Returns phi unchanged if every branch resolves cleanly, nil
// otherwise (matching the original's self-referential return value
// trick used as a found/not-found flag).
func (p *mem2regPass) phiScanner(phi *ir.Phi) *ir.Phi {
	if p.scannedPhi[phi] {
		return phi
	}
	p.scannedPhi[phi] = true

	for i := range phi.Branches {
		for {
			next, ok := p.valueMap.Lookup(phi.Branches[i].Value)
			if !ok {
				break
			}
			phi.Branches[i].Value = next
		}
		if phi.Branches[i].Value == nil {
			return nil
		}
	}

	for i := range phi.Branches {
		if inner, ok := phi.Branches[i].Value.(*ir.Phi); ok {
			if p.phiScanner(inner) == nil {
				phi.Branches[i].Value = nil
				return nil
			}
		}
	}

	return phi
}

// resolveEmptyPhi removes every phi that phiScanner proves poisoned,
// function-wide, in two passes (scan-all, then sweep).
func (p *mem2regPass) resolveEmptyPhi(fn *ir.Function) {
	p.scannedPhi = map[*ir.Phi]bool{}
	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			if ph, ok := inst.(*ir.Phi); ok {
				p.phiScanner(ph)
			}
		}
	}

	p.scannedPhi = map[*ir.Phi]bool{}
	for _, b := range fn.Blocks() {
		b.RetainIf(func(inst ir.Instruction) bool {
			ph, ok := inst.(*ir.Phi)
			if !ok {
				return true
			}
			return p.phiScanner(ph) != nil
		})
	}
}

// resolveMultipleReplace is a no-op here: ir.ValueMap.Resolve already
// chases chains lazily on every lookup, where the original needed a
// dedicated collapsing pass before replaceUsage could assume one hop.
func (p *mem2regPass) resolveMultipleReplace() {}

func (p *mem2regPass) replaceUsage(fn *ir.Function) {
	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			inst.Resolve(p.valueMap)
		}
		if b.Condition != nil {
			if next, ok := p.valueMap.Lookup(b.Condition); ok {
				b.Condition = p.valueMap.Resolve(next)
			}
		}
	}
}
