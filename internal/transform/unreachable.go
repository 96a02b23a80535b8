package transform

import "github.com/cyanlang/cyanc/internal/ir"

// unreachablePass holds the two maps the original keeps across its
// four sub-phases: blockMap redirects a merged-away block to the
// predecessor that absorbed it, valueMap collapses phis that became
// trivial once a predecessor edge disappeared.
type unreachablePass struct {
	blockMap map[*ir.BasicBlock]*ir.BasicBlock
	valueMap *ir.ValueMap
}

// UnreachableCodeEliminater folds a branch whose condition resolved to
// a constant into an unconditional jump, merges a block into its sole
// predecessor when that predecessor falls straight through to it, and
// drops every block left with no predecessors (except the entry
// block, which always survives). Grounded on the original's
// UnreachableCodeEliminater (unreachable_code_eliminater.cpp).
//
// Reports whether fn's shape changed.
func UnreachableCodeEliminater(fn *ir.Function) bool {
	p := &unreachablePass{
		blockMap: map[*ir.BasicBlock]*ir.BasicBlock{},
		valueMap: ir.NewValueMap(),
	}
	changed := p.markUnreachableBlocks(fn)
	if p.combineSplitBlocks(fn) {
		changed = true
	}
	p.resolvePhiPreceders(fn)
	if p.clearUnreachableBlocks(fn) {
		changed = true
	}
	return changed
}

// markUnreachableBlocks resolves every block's condition through
// valueMap and, where it lands on an immediate, collapses the branch:
// the untaken side's predecessor edge is torn out (cascading into its
// own successors if that leaves it with no predecessors left at all).
func (p *unreachablePass) markUnreachableBlocks(fn *ir.Function) bool {
	changed := false
	for _, block := range fn.Blocks() {
		if block.Condition == nil {
			continue
		}
		block.Condition = p.valueMap.Resolve(block.Condition)
		truthy, ok := constTruth(block.Condition)
		if !ok {
			continue
		}
		if truthy {
			p.unregisterPhi(block.Else, block)
		} else {
			p.unregisterPhi(block.Then, block)
			block.Then = block.Else
		}
		block.Else = nil
		block.Condition = nil
		changed = true
	}
	return changed
}

func constTruth(inst ir.Instruction) (value bool, ok bool) {
	switch v := inst.(type) {
	case *ir.SignedImm:
		return v.Value != 0, true
	case *ir.UnsignedImm:
		return v.Value != 0, true
	default:
		return false, false
	}
}

// unregisterPhiInBlock tears preceder out of block's predecessor set
// and every phi branch naming it, collapsing any phi left with exactly
// one incoming branch.
func (p *unreachablePass) unregisterPhiInBlock(block, preceder *ir.BasicBlock) {
	block.RemovePred(preceder)
	for _, inst := range block.Insts() {
		phi, ok := inst.(*ir.Phi)
		if !ok {
			continue
		}
		phi.RemoveBranch(preceder)
		if len(phi.Branches) == 1 {
			p.valueMap.Set(phi, phi.Branches[0].Value)
		}
	}
}

// unregisterPhi tears preceder out of block, and if that leaves block
// with no predecessors at all, cascades into block's own successors
// (block itself is now unreachable, so it is no longer a real
// predecessor of anything it points to).
func (p *unreachablePass) unregisterPhi(block, preceder *ir.BasicBlock) {
	p.unregisterPhiInBlock(block, preceder)
	if len(block.Preds) == 0 {
		if block.Then != nil {
			p.unregisterPhi(block.Then, block)
		}
		if block.Else != nil {
			p.unregisterPhi(block.Else, block)
		}
	}
}

// combineSplitBlocks merges a block into its sole predecessor when
// that predecessor ends in a plain jump (no condition) to it: the
// predecessor absorbs the block's instructions and terminator, and the
// block is recorded in blockMap so later phi-preceder and value
// lookups chase through to the survivor.
func (p *unreachablePass) combineSplitBlocks(fn *ir.Function) bool {
	changed := false
	for _, block := range fn.Blocks() {
		if len(block.Preds) != 1 {
			continue
		}
		var preceder *ir.BasicBlock
		for pr := range block.Preds {
			preceder = pr
		}
		original := preceder
		for p.blockMap[preceder] != nil {
			preceder = p.blockMap[preceder]
		}
		if preceder.Condition != nil || preceder == block {
			continue
		}

		p.unregisterPhiInBlock(block, original)
		preceder.Absorb(block)
		p.blockMap[block] = preceder
		changed = true
	}

	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			inst.Resolve(p.valueMap)
		}
		if b.Condition != nil {
			b.Condition = p.valueMap.Resolve(b.Condition)
		}
	}
	return changed
}

// resolvePhiPreceders rewrites every phi branch's preceder through
// blockMap, so a branch that used to arrive from a now-absorbed block
// is attributed to the survivor that actually owns the edge.
func (p *unreachablePass) resolvePhiPreceders(fn *ir.Function) {
	for _, block := range fn.Blocks() {
		for _, inst := range block.Insts() {
			phi, ok := inst.(*ir.Phi)
			if !ok {
				continue
			}
			for i := range phi.Branches {
				for p.blockMap[phi.Branches[i].Preceder] != nil {
					phi.Branches[i].Preceder = p.blockMap[phi.Branches[i].Preceder]
				}
			}
		}
	}
}

// clearUnreachableBlocks drops every block with no predecessors, save
// the entry block (which has none by construction and is always
// live).
func (p *unreachablePass) clearUnreachableBlocks(fn *ir.Function) bool {
	entry := fn.Entry()
	changed := false
	for _, block := range append([]*ir.BasicBlock(nil), fn.Blocks()...) {
		if block == entry {
			continue
		}
		if len(block.Preds) == 0 {
			fn.RemoveBlock(block)
			changed = true
		}
	}
	return changed
}
