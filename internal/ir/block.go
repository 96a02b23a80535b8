package ir

// BasicBlock is an ordered list of instructions ending in one of three
// control-flow shapes (spec.md §3, Control-flow convention):
//
//   - Condition != nil: a conditional branch, both Then and Else set.
//   - Condition == nil, Then != nil: an unconditional jump to Then.
//   - Condition == nil, Then == nil: function exit; the block's last
//     instruction must be a Ret.
//
// Dominator, LoopHeader and Depth are filled in by internal/analysis
// and consumed read-only by transforms and codegen.
type BasicBlock struct {
	Name     string
	function *Function

	insts []Instruction

	Condition Instruction
	Then      *BasicBlock
	Else      *BasicBlock

	Preds map[*BasicBlock]bool

	Dominator  *BasicBlock
	LoopHeader *BasicBlock
	Depth      int
}

// Function returns the owning function.
func (b *BasicBlock) Function() *Function { return b.function }

// Insts returns the block's instructions in order. Callers must not
// retain the slice across a mutation (Append/Remove/Splice).
func (b *BasicBlock) Insts() []Instruction { return b.insts }

// Len reports the number of instructions.
func (b *BasicBlock) Len() int { return len(b.insts) }

// Append adds inst to the end of the block and sets its owner.
func (b *BasicBlock) Append(inst Instruction) {
	inst.setBlock(b)
	b.insts = append(b.insts, inst)
}

// Prepend adds inst to the front of the block (used to hoist interned
// immediates into the entry block, and to plant phis ahead of the rest
// of a join block's instructions).
func (b *BasicBlock) Prepend(inst Instruction) {
	inst.setBlock(b)
	b.insts = append([]Instruction{inst}, b.insts...)
}

// Remove deletes the instruction at position idx.
func (b *BasicBlock) Remove(idx int) {
	b.insts = append(b.insts[:idx], b.insts[idx+1:]...)
}

// RemoveInst deletes the first occurrence of inst, if present.
func (b *BasicBlock) RemoveInst(inst Instruction) {
	for idx, cur := range b.insts {
		if cur == inst {
			b.Remove(idx)
			return
		}
	}
}

// IndexOf returns the position of inst in the block, or -1.
func (b *BasicBlock) IndexOf(inst Instruction) int {
	for idx, cur := range b.insts {
		if cur == inst {
			return idx
		}
	}
	return -1
}

// RetainIf keeps only instructions for which keep returns true,
// preserving order. Used by DeadCodeEliminater's sweep.
func (b *BasicBlock) RetainIf(keep func(Instruction) bool) {
	out := b.insts[:0]
	for _, inst := range b.insts {
		if keep(inst) {
			out = append(out, inst)
		}
	}
	b.insts = out
}

// SetJump makes the block end in an unconditional jump to target.
// Clears any existing condition/Else.
func (b *BasicBlock) SetJump(target *BasicBlock) {
	b.Condition = nil
	b.Then = target
	b.Else = nil
}

// SetBranch makes the block end in a conditional branch.
func (b *BasicBlock) SetBranch(cond Instruction, then, els *BasicBlock) {
	b.Condition = cond
	b.Then = then
	b.Else = els
}

// SetExit clears successors, marking the block a function exit; its
// last instruction must be a Ret (the builder's responsibility).
func (b *BasicBlock) SetExit() {
	b.Condition = nil
	b.Then = nil
	b.Else = nil
}

// IsExit reports whether the block has no successors.
func (b *BasicBlock) IsExit() bool {
	return b.Condition == nil && b.Then == nil
}

// Successors returns the block's successor blocks (0, 1, or 2 of
// them), in Then-then-Else order.
func (b *BasicBlock) Successors() []*BasicBlock {
	switch {
	case b.Condition != nil:
		return []*BasicBlock{b.Then, b.Else}
	case b.Then != nil:
		return []*BasicBlock{b.Then}
	default:
		return nil
	}
}

// addPred/removePred maintain the predecessor set; analysis.Dominators
// populates this from scratch, and UnreachableCodeEliminater updates it
// incrementally as it folds edges away.
func (b *BasicBlock) addPred(p *BasicBlock) {
	if b.Preds == nil {
		b.Preds = map[*BasicBlock]bool{}
	}
	b.Preds[p] = true
}

func (b *BasicBlock) removePred(p *BasicBlock) {
	delete(b.Preds, p)
}

// AddPred and RemovePred are the exported forms used by
// internal/analysis (building the predecessor set from scratch) and
// internal/transform (incremental edge removal), packages that cannot
// reach BasicBlock's unexported fields directly.
func (b *BasicBlock) AddPred(p *BasicBlock)    { b.addPred(p) }
func (b *BasicBlock) RemovePred(p *BasicBlock) { b.removePred(p) }

// Absorb merges other into b in place: b keeps its own instructions
// followed by other's, then takes over other's terminator
// (Condition/Then/Else). Used by UnreachableCodeEliminater to collapse
// a block into its sole predecessor once that predecessor falls
// straight through to it (the predecessor's own terminator, a plain
// jump to other, is about to be discarded).
func (b *BasicBlock) Absorb(other *BasicBlock) {
	for _, inst := range other.insts {
		b.Append(inst)
	}
	b.Condition = other.Condition
	b.Then = other.Then
	b.Else = other.Else
}

// SplitAfter carves off everything after inst into a freshly appended
// sibling block, which inherits b's terminator; b is left holding inst
// as its last instruction and no terminator of its own (the caller sets
// one once it knows what should follow). Used by Inliner to make room
// for a callee's cloned body between a call site and what used to
// follow it.
func (b *BasicBlock) SplitAfter(inst Instruction, name string) *BasicBlock {
	idx := b.IndexOf(inst)
	tail := append([]Instruction(nil), b.insts[idx+1:]...)
	b.insts = b.insts[:idx+1]

	newBB := b.function.AddBlock(name)
	for _, in := range tail {
		newBB.Append(in)
	}
	newBB.Condition = b.Condition
	newBB.Then = b.Then
	newBB.Else = b.Else
	b.Condition = nil
	b.Then = nil
	b.Else = nil

	return newBB
}

// Dominates reports whether b dominates other by walking the
// dominator-parent chain, the exact test used by LoopMarker
// ("isDominating") and CSE's lookup-in-dominator-chain.
func (b *BasicBlock) Dominates(other *BasicBlock) bool {
	for cur := other; cur != nil; cur = cur.Dominator {
		if cur == b {
			return true
		}
	}
	return false
}
