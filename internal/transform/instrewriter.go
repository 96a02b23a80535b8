package transform

import (
	"strconv"

	"github.com/cyanlang/cyanc/internal/ir"
)

// cseKey identifies a binary expression for common-subexpression
// lookup: operator plus its already-normalized operand pair (Binary's
// constructor keeps commutative operands in a stable order, so "a+b"
// and "b+a" key identically).
type cseKey struct {
	op          ir.BinOp
	left, right ir.Instruction
}

// instRewriterPass holds InstRewriter's working state across one
// function: an immediate-value cache shared by the whole function
// (immediates of equal bit pattern dedupe into the entry block
// regardless of signedness, matching the original's intptr_t-keyed
// imm_map), and a per-block CSE result table consulted up the
// dominator chain.
type instRewriterPass struct {
	fn          *ir.Function
	immMap      map[int64]ir.Instruction
	blockResult map[*ir.BasicBlock]map[cseKey]ir.Instruction
	visited     map[*ir.BasicBlock]bool
	valueMap    *ir.ValueMap

	// pendingEntry and pendingLICM queue cross-block moves discovered
	// while scanning a block, applied only after that block's RetainIf
	// has fully returned. Mutating a block's instruction list while its
	// own RetainIf is still iterating it (e.g. hoisting an instruction
	// out of the very block being scanned) would corrupt that iteration.
	pendingEntry []ir.Instruction
	pendingLICM  []licmMove
}

type licmMove struct {
	inst ir.Instruction
	dst  *ir.BasicBlock
}

// InstRewriter performs constant folding, common-subexpression
// elimination, and loop-invariant code motion in a single
// dominator-ordered walk over fn's blocks. Grounded on the original's
// InstRewriter (inst_rewriter.cpp).
//
// Reports whether any rewrite happened.
func InstRewriter(fn *ir.Function) bool {
	p := &instRewriterPass{
		fn:          fn,
		immMap:      map[int64]ir.Instruction{},
		blockResult: map[*ir.BasicBlock]map[cseKey]ir.Instruction{},
		visited:     map[*ir.BasicBlock]bool{},
		valueMap:    ir.NewValueMap(),
	}
	changed := false
	for _, b := range fn.Blocks() {
		if p.rewriteBlock(b) {
			changed = true
		}
	}
	return changed
}

func (p *instRewriterPass) rewriteBlock(block *ir.BasicBlock) bool {
	if p.visited[block] {
		return false
	}
	changed := false
	if block.Dominator != nil {
		if p.rewriteBlock(block.Dominator) {
			changed = true
		}
	}
	p.visited[block] = true
	p.blockResult[block] = map[cseKey]ir.Instruction{}

	entry := p.fn.Entry()
	p.pendingEntry = nil
	p.pendingLICM = nil

	block.RetainIf(func(inst ir.Instruction) bool {
		switch v := inst.(type) {
		case *ir.SignedImm:
			return p.rewriteImm(v, v.Value, block, entry, &changed)
		case *ir.UnsignedImm:
			return p.rewriteImm(v, int64(v.Value), block, entry, &changed)
		case *ir.Binary:
			return p.rewriteBinary(v, block, &changed)
		default:
			inst.Resolve(p.valueMap)
			return true
		}
	})

	// Apply queued cross-block moves now that block's own RetainIf has
	// settled; each Prepend targets entry (a distinct, already-visited
	// block unless block==entry, in which case block's list is no
	// longer being iterated) in the order the moves were discovered,
	// matching repeated emplace_front calls in the original.
	for _, inst := range p.pendingEntry {
		entry.Prepend(inst)
	}
	for _, mv := range p.pendingLICM {
		mv.dst.Append(mv.inst)
	}

	return changed
}

// rewriteImm interns value into imm_map: the first occurrence becomes
// the canonical instruction (hoisted into the entry block if it
// wasn't created there), later occurrences resolve to it and are
// dropped.
func (p *instRewriterPass) rewriteImm(inst ir.Instruction, value int64, block, entry *ir.BasicBlock, changed *bool) bool {
	if canon, ok := p.immMap[value]; ok {
		p.valueMap.Set(inst, canon)
		*changed = true
		return false
	}
	p.immMap[value] = inst
	if block != entry {
		p.pendingEntry = append(p.pendingEntry, inst)
		*changed = true
		return false
	}
	return true
}

func (p *instRewriterPass) rewriteBinary(binary *ir.Binary, block *ir.BasicBlock, changed *bool) bool {
	binary.Resolve(p.valueMap)

	if isImm(binary.Left) && isImm(binary.Right) {
		result := p.calculateConstant(binary)
		p.valueMap.Set(binary, result)
		*changed = true
		return false
	}

	if calculated := p.findCalculated(block, binary); calculated != nil {
		p.valueMap.Set(binary, calculated)
		*changed = true
		return false
	}

	leftBlock := binary.Left.Block()
	rightBlock := binary.Right.Block()
	if leftBlock.LoopHeader != block.LoopHeader && rightBlock.LoopHeader != block.LoopHeader && block.LoopHeader != nil {
		loopHeader := block.LoopHeader
		for loopHeader.Depth > 1 &&
			leftBlock.LoopHeader != loopHeader.Dominator.LoopHeader &&
			rightBlock.LoopHeader != loopHeader.Dominator.LoopHeader {
			loopHeader = loopHeader.LoopHeader
		}
		dst := loopHeader.Dominator
		p.pendingLICM = append(p.pendingLICM, licmMove{inst: binary, dst: dst})
		p.registerResult(dst, binary)
		*changed = true
		return false
	}

	p.registerResult(block, binary)
	return true
}

func isImm(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.SignedImm, *ir.UnsignedImm:
		return true
	default:
		return false
	}
}

func immBits(inst ir.Instruction) (int64, bool) {
	switch v := inst.(type) {
	case *ir.SignedImm:
		return v.Value, true
	case *ir.UnsignedImm:
		return int64(v.Value), false
	default:
		panic("instrewriter: immBits on non-immediate")
	}
}

// calculateConstant folds a binary op over two immediates, interning
// the result into the entry block's imm_map the same way a
// user-written immediate would be, so a later identical constant
// reuses it. The new immediate is built detached and queued for the
// caller's block to prepend into entry once that block's own RetainIf
// scan has finished (entry may be the very block being scanned).
func (p *instRewriterPass) calculateConstant(binary *ir.Binary) ir.Instruction {
	_, leftSigned := binary.Left.(*ir.SignedImm)
	_, rightSigned := binary.Right.(*ir.SignedImm)
	leftVal, _ := immBits(binary.Left)
	rightVal, _ := immBits(binary.Right)

	unsigned := !leftSigned && !rightSigned
	result := evalBinOp(binary.BOp, leftVal, rightVal)

	if canon, ok := p.immMap[result]; ok {
		return canon
	}
	var imm ir.Instruction
	name := "_" + strconv.Itoa(p.fn.CountLocalTemp())
	if unsigned {
		imm = p.fn.NewDetachedUnsignedImm(binary.Type(), uint64(result), name)
	} else {
		imm = p.fn.NewDetachedSignedImm(binary.Type(), result, name)
	}
	p.pendingEntry = append(p.pendingEntry, imm)
	p.immMap[result] = imm
	return imm
}

func evalBinOp(op ir.BinOp, left, right int64) int64 {
	switch op {
	case ir.Add:
		return left + right
	case ir.Sub:
		return left - right
	case ir.Mul:
		return left * right
	case ir.Div:
		return left / right
	case ir.Mod:
		return left % right
	case ir.Shl:
		return left << uint(right)
	case ir.Shr:
		return int64(uint64(left) >> uint(right))
	case ir.Or:
		return left | right
	case ir.And:
		return left & right
	case ir.Nor:
		return ^(left | right)
	case ir.Xor:
		return left ^ right
	case ir.Seq:
		return boolToInt(left == right)
	case ir.Slt:
		return boolToInt(left < right)
	case ir.Sle:
		return boolToInt(left <= right)
	default:
		panic("instrewriter: unhandled BinOp in constant fold")
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// findCalculated walks block's dominator chain looking for an
// already-computed result of the same (op, left, right), caching the
// find into every intermediate block it passed through (so a future
// lookup in a sibling dominated by the same ancestor is O(1)).
func (p *instRewriterPass) findCalculated(block *ir.BasicBlock, binary *ir.Binary) ir.Instruction {
	key := cseKey{op: binary.BOp, left: binary.Left, right: binary.Right}
	original := block
	var found ir.Instruction
	cur := block
	for cur != nil {
		if v, ok := p.blockResult[cur][key]; ok {
			found = v
			break
		}
		cur = cur.Dominator
	}
	if found == nil {
		return nil
	}
	for b := original; b != cur; b = b.Dominator {
		p.blockResult[b][key] = found
	}
	return found
}

func (p *instRewriterPass) registerResult(block *ir.BasicBlock, binary *ir.Binary) {
	key := cseKey{op: binary.BOp, left: binary.Left, right: binary.Right}
	p.blockResult[block][key] = binary
}
