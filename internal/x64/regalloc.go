package x64

import "github.com/cyanlang/cyanc/internal/types"

// memoryOpCost is the base swap-out cost charged when a value must be
// spilled to a stack slot; loop residency inflates it exponentially so
// a value alive across many loop iterations strongly resists eviction.
// Grounded on CodeGenX64::MEMORY_OPERATION_COST (codegen_x64.hpp) and
// the swap-out-cost formula in spec.md §4.9.
const memoryOpCost = 10

// liveRange is the inclusive [first, last] instruction-index interval
// during which a virtual value is needed, in the linearized
// (block-concatenated) instruction list.
type liveRange struct {
	first, last int
	cost        int64 // memoryOpCost << (4*loopDepth), the spill weight
	pinned      bool  // true for a virtual used through Indirect at least once: never a spill candidate
}

// Allocate runs linear-scan register allocation over fn's pseudo-x64
// blocks in place: every unallocated Operand sharing a Virtual id is
// assigned the same Register (or, once registers run out, the same
// StackSlot), CallPreserve/CallRestore markers are filled in with the
// caller-saved registers actually live across each call, and
// fn.FrameSize/fn.UsedCallee are set for the emitter's prologue.
//
// Grounded on CodeGenX64::allocateRegisters and its helpers
// (registerValueLiveRange, allocateFor, requestRegister, freeAll) in
// codegen_x64.cpp.
func Allocate(fn *Func, localBytes int) {
	linear, depthAt, index := linearize(fn)
	ranges := computeLiveRanges(linear, depthAt)

	a := &allocator{
		ranges:      ranges,
		assignedReg: map[int]Register{},
		assignedSt:  map[int]int{},
		regFree:     map[Register]bool{},
		nextSlot:    -localBytes - types.WordSize,
	}
	for _, r := range GPRegisters {
		a.regFree[r] = true
	}

	var preserved []Register
	for i, inst := range linear {
		live := liveSetAt(ranges, i)
		if cp, ok := inst.(*CallPreserve); ok {
			cp.Live = a.callerSavedLive(live)
			preserved = cp.Live
		}
		if cr, ok := inst.(*CallRestore); ok {
			cr.Live = preserved
		}
		for _, op := range inst.Operands() {
			if op == nil || op.Allocated || (op.Kind != OperandReg && op.Kind != OperandIndirect) {
				continue
			}
			a.place(op)
		}
		a.releaseDeadAt(i)
	}
	_ = index

	fn.FrameSize = -a.nextSlot
	fn.UsedCallee = a.usedCallee()
}

type allocator struct {
	ranges      map[int]*liveRange
	assignedReg map[int]Register
	assignedSt  map[int]int
	regFree     map[Register]bool
	nextSlot    int
	used        map[Register]bool
}

func (a *allocator) usedCallee() []Register {
	out := []Register{}
	for r, ok := range a.used {
		if ok && !CallerSaved(r) {
			out = append(out, r)
		}
	}
	return out
}

// place assigns op's virtual id a concrete location, reusing a prior
// assignment if this virtual has already been placed (a later use in
// the same live range asking for its register back, per spec.md
// §4.9 "if already placed, request the register back").
func (a *allocator) place(op *Operand) {
	if r, ok := a.assignedReg[op.Virtual]; ok {
		op.Reg = r
		op.Allocated = true
		return
	}
	if slot, ok := a.assignedSt[op.Virtual]; ok {
		op.Kind = OperandStack
		op.StackSlot = slot
		op.Allocated = true
		return
	}

	for _, r := range GPRegisters {
		if a.regFree[r] {
			a.bind(op, r)
			return
		}
	}

	victim := a.cheapestResident()
	if victim != 0 {
		a.spill(victim)
	}
	for _, r := range GPRegisters {
		if a.regFree[r] {
			a.bind(op, r)
			return
		}
	}
	// Every register spilled and still none free: give op a stack slot
	// directly (happens only with more live virtuals than GP
	// registers at once, a degenerate case this port accepts rather
	// than iterating further).
	a.assignSlot(op)
}

func (a *allocator) bind(op *Operand, r Register) {
	a.assignedReg[op.Virtual] = r
	a.regFree[r] = false
	if a.used == nil {
		a.used = map[Register]bool{}
	}
	a.used[r] = true
	op.Reg = r
	op.Allocated = true
}

func (a *allocator) assignSlot(op *Operand) {
	slot := a.nextSlot
	a.nextSlot -= types.WordSize
	a.assignedSt[op.Virtual] = slot
	op.Kind = OperandStack
	op.StackSlot = slot
	op.Allocated = true
}

// cheapestResident returns the virtual id currently holding a register
// with the lowest swap-out cost, skipping pinned (Indirect-used)
// virtuals; 0 if nothing is currently resident in a register (meaning
// every GP register is either free or this call raced ahead of
// bookkeeping — place already checked for a free one first).
func (a *allocator) cheapestResident() int {
	best := 0
	var bestCost int64 = -1
	for v, r := range a.assignedReg {
		if a.regFree[r] {
			continue
		}
		rg := a.ranges[v]
		if rg != nil && rg.pinned {
			continue
		}
		cost := int64(0)
		if rg != nil {
			cost = rg.cost
		}
		if bestCost == -1 || cost < bestCost {
			bestCost = cost
			best = v
		}
	}
	return best
}

func (a *allocator) spill(virtual int) {
	r := a.assignedReg[virtual]
	delete(a.assignedReg, virtual)
	a.regFree[r] = true
	slot := a.nextSlot
	a.nextSlot -= types.WordSize
	a.assignedSt[virtual] = slot
}

// releaseDeadAt frees any register whose owning virtual's live range
// ended at or before instruction index i, making it available for
// later allocation requests.
func (a *allocator) releaseDeadAt(i int) {
	for v, r := range a.assignedReg {
		rg := a.ranges[v]
		if rg != nil && rg.last <= i {
			a.regFree[r] = true
		}
	}
}

// callerSavedLive returns, in a fixed order, which caller-saved
// registers are currently bound to a live virtual — the set
// CallPreserve must push and CallRestore must pop around this call.
func (a *allocator) callerSavedLive(liveVirtuals map[int]bool) []Register {
	var out []Register
	for _, r := range GPRegisters {
		if !CallerSaved(r) {
			continue
		}
		for v, rr := range a.assignedReg {
			if rr == r && liveVirtuals[v] {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// linearize concatenates fn's blocks into one instruction-index-numbered
// stream, recording each instruction's source block's loop depth
// alongside it so computeLiveRanges can weight spill cost by how deep
// in loop nesting a value is defined.
func linearize(fn *Func) (linear []Instruction, depthAt []int, index map[Instruction]int) {
	index = map[Instruction]int{}
	for _, b := range fn.Blocks {
		depth := 0
		if b.IR != nil {
			depth = b.IR.Depth
		}
		for _, inst := range b.Insts {
			index[inst] = len(linear)
			linear = append(linear, inst)
			depthAt = append(depthAt, depth)
		}
	}
	return linear, depthAt, index
}

func computeLiveRanges(linear []Instruction, depthAt []int) map[int]*liveRange {
	ranges := map[int]*liveRange{}
	for i, inst := range linear {
		for _, op := range inst.Operands() {
			if op == nil || op.Allocated || (op.Kind != OperandReg && op.Kind != OperandIndirect) {
				continue
			}
			rg, ok := ranges[op.Virtual]
			if !ok {
				rg = &liveRange{first: i, last: i, cost: int64(memoryOpCost) << uint(4*depthAt[i])}
				ranges[op.Virtual] = rg
			}
			if i < rg.first {
				rg.first = i
				rg.cost = int64(memoryOpCost) << uint(4*depthAt[i])
			}
			if i > rg.last {
				rg.last = i
			}
			if op.Kind == OperandIndirect {
				rg.pinned = true
			}
		}
	}
	return ranges
}

func liveSetAt(ranges map[int]*liveRange, i int) map[int]bool {
	out := map[int]bool{}
	for v, rg := range ranges {
		if rg.first <= i && i <= rg.last {
			out[v] = true
		}
	}
	return out
}
