package vm

import (
	"fmt"

	"github.com/cyanlang/cyanc/internal/ir"
	"github.com/cyanlang/cyanc/internal/types"
)

// Generate lowers a module straight to a Program, skipping the
// internal/x64 assembly stage entirely. Grounded on
// vm.hpp/vm.cpp's VirtualMachine::Generate; natives lets the host
// register built-in callables (string/print intrinsics) under a name
// the IR can reference as an ir.Global, mirroring
// Generate::registerLibFunction.
func Generate(m *ir.Module, natives map[string]NativeFunction) *Program {
	g := &generator{
		module:      m,
		globalIndex: map[string]int{},
		callables:   map[int]Callable{},
	}

	var stringPool []byte
	for _, s := range m.Strings() {
		g.globalIndex[s.Label] = len(g.slotInit)
		g.slotInit = append(g.slotInit, uint64(len(stringPool)))
		stringPool = append(stringPool, []byte(s.Content)...)
		stringPool = append(stringPool, 0)
	}

	for _, name := range m.Globals() {
		g.globalIndex[name] = len(g.slotInit)
		g.slotInit = append(g.slotInit, 0)
	}

	funcs := map[string]*Function{}
	nativeFns := map[string]NativeFunction{}

	nextCallableID := 1 // 0 is reserved as the null callable
	for _, fn := range m.Functions() {
		id := nextCallableID
		nextCallableID++
		g.globalIndex[fn.Name] = len(g.slotInit)
		g.slotInit = append(g.slotInit, uint64(id))
		vf := &Function{Name: fn.Name}
		funcs[fn.Name] = vf
		g.callables[id] = vf
	}
	for name, nf := range natives {
		id := nextCallableID
		nextCallableID++
		g.globalIndex[name] = len(g.slotInit)
		g.slotInit = append(g.slotInit, uint64(id))
		nativeFns[name] = nf
		g.callables[id] = nativeCallable{nf}
	}

	mem := NewMemory(stringPool, len(g.slotInit))
	for idx, v := range g.slotInit {
		mem.StoreGlobal(idx, Slot(v))
	}

	for _, fn := range m.Functions() {
		g.generateFunc(fn, funcs[fn.Name])
	}

	return &Program{
		Functions:   funcs,
		Natives:     nativeFns,
		Mem:         mem,
		GlobalIndex: g.globalIndex,
		callables:   g.callables,
	}
}

type generator struct {
	module      *ir.Module
	globalIndex map[string]int
	slotInit    []uint64
	callables   map[int]Callable
}

// funcGen carries per-function lowering state, mirroring
// Generate::current_func/block_map/value_map/register_nr.
type funcGen struct {
	g         *generator
	fn        *ir.Function
	out       *Function
	reg       map[ir.Instruction]int
	nextReg   int
	blockRefs []*ir.BasicBlock
}

func (g *generator) generateFunc(fn *ir.Function, out *Function) {
	fg := &funcGen{
		g:       g,
		fn:      fn,
		out:     out,
		reg:     map[ir.Instruction]int{},
		nextReg: 1,
	}

	blocks := fn.Blocks()
	if len(blocks) == 0 {
		out.Insts = append(out.Insts, Instruction{Op: OpRet})
		out.RegisterNr = fg.nextReg
		return
	}

	// First pass: number every non-phi instruction a register, and for
	// each Phi, materialize a Mov at the end of each predecessor block
	// (phi_ref in the original) instead of leaving the phi itself in
	// the stream — the VM has no phi opcode, matching gen(PhiInst*)'s
	// assert(false).
	type pendingMov struct {
		block *ir.BasicBlock
		src   ir.Instruction
		dstReg int
	}
	var movs []pendingMov

	for _, b := range blocks {
		for _, inst := range b.Insts() {
			if phi, ok := inst.(*ir.Phi); ok {
				dst := fg.nextReg
				fg.nextReg++
				fg.reg[phi] = dst
				for _, br := range phi.Branches {
					movs = append(movs, pendingMov{block: br.Preceder, src: br.Value, dstReg: dst})
				}
				continue
			}
			fg.reg[inst] = fg.nextReg
			fg.nextReg++
		}
	}

	movsByBlock := map[*ir.BasicBlock][]pendingMov{}
	for _, mv := range movs {
		movsByBlock[mv.block] = append(movsByBlock[mv.block], mv)
	}

	// Second pass: emit real bytecode per instruction (skipping Phis,
	// already consumed above), then any Movs materialized for this
	// block, then the block's terminator.
	blockStartPatch := map[*ir.BasicBlock]int{}
	for bi, b := range blocks {
		blockStartPatch[b] = len(out.Insts)

		for _, inst := range b.Insts() {
			if _, ok := inst.(*ir.Phi); ok {
				continue
			}
			fg.emit(inst)
		}
		for _, mv := range movsByBlock[b] {
			out.Insts = append(out.Insts, Instruction{
				Op: OpMov, Dst: mv.dstReg, Rs: fg.regOf(mv.src),
			})
		}

		var next *ir.BasicBlock
		if bi+1 < len(blocks) {
			next = blocks[bi+1]
		}

		switch {
		case b.Condition != nil:
			cond := fg.regOf(b.Condition)
			switch {
			case b.Then == next:
				out.Insts = append(out.Insts, Instruction{Op: OpBranchIfZero, Dst: cond, Imm: fg.blockRef(b.Else)})
			case b.Else == next:
				out.Insts = append(out.Insts, Instruction{Op: OpBranchIfNonzero, Dst: cond, Imm: fg.blockRef(b.Then)})
			default:
				out.Insts = append(out.Insts, Instruction{Op: OpBranchIfNonzero, Dst: cond, Imm: fg.blockRef(b.Then)})
				out.Insts = append(out.Insts, Instruction{Op: OpJump, Imm: fg.blockRef(b.Else)})
			}
		case b.Then != nil:
			if b.Then != next {
				out.Insts = append(out.Insts, Instruction{Op: OpJump, Imm: fg.blockRef(b.Then)})
			}
		default:
			out.Insts = append(out.Insts, Instruction{Op: OpRet})
		}
	}

	// Patch block-reference immediates (placeholders built by blockRef)
	// into real bytecode indices now that every block's start offset is
	// known, mirroring the original's final block_map.at() rewrite pass.
	for idx := range out.Insts {
		inst := &out.Insts[idx]
		if inst.Op == OpJump || inst.Op == OpBranchIfNonzero || inst.Op == OpBranchIfZero {
			ref := fg.blockFromRef(inst.Imm)
			inst.Imm = int64(blockStartPatch[ref])
		}
	}

	out.RegisterNr = fg.nextReg
}

// blockRef/blockFromRef stash a *ir.BasicBlock pointer inside an int64
// immediate during the first emission pass, resolved to a real
// instruction index in the patch pass above — the Go equivalent of
// the original's reinterpret_cast<ImmediateT>(bb_ptr).
func (fg *funcGen) blockRef(b *ir.BasicBlock) int64 {
	fg.blockRefs = append(fg.blockRefs, b)
	return -int64(len(fg.blockRefs))
}

func (fg *funcGen) blockFromRef(ref int64) *ir.BasicBlock {
	return fg.blockRefs[-ref-1]
}

func (fg *funcGen) regOf(inst ir.Instruction) int {
	if r, ok := fg.reg[inst]; ok {
		return r
	}
	switch v := inst.(type) {
	case *ir.SignedImm:
		r := fg.nextReg
		fg.nextReg++
		fg.reg[inst] = r
		fg.out.Insts = append(fg.out.Insts, Instruction{Op: OpLoadImm, Kind: KindSigned, Dst: r, Imm: v.Value})
		return r
	case *ir.UnsignedImm:
		r := fg.nextReg
		fg.nextReg++
		fg.reg[inst] = r
		fg.out.Insts = append(fg.out.Insts, Instruction{Op: OpLoadImm, Kind: KindUnsigned, Dst: r, Imm: int64(v.Value)})
		return r
	}
	panic(fmt.Sprintf("vm: register requested for %T before it was scheduled", inst))
}

func valueKindOf(t *types.Type) ValueKind {
	switch {
	case t.IsPointerish():
		return KindPointer
	case t.IsSigned():
		return KindSigned
	default:
		return KindUnsigned
	}
}

func loadStoreWidth(t *types.Type) int {
	if t.IsInteger() {
		return t.BitWidth / 8
	}
	return types.WordSize
}

func (fg *funcGen) emit(inst ir.Instruction) {
	out := fg.out
	dst := fg.reg[inst]

	switch v := inst.(type) {
	case *ir.SignedImm:
		out.Insts = append(out.Insts, Instruction{Op: OpLoadImm, Kind: KindSigned, Dst: dst, Imm: v.Value})
	case *ir.UnsignedImm:
		out.Insts = append(out.Insts, Instruction{Op: OpLoadImm, Kind: KindUnsigned, Dst: dst, Imm: int64(v.Value)})
	case *ir.Global:
		idx, ok := fg.g.globalIndex[v.Symbol]
		if !ok {
			panic("vm: undefined global symbol " + v.Symbol)
		}
		if v.Type().Kind == types.KindFunction {
			tmp := fg.nextReg
			fg.nextReg++
			out.Insts = append(out.Insts, Instruction{Op: OpGlobal, Dst: tmp, Imm: int64(idx)})
			out.Insts = append(out.Insts, Instruction{Op: OpLoad, Kind: KindPointer, Size: types.WordSize, Dst: dst, Rs: tmp})
		} else {
			out.Insts = append(out.Insts, Instruction{Op: OpGlobal, Dst: dst, Imm: int64(idx)})
		}
	case *ir.Arg:
		out.Insts = append(out.Insts, Instruction{Op: OpArg, Dst: dst, Imm: int64(v.Index)})
	case *ir.Binary:
		fg.emitBinary(dst, v)
	case *ir.Load:
		out.Insts = append(out.Insts, Instruction{
			Op: OpLoad, Kind: valueKindOf(v.Type()), Size: loadStoreWidth(v.Type()),
			Dst: dst, Rs: fg.regOf(v.Address),
		})
	case *ir.Store:
		out.Insts = append(out.Insts, Instruction{
			Op: OpStore, Kind: valueKindOf(v.Value.Type()), Size: loadStoreWidth(v.Value.Type()),
			Rs: fg.regOf(v.Address), Rt: fg.regOf(v.Value),
		})
	case *ir.Alloca:
		out.Insts = append(out.Insts, Instruction{Op: OpAlloc, Dst: dst, Rs: fg.regOf(v.Space)})
	case *ir.Call:
		for i := len(v.Args) - 1; i >= 0; i-- {
			out.Insts = append(out.Insts, Instruction{Op: OpPush, Dst: fg.regOf(v.Args[i])})
		}
		out.Insts = append(out.Insts, Instruction{Op: OpCall, Dst: dst, Rs: fg.regOf(v.Callee)})
		if len(v.Args) > 0 {
			out.Insts = append(out.Insts, Instruction{Op: OpPop, Imm: int64(len(v.Args))})
		}
	case *ir.Ret:
		if v.ReturnValue != nil {
			out.Insts = append(out.Insts, Instruction{Op: OpRet, Rs: fg.regOf(v.ReturnValue)})
		} else {
			out.Insts = append(out.Insts, Instruction{Op: OpRet})
		}
	case *ir.New:
		out.Insts = append(out.Insts, Instruction{Op: OpNew, Dst: dst, Rs: fg.regOf(v.Space)})
	case *ir.Delete:
		out.Insts = append(out.Insts, Instruction{Op: OpDelete, Rs: fg.regOf(v.Target)})
	default:
		panic(fmt.Sprintf("vm: unhandled instruction %T", inst))
	}
}

func (fg *funcGen) emitBinary(dst int, v *ir.Binary) {
	left := fg.regOf(v.Left)
	right := fg.regOf(v.Right)
	kind := valueKindOf(v.Type())

	op, ok := binaryOp[v.BOp]
	if !ok {
		panic(fmt.Sprintf("vm: unhandled binary op %s", v.BOp))
	}
	fg.out.Insts = append(fg.out.Insts, Instruction{Op: op, Kind: kind, Dst: dst, Rs: left, Rt: right})
}

var binaryOp = map[ir.BinOp]Op{
	ir.Add: OpAdd, ir.Sub: OpSub, ir.Mul: OpMul, ir.Div: OpDiv, ir.Mod: OpMod,
	ir.And: OpAnd, ir.Or: OpOr, ir.Xor: OpXor, ir.Nor: OpNor,
	ir.Shl: OpShl, ir.Shr: OpShr,
	ir.Seq: OpSeq, ir.Slt: OpSlt, ir.Sle: OpSle,
}
