// Package vm lowers the IR straight to an in-memory bytecode and
// interprets it, skipping a textual assembly stage entirely — the
// fast path used by `-r` (run immediately) rather than `-o` (emit
// assembly via internal/x64). Grounded throughout on
// original_source/lib/vm.hpp/vm.cpp.
package vm

// Op is one bytecode operator. Grounded on vm.hpp's InstOperator enum;
// names keep the original's short mnemonics since they appear nowhere
// user-visible (no disassembler is part of this port's scope).
type Op int

const (
	opUnknown Op = iota

	OpArg
	OpBranchIfNonzero // I_BR: branch when the tested register is nonzero
	OpBranchIfZero    // I_BNR: branch when the tested register is zero
	OpGlobal
	OpJump
	OpLoadImm

	OpAdd
	OpAlloc
	OpAnd
	OpCall
	OpDelete
	OpDiv
	OpLoad
	OpMod
	OpMov
	OpMul
	OpNew
	OpNor
	OpOr
	OpPop
	OpPush
	OpRet
	OpSeq
	OpShl
	OpShr
	OpSle
	OpSlt
	OpStore
	OpSub
	OpXor
)

// ValueKind tags whether a load/store touches a signed, unsigned, or
// pointer-shaped value, and at what width — mirroring vm.hpp's
// get_type/type2type/type2shift packing, kept here as two struct
// fields instead of one packed integer since Go has no use for the
// original's bit-packing trick.
type ValueKind int

const (
	KindSigned ValueKind = iota
	KindUnsigned
	KindPointer
)

// Instruction is the bytecode's fixed two-word-equivalent encoding:
// an operator, a result-value kind (for arithmetic overflow/shift and
// load/store width decisions), a destination register, and either an
// immediate or a pair of source registers. Grounded on vm.hpp's
// Instruction struct; Go gets the two-field union for free as two
// plain fields (Imm is unused when Rs/Rt are, and vice versa) since
// there is no sizeof pressure to pack them as the C++ union does.
type Instruction struct {
	Op   Op
	Kind ValueKind
	Size int // byte width for Load/Store (1, 2, 4, or 8)
	Dst  int

	Imm int64
	Rs  int
	Rt  int
}
