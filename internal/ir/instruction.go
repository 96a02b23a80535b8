// Package ir implements the cyan compiler's three-address SSA
// intermediate representation: typed instructions, basic blocks,
// functions, and the module that owns them, together with the builder
// surface (§6.1) that a front-end uses to construct one.
package ir

import (
	"fmt"

	"github.com/cyanlang/cyanc/internal/types"
)

// Op tags the instruction variant, standing in for the C++ class
// hierarchy's dynamic-cast-based dispatch (DESIGN NOTES §9: "Implement
// as tagged sums with an accompanying enum").
type Op int

const (
	OpSignedImm Op = iota
	OpUnsignedImm
	OpGlobal
	OpArg
	OpBinary
	OpLoad
	OpStore
	OpAlloca
	OpCall
	OpRet
	OpNew
	OpDelete
	OpPhi
)

// BinOp is the operator carried by a Binary instruction. Names follow
// the original's instruction classes: Seq/Slt/Sle are the only
// comparisons (set-if-equal / set-if-less-than / set-if-less-or-equal);
// Ne/Gt/Ge are expressed by the IR builder as a swapped or negated form
// of these three.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	Shl
	Shr
	Or
	And
	Nor
	Xor
	Seq
	Slt
	Sle
)

func (o BinOp) String() string {
	switch o {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Mod:
		return "mod"
	case Shl:
		return "shl"
	case Shr:
		return "shr"
	case Or:
		return "or"
	case And:
		return "and"
	case Nor:
		return "nor"
	case Xor:
		return "xor"
	case Seq:
		return "seq"
	case Slt:
		return "slt"
	case Sle:
		return "sle"
	default:
		return "?"
	}
}

// Commutative reports whether NewBinary normalizes (left, right) by a
// stable ordering (Clone copies operands as they are), matching the
// original's defineBinaryInstSwappable set. CSE relies on this to put
// operands in a canonical order.
func (o BinOp) Commutative() bool {
	switch o {
	case Add, Mul, Or, And, Nor, Xor, Seq:
		return true
	default:
		return false
	}
}

// IsCompare reports whether the operator produces a boolean-ish result
// meant to feed a branch condition or a byte-sized set register.
func (o BinOp) IsCompare() bool {
	switch o {
	case Seq, Slt, Sle:
		return true
	default:
		return false
	}
}

// Instruction is one IR value: a tagged-sum node carrying its own type,
// owner block, optional name, and a reference count that
// DeadCodeEliminater recomputes from scratch. Back-references to other
// instructions (operands) are plain Go pointers with no ownership — see
// spec.md §5.
type Instruction interface {
	ID() int
	Op() Op
	Type() *types.Type
	Name() string
	SetName(name string)
	Block() *BasicBlock
	setBlock(b *BasicBlock)

	RefCount() int
	Reference()
	Unreference()
	ClearReferences()

	// IsCodeGenRoot marks instructions DeadCodeEliminater treats as
	// always-live roots: Call, Ret, Store, Delete (§4.6).
	IsCodeGenRoot() bool

	// Operands returns the instruction's operand instructions in a
	// stable order, for generic walkers (DCE, inlining, printing).
	Operands() []Instruction

	// UsedInstruction reports whether inst appears among the receiver's
	// operands.
	UsedInstruction(inst Instruction) bool

	// Resolve rewrites every operand found in vm to its mapped value,
	// the "resolve step" each instruction applies during a value_map
	// replacement pass (spec.md §3, Lifecycle).
	Resolve(vm *ValueMap)

	// ReplaceUsage swaps a single operand occurrence, used by splice
	// and clone bookkeeping that don't want a full map allocation.
	ReplaceUsage(old, new Instruction)

	// Clone duplicates the instruction into block with its operands
	// copied unchanged and records old->new in vm (mirrors the
	// original's clone(block, value_map, name)); callers remap the
	// clone's operands through vm afterwards.
	Clone(block *BasicBlock, vm *ValueMap, name string) Instruction

	String() string
}

// base is embedded by every concrete instruction and implements the
// bookkeeping common to all of them.
type base struct {
	id    int
	typ   *types.Type
	name  string
	block *BasicBlock
	refs  int
}

func (b *base) ID() int               { return b.id }
func (b *base) Type() *types.Type     { return b.typ }
func (b *base) Name() string          { return b.name }
func (b *base) SetName(name string)   { b.name = name }
func (b *base) Block() *BasicBlock    { return b.block }
func (b *base) setBlock(bb *BasicBlock) { b.block = bb }
func (b *base) RefCount() int         { return b.refs }
func (b *base) Reference()            { b.refs++ }
func (b *base) Unreference()          { b.refs-- }
func (b *base) ClearReferences()      { b.refs = 0 }

// ValueMap is the old->new instruction substitution used pervasively by
// transforms: Mem2Reg records replaced loads/allocas, InstRewriter
// records CSE'd/folded duplicates, PhiEliminator/UnreachableCodeEliminater
// record trivial-phi collapses. Resolve follows chains so a value
// replaced more than once still lands on the final value.
type ValueMap struct {
	m map[Instruction]Instruction
}

// NewValueMap returns an empty ValueMap.
func NewValueMap() *ValueMap {
	return &ValueMap{m: make(map[Instruction]Instruction)}
}

// Set records old -> new.
func (vm *ValueMap) Set(old, new Instruction) {
	vm.m[old] = new
}

// Lookup returns the immediate (non-chased) mapping, if any.
func (vm *ValueMap) Lookup(old Instruction) (Instruction, bool) {
	v, ok := vm.m[old]
	return v, ok
}

// Resolve follows the chain old -> m[old] -> m[m[old]] ... until a
// fixed point (which may be nil, meaning "the instruction was deleted
// with nothing to take its place"). Safe to call on an instruction with
// no mapping, returning it unchanged.
func (vm *ValueMap) Resolve(v Instruction) Instruction {
	seen := map[Instruction]bool{}
	for v != nil {
		next, ok := vm.m[v]
		if !ok {
			return v
		}
		if seen[v] {
			return v // defensive: a cycle should not occur post phi-pruning
		}
		seen[v] = true
		v = next
	}
	return nil
}

// Len reports the number of recorded substitutions.
func (vm *ValueMap) Len() int { return len(vm.m) }

// resolveField is a helper concrete instructions use inside Resolve: it
// only rewrites a field when the map actually has an entry for the
// current value, matching the original's
// `if (value_map.find(x) != value_map.end()) x = value_map.at(x);`
// (a no-op, not a deletion, when x isn't present).
func resolveField(vm *ValueMap, cur Instruction) Instruction {
	if next, ok := vm.Lookup(cur); ok {
		return vm.Resolve(next)
	}
	return cur
}

// ---- Immediates (SignedImm, UnsignedImm, Global, Arg) ----

// SignedImm is a signed integer literal.
type SignedImm struct {
	base
	Value int64
}

func (i *SignedImm) Op() Op                     { return OpSignedImm }
func (i *SignedImm) IsCodeGenRoot() bool        { return false }
func (i *SignedImm) Operands() []Instruction    { return nil }
func (i *SignedImm) UsedInstruction(Instruction) bool { return false }
func (i *SignedImm) Resolve(*ValueMap)          {}
func (i *SignedImm) ReplaceUsage(Instruction, Instruction) {}
func (i *SignedImm) String() string {
	return fmt.Sprintf("%s = simm %s %d", nameOf(i), i.typ, i.Value)
}
func (i *SignedImm) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newSignedImm(i.typ, i.Value, block, name)
	vm.Set(i, ret)
	return ret
}

// UnsignedImm is an unsigned integer literal.
type UnsignedImm struct {
	base
	Value uint64
}

func (i *UnsignedImm) Op() Op                  { return OpUnsignedImm }
func (i *UnsignedImm) IsCodeGenRoot() bool     { return false }
func (i *UnsignedImm) Operands() []Instruction { return nil }
func (i *UnsignedImm) UsedInstruction(Instruction) bool { return false }
func (i *UnsignedImm) Resolve(*ValueMap)       {}
func (i *UnsignedImm) ReplaceUsage(Instruction, Instruction) {}
func (i *UnsignedImm) String() string {
	return fmt.Sprintf("%s = uimm %s %d", nameOf(i), i.typ, i.Value)
}
func (i *UnsignedImm) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newUnsignedImm(i.typ, i.Value, block, name)
	vm.Set(i, ret)
	return ret
}

// Global is a reference to a module-level symbol (a global variable or
// a function) by name. Pointer-typed.
type Global struct {
	base
	Symbol string
}

func (i *Global) Op() Op                  { return OpGlobal }
func (i *Global) IsCodeGenRoot() bool     { return false }
func (i *Global) Operands() []Instruction { return nil }
func (i *Global) UsedInstruction(Instruction) bool { return false }
func (i *Global) Resolve(*ValueMap)       {}
func (i *Global) ReplaceUsage(Instruction, Instruction) {}
func (i *Global) String() string {
	return fmt.Sprintf("%s = global %s %s", nameOf(i), i.typ, i.Symbol)
}
func (i *Global) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newGlobal(i.typ, i.Symbol, block, name)
	vm.Set(i, ret)
	return ret
}

// Arg is a reference to the function's index-th formal parameter.
type Arg struct {
	base
	Index int
}

func (i *Arg) Op() Op                  { return OpArg }
func (i *Arg) IsCodeGenRoot() bool     { return false }
func (i *Arg) Operands() []Instruction { return nil }
func (i *Arg) UsedInstruction(Instruction) bool { return false }
func (i *Arg) Resolve(*ValueMap)       {}
func (i *Arg) ReplaceUsage(Instruction, Instruction) {}
func (i *Arg) String() string {
	return fmt.Sprintf("%s = arg %s %d", nameOf(i), i.typ, i.Index)
}
func (i *Arg) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newArg(i.typ, i.Index, block, name)
	vm.Set(i, ret)
	return ret
}

// ---- Binary ----

// Binary is a two-operand arithmetic/logic/comparison instruction.
// Commutative operators keep (Left, Right) normalized by instruction ID
// (higher ID on the left) at construction time (see NewBinary), matching
// "Commutativity normalization" in DESIGN NOTES §9.
type Binary struct {
	base
	BOp         BinOp
	Left, Right Instruction
}

func (i *Binary) Op() Op               { return OpBinary }
func (i *Binary) IsCodeGenRoot() bool   { return false }
func (i *Binary) Operands() []Instruction { return []Instruction{i.Left, i.Right} }
func (i *Binary) UsedInstruction(inst Instruction) bool {
	return i.Left == inst || i.Right == inst
}
func (i *Binary) Resolve(vm *ValueMap) {
	i.Left = resolveField(vm, i.Left)
	i.Right = resolveField(vm, i.Right)
}
func (i *Binary) ReplaceUsage(old, new Instruction) {
	if i.Left == old {
		i.Left = new
	}
	if i.Right == old {
		i.Right = new
	}
}
func (i *Binary) String() string {
	return fmt.Sprintf("%s = %s %s %s, %s", nameOf(i), i.BOp, i.typ, refName(i.Left), refName(i.Right))
}
func (i *Binary) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newBinaryRaw(i.typ, i.BOp, i.Left, i.Right, block, name)
	vm.Set(i, ret)
	return ret
}

// ---- Memory: Load / Store / Alloca ----

// Load reads the value stored at Address.
type Load struct {
	base
	Address Instruction
}

func (i *Load) Op() Op                  { return OpLoad }
func (i *Load) IsCodeGenRoot() bool     { return false }
func (i *Load) Operands() []Instruction { return []Instruction{i.Address} }
func (i *Load) UsedInstruction(inst Instruction) bool { return i.Address == inst }
func (i *Load) Resolve(vm *ValueMap)    { i.Address = resolveField(vm, i.Address) }
func (i *Load) ReplaceUsage(old, new Instruction) {
	if i.Address == old {
		i.Address = new
	}
}
func (i *Load) String() string {
	return fmt.Sprintf("%s = load %s %s", nameOf(i), i.typ, refName(i.Address))
}
func (i *Load) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newLoad(i.typ, i.Address, block, name)
	vm.Set(i, ret)
	return ret
}

// Store writes Value to Address. Always a DCE root.
type Store struct {
	base
	Address, Value Instruction
}

func (i *Store) Op() Op                  { return OpStore }
func (i *Store) IsCodeGenRoot() bool     { return true }
func (i *Store) Operands() []Instruction { return []Instruction{i.Address, i.Value} }
func (i *Store) UsedInstruction(inst Instruction) bool {
	return i.Address == inst || i.Value == inst
}
func (i *Store) Resolve(vm *ValueMap) {
	i.Address = resolveField(vm, i.Address)
	i.Value = resolveField(vm, i.Value)
}
func (i *Store) ReplaceUsage(old, new Instruction) {
	if i.Address == old {
		i.Address = new
	}
	if i.Value == old {
		i.Value = new
	}
}
func (i *Store) String() string {
	return fmt.Sprintf("store %s %s, %s", i.typ, refName(i.Value), refName(i.Address))
}
func (i *Store) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	ret := block.function.newStore(i.typ, i.Address, i.Value, block)
	vm.Set(i, ret)
	return ret
}

// Alloca reserves Space machine words of stack storage, yielding a
// pointer to the start of the reservation.
type Alloca struct {
	base
	Space Instruction
}

func (i *Alloca) Op() Op                  { return OpAlloca }
func (i *Alloca) IsCodeGenRoot() bool     { return false }
func (i *Alloca) Operands() []Instruction { return []Instruction{i.Space} }
func (i *Alloca) UsedInstruction(inst Instruction) bool { return i.Space == inst }
func (i *Alloca) Resolve(vm *ValueMap)    { i.Space = resolveField(vm, i.Space) }
func (i *Alloca) ReplaceUsage(old, new Instruction) {
	if i.Space == old {
		i.Space = new
	}
}
func (i *Alloca) String() string {
	return fmt.Sprintf("%s = alloca %s %s", nameOf(i), i.typ, refName(i.Space))
}
func (i *Alloca) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newAlloca(i.typ, i.Space, block, name)
	vm.Set(i, ret)
	return ret
}

// ---- Call ----

// Call invokes Callee (a Global, Arg, or any pointer-to-function value)
// with Args. Always a DCE root.
type Call struct {
	base
	Callee Instruction
	Args   []Instruction
}

func (i *Call) Op() Op                  { return OpCall }
func (i *Call) IsCodeGenRoot() bool     { return true }
func (i *Call) Operands() []Instruction {
	ops := make([]Instruction, 0, len(i.Args)+1)
	ops = append(ops, i.Callee)
	ops = append(ops, i.Args...)
	return ops
}
func (i *Call) UsedInstruction(inst Instruction) bool {
	if i.Callee == inst {
		return true
	}
	for _, a := range i.Args {
		if a == inst {
			return true
		}
	}
	return false
}
func (i *Call) Resolve(vm *ValueMap) {
	i.Callee = resolveField(vm, i.Callee)
	for idx, a := range i.Args {
		i.Args[idx] = resolveField(vm, a)
	}
}
func (i *Call) ReplaceUsage(old, new Instruction) {
	if i.Callee == old {
		i.Callee = new
	}
	for idx, a := range i.Args {
		if a == old {
			i.Args[idx] = new
		}
	}
}
func (i *Call) String() string {
	s := fmt.Sprintf("%s = call %s %s(", nameOf(i), i.typ, refName(i.Callee))
	for idx, a := range i.Args {
		if idx > 0 {
			s += ", "
		}
		s += refName(a)
	}
	return s + ")"
}
func (i *Call) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newCall(i.typ, i.Callee, append([]Instruction(nil), i.Args...), block, name)
	vm.Set(i, ret)
	return ret
}

// ---- Ret ----

// Ret terminates a block's function-exit with an optional return
// value; a nil ReturnValue means the function returns void. Always a
// DCE root.
type Ret struct {
	base
	ReturnValue Instruction
}

func (i *Ret) Op() Op                  { return OpRet }
func (i *Ret) IsCodeGenRoot() bool     { return true }
func (i *Ret) Operands() []Instruction {
	if i.ReturnValue == nil {
		return nil
	}
	return []Instruction{i.ReturnValue}
}
func (i *Ret) UsedInstruction(inst Instruction) bool { return i.ReturnValue == inst }
func (i *Ret) Resolve(vm *ValueMap) {
	if i.ReturnValue != nil {
		i.ReturnValue = resolveField(vm, i.ReturnValue)
	}
}
func (i *Ret) ReplaceUsage(old, new Instruction) {
	if i.ReturnValue == old {
		i.ReturnValue = new
	}
}
func (i *Ret) String() string {
	if i.ReturnValue == nil {
		return "ret void"
	}
	return fmt.Sprintf("ret %s %s", i.typ, refName(i.ReturnValue))
}
func (i *Ret) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	ret := block.function.newRet(i.typ, i.ReturnValue, block)
	vm.Set(i, ret)
	return ret
}

// ---- New / Delete ----

// New allocates Space machine words from the runtime heap
// (`malloc`-backed), yielding a pointer.
type New struct {
	base
	Space Instruction
}

func (i *New) Op() Op                  { return OpNew }
func (i *New) IsCodeGenRoot() bool     { return false }
func (i *New) Operands() []Instruction { return []Instruction{i.Space} }
func (i *New) UsedInstruction(inst Instruction) bool { return i.Space == inst }
func (i *New) Resolve(vm *ValueMap)    { i.Space = resolveField(vm, i.Space) }
func (i *New) ReplaceUsage(old, new Instruction) {
	if i.Space == old {
		i.Space = new
	}
}
func (i *New) String() string {
	return fmt.Sprintf("%s = new %s %s", nameOf(i), i.typ, refName(i.Space))
}
func (i *New) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newNew(i.typ, i.Space, block, name)
	vm.Set(i, ret)
	return ret
}

// Delete frees a heap allocation previously produced by New
// (`free`-backed). Always a DCE root.
type Delete struct {
	base
	Target Instruction
}

func (i *Delete) Op() Op                  { return OpDelete }
func (i *Delete) IsCodeGenRoot() bool     { return true }
func (i *Delete) Operands() []Instruction { return []Instruction{i.Target} }
func (i *Delete) UsedInstruction(inst Instruction) bool { return i.Target == inst }
func (i *Delete) Resolve(vm *ValueMap)    { i.Target = resolveField(vm, i.Target) }
func (i *Delete) ReplaceUsage(old, new Instruction) {
	if i.Target == old {
		i.Target = new
	}
}
func (i *Delete) String() string {
	return fmt.Sprintf("delete %s %s", i.typ, refName(i.Target))
}
func (i *Delete) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newDelete(i.typ, i.Target, block, name)
	vm.Set(i, ret)
	return ret
}

// ---- Phi ----

// Branch is one (value, predecessor) arm of a Phi.
type Branch struct {
	Value    Instruction
	Preceder *BasicBlock
}

// Phi selects among Branches' values based on which predecessor block
// control arrived from. Mem2Reg inserts these lazily at join points;
// PhiEliminator and UnreachableCodeEliminater later simplify or remove
// trivial ones.
type Phi struct {
	base
	Branches []Branch
}

func (i *Phi) Op() Op                  { return OpPhi }
func (i *Phi) IsCodeGenRoot() bool     { return false }
func (i *Phi) Operands() []Instruction {
	ops := make([]Instruction, len(i.Branches))
	for idx, br := range i.Branches {
		ops[idx] = br.Value
	}
	return ops
}
func (i *Phi) UsedInstruction(inst Instruction) bool {
	for _, br := range i.Branches {
		if br.Value == inst {
			return true
		}
	}
	return false
}
func (i *Phi) Resolve(vm *ValueMap) {
	for idx := range i.Branches {
		i.Branches[idx].Value = resolveField(vm, i.Branches[idx].Value)
	}
}
func (i *Phi) ReplaceUsage(old, new Instruction) {
	for idx := range i.Branches {
		if i.Branches[idx].Value == old {
			i.Branches[idx].Value = new
		}
	}
}
func (i *Phi) String() string {
	s := fmt.Sprintf("%s = phi %s ", nameOf(i), i.typ)
	for idx, br := range i.Branches {
		if idx > 0 {
			s += ", "
		}
		pn := "?"
		if br.Preceder != nil {
			pn = br.Preceder.Name
		}
		s += fmt.Sprintf("[%s: %s]", pn, refName(br.Value))
	}
	return s
}

// AddBranch appends one (value, preceder) arm.
func (i *Phi) AddBranch(value Instruction, preceder *BasicBlock) {
	i.Branches = append(i.Branches, Branch{Value: value, Preceder: preceder})
}

// RemoveBranch drops every arm whose preceder is bb, used by
// UnreachableCodeEliminater when a predecessor edge disappears.
func (i *Phi) RemoveBranch(bb *BasicBlock) {
	out := i.Branches[:0]
	for _, br := range i.Branches {
		if br.Preceder != bb {
			out = append(out, br)
		}
	}
	i.Branches = out
}

func (i *Phi) Clone(block *BasicBlock, vm *ValueMap, name string) Instruction {
	if name == "" {
		name = i.name
	}
	ret := block.function.newPhi(i.typ, block, name)
	ret.Branches = append([]Branch(nil), i.Branches...)
	vm.Set(i, ret)
	return ret
}

func nameOf(i Instruction) string {
	if i.Name() != "" {
		return "%" + i.Name()
	}
	return fmt.Sprintf("%%t%d", i.ID())
}

func refName(i Instruction) string {
	if i == nil {
		return "<nil>"
	}
	return nameOf(i)
}
