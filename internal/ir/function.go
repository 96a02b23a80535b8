package ir

import (
	"strconv"

	"github.com/cyanlang/cyanc/internal/types"
)

// Function owns an ordered list of basic blocks (entry is first), a
// monotone local-temp counter, and a local-name set used to
// uniquify user-chosen names (spec.md §3, Function).
type Function struct {
	Name      string
	Signature *types.Type // KindFunction

	module *Module
	blocks []*BasicBlock

	tempCounter int
	localNames  map[string]bool
	nextInstID  int
}

// Blocks returns the function's basic blocks, entry first.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

// Entry returns the first block, or nil for an external/declared-only
// function.
func (f *Function) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// Module returns the owning module.
func (f *Function) Module() *Module { return f.module }

// CountLocalTemp returns the next temp counter value and advances it,
// guaranteeing unique synthesized names within the function (spec.md
// §5: "the local temp counter (monotonically increasing...)").
func (f *Function) CountLocalTemp() int {
	v := f.tempCounter
	f.tempCounter++
	return v
}

// MakeName uniquifies variableName against the function's local-name
// set, appending a fresh temp suffix on collision, mirroring the
// original's Function::makeName.
func (f *Function) MakeName(variableName string) string {
	if f.localNames == nil {
		f.localNames = map[string]bool{}
	}
	name := variableName
	if f.localNames[name] {
		name = name + "_" + strconv.Itoa(f.CountLocalTemp())
	}
	f.localNames[name] = true
	return name
}

// AddBlock appends a new, empty block named name. Its loop depth starts
// at zero and is set by analysis.Loops once dominator/loop analysis
// runs.
func (f *Function) AddBlock(name string) *BasicBlock {
	b := &BasicBlock{Name: f.uniqueBlockName(name), function: f}
	f.blocks = append(f.blocks, b)
	return b
}

func (f *Function) uniqueBlockName(name string) string {
	return f.MakeName(name)
}

// RemoveBlock deletes b from the function's block list. Callers must
// have already detached every predecessor edge into b.
func (f *Function) RemoveBlock(b *BasicBlock) {
	for idx, cur := range f.blocks {
		if cur == b {
			f.blocks = append(f.blocks[:idx], f.blocks[idx+1:]...)
			return
		}
	}
}

// AppendClonedBlock registers an already-built block (produced during
// inlining) into the function's block list.
func (f *Function) AppendClonedBlock(b *BasicBlock) {
	b.function = f
	f.blocks = append(f.blocks, b)
}

func (f *Function) nextID() int {
	id := f.nextInstID
	f.nextInstID++
	return id
}

// ---- low-level instruction factories; Clone() and the Builder both
// funnel through these so every construction path shares one ID space
// per function. ----

func (f *Function) newSignedImm(t *types.Type, v int64, block *BasicBlock, name string) *SignedImm {
	inst := &SignedImm{base: base{id: f.nextID(), typ: t, name: name}, Value: v}
	block.Append(inst)
	return inst
}

func (f *Function) newUnsignedImm(t *types.Type, v uint64, block *BasicBlock, name string) *UnsignedImm {
	inst := &UnsignedImm{base: base{id: f.nextID(), typ: t, name: name}, Value: v}
	block.Append(inst)
	return inst
}

func (f *Function) newGlobal(t *types.Type, symbol string, block *BasicBlock, name string) *Global {
	inst := &Global{base: base{id: f.nextID(), typ: t, name: name}, Symbol: symbol}
	block.Append(inst)
	return inst
}

func (f *Function) newArg(t *types.Type, index int, block *BasicBlock, name string) *Arg {
	inst := &Arg{base: base{id: f.nextID(), typ: t, name: name}, Index: index}
	block.Append(inst)
	return inst
}

// newBinaryRaw constructs without re-normalizing operand order (used by
// Clone, which must preserve the already-normalized operands exactly).
func (f *Function) newBinaryRaw(t *types.Type, op BinOp, left, right Instruction, block *BasicBlock, name string) *Binary {
	inst := &Binary{base: base{id: f.nextID(), typ: t, name: name}, BOp: op, Left: left, Right: right}
	block.Append(inst)
	return inst
}

// NewBinary constructs a binary instruction, normalizing commutative
// operand order by instruction ID (a stable, deterministic stand-in for
// the original's pointer-identity std::max/std::min normalization) so
// that two semantically identical expressions always key the same way
// for CSE (spec.md §4.3, DESIGN NOTES §9).
func (f *Function) NewBinary(t *types.Type, op BinOp, left, right Instruction, block *BasicBlock, name string) *Binary {
	if op.Commutative() && left.ID() < right.ID() {
		left, right = right, left
	}
	return f.newBinaryRaw(t, op, left, right, block, name)
}

func (f *Function) newLoad(t *types.Type, addr Instruction, block *BasicBlock, name string) *Load {
	inst := &Load{base: base{id: f.nextID(), typ: t, name: name}, Address: addr}
	block.Append(inst)
	return inst
}

func (f *Function) newStore(t *types.Type, addr, value Instruction, block *BasicBlock) *Store {
	inst := &Store{base: base{id: f.nextID(), typ: t}, Address: addr, Value: value}
	block.Append(inst)
	return inst
}

func (f *Function) newAlloca(t *types.Type, space Instruction, block *BasicBlock, name string) *Alloca {
	inst := &Alloca{base: base{id: f.nextID(), typ: t, name: name}, Space: space}
	block.Append(inst)
	return inst
}

func (f *Function) newCall(t *types.Type, callee Instruction, args []Instruction, block *BasicBlock, name string) *Call {
	inst := &Call{base: base{id: f.nextID(), typ: t, name: name}, Callee: callee, Args: args}
	block.Append(inst)
	return inst
}

func (f *Function) newRet(t *types.Type, value Instruction, block *BasicBlock) *Ret {
	inst := &Ret{base: base{id: f.nextID(), typ: t}, ReturnValue: value}
	block.Append(inst)
	block.SetExit()
	return inst
}

func (f *Function) newNew(t *types.Type, space Instruction, block *BasicBlock, name string) *New {
	inst := &New{base: base{id: f.nextID(), typ: t, name: name}, Space: space}
	block.Append(inst)
	return inst
}

func (f *Function) newDelete(t *types.Type, target Instruction, block *BasicBlock, name string) *Delete {
	inst := &Delete{base: base{id: f.nextID(), typ: t, name: name}, Target: target}
	block.Append(inst)
	return inst
}

func (f *Function) newPhi(t *types.Type, block *BasicBlock, name string) *Phi {
	inst := &Phi{base: base{id: f.nextID(), typ: t, name: name}}
	block.Prepend(inst)
	return inst
}
