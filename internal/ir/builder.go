package ir

import "github.com/cyanlang/cyanc/internal/types"

// ---- Exported instruction factories on Function ----
//
// These wrap the unexported new* constructors used internally by Clone
// so that both the Builder below and internal/transform (which lives in
// a different package and has no access to Function's unexported
// fields) can materialize new instructions through the same ID space.

// NewSignedImm appends a signed integer literal to block.
func (f *Function) NewSignedImm(t *types.Type, v int64, block *BasicBlock, name string) *SignedImm {
	return f.newSignedImm(t, v, block, name)
}

// NewUnsignedImm appends an unsigned integer literal to block.
func (f *Function) NewUnsignedImm(t *types.Type, v uint64, block *BasicBlock, name string) *UnsignedImm {
	return f.newUnsignedImm(t, v, block, name)
}

// NewDetachedSignedImm builds a signed integer literal without placing
// it in any block yet; the caller attaches it with BasicBlock.Prepend
// or Append once it knows where it's safe to do so (InstRewriter uses
// this to fold a constant while a block's instruction list is still
// being iterated).
func (f *Function) NewDetachedSignedImm(t *types.Type, v int64, name string) *SignedImm {
	return &SignedImm{base: base{id: f.nextID(), typ: t, name: name}, Value: v}
}

// NewDetachedUnsignedImm is NewDetachedSignedImm's unsigned counterpart.
func (f *Function) NewDetachedUnsignedImm(t *types.Type, v uint64, name string) *UnsignedImm {
	return &UnsignedImm{base: base{id: f.nextID(), typ: t, name: name}, Value: v}
}

// NewGlobalRef appends a reference to a module-level symbol.
func (f *Function) NewGlobalRef(t *types.Type, symbol string, block *BasicBlock, name string) *Global {
	return f.newGlobal(t, symbol, block, name)
}

// NewArg appends a reference to the index-th formal parameter.
func (f *Function) NewArg(t *types.Type, index int, block *BasicBlock, name string) *Arg {
	return f.newArg(t, index, block, name)
}

// NewLoad appends a load from addr.
func (f *Function) NewLoad(t *types.Type, addr Instruction, block *BasicBlock, name string) *Load {
	return f.newLoad(t, addr, block, name)
}

// NewStore appends a store of value to addr.
func (f *Function) NewStore(t *types.Type, addr, value Instruction, block *BasicBlock) *Store {
	return f.newStore(t, addr, value, block)
}

// NewAlloca appends a stack allocation of space words.
func (f *Function) NewAlloca(t *types.Type, space Instruction, block *BasicBlock, name string) *Alloca {
	return f.newAlloca(t, space, block, name)
}

// NewCall appends a call to callee with args.
func (f *Function) NewCall(t *types.Type, callee Instruction, args []Instruction, block *BasicBlock, name string) *Call {
	return f.newCall(t, callee, args, block, name)
}

// NewRet appends a return and marks block as a function exit.
func (f *Function) NewRet(t *types.Type, value Instruction, block *BasicBlock) *Ret {
	return f.newRet(t, value, block)
}

// NewNew appends a heap allocation of space words.
func (f *Function) NewNew(t *types.Type, space Instruction, block *BasicBlock, name string) *New {
	return f.newNew(t, space, block, name)
}

// NewDelete appends a heap deallocation of target.
func (f *Function) NewDelete(t *types.Type, target Instruction, block *BasicBlock, name string) *Delete {
	return f.newDelete(t, target, block, name)
}

// NewPhi prepends an empty phi to block; callers add arms with
// Phi.AddBranch as predecessors are discovered (lazy phi insertion,
// spec.md §4.2).
func (f *Function) NewPhi(t *types.Type, block *BasicBlock, name string) *Phi {
	return f.newPhi(t, block, name)
}

// NewDetachedPhi builds an empty phi without placing it in any block
// yet. Inliner accumulates a result phi's branches across several
// cloned callee blocks before it knows whether the phi is even needed
// (a single-branch result collapses to a bare value, a zero-branch one
// to a default zero immediate) or, once needed, which end of the split
// block it belongs at.
func (f *Function) NewDetachedPhi(t *types.Type, name string) *Phi {
	return &Phi{base: base{id: f.nextID(), typ: t, name: name}}
}

// ---- Builder: the public front-end surface (spec.md §6.1) ----

// Builder is the IR construction surface a front-end (lexer/parser, or
// a test) drives directly: declare functions and globals, open blocks,
// emit instructions into the current block, and finish each block with
// exactly one of Jump/Branch/Return. There is no lexer or parser in
// this module (out of scope, §6.1); seed tests use Builder the same
// way a front-end would.
type Builder struct {
	module *Module
	fn     *Function
	block  *BasicBlock
}

// NewBuilder returns a builder over module, with no current function or
// block selected.
func NewBuilder(module *Module) *Builder {
	return &Builder{module: module}
}

// Module returns the module under construction.
func (b *Builder) Module() *Module { return b.module }

// DeclareFunction registers (or retrieves) a function by name and
// signature, without selecting it as current.
func (b *Builder) DeclareFunction(name string, sig *types.Type) *Function {
	return b.module.NewFunction(name, sig)
}

// DeclareGlobal registers a module-level global's type.
func (b *Builder) DeclareGlobal(name string, t *types.Type) {
	b.module.AddGlobal(name, t)
}

// InternString returns the label for a string literal's content.
func (b *Builder) InternString(content string) string {
	return b.module.InternString(content)
}

// SelectFunction makes f the current function. The current block is
// cleared; callers must AddBlock or SelectBlock before emitting.
func (b *Builder) SelectFunction(f *Function) {
	b.fn = f
	b.block = nil
}

// Function returns the current function, or nil.
func (b *Builder) Function() *Function { return b.fn }

// AddBlock appends a new block to the current function and selects it
// as current.
func (b *Builder) AddBlock(name string) *BasicBlock {
	blk := b.fn.AddBlock(name)
	b.block = blk
	return blk
}

// SelectBlock makes blk the current block for subsequent emission.
func (b *Builder) SelectBlock(blk *BasicBlock) { b.block = blk }

// Block returns the current block, or nil.
func (b *Builder) Block() *BasicBlock { return b.block }

// ---- emission: delegate to Function's exported factories against the
// current block ----

func (b *Builder) SignedImm(t *types.Type, v int64, name string) *SignedImm {
	return b.fn.NewSignedImm(t, v, b.block, name)
}

func (b *Builder) UnsignedImm(t *types.Type, v uint64, name string) *UnsignedImm {
	return b.fn.NewUnsignedImm(t, v, b.block, name)
}

func (b *Builder) GlobalRef(t *types.Type, symbol string, name string) *Global {
	return b.fn.NewGlobalRef(t, symbol, b.block, name)
}

func (b *Builder) Arg(t *types.Type, index int, name string) *Arg {
	return b.fn.NewArg(t, index, b.block, name)
}

func (b *Builder) Binary(t *types.Type, op BinOp, left, right Instruction, name string) *Binary {
	return b.fn.NewBinary(t, op, left, right, b.block, name)
}

func (b *Builder) Load(t *types.Type, addr Instruction, name string) *Load {
	return b.fn.NewLoad(t, addr, b.block, name)
}

func (b *Builder) Store(t *types.Type, addr, value Instruction) *Store {
	return b.fn.NewStore(t, addr, value, b.block)
}

func (b *Builder) Alloca(t *types.Type, space Instruction, name string) *Alloca {
	return b.fn.NewAlloca(t, space, b.block, name)
}

func (b *Builder) Call(t *types.Type, callee Instruction, args []Instruction, name string) *Call {
	return b.fn.NewCall(t, callee, args, b.block, name)
}

func (b *Builder) New(t *types.Type, space Instruction, name string) *New {
	return b.fn.NewNew(t, space, b.block, name)
}

func (b *Builder) Delete(t *types.Type, target Instruction, name string) *Delete {
	return b.fn.NewDelete(t, target, b.block, name)
}

// Phi prepends an empty phi node to block (not necessarily the current
// block: Mem2Reg plants phis into join blocks discovered after the
// builder has moved on), for a caller that wants to build SSA form
// directly instead of relying on transform.Mem2Reg.
func (b *Builder) Phi(t *types.Type, block *BasicBlock, name string) *Phi {
	return b.fn.NewPhi(t, block, name)
}

// ---- block finishing: exactly one of these per block, wiring the
// predecessor set analysis.Dominators would otherwise have to discover
// from scratch ----

// Jump finishes the current block with an unconditional jump to
// target. The finished block stays selected; callers SelectBlock or
// AddBlock before emitting into another block.
func (b *Builder) Jump(target *BasicBlock) {
	b.block.SetJump(target)
	target.addPred(b.block)
}

// Branch finishes the current block with a conditional branch.
func (b *Builder) Branch(cond Instruction, then, els *BasicBlock) {
	b.block.SetBranch(cond, then, els)
	then.addPred(b.block)
	els.addPred(b.block)
}

// Return finishes the current block with a Ret of value (nil for
// void), marking it a function exit.
func (b *Builder) Return(t *types.Type, value Instruction) *Ret {
	return b.fn.NewRet(t, value, b.block)
}
