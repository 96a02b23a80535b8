package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyanlang/cyanc/internal/ir"
	"github.com/cyanlang/cyanc/internal/types"
)

// buildConstFoldModule builds the equivalent of `let a = 1 + 2 * 3 / 4;`
// at module scope: a global `a` initialized from _init_, the way the
// front end lowers a top-level initializer (ir.Module's doc comment on
// AddGlobal).
func buildConstFoldModule() *ir.Module {
	pool := types.NewPool()
	i64 := pool.SignedInt(64)
	ptr := pool.Pointer(i64)
	voidFn := pool.Function(nil, pool.Void())

	m := ir.NewModule()
	m.AddGlobal("a", i64)

	b := ir.NewBuilder(m)
	initFn := b.DeclareFunction("_init_", voidFn)
	b.SelectFunction(initFn)
	b.AddBlock("entry")

	one := b.SignedImm(i64, 1, "")
	two := b.SignedImm(i64, 2, "")
	three := b.SignedImm(i64, 3, "")
	four := b.SignedImm(i64, 4, "")
	mul := b.Binary(i64, ir.Mul, two, three, "")
	div := b.Binary(i64, ir.Div, mul, four, "")
	add := b.Binary(i64, ir.Add, one, div, "")
	aAddr := b.GlobalRef(ptr, "a", "a_addr")
	b.Store(i64, aAddr, add)
	b.Return(pool.Void(), nil)

	return m
}

func TestConstantFoldingLeavesOneImmediateStore(t *testing.T) {
	m := buildConstFoldModule()
	Run(m, L2)

	initFn, ok := m.Function("_init_")
	require.True(t, ok)
	require.Len(t, initFn.Blocks(), 1)

	entry := initFn.Entry()
	var stores []*ir.Store
	for _, inst := range entry.Insts() {
		switch v := inst.(type) {
		case *ir.Binary:
			t.Fatalf("arithmetic instruction survived folding: %s", v.String())
		case *ir.Store:
			stores = append(stores, v)
		}
	}
	require.Len(t, stores, 1)

	imm, ok := stores[0].Value.(*ir.SignedImm)
	require.True(t, ok, "store value should have folded to an immediate, got %T", stores[0].Value)
	assert.EqualValues(t, 2, imm.Value)
}

// buildLoopInvariantModule builds:
//
//	function main(a: i64, b: i64) {
//	    let i = 0;
//	    while (i < 10) { i = i + a * b; }
//	}
//
// `a` and `b` are never reassigned, so the front end hands them to the
// loop body as bare Arg values; `i` is mutated in the loop and so goes
// through an Alloca that Mem2Reg promotes to a phi at the loop header.
func buildLoopInvariantModule() *ir.Module {
	pool := types.NewPool()
	i64 := pool.SignedInt(64)
	fnSig := pool.Function([]*types.Type{i64, i64}, pool.Void())

	m := ir.NewModule()
	b := ir.NewBuilder(m)
	fn := b.DeclareFunction("main", fnSig)
	b.SelectFunction(fn)

	entry := b.AddBlock("entry")
	argA := b.Arg(i64, 0, "a")
	argB := b.Arg(i64, 1, "b")
	one := b.UnsignedImm(i64, 1, "")
	iAlloc := b.Alloca(i64, one, "i_slot")
	zero := b.SignedImm(i64, 0, "")
	b.Store(i64, iAlloc, zero)

	header := b.AddBlock("loop_header")
	body := b.AddBlock("loop_body")
	exit := b.AddBlock("loop_exit")

	b.SelectBlock(entry)
	b.Jump(header)

	b.SelectBlock(header)
	iVal := b.Load(i64, iAlloc, "i_val")
	ten := b.SignedImm(i64, 10, "")
	cond := b.Binary(i64, ir.Slt, iVal, ten, "cond")
	b.Branch(cond, body, exit)

	b.SelectBlock(body)
	iVal2 := b.Load(i64, iAlloc, "i_val2")
	product := b.Binary(i64, ir.Mul, argA, argB, "product")
	sum := b.Binary(i64, ir.Add, iVal2, product, "sum")
	b.Store(i64, iAlloc, sum)
	b.Jump(header)

	b.SelectBlock(exit)
	b.Return(pool.Void(), nil)

	return m
}

func TestLoopInvariantMultiplyHoistedOnce(t *testing.T) {
	m := buildLoopInvariantModule()
	Run(m, L2)

	fn, ok := m.Function("main")
	require.True(t, ok)

	var muls []*ir.Binary
	var mulBlocks []*ir.BasicBlock
	var loopHeaderBlock *ir.BasicBlock
	for _, blk := range fn.Blocks() {
		if blk.Condition != nil {
			loopHeaderBlock = blk
		}
		for _, inst := range blk.Insts() {
			if bin, ok := inst.(*ir.Binary); ok && bin.BOp == ir.Mul {
				muls = append(muls, bin)
				mulBlocks = append(mulBlocks, blk)
			}
		}
	}

	require.Len(t, muls, 1, "the invariant multiply should appear exactly once after LICM")
	require.NotNil(t, loopHeaderBlock, "the loop header's condition should still be a live block")
	assert.NotEqual(t, loopHeaderBlock, mulBlocks[0], "the multiply should have been hoisted out of the loop header")
	assert.NotEqual(t, mulBlocks[0].LoopHeader, loopHeaderBlock, "the multiply's home block should no longer be inside the loop")
}

// buildBranchOnConstantModule builds `if (1) { a = 1; } else { a = 0; }`
// against a global `a`.
func buildBranchOnConstantModule() *ir.Module {
	pool := types.NewPool()
	i64 := pool.SignedInt(64)
	ptr := pool.Pointer(i64)
	voidFn := pool.Function(nil, pool.Void())

	m := ir.NewModule()
	m.AddGlobal("a", i64)

	b := ir.NewBuilder(m)
	fn := b.DeclareFunction("main", voidFn)
	b.SelectFunction(fn)

	entry := b.AddBlock("entry")
	thenB := b.AddBlock("then")
	elseB := b.AddBlock("else")
	exit := b.AddBlock("exit")

	b.SelectBlock(entry)
	cond := b.SignedImm(i64, 1, "")
	b.Branch(cond, thenB, elseB)

	b.SelectBlock(thenB)
	aAddrThen := b.GlobalRef(ptr, "a", "")
	one := b.SignedImm(i64, 1, "")
	b.Store(i64, aAddrThen, one)
	b.Jump(exit)

	b.SelectBlock(elseB)
	aAddrElse := b.GlobalRef(ptr, "a", "")
	zero := b.SignedImm(i64, 0, "")
	b.Store(i64, aAddrElse, zero)
	b.Jump(exit)

	b.SelectBlock(exit)
	b.Return(pool.Void(), nil)

	return m
}

func TestBranchOnConstantDropsElseAndInlinesThen(t *testing.T) {
	m := buildBranchOnConstantModule()
	Run(m, L2)

	fn, ok := m.Function("main")
	require.True(t, ok)

	for _, blk := range fn.Blocks() {
		assert.Nil(t, blk.Condition, "no conditional branch should survive folding a constant condition")
	}

	var stores []*ir.Store
	for _, blk := range fn.Blocks() {
		for _, inst := range blk.Insts() {
			if s, ok := inst.(*ir.Store); ok {
				stores = append(stores, s)
			}
		}
	}
	require.Len(t, stores, 1, "the unreachable else-branch store should be gone entirely")

	imm, ok := stores[0].Value.(*ir.SignedImm)
	require.True(t, ok)
	assert.EqualValues(t, 1, imm.Value)

	entry := fn.Entry()
	found := false
	for _, inst := range entry.Insts() {
		if inst == ir.Instruction(stores[0]) {
			found = true
		}
	}
	assert.True(t, found, "the then-branch assignment should have been merged into the entry block")
}
