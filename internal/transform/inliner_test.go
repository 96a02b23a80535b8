package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyanlang/cyanc/internal/ir"
	"github.com/cyanlang/cyanc/internal/types"
)

// buildInlineCandidateModule wires together max, min, compare_and_swap
// and main, every one of them well under the inliner's instruction
// budget, so every call site is eligible for collapse.
func buildInlineCandidateModule() *ir.Module {
	pool := types.NewPool()
	i64 := pool.SignedInt(64)
	voidFn := pool.Function(nil, pool.Void())
	binFn := pool.Function([]*types.Type{i64, i64}, i64)
	mainSig := pool.Function(nil, i64)

	m := ir.NewModule()
	b := ir.NewBuilder(m)

	initFn := b.DeclareFunction("_init_", voidFn)
	b.SelectFunction(initFn)
	b.AddBlock("entry")
	b.Return(pool.Void(), nil)

	maxFn := b.DeclareFunction("max", binFn)
	b.SelectFunction(maxFn)
	maxEntry := b.AddBlock("entry")
	maxA := b.Arg(i64, 0, "a")
	maxB := b.Arg(i64, 1, "b")
	maxCond := b.Binary(i64, ir.Slt, maxB, maxA, "cond")
	maxThen := b.AddBlock("then")
	maxElse := b.AddBlock("else")
	b.SelectBlock(maxEntry)
	b.Branch(maxCond, maxThen, maxElse)
	b.SelectBlock(maxThen)
	b.Return(i64, maxA)
	b.SelectBlock(maxElse)
	b.Return(i64, maxB)

	minFn := b.DeclareFunction("min", binFn)
	b.SelectFunction(minFn)
	minEntry := b.AddBlock("entry")
	minA := b.Arg(i64, 0, "a")
	minB := b.Arg(i64, 1, "b")
	minCond := b.Binary(i64, ir.Slt, minA, minB, "cond")
	minThen := b.AddBlock("then")
	minElse := b.AddBlock("else")
	b.SelectBlock(minEntry)
	b.Branch(minCond, minThen, minElse)
	b.SelectBlock(minThen)
	b.Return(i64, minA)
	b.SelectBlock(minElse)
	b.Return(i64, minB)

	casFn := b.DeclareFunction("compare_and_swap", binFn)
	b.SelectFunction(casFn)
	b.AddBlock("entry")
	casA := b.Arg(i64, 0, "a")
	casB := b.Arg(i64, 1, "b")
	maxRef := b.GlobalRef(binFn, "max", "max_fn")
	minRef := b.GlobalRef(binFn, "min", "min_fn")
	hi := b.Call(i64, maxRef, []ir.Instruction{casA, casB}, "hi")
	lo := b.Call(i64, minRef, []ir.Instruction{casA, casB}, "lo")
	sum := b.Binary(i64, ir.Add, hi, lo, "sum")
	b.Return(i64, sum)

	mainFn := b.DeclareFunction("main", mainSig)
	b.SelectFunction(mainFn)
	b.AddBlock("entry")
	x := b.SignedImm(i64, 3, "x")
	y := b.SignedImm(i64, 5, "y")
	casRef := b.GlobalRef(binFn, "compare_and_swap", "cas_fn")
	result := b.Call(i64, casRef, []ir.Instruction{x, y}, "result")
	b.Return(i64, result)

	return m
}

func TestInlinerCollapsesToMainAndInit(t *testing.T) {
	m := buildInlineCandidateModule()
	Inliner(m)

	var names []string
	for _, fn := range m.Functions() {
		names = append(names, fn.Name)
	}
	assert.ElementsMatch(t, []string{"_init_", "main"}, names)

	mainFn, ok := m.Function("main")
	if !ok {
		t.Fatalf("main should survive inlining")
	}
	for _, blk := range mainFn.Blocks() {
		for _, inst := range blk.Insts() {
			if call, ok := inst.(*ir.Call); ok {
				t.Fatalf("main should have no remaining calls after inlining, found call to %s", call.String())
			}
		}
	}
}
