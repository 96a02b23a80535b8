package x64

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyanlang/cyanc/internal/ir"
	"github.com/cyanlang/cyanc/internal/types"
)

// buildGlobalCopyModule builds `a = b;` for two word-sized globals, the
// way a front end lowers a plain assignment between two module-level
// variables: a Load from b's address followed by a Store to a's.
func buildGlobalCopyModule() *ir.Module {
	pool := types.NewPool()
	i64 := pool.SignedInt(64)
	ptr := pool.Pointer(i64)
	voidFn := pool.Function(nil, pool.Void())

	m := ir.NewModule()
	m.AddGlobal("a", i64)
	m.AddGlobal("b", i64)

	b := ir.NewBuilder(m)
	fn := b.DeclareFunction("main", voidFn)
	b.SelectFunction(fn)
	b.AddBlock("entry")

	bAddr := b.GlobalRef(ptr, "b", "b_addr")
	val := b.Load(i64, bAddr, "val")
	aAddr := b.GlobalRef(ptr, "a", "a_addr")
	b.Store(i64, aAddr, val)
	b.Return(pool.Void(), nil)

	return m
}

func TestGlobalToGlobalCopyResolvesThroughARegister(t *testing.T) {
	m := buildGlobalCopyModule()
	fn, ok := m.Function("main")
	require.True(t, ok)

	lowered := SelectFunction(fn)
	Allocate(lowered, lowered.LocalBytes)
	FixupTwoMemoryOperands(lowered)

	asm := Emit(m, []*Func{lowered})

	loadRe := regexp.MustCompile(`mov (\w+), QWORD PTR \[b\]`)
	storeRe := regexp.MustCompile(`mov QWORD PTR \[a\], (\w+)`)

	loadMatch := loadRe.FindStringSubmatch(asm)
	storeMatch := storeRe.FindStringSubmatch(asm)
	require.NotNil(t, loadMatch, "expected a load from global b into a register:\n%s", asm)
	require.NotNil(t, storeMatch, "expected a store of a register into global a:\n%s", asm)
	require.Equal(t, loadMatch[1], storeMatch[1], "load and store must share one register rather than one instruction touching both memory operands")

	twoMemRe := regexp.MustCompile(`mov QWORD PTR \[\w+\], QWORD PTR \[\w+\]`)
	require.False(t, twoMemRe.MatchString(asm), "no instruction should carry two memory operands:\n%s", asm)
}
