package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyanlang/cyanc/internal/ir"
	"github.com/cyanlang/cyanc/internal/types"
)

// buildArithmeticModule builds a main that returns `1 + 2 * 3`.
func buildArithmeticModule() *ir.Module {
	pool := types.NewPool()
	i64 := pool.SignedInt(64)
	voidFn := pool.Function(nil, pool.Void())
	mainSig := pool.Function(nil, i64)

	m := ir.NewModule()
	b := ir.NewBuilder(m)

	initFn := b.DeclareFunction("_init_", voidFn)
	b.SelectFunction(initFn)
	b.AddBlock("entry")
	b.Return(pool.Void(), nil)

	mainFn := b.DeclareFunction("main", mainSig)
	b.SelectFunction(mainFn)
	b.AddBlock("entry")
	one := b.SignedImm(i64, 1, "")
	two := b.SignedImm(i64, 2, "")
	three := b.SignedImm(i64, 3, "")
	mul := b.Binary(i64, ir.Mul, two, three, "")
	sum := b.Binary(i64, ir.Add, one, mul, "")
	b.Return(i64, sum)

	return m
}

func TestInterpReturnsMainResult(t *testing.T) {
	m := buildArithmeticModule()
	program := Generate(m, nil)

	result, err := Interp(program)
	require.NoError(t, err)
	require.EqualValues(t, 7, result)
}
