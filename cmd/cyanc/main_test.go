package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyanlang/cyanc/internal/diag"
	"github.com/cyanlang/cyanc/internal/ir"
	"github.com/cyanlang/cyanc/internal/transform"
	"github.com/cyanlang/cyanc/internal/types"
)

// buildReturns42 builds a module with an empty _init_ and a main that
// returns the constant 42, the way a front end driving internal/ir's
// Builder surface would for the simplest possible program.
func buildReturns42() *ir.Module {
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
	v := b.SignedImm(i64, 42, "answer")
	b.Return(i64, v)

	return m
}

func TestAssembleProducesIntelSyntax(t *testing.T) {
	m := buildReturns42()
	transform.Run(m, transform.L1)

	asm := assemble(m)
	assert.Contains(t, asm, ".intel_syntax noprefix")
	assert.Contains(t, asm, ".globl main")
	assert.Contains(t, asm, "main_exit:")
}

func TestRunVMReturnsMainResult(t *testing.T) {
	m := buildReturns42()
	collector := diag.NewStandard(io.Discard, 0, false)

	code := runVM(m, transform.L1, collector)
	assert.Equal(t, 42, code)
}

func TestDumpStringContainsFunctionNames(t *testing.T) {
	m := buildReturns42()
	out := dumpString(m)
	assert.True(t, strings.Contains(out, "function _init_"))
	assert.True(t, strings.Contains(out, "function main"))
}

func TestOptLevelSelection(t *testing.T) {
	require.Equal(t, transform.L0, optLevel(true, false, false, false))
	require.Equal(t, transform.L1, optLevel(false, true, false, false))
	require.Equal(t, transform.L2, optLevel(false, false, true, false))
	require.Equal(t, transform.L3, optLevel(false, false, false, true))
}
