package ir

import (
	"fmt"

	"github.com/cyanlang/cyanc/internal/types"
)

// Module is the top-level IR unit: a name->Function table with
// insertion order preserved, a global symbol table, an interned string
// pool, and the type pool every type in the module is drawn from
// (spec.md §3, Module (IR)).
type Module struct {
	Types *types.Pool

	funcNames []string
	funcs     map[string]*Function

	globalNames []string
	globals     map[string]*types.Type

	// Global initializer order is textual (builder-call order) per
	// SPEC_FULL.md Open Question 2 — _init_ runs each AddGlobal's
	// initializer in the order it was registered.
	stringPool   map[string]string // content -> label
	stringOrder  []string
	nextStrLabel int
}

// NewModule returns an empty module backed by a fresh type pool.
func NewModule() *Module {
	return &Module{
		Types:      types.NewPool(),
		funcs:      make(map[string]*Function),
		globals:    make(map[string]*types.Type),
		stringPool: make(map[string]string),
	}
}

// NewFunction declares a function named name with the given signature
// and registers it in insertion order. Declaring the same name twice
// returns the existing Function (a forward-declared call resolved
// later by the same builder session).
func (m *Module) NewFunction(name string, sig *types.Type) *Function {
	if f, ok := m.funcs[name]; ok {
		return f
	}
	f := &Function{Name: name, Signature: sig, module: m}
	m.funcs[name] = f
	m.funcNames = append(m.funcNames, name)
	return f
}

// Function looks up a declared function by name.
func (m *Module) Function(name string) (*Function, bool) {
	f, ok := m.funcs[name]
	return f, ok
}

// Functions returns every function in insertion order.
func (m *Module) Functions() []*Function {
	out := make([]*Function, len(m.funcNames))
	for i, n := range m.funcNames {
		out[i] = m.funcs[n]
	}
	return out
}

// RemoveFunction deletes a function by name (used by Inliner's
// unreferenced-function sweep, §4.7 step 5).
func (m *Module) RemoveFunction(name string) {
	if _, ok := m.funcs[name]; !ok {
		return
	}
	delete(m.funcs, name)
	for idx, n := range m.funcNames {
		if n == name {
			m.funcNames = append(m.funcNames[:idx], m.funcNames[idx+1:]...)
			break
		}
	}
}

// AddGlobal registers a module-level global variable's type. Globals
// are zero-initialized storage (§6.3: ".quad 0"); any source-level
// initializer is lowered by the front-end into `_init_`, whose stores
// execute in the textual order AddGlobal was called (Open Question 2).
func (m *Module) AddGlobal(name string, t *types.Type) {
	if _, ok := m.globals[name]; ok {
		return
	}
	m.globals[name] = t
	m.globalNames = append(m.globalNames, name)
}

// Global looks up a registered global's type.
func (m *Module) Global(name string) (*types.Type, bool) {
	t, ok := m.globals[name]
	return t, ok
}

// Globals returns every global name in registration order.
func (m *Module) Globals() []string {
	return append([]string(nil), m.globalNames...)
}

// InternString returns the label for a string literal's content,
// creating one on first use (content -> label, spec.md §3). Labels are
// stable for the lifetime of the module so repeated literals share
// storage.
func (m *Module) InternString(content string) string {
	if label, ok := m.stringPool[content]; ok {
		return label
	}
	label := fmt.Sprintf(".Lstr%d", m.nextStrLabel)
	m.nextStrLabel++
	m.stringPool[content] = label
	m.stringOrder = append(m.stringOrder, content)
	return label
}

// Strings returns (content, label) pairs in first-use order, for
// `.rodata` emission.
func (m *Module) Strings() []struct{ Content, Label string } {
	out := make([]struct{ Content, Label string }, len(m.stringOrder))
	for i, c := range m.stringOrder {
		out[i] = struct{ Content, Label string }{Content: c, Label: m.stringPool[c]}
	}
	return out
}
