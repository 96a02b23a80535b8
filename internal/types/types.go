// Package types implements the process-wide type pool: interned type
// values for the cyan IR, with pointer equality standing in for type
// equality once a value has been interned.
package types

import (
	"fmt"
	"strings"
)

// Kind tags the variant a Type carries, mirroring the type hierarchy in
// spec.md §3 (Types).
type Kind int

const (
	KindVoid Kind = iota
	KindSignedInt
	KindUnsignedInt
	KindPointer
	KindArray
	KindFunction
	KindMethod
	KindConcept
	KindStruct
	KindCastedStruct
	KindVTable
	KindForward
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindSignedInt:
		return "signed"
	case KindUnsignedInt:
		return "unsigned"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindConcept:
		return "concept"
	case KindStruct:
		return "struct"
	case KindCastedStruct:
		return "casted-struct"
	case KindVTable:
		return "vtable"
	case KindForward:
		return "forward"
	default:
		return "unknown"
	}
}

// WordSize is the machine word size in bytes, used for arrays, pointer
// arithmetic scaling, and struct/vtable layout.
const WordSize = 8

// WordBits is WordSize in bits.
const WordBits = WordSize * 8

// Member is one named, typed field of a Struct.
type Member struct {
	Name string
	Type *Type
}

// ConceptMethod is one named slot of a Concept's vtable. Impl is empty
// until a CastedStruct binds a concrete implementation.
type ConceptMethod struct {
	Name      string
	Signature *Type // KindFunction
	Impl      string
}

// Type is an interned, immutable type value. Two *Type values describe
// the same type iff they are the same pointer (Pool guarantees this for
// anything obtained through it); Equal additionally performs structural
// comparison for types built outside a pool (tests, tooling).
type Type struct {
	Kind Kind

	// SignedInt / UnsignedInt
	BitWidth int

	// Pointer, Array: element type
	Elem *Type

	// Function: ordered argument types and return type (any type; neither
	// this package nor the IR builder restricts it)
	Params []*Type
	Result *Type

	// Method: owner type + underlying Function signature
	Owner *Type

	// Concept
	Name       string
	BaseConcpt *Type
	Methods    []ConceptMethod

	// Struct
	Members  []Member
	Concepts []*Type // implemented concepts, in declaration order

	// CastedStruct: owner struct + the concept it is viewed as
	CastedOf     *Type
	CastedView   *Type
	BoundMethods []string // per-slot implementation name, aligned with CastedView.Methods

	// VTable: the concept this vtable record type services
	VTableOf *Type

	// Forward: not-yet-defined struct/concept placeholder
}

func (t *Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindSignedInt:
		return fmt.Sprintf("i%d", t.BitWidth)
	case KindUnsignedInt:
		return fmt.Sprintf("u%d", t.BitWidth)
	case KindPointer:
		return t.Elem.String() + "*"
	case KindArray:
		return t.Elem.String() + "[]"
	case KindFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		ret := "void"
		if t.Result != nil {
			ret = t.Result.String()
		}
		return fmt.Sprintf("fn(%s)->%s", strings.Join(parts, ","), ret)
	case KindMethod:
		return t.Owner.String() + "::" + t.Result.String()
	case KindConcept:
		return "concept " + t.Name
	case KindStruct:
		return "struct " + t.Name
	case KindCastedStruct:
		return t.CastedOf.String() + " as " + t.CastedView.String()
	case KindVTable:
		return "vtable<" + t.VTableOf.String() + ">"
	case KindForward:
		return "forward " + t.Name
	default:
		return "?"
	}
}

// Size returns the in-memory size in bytes. Every non-void, non-struct,
// non-concept type is exactly one machine word; struct size is the sum
// of member and implemented-concept slots.
func (t *Type) Size() int {
	switch t.Kind {
	case KindVoid:
		return 0
	case KindStruct:
		return (len(t.Members) + len(t.Concepts)) * WordSize
	default:
		return WordSize
	}
}

// IsInteger reports whether the type is SignedInt or UnsignedInt.
func (t *Type) IsInteger() bool {
	return t.Kind == KindSignedInt || t.Kind == KindUnsignedInt
}

// IsSigned reports the signedness used for arithmetic/shift/compare
// lowering; pointers and arrays behave as unsigned.
func (t *Type) IsSigned() bool {
	return t.Kind == KindSignedInt
}

// IsPointerish reports whether the type occupies a pointer-shaped slot:
// Pointer, Array, Struct-by-reference, Concept, CastedStruct, VTable.
// Used by the VM generator's valueKindOf to tag pointer values.
func (t *Type) IsPointerish() bool {
	switch t.Kind {
	case KindPointer, KindArray, KindStruct, KindConcept, KindCastedStruct, KindVTable:
		return true
	default:
		return false
	}
}

// key is the structural identity used to intern a Type. Aggregate types
// (struct/concept) intern by name since cyan disallows structural
// redefinition under the same name; the pool is the single source of
// truth for "the struct named Foo".
type key struct {
	kind     Kind
	bits     int
	elem     *Type
	owner    *Type
	name     string
	castedOf *Type
	castView *Type
}

// Pool interns every Type value used within one compilation. Lookups are
// deterministic and the map only ever grows, matching the "intern only
// grows" concurrency note in spec.md §5.
type Pool struct {
	cache    map[key]*Type
	forwards map[string]*Type
}

// NewPool creates an empty type pool.
func NewPool() *Pool {
	return &Pool{
		cache:    make(map[key]*Type),
		forwards: make(map[string]*Type),
	}
}

func (p *Pool) intern(k key, build func() *Type) *Type {
	if t, ok := p.cache[k]; ok {
		return t
	}
	t := build()
	p.cache[k] = t
	return t
}

// Void returns the interned void type.
func (p *Pool) Void() *Type {
	return p.intern(key{kind: KindVoid}, func() *Type { return &Type{Kind: KindVoid} })
}

// SignedInt returns the interned signed integer type of the given bit
// width, which must be a power of two.
func (p *Pool) SignedInt(bits int) *Type {
	assertPow2(bits)
	return p.intern(key{kind: KindSignedInt, bits: bits}, func() *Type {
		return &Type{Kind: KindSignedInt, BitWidth: bits}
	})
}

// UnsignedInt returns the interned unsigned integer type of the given
// bit width, which must be a power of two.
func (p *Pool) UnsignedInt(bits int) *Type {
	assertPow2(bits)
	return p.intern(key{kind: KindUnsignedInt, bits: bits}, func() *Type {
		return &Type{Kind: KindUnsignedInt, BitWidth: bits}
	})
}

// Pointer returns the interned Pointer(elem) type.
func (p *Pool) Pointer(elem *Type) *Type {
	return p.intern(key{kind: KindPointer, elem: elem}, func() *Type {
		return &Type{Kind: KindPointer, Elem: elem}
	})
}

// Array returns the interned Array(elem) type; Array is sized as one
// machine word (it is a pointer to the first element plus bookkeeping
// carried by the runtime, not an inline blob).
func (p *Pool) Array(elem *Type) *Type {
	return p.intern(key{kind: KindArray, elem: elem}, func() *Type {
		return &Type{Kind: KindArray, Elem: elem}
	})
}

// Function returns the interned function type for the given ordered
// argument types and return type.
func (p *Pool) Function(params []*Type, result *Type) *Type {
	name := functionKey(params, result)
	return p.intern(key{kind: KindFunction, name: name}, func() *Type {
		return &Type{Kind: KindFunction, Params: append([]*Type(nil), params...), Result: result}
	})
}

// Method returns the interned method type: an owner type plus a
// function signature.
func (p *Pool) Method(owner *Type, sig *Type) *Type {
	name := owner.String() + "#" + functionKey(sig.Params, sig.Result)
	return p.intern(key{kind: KindMethod, name: name, owner: owner}, func() *Type {
		return &Type{Kind: KindMethod, Owner: owner, Params: sig.Params, Result: sig.Result}
	})
}

func functionKey(params []*Type, result *Type) string {
	var sb strings.Builder
	for _, p := range params {
		sb.WriteString(p.String())
		sb.WriteByte(',')
	}
	sb.WriteString("->")
	if result != nil {
		sb.WriteString(result.String())
	}
	return sb.String()
}

// Forward returns (creating if needed) a placeholder for a not-yet
// defined struct or concept named name. NewStruct/NewConcept build the
// real type as a separate *Type and never update the placeholder:
// callers that held the Forward pointer must re-look-up the resolved
// type by name.
func (p *Pool) Forward(name string) *Type {
	if t, ok := p.forwards[name]; ok {
		return t
	}
	t := &Type{Kind: KindForward, Name: name}
	p.forwards[name] = t
	return t
}

// ConceptBuilder accumulates a concept's method list before interning.
type ConceptBuilder struct {
	pool *Pool
	t    *Type
}

// NewConcept starts building a concept named name, optionally extending
// base. Methods of base are copied in first, matching the original's
// constructor behavior ("if (base_concept) { copy methods }").
func (p *Pool) NewConcept(name string, base *Type) *ConceptBuilder {
	t := &Type{Kind: KindConcept, Name: name, BaseConcpt: base}
	if base != nil {
		t.Methods = append(t.Methods, base.Methods...)
	}
	return &ConceptBuilder{pool: p, t: t}
}

// AddMethod appends or rebinds a method slot. A redefinition with a
// different signature is a programmer error (front-end's job to catch);
// here it panics, matching cyan's RedefinedMethodException treated as a
// fatal structural problem once IR is being built.
func (b *ConceptBuilder) AddMethod(name string, sig *Type, impl string) *ConceptBuilder {
	for i := range b.t.Methods {
		if b.t.Methods[i].Name == name {
			if b.t.Methods[i].Signature != sig {
				panic(fmt.Sprintf("concept %s: method %q redefined with a different signature", b.t.Name, name))
			}
			if impl != "" {
				b.t.Methods[i].Impl = impl
			}
			return b
		}
	}
	b.t.Methods = append(b.t.Methods, ConceptMethod{Name: name, Signature: sig, Impl: impl})
	return b
}

// Build interns and returns the concept type.
func (b *ConceptBuilder) Build() *Type {
	return b.pool.intern(key{kind: KindConcept, name: b.t.Name}, func() *Type { return b.t })
}

// MethodOffset returns the vtable slot index of name, or -1.
func (t *Type) MethodOffset(name string) int {
	for i, m := range t.Methods {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// IsInheritedFrom reports whether t is, or concept-extends, base.
func (t *Type) IsInheritedFrom(base *Type) bool {
	for c := t; c != nil; c = c.BaseConcpt {
		if c == base {
			return true
		}
	}
	return false
}

// StructBuilder accumulates members before interning a struct type.
type StructBuilder struct {
	pool *Pool
	t    *Type
	seen map[string]bool
}

// NewStruct starts building a struct named name.
func (p *Pool) NewStruct(name string) *StructBuilder {
	return &StructBuilder{pool: p, t: &Type{Kind: KindStruct, Name: name}, seen: map[string]bool{}}
}

// AddMember appends a member field; panics on duplicate names (a
// front-end bug, not a user error at this layer).
func (b *StructBuilder) AddMember(name string, typ *Type) *StructBuilder {
	if b.seen[name] {
		panic(fmt.Sprintf("struct %s: member %q redefined", b.t.Name, name))
	}
	b.seen[name] = true
	b.t.Members = append(b.t.Members, Member{Name: name, Type: typ})
	return b
}

// ImplementConcept records that the struct implements concept c,
// occupying one additional machine word after the members.
func (b *StructBuilder) ImplementConcept(c *Type) *StructBuilder {
	b.t.Concepts = append(b.t.Concepts, c)
	return b
}

// Build interns and returns the struct type.
func (b *StructBuilder) Build() *Type {
	return b.pool.intern(key{kind: KindStruct, name: b.t.Name}, func() *Type { return b.t })
}

// MemberOffset returns the member slot index of name, or -1.
func (t *Type) MemberOffset(name string) int {
	for i, m := range t.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// ConceptOffset returns the slot index (counted from 0, after members)
// of the implemented concept named name, or -1.
func (t *Type) ConceptOffset(name string) int {
	for i, c := range t.Concepts {
		for cc := c; cc != nil; cc = cc.BaseConcpt {
			if cc.Name == name {
				return len(t.Members) + i
			}
		}
	}
	return -1
}

// ImplementsConcept reports whether t (a Struct) implements c, walking
// concept inheritance.
func (t *Type) ImplementsConcept(c *Type) bool {
	for _, impl := range t.Concepts {
		if impl.IsInheritedFrom(c) {
			return true
		}
	}
	return false
}

// CastedStruct returns the interned view of structType through
// concept, with its own method table (all slots from concept, each
// optionally bound to a concrete function name by BindMethod).
func (p *Pool) CastedStruct(structType, concept *Type) *Type {
	name := structType.Name + "@" + concept.Name
	return p.intern(key{kind: KindCastedStruct, name: name}, func() *Type {
		return &Type{
			Kind:         KindCastedStruct,
			Name:         name,
			CastedOf:     structType,
			CastedView:   concept,
			Methods:      append([]ConceptMethod(nil), concept.Methods...),
			BoundMethods: make([]string, len(concept.Methods)),
		}
	})
}

// BindMethod fills slot methodName of a CastedStruct's method table
// with the implementing function's name. Panics if the slot does not
// exist: a cast must name a method the concept actually declares.
func (t *Type) BindMethod(methodName, implName string) {
	idx := t.MethodOffset(methodName)
	if idx < 0 {
		panic(fmt.Sprintf("%s: concept %s has no method %q", t.Name, t.CastedView.Name, methodName))
	}
	t.BoundMethods[idx] = implName
	t.Methods[idx].Impl = implName
}

// AllBound reports whether every method slot of a CastedStruct has a
// bound implementation, the codegen-time invariant from spec.md §3.
func (t *Type) AllBound() bool {
	for _, name := range t.BoundMethods {
		if name == "" {
			return false
		}
	}
	return true
}

// VTable returns the interned runtime vtable record type for concept.
func (p *Pool) VTable(concept *Type) *Type {
	name := "vtable@" + concept.Name
	return p.intern(key{kind: KindVTable, name: name}, func() *Type {
		return &Type{Kind: KindVTable, Name: name, VTableOf: concept}
	})
}

func assertPow2(n int) {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("bit width %d is not a power of two", n))
	}
}
