package vm

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Slot is a VM register/memory word: either a raw integer value or a
// byte offset into a Program's Memory, depending on context — the
// same dual use vm.hpp's `using Slot = uintptr_t` gets from C's weak
// typing. Go has no implicit pointer/integer cast, so every place that
// treats a Slot as an address goes through Memory's explicit
// offset-addressed accessors instead of a raw unsafe.Pointer, trading
// the original's direct pointer arithmetic for bounds-checked slice
// indexing — the idiomatic Go rendition of the same flat address
// space.
type Slot = uint64

// Function is one VM-resident function body: straight-line bytecode
// plus the register file size generateFunc decided it needs.
// Grounded on vm.hpp's VMFunction.
type Function struct {
	Name       string
	Insts      []Instruction
	RegisterNr int
}

// NativeFunction is a host-implemented callback invocable from VM
// bytecode via I_CALL, standing in for vm.hpp's LibFunction — used to
// expose runtime intrinsics (string/print builtins, allocation) to
// cyan code without lowering them through the bytecode themselves.
// args holds one Slot: the address of the top of the argument stack,
// where the caller's pushed arguments start (first argument lowest).
type NativeFunction interface {
	Call(args []Slot) Slot
}

// Callable is the common handle a global's "function" slot can hold:
// either a *Function to interpret or a NativeFunction to invoke
// directly. Grounded on vm.hpp's Function/VMFunction/LibFunction
// split; Go's interface satisfies both without the original's
// dynamic_cast dispatch in VirtualMachine::run's I_CALL case.
type Callable interface {
	callableTag()
}

func (*Function) callableTag() {}

type nativeCallable struct{ NativeFunction }

func (nativeCallable) callableTag() {}

// Program is a fully lowered module: every function's bytecode, the
// flat memory image backing globals/strings/heap/stack, and a lookup
// from global slot index to whichever Callable a function-typed
// global resolves to.
type Program struct {
	Functions map[string]*Function
	Natives   map[string]NativeFunction
	Mem       *Memory

	// GlobalIndex maps a global/function/string symbol to its slot
	// index within Mem's global segment.
	GlobalIndex map[string]int

	callables map[int]Callable
}

const stackSize = 1024 * 512 // matches VirtualMachine::STACK_SIZE
const wordSize = 8

// Memory is the VM's single flat address space: string pool, global
// slots, a bump-allocated heap, and a stack growing down from the top,
// laid out back to back in one anonymous mmap'd region. Slot values are
// byte offsets into Buf, uniformly across all four regions, so a
// register holding an address never needs to know which region it
// points into.
//
// This collapses vm.hpp's four separate backing stores (globals
// vector<Slot>, string_pool vector<char>, a 512K stack array, and the
// C heap via malloc/free) into one mapping. It is a deliberate
// simplification recorded in DESIGN.md: Go code cannot safely carry a
// raw OS pointer in a plain integer register the way the original's
// reinterpret_cast<Slot> does, and routing every region through one
// offset space avoids needing unsafe.Pointer anywhere in the
// interpreter. Backing Buf with unix.Mmap rather than a plain make()
// slice gives it a fixed address range for the process's lifetime and
// keeps the VM's memory off the Go heap, matching spec.md §4.10's
// "separate contiguous byte stack" and "shared global segment"
// language more literally than a growable slice would.
type Memory struct {
	Buf []byte

	globalBase int
	globalLen  int

	heapBase int
	heapTop  int // bump pointer, grows upward; Delete never reclaims (see DESIGN.md)

	stackBase  int // lowest legal stack address
	StackPtr   int // current top of stack, grows downward from len(Buf)
}

// NewMemory lays out a Memory with room for the given string pool
// bytes, globalCount 8-byte global slots, and a fixed-size heap arena
// ahead of the interpreter stack.
func NewMemory(stringPool []byte, globalCount int) *Memory {
	const heapSize = 1024 * 1024 // 1M, generous for a toy heap arena

	m := &Memory{}
	offset := 0

	stringBase := offset
	offset += len(stringPool)

	m.globalBase = offset
	m.globalLen = globalCount * wordSize
	offset += m.globalLen

	m.heapBase = offset
	m.heapTop = offset
	offset += heapSize

	m.stackBase = offset
	offset += stackSize

	buf, err := unix.Mmap(-1, 0, offset, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		// Falls back to a regular slice rather than panicking; only
		// exotic sandboxes (some CI containers) deny anonymous mmap.
		buf = make([]byte, offset)
	}
	m.Buf = buf
	copy(m.Buf[stringBase:], stringPool)
	m.StackPtr = offset

	return m
}

// Close releases the mmap'd backing region. A Program's Memory is
// normally left for the process to tear down on exit; Close exists for
// callers that want to release it promptly (cmd/cyanc's runVM defers
// it once the program has run).
func (m *Memory) Close() error {
	if m.Buf == nil {
		return nil
	}
	err := unix.Munmap(m.Buf)
	m.Buf = nil
	return err
}

func (m *Memory) GlobalAddr(index int) Slot { return Slot(m.globalBase + index*wordSize) }

func (m *Memory) LoadGlobal(index int) Slot {
	return Slot(binary.LittleEndian.Uint64(m.Buf[m.globalBase+index*wordSize:]))
}

func (m *Memory) StoreGlobal(index int, v Slot) {
	binary.LittleEndian.PutUint64(m.Buf[m.globalBase+index*wordSize:], uint64(v))
}

// Alloc bump-allocates n bytes from the heap arena and returns its
// address as a Slot; Free is a documented no-op (see Memory's doc
// comment).
func (m *Memory) Alloc(n int) Slot {
	addr := m.heapTop
	m.heapTop += n
	return Slot(addr)
}

func (m *Memory) Free(Slot) {}

// Read/Write access a sized value at a Slot address, matching vm.cpp's
// I_LOAD/I_STORE width-and-signedness switch.
func (m *Memory) Read(addr Slot, size int, signed bool) Slot {
	b := m.Buf[addr:]
	switch size {
	case 1:
		if signed {
			return Slot(uint64(int64(int8(b[0]))))
		}
		return Slot(b[0])
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if signed {
			return Slot(uint64(int64(int16(v))))
		}
		return Slot(v)
	case 4:
		v := binary.LittleEndian.Uint32(b)
		if signed {
			return Slot(uint64(int64(int32(v))))
		}
		return Slot(v)
	default:
		return Slot(binary.LittleEndian.Uint64(b))
	}
}

func (m *Memory) Write(addr Slot, size int, v Slot) {
	b := m.Buf[addr:]
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}

// Push/Pop move the stack pointer and copy a single Slot, used for
// I_PUSH/I_POP's outgoing-argument area and I_ALLOC's local storage.
func (m *Memory) PushSlot(v Slot) {
	m.StackPtr -= wordSize
	binary.LittleEndian.PutUint64(m.Buf[m.StackPtr:], uint64(v))
}

func (m *Memory) PopSlots(n int) { m.StackPtr += n * wordSize }

func (m *Memory) ReserveStack(words int) Slot {
	m.StackPtr -= words * wordSize
	return Slot(m.StackPtr)
}

func (m *Memory) ReleaseStack(words int) { m.StackPtr += words * wordSize }
