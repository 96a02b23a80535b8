package x64

// scratch is the register the fixer-up borrows when an instruction
// would otherwise reference memory twice; r11 is left out of the
// allocator's pool (GPRegisters), so stealing it here never collides
// with a real assignment.
const scratch = R11

// FixupTwoMemoryOperands rewrites any instruction left with two memory
// operands after register allocation into a memory-to-register load
// followed by the original op against the register, since x86-64 has
// no instruction form that reads or writes memory twice at once.
// Kept as its own post-pass, per spec.md's note that this is cleanest
// done after selection and allocation rather than threaded into either.
func FixupTwoMemoryOperands(fn *Func) {
	for _, b := range fn.Blocks {
		b.Insts = fixupBlock(b.Insts)
	}
}

func fixupBlock(insts []Instruction) []Instruction {
	out := make([]Instruction, 0, len(insts))
	for _, inst := range insts {
		out = append(out, fixupInst(inst)...)
	}
	return out
}

func fixupInst(inst Instruction) []Instruction {
	switch v := inst.(type) {
	case *Mov:
		if v.Dst.IsMemory() && v.Src.IsMemory() {
			tmp := PhysicalReg(scratch)
			return []Instruction{
				&Mov{Dst: tmp, Src: v.Src},
				&Mov{Dst: v.Dst, Src: tmp},
			}
		}
	case *binary:
		if v.Dst.IsMemory() && v.Src.IsMemory() {
			tmp := PhysicalReg(scratch)
			return []Instruction{
				&Mov{Dst: tmp, Src: v.Src},
				&binary{mnemonic: v.mnemonic, Dst: v.Dst, Src: tmp},
			}
		}
	case *shift:
		if v.Dst.IsMemory() && v.Amount.IsMemory() {
			tmp := PhysicalReg(scratch)
			return []Instruction{
				&Mov{Dst: tmp, Src: v.Amount},
				&shift{mnemonic: v.mnemonic, Dst: v.Dst, Amount: tmp},
			}
		}
	}
	return []Instruction{inst}
}
