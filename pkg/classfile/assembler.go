package classfile

import (
	"math"
)

// Instruction is one symbolic bytecode instruction. Branches name their
// destination by Label instead of a byte offset, and invocations name the
// callee instead of a pool index; both are resolved by Assemble.
type Instruction struct {
	Label  string // marks this instruction as a branch destination
	Opcode uint8
	Local  uint8      // iload, aload, istore, astore
	Const  int16      // bipush, sipush
	Target string     // branch destination label
	Method *MemberRef // invokevirtual, invokestatic
}

// Code is the output of Assemble.
type Code struct {
	Bytes []byte
	// JumpTargets are the absolute offsets of every branch destination, ascending.
	JumpTargets []int
}

// Assemble lays out code, resolves labels to relative branch offsets and
// interns method references into pool.
func Assemble(code []Instruction, pool *PoolBuilder) (*Code, error) {
	if len(code) == 0 {
		return nil, encodingErrorf("code", "empty instruction sequence")
	}

	// First pass: offsets and labels.
	offsets := make([]int, len(code))
	labels := make(map[string]int)
	pc := 0
	for i, ins := range code {
		width, ok := OperandWidth(ins.Opcode)
		if !ok {
			return nil, encodingErrorf("code", "instruction %d: unsupported opcode 0x%02X", i, ins.Opcode)
		}
		if ins.Label != "" {
			if _, dup := labels[ins.Label]; dup {
				return nil, encodingErrorf("code", "label %q defined twice", ins.Label)
			}
			labels[ins.Label] = pc
		}
		offsets[i] = pc
		pc += 1 + width
	}
	if pc > 0xFFFF {
		return nil, encodingErrorf("code", "code_length %d exceeds 65535", pc)
	}

	// Second pass: emit.
	w := newByteWriter()
	var targets []int
	for i, ins := range code {
		name := OpcodeName(ins.Opcode)
		w.u1(ins.Opcode)
		switch {
		case IsBranch(ins.Opcode):
			dest, ok := labels[ins.Target]
			if !ok {
				return nil, encodingErrorf("code", "instruction %d (%s): undefined label %q", i, name, ins.Target)
			}
			rel := dest - offsets[i]
			if rel < math.MinInt16 || rel > math.MaxInt16 {
				return nil, encodingErrorf("code", "instruction %d (%s): branch offset %d out of range", i, name, rel)
			}
			w.u2(uint16(int16(rel)))
			targets = append(targets, dest)

		case ins.Opcode == OpInvokevirtual || ins.Opcode == OpInvokestatic:
			if ins.Method == nil {
				return nil, encodingErrorf("code", "instruction %d (%s): missing method reference", i, name)
			}
			idx, err := pool.Methodref(*ins.Method)
			if err != nil {
				return nil, err
			}
			w.u2(idx)

		case ins.Opcode == OpBipush:
			if ins.Const < math.MinInt8 || ins.Const > math.MaxInt8 {
				return nil, encodingErrorf("code", "instruction %d (bipush): %d does not fit a byte", i, ins.Const)
			}
			w.u1(uint8(int8(ins.Const)))

		case ins.Opcode == OpSipush:
			w.u2(uint16(ins.Const))

		default:
			if width, _ := OperandWidth(ins.Opcode); width == 1 {
				w.u1(ins.Local)
			}
		}

		if ins.Target != "" && !IsBranch(ins.Opcode) {
			return nil, encodingErrorf("code", "instruction %d (%s) is not a branch but names label %q", i, name, ins.Target)
		}
	}

	return &Code{Bytes: w.bytes(), JumpTargets: JumpTargets(targets)}, nil
}
