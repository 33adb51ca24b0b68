package vm

import (
	"fmt"

	cf "github.com/daimatz/positivity/pkg/classfile"
)

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (vm *VM) executeInstruction(frame *Frame, opcode byte) (Value, bool, error) {
	switch opcode {
	case cf.OpNop:
		// do nothing

	// --- Constant load instructions ---
	case cf.OpAconstNull:
		frame.Push(NullValue())

	case cf.OpIconstM1, cf.OpIconst0, cf.OpIconst1, cf.OpIconst2, cf.OpIconst3, cf.OpIconst4, cf.OpIconst5:
		frame.Push(IntValue(int32(opcode) - cf.OpIconst0))

	case cf.OpBipush:
		frame.Push(IntValue(int32(frame.ReadI8())))

	case cf.OpSipush:
		frame.Push(IntValue(int32(frame.ReadI16())))

	// --- Local variable load/store ---
	case cf.OpIload, cf.OpAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))
	case cf.OpIload0, cf.OpIload1, cf.OpIload2, cf.OpIload3:
		frame.Push(frame.GetLocal(int(opcode - cf.OpIload0)))
	case cf.OpAload0, cf.OpAload1, cf.OpAload2, cf.OpAload3:
		frame.Push(frame.GetLocal(int(opcode - cf.OpAload0)))

	case cf.OpIstore, cf.OpAstore:
		frame.SetLocal(int(frame.ReadU8()), frame.Pop())
	case cf.OpIstore0, cf.OpIstore1, cf.OpIstore2, cf.OpIstore3:
		frame.SetLocal(int(opcode-cf.OpIstore0), frame.Pop())
	case cf.OpAstore0, cf.OpAstore1, cf.OpAstore2, cf.OpAstore3:
		frame.SetLocal(int(opcode-cf.OpAstore0), frame.Pop())

	// --- Stack manipulation ---
	case cf.OpPop:
		frame.Pop()

	case cf.OpDup:
		v := frame.Pop()
		frame.Push(v)
		frame.Push(v)

	// --- Arithmetic ---
	case cf.OpIadd:
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(IntValue(a + b))
	case cf.OpIsub:
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(IntValue(a - b))
	case cf.OpImul:
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(IntValue(a * b))
	case cf.OpIneg:
		frame.Push(IntValue(-frame.Pop().Int))

	// --- Branches ---
	case cf.OpIfeq, cf.OpIfne, cf.OpIflt, cf.OpIfge, cf.OpIfgt, cf.OpIfle:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		if compareZero(opcode, frame.Pop().Int) {
			frame.PC = branchPC + int(offset)
		}

	case cf.OpIfIcmpeq, cf.OpIfIcmpne, cf.OpIfIcmplt, cf.OpIfIcmpge, cf.OpIfIcmpgt, cf.OpIfIcmple:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		b, a := frame.Pop().Int, frame.Pop().Int
		// if_icmp<cond> mirrors if<cond> on a-b without overflow.
		if compareInts(opcode-cf.OpIfIcmpeq+cf.OpIfeq, a, b) {
			frame.PC = branchPC + int(offset)
		}

	case cf.OpIfnull, cf.OpIfnonnull:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		isNull := frame.Pop().IsNull()
		if isNull == (opcode == cf.OpIfnull) {
			frame.PC = branchPC + int(offset)
		}

	case cf.OpGoto:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	// --- Return ---
	case cf.OpIreturn, cf.OpAreturn:
		return frame.Pop(), true, nil
	case cf.OpReturn:
		return Value{}, true, nil

	// --- Method invocation ---
	case cf.OpInvokevirtual:
		return vm.executeInvokevirtual(frame)
	case cf.OpInvokestatic:
		return vm.executeInvokestatic(frame)

	default:
		return Value{}, false, fmt.Errorf("unsupported opcode 0x%02X at PC=%d", opcode, frame.PC-1)
	}

	return Value{}, false, nil
}

func compareZero(opcode byte, v int32) bool {
	return compareInts(opcode, v, 0)
}

// compareInts evaluates the if<cond> opcode's condition on a against b.
func compareInts(opcode byte, a, b int32) bool {
	switch opcode {
	case cf.OpIfeq:
		return a == b
	case cf.OpIfne:
		return a != b
	case cf.OpIflt:
		return a < b
	case cf.OpIfge:
		return a >= b
	case cf.OpIfgt:
		return a > b
	case cf.OpIfle:
		return a <= b
	}
	return false
}
