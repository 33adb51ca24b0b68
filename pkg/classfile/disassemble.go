package classfile

import (
	"encoding/binary"
	"fmt"
)

// DecodedInstruction is one instruction read back from a code array.
type DecodedInstruction struct {
	Offset  int
	Opcode  uint8
	Operand int // local index, immediate, pool index or relative branch offset
}

// Target returns the absolute destination of a branch instruction.
func (d DecodedInstruction) Target() int {
	return d.Offset + d.Operand
}

// Len returns the encoded size of the instruction.
func (d DecodedInstruction) Len() int {
	w, _ := OperandWidth(d.Opcode)
	return 1 + w
}

func (d DecodedInstruction) String() string {
	name := OpcodeName(d.Opcode)
	switch w, _ := OperandWidth(d.Opcode); {
	case IsBranch(d.Opcode):
		return fmt.Sprintf("%4d: %s %d", d.Offset, name, d.Target())
	case d.Opcode == OpInvokevirtual || d.Opcode == OpInvokestatic:
		return fmt.Sprintf("%4d: %s #%d", d.Offset, name, d.Operand)
	case w > 0:
		return fmt.Sprintf("%4d: %s %d", d.Offset, name, d.Operand)
	}
	return fmt.Sprintf("%4d: %s", d.Offset, name)
}

// Disassemble decodes a code array. It fails on unsupported opcodes and on
// operands running past the end of the code.
func Disassemble(code []byte) ([]DecodedInstruction, error) {
	var out []DecodedInstruction
	for pc := 0; pc < len(code); {
		op := code[pc]
		width, ok := OperandWidth(op)
		if !ok {
			return nil, fmt.Errorf("unsupported opcode 0x%02X at offset %d", op, pc)
		}
		if pc+1+width > len(code) {
			return nil, fmt.Errorf("truncated %s at offset %d", OpcodeName(op), pc)
		}
		d := DecodedInstruction{Offset: pc, Opcode: op}
		switch {
		case IsBranch(op), op == OpSipush:
			d.Operand = int(int16(binary.BigEndian.Uint16(code[pc+1:])))
		case op == OpInvokevirtual || op == OpInvokestatic:
			d.Operand = int(binary.BigEndian.Uint16(code[pc+1:]))
		case op == OpBipush:
			d.Operand = int(int8(code[pc+1]))
		case width == 1:
			d.Operand = int(code[pc+1])
		}
		out = append(out, d)
		pc += 1 + width
	}
	return out, nil
}
