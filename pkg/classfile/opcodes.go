package classfile

// Opcodes understood by the assembler, verifier and interpreter.
const (
	OpNop           = 0x00
	OpAconstNull    = 0x01
	OpIconstM1      = 0x02
	OpIconst0       = 0x03
	OpIconst1       = 0x04
	OpIconst2       = 0x05
	OpIconst3       = 0x06
	OpIconst4       = 0x07
	OpIconst5       = 0x08
	OpBipush        = 0x10
	OpSipush        = 0x11
	OpIload         = 0x15
	OpAload         = 0x19
	OpIload0        = 0x1A
	OpIload1        = 0x1B
	OpIload2        = 0x1C
	OpIload3        = 0x1D
	OpAload0        = 0x2A
	OpAload1        = 0x2B
	OpAload2        = 0x2C
	OpAload3        = 0x2D
	OpIstore        = 0x36
	OpAstore        = 0x3A
	OpIstore0       = 0x3B
	OpIstore1       = 0x3C
	OpIstore2       = 0x3D
	OpIstore3       = 0x3E
	OpAstore0       = 0x4B
	OpAstore1       = 0x4C
	OpAstore2       = 0x4D
	OpAstore3       = 0x4E
	OpPop           = 0x57
	OpDup           = 0x59
	OpIadd          = 0x60
	OpIsub          = 0x64
	OpImul          = 0x68
	OpIneg          = 0x74
	OpIfeq          = 0x99
	OpIfne          = 0x9A
	OpIflt          = 0x9B
	OpIfge          = 0x9C
	OpIfgt          = 0x9D
	OpIfle          = 0x9E
	OpIfIcmpeq      = 0x9F
	OpIfIcmpne      = 0xA0
	OpIfIcmplt      = 0xA1
	OpIfIcmpge      = 0xA2
	OpIfIcmpgt      = 0xA3
	OpIfIcmple      = 0xA4
	OpGoto          = 0xA7
	OpIreturn       = 0xAC
	OpAreturn       = 0xB0
	OpReturn        = 0xB1
	OpInvokevirtual = 0xB6
	OpInvokestatic  = 0xB8
	OpIfnull        = 0xC6
	OpIfnonnull     = 0xC7
)

type opcodeInfo struct {
	name     string
	operands int
}

var opcodes = map[uint8]opcodeInfo{
	OpNop:           {"nop", 0},
	OpAconstNull:    {"aconst_null", 0},
	OpIconstM1:      {"iconst_m1", 0},
	OpIconst0:       {"iconst_0", 0},
	OpIconst1:       {"iconst_1", 0},
	OpIconst2:       {"iconst_2", 0},
	OpIconst3:       {"iconst_3", 0},
	OpIconst4:       {"iconst_4", 0},
	OpIconst5:       {"iconst_5", 0},
	OpBipush:        {"bipush", 1},
	OpSipush:        {"sipush", 2},
	OpIload:         {"iload", 1},
	OpAload:         {"aload", 1},
	OpIload0:        {"iload_0", 0},
	OpIload1:        {"iload_1", 0},
	OpIload2:        {"iload_2", 0},
	OpIload3:        {"iload_3", 0},
	OpAload0:        {"aload_0", 0},
	OpAload1:        {"aload_1", 0},
	OpAload2:        {"aload_2", 0},
	OpAload3:        {"aload_3", 0},
	OpIstore:        {"istore", 1},
	OpAstore:        {"astore", 1},
	OpIstore0:       {"istore_0", 0},
	OpIstore1:       {"istore_1", 0},
	OpIstore2:       {"istore_2", 0},
	OpIstore3:       {"istore_3", 0},
	OpAstore0:       {"astore_0", 0},
	OpAstore1:       {"astore_1", 0},
	OpAstore2:       {"astore_2", 0},
	OpAstore3:       {"astore_3", 0},
	OpPop:           {"pop", 0},
	OpDup:           {"dup", 0},
	OpIadd:          {"iadd", 0},
	OpIsub:          {"isub", 0},
	OpImul:          {"imul", 0},
	OpIneg:          {"ineg", 0},
	OpIfeq:          {"ifeq", 2},
	OpIfne:          {"ifne", 2},
	OpIflt:          {"iflt", 2},
	OpIfge:          {"ifge", 2},
	OpIfgt:          {"ifgt", 2},
	OpIfle:          {"ifle", 2},
	OpIfIcmpeq:      {"if_icmpeq", 2},
	OpIfIcmpne:      {"if_icmpne", 2},
	OpIfIcmplt:      {"if_icmplt", 2},
	OpIfIcmpge:      {"if_icmpge", 2},
	OpIfIcmpgt:      {"if_icmpgt", 2},
	OpIfIcmple:      {"if_icmple", 2},
	OpGoto:          {"goto", 2},
	OpIreturn:       {"ireturn", 0},
	OpAreturn:       {"areturn", 0},
	OpReturn:        {"return", 0},
	OpInvokevirtual: {"invokevirtual", 2},
	OpInvokestatic:  {"invokestatic", 2},
	OpIfnull:        {"ifnull", 2},
	OpIfnonnull:     {"ifnonnull", 2},
}

// OpcodeName returns the mnemonic for op, or "" if op is not supported.
func OpcodeName(op uint8) string {
	return opcodes[op].name
}

// OperandWidth returns the number of immediate operand bytes following op.
func OperandWidth(op uint8) (int, bool) {
	info, ok := opcodes[op]
	return info.operands, ok
}

// IsBranch reports whether op is a conditional or unconditional 16-bit branch.
func IsBranch(op uint8) bool {
	switch {
	case op >= OpIfeq && op <= OpIfIcmple:
		return true
	case op == OpGoto, op == OpIfnull, op == OpIfnonnull:
		return true
	}
	return false
}

// IsReturn reports whether op ends the method.
func IsReturn(op uint8) bool {
	return op == OpIreturn || op == OpAreturn || op == OpReturn
}
