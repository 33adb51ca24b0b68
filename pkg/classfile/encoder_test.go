package classfile

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var intValueRef = &MemberRef{Owner: IntegerClass, Name: "intValue", Descriptor: "()I"}

// positivitySpec is the PositivityTester class: test(Integer) returns
// true iff the argument is non-null and greater than zero.
func positivitySpec() ClassSpec {
	return ClassSpec{
		Name:        "PositivityTester",
		SuperName:   ObjectClass,
		AccessFlags: AccPublic | AccSuper,
		Method: MethodSpec{
			Name:        "test",
			Descriptor:  "(Ljava/lang/Integer;)Z",
			AccessFlags: AccPublic | AccStatic,
			MaxStack:    2,
			MaxLocals:   1,
			Code: []Instruction{
				{Opcode: OpAload, Local: 0},
				{Opcode: OpIfnonnull, Target: "present"},
				{Opcode: OpIconst0},
				{Opcode: OpIreturn},
				{Label: "present", Opcode: OpAload, Local: 0},
				{Opcode: OpInvokevirtual, Method: intValueRef},
				{Opcode: OpIfgt, Target: "positive"},
				{Opcode: OpIconst0},
				{Opcode: OpIreturn},
				{Label: "positive", Opcode: OpIconst1},
				{Opcode: OpIreturn},
			},
		},
	}
}

// handWritten is the class file as laid out byte by byte, entry by entry.
var handWritten = []byte{
	0xCA, 0xFE, 0xBA, 0xBE,
	0x00, 0x00, 0x00, 0x36,
	0x00, 0x0f,
	// 1: Utf8 "PositivityTester"
	0x01, 0x00, 0x10,
	0x50, 0x6f, 0x73, 0x69, 0x74, 0x69, 0x76, 0x69, 0x74, 0x79, 0x54, 0x65, 0x73, 0x74, 0x65, 0x72,
	// 2: Class #1
	0x07, 0x00, 0x01,
	// 3: Utf8 "java/lang/Object"
	0x01, 0x00, 0x10,
	0x6a, 0x61, 0x76, 0x61, 0x2f, 0x6c, 0x61, 0x6e, 0x67, 0x2f, 0x4f, 0x62, 0x6a, 0x65, 0x63, 0x74,
	// 4: Class #3
	0x07, 0x00, 0x03,
	// 5: Utf8 "test"
	0x01, 0x00, 0x04, 0x74, 0x65, 0x73, 0x74,
	// 6: Utf8 "(Ljava/lang/Integer;)Z"
	0x01, 0x00, 0x16,
	0x28, 0x4c, 0x6a, 0x61, 0x76, 0x61, 0x2f, 0x6c, 0x61, 0x6e, 0x67, 0x2f, 0x49, 0x6e, 0x74, 0x65, 0x67, 0x65, 0x72, 0x3b, 0x29, 0x5a,
	// 7: Utf8 "Code"
	0x01, 0x00, 0x04, 0x43, 0x6f, 0x64, 0x65,
	// 8: Utf8 "java/lang/Integer"
	0x01, 0x00, 0x11,
	0x6a, 0x61, 0x76, 0x61, 0x2f, 0x6c, 0x61, 0x6e, 0x67, 0x2f, 0x49, 0x6e, 0x74, 0x65, 0x67, 0x65, 0x72,
	// 9: Class #8
	0x07, 0x00, 0x08,
	// 10: Utf8 "intValue"
	0x01, 0x00, 0x08, 0x69, 0x6e, 0x74, 0x56, 0x61, 0x6c, 0x75, 0x65,
	// 11: Utf8 "()I"
	0x01, 0x00, 0x03, 0x28, 0x29, 0x49,
	// 12: NameAndType #10:#11
	0x0c, 0x00, 0x0a, 0x00, 0x0b,
	// 13: Methodref #9.#12
	0x0a, 0x00, 0x09, 0x00, 0x0c,
	// 14: Utf8 "StackMapTable"
	0x01, 0x00, 0x0d,
	0x53, 0x74, 0x61, 0x63, 0x6b, 0x4d, 0x61, 0x70, 0x54, 0x61, 0x62, 0x6c, 0x65,

	0x00, 0x21, // public super
	0x00, 0x02, // this_class
	0x00, 0x04, // super_class
	0x00, 0x00, // interfaces
	0x00, 0x00, // fields
	0x00, 0x01, // methods

	0x00, 0x09, // public static
	0x00, 0x05, // name
	0x00, 0x06, // descriptor
	0x00, 0x01, // attributes
	0x00, 0x07, // Code
	0x00, 0x00, 0x00, 0x29,
	0x00, 0x02, // max_stack
	0x00, 0x01, // max_locals
	0x00, 0x00, 0x00, 0x13,
	0x19, 0x00,
	0xc7, 0x00, 0x05,
	0x03,
	0xac,
	0x19, 0x00,
	0xb6, 0x00, 0x0d,
	0x9d, 0x00, 0x05,
	0x03,
	0xac,
	0x04,
	0xac,
	0x00, 0x00, // exception table
	0x00, 0x01, // Code attributes
	0x00, 0x0e, // StackMapTable
	0x00, 0x00, 0x00, 0x04,
	0x00, 0x02,
	0x07, 0x09,

	0x00, 0x00, // class attributes
}

func TestEncodeMatchesHandWrittenLayout(t *testing.T) {
	got, err := Encode(positivitySpec())
	require.NoError(t, err)
	assert.Equal(t, handWritten, got)
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := MustEncode(positivitySpec())
	b := MustEncode(positivitySpec())
	assert.Equal(t, a, b)
}

func TestEncodeRoundTrip(t *testing.T) {
	cf, err := ParseBytes(MustEncode(positivitySpec()))
	require.NoError(t, err)

	assert.Equal(t, uint16(MajorJava11), cf.MajorVersion)
	assert.Len(t, cf.ConstantPool, 15)
	assert.Nil(t, cf.ConstantPool[0])

	name, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "PositivityTester", name)
	assert.Equal(t, ObjectClass, cf.SuperClassName())
	assert.Empty(t, cf.Interfaces)
	assert.Empty(t, cf.Fields)
	assert.Empty(t, cf.Attributes)
	assert.Empty(t, CheckReferences(cf.ConstantPool))

	m := cf.FindMethod("test", "(Ljava/lang/Integer;)Z")
	require.NotNil(t, m)
	assert.True(t, m.IsStatic())
	require.NotNil(t, m.Code)
	assert.Equal(t, uint16(2), m.Code.MaxStack)
	assert.Equal(t, uint16(1), m.Code.MaxLocals)
	assert.Len(t, m.Code.Code, 19)
	assert.Empty(t, m.Code.ExceptionHandlers)

	require.Len(t, m.Code.StackMap, 2)
	assert.Equal(t, 7, m.Code.StackMap[0].Offset)
	assert.Equal(t, 17, m.Code.StackMap[1].Offset)
	for _, f := range m.Code.StackMap {
		assert.True(t, f.IsSame())
	}

	ref, err := ResolveMethodref(cf.ConstantPool, 13)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Integer.intValue:()I", ref.String())
}

func TestEncodeWithoutBranchesOmitsStackMapTable(t *testing.T) {
	spec := positivitySpec()
	spec.Method.Code = []Instruction{
		{Opcode: OpIconst1},
		{Opcode: OpIreturn},
	}
	b, err := Encode(spec)
	require.NoError(t, err)

	cf, err := ParseBytes(b)
	require.NoError(t, err)
	for _, e := range cf.ConstantPool[1:] {
		if u, ok := e.(*ConstantUtf8); ok {
			assert.NotEqual(t, AttrStackMapTable, u.Value)
		}
	}
	m := cf.Methods[0]
	assert.Empty(t, m.Code.Attributes)
	assert.Nil(t, m.Code.StackMap)

	// Code attribute_count is the last u2 before the class attributes_count.
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(b[len(b)-4:]))
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClassSpec)
	}{
		{"bad descriptor", func(s *ClassSpec) { s.Method.Descriptor = "Ljava/lang/Integer;Z" }},
		{"empty method name", func(s *ClassSpec) { s.Method.Name = "" }},
		{"empty class name", func(s *ClassSpec) { s.Name = "" }},
		{"max locals too small", func(s *ClassSpec) { s.Method.MaxLocals = 0 }},
		{"empty code", func(s *ClassSpec) { s.Method.Code = nil }},
		{"undefined label", func(s *ClassSpec) { s.Method.Code[1].Target = "nowhere" }},
		{"duplicate label", func(s *ClassSpec) { s.Method.Code[10].Label = "present" }},
		{"unsupported opcode", func(s *ClassSpec) { s.Method.Code[2].Opcode = 0xFE }},
		{"missing method ref", func(s *ClassSpec) { s.Method.Code[5].Method = nil }},
		{"label on non-branch", func(s *ClassSpec) { s.Method.Code[2].Target = "present" }},
		{"inconsistent jump targets", func(s *ClassSpec) { s.Method.JumpTargets = []int{7} }},
		{"nul in name", func(s *ClassSpec) { s.Name = "Bad\x00Name" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := positivitySpec()
			tt.mutate(&spec)
			_, err := Encode(spec)
			require.Error(t, err)
			var encErr *EncodingError
			assert.True(t, errors.As(err, &encErr), "want *EncodingError, got %T: %v", err, err)
		})
	}
}

func TestEncodeAcceptsMatchingJumpTargets(t *testing.T) {
	spec := positivitySpec()
	spec.Method.JumpTargets = []int{17, 7}
	_, err := Encode(spec)
	require.NoError(t, err)
}
