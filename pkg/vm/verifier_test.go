package vm

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/positivity/pkg/classfile"
)

func TestVerifyAcceptsTester(t *testing.T) {
	cf, err := classfile.ParseBytes(testerBytes())
	require.NoError(t, err)
	assert.NoError(t, Verify(cf))
}

func TestVerifyAcceptsLoops(t *testing.T) {
	cf, err := classfile.ParseBytes(classfile.MustEncode(recursiveSpec()))
	require.NoError(t, err)
	assert.NoError(t, Verify(cf))
}

func TestVerifyRejectsCode(t *testing.T) {
	i := func(op uint8) classfile.Instruction { return classfile.Instruction{Opcode: op} }

	tests := []struct {
		name   string
		mutate func(*classfile.MethodSpec)
		want   string
	}{
		{"ireturn from void method", func(m *classfile.MethodSpec) {
			m.Descriptor = "(Ljava/lang/Integer;)V"
		}, "ireturn in method returning V"},
		{"return from boolean method", func(m *classfile.MethodSpec) {
			m.Code = []classfile.Instruction{i(classfile.OpReturn)}
		}, "return in method returning Z"},
		{"stack exceeds max_stack", func(m *classfile.MethodSpec) {
			m.MaxStack = 1
			m.Code = []classfile.Instruction{i(classfile.OpIconst1), i(classfile.OpIconst1), i(classfile.OpIadd), i(classfile.OpIreturn)}
		}, "exceeds max_stack"},
		{"falls off the end", func(m *classfile.MethodSpec) {
			m.Code = []classfile.Instruction{i(classfile.OpNop)}
		}, "fall off the end"},
		{"stack underflow", func(m *classfile.MethodSpec) {
			m.Code = []classfile.Instruction{i(classfile.OpIreturn)}
		}, "underflow"},
		{"unreachable without frame", func(m *classfile.MethodSpec) {
			m.Code = []classfile.Instruction{i(classfile.OpIconst1), i(classfile.OpIreturn), i(classfile.OpIconst0), i(classfile.OpIreturn)}
		}, "no stack map frame after unconditional"},
		{"int receiver", func(m *classfile.MethodSpec) {
			m.Code[4] = classfile.Instruction{Label: "present", Opcode: classfile.OpIconst1}
		}, "receiver of java/lang/Integer.intValue:()I"},
		{"reference local read as int", func(m *classfile.MethodSpec) {
			m.Code[4] = classfile.Instruction{Label: "present", Opcode: classfile.OpIload0}
		}, "local 0 is reference, want int"},
		{"local beyond max_locals", func(m *classfile.MethodSpec) {
			m.Code[0] = classfile.Instruction{Opcode: classfile.OpAload, Local: 3}
		}, "local 3 exceeds max_locals"},
		{"int compared with null", func(m *classfile.MethodSpec) {
			m.Code[0] = i(classfile.OpIconst0)
		}, "expected reference on stack, found int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testerSpec()
			tt.mutate(&spec.Method)
			b, err := classfile.Encode(spec)
			require.NoError(t, err)

			cf, err := classfile.ParseBytes(b)
			require.NoError(t, err)
			err = Verify(cf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			_, err = NewMemoryClassLoader(nil).DefineClass(spec.Name, b)
			var verr *VerificationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestVerifyRejectsStackMap(t *testing.T) {
	// The StackMapTable payload ends the class: count(2), delta(7), delta(9),
	// followed by the class attributes_count.
	tests := []struct {
		name   string
		mutate func(b []byte)
		want   string
	}{
		{"frame inside an instruction", func(b []byte) { b[len(b)-4] = 0x03 }, "not an instruction boundary"},
		{"branch target without frame", func(b []byte) { b[len(b)-3] = 0x0A }, "branch target 17 has no stack map frame"},
		{"first branch target without frame", func(b []byte) { b[len(b)-4] = 0x06 }, "branch target 7 has no stack map frame"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testerBytes()
			tt.mutate(b)
			cf, err := classfile.ParseBytes(b)
			require.NoError(t, err)
			err = Verify(cf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVerifyCollectsErrors(t *testing.T) {
	spec := testerSpec()
	spec.Method.Code = []classfile.Instruction{{Opcode: classfile.OpNop}}
	cf, err := classfile.ParseBytes(classfile.MustEncode(spec))
	require.NoError(t, err)
	cf.MajorVersion = 70

	err = Verify(cf)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr), "want *multierror.Error, got %T", err)
	assert.Len(t, merr.Errors, 2)
}

func TestVerifyObjectWithoutSuper(t *testing.T) {
	spec := testerSpec()
	cf, err := classfile.ParseBytes(classfile.MustEncode(spec))
	require.NoError(t, err)
	cf.SuperClass = 0

	err = Verify(cf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "may omit a super class")
}
