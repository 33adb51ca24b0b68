package classfile

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBuilderInterning(t *testing.T) {
	p := NewPoolBuilder()

	cls, err := p.Class("PositivityTester")
	require.NoError(t, err)
	assert.Equal(t, uint16(2), cls)

	again, err := p.Class("PositivityTester")
	require.NoError(t, err)
	assert.Equal(t, cls, again)

	utf, err := p.Utf8("PositivityTester")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), utf)

	mref, err := p.Methodref(MemberRef{Owner: IntegerClass, Name: "intValue", Descriptor: "()I"})
	require.NoError(t, err)
	assert.Equal(t, uint16(8), mref)
	assert.Equal(t, uint16(9), p.Count())

	entries := p.Entries()
	assert.Nil(t, entries[0])
	assert.Empty(t, CheckReferences(entries))

	info, err := ResolveMethodref(entries, mref)
	require.NoError(t, err)
	assert.Equal(t, IntegerClass, info.ClassName)
	assert.Equal(t, "intValue", info.MethodName)
	assert.Equal(t, "()I", info.Descriptor)
}

func TestPoolBuilderRejects(t *testing.T) {
	p := NewPoolBuilder()
	var encErr *EncodingError

	_, err := p.Utf8(strings.Repeat("x", 0x10000))
	assert.True(t, errors.As(err, &encErr))

	_, err = p.Utf8("emoji \U0001F600")
	assert.True(t, errors.As(err, &encErr))

	_, err = p.Utf8(string([]byte{0xff}))
	assert.True(t, errors.As(err, &encErr))

	_, err = p.Methodref(MemberRef{Owner: "A", Name: "m", Descriptor: "I"})
	assert.True(t, errors.As(err, &encErr))

	assert.Equal(t, uint16(1), p.Count(), "failed interning must not add entries")
}

func TestPoolBuilderWriteChecksReferences(t *testing.T) {
	p := NewPoolBuilder()
	_, err := p.Class("A")
	require.NoError(t, err)
	// Corrupt the pool behind the builder's back.
	p.entries = append(p.entries, &ConstantClass{NameIndex: 0})

	err = p.write(newByteWriter())
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Contains(t, err.Error(), "invalid constant pool index 0")
}

func TestCheckReferences(t *testing.T) {
	pool := []ConstantPoolEntry{
		nil,
		&ConstantUtf8{Value: "A"},
		&ConstantClass{NameIndex: 1},
		&ConstantClass{NameIndex: 2},          // points at a Class, not Utf8
		&ConstantNameAndType{NameIndex: 1, DescriptorIndex: 9}, // out of range
		&ConstantMethodref{ClassIndex: 2, NameAndTypeIndex: 1}, // Utf8, not NameAndType
	}
	errs := CheckReferences(pool)
	assert.Len(t, errs, 3)
}
