package classfile

import (
	"fmt"
	"slices"
)

// ClassSpec describes a class with exactly one method.
type ClassSpec struct {
	Name         string
	SuperName    string
	AccessFlags  uint16
	MajorVersion uint16 // defaults to MajorJava11
	Method       MethodSpec
}

// MethodSpec describes the single method of a ClassSpec.
type MethodSpec struct {
	Name        string
	Descriptor  string
	AccessFlags uint16
	MaxStack    uint16
	MaxLocals   uint16
	Code        []Instruction

	// JumpTargets, when non-nil, must list exactly the branch destinations
	// Assemble derives from Code.
	JumpTargets []int
}

// Encode serializes spec into class file bytes. Every length field is
// computed from the serialized payload it prefixes.
func Encode(spec ClassSpec) ([]byte, error) {
	m := spec.Method
	desc, err := ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return nil, encodingErrorf("method descriptor", "%v", err)
	}
	if m.Name == "" {
		return nil, encodingErrorf("method name", "empty")
	}
	if slots := desc.Slots(); m.AccessFlags&AccStatic == 0 {
		if int(m.MaxLocals) < slots+1 {
			return nil, encodingErrorf("max_locals", "%d is less than %d argument slots plus this", m.MaxLocals, slots)
		}
	} else if int(m.MaxLocals) < slots {
		return nil, encodingErrorf("max_locals", "%d is less than %d argument slots", m.MaxLocals, slots)
	}

	pool := NewPoolBuilder()
	thisIdx, err := pool.Class(spec.Name)
	if err != nil {
		return nil, err
	}
	superIdx, err := pool.Class(spec.SuperName)
	if err != nil {
		return nil, err
	}
	nameIdx, err := pool.Utf8(m.Name)
	if err != nil {
		return nil, err
	}
	descIdx, err := pool.Utf8(m.Descriptor)
	if err != nil {
		return nil, err
	}
	codeIdx, err := pool.Utf8(AttrCode)
	if err != nil {
		return nil, err
	}

	code, err := Assemble(m.Code, pool)
	if err != nil {
		return nil, err
	}
	if m.JumpTargets != nil && !slices.Equal(JumpTargets(m.JumpTargets), code.JumpTargets) {
		return nil, encodingErrorf("jump targets", "declared %v, code branches to %v", m.JumpTargets, code.JumpTargets)
	}

	// Code attribute payload.
	ca := newByteWriter()
	ca.u2(m.MaxStack)
	ca.u2(m.MaxLocals)
	ca.u4(uint32(len(code.Bytes)))
	ca.raw(code.Bytes)
	ca.u2(0) // exception_table_length
	if len(code.JumpTargets) == 0 {
		ca.u2(0)
	} else {
		smtIdx, err := pool.Utf8(AttrStackMapTable)
		if err != nil {
			return nil, err
		}
		frames, err := EncodeStackMapTable(code.JumpTargets)
		if err != nil {
			return nil, err
		}
		ca.u2(1)
		if err := ca.attribute(smtIdx, frames); err != nil {
			return nil, err
		}
	}

	major := spec.MajorVersion
	if major == 0 {
		major = MajorJava11
	}

	w := newByteWriter()
	w.u4(Magic)
	w.u2(0)
	w.u2(major)
	if err := pool.write(w); err != nil {
		return nil, err
	}
	w.u2(spec.AccessFlags)
	w.u2(thisIdx)
	w.u2(superIdx)
	w.u2(0) // interfaces_count
	w.u2(0) // fields_count
	w.u2(1) // methods_count
	w.u2(m.AccessFlags)
	w.u2(nameIdx)
	w.u2(descIdx)
	w.u2(1) // attributes_count
	if err := w.attribute(codeIdx, ca.bytes()); err != nil {
		return nil, err
	}
	w.u2(0) // class attributes_count

	out := w.bytes()
	if err := checkEncoded(out, pool.Count(), len(code.Bytes)); err != nil {
		return nil, err
	}
	return out, nil
}

// checkEncoded decodes the output again and compares the declared counts
// with what the builder tracked.
func checkEncoded(b []byte, poolCount uint16, codeLen int) error {
	cf, err := ParseBytes(b)
	if err != nil {
		return encodingErrorf("class file", "output does not decode: %v", err)
	}
	if got := len(cf.ConstantPool); got != int(poolCount) {
		return encodingErrorf("constant_pool_count", "declared %d, builder holds %d", got, poolCount)
	}
	if len(cf.Methods) != 1 || cf.Methods[0].Code == nil {
		return encodingErrorf("methods", "expected one method with Code")
	}
	if got := len(cf.Methods[0].Code.Code); got != codeLen {
		return encodingErrorf("code_length", "declared %d, assembled %d", got, codeLen)
	}
	return nil
}

// MustEncode is like Encode but panics on error. It is meant for fixed
// descriptions known to be valid.
func MustEncode(spec ClassSpec) []byte {
	b, err := Encode(spec)
	if err != nil {
		panic(fmt.Sprintf("classfile: %v", err))
	}
	return b
}
