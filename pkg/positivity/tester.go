// Package positivity answers whether an optional integer is positive, once
// directly and once by running a generated PositivityTester class.
package positivity

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/daimatz/positivity/pkg/classfile"
	"github.com/daimatz/positivity/pkg/vm"
)

const (
	// ClassName is the internal name of the generated class.
	ClassName = "PositivityTester"
	// MethodName and MethodDescriptor identify its single method.
	MethodName       = "test"
	MethodDescriptor = "(Ljava/lang/Integer;)Z"
)

var intValue = &classfile.MemberRef{Owner: classfile.IntegerClass, Name: "intValue", Descriptor: "()I"}

// TesterSpec describes PositivityTester:
//
//	public static boolean test(Integer x) {
//	    if (x == null) return false;
//	    return x.intValue() > 0;
//	}
func TesterSpec() classfile.ClassSpec {
	return classfile.ClassSpec{
		Name:        ClassName,
		SuperName:   classfile.ObjectClass,
		AccessFlags: classfile.AccPublic | classfile.AccSuper,
		Method: classfile.MethodSpec{
			Name:        MethodName,
			Descriptor:  MethodDescriptor,
			AccessFlags: classfile.AccPublic | classfile.AccStatic,
			MaxStack:    2,
			MaxLocals:   1,
			Code: []classfile.Instruction{
				{Opcode: classfile.OpAload, Local: 0},
				{Opcode: classfile.OpIfnonnull, Target: "present"},
				{Opcode: classfile.OpIconst0},
				{Opcode: classfile.OpIreturn},
				{Label: "present", Opcode: classfile.OpAload, Local: 0},
				{Opcode: classfile.OpInvokevirtual, Method: intValue},
				{Opcode: classfile.OpIfgt, Target: "positive"},
				{Opcode: classfile.OpIconst0},
				{Opcode: classfile.OpIreturn},
				{Label: "positive", Opcode: classfile.OpIconst1},
				{Opcode: classfile.OpIreturn},
			},
			JumpTargets: []int{7, 17},
		},
	}
}

// Encode returns the PositivityTester class file.
func Encode() ([]byte, error) {
	return classfile.Encode(TesterSpec())
}

// IsPositive reports whether x is present and greater than zero.
func IsPositive(x *int32) bool {
	return x != nil && *x > 0
}

// Tester runs PositivityTester.test through a resolved method handle.
// Calls on one Tester must not overlap.
type Tester struct {
	class  *vm.Class
	method *vm.Method
}

// NewTester defines PositivityTester in loader and resolves its method.
// A loader that already holds the class rejects the second definition.
func NewTester(loader *vm.MemoryClassLoader) (*Tester, error) {
	b, err := Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ClassName, err)
	}
	class, err := loader.DefineClass(ClassName, b)
	if err != nil {
		return nil, err
	}
	method, err := class.Method(MethodName, MethodDescriptor)
	if err != nil {
		return nil, err
	}
	Logger().Debug("tester ready", zap.String("class", class.Name), zap.Int("bytes", len(b)))
	return &Tester{class: class, method: method}, nil
}

// Class returns the defined class.
func (t *Tester) Class() *vm.Class {
	return t.class
}

// Test invokes PositivityTester.test with x, nil standing for null.
func (t *Tester) Test(x *int32) (bool, error) {
	ret, err := t.method.Invoke(vm.IntegerValue(x))
	if err != nil {
		return false, err
	}
	if ret.Type != vm.TypeInt {
		return false, fmt.Errorf("%s.%s returned %s, want boolean", ClassName, MethodName, ret.Type)
	}
	return ret.Bool(), nil
}

// IsPositiveBytecode encodes, defines, resolves and invokes PositivityTester
// from scratch, in a fresh loader, for every call.
func IsPositiveBytecode(x *int32) (bool, error) {
	t, err := NewTester(vm.NewMemoryClassLoader(nil))
	if err != nil {
		return false, err
	}
	return t.Test(x)
}

// WriteClassFile writes PositivityTester.class into dir and returns its path.
func WriteClassFile(dir string) (string, error) {
	b, err := Encode()
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", ClassName, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, ClassName+".class")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	Logger().Info("class file written", zap.String("path", path), zap.Int("bytes", len(b)))
	return path, nil
}
