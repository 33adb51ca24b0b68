package vm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/positivity/pkg/classfile"
	"github.com/daimatz/positivity/pkg/native"
)

// Class is a defined, verified class.
type Class struct {
	Name   string
	File   *classfile.ClassFile
	Loader ClassLoader
}

// Method resolves a method by name and descriptor.
func (c *Class) Method(name, descriptor string) (*Method, error) {
	info := c.File.FindMethod(name, descriptor)
	if info == nil {
		return nil, &InvocationError{Class: c.Name, Method: name, Descriptor: descriptor, Reason: "no such method"}
	}
	desc, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		return nil, &InvocationError{Class: c.Name, Method: name, Descriptor: descriptor, Reason: err.Error()}
	}
	return &Method{Class: c, Info: info, Desc: desc, vm: NewVM(c.Loader)}, nil
}

// Method is a resolved method handle. Resolve once and invoke many times.
type Method struct {
	Class *Class
	Info  *classfile.MethodInfo
	Desc  *classfile.MethodDescriptor
	vm    *VM
}

// Invoke calls a static method. Arguments must match the descriptor: int
// values for primitive int parameters, null or a reference of the right
// host type for reference parameters.
func (m *Method) Invoke(args ...Value) (Value, error) {
	if !m.Info.IsStatic() {
		return Value{}, m.invocationError("instance methods need a receiver; only static methods can be invoked")
	}
	if len(args) != len(m.Desc.Params) {
		return Value{}, m.invocationError(fmt.Sprintf("got %d arguments, want %d", len(args), len(m.Desc.Params)))
	}
	for i, arg := range args {
		if err := checkArgument(m.Desc.Params[i], arg); err != nil {
			return Value{}, m.invocationError(fmt.Sprintf("argument %d: %v", i, err))
		}
	}

	Logger().Debug("invoking method",
		zap.String("class", m.Class.Name),
		zap.String("method", m.Info.Name),
		zap.String("descriptor", m.Info.Descriptor))
	return m.vm.Invoke(m.Class, m.Info, args)
}

func (m *Method) invocationError(reason string) *InvocationError {
	return &InvocationError{Class: m.Class.Name, Method: m.Info.Name, Descriptor: m.Info.Descriptor, Reason: reason}
}

func checkArgument(param string, arg Value) error {
	switch {
	case classfile.IsIntLike(param):
		if arg.Type != TypeInt {
			return fmt.Errorf("%s parameter given %s", param, arg.Type)
		}
	case classfile.IsReference(param):
		if arg.Type == TypeInt {
			return fmt.Errorf("%s parameter given int", param)
		}
		if arg.IsNull() {
			return nil
		}
		if param == "L"+classfile.IntegerClass+";" {
			if _, ok := arg.Ref.(*native.Integer); !ok {
				return fmt.Errorf("%s parameter given %T", param, arg.Ref)
			}
		}
	default:
		return fmt.Errorf("unsupported parameter type %s", param)
	}
	return nil
}
