package vm

import (
	"fmt"

	"github.com/daimatz/positivity/pkg/classfile"
	"github.com/daimatz/positivity/pkg/native"
)

// maxFrameDepth is the maximum number of nested method calls.
const maxFrameDepth = 1024

// VM interprets verified bytecode. It is not safe for concurrent use.
type VM struct {
	Loader     ClassLoader
	frameDepth int
}

// NewVM creates a new VM resolving classes through loader.
func NewVM(loader ClassLoader) *VM {
	return &VM{Loader: loader}
}

// Invoke runs method of class with args bound to its first local variables.
func (vm *VM) Invoke(class *Class, method *classfile.MethodInfo, args []Value) (ret Value, err error) {
	defer func() {
		// Verified code never overflows a frame; a panic here means the
		// class bypassed verification.
		if r := recover(); r != nil {
			ret, err = Value{}, fmt.Errorf("%s.%s: %v", class.Name, method.Name, r)
		}
	}()
	return vm.executeMethod(class, method, args)
}

// executeMethod executes a method with the given arguments and returns its return value.
func (vm *VM) executeMethod(class *Class, method *classfile.MethodInfo, args []Value) (Value, error) {
	if method.Code == nil {
		return Value{}, fmt.Errorf("method %s has no Code attribute", method.Name)
	}

	vm.frameDepth++
	if vm.frameDepth > maxFrameDepth {
		vm.frameDepth--
		return Value{}, NewJavaException("java/lang/StackOverflowError", fmt.Sprintf("frame depth exceeded %d", maxFrameDepth))
	}
	defer func() { vm.frameDepth-- }()

	frame := NewFrame(method.Code.MaxLocals, method.Code.MaxStack, method.Code.Code, class)
	for i, arg := range args {
		frame.SetLocal(i, arg)
	}

	for frame.PC < len(frame.Code) {
		opcode := frame.Code[frame.PC]
		frame.PC++

		retVal, hasReturn, err := vm.executeInstruction(frame, opcode)
		if err != nil {
			return Value{}, err
		}
		if hasReturn {
			return retVal, nil
		}
	}

	return Value{}, fmt.Errorf("method %s fell off the end of its code", method.Name)
}

// executeInvokevirtual handles the invokevirtual instruction.
func (vm *VM) executeInvokevirtual(frame *Frame) (Value, bool, error) {
	methodRef, _, err := vm.popCall(frame, "invokevirtual")
	if err != nil {
		return Value{}, false, err
	}
	receiver := frame.Pop()
	if receiver.IsNull() {
		return Value{}, false, NewJavaException("java/lang/NullPointerException",
			fmt.Sprintf("cannot invoke %s on null", methodRef))
	}

	// Integer.intValue
	if methodRef.ClassName == classfile.IntegerClass && methodRef.MethodName == "intValue" && methodRef.Descriptor == "()I" {
		boxed, ok := receiver.Ref.(*native.Integer)
		if !ok {
			return Value{}, false, fmt.Errorf("invokevirtual: Integer.intValue receiver is %T", receiver.Ref)
		}
		frame.Push(IntValue(boxed.IntValue()))
		return Value{}, false, nil
	}

	return Value{}, false, fmt.Errorf("invokevirtual: unsupported method %s", methodRef)
}

// executeInvokestatic handles the invokestatic instruction.
func (vm *VM) executeInvokestatic(frame *Frame) (Value, bool, error) {
	methodRef, args, err := vm.popCall(frame, "invokestatic")
	if err != nil {
		return Value{}, false, err
	}

	// Integer.valueOf
	if methodRef.ClassName == classfile.IntegerClass && methodRef.MethodName == "valueOf" && methodRef.Descriptor == "(I)Ljava/lang/Integer;" {
		frame.Push(RefValue(native.IntegerValueOf(args[0].Int)))
		return Value{}, false, nil
	}

	class := frame.Class
	if methodRef.ClassName != class.Name {
		if vm.Loader == nil {
			return Value{}, false, fmt.Errorf("invokestatic: no loader for class %s", methodRef.ClassName)
		}
		if class, err = vm.Loader.LoadClass(methodRef.ClassName); err != nil {
			return Value{}, false, fmt.Errorf("invokestatic: %w", err)
		}
	}
	method := class.File.FindMethod(methodRef.MethodName, methodRef.Descriptor)
	if method == nil || !method.IsStatic() {
		return Value{}, false, fmt.Errorf("invokestatic: static method %s not found", methodRef)
	}

	retVal, err := vm.executeMethod(class, method, args)
	if err != nil {
		return Value{}, false, err
	}
	if !isVoidReturn(methodRef.Descriptor) {
		frame.Push(retVal)
	}
	return Value{}, false, nil
}

// popCall resolves the Methodref operand and pops its arguments in order.
func (vm *VM) popCall(frame *Frame, op string) (*classfile.MethodRefInfo, []Value, error) {
	index := frame.ReadU16()
	methodRef, err := classfile.ResolveMethodref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	desc, err := classfile.ParseMethodDescriptor(methodRef.Descriptor)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	args := make([]Value, len(desc.Params))
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return methodRef, args, nil
}

// isVoidReturn checks if a method descriptor has void return type.
func isVoidReturn(descriptor string) bool {
	return len(descriptor) >= 2 && descriptor[len(descriptor)-2:] == ")V"
}
