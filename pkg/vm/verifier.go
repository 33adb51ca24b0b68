package vm

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/daimatz/positivity/pkg/classfile"
)

// vtype is a verification type for one stack slot or local variable.
type vtype uint8

const (
	vTop vtype = iota
	vInt
	vRef
	vNull
)

func (t vtype) String() string {
	return [...]string{"top", "int", "reference", "null"}[t]
}

// assignable reports whether a value of type t may flow into a slot of type to.
func (t vtype) assignable(to vtype) bool {
	return t == to || to == vTop || (t == vNull && to == vRef)
}

func fieldVType(fieldType string) vtype {
	switch {
	case classfile.IsIntLike(fieldType):
		return vInt
	case classfile.IsReference(fieldType):
		return vRef
	}
	return vTop
}

// typeState is the abstract machine state at one instruction.
type typeState struct {
	locals []vtype
	stack  []vtype
}

func (s typeState) clone() typeState {
	return typeState{
		locals: append([]vtype(nil), s.locals...),
		stack:  append([]vtype(nil), s.stack...),
	}
}

func (s typeState) assignableTo(to typeState) error {
	if len(s.stack) != len(to.stack) {
		return fmt.Errorf("stack depth %d, frame declares %d", len(s.stack), len(to.stack))
	}
	for i := range s.stack {
		if !s.stack[i].assignable(to.stack[i]) {
			return fmt.Errorf("stack slot %d is %s, frame declares %s", i, s.stack[i], to.stack[i])
		}
	}
	for i := range to.locals {
		if !s.locals[i].assignable(to.locals[i]) {
			return fmt.Errorf("local %d is %s, frame declares %s", i, s.locals[i], to.locals[i])
		}
	}
	return nil
}

// Verify checks the structural and type constraints the interpreter relies
// on. Problems are collected rather than stopping at the first one.
func Verify(cf *classfile.ClassFile) error {
	var result *multierror.Error

	if cf.MajorVersion < classfile.MinMajor || cf.MajorVersion > classfile.MaxMajor {
		result = multierror.Append(result, fmt.Errorf("unsupported class file version %d.%d", cf.MajorVersion, cf.MinorVersion))
	}
	for _, err := range classfile.CheckReferences(cf.ConstantPool) {
		result = multierror.Append(result, fmt.Errorf("constant pool: %w", err))
	}
	name, err := cf.ClassName()
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("this_class: %w", err))
	}
	if cf.SuperClass == 0 {
		if name != classfile.ObjectClass {
			result = multierror.Append(result, fmt.Errorf("super_class: only %s may omit a super class", classfile.ObjectClass))
		}
	} else if _, err := classfile.GetClassName(cf.ConstantPool, cf.SuperClass); err != nil {
		result = multierror.Append(result, fmt.Errorf("super_class: %w", err))
	}
	for i, idx := range cf.Interfaces {
		if _, err := classfile.GetClassName(cf.ConstantPool, idx); err != nil {
			result = multierror.Append(result, fmt.Errorf("interface %d: %w", i, err))
		}
	}

	seen := make(map[string]bool)
	for i := range cf.Methods {
		m := &cf.Methods[i]
		key := m.Name + m.Descriptor
		if seen[key] {
			result = multierror.Append(result, fmt.Errorf("method %s%s declared twice", m.Name, m.Descriptor))
		}
		seen[key] = true
		if err := verifyMethod(cf, m); err != nil {
			result = multierror.Append(result, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err))
		}
	}

	return result.ErrorOrNil()
}

func verifyMethod(cf *classfile.ClassFile, m *classfile.MethodInfo) error {
	desc, err := classfile.ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return err
	}
	if m.AccessFlags&classfile.AccAbstract != 0 {
		if m.Code != nil {
			return fmt.Errorf("abstract method has Code")
		}
		return nil
	}
	if m.Code == nil {
		return fmt.Errorf("missing Code attribute")
	}

	code := m.Code
	if len(code.Code) == 0 || len(code.Code) > 0xFFFF {
		return fmt.Errorf("code_length %d out of range", len(code.Code))
	}
	if len(code.ExceptionHandlers) > 0 {
		return fmt.Errorf("exception handlers are not supported")
	}

	locals := make([]vtype, 0, desc.Slots()+1)
	if !m.IsStatic() {
		locals = append(locals, vRef)
	}
	for _, p := range desc.Params {
		t := fieldVType(p)
		if t == vTop {
			return fmt.Errorf("unsupported parameter type %s", p)
		}
		locals = append(locals, t)
	}
	if len(locals) > int(code.MaxLocals) {
		return fmt.Errorf("max_locals %d is less than %d argument slots", code.MaxLocals, len(locals))
	}

	v := &codeVerifier{
		cf:       cf,
		code:     code,
		ret:      desc.Return,
		maxStack: int(code.MaxStack),
	}
	initial := typeState{locals: make([]vtype, code.MaxLocals)}
	copy(initial.locals, locals)
	return v.run(initial, locals)
}

type codeVerifier struct {
	cf       *classfile.ClassFile
	code     *classfile.CodeAttribute
	ret      string
	maxStack int

	frames map[int]typeState
	state  typeState
}

// buildFrames expands the StackMapTable into full states, starting from the
// method's argument locals.
func (v *codeVerifier) buildFrames(argLocals []vtype, starts map[int]bool) error {
	v.frames = make(map[int]typeState)
	declared := append([]vtype(nil), argLocals...)
	maxLocals := int(v.code.MaxLocals)

	for i, f := range v.code.StackMap {
		if !starts[f.Offset] {
			return fmt.Errorf("stack map frame %d at offset %d is not an instruction boundary", i, f.Offset)
		}
		switch {
		case f.IsSame():
		case f.Type <= classfile.FrameSameLocals1StackMax, f.Type == classfile.FrameSameLocals1Extended:
		case f.Chop > 0:
			if f.Chop > len(declared) {
				return fmt.Errorf("stack map frame %d chops %d of %d locals", i, f.Chop, len(declared))
			}
			declared = declared[:len(declared)-f.Chop]
		case f.Type == classfile.FrameFull:
			declared = declared[:0]
			fallthrough
		default:
			for _, vt := range f.Locals {
				t, err := frameVType(vt)
				if err != nil {
					return fmt.Errorf("stack map frame %d: %w", i, err)
				}
				declared = append(declared, t)
			}
		}
		if len(declared) > maxLocals {
			return fmt.Errorf("stack map frame %d declares %d locals, max_locals is %d", i, len(declared), maxLocals)
		}

		st := typeState{locals: make([]vtype, maxLocals)}
		copy(st.locals, declared)
		for _, vt := range f.Stack {
			t, err := frameVType(vt)
			if err != nil {
				return fmt.Errorf("stack map frame %d: %w", i, err)
			}
			st.stack = append(st.stack, t)
		}
		if len(st.stack) > v.maxStack {
			return fmt.Errorf("stack map frame %d stack depth exceeds max_stack %d", i, v.maxStack)
		}
		v.frames[f.Offset] = st
	}
	return nil
}

func frameVType(vt classfile.VerificationType) (vtype, error) {
	switch vt.Tag {
	case classfile.ItemTop:
		return vTop, nil
	case classfile.ItemInteger:
		return vInt, nil
	case classfile.ItemNull:
		return vNull, nil
	case classfile.ItemObject:
		return vRef, nil
	}
	return vTop, fmt.Errorf("unsupported verification type %d", vt.Tag)
}

func (v *codeVerifier) run(initial typeState, argLocals []vtype) error {
	instrs, err := classfile.Disassemble(v.code.Code)
	if err != nil {
		return err
	}
	starts := make(map[int]bool, len(instrs))
	for _, ins := range instrs {
		starts[ins.Offset] = true
	}
	if err := v.buildFrames(argLocals, starts); err != nil {
		return err
	}

	v.state = initial
	reachable := true
	for _, ins := range instrs {
		if frame, ok := v.frames[ins.Offset]; ok {
			if reachable {
				if err := v.state.assignableTo(frame); err != nil {
					return fmt.Errorf("offset %d: %w", ins.Offset, err)
				}
			}
			v.state = frame.clone()
			reachable = true
		} else if !reachable {
			return fmt.Errorf("offset %d: no stack map frame after unconditional control transfer", ins.Offset)
		}

		if classfile.IsBranch(ins.Opcode) && !starts[ins.Target()] {
			return fmt.Errorf("offset %d: branch target %d is not an instruction boundary", ins.Offset, ins.Target())
		}
		if err := v.step(ins); err != nil {
			return fmt.Errorf("offset %d (%s): %w", ins.Offset, classfile.OpcodeName(ins.Opcode), err)
		}
		if ins.Opcode == classfile.OpGoto || classfile.IsReturn(ins.Opcode) {
			reachable = false
		}
	}
	if reachable {
		return fmt.Errorf("execution can fall off the end of the code")
	}
	return nil
}

func (v *codeVerifier) push(t vtype) error {
	if len(v.state.stack) >= v.maxStack {
		return fmt.Errorf("operand stack exceeds max_stack %d", v.maxStack)
	}
	v.state.stack = append(v.state.stack, t)
	return nil
}

func (v *codeVerifier) pop(want vtype) error {
	n := len(v.state.stack)
	if n == 0 {
		return fmt.Errorf("operand stack underflow")
	}
	got := v.state.stack[n-1]
	v.state.stack = v.state.stack[:n-1]
	if !got.assignable(want) {
		return fmt.Errorf("expected %s on stack, found %s", want, got)
	}
	return nil
}

func (v *codeVerifier) local(index int) (vtype, error) {
	if index >= len(v.state.locals) {
		return vTop, fmt.Errorf("local %d exceeds max_locals %d", index, len(v.state.locals))
	}
	return v.state.locals[index], nil
}

func (v *codeVerifier) load(index int, want vtype) error {
	t, err := v.local(index)
	if err != nil {
		return err
	}
	if !t.assignable(want) || t == vTop {
		return fmt.Errorf("local %d is %s, want %s", index, t, want)
	}
	return v.push(t)
}

func (v *codeVerifier) store(index int, want vtype) error {
	if _, err := v.local(index); err != nil {
		return err
	}
	n := len(v.state.stack)
	if n == 0 {
		return fmt.Errorf("operand stack underflow")
	}
	t := v.state.stack[n-1]
	if err := v.pop(want); err != nil {
		return err
	}
	v.state.locals[index] = t
	return nil
}

// branchTo checks the current state against the frame declared at target.
func (v *codeVerifier) branchTo(target int) error {
	frame, ok := v.frames[target]
	if !ok {
		return fmt.Errorf("branch target %d has no stack map frame", target)
	}
	return v.state.assignableTo(frame)
}

func (v *codeVerifier) step(ins classfile.DecodedInstruction) error {
	op := ins.Opcode
	switch {
	case op == classfile.OpNop:
		return nil
	case op == classfile.OpAconstNull:
		return v.push(vNull)
	case op >= classfile.OpIconstM1 && op <= classfile.OpIconst5, op == classfile.OpBipush, op == classfile.OpSipush:
		return v.push(vInt)

	case op == classfile.OpIload:
		return v.load(ins.Operand, vInt)
	case op >= classfile.OpIload0 && op <= classfile.OpIload3:
		return v.load(int(op-classfile.OpIload0), vInt)
	case op == classfile.OpAload:
		return v.load(ins.Operand, vRef)
	case op >= classfile.OpAload0 && op <= classfile.OpAload3:
		return v.load(int(op-classfile.OpAload0), vRef)
	case op == classfile.OpIstore:
		return v.store(ins.Operand, vInt)
	case op >= classfile.OpIstore0 && op <= classfile.OpIstore3:
		return v.store(int(op-classfile.OpIstore0), vInt)
	case op == classfile.OpAstore:
		return v.store(ins.Operand, vRef)
	case op >= classfile.OpAstore0 && op <= classfile.OpAstore3:
		return v.store(int(op-classfile.OpAstore0), vRef)

	case op == classfile.OpPop:
		return v.pop(vTop)
	case op == classfile.OpDup:
		n := len(v.state.stack)
		if n == 0 {
			return fmt.Errorf("operand stack underflow")
		}
		return v.push(v.state.stack[n-1])

	case op == classfile.OpIadd, op == classfile.OpIsub, op == classfile.OpImul:
		if err := v.pop(vInt); err != nil {
			return err
		}
		if err := v.pop(vInt); err != nil {
			return err
		}
		return v.push(vInt)
	case op == classfile.OpIneg:
		if err := v.pop(vInt); err != nil {
			return err
		}
		return v.push(vInt)

	case op >= classfile.OpIfeq && op <= classfile.OpIfle:
		if err := v.pop(vInt); err != nil {
			return err
		}
		return v.branchTo(ins.Target())
	case op >= classfile.OpIfIcmpeq && op <= classfile.OpIfIcmple:
		if err := v.pop(vInt); err != nil {
			return err
		}
		if err := v.pop(vInt); err != nil {
			return err
		}
		return v.branchTo(ins.Target())
	case op == classfile.OpIfnull, op == classfile.OpIfnonnull:
		if err := v.pop(vRef); err != nil {
			return err
		}
		return v.branchTo(ins.Target())
	case op == classfile.OpGoto:
		return v.branchTo(ins.Target())

	case op == classfile.OpIreturn:
		if !classfile.IsIntLike(v.ret) {
			return fmt.Errorf("ireturn in method returning %s", v.ret)
		}
		return v.pop(vInt)
	case op == classfile.OpAreturn:
		if !classfile.IsReference(v.ret) {
			return fmt.Errorf("areturn in method returning %s", v.ret)
		}
		return v.pop(vRef)
	case op == classfile.OpReturn:
		if v.ret != "V" {
			return fmt.Errorf("return in method returning %s", v.ret)
		}
		return nil

	case op == classfile.OpInvokevirtual, op == classfile.OpInvokestatic:
		return v.invoke(op, uint16(ins.Operand))
	}
	return fmt.Errorf("unsupported opcode 0x%02X", op)
}

func (v *codeVerifier) invoke(op uint8, index uint16) error {
	ref, err := classfile.ResolveMethodref(v.cf.ConstantPool, index)
	if err != nil {
		return err
	}
	desc, err := classfile.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return err
	}
	if ref.MethodName == "<init>" || ref.MethodName == "<clinit>" {
		return fmt.Errorf("cannot invoke %s", ref.MethodName)
	}
	for i := len(desc.Params) - 1; i >= 0; i-- {
		t := fieldVType(desc.Params[i])
		if t == vTop {
			return fmt.Errorf("unsupported parameter type %s in %s", desc.Params[i], ref)
		}
		if err := v.pop(t); err != nil {
			return fmt.Errorf("argument %d of %s: %w", i, ref, err)
		}
	}
	if op == classfile.OpInvokevirtual {
		if err := v.pop(vRef); err != nil {
			return fmt.Errorf("receiver of %s: %w", ref, err)
		}
	}
	if desc.Return == "V" {
		return nil
	}
	t := fieldVType(desc.Return)
	if t == vTop {
		return fmt.Errorf("unsupported return type %s in %s", desc.Return, ref)
	}
	return v.push(t)
}
