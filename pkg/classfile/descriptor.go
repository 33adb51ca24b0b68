package classfile

import (
	"fmt"
	"strings"
)

// MethodDescriptor is a parsed method descriptor such as "(Ljava/lang/Integer;)Z".
type MethodDescriptor struct {
	Params []string
	Return string
}

// Slots returns the number of local variable slots the parameters occupy.
func (d *MethodDescriptor) Slots() int {
	n := 0
	for _, p := range d.Params {
		if p == "J" || p == "D" {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// IsReference reports whether a field type denotes a reference (object or array).
func IsReference(fieldType string) bool {
	return strings.HasPrefix(fieldType, "L") || strings.HasPrefix(fieldType, "[")
}

// IsIntLike reports whether a field type is held as an int on the operand stack.
func IsIntLike(fieldType string) bool {
	switch fieldType {
	case "B", "C", "I", "S", "Z":
		return true
	}
	return false
}

// ParseMethodDescriptor splits a method descriptor into parameter and return types.
func ParseMethodDescriptor(descriptor string) (*MethodDescriptor, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	end := strings.IndexByte(descriptor, ')')
	if end == -1 {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	d := &MethodDescriptor{}
	params := descriptor[1:end]
	for i := 0; i < len(params); {
		n, err := fieldTypeLen(params[i:])
		if err != nil {
			return nil, fmt.Errorf("%w in %s", err, descriptor)
		}
		d.Params = append(d.Params, params[i:i+n])
		i += n
	}

	ret := descriptor[end+1:]
	if ret == "V" {
		d.Return = ret
		return d, nil
	}
	n, err := fieldTypeLen(ret)
	if err != nil || n != len(ret) {
		return nil, fmt.Errorf("invalid return type %q in %s", ret, descriptor)
	}
	d.Return = ret
	return d, nil
}

// fieldTypeLen returns the length of the field type at the start of s.
func fieldTypeLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i == len(s) {
		return 0, fmt.Errorf("truncated type descriptor")
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi <= 1 {
			return 0, fmt.Errorf("unterminated class type descriptor")
		}
		return i + semi + 1, nil
	}
	return 0, fmt.Errorf("invalid type descriptor char '%c'", s[i])
}
