package vm

import (
	"errors"
	"fmt"
)

// ErrDuplicateClass is wrapped by the VerificationError returned when a
// loader is asked to define a class name it already holds.
var ErrDuplicateClass = errors.New("duplicate class definition")

// VerificationError reports bytes rejected when defining a class: they do
// not decode, or the decoded class fails verification.
type VerificationError struct {
	Class string
	Err   error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verifying class %s: %v", e.Class, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// InvocationError reports a call that does not match the resolved class:
// an unknown method, or arguments that disagree with its descriptor.
type InvocationError struct {
	Class      string
	Method     string
	Descriptor string
	Reason     string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s.%s%s: %s", e.Class, e.Method, e.Descriptor, e.Reason)
}

// JavaException represents a JVM exception thrown by executing bytecode.
type JavaException struct {
	ClassName string
	Message   string
}

func (e *JavaException) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("JavaException: %s", e.ClassName)
	}
	return fmt.Sprintf("JavaException: %s: %s", e.ClassName, e.Message)
}

func NewJavaException(className, message string) *JavaException {
	return &JavaException{ClassName: className, Message: message}
}
