package classfile

import "fmt"

// EncodingError reports a class description that cannot be serialized into
// a valid class file: a dangling or miskinded pool index, an operand or
// length that does not fit its field, or an undefined branch label.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %s", e.Field, e.Reason)
}

func encodingErrorf(field, format string, args ...interface{}) *EncodingError {
	return &EncodingError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
