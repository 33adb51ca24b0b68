package native

import "strconv"

// Integer represents a java.lang.Integer instance.
type Integer struct {
	Value int32
}

// IntegerValueOf creates an Integer (boxing).
func IntegerValueOf(v int32) *Integer {
	return &Integer{Value: v}
}

// BoxOptional boxes a present value and maps an absent one to nil, the
// host's null reference.
func BoxOptional(v *int32) *Integer {
	if v == nil {
		return nil
	}
	return IntegerValueOf(*v)
}

// IntValue returns the primitive value (unboxing).
func (i *Integer) IntValue() int32 {
	return i.Value
}

func (i *Integer) String() string {
	return strconv.FormatInt(int64(i.Value), 10)
}
