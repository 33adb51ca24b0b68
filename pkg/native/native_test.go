package native

import "testing"

func TestInteger(t *testing.T) {
	t.Run("valueOf and intValue roundtrip", func(t *testing.T) {
		boxed := IntegerValueOf(42)
		if got := boxed.IntValue(); got != 42 {
			t.Errorf("intValue(valueOf(42)): got %d, want 42", got)
		}
	})

	t.Run("valueOf preserves negative value", func(t *testing.T) {
		boxed := IntegerValueOf(-100)
		if got := boxed.IntValue(); got != -100 {
			t.Errorf("intValue(valueOf(-100)): got %d, want -100", got)
		}
	})

	t.Run("string form", func(t *testing.T) {
		if got := IntegerValueOf(-7).String(); got != "-7" {
			t.Errorf("String(): got %q, want %q", got, "-7")
		}
	})
}

func TestBoxOptional(t *testing.T) {
	if got := BoxOptional(nil); got != nil {
		t.Errorf("BoxOptional(nil): got %v, want nil", got)
	}

	v := int32(3)
	got := BoxOptional(&v)
	if got == nil || got.Value != 3 {
		t.Fatalf("BoxOptional(&3): got %v, want 3", got)
	}
	v = 9
	if got.Value != 3 {
		t.Error("BoxOptional must copy the value, not alias it")
	}
}
