package classfile

import (
	"testing"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc   string
		params []string
		ret    string
		slots  int
	}{
		{"(Ljava/lang/Integer;)Z", []string{"Ljava/lang/Integer;"}, "Z", 1},
		{"()I", nil, "I", 0},
		{"(II)I", []string{"I", "I"}, "I", 2},
		{"([Ljava/lang/String;)V", []string{"[Ljava/lang/String;"}, "V", 1},
		{"(JI[[D)Ljava/lang/Object;", []string{"J", "I", "[[D"}, "Ljava/lang/Object;", 4},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			d, err := ParseMethodDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("ParseMethodDescriptor(%q): %v", tt.desc, err)
			}
			if len(d.Params) != len(tt.params) {
				t.Fatalf("params: got %v, want %v", d.Params, tt.params)
			}
			for i := range tt.params {
				if d.Params[i] != tt.params[i] {
					t.Errorf("param %d: got %q, want %q", i, d.Params[i], tt.params[i])
				}
			}
			if d.Return != tt.ret {
				t.Errorf("return: got %q, want %q", d.Return, tt.ret)
			}
			if d.Slots() != tt.slots {
				t.Errorf("slots: got %d, want %d", d.Slots(), tt.slots)
			}
		})
	}
}

func TestParseMethodDescriptorInvalid(t *testing.T) {
	for _, desc := range []string{"", "I", "(I", "(I)", "(Q)V", "(Ljava/lang/Integer)Z", "(L;)V", "()VV", "([)V"} {
		if _, err := ParseMethodDescriptor(desc); err == nil {
			t.Errorf("ParseMethodDescriptor(%q): expected error, got nil", desc)
		}
	}
}

func TestFieldTypeKinds(t *testing.T) {
	if !IsReference("Ljava/lang/Integer;") || !IsReference("[I") || IsReference("I") {
		t.Error("IsReference misclassified a type")
	}
	if !IsIntLike("Z") || !IsIntLike("I") || IsIntLike("J") || IsIntLike("Ljava/lang/Integer;") {
		t.Error("IsIntLike misclassified a type")
	}
}
