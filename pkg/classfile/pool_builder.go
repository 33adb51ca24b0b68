package classfile

import (
	"unicode/utf8"
)

// MemberRef names a method by owner class, name and descriptor.
type MemberRef struct {
	Owner      string
	Name       string
	Descriptor string
}

type poolKey struct {
	tag  uint8
	s    string
	a, b uint16
}

// PoolBuilder interns constant pool entries. Interning the same value twice
// returns the same index, and dependencies are interned before the entry
// that refers to them.
type PoolBuilder struct {
	entries []ConstantPoolEntry
	lookup  map[poolKey]uint16
}

// NewPoolBuilder returns an empty pool. Slot 0 is reserved.
func NewPoolBuilder() *PoolBuilder {
	return &PoolBuilder{
		entries: make([]ConstantPoolEntry, 1),
		lookup:  make(map[poolKey]uint16),
	}
}

func (p *PoolBuilder) intern(key poolKey, entry ConstantPoolEntry) (uint16, error) {
	if idx, ok := p.lookup[key]; ok {
		return idx, nil
	}
	if len(p.entries) >= 0xFFFF {
		return 0, encodingErrorf("constant pool", "more than %d entries", 0xFFFE)
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, entry)
	p.lookup[key] = idx
	return idx, nil
}

// Utf8 interns a CONSTANT_Utf8 entry. Only text whose modified UTF-8 form
// equals its standard UTF-8 form is accepted: no NUL and no supplementary
// characters.
func (p *PoolBuilder) Utf8(s string) (uint16, error) {
	if len(s) > 0xFFFF {
		return 0, encodingErrorf("Utf8", "%d bytes exceed u2 length", len(s))
	}
	if !utf8.ValidString(s) {
		return 0, encodingErrorf("Utf8", "%q is not valid UTF-8", s)
	}
	for _, r := range s {
		if r == 0 || r > 0xFFFF {
			return 0, encodingErrorf("Utf8", "%q needs modified UTF-8", s)
		}
	}
	return p.intern(poolKey{tag: TagUtf8, s: s}, &ConstantUtf8{Value: s})
}

// Class interns a CONSTANT_Class entry for an internal class name.
func (p *PoolBuilder) Class(name string) (uint16, error) {
	if name == "" {
		return 0, encodingErrorf("Class", "empty class name")
	}
	nameIdx, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	return p.intern(poolKey{tag: TagClass, a: nameIdx}, &ConstantClass{NameIndex: nameIdx})
}

// NameAndType interns a CONSTANT_NameAndType entry.
func (p *PoolBuilder) NameAndType(name, descriptor string) (uint16, error) {
	nameIdx, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	descIdx, err := p.Utf8(descriptor)
	if err != nil {
		return 0, err
	}
	return p.intern(poolKey{tag: TagNameAndType, a: nameIdx, b: descIdx},
		&ConstantNameAndType{NameIndex: nameIdx, DescriptorIndex: descIdx})
}

// Methodref interns a CONSTANT_Methodref entry.
func (p *PoolBuilder) Methodref(ref MemberRef) (uint16, error) {
	if _, err := ParseMethodDescriptor(ref.Descriptor); err != nil {
		return 0, encodingErrorf("Methodref", "%s.%s: %v", ref.Owner, ref.Name, err)
	}
	classIdx, err := p.Class(ref.Owner)
	if err != nil {
		return 0, err
	}
	natIdx, err := p.NameAndType(ref.Name, ref.Descriptor)
	if err != nil {
		return 0, err
	}
	return p.intern(poolKey{tag: TagMethodref, a: classIdx, b: natIdx},
		&ConstantMethodref{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
}

// Count returns constant_pool_count: the number of entries plus one.
func (p *PoolBuilder) Count() uint16 {
	return uint16(len(p.entries))
}

// Entries returns the 1-indexed pool. Slot 0 is nil.
func (p *PoolBuilder) Entries() []ConstantPoolEntry {
	return p.entries
}

// write emits constant_pool_count and every entry after checking that all
// back-references resolve to entries of the expected kind.
func (p *PoolBuilder) write(w *byteWriter) error {
	if errs := CheckReferences(p.entries); len(errs) > 0 {
		return encodingErrorf("constant pool", "%v", errs[0])
	}
	w.u2(p.Count())
	for _, e := range p.entries[1:] {
		w.u1(e.Tag())
		switch c := e.(type) {
		case *ConstantUtf8:
			w.u2(uint16(len(c.Value)))
			w.raw([]byte(c.Value))
		case *ConstantClass:
			w.u2(c.NameIndex)
		case *ConstantNameAndType:
			w.u2(c.NameIndex)
			w.u2(c.DescriptorIndex)
		case *ConstantMethodref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		default:
			return encodingErrorf("constant pool", "cannot write %s entry", TagName(e.Tag()))
		}
	}
	return nil
}
