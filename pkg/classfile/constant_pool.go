package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// TagName returns a human readable name for a constant pool tag.
func TagName(tag uint8) string {
	switch tag {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	}
	return fmt.Sprintf("tag(%d)", tag)
}

// placeholderWidth is the payload size of tags that are skipped rather than modelled.
var placeholderWidth = map[uint8]int{
	TagFloat:              4,
	TagLong:               8,
	TagDouble:             8,
	TagFieldref:           4,
	TagInterfaceMethodref: 4,
	TagMethodHandle:       3,
	TagMethodType:         2,
	TagDynamic:            4,
	TagInvokeDynamic:      4,
}

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	if count == 0 {
		return nil, fmt.Errorf("constant pool count must be at least 1")
	}
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			bytes := make([]byte, length)
			if _, err := io.ReadFull(r, bytes); err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			pool[i] = &ConstantUtf8{Value: string(bytes)}

		case TagInteger:
			var val int32
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Integer at index %d: %w", i, err)
			}
			pool[i] = &ConstantInteger{Value: val}

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Class at index %d: %w", i, err)
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, fmt.Errorf("reading String at index %d: %w", i, err)
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagMethodref:
			var refs [2]uint16
			if err := binary.Read(r, binary.BigEndian, &refs); err != nil {
				return nil, fmt.Errorf("reading Methodref at index %d: %w", i, err)
			}
			pool[i] = &ConstantMethodref{ClassIndex: refs[0], NameAndTypeIndex: refs[1]}

		case TagNameAndType:
			var refs [2]uint16
			if err := binary.Read(r, binary.BigEndian, &refs); err != nil {
				return nil, fmt.Errorf("reading NameAndType at index %d: %w", i, err)
			}
			pool[i] = &ConstantNameAndType{NameIndex: refs[0], DescriptorIndex: refs[1]}

		default:
			width, ok := placeholderWidth[tag]
			if !ok {
				return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
			}
			if _, err := io.CopyN(io.Discard, r, int64(width)); err != nil {
				return nil, fmt.Errorf("reading %s at index %d: %w", TagName(tag), i, err)
			}
			pool[i] = &constantPlaceholder{tag: tag}
			if tag == TagLong || tag == TagDouble {
				i++ // 8-byte constants take 2 slots
			}
		}
	}

	return pool, nil
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

// Entry returns the pool entry at index, checking it carries the wanted tag.
func Entry(pool []ConstantPoolEntry, index uint16, tag uint8) (ConstantPoolEntry, error) {
	if index == 0 || int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d (pool size %d)", index, len(pool))
	}
	if got := pool[index].Tag(); got != tag {
		return nil, fmt.Errorf("constant pool index %d is %s, want %s", index, TagName(got), TagName(tag))
	}
	return pool[index], nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	e, err := Entry(pool, index, TagUtf8)
	if err != nil {
		return "", err
	}
	return e.(*ConstantUtf8).Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	e, err := Entry(pool, classIndex, TagClass)
	if err != nil {
		return "", err
	}
	return GetUtf8(pool, e.(*ConstantClass).NameIndex)
}

// GetNameAndType resolves a CONSTANT_NameAndType entry.
func GetNameAndType(pool []ConstantPoolEntry, index uint16) (name, descriptor string, err error) {
	e, err := Entry(pool, index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	nat := e.(*ConstantNameAndType)
	if name, err = GetUtf8(pool, nat.NameIndex); err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	if descriptor, err = GetUtf8(pool, nat.DescriptorIndex); err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, descriptor, nil
}

// MethodRefInfo holds resolved method reference info.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
}

func (m *MethodRefInfo) String() string {
	return m.ClassName + "." + m.MethodName + ":" + m.Descriptor
}

// ResolveMethodref resolves a CONSTANT_Methodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	e, err := Entry(pool, index, TagMethodref)
	if err != nil {
		return nil, err
	}
	mref := e.(*ConstantMethodref)

	className, err := GetClassName(pool, mref.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Methodref class: %w", err)
	}
	methodName, descriptor, err := GetNameAndType(pool, mref.NameAndTypeIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving Methodref name and type: %w", err)
	}

	return &MethodRefInfo{
		ClassName:  className,
		MethodName: methodName,
		Descriptor: descriptor,
	}, nil
}

// CheckReferences validates every index held by pool entries: it must be in
// range and point at an entry of the kind the referencing entry expects.
func CheckReferences(pool []ConstantPoolEntry) []error {
	var errs []error
	check := func(at, index uint16, tag uint8) {
		if _, err := Entry(pool, index, tag); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", at, err))
		}
	}
	for i, e := range pool {
		at := uint16(i)
		switch c := e.(type) {
		case *ConstantClass:
			check(at, c.NameIndex, TagUtf8)
		case *ConstantString:
			check(at, c.StringIndex, TagUtf8)
		case *ConstantNameAndType:
			check(at, c.NameIndex, TagUtf8)
			check(at, c.DescriptorIndex, TagUtf8)
		case *ConstantMethodref:
			check(at, c.ClassIndex, TagClass)
			check(at, c.NameAndTypeIndex, TagNameAndType)
		}
	}
	return errs
}
