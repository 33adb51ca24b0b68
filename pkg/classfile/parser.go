package classfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ParseBytes parses an in-memory class file.
func ParseBytes(b []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(b))
}

// Parse reads a .class file from the given reader and returns a ClassFile.
// The reader must hold exactly one class file; trailing bytes are an error.
func Parse(r io.Reader) (*ClassFile, error) {
	cf := &ClassFile{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	var header [3]uint16
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("reading access flags, this_class and super_class: %w", err)
	}
	cf.AccessFlags, cf.ThisClass, cf.SuperClass = header[0], header[1], header[2]

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	if err := binary.Read(r, binary.BigEndian, cf.Interfaces); err != nil {
		return nil, fmt.Errorf("reading interfaces: %w", err)
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	cf.Fields, err = parseFields(r, cf.ConstantPool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	cf.Methods, err = parseMethods(r, cf.ConstantPool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	var attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return nil, fmt.Errorf("reading class attributes count: %w", err)
	}
	cf.Attributes, err = parseAttributeInfos(r, cf.ConstantPool, attrCount)
	if err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	var extra [1]byte
	if n, err := r.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("trailing bytes after class attributes")
	} else if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("checking for trailing bytes: %w", err)
	}

	return cf, nil
}

// memberHeader is the fixed prefix shared by field_info and method_info.
type memberHeader struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	AttrCount       uint16
}

func readMember(r io.Reader, pool []ConstantPoolEntry, kind string, i uint16) (memberHeader, string, string, []AttributeInfo, error) {
	var h memberHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return h, "", "", nil, fmt.Errorf("reading %s %d header: %w", kind, i, err)
	}
	name, err := GetUtf8(pool, h.NameIndex)
	if err != nil {
		return h, "", "", nil, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
	}
	desc, err := GetUtf8(pool, h.DescriptorIndex)
	if err != nil {
		return h, "", "", nil, fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
	}
	attrs, err := parseAttributeInfos(r, pool, h.AttrCount)
	if err != nil {
		return h, "", "", nil, fmt.Errorf("parsing %s %d attributes: %w", kind, i, err)
	}
	return h, name, desc, attrs, nil
}

func parseFields(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := uint16(0); i < count; i++ {
		h, name, desc, attrs, err := readMember(r, pool, "field", i)
		if err != nil {
			return nil, err
		}
		fields[i] = FieldInfo{
			AccessFlags: h.AccessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := uint16(0); i < count; i++ {
		h, name, desc, attrs, err := readMember(r, pool, "method", i)
		if err != nil {
			return nil, err
		}

		m := MethodInfo{
			AccessFlags:     h.AccessFlags,
			NameIndex:       h.NameIndex,
			DescriptorIndex: h.DescriptorIndex,
			Name:            name,
			Descriptor:      desc,
			Attributes:      attrs,
		}

		for _, attr := range attrs {
			if attr.Name == AttrCode {
				if m.Code != nil {
					return nil, fmt.Errorf("method %s has more than one Code attribute", name)
				}
				code, err := parseCodeAttribute(attr.Data, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
				}
				m.Code = code
			}
		}

		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data (%d bytes): %w", i, length, err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}

		attrs[i] = AttributeInfo{NameIndex: nameIndex, Name: name, Data: data}
	}
	return attrs, nil
}

// parseCodeAttribute decodes a Code attribute payload. The payload must be
// consumed exactly: a declared attribute_length that disagrees with the
// nested lengths is rejected.
func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	r := bytes.NewReader(data)

	var head struct {
		MaxStack   uint16
		MaxLocals  uint16
		CodeLength uint32
	}
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}
	if int64(head.CodeLength) > int64(r.Len()) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", head.CodeLength)
	}
	code := make([]byte, head.CodeLength)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}

	var exTableLen uint16
	if err := binary.Read(r, binary.BigEndian, &exTableLen); err != nil {
		return nil, fmt.Errorf("reading exception table length: %w", err)
	}
	handlers := make([]ExceptionHandler, exTableLen)
	if err := binary.Read(r, binary.BigEndian, handlers); err != nil {
		return nil, fmt.Errorf("reading exception table: %w", err)
	}

	var attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return nil, fmt.Errorf("reading Code attributes count: %w", err)
	}
	attrs, err := parseAttributeInfos(r, pool, attrCount)
	if err != nil {
		return nil, fmt.Errorf("parsing Code attributes: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("Code attribute has %d unread bytes", r.Len())
	}

	ca := &CodeAttribute{
		MaxStack:          head.MaxStack,
		MaxLocals:         head.MaxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
		Attributes:        attrs,
	}
	for _, attr := range attrs {
		if attr.Name != AttrStackMapTable {
			continue
		}
		if ca.StackMap != nil {
			return nil, fmt.Errorf("more than one StackMapTable attribute")
		}
		frames, err := DecodeStackMapTable(attr.Data)
		if err != nil {
			return nil, fmt.Errorf("parsing StackMapTable: %w", err)
		}
		ca.StackMap = frames
	}
	return ca, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindMethodByName finds a method by name only (first match).
func (cf *ClassFile) FindMethodByName(name string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name {
			return &cf.Methods[i]
		}
	}
	return nil
}
