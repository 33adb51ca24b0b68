package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Stack map frame type ranges (JVMS §4.7.4).
const (
	FrameSameMax             = 63
	FrameSameLocals1StackMax = 127
	FrameSameLocals1Extended = 247
	FrameChopMin             = 248
	FrameChopMax             = 250
	FrameSameExtended        = 251
	FrameAppendMin           = 252
	FrameAppendMax           = 254
	FrameFull                = 255
)

// Verification type tags.
const (
	ItemTop               = 0
	ItemInteger           = 1
	ItemFloat             = 2
	ItemDouble            = 3
	ItemLong              = 4
	ItemNull              = 5
	ItemUninitializedThis = 6
	ItemObject            = 7
	ItemUninitialized     = 8
)

// VerificationType is one verification_type_info entry. Index is the class
// pool index for ItemObject and the code offset for ItemUninitialized.
type VerificationType struct {
	Tag   uint8
	Index uint16
}

// StackMapFrame is a decoded stack map frame with its absolute code offset.
type StackMapFrame struct {
	Type   uint8
	Offset int
	Locals []VerificationType // appended locals, or all locals for a full frame
	Stack  []VerificationType
	Chop   int
}

// IsSame reports whether the frame keeps the previous locals and has an empty stack.
func (f StackMapFrame) IsSame() bool {
	return f.Type <= FrameSameMax || f.Type == FrameSameExtended
}

// EncodeStackMapTable returns the StackMapTable attribute payload
// (number_of_entries followed by frames) declaring an empty operand stack
// and unchanged locals at each offset. The first frame's offset_delta is the
// offset itself, every later one is the distance from the previous target
// minus one. Offsets must be strictly ascending.
func EncodeStackMapTable(offsets []int) ([]byte, error) {
	if len(offsets) > 0xFFFF {
		return nil, &EncodingError{Field: "StackMapTable", Reason: fmt.Sprintf("%d frames exceed u2", len(offsets))}
	}
	w := newByteWriter()
	w.u2(uint16(len(offsets)))
	prev := -1
	for i, off := range offsets {
		if off < 0 || off > 0xFFFF {
			return nil, &EncodingError{Field: "StackMapTable", Reason: fmt.Sprintf("frame %d offset %d out of range", i, off)}
		}
		if off <= prev {
			return nil, &EncodingError{Field: "StackMapTable", Reason: fmt.Sprintf("frame %d offset %d not after %d", i, off, prev)}
		}
		delta := off - prev - 1
		if i == 0 {
			delta = off
		}
		if delta <= FrameSameMax {
			w.u1(uint8(delta))
		} else {
			w.u1(FrameSameExtended)
			w.u2(uint16(delta))
		}
		prev = off
	}
	return w.bytes(), nil
}

// JumpTargets returns the sorted, de-duplicated set of offsets.
func JumpTargets(offsets []int) []int {
	out := append([]int(nil), offsets...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}

// DecodeStackMapTable parses a StackMapTable attribute payload and resolves
// each frame's absolute offset.
func DecodeStackMapTable(data []byte) ([]StackMapFrame, error) {
	r := bytes.NewReader(data)
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("reading frame count: %w", err)
	}

	frames := make([]StackMapFrame, 0, count)
	prev := -1
	for i := uint16(0); i < count; i++ {
		frameType, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading frame %d type: %w", i, err)
		}
		f := StackMapFrame{Type: frameType}
		var delta int

		switch {
		case frameType <= FrameSameMax:
			delta = int(frameType)
		case frameType <= FrameSameLocals1StackMax:
			delta = int(frameType) - 64
			vt, err := readVerificationType(r)
			if err != nil {
				return nil, fmt.Errorf("frame %d stack item: %w", i, err)
			}
			f.Stack = []VerificationType{vt}
		case frameType < FrameSameLocals1Extended:
			return nil, fmt.Errorf("frame %d: reserved frame type %d", i, frameType)
		default:
			var d uint16
			if err := binary.Read(r, binary.BigEndian, &d); err != nil {
				return nil, fmt.Errorf("reading frame %d offset_delta: %w", i, err)
			}
			delta = int(d)
			switch {
			case frameType == FrameSameLocals1Extended:
				vt, err := readVerificationType(r)
				if err != nil {
					return nil, fmt.Errorf("frame %d stack item: %w", i, err)
				}
				f.Stack = []VerificationType{vt}
			case frameType <= FrameChopMax:
				f.Chop = FrameSameExtended - int(frameType)
			case frameType == FrameSameExtended:
			case frameType <= FrameAppendMax:
				if f.Locals, err = readVerificationTypes(r, int(frameType)-FrameSameExtended); err != nil {
					return nil, fmt.Errorf("frame %d locals: %w", i, err)
				}
			default:
				var n uint16
				if err := binary.Read(r, binary.BigEndian, &n); err != nil {
					return nil, fmt.Errorf("frame %d locals count: %w", i, err)
				}
				if f.Locals, err = readVerificationTypes(r, int(n)); err != nil {
					return nil, fmt.Errorf("frame %d locals: %w", i, err)
				}
				if err := binary.Read(r, binary.BigEndian, &n); err != nil {
					return nil, fmt.Errorf("frame %d stack count: %w", i, err)
				}
				if f.Stack, err = readVerificationTypes(r, int(n)); err != nil {
					return nil, fmt.Errorf("frame %d stack: %w", i, err)
				}
			}
		}

		if i == 0 {
			f.Offset = delta
		} else {
			f.Offset = prev + delta + 1
		}
		prev = f.Offset
		frames = append(frames, f)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d unread bytes after %d frames", r.Len(), count)
	}
	return frames, nil
}

func readVerificationTypes(r io.ByteReader, n int) ([]VerificationType, error) {
	out := make([]VerificationType, n)
	for i := range out {
		vt, err := readVerificationType(r)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

func readVerificationType(r io.ByteReader) (VerificationType, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return VerificationType{}, err
	}
	vt := VerificationType{Tag: tag}
	switch {
	case tag == ItemObject || tag == ItemUninitialized:
		hi, err := r.ReadByte()
		if err != nil {
			return vt, err
		}
		lo, err := r.ReadByte()
		if err != nil {
			return vt, err
		}
		vt.Index = uint16(hi)<<8 | uint16(lo)
	case tag > ItemUninitialized:
		return vt, fmt.Errorf("unknown verification type %d", tag)
	}
	return vt, nil
}
