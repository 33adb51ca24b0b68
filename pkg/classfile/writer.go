package classfile

import (
	"bytes"
	"encoding/binary"
)

// byteWriter accumulates big-endian class file data. Writes to a
// bytes.Buffer cannot fail, so the helpers do not return errors.
type byteWriter struct {
	buf bytes.Buffer
}

func newByteWriter() *byteWriter {
	return &byteWriter{}
}

func (w *byteWriter) u1(v uint8) {
	w.buf.WriteByte(v)
}

func (w *byteWriter) u2(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *byteWriter) u4(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *byteWriter) raw(b []byte) {
	w.buf.Write(b)
}

func (w *byteWriter) len() int {
	return w.buf.Len()
}

func (w *byteWriter) bytes() []byte {
	return w.buf.Bytes()
}

// attribute writes name_index, a u4 attribute_length computed from payload,
// and the payload itself.
func (w *byteWriter) attribute(nameIndex uint16, payload []byte) error {
	if uint64(len(payload)) > 0xFFFFFFFF {
		return encodingErrorf("attribute", "payload of %d bytes exceeds u4", len(payload))
	}
	w.u2(nameIndex)
	w.u4(uint32(len(payload)))
	w.raw(payload)
	return nil
}
