package classfile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStackMapTable(t *testing.T) {
	tests := []struct {
		name    string
		offsets []int
		want    []byte
	}{
		{"no targets", nil, []byte{0x00, 0x00}},
		{"single target", []int{7}, []byte{0x00, 0x01, 0x07}},
		{"two targets", []int{7, 17}, []byte{0x00, 0x02, 0x07, 0x09}},
		{"adjacent targets", []int{0, 1, 2}, []byte{0x00, 0x03, 0x00, 0x00, 0x00}},
		{"largest same_frame", []int{63}, []byte{0x00, 0x01, 0x3f}},
		{"extended first", []int{64}, []byte{0x00, 0x01, 0xfb, 0x00, 0x40}},
		{"extended delta", []int{3, 300}, []byte{0x00, 0x02, 0x03, 0xfb, 0x01, 0x28}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeStackMapTable(tt.offsets)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			frames, err := DecodeStackMapTable(got)
			require.NoError(t, err)
			require.Len(t, frames, len(tt.offsets))
			for i, f := range frames {
				assert.Equal(t, tt.offsets[i], f.Offset)
				assert.True(t, f.IsSame())
			}
		})
	}
}

func TestEncodeStackMapTableRejectsBadOffsets(t *testing.T) {
	for _, offsets := range [][]int{{7, 7}, {17, 7}, {-1}, {70000}} {
		_, err := EncodeStackMapTable(offsets)
		var encErr *EncodingError
		assert.True(t, errors.As(err, &encErr), "offsets %v: got %v", offsets, err)
	}
}

func TestJumpTargets(t *testing.T) {
	assert.Equal(t, []int{7, 17}, JumpTargets([]int{17, 7, 17, 7}))
	assert.Empty(t, JumpTargets(nil))
}

func TestDecodeStackMapTableFrameKinds(t *testing.T) {
	data := []byte{
		0x00, 0x05,
		0x04,             // same_frame at 4
		0x41, 0x01,       // same_locals_1_stack_item delta 1 -> 6, int on stack
		0xf9, 0x00, 0x02, // chop 2, delta 2 -> 9
		0xfc, 0x00, 0x00, 0x07, 0x00, 0x03, // append 1 Object #3, delta 0 -> 10
		0xff, 0x00, 0x01, 0x00, 0x01, 0x01, 0x00, 0x01, 0x05, // full, delta 1 -> 12
	}
	frames, err := DecodeStackMapTable(data)
	require.NoError(t, err)
	require.Len(t, frames, 5)

	assert.Equal(t, []int{4, 6, 9, 10, 12}, []int{
		frames[0].Offset, frames[1].Offset, frames[2].Offset, frames[3].Offset, frames[4].Offset,
	})
	assert.Equal(t, []VerificationType{{Tag: ItemInteger}}, frames[1].Stack)
	assert.Equal(t, 2, frames[2].Chop)
	assert.Equal(t, []VerificationType{{Tag: ItemObject, Index: 3}}, frames[3].Locals)
	assert.Equal(t, []VerificationType{{Tag: ItemInteger}}, frames[4].Locals)
	assert.Equal(t, []VerificationType{{Tag: ItemNull}}, frames[4].Stack)
	assert.False(t, frames[4].IsSame())
}

func TestDecodeStackMapTableErrors(t *testing.T) {
	tests := map[string][]byte{
		"empty":          {},
		"missing frame":  {0x00, 0x01},
		"reserved type":  {0x00, 0x01, 0x80},
		"trailing bytes": {0x00, 0x01, 0x07, 0x09},
		"bad item":       {0x00, 0x01, 0x40, 0x09},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeStackMapTable(data)
			assert.Error(t, err)
		})
	}
}
