// Package pointcloud turns LAS, LAZ and COPC payloads into the compact
// binary buffer the browser viewer consumes.
package pointcloud

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a decoded point set in viewer space: positions are float32
// triplets centered on the cloud, colors are one byte per channel.
type Buffer struct {
	Count     int
	Positions []float32
	Colors    []uint8
}

// EncodeWire serializes the buffer into the viewer wire format: a
// little-endian uint32 point count, then all positions, then all colors.
func (b *Buffer) EncodeWire() []byte {
	out := make([]byte, 4+b.Count*12+b.Count*3)
	binary.LittleEndian.PutUint32(out[0:4], uint32(b.Count))
	off := 4
	for _, v := range b.Positions {
		binary.LittleEndian.PutUint32(out[off:off+4], math.Float32bits(v))
		off += 4
	}
	copy(out[off:], b.Colors)
	return out
}

// DecodeWire parses a wire payload back into a buffer.
func DecodeWire(data []byte) (*Buffer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("point buffer: short payload (%d bytes)", len(data))
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	want := 4 + count*12 + count*3
	if len(data) < want {
		return nil, fmt.Errorf("point buffer: %d points need %d bytes, have %d", count, want, len(data))
	}
	b := &Buffer{
		Count:     count,
		Positions: make([]float32, count*3),
		Colors:    make([]uint8, count*3),
	}
	off := 4
	for i := range b.Positions {
		b.Positions[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
	}
	copy(b.Colors, data[off:])
	return b, nil
}
