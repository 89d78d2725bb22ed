package pointcloud

import (
	"encoding/binary"
	"fmt"

	"github.com/victoryforphil/cursed-next-odm/internal/core/pointcloud/laszip"
)

// rgbOffsets maps the point data formats that carry color to the byte
// offset of the 16-bit RGB triplet inside the point record.
var rgbOffsets = map[uint8]int{
	2:  20,
	3:  28,
	5:  28,
	7:  30,
	8:  30,
	10: 30,
}

// DecodeLAS decodes an uncompressed LAS payload into a viewer buffer,
// keeping at most maxPoints points from the start of the record block.
func DecodeLAS(data []byte, maxPoints int) (*Buffer, error) {
	h, err := laszip.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if data[104]&0x80 != 0 {
		return nil, fmt.Errorf("las: point records are laszip-compressed")
	}
	stride := int(h.RecordLength)
	if stride < 20 {
		return nil, fmt.Errorf("las: point record length %d too small", stride)
	}
	start := int(h.OffsetToPointData)
	if start >= len(data) {
		return nil, fmt.Errorf("las: point data offset %d beyond file of %d bytes", start, len(data))
	}

	// Clamp by the bytes actually present before trusting the header
	// count, which is attacker-controlled and 64-bit.
	count := (len(data) - start) / stride
	if h.PointCount < uint64(count) {
		count = int(h.PointCount)
	}
	if maxPoints > 0 && count > maxPoints {
		count = maxPoints
	}
	if count == 0 {
		return nil, fmt.Errorf("las: no point records")
	}

	rgbOff, hasRGB := rgbOffsets[h.PointFormat]
	if hasRGB && stride < rgbOff+6 {
		hasRGB = false
	}

	center := boundsCenter(h)
	le := binary.LittleEndian
	buf := &Buffer{
		Count:     count,
		Positions: make([]float32, 0, count*3),
		Colors:    make([]uint8, 0, count*3),
	}

	for i := 0; i < count; i++ {
		rec := data[start+i*stride:]
		wx := float64(int32(le.Uint32(rec[0:4])))*h.Scale[0] + h.Offset[0]
		wy := float64(int32(le.Uint32(rec[4:8])))*h.Scale[1] + h.Offset[1]
		wz := float64(int32(le.Uint32(rec[8:12])))*h.Scale[2] + h.Offset[2]
		buf.appendPosition(wx, wy, wz, center)

		if hasRGB {
			buf.Colors = append(buf.Colors,
				uint8(le.Uint16(rec[rgbOff:rgbOff+2])>>8),
				uint8(le.Uint16(rec[rgbOff+2:rgbOff+4])>>8),
				uint8(le.Uint16(rec[rgbOff+4:rgbOff+6])>>8))
		} else {
			buf.appendRampColor(wz, h.Min[2], h.Max[2])
		}
	}
	return buf, nil
}

// boundsCenter is the midpoint of the header bounding box, the anchor
// the viewer-space coordinates are taken relative to.
func boundsCenter(h laszip.Header) [3]float64 {
	return [3]float64{
		(h.Min[0] + h.Max[0]) / 2,
		(h.Min[1] + h.Max[1]) / 2,
		(h.Min[2] + h.Max[2]) / 2,
	}
}

// appendPosition maps one world coordinate into viewer space: centered
// on the cloud, elevation up, depth negated so north faces the camera.
func (b *Buffer) appendPosition(wx, wy, wz float64, center [3]float64) {
	b.Positions = append(b.Positions,
		float32(wx-center[0]),
		float32(wz-center[2]),
		float32(-(wy - center[1])))
}

// appendRampColor colors a point by elevation, blue at the bottom of
// the cloud through green to red at the top.
func (b *Buffer) appendRampColor(z, minZ, maxZ float64) {
	t := 0.5
	if maxZ > minZ {
		t = (z - minZ) / (maxZ - minZ)
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	var r, g, bb float64
	if t < 0.5 {
		bb = 1 - 2*t
		g = 2 * t
	} else {
		g = 2 - 2*t
		r = 2*t - 1
	}
	b.Colors = append(b.Colors, uint8(r*255), uint8(g*255), uint8(bb*255))
}

// appendDecoded maps decoded LAZ points into the buffer around an
// explicit center.
func (b *Buffer) appendDecoded(pts []laszip.Point, h laszip.Header, center [3]float64) {
	for _, p := range pts {
		wx := float64(p.X)*h.Scale[0] + h.Offset[0]
		wy := float64(p.Y)*h.Scale[1] + h.Offset[1]
		wz := float64(p.Z)*h.Scale[2] + h.Offset[2]
		b.appendPosition(wx, wy, wz, center)
		if p.HasRGB {
			b.Colors = append(b.Colors, uint8(p.R>>8), uint8(p.G>>8), uint8(p.B>>8))
		} else {
			b.appendRampColor(wz, h.Min[2], h.Max[2])
		}
	}
	b.Count = len(b.Positions) / 3
}
