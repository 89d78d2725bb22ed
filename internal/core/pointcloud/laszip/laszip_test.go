package laszip

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLASHeader assembles a minimal valid LAS header block.
func buildLASHeader(version [2]byte, format byte, recordLen uint16, count uint32, vlrs []byte, numVLRs uint32) []byte {
	h := make([]byte, 227)
	copy(h[0:4], "LASF")
	h[24] = version[0]
	h[25] = version[1]
	le := binary.LittleEndian
	le.PutUint16(h[94:96], 227)
	le.PutUint32(h[96:100], uint32(227+len(vlrs)))
	le.PutUint32(h[100:104], numVLRs)
	h[104] = format
	le.PutUint16(h[105:107], recordLen)
	le.PutUint32(h[107:111], count)
	for i, v := range []float64{0.01, 0.01, 0.01} {
		le.PutUint64(h[131+i*8:], math.Float64bits(v))
	}
	for i, v := range []float64{100, 200, 300} {
		le.PutUint64(h[155+i*8:], math.Float64bits(v))
	}
	// max/min pairs for x, y, z
	for i, v := range []float64{110, 90, 210, 190, 310, 290} {
		le.PutUint64(h[179+i*8:], math.Float64bits(v))
	}
	return append(h, vlrs...)
}

func buildVLR(userID string, recordID uint16, payload []byte) []byte {
	v := make([]byte, 54)
	copy(v[2:18], userID)
	binary.LittleEndian.PutUint16(v[18:20], recordID)
	binary.LittleEndian.PutUint16(v[20:22], uint16(len(payload)))
	return append(v, payload...)
}

func buildLazVLRPayload(compressor uint16, chunkSize uint32, items []Item) []byte {
	p := make([]byte, 34+len(items)*6)
	le := binary.LittleEndian
	le.PutUint16(p[0:2], compressor)
	le.PutUint32(p[12:16], chunkSize)
	le.PutUint16(p[32:34], uint16(len(items)))
	for i, it := range items {
		off := 34 + i*6
		le.PutUint16(p[off:], it.Type)
		le.PutUint16(p[off+2:], it.Size)
		le.PutUint16(p[off+4:], it.Version)
	}
	return p
}

func TestParseHeaderFixedOffsets(t *testing.T) {
	data := buildLASHeader([2]byte{1, 2}, 2, 26, 1234, nil, 0)

	h, err := ParseHeader(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(1), h.VersionMajor)
	assert.Equal(t, uint8(2), h.VersionMinor)
	assert.Equal(t, uint8(2), h.PointFormat)
	assert.Equal(t, uint16(26), h.RecordLength)
	assert.Equal(t, uint64(1234), h.PointCount)
	assert.Equal(t, [3]float64{0.01, 0.01, 0.01}, h.Scale)
	assert.Equal(t, [3]float64{100, 200, 300}, h.Offset)
	assert.Equal(t, 90.0, h.Min[0])
	assert.Equal(t, 110.0, h.Max[0])
	assert.Equal(t, 290.0, h.Min[2])
	assert.Equal(t, 310.0, h.Max[2])
}

func TestParseHeaderMasksCompressionBit(t *testing.T) {
	// LAZ files set the high bits of the format byte.
	data := buildLASHeader([2]byte{1, 2}, 0x80|3, 34, 10, nil, 0)
	h, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), h.PointFormat)
}

func TestParseHeaderExtendedCount(t *testing.T) {
	data := buildLASHeader([2]byte{1, 4}, 6, 30, 0, nil, 0)
	data = append(data, make([]byte, 375-len(data))...)
	binary.LittleEndian.PutUint64(data[247:255], 77)

	h, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), h.PointCount)
}

func TestParseHeaderRejectsBadSignature(t *testing.T) {
	data := buildLASHeader([2]byte{1, 2}, 0, 20, 1, nil, 0)
	copy(data[0:4], "ZIPF")
	_, err := ParseHeader(data)
	assert.ErrorContains(t, err, "bad signature")
}

func TestOpenParsesLazVLR(t *testing.T) {
	items := []Item{
		{Type: ItemPoint10, Size: 20, Version: 2},
		{Type: ItemRGB12, Size: 6, Version: 2},
	}
	vlr := buildVLR("laszip encoded", 22204, buildLazVLRPayload(CompressorPointwiseChunked, 50000, items))
	data := buildLASHeader([2]byte{1, 2}, 0x80|2, 26, 100, vlr, 1)
	// room for the chunk table offset
	data = append(data, make([]byte, 8)...)

	f, err := Open(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(CompressorPointwiseChunked), f.Compressor)
	assert.Equal(t, uint32(50000), f.ChunkSize)
	assert.Equal(t, items, f.Items)
	assert.Equal(t, 26, recordSize(f.Items))
}

func TestReadPointsRejectsImplausibleCount(t *testing.T) {
	items := []Item{{Type: ItemPoint10, Size: 20, Version: 2}}
	vlr := buildVLR("laszip encoded", 22204, buildLazVLRPayload(CompressorPointwise, 0, items))
	// a crafted count past MaxInt32 must not wrap into a negative int
	data := buildLASHeader([2]byte{1, 2}, 0x80, 20, 0xFFFFFFFF, vlr, 1)

	f, err := Open(data)
	require.NoError(t, err)
	_, err = f.ReadPoints(10)
	assert.ErrorContains(t, err, "implausible point count")
}

func TestOpenRejectsPlainLAS(t *testing.T) {
	data := buildLASHeader([2]byte{1, 2}, 2, 26, 100, nil, 0)
	_, err := Open(data)
	assert.ErrorContains(t, err, "no compression VLR")
}

func TestByteStreamZeroFillsPastEnd(t *testing.T) {
	s := newByteStream([]byte{0xAB})
	assert.Equal(t, byte(0xAB), s.u8())
	// decoder lookahead reads past the end without panicking
	assert.Equal(t, byte(0), s.u8())
	assert.Equal(t, uint32(0), s.u32())
	assert.Equal(t, 0, s.remaining())
}

func TestStreamingMedian5(t *testing.T) {
	var m streamingMedian5
	m.init()
	assert.Equal(t, int32(0), m.get())

	for i := 0; i < 5; i++ {
		m.add(42)
	}
	assert.Equal(t, int32(42), m.get())

	m.init()
	for _, v := range []int32{10, -4, 7, 3, 12} {
		m.add(v)
	}
	// the alternating insertion scheme settles on 3 for this sequence
	assert.Equal(t, int32(3), m.get())
}

func TestReturnContextTables(t *testing.T) {
	// symmetric tables with fixed anchor values
	assert.Equal(t, uint8(15), numberReturnMap[0][0])
	assert.Equal(t, uint8(0), numberReturnMap[1][1])
	assert.Equal(t, uint8(15), numberReturnMap[7][7])
	assert.Equal(t, uint8(0), numberReturnLevel[3][3])
	assert.Equal(t, uint8(7), numberReturnLevel[0][7])

	// extended tables: symmetric, bounded, with fixed anchor values
	assert.Equal(t, uint8(0), numberReturnMap6ctx[0][0])
	assert.Equal(t, uint8(0), numberReturnMap6ctx[1][1])
	assert.Equal(t, uint8(2), numberReturnMap6ctx[2][2])
	for n := 0; n < 16; n++ {
		for r := 0; r < 16; r++ {
			assert.Equal(t, numberReturnMap6ctx[n][r], numberReturnMap6ctx[r][n])
			assert.LessOrEqual(t, numberReturnMap6ctx[n][r], uint8(5))

			// elevation level is the return distance capped at 7
			d := n - r
			if d < 0 {
				d = -d
			}
			if d > 7 {
				d = 7
			}
			assert.Equal(t, uint8(d), numberReturnLevel8ctx[n][r])
		}
	}
}

func TestU8FoldAndClamp(t *testing.T) {
	assert.Equal(t, uint8(255), u8Fold(-1))
	assert.Equal(t, uint8(0), u8Fold(256))
	assert.Equal(t, uint8(40), u8Fold(40))
	assert.Equal(t, uint8(0), u8Clamp(-7))
	assert.Equal(t, uint8(255), u8Clamp(300))
	assert.Equal(t, uint8(200), u8Clamp(200))
}

func TestDecodePointwiseChunkSinglePoint(t *testing.T) {
	// A one-point chunk is just the raw record, no coder init bytes.
	items := []Item{{Type: ItemPoint10, Size: 20, Version: 2}, {Type: ItemRGB12, Size: 6, Version: 2}}
	raw := make([]byte, 26)
	le := binary.LittleEndian
	yVal := int32(-200)
	le.PutUint32(raw[0:4], uint32(int32(1500)))
	le.PutUint32(raw[4:8], uint32(yVal))
	le.PutUint32(raw[8:12], uint32(int32(30)))
	le.PutUint16(raw[12:14], 512)
	le.PutUint16(raw[20:22], 65535)
	le.PutUint16(raw[22:24], 128)
	le.PutUint16(raw[24:26], 0)

	pts, err := decodePointwiseChunkStream(newByteStream(raw), items, 1)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, int32(1500), pts[0].X)
	assert.Equal(t, int32(-200), pts[0].Y)
	assert.Equal(t, int32(30), pts[0].Z)
	assert.Equal(t, uint16(512), pts[0].Intensity)
	assert.True(t, pts[0].HasRGB)
	assert.Equal(t, uint16(65535), pts[0].R)
	assert.Equal(t, uint16(128), pts[0].G)
}

func TestDecodePointwiseChunkTruncated(t *testing.T) {
	items := []Item{{Type: ItemPoint10, Size: 20, Version: 2}}
	_, err := decodePointwiseChunkStream(newByteStream(make([]byte, 5)), items, 2)
	assert.ErrorContains(t, err, "truncated chunk")
}
