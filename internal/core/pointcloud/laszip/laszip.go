// Package laszip decompresses LAZ point streams: the arithmetic-coded
// pointwise scheme of LAZ 1.2 (POINT10/GPSTIME11/RGB12/BYTE item
// readers) and the layered scheme of LAZ 1.4 (POINT14/RGB14) used by
// COPC chunks. It is a from-scratch port of the published LASzip
// coding scheme; only decoding is implemented.
package laszip

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Compressor schemes from the LASzip VLR.
const (
	CompressorPointwise        = 1
	CompressorPointwiseChunked = 2
	CompressorLayeredChunked   = 3
)

// Item types from the LASzip VLR.
const (
	ItemPoint10      = 6
	ItemGPSTime11    = 7
	ItemRGB12        = 8
	ItemByte         = 9
	ItemPoint14      = 10
	ItemRGB14        = 11
	ItemRGBNIR14     = 12
	ItemWavepacket14 = 13
	ItemByte14       = 14
)

const variableChunkSize = 0xFFFFFFFF

// Item describes one record slice of the compressed point schema.
type Item struct {
	Type    uint16
	Size    uint16
	Version uint16
}

// Point is a decoded point record reduced to what the viewer needs.
type Point struct {
	X, Y, Z   int32
	Intensity uint16
	R, G, B   uint16
	HasRGB    bool
}

// Header carries the LAS fields the decoder and its callers need.
type Header struct {
	VersionMajor      uint8
	VersionMinor      uint8
	HeaderSize        uint16
	OffsetToPointData uint32
	NumVLRs           uint32
	PointFormat       uint8
	RecordLength      uint16
	PointCount        uint64
	Scale             [3]float64
	Offset            [3]float64
	Min               [3]float64
	Max               [3]float64
}

// VLR is a variable length record of the LAS header block.
type VLR struct {
	UserID   string
	RecordID uint16
	Data     []byte
}

// File is an opened LAZ file ready for sequential decompression.
type File struct {
	Header     Header
	VLRs       []VLR
	Compressor uint16
	ChunkSize  uint32
	Items      []Item

	data           []byte
	pointDataStart int
}

// ParseHeader reads the fixed-offset LAS header block. The point data
// format byte is masked of the LAZ compression flags.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < 227 {
		return h, fmt.Errorf("las header: file too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != "LASF" {
		return h, fmt.Errorf("las header: bad signature %q", data[0:4])
	}

	le := binary.LittleEndian
	h.VersionMajor = data[24]
	h.VersionMinor = data[25]
	h.HeaderSize = le.Uint16(data[94:96])
	h.OffsetToPointData = le.Uint32(data[96:100])
	h.NumVLRs = le.Uint32(data[100:104])
	h.PointFormat = data[104] & 0x3F
	h.RecordLength = le.Uint16(data[105:107])
	h.PointCount = uint64(le.Uint32(data[107:111]))

	f64 := func(off int) float64 { return math.Float64frombits(le.Uint64(data[off : off+8])) }
	h.Scale = [3]float64{f64(131), f64(139), f64(147)}
	h.Offset = [3]float64{f64(155), f64(163), f64(171)}
	h.Max[0], h.Min[0] = f64(179), f64(187)
	h.Max[1], h.Min[1] = f64(195), f64(203)
	h.Max[2], h.Min[2] = f64(211), f64(219)

	// LAS 1.4 moves the real count past the legacy field.
	if h.PointCount == 0 && h.VersionMajor == 1 && h.VersionMinor >= 4 && len(data) >= 255 {
		h.PointCount = le.Uint64(data[247:255])
	}
	return h, nil
}

func parseVLRs(data []byte, h Header) []VLR {
	le := binary.LittleEndian
	var vlrs []VLR
	pos := int(h.HeaderSize)
	for i := uint32(0); i < h.NumVLRs; i++ {
		if pos+54 > len(data) {
			break
		}
		userID := trimNul(data[pos+2 : pos+18])
		recordID := le.Uint16(data[pos+18 : pos+20])
		recLen := int(le.Uint16(data[pos+20 : pos+22]))
		pos += 54
		if pos+recLen > len(data) {
			break
		}
		vlrs = append(vlrs, VLR{UserID: userID, RecordID: recordID, Data: data[pos : pos+recLen]})
		pos += recLen
	}
	return vlrs
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Open parses the LAS header and the LASzip VLR of a LAZ file.
func Open(data []byte) (*File, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	f := &File{Header: h, VLRs: parseVLRs(data, h), data: data}

	var lazVLR *VLR
	for i := range f.VLRs {
		if f.VLRs[i].UserID == "laszip encoded" && f.VLRs[i].RecordID == 22204 {
			lazVLR = &f.VLRs[i]
			break
		}
	}
	if lazVLR == nil {
		return nil, fmt.Errorf("laszip: no compression VLR (not a LAZ file?)")
	}
	if err := f.parseLazVLR(lazVLR.Data); err != nil {
		return nil, err
	}

	f.pointDataStart = int(h.OffsetToPointData)
	if f.Compressor == CompressorPointwiseChunked || f.Compressor == CompressorLayeredChunked {
		// Skip the chunk table offset; chunks are decoded in stream order.
		if f.pointDataStart+8 > len(data) {
			return nil, fmt.Errorf("laszip: truncated before chunk table offset")
		}
		f.pointDataStart += 8
	}
	return f, nil
}

func (f *File) parseLazVLR(payload []byte) error {
	le := binary.LittleEndian
	if len(payload) < 34 {
		return fmt.Errorf("laszip: short compression VLR (%d bytes)", len(payload))
	}
	f.Compressor = le.Uint16(payload[0:2])
	f.ChunkSize = le.Uint32(payload[12:16])
	numItems := int(le.Uint16(payload[32:34]))
	if len(payload) < 34+numItems*6 {
		return fmt.Errorf("laszip: compression VLR truncated")
	}
	f.Items = make([]Item, numItems)
	for i := 0; i < numItems; i++ {
		off := 34 + i*6
		f.Items[i] = Item{
			Type:    le.Uint16(payload[off : off+2]),
			Size:    le.Uint16(payload[off+2 : off+4]),
			Version: le.Uint16(payload[off+4 : off+6]),
		}
	}
	switch f.Compressor {
	case CompressorPointwise, CompressorPointwiseChunked, CompressorLayeredChunked:
		return nil
	default:
		return fmt.Errorf("laszip: unknown compressor %d", f.Compressor)
	}
}

// ReadPoints sequentially decompresses up to max points from the start
// of the point stream.
func (f *File) ReadPoints(max int) ([]Point, error) {
	if f.Header.PointCount > math.MaxInt32 {
		return nil, fmt.Errorf("laszip: implausible point count %d", f.Header.PointCount)
	}
	total := int(f.Header.PointCount)
	if max > 0 && total > max {
		total = max
	}
	if total <= 0 {
		return nil, fmt.Errorf("laszip: no points to read")
	}
	if f.pointDataStart >= len(f.data) {
		return nil, fmt.Errorf("laszip: point data offset beyond file")
	}

	chunkSize := int(f.ChunkSize)
	if f.Compressor == CompressorPointwise {
		chunkSize = int(f.Header.PointCount)
	}
	if uint32(chunkSize) == variableChunkSize || chunkSize <= 0 {
		if f.Compressor == CompressorLayeredChunked {
			return nil, fmt.Errorf("laszip: variable-size layered chunks need the spatial index reader")
		}
		chunkSize = int(f.Header.PointCount)
	}

	stream := newByteStream(f.data[f.pointDataStart:])
	out := make([]Point, 0, total)
	remaining := int(f.Header.PointCount)

	for len(out) < total && remaining > 0 {
		n := chunkSize
		if n > remaining {
			n = remaining
		}
		var (
			pts []Point
			err error
		)
		if f.Compressor == CompressorLayeredChunked {
			pts, err = decodeLayeredChunkStream(stream, f.Items, n)
		} else {
			pts, err = decodePointwiseChunkStream(stream, f.Items, n)
		}
		if err != nil {
			return nil, err
		}
		remaining -= n
		for _, p := range pts {
			out = append(out, p)
			if len(out) == total {
				break
			}
		}
	}
	return out, nil
}

// DecodeChunk decompresses one standalone chunk, as stored by COPC
// files where every hierarchy node owns an independent chunk.
func DecodeChunk(items []Item, compressor uint16, raw []byte, count int) ([]Point, error) {
	stream := newByteStream(raw)
	if compressor == CompressorLayeredChunked {
		return decodeLayeredChunkStream(stream, items, count)
	}
	return decodePointwiseChunkStream(stream, items, count)
}

// recordSize sums the native record bytes of the item schema.
func recordSize(items []Item) int {
	n := 0
	for _, it := range items {
		n += int(it.Size)
	}
	return n
}
