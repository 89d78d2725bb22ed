package laszip

import (
	"encoding/binary"
	"fmt"
)

// itemReader decodes one compressed item record per read call and
// exposes the current native record bytes.
type itemReader interface {
	read()
	last() []byte
}

func newPointwiseItemReader(dec *decoder, it Item, first []byte) (itemReader, error) {
	switch it.Type {
	case ItemPoint10:
		if it.Version != 2 {
			return nil, fmt.Errorf("laszip: POINT10 version %d not supported", it.Version)
		}
		return newPoint10Reader(dec, first), nil
	case ItemGPSTime11:
		if it.Version != 2 {
			return nil, fmt.Errorf("laszip: GPSTIME11 version %d not supported", it.Version)
		}
		return newGPSTime11Reader(dec, first), nil
	case ItemRGB12:
		if it.Version != 2 {
			return nil, fmt.Errorf("laszip: RGB12 version %d not supported", it.Version)
		}
		return newRGB12Reader(dec, first), nil
	case ItemByte:
		if it.Version != 2 {
			return nil, fmt.Errorf("laszip: BYTE version %d not supported", it.Version)
		}
		return newByteReader(dec, first), nil
	default:
		return nil, fmt.Errorf("laszip: item type %d not supported by the pointwise reader", it.Type)
	}
}

// decodePointwiseChunkStream decodes one pointwise-compressed chunk in
// place: the first point is stored raw, the arithmetic decoder starts
// right after it.
func decodePointwiseChunkStream(s *byteStream, items []Item, count int) ([]Point, error) {
	if count <= 0 {
		return nil, nil
	}
	if s.remaining() < recordSize(items) {
		return nil, fmt.Errorf("laszip: truncated chunk (%d bytes left, need %d for the raw point)", s.remaining(), recordSize(items))
	}

	raws := make([][]byte, len(items))
	for i, it := range items {
		raws[i] = s.bytes(int(it.Size))
	}

	out := make([]Point, 0, count)
	out = append(out, assembleRaw(items, raws))
	if count == 1 {
		return out, nil
	}

	dec := newDecoder(s)
	readers := make([]itemReader, len(items))
	for i, it := range items {
		r, err := newPointwiseItemReader(dec, it, raws[i])
		if err != nil {
			return nil, err
		}
		readers[i] = r
	}

	for p := 1; p < count; p++ {
		lasts := make([][]byte, len(readers))
		for i, r := range readers {
			r.read()
			lasts[i] = r.last()
		}
		out = append(out, assembleRaw(items, lasts))
	}
	return out, nil
}

// decodeLayeredChunkStream decodes one layered chunk: raw first point,
// a point count, per-layer byte sizes, then the layer payloads of each
// item in schema order.
func decodeLayeredChunkStream(s *byteStream, items []Item, count int) ([]Point, error) {
	if count <= 0 {
		return nil, nil
	}
	if s.remaining() < recordSize(items) {
		return nil, fmt.Errorf("laszip: truncated layered chunk (%d bytes left)", s.remaining())
	}

	raws := make([][]byte, len(items))
	for i, it := range items {
		raws[i] = s.bytes(int(it.Size))
	}
	// Chunks record their own point count; trust the caller when the
	// stream disagrees only mildly (COPC nodes pass the exact count).
	stored := int(s.u32())
	if count > stored && stored > 0 {
		count = stored
	}

	readers := make([]layeredItemReader, len(items))
	for i, it := range items {
		r, err := newLayeredItemReader(it, raws[i])
		if err != nil {
			return nil, err
		}
		readers[i] = r
	}
	for _, r := range readers {
		r.readLayerSizes(s)
	}
	for _, r := range readers {
		if err := r.readLayers(s); err != nil {
			return nil, err
		}
	}

	// Scanner channel of the seed point; the POINT14 reader switches it.
	ctx := uint32(0)
	if len(raws) > 0 && len(raws[0]) >= 16 && items[0].Type == ItemPoint14 {
		ctx = uint32(raws[0][15]>>4) & 3
	}

	out := make([]Point, 0, count)
	out = append(out, assembleRaw(items, raws))
	for p := 1; p < count; p++ {
		lasts := make([][]byte, len(readers))
		for i, r := range readers {
			r.read(&ctx)
			lasts[i] = r.last()
		}
		out = append(out, assembleRaw(items, lasts))
	}
	return out, nil
}

// assembleRaw lifts the native record bytes of one point into a Point.
func assembleRaw(items []Item, raws [][]byte) Point {
	le := binary.LittleEndian
	var p Point
	for i, it := range items {
		b := raws[i]
		switch it.Type {
		case ItemPoint10, ItemPoint14:
			if len(b) >= 14 {
				p.X = int32(le.Uint32(b[0:4]))
				p.Y = int32(le.Uint32(b[4:8]))
				p.Z = int32(le.Uint32(b[8:12]))
				p.Intensity = le.Uint16(b[12:14])
			}
		case ItemRGB12, ItemRGB14, ItemRGBNIR14:
			if len(b) >= 6 {
				p.R = le.Uint16(b[0:2])
				p.G = le.Uint16(b[2:4])
				p.B = le.Uint16(b[4:6])
				p.HasRGB = true
			}
		}
	}
	return p
}
