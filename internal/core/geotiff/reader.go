// Package geotiff is a minimal TIFF/GeoTIFF sample reader used as the
// fallback decode path for orthomosaic rasters. It handles stripped and
// tiled layouts, 8/16-bit unsigned samples, and grayscale or RGB[A]
// pixel layouts, which covers the rasters the general decoder rejects
// (tiled GeoTIFF output in particular).
package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"io"
)

// TIFF tag IDs used by the reader.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
)

// Compression schemes.
const (
	compNone     = 1
	compLZW      = 5
	compDeflate  = 8
	compPackBits = 32773
	compDeflateO = 32946 // old-style deflate tag
)

type ifd struct {
	bo              binary.ByteOrder
	width, height   int
	bitsPerSample   int
	samplesPerPix   int
	compression     int
	predictor       int
	rowsPerStrip    int
	stripOffsets    []uint32
	stripByteCounts []uint32
	tileWidth       int
	tileLength      int
	tileOffsets     []uint32
	tileByteCounts  []uint32
	sampleFormat    int
}

// DecodeRGBA reads the first IFD and reconstructs the raster as NRGBA.
func DecodeRGBA(data []byte) (*image.NRGBA, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("truncated tiff header")
	}

	var bo binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("bad tiff byte-order mark %q", data[0:2])
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("not a classic tiff (bigtiff unsupported)")
	}

	d, err := parseIFD(data, bo, bo.Uint32(data[4:8]))
	if err != nil {
		return nil, err
	}

	switch {
	case d.width <= 0 || d.height <= 0:
		return nil, fmt.Errorf("bad raster dimensions %dx%d", d.width, d.height)
	case d.bitsPerSample != 8 && d.bitsPerSample != 16:
		return nil, fmt.Errorf("unsupported bits per sample %d", d.bitsPerSample)
	case d.samplesPerPix < 1:
		return nil, fmt.Errorf("bad samples per pixel %d", d.samplesPerPix)
	case d.sampleFormat > 1:
		return nil, fmt.Errorf("unsupported sample format %d", d.sampleFormat)
	}

	out := image.NewNRGBA(image.Rect(0, 0, d.width, d.height))
	if d.tileWidth > 0 {
		err = decodeTiles(data, d, out)
	} else {
		err = decodeStrips(data, d, out)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseIFD(data []byte, bo binary.ByteOrder, off uint32) (*ifd, error) {
	if int(off)+2 > len(data) {
		return nil, fmt.Errorf("ifd offset out of range")
	}
	count := int(bo.Uint16(data[off : off+2]))
	base := int(off) + 2
	if base+count*12 > len(data) {
		return nil, fmt.Errorf("truncated ifd")
	}

	d := &ifd{
		bo:            bo,
		bitsPerSample: 8,
		samplesPerPix: 1,
		compression:   compNone,
		predictor:     1,
		sampleFormat:  1,
	}
	for i := 0; i < count; i++ {
		e := data[base+i*12 : base+i*12+12]
		tag := bo.Uint16(e[0:2])
		typ := bo.Uint16(e[2:4])
		n := bo.Uint32(e[4:8])

		vals, err := entryValues(data, bo, typ, n, e[8:12])
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag, err)
		}
		if len(vals) == 0 {
			continue
		}

		switch tag {
		case tagImageWidth:
			d.width = int(vals[0])
		case tagImageLength:
			d.height = int(vals[0])
		case tagBitsPerSample:
			d.bitsPerSample = int(vals[0])
		case tagCompression:
			d.compression = int(vals[0])
		case tagSamplesPerPixel:
			d.samplesPerPix = int(vals[0])
		case tagRowsPerStrip:
			d.rowsPerStrip = int(vals[0])
		case tagStripOffsets:
			d.stripOffsets = vals
		case tagStripByteCounts:
			d.stripByteCounts = vals
		case tagPlanarConfig:
			if vals[0] != 1 {
				return nil, fmt.Errorf("planar configuration %d unsupported", vals[0])
			}
		case tagPredictor:
			d.predictor = int(vals[0])
		case tagTileWidth:
			d.tileWidth = int(vals[0])
		case tagTileLength:
			d.tileLength = int(vals[0])
		case tagTileOffsets:
			d.tileOffsets = vals
		case tagTileByteCounts:
			d.tileByteCounts = vals
		case tagSampleFormat:
			d.sampleFormat = int(vals[0])
		case tagPhotometric:
			// Gray and RGB both land on the samplesPerPixel path.
		}
	}
	return d, nil
}

// entryValues reads an IFD entry's payload, inline or offset.
func entryValues(data []byte, bo binary.ByteOrder, typ uint16, count uint32, inline []byte) ([]uint32, error) {
	var size int
	switch typ {
	case 1: // BYTE
		size = 1
	case 3: // SHORT
		size = 2
	case 4: // LONG
		size = 4
	default:
		// Rational, ASCII etc. carry georeferencing we don't need.
		return nil, nil
	}

	total := size * int(count)
	var raw []byte
	if total <= 4 {
		raw = inline[:total]
	} else {
		off := int(bo.Uint32(inline))
		if off+total > len(data) {
			return nil, fmt.Errorf("value offset out of range")
		}
		raw = data[off : off+total]
	}

	vals := make([]uint32, count)
	for i := range vals {
		switch size {
		case 1:
			vals[i] = uint32(raw[i])
		case 2:
			vals[i] = uint32(bo.Uint16(raw[i*2:]))
		case 4:
			vals[i] = bo.Uint32(raw[i*4:])
		}
	}
	return vals, nil
}

func decodeStrips(data []byte, d *ifd, out *image.NRGBA) error {
	if len(d.stripOffsets) == 0 || len(d.stripOffsets) != len(d.stripByteCounts) {
		return fmt.Errorf("inconsistent strip tables")
	}
	rows := d.rowsPerStrip
	if rows <= 0 {
		rows = d.height
	}

	for i, off := range d.stripOffsets {
		raw, err := segment(data, off, d.stripByteCounts[i], d.compression)
		if err != nil {
			return fmt.Errorf("strip %d: %w", i, err)
		}
		y0 := i * rows
		h := rows
		if y0+h > d.height {
			h = d.height - y0
		}
		undoPredictor(raw, d, d.width, h)
		writeRegion(raw, d, out, 0, y0, d.width, h, d.width)
	}
	return nil
}

func decodeTiles(data []byte, d *ifd, out *image.NRGBA) error {
	if len(d.tileOffsets) == 0 || len(d.tileOffsets) != len(d.tileByteCounts) {
		return fmt.Errorf("inconsistent tile tables")
	}
	tilesAcross := (d.width + d.tileWidth - 1) / d.tileWidth

	for i, off := range d.tileOffsets {
		raw, err := segment(data, off, d.tileByteCounts[i], d.compression)
		if err != nil {
			return fmt.Errorf("tile %d: %w", i, err)
		}
		x0 := (i % tilesAcross) * d.tileWidth
		y0 := (i / tilesAcross) * d.tileLength
		if x0 >= d.width || y0 >= d.height {
			continue
		}
		w := min(d.tileWidth, d.width-x0)
		h := min(d.tileLength, d.height-y0)
		undoPredictor(raw, d, d.tileWidth, d.tileLength)
		writeRegion(raw, d, out, x0, y0, w, h, d.tileWidth)
	}
	return nil
}

// segment decompresses one strip or tile.
func segment(data []byte, off, count uint32, compression int) ([]byte, error) {
	if int(off)+int(count) > len(data) {
		return nil, fmt.Errorf("segment out of range")
	}
	raw := data[off : off+count]

	switch compression {
	case compNone:
		return raw, nil
	case compDeflate, compDeflateO:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return out, nil
	case compPackBits:
		return unpackBits(raw)
	case compLZW:
		// TIFF LZW uses the early-change variant the stdlib reader
		// does not implement; the primary decoder owns LZW strips.
		return nil, fmt.Errorf("lzw compression unsupported in fallback reader")
	default:
		return nil, fmt.Errorf("compression scheme %d unsupported", compression)
	}
}

// unpackBits expands PackBits run-length encoding.
func unpackBits(raw []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(raw); {
		n := int(int8(raw[i]))
		i++
		switch {
		case n >= 0:
			if i+n+1 > len(raw) {
				return nil, fmt.Errorf("packbits literal overrun")
			}
			out = append(out, raw[i:i+n+1]...)
			i += n + 1
		case n > -128:
			if i >= len(raw) {
				return nil, fmt.Errorf("packbits run overrun")
			}
			for j := 0; j < -n+1; j++ {
				out = append(out, raw[i])
			}
			i++
		default:
			// -128 is a no-op.
		}
	}
	return out, nil
}

// undoPredictor reverses horizontal differencing in place.
func undoPredictor(raw []byte, d *ifd, rowWidth, rows int) {
	if d.predictor != 2 {
		return
	}
	bpp := d.samplesPerPix * d.bitsPerSample / 8
	stride := rowWidth * bpp
	for y := 0; y < rows; y++ {
		row := y * stride
		if row+stride > len(raw) {
			return
		}
		if d.bitsPerSample == 8 {
			for x := bpp; x < stride; x++ {
				raw[row+x] += raw[row+x-bpp]
			}
		} else {
			for x := bpp; x+1 < stride; x += 2 {
				prev := d.bo.Uint16(raw[row+x-bpp:])
				cur := d.bo.Uint16(raw[row+x:]) + prev
				d.bo.PutUint16(raw[row+x:], cur)
			}
		}
	}
}

// writeRegion converts raw samples into NRGBA pixels. Grayscale fans a
// single sample across R/G/B; 16-bit samples keep their high byte.
func writeRegion(raw []byte, d *ifd, out *image.NRGBA, x0, y0, w, h, rowWidth int) {
	spp := d.samplesPerPix
	bytesPerSample := d.bitsPerSample / 8
	stride := rowWidth * spp * bytesPerSample

	sample := func(row []byte, x, s int) uint8 {
		idx := (x*spp + s) * bytesPerSample
		if idx+bytesPerSample > len(row) {
			return 0
		}
		if bytesPerSample == 1 {
			return row[idx]
		}
		// 16-bit samples keep their high byte.
		return byte(d.bo.Uint16(row[idx:]) >> 8)
	}

	for y := 0; y < h; y++ {
		rowStart := y * stride
		if rowStart >= len(raw) {
			return
		}
		row := raw[rowStart:min(rowStart+stride, len(raw))]
		for x := 0; x < w; x++ {
			var r, g, b, a uint8
			a = 255
			switch {
			case spp == 1:
				v := sample(row, x, 0)
				r, g, b = v, v, v
			case spp >= 4:
				r = sample(row, x, 0)
				g = sample(row, x, 1)
				b = sample(row, x, 2)
				a = sample(row, x, 3)
			default:
				r = sample(row, x, 0)
				g = sample(row, x, 1)
				b = sample(row, x, 2)
			}
			off := out.PixOffset(x0+x, y0+y)
			out.Pix[off+0] = r
			out.Pix[off+1] = g
			out.Pix[off+2] = b
			out.Pix[off+3] = a
		}
	}
}
