package geotiff

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tiffEntry is one handcrafted IFD entry.
type tiffEntry struct {
	tag, typ uint16
	value    uint32
}

// buildTIFF assembles a little-endian single-IFD TIFF with inline
// entry values and the pixel data appended after the IFD.
func buildTIFF(entries []tiffEntry, pixels []byte) []byte {
	le := binary.LittleEndian
	hdr := make([]byte, 8)
	copy(hdr, "II")
	le.PutUint16(hdr[2:4], 42)
	le.PutUint32(hdr[4:8], 8)

	ifdSize := 2 + len(entries)*12 + 4
	pixelOff := 8 + ifdSize

	// patch strip offset entries to the pixel block
	body := make([]byte, ifdSize)
	le.PutUint16(body[0:2], uint16(len(entries)))
	for i, e := range entries {
		off := 2 + i*12
		le.PutUint16(body[off:], e.tag)
		le.PutUint16(body[off+2:], e.typ)
		le.PutUint32(body[off+4:], 1)
		v := e.value
		if e.tag == tagStripOffsets {
			v = uint32(pixelOff)
		}
		if e.typ == 3 {
			le.PutUint16(body[off+8:], uint16(v))
		} else {
			le.PutUint32(body[off+8:], v)
		}
	}
	return append(append(hdr, body...), pixels...)
}

func TestDecodeRGBAStripRGB(t *testing.T) {
	pixels := []byte{
		255, 0, 0 /**/, 0, 255, 0,
		0, 0, 255 /**/, 10, 20, 30,
	}
	data := buildTIFF([]tiffEntry{
		{tagImageWidth, 4, 2},
		{tagImageLength, 4, 2},
		{tagBitsPerSample, 3, 8},
		{tagCompression, 3, compNone},
		{tagSamplesPerPixel, 3, 3},
		{tagRowsPerStrip, 4, 2},
		{tagStripOffsets, 4, 0},
		{tagStripByteCounts, 4, uint32(len(pixels))},
	}, pixels)

	img, err := DecodeRGBA(data)
	require.NoError(t, err)
	require.Equal(t, 2, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xFFFF, 0, 0, 0xFFFF}, []uint32{r, g, b, a})
	r, g, b, _ = img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0, 0xFFFF, 0}, []uint32{r, g, b})
	r, _, b, _ = img.At(1, 1).RGBA()
	assert.Equal(t, uint32(10*257), r)
	assert.Equal(t, uint32(30*257), b)
}

func TestDecodeRGBAGray16KeepsHighByte(t *testing.T) {
	pixels := make([]byte, 4)
	le := binary.LittleEndian
	le.PutUint16(pixels[0:2], 0xAB12)
	le.PutUint16(pixels[2:4], 0x0034)
	data := buildTIFF([]tiffEntry{
		{tagImageWidth, 4, 2},
		{tagImageLength, 4, 1},
		{tagBitsPerSample, 3, 16},
		{tagCompression, 3, compNone},
		{tagSamplesPerPixel, 3, 1},
		{tagRowsPerStrip, 4, 1},
		{tagStripOffsets, 4, 0},
		{tagStripByteCounts, 4, uint32(len(pixels))},
	}, pixels)

	img, err := DecodeRGBA(data)
	require.NoError(t, err)
	// gray fans out to all three channels, high byte only
	assert.Equal(t, uint8(0xAB), img.Pix[0])
	assert.Equal(t, uint8(0xAB), img.Pix[1])
	assert.Equal(t, uint8(0xAB), img.Pix[2])
	assert.Equal(t, uint8(0x00), img.Pix[4])
}

func TestDecodeRGBARejectsBadMagic(t *testing.T) {
	_, err := DecodeRGBA([]byte("PK\x03\x04 not a tiff"))
	assert.ErrorContains(t, err, "byte-order mark")
}

func TestDecodeRGBARejectsLZW(t *testing.T) {
	data := buildTIFF([]tiffEntry{
		{tagImageWidth, 4, 1},
		{tagImageLength, 4, 1},
		{tagBitsPerSample, 3, 8},
		{tagCompression, 3, compLZW},
		{tagSamplesPerPixel, 3, 1},
		{tagRowsPerStrip, 4, 1},
		{tagStripOffsets, 4, 0},
		{tagStripByteCounts, 4, 1},
	}, []byte{42})

	_, err := DecodeRGBA(data)
	assert.ErrorContains(t, err, "lzw")
}

func TestUnpackBits(t *testing.T) {
	// literal run of 3, then "repeat next byte 4 times"
	out, err := unpackBits([]byte{2, 1, 2, 3, 0xFD, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 9, 9, 9, 9}, out)

	_, err = unpackBits([]byte{5, 1})
	assert.ErrorContains(t, err, "overrun")
}

func TestUndoPredictorHorizontal8(t *testing.T) {
	d := &ifd{bo: binary.LittleEndian, predictor: 2, samplesPerPix: 1, bitsPerSample: 8}
	row := []byte{10, 5, 5, 246}
	undoPredictor(row, d, 4, 1)
	assert.Equal(t, []byte{10, 15, 20, 10}, row)
}
