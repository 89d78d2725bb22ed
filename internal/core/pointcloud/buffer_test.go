package pointcloud

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireLayout(t *testing.T) {
	b := &Buffer{
		Count:     2,
		Positions: []float32{1, 2, 3, -4, 0.5, 6},
		Colors:    []uint8{255, 0, 0, 0, 0, 255},
	}
	wire := b.EncodeWire()

	require.Len(t, wire, 4+2*12+2*3)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(wire[0:4]))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(wire[4:8])))
	assert.Equal(t, float32(-4), math.Float32frombits(binary.LittleEndian.Uint32(wire[16:20])))
	// colors trail the position block
	assert.Equal(t, []byte{255, 0, 0, 0, 0, 255}, wire[28:])
}

func TestWireRoundTrip(t *testing.T) {
	b := &Buffer{
		Count:     3,
		Positions: []float32{0, 1, 2, 3, 4, 5, 6, 7, 8},
		Colors:    []uint8{9, 8, 7, 6, 5, 4, 3, 2, 1},
	}
	got, err := DecodeWire(b.EncodeWire())
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestDecodeWireShortPayload(t *testing.T) {
	_, err := DecodeWire([]byte{1, 2})
	assert.ErrorContains(t, err, "short payload")

	wire := make([]byte, 4)
	binary.LittleEndian.PutUint32(wire, 10)
	_, err = DecodeWire(wire)
	assert.ErrorContains(t, err, "need")
}

// fakeStrategy scripts one strategy outcome for orchestration tests.
type fakeStrategy struct {
	name string
	buf  *Buffer
	err  error
	hits *[]string
}

func (f fakeStrategy) Name() string { return f.name }

func (f fakeStrategy) Decode(data []byte, maxPoints int) (*Buffer, error) {
	*f.hits = append(*f.hits, f.name)
	return f.buf, f.err
}

func TestDecodeLAZStrategyOrder(t *testing.T) {
	orig := lazStrategies
	defer func() { lazStrategies = orig }()

	var hits []string
	want := &Buffer{Count: 1, Positions: []float32{0, 0, 0}, Colors: []uint8{1, 2, 3}}
	lazStrategies = []Strategy{
		fakeStrategy{name: "first", err: errors.New("not this shape"), hits: &hits},
		fakeStrategy{name: "second", buf: want, hits: &hits},
	}

	got, err := DecodeLAZ(nil, 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"first", "second"}, hits)
}

func TestDecodeLAZAllStrategiesFail(t *testing.T) {
	orig := lazStrategies
	defer func() { lazStrategies = orig }()

	var hits []string
	lazStrategies = []Strategy{
		fakeStrategy{name: "copc", err: errors.New("no info VLR"), hits: &hits},
		fakeStrategy{name: "laszip", err: errors.New("unknown compressor 9"), hits: &hits},
	}

	_, err := DecodeLAZ(nil, 10)
	require.Error(t, err)
	// the error names every strategy and its reason
	assert.Contains(t, err.Error(), "copc: no info VLR")
	assert.Contains(t, err.Error(), "laszip: unknown compressor 9")
}

func TestDefaultStrategyOrder(t *testing.T) {
	require.Len(t, lazStrategies, 2)
	assert.Equal(t, "copc", lazStrategies[0].Name())
	assert.Equal(t, "laszip", lazStrategies[1].Name())
}
