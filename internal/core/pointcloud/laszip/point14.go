package laszip

import (
	"encoding/binary"
	"fmt"
)

// Layered (LAZ 1.4) item readers, version 3 of the coding scheme. Each
// attribute group lives in its own byte layer with its own arithmetic
// decoder, and all prediction state is kept per scanner channel so that
// interleaved channels do not pollute each other's models.

// layeredItemReader is an item reader whose compressed bytes arrive as
// per-attribute layers after the raw first point of the chunk.
type layeredItemReader interface {
	readLayerSizes(s *byteStream)
	readLayers(s *byteStream) error
	read(ctx *uint32)
	last() []byte
}

func newLayeredItemReader(it Item, first []byte) (layeredItemReader, error) {
	switch it.Type {
	case ItemPoint14:
		if it.Version != 3 {
			return nil, fmt.Errorf("laszip: POINT14 version %d not supported", it.Version)
		}
		return newPoint14Reader(first), nil
	case ItemRGB14:
		if it.Version != 3 {
			return nil, fmt.Errorf("laszip: RGB14 version %d not supported", it.Version)
		}
		return newRGB14Reader(first, false), nil
	case ItemRGBNIR14:
		if it.Version != 3 {
			return nil, fmt.Errorf("laszip: RGBNIR14 version %d not supported", it.Version)
		}
		return newRGB14Reader(first, true), nil
	case ItemByte14:
		if it.Version != 3 {
			return nil, fmt.Errorf("laszip: BYTE14 version %d not supported", it.Version)
		}
		return newByte14Reader(first), nil
	default:
		return nil, fmt.Errorf("laszip: item type %d not supported by the layered reader", it.Type)
	}
}

func newLayerDecoder(s *byteStream, size uint32) (*decoder, error) {
	if size == 0 {
		return nil, nil
	}
	if s.remaining() < int(size) {
		return nil, fmt.Errorf("laszip: truncated layer (%d bytes left, layer needs %d)", s.remaining(), size)
	}
	return newDecoder(newByteStream(s.bytes(int(size)))), nil
}

// Layer order of the POINT14 item.
const (
	layerChannelReturnsXY = iota
	layerZ
	layerClassification
	layerFlags
	layerIntensity
	layerScanAngle
	layerUserData
	layerPointSource
	layerGPSTime
	point14Layers
)

// p14ctx is the full prediction state of one scanner channel.
type p14ctx struct {
	lastItem      [30]byte
	lastIntensity [8]uint16
	lastXDiff     [12]streamingMedian5
	lastYDiff     [12]streamingMedian5
	lastZ         [8]int32
	lastGPSChange bool

	mChangedValues       [8]*symbolModel
	mScannerChannel      *symbolModel
	mNumberOfReturns     [16]*symbolModel
	mReturnNumber        [16]*symbolModel
	mReturnNumberGPSSame *symbolModel
	mClassification      [64]*symbolModel
	mFlags               [64]*symbolModel
	mUserData            [64]*symbolModel

	icDX          *integerDecompressor
	icDY          *integerDecompressor
	icZ           *integerDecompressor
	icIntensity   *integerDecompressor
	icScanAngle   *integerDecompressor
	icPointSource *integerDecompressor

	gps *gpstime11Reader
}

type point14Reader struct {
	sizes [point14Layers]uint32
	decs  [point14Layers]*decoder

	ctxs [4]*p14ctx
	cur  uint32
	seed [30]byte
}

func newPoint14Reader(first []byte) *point14Reader {
	r := &point14Reader{}
	copy(r.seed[:], first)
	r.cur = uint32(r.seed[15]>>4) & 3
	return r
}

func (r *point14Reader) readLayerSizes(s *byteStream) {
	for i := range r.sizes {
		r.sizes[i] = s.u32()
	}
}

func (r *point14Reader) readLayers(s *byteStream) error {
	for i, size := range r.sizes {
		d, err := newLayerDecoder(s, size)
		if err != nil {
			return err
		}
		r.decs[i] = d
	}
	if r.decs[layerChannelReturnsXY] == nil {
		return fmt.Errorf("laszip: POINT14 chunk has no position layer")
	}
	r.ctxs[r.cur] = r.newCtx(r.seed[:])
	return nil
}

func (r *point14Reader) newCtx(seed []byte) *p14ctx {
	le := binary.LittleEndian
	c := &p14ctx{
		mScannerChannel:      newSymbolModel(3),
		mReturnNumberGPSSame: newSymbolModel(13),
		icDX:                 newIntegerDecompressor(r.decs[layerChannelReturnsXY], 32, 2),
		icDY:                 newIntegerDecompressor(r.decs[layerChannelReturnsXY], 32, 22),
	}
	for i := range c.mChangedValues {
		c.mChangedValues[i] = newSymbolModel(128)
	}
	if d := r.decs[layerZ]; d != nil {
		c.icZ = newIntegerDecompressor(d, 32, 20)
	}
	if d := r.decs[layerIntensity]; d != nil {
		c.icIntensity = newIntegerDecompressor(d, 16, 4)
	}
	if d := r.decs[layerScanAngle]; d != nil {
		c.icScanAngle = newIntegerDecompressor(d, 16, 2)
	}
	if d := r.decs[layerPointSource]; d != nil {
		c.icPointSource = newIntegerDecompressor(d, 16, 1)
	}
	if d := r.decs[layerGPSTime]; d != nil {
		c.gps = newGPSTime11Reader(d, seed[22:30])
	}

	copy(c.lastItem[:], seed)
	intensity := le.Uint16(seed[12:14])
	z := int32(le.Uint32(seed[8:12]))
	for i := range c.lastIntensity {
		c.lastIntensity[i] = intensity
		c.lastZ[i] = z
	}
	for i := range c.lastXDiff {
		c.lastXDiff[i].init()
		c.lastYDiff[i].init()
	}
	return c
}

func (r *point14Reader) last() []byte { return r.ctxs[r.cur].lastItem[:] }

func (r *point14Reader) read(ctx *uint32) {
	le := binary.LittleEndian
	c := r.ctxs[r.cur]
	decXY := r.decs[layerChannelReturnsXY]

	lpr := 0
	if c.lastItem[14]&0x0F == 1 {
		lpr |= 1
	}
	if c.lastItem[14]&0x0F >= c.lastItem[14]>>4 {
		lpr |= 2
	}
	if c.lastGPSChange {
		lpr |= 4
	}

	changed := decXY.decodeSymbol(c.mChangedValues[lpr])

	var gpsChange, scanAngleChange, pointSourceChange bool
	if changed&(1<<6) != 0 {
		diff := decXY.decodeSymbol(c.mScannerChannel)
		sc := (r.cur + diff + 1) & 3
		if r.ctxs[sc] == nil {
			r.ctxs[sc] = r.newCtx(c.lastItem[:])
		}
		r.cur = sc
		c = r.ctxs[sc]
		c.lastItem[15] = c.lastItem[15]&0xCF | byte(sc)<<4
	}
	pointSourceChange = changed&(1<<5) != 0
	gpsChange = changed&(1<<4) != 0
	scanAngleChange = changed&(1<<3) != 0

	lastN := uint32(c.lastItem[14] >> 4)
	lastR := uint32(c.lastItem[14] & 0x0F)
	n := lastN
	if changed&(1<<2) != 0 {
		if c.mNumberOfReturns[lastN] == nil {
			c.mNumberOfReturns[lastN] = newSymbolModel(16)
		}
		n = decXY.decodeSymbol(c.mNumberOfReturns[lastN])
	}
	var ret uint32
	switch changed & 3 {
	case 0:
		ret = lastR
	case 1:
		ret = (lastR + 1) & 15
	case 2:
		ret = (lastR + 15) & 15
	case 3:
		if gpsChange {
			if c.mReturnNumber[lastR] == nil {
				c.mReturnNumber[lastR] = newSymbolModel(16)
			}
			ret = decXY.decodeSymbol(c.mReturnNumber[lastR])
		} else {
			sym := decXY.decodeSymbol(c.mReturnNumberGPSSame)
			ret = (lastR + sym + 2) & 15
		}
	}
	c.lastItem[14] = byte(ret | n<<4)

	m := numberReturnMap6ctx[n][ret]
	l := numberReturnLevel8ctx[n][ret]
	cpr := uint32(0)
	if ret == 1 {
		cpr |= 1
	}
	if ret >= n {
		cpr |= 2
	}

	gi := uint32(0)
	if gpsChange {
		gi = 1
	}
	single := uint32(0)
	if n == 1 {
		single = 1
	}

	idx := uint32(m)<<1 | gi
	median := c.lastXDiff[idx].get()
	diff := c.icDX.decompress(median, single)
	le.PutUint32(c.lastItem[0:4], uint32(int32(le.Uint32(c.lastItem[0:4]))+diff))
	c.lastXDiff[idx].add(diff)

	kBits := c.icDX.k()
	median = c.lastYDiff[idx].get()
	yCtx := single
	if kBits < 20 {
		yCtx += kBits &^ 1
	} else {
		yCtx += 20
	}
	diff = c.icDY.decompress(median, yCtx)
	le.PutUint32(c.lastItem[4:8], uint32(int32(le.Uint32(c.lastItem[4:8]))+diff))
	c.lastYDiff[idx].add(diff)

	if c.icZ != nil {
		kBits = (c.icDX.k() + c.icDY.k()) / 2
		zCtx := single
		if kBits < 18 {
			zCtx += kBits &^ 1
		} else {
			zCtx += 18
		}
		z := c.icZ.decompress(c.lastZ[l], zCtx)
		le.PutUint32(c.lastItem[8:12], uint32(z))
		c.lastZ[l] = z
	}

	if d := r.decs[layerClassification]; d != nil {
		ccc := uint32(c.lastItem[16]&0x1F) << 1
		if cpr == 3 {
			ccc++
		}
		if c.mClassification[ccc] == nil {
			c.mClassification[ccc] = newSymbolModel(256)
		}
		c.lastItem[16] = byte(d.decodeSymbol(c.mClassification[ccc]))
	}

	if d := r.decs[layerFlags]; d != nil {
		lastFlags := uint32(c.lastItem[15]&0x0F) | uint32(c.lastItem[15]>>6)<<4
		if c.mFlags[lastFlags] == nil {
			c.mFlags[lastFlags] = newSymbolModel(64)
		}
		flags := d.decodeSymbol(c.mFlags[lastFlags])
		c.lastItem[15] = byte(flags&0x0F) | byte(flags>>4&3)<<6 | byte(r.cur)<<4
	}

	if c.icIntensity != nil {
		ii := cpr<<1 | gi
		v := uint16(c.icIntensity.decompress(int32(c.lastIntensity[ii]), cpr))
		c.lastIntensity[ii] = v
		le.PutUint16(c.lastItem[12:14], v)
	}

	if c.icScanAngle != nil && scanAngleChange {
		v := c.icScanAngle.decompress(int32(le.Uint16(c.lastItem[18:20])), gi)
		le.PutUint16(c.lastItem[18:20], uint16(v))
	}

	if d := r.decs[layerUserData]; d != nil {
		if c.mUserData[c.lastItem[17]/4] == nil {
			c.mUserData[c.lastItem[17]/4] = newSymbolModel(256)
		}
		c.lastItem[17] = byte(d.decodeSymbol(c.mUserData[c.lastItem[17]/4]))
	}

	if c.icPointSource != nil && pointSourceChange {
		v := c.icPointSource.decompress(int32(le.Uint16(c.lastItem[20:22])), 0)
		le.PutUint16(c.lastItem[20:22], uint16(v))
	}

	if c.gps != nil && gpsChange {
		c.gps.read()
		copy(c.lastItem[22:30], c.gps.last())
	}
	c.lastGPSChange = gpsChange

	*ctx = r.cur
}

// rgb14ctx is the RGB (and NIR) prediction state of one scanner channel.
type rgb14ctx struct {
	lastRGB   [3]uint16
	lastNIR   uint16
	mByteUsed *symbolModel
	mRGBDiff  [6]*symbolModel
	mNIRUsed  *symbolModel
	mNIRDiff  [2]*symbolModel
}

type rgb14Reader struct {
	nir     bool
	sizes   [2]uint32
	decRGB  *decoder
	decNIR  *decoder
	ctxs    [4]*rgb14ctx
	cur     uint32
	seedRGB [3]uint16
	seedNIR uint16
	out     []byte
}

func newRGB14Reader(first []byte, nir bool) *rgb14Reader {
	le := binary.LittleEndian
	r := &rgb14Reader{nir: nir}
	r.seedRGB[0] = le.Uint16(first[0:2])
	r.seedRGB[1] = le.Uint16(first[2:4])
	r.seedRGB[2] = le.Uint16(first[4:6])
	size := 6
	if nir {
		r.seedNIR = le.Uint16(first[6:8])
		size = 8
	}
	r.out = make([]byte, size)
	copy(r.out, first[:size])
	return r
}

func (r *rgb14Reader) readLayerSizes(s *byteStream) {
	r.sizes[0] = s.u32()
	if r.nir {
		r.sizes[1] = s.u32()
	}
}

func (r *rgb14Reader) readLayers(s *byteStream) (err error) {
	if r.decRGB, err = newLayerDecoder(s, r.sizes[0]); err != nil {
		return err
	}
	if r.nir {
		if r.decNIR, err = newLayerDecoder(s, r.sizes[1]); err != nil {
			return err
		}
	}
	r.ctxs[r.cur] = r.newCtx(r.seedRGB, r.seedNIR)
	return nil
}

func (r *rgb14Reader) newCtx(rgb [3]uint16, nir uint16) *rgb14ctx {
	c := &rgb14ctx{lastRGB: rgb, lastNIR: nir, mByteUsed: newSymbolModel(128)}
	for i := range c.mRGBDiff {
		c.mRGBDiff[i] = newSymbolModel(256)
	}
	if r.nir {
		c.mNIRUsed = newSymbolModel(4)
		c.mNIRDiff[0] = newSymbolModel(256)
		c.mNIRDiff[1] = newSymbolModel(256)
	}
	return c
}

func (r *rgb14Reader) last() []byte { return r.out }

func (r *rgb14Reader) read(ctx *uint32) {
	if r.ctxs[*ctx] == nil {
		prev := r.ctxs[r.cur]
		r.ctxs[*ctx] = r.newCtx(prev.lastRGB, prev.lastNIR)
	}
	r.cur = *ctx
	c := r.ctxs[r.cur]
	le := binary.LittleEndian

	if r.decRGB != nil {
		c.lastRGB = decodeRGBDiff(r.decRGB, c.mByteUsed, &c.mRGBDiff, c.lastRGB)
	}
	le.PutUint16(r.out[0:2], c.lastRGB[0])
	le.PutUint16(r.out[2:4], c.lastRGB[1])
	le.PutUint16(r.out[4:6], c.lastRGB[2])

	if r.nir {
		if r.decNIR != nil {
			sym := r.decNIR.decodeSymbol(c.mNIRUsed)
			lo := int32(c.lastNIR & 0xFF)
			hi := int32(c.lastNIR >> 8)
			if sym&1 != 0 {
				corr := r.decNIR.decodeSymbol(c.mNIRDiff[0])
				lo = int32(u8Fold(int32(corr) + lo))
			}
			if sym&2 != 0 {
				corr := r.decNIR.decodeSymbol(c.mNIRDiff[1])
				hi = int32(u8Fold(int32(corr) + hi))
			}
			c.lastNIR = uint16(lo) | uint16(hi)<<8
		}
		le.PutUint16(r.out[6:8], c.lastNIR)
	}
}

// decodeRGBDiff is the shared RGB byte-difference scheme: a used-bytes
// mask followed by folded per-byte correctors, green and blue predicted
// from the red delta.
func decodeRGBDiff(dec *decoder, mByteUsed *symbolModel, mDiff *[6]*symbolModel, lastItem [3]uint16) [3]uint16 {
	var item [3]uint16
	sym := dec.decodeSymbol(mByteUsed)

	if sym&(1<<0) != 0 {
		corr := dec.decodeSymbol(mDiff[0])
		item[0] = uint16(u8Fold(int32(corr) + int32(lastItem[0]&255)))
	} else {
		item[0] = lastItem[0] & 0xFF
	}
	if sym&(1<<1) != 0 {
		corr := dec.decodeSymbol(mDiff[1])
		item[0] |= uint16(u8Fold(int32(corr)+int32(lastItem[0]>>8))) << 8
	} else {
		item[0] |= lastItem[0] & 0xFF00
	}

	if sym&(1<<6) != 0 {
		diff := int32(item[0]&0xFF) - int32(lastItem[0]&0xFF)
		if sym&(1<<2) != 0 {
			corr := dec.decodeSymbol(mDiff[2])
			item[1] = uint16(u8Fold(int32(corr) + int32(u8Clamp(diff+int32(lastItem[1]&255)))))
		} else {
			item[1] = lastItem[1] & 0xFF
		}
		if sym&(1<<4) != 0 {
			corr := dec.decodeSymbol(mDiff[4])
			diff = (diff + int32(item[1]&0xFF) - int32(lastItem[1]&0xFF)) / 2
			item[2] = uint16(u8Fold(int32(corr) + int32(u8Clamp(diff+int32(lastItem[2]&255)))))
		} else {
			item[2] = lastItem[2] & 0xFF
		}
		diff = int32(item[0]>>8) - int32(lastItem[0]>>8)
		if sym&(1<<3) != 0 {
			corr := dec.decodeSymbol(mDiff[3])
			item[1] |= uint16(u8Fold(int32(corr)+int32(u8Clamp(diff+int32(lastItem[1]>>8))))) << 8
		} else {
			item[1] |= lastItem[1] & 0xFF00
		}
		if sym&(1<<5) != 0 {
			corr := dec.decodeSymbol(mDiff[5])
			diff = (diff + int32(item[1]>>8) - int32(lastItem[1]>>8)) / 2
			item[2] |= uint16(u8Fold(int32(corr)+int32(u8Clamp(diff+int32(lastItem[2]>>8))))) << 8
		} else {
			item[2] |= lastItem[2] & 0xFF00
		}
	} else {
		item[1] = item[0]
		item[2] = item[0]
	}
	return item
}

// byte14Reader decodes extra bytes, one layer and one model set per
// byte lane, with per-channel prediction state.
type byte14Reader struct {
	sizes []uint32
	decs  []*decoder
	ctxs  [4]*byte14ctx
	cur   uint32
	seed  []byte
	out   []byte
}

type byte14ctx struct {
	lastItem []byte
	mByte    []*symbolModel
}

func newByte14Reader(first []byte) *byte14Reader {
	r := &byte14Reader{
		sizes: make([]uint32, len(first)),
		decs:  make([]*decoder, len(first)),
		seed:  append([]byte(nil), first...),
		out:   append([]byte(nil), first...),
	}
	return r
}

func (r *byte14Reader) readLayerSizes(s *byteStream) {
	for i := range r.sizes {
		r.sizes[i] = s.u32()
	}
}

func (r *byte14Reader) readLayers(s *byteStream) error {
	for i, size := range r.sizes {
		d, err := newLayerDecoder(s, size)
		if err != nil {
			return err
		}
		r.decs[i] = d
	}
	r.ctxs[r.cur] = r.newCtx(r.seed)
	return nil
}

func (r *byte14Reader) newCtx(seed []byte) *byte14ctx {
	c := &byte14ctx{
		lastItem: append([]byte(nil), seed...),
		mByte:    make([]*symbolModel, len(seed)),
	}
	for i := range c.mByte {
		c.mByte[i] = newSymbolModel(256)
	}
	return c
}

func (r *byte14Reader) last() []byte { return r.out }

func (r *byte14Reader) read(ctx *uint32) {
	if r.ctxs[*ctx] == nil {
		r.ctxs[*ctx] = r.newCtx(r.ctxs[r.cur].lastItem)
	}
	r.cur = *ctx
	c := r.ctxs[r.cur]
	for i := range c.lastItem {
		if r.decs[i] == nil {
			continue
		}
		corr := r.decs[i].decodeSymbol(c.mByte[i])
		c.lastItem[i] = u8Fold(int32(corr) + int32(c.lastItem[i]))
	}
	copy(r.out, c.lastItem)
}
