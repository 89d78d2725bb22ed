package laszip

import "encoding/binary"

// Pointwise (LAZ 1.2) item readers, version 2 of the coding scheme.
// Each reader carries the previous record as prediction state and
// mutates it in place on every read.

// point10Reader decodes the 20-byte POINT10 record.
type point10Reader struct {
	dec      *decoder
	lastItem [20]byte

	lastXDiffMedian5 [16]streamingMedian5
	lastYDiffMedian5 [16]streamingMedian5
	lastIntensity    [16]uint16
	lastHeight       [8]int32

	mChangedValues *symbolModel
	icIntensity    *integerDecompressor
	mScanAngleRank [2]*symbolModel
	icPointSource  *integerDecompressor
	icDX           *integerDecompressor
	icDY           *integerDecompressor
	icZ            *integerDecompressor

	// allocated on first use, keyed by the previous byte value
	mBitByte        [256]*symbolModel
	mClassification [256]*symbolModel
	mUserData       [256]*symbolModel
}

func newPoint10Reader(dec *decoder, first []byte) *point10Reader {
	r := &point10Reader{
		dec:            dec,
		mChangedValues: newSymbolModel(64),
		icIntensity:    newIntegerDecompressor(dec, 16, 4),
		icPointSource:  newIntegerDecompressor(dec, 16, 1),
		icDX:           newIntegerDecompressor(dec, 32, 2),
		icDY:           newIntegerDecompressor(dec, 32, 22),
		icZ:            newIntegerDecompressor(dec, 32, 20),
	}
	r.mScanAngleRank[0] = newSymbolModel(256)
	r.mScanAngleRank[1] = newSymbolModel(256)
	for i := range r.lastXDiffMedian5 {
		r.lastXDiffMedian5[i].init()
		r.lastYDiffMedian5[i].init()
	}
	copy(r.lastItem[:], first)
	// the intensity of the seed point is not part of the prediction
	r.lastItem[12] = 0
	r.lastItem[13] = 0
	return r
}

func (r *point10Reader) last() []byte { return r.lastItem[:] }

func (r *point10Reader) read() {
	le := binary.LittleEndian
	var m, l uint8
	var n uint32

	changed := r.dec.decodeSymbol(r.mChangedValues)
	if changed != 0 {
		if changed&32 != 0 {
			if r.mBitByte[r.lastItem[14]] == nil {
				r.mBitByte[r.lastItem[14]] = newSymbolModel(256)
			}
			r.lastItem[14] = uint8(r.dec.decodeSymbol(r.mBitByte[r.lastItem[14]]))
		}

		ret := uint32(r.lastItem[14] & 7)
		n = uint32(r.lastItem[14]>>3) & 7
		m = numberReturnMap[n][ret]
		l = numberReturnLevel[n][ret]

		if changed&16 != 0 {
			ctx := uint32(m)
			if ctx > 3 {
				ctx = 3
			}
			r.lastIntensity[m] = uint16(r.icIntensity.decompress(int32(r.lastIntensity[m]), ctx))
		}
		le.PutUint16(r.lastItem[12:14], r.lastIntensity[m])

		if changed&8 != 0 {
			if r.mClassification[r.lastItem[15]] == nil {
				r.mClassification[r.lastItem[15]] = newSymbolModel(256)
			}
			r.lastItem[15] = uint8(r.dec.decodeSymbol(r.mClassification[r.lastItem[15]]))
		}

		if changed&4 != 0 {
			idx := 0
			if r.lastItem[14]&0x40 != 0 { // scan direction flag
				idx = 1
			}
			val := r.dec.decodeSymbol(r.mScanAngleRank[idx])
			r.lastItem[16] = u8Fold(int32(val) + int32(r.lastItem[16]))
		}

		if changed&2 != 0 {
			if r.mUserData[r.lastItem[17]] == nil {
				r.mUserData[r.lastItem[17]] = newSymbolModel(256)
			}
			r.lastItem[17] = uint8(r.dec.decodeSymbol(r.mUserData[r.lastItem[17]]))
		}

		if changed&1 != 0 {
			src := r.icPointSource.decompress(int32(le.Uint16(r.lastItem[18:20])), 0)
			le.PutUint16(r.lastItem[18:20], uint16(src))
		}
	} else {
		ret := uint32(r.lastItem[14] & 7)
		n = uint32(r.lastItem[14]>>3) & 7
		m = numberReturnMap[n][ret]
		l = numberReturnLevel[n][ret]
	}

	single := uint32(0)
	if n == 1 {
		single = 1
	}

	median := r.lastXDiffMedian5[m].get()
	diff := r.icDX.decompress(median, single)
	le.PutUint32(r.lastItem[0:4], uint32(int32(le.Uint32(r.lastItem[0:4]))+diff))
	r.lastXDiffMedian5[m].add(diff)

	kBits := r.icDX.k()
	median = r.lastYDiffMedian5[m].get()
	ctx := single
	if kBits < 20 {
		ctx += kBits &^ 1
	} else {
		ctx += 20
	}
	diff = r.icDY.decompress(median, ctx)
	le.PutUint32(r.lastItem[4:8], uint32(int32(le.Uint32(r.lastItem[4:8]))+diff))
	r.lastYDiffMedian5[m].add(diff)

	kBits = (r.icDX.k() + r.icDY.k()) / 2
	ctx = single
	if kBits < 18 {
		ctx += kBits &^ 1
	} else {
		ctx += 18
	}
	z := r.icZ.decompress(r.lastHeight[l], ctx)
	le.PutUint32(r.lastItem[8:12], uint32(z))
	r.lastHeight[l] = z
}

// gpstime11Reader decodes the 8-byte GPS time record. The scheme keeps
// four parallel time sequences and entropy-codes which one continues.
const (
	gpsTimeMulti         = 500
	gpsTimeMultiMinus    = -10
	gpsTimeMultiUnchanged = gpsTimeMulti - gpsTimeMultiMinus + 1
	gpsTimeMultiCodeFull = gpsTimeMulti - gpsTimeMultiMinus + 2
	gpsTimeMultiTotal    = gpsTimeMulti - gpsTimeMultiMinus + 6
)

type gpstime11Reader struct {
	dec *decoder

	lastSeq, nextSeq    uint32
	lastGPSTime         [4]uint64
	lastGPSTimeDiff     [4]int32
	multiExtremeCounter [4]int32

	mGPSTimeMulti *symbolModel
	mGPSTime0Diff *symbolModel
	icGPSTime     *integerDecompressor

	out [8]byte
}

func newGPSTime11Reader(dec *decoder, first []byte) *gpstime11Reader {
	r := &gpstime11Reader{
		dec:           dec,
		mGPSTimeMulti: newSymbolModel(gpsTimeMultiTotal),
		mGPSTime0Diff: newSymbolModel(6),
		icGPSTime:     newIntegerDecompressor(dec, 32, 9),
	}
	copy(r.out[:], first)
	r.lastGPSTime[0] = binary.LittleEndian.Uint64(r.out[:])
	return r
}

func (r *gpstime11Reader) last() []byte { return r.out[:] }

func (r *gpstime11Reader) read() {
	if r.lastGPSTimeDiff[r.lastSeq] == 0 {
		multi := r.dec.decodeSymbol(r.mGPSTime0Diff)
		switch {
		case multi == 1: // difference fits in 32 bits
			r.lastGPSTimeDiff[r.lastSeq] = r.icGPSTime.decompress(0, 0)
			r.lastGPSTime[r.lastSeq] = uint64(int64(r.lastGPSTime[r.lastSeq]) + int64(r.lastGPSTimeDiff[r.lastSeq]))
			r.multiExtremeCounter[r.lastSeq] = 0
		case multi == 2: // new full value on the next sequence
			r.readFull()
		case multi > 2: // another sequence continues
			r.lastSeq = (r.lastSeq + multi - 2) & 3
			r.read()
			return
		}
	} else {
		multi := r.dec.decodeSymbol(r.mGPSTimeMulti)
		switch {
		case multi == 1:
			r.lastGPSTime[r.lastSeq] = uint64(int64(r.lastGPSTime[r.lastSeq]) +
				int64(r.icGPSTime.decompress(r.lastGPSTimeDiff[r.lastSeq], 1)))
			r.multiExtremeCounter[r.lastSeq] = 0
		case multi < gpsTimeMultiUnchanged:
			var diff int32
			switch {
			case multi == 0:
				diff = r.icGPSTime.decompress(0, 7)
				r.multiExtremeCounter[r.lastSeq]++
				if r.multiExtremeCounter[r.lastSeq] > 3 {
					r.lastGPSTimeDiff[r.lastSeq] = diff
					r.multiExtremeCounter[r.lastSeq] = 0
				}
			case multi < gpsTimeMulti:
				if multi < 10 {
					diff = r.icGPSTime.decompress(int32(multi)*r.lastGPSTimeDiff[r.lastSeq], 2)
				} else {
					diff = r.icGPSTime.decompress(int32(multi)*r.lastGPSTimeDiff[r.lastSeq], 3)
				}
			case multi == gpsTimeMulti:
				diff = r.icGPSTime.decompress(gpsTimeMulti*r.lastGPSTimeDiff[r.lastSeq], 4)
				r.multiExtremeCounter[r.lastSeq]++
				if r.multiExtremeCounter[r.lastSeq] > 3 {
					r.lastGPSTimeDiff[r.lastSeq] = diff
					r.multiExtremeCounter[r.lastSeq] = 0
				}
			default:
				neg := gpsTimeMulti - int32(multi)
				if neg > gpsTimeMultiMinus {
					diff = r.icGPSTime.decompress(neg*r.lastGPSTimeDiff[r.lastSeq], 5)
				} else {
					diff = r.icGPSTime.decompress(gpsTimeMultiMinus*r.lastGPSTimeDiff[r.lastSeq], 6)
					r.multiExtremeCounter[r.lastSeq]++
					if r.multiExtremeCounter[r.lastSeq] > 3 {
						r.lastGPSTimeDiff[r.lastSeq] = diff
						r.multiExtremeCounter[r.lastSeq] = 0
					}
				}
			}
			r.lastGPSTime[r.lastSeq] = uint64(int64(r.lastGPSTime[r.lastSeq]) + int64(diff))
		case multi == gpsTimeMultiCodeFull:
			r.readFull()
		case multi > gpsTimeMultiCodeFull:
			r.lastSeq = (r.lastSeq + multi - gpsTimeMultiCodeFull) & 3
			r.read()
			return
		}
	}
	binary.LittleEndian.PutUint64(r.out[:], r.lastGPSTime[r.lastSeq])
}

func (r *gpstime11Reader) readFull() {
	r.nextSeq = (r.nextSeq + 1) & 3
	hi := r.icGPSTime.decompress(int32(r.lastGPSTime[r.lastSeq]>>32), 8)
	r.lastGPSTime[r.nextSeq] = uint64(uint32(hi))<<32 | uint64(r.dec.readInt())
	r.lastSeq = r.nextSeq
	r.lastGPSTimeDiff[r.lastSeq] = 0
	r.multiExtremeCounter[r.lastSeq] = 0
}

// rgb12Reader decodes the 6-byte RGB record: a used-bytes mask, then a
// folded byte difference per changed color byte, the green and blue
// channels predicted from the red difference.
type rgb12Reader struct {
	dec      *decoder
	lastItem [3]uint16
	out      [6]byte

	mByteUsed *symbolModel
	mRGBDiff  [6]*symbolModel
}

func newRGB12Reader(dec *decoder, first []byte) *rgb12Reader {
	r := &rgb12Reader{dec: dec, mByteUsed: newSymbolModel(128)}
	for i := range r.mRGBDiff {
		r.mRGBDiff[i] = newSymbolModel(256)
	}
	copy(r.out[:], first)
	le := binary.LittleEndian
	r.lastItem[0] = le.Uint16(r.out[0:2])
	r.lastItem[1] = le.Uint16(r.out[2:4])
	r.lastItem[2] = le.Uint16(r.out[4:6])
	return r
}

func (r *rgb12Reader) last() []byte { return r.out[:] }

func (r *rgb12Reader) read() {
	var item [3]uint16
	sym := r.dec.decodeSymbol(r.mByteUsed)

	if sym&(1<<0) != 0 {
		corr := r.dec.decodeSymbol(r.mRGBDiff[0])
		item[0] = uint16(u8Fold(int32(corr) + int32(r.lastItem[0]&255)))
	} else {
		item[0] = r.lastItem[0] & 0xFF
	}
	if sym&(1<<1) != 0 {
		corr := r.dec.decodeSymbol(r.mRGBDiff[1])
		item[0] |= uint16(u8Fold(int32(corr)+int32(r.lastItem[0]>>8))) << 8
	} else {
		item[0] |= r.lastItem[0] & 0xFF00
	}

	if sym&(1<<6) != 0 {
		diff := int32(item[0]&0xFF) - int32(r.lastItem[0]&0xFF)
		if sym&(1<<2) != 0 {
			corr := r.dec.decodeSymbol(r.mRGBDiff[2])
			item[1] = uint16(u8Fold(int32(corr) + int32(u8Clamp(diff+int32(r.lastItem[1]&255)))))
		} else {
			item[1] = r.lastItem[1] & 0xFF
		}
		if sym&(1<<4) != 0 {
			corr := r.dec.decodeSymbol(r.mRGBDiff[4])
			diff = (diff + int32(item[1]&0xFF) - int32(r.lastItem[1]&0xFF)) / 2
			item[2] = uint16(u8Fold(int32(corr) + int32(u8Clamp(diff+int32(r.lastItem[2]&255)))))
		} else {
			item[2] = r.lastItem[2] & 0xFF
		}
		diff = int32(item[0]>>8) - int32(r.lastItem[0]>>8)
		if sym&(1<<3) != 0 {
			corr := r.dec.decodeSymbol(r.mRGBDiff[3])
			item[1] |= uint16(u8Fold(int32(corr)+int32(u8Clamp(diff+int32(r.lastItem[1]>>8))))) << 8
		} else {
			item[1] |= r.lastItem[1] & 0xFF00
		}
		if sym&(1<<5) != 0 {
			corr := r.dec.decodeSymbol(r.mRGBDiff[5])
			diff = (diff + int32(item[1]>>8) - int32(r.lastItem[1]>>8)) / 2
			item[2] |= uint16(u8Fold(int32(corr)+int32(u8Clamp(diff+int32(r.lastItem[2]>>8))))) << 8
		} else {
			item[2] |= r.lastItem[2] & 0xFF00
		}
	} else {
		item[1] = item[0]
		item[2] = item[0]
	}

	r.lastItem = item
	le := binary.LittleEndian
	le.PutUint16(r.out[0:2], item[0])
	le.PutUint16(r.out[2:4], item[1])
	le.PutUint16(r.out[4:6], item[2])
}

// byteReader decodes extra bytes, one adaptive model per byte lane.
type byteReader struct {
	dec      *decoder
	lastItem []byte
	mByte    []*symbolModel
}

func newByteReader(dec *decoder, first []byte) *byteReader {
	r := &byteReader{
		dec:      dec,
		lastItem: make([]byte, len(first)),
		mByte:    make([]*symbolModel, len(first)),
	}
	copy(r.lastItem, first)
	for i := range r.mByte {
		r.mByte[i] = newSymbolModel(256)
	}
	return r
}

func (r *byteReader) last() []byte { return r.lastItem }

func (r *byteReader) read() {
	for i := range r.lastItem {
		corr := r.dec.decodeSymbol(r.mByte[i])
		r.lastItem[i] = u8Fold(int32(corr) + int32(r.lastItem[i]))
	}
}
