package laszip

// integerDecompressor is the LASzip integer corrector: predictions are
// corrected by a value whose bit width k is entropy-coded per context,
// followed by the corrector itself split into a modeled high part and
// raw low bits.
type integerDecompressor struct {
	dec      *decoder
	bits     uint32
	contexts uint32
	bitsHigh uint32

	corrBits  uint32
	corrRange uint32
	corrMin   int32

	mBits     []*symbolModel
	mCorr0    *bitModel
	mCorr     []*symbolModel
	lastK     uint32
}

func newIntegerDecompressor(dec *decoder, bits, contexts uint32) *integerDecompressor {
	ic := &integerDecompressor{
		dec:      dec,
		bits:     bits,
		contexts: contexts,
		bitsHigh: 8,
	}
	if bits > 0 && bits < 32 {
		ic.corrBits = bits
		ic.corrRange = 1 << bits
		ic.corrMin = -int32(ic.corrRange / 2)
	} else {
		ic.corrBits = 32
		ic.corrRange = 0
		ic.corrMin = -0x7FFFFFFF - 1
	}

	ic.mBits = make([]*symbolModel, contexts)
	for i := range ic.mBits {
		ic.mBits[i] = newSymbolModel(ic.corrBits + 1)
	}
	ic.mCorr0 = newBitModel()
	ic.mCorr = make([]*symbolModel, ic.corrBits+1)
	for k := uint32(1); k <= ic.corrBits; k++ {
		if k <= ic.bitsHigh {
			ic.mCorr[k] = newSymbolModel(1 << k)
		} else {
			ic.mCorr[k] = newSymbolModel(1 << ic.bitsHigh)
		}
	}
	return ic
}

// k returns the bit width of the last decompressed corrector.
func (ic *integerDecompressor) k() uint32 { return ic.lastK }

func (ic *integerDecompressor) decompress(pred int32, context uint32) int32 {
	real := pred + ic.readCorrector(ic.mBits[context])
	if ic.corrRange != 0 {
		if real < 0 {
			real += int32(ic.corrRange)
		} else if uint32(real) >= ic.corrRange {
			real -= int32(ic.corrRange)
		}
	}
	return real
}

func (ic *integerDecompressor) readCorrector(m *symbolModel) int32 {
	k := ic.dec.decodeSymbol(m)
	ic.lastK = k

	var c int32
	if k != 0 {
		if k < 32 {
			if k <= ic.bitsHigh {
				c = int32(ic.dec.decodeSymbol(ic.mCorr[k]))
			} else {
				k1 := k - ic.bitsHigh
				c = int32(ic.dec.decodeSymbol(ic.mCorr[k]))
				c1 := ic.dec.readBits(k1)
				c = (c << k1) | int32(c1)
			}
			// fold back into the signed interval for width k
			if c >= 1<<(k-1) {
				c++
			} else {
				c -= (1 << k) - 1
			}
		} else {
			c = ic.corrMin
		}
	} else {
		c = int32(ic.dec.decodeBit(ic.mCorr0))
	}
	return c
}
