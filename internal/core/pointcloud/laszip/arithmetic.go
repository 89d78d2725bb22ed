package laszip

// Arithmetic coder after the FastAC scheme used by the LASzip format
// (Amir Said's range coder with periodically rescaled adaptive models).
// Only the decoder side is implemented.

const (
	acMaxLength = 0xFFFFFFFF
	acMinLength = 0x01000000

	bmLengthShift = 13
	bmMaxCount    = 1 << bmLengthShift

	dmLengthShift = 15
	dmMaxCount    = 1 << dmLengthShift
)

// bitModel is an adaptive binary model.
type bitModel struct {
	bit0Prob        uint32
	bit0Count       uint32
	bitCount        uint32
	updateCycle     uint32
	bitsUntilUpdate uint32
}

func newBitModel() *bitModel {
	m := &bitModel{}
	m.init()
	return m
}

func (m *bitModel) init() {
	m.bit0Count = 1
	m.bitCount = 2
	m.bit0Prob = 1 << (bmLengthShift - 1)
	m.updateCycle = 4
	m.bitsUntilUpdate = 4
}

func (m *bitModel) update() {
	m.bitCount += m.updateCycle
	if m.bitCount > bmMaxCount {
		m.bitCount = (m.bitCount + 1) >> 1
		m.bit0Count = (m.bit0Count + 1) >> 1
		if m.bit0Count == m.bitCount {
			m.bitCount++
		}
	}
	m.bit0Prob = (m.bit0Count << bmLengthShift) / m.bitCount
	m.updateCycle = (5 * m.updateCycle) >> 2
	if m.updateCycle > 64 {
		m.updateCycle = 64
	}
	m.bitsUntilUpdate = m.updateCycle
}

// symbolModel is an adaptive multi-symbol model with an optional
// lookup table for fast symbol location.
type symbolModel struct {
	symbols           uint32
	distribution      []uint32
	symbolCount       []uint32
	decoderTable      []uint32
	totalCount        uint32
	updateCycle       uint32
	symbolsUntilUpdate uint32
	lastSymbol        uint32
	tableSize         uint32
	tableShift        uint32
}

func newSymbolModel(symbols uint32) *symbolModel {
	m := &symbolModel{symbols: symbols}
	m.init()
	return m
}

func (m *symbolModel) init() {
	m.lastSymbol = m.symbols - 1
	if m.symbols > 16 {
		tableBits := uint32(3)
		for m.symbols > (1 << (tableBits + 2)) {
			tableBits++
		}
		m.tableSize = 1 << tableBits
		m.tableShift = dmLengthShift - tableBits
		m.decoderTable = make([]uint32, m.tableSize+2)
	} else {
		m.tableSize = 0
		m.tableShift = 0
		m.decoderTable = nil
	}
	m.distribution = make([]uint32, m.symbols)
	m.symbolCount = make([]uint32, m.symbols)
	m.totalCount = 0
	m.updateCycle = m.symbols
	for k := range m.symbolCount {
		m.symbolCount[k] = 1
	}
	m.update()
	m.updateCycle = (m.symbols + 6) >> 1
	m.symbolsUntilUpdate = m.updateCycle
}

func (m *symbolModel) update() {
	m.totalCount += m.updateCycle
	if m.totalCount > dmMaxCount {
		m.totalCount = 0
		for k := range m.symbolCount {
			m.symbolCount[k] = (m.symbolCount[k] + 1) >> 1
			m.totalCount += m.symbolCount[k]
		}
	}

	sum := uint32(0)
	scale := uint32(0x80000000 / m.totalCount)
	if m.tableSize == 0 {
		for k := uint32(0); k < m.symbols; k++ {
			m.distribution[k] = (scale * sum) >> (31 - dmLengthShift)
			sum += m.symbolCount[k]
		}
	} else {
		s := uint32(0)
		for k := uint32(0); k < m.symbols; k++ {
			m.distribution[k] = (scale * sum) >> (31 - dmLengthShift)
			sum += m.symbolCount[k]
			w := m.distribution[k] >> m.tableShift
			for s < w {
				s++
				m.decoderTable[s] = k - 1
			}
		}
		m.decoderTable[0] = 0
		for s <= m.tableSize {
			s++
			m.decoderTable[s] = m.symbols - 1
		}
	}

	m.updateCycle = (5 * m.updateCycle) >> 2
	max := (m.symbols + 6) << 3
	if m.updateCycle > max {
		m.updateCycle = max
	}
	m.symbolsUntilUpdate = m.updateCycle
}

// decoder is the arithmetic range decoder.
type decoder struct {
	in     *byteStream
	value  uint32
	length uint32
}

func newDecoder(in *byteStream) *decoder {
	d := &decoder{in: in}
	d.value = uint32(in.u8())<<24 | uint32(in.u8())<<16 | uint32(in.u8())<<8 | uint32(in.u8())
	d.length = acMaxLength
	return d
}

func (d *decoder) renorm() {
	for {
		d.value = d.value<<8 | uint32(d.in.u8())
		d.length <<= 8
		if d.length >= acMinLength {
			break
		}
	}
}

func (d *decoder) decodeBit(m *bitModel) uint32 {
	x := m.bit0Prob * (d.length >> bmLengthShift)
	var sym uint32
	if d.value < x {
		d.length = x
		m.bit0Count++
	} else {
		sym = 1
		d.value -= x
		d.length -= x
	}
	if d.length < acMinLength {
		d.renorm()
	}
	m.bitsUntilUpdate--
	if m.bitsUntilUpdate == 0 {
		m.update()
	}
	return sym
}

func (d *decoder) decodeSymbol(m *symbolModel) uint32 {
	var sym, x uint32
	y := d.length

	if m.decoderTable != nil {
		d.length >>= dmLengthShift
		dv := d.value / d.length
		t := dv >> m.tableShift
		sym = m.decoderTable[t]
		n := m.decoderTable[t+1] + 1
		for n > sym+1 {
			k := (sym + n) >> 1
			if m.distribution[k] > dv {
				n = k
			} else {
				sym = k
			}
		}
		x = m.distribution[sym] * d.length
		if sym != m.lastSymbol {
			y = m.distribution[sym+1] * d.length
		}
	} else {
		d.length >>= dmLengthShift
		sym = 0
		n := m.symbols
		k := n >> 1
		for {
			z := d.length * m.distribution[k]
			if z > d.value {
				n = k
				y = z
			} else {
				sym = k
				x = z
			}
			k = (sym + n) >> 1
			if k == sym {
				break
			}
		}
	}

	d.value -= x
	d.length = y - x
	if d.length < acMinLength {
		d.renorm()
	}

	m.symbolCount[sym]++
	m.symbolsUntilUpdate--
	if m.symbolsUntilUpdate == 0 {
		m.update()
	}
	return sym
}

// readBits reads raw (equiprobable) bits.
func (d *decoder) readBits(bits uint32) uint32 {
	if bits > 19 {
		lo := d.readShort()
		hi := d.readBits(bits-16) << 16
		return hi | lo
	}
	d.length >>= bits
	sym := d.value / d.length
	d.value -= sym * d.length
	if d.length < acMinLength {
		d.renorm()
	}
	return sym
}

func (d *decoder) readShort() uint32 {
	d.length >>= 16
	sym := d.value / d.length
	d.value -= sym * d.length
	if d.length < acMinLength {
		d.renorm()
	}
	return sym
}

func (d *decoder) readInt() uint32 {
	lo := d.readShort()
	hi := d.readShort()
	return hi<<16 | lo
}
