package laszip

import "encoding/binary"

// byteStream is a cursor over an in-memory compressed stream. Reads
// past the end return zero bytes; the arithmetic coder legitimately
// reads a few lookahead bytes at the tail of a chunk.
type byteStream struct {
	data []byte
	pos  int
}

func newByteStream(data []byte) *byteStream {
	return &byteStream{data: data}
}

func (s *byteStream) u8() byte {
	if s.pos >= len(s.data) {
		s.pos++
		return 0
	}
	b := s.data[s.pos]
	s.pos++
	return b
}

func (s *byteStream) u16() uint16 {
	lo := s.u8()
	hi := s.u8()
	return uint16(lo) | uint16(hi)<<8
}

func (s *byteStream) u32() uint32 {
	if s.pos+4 <= len(s.data) {
		v := binary.LittleEndian.Uint32(s.data[s.pos:])
		s.pos += 4
		return v
	}
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(s.u8()) << (8 * i)
	}
	return v
}

func (s *byteStream) u64() uint64 {
	lo := uint64(s.u32())
	hi := uint64(s.u32())
	return lo | hi<<32
}

func (s *byteStream) bytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	avail := len(s.data) - s.pos
	if avail > 0 {
		copy(out, s.data[s.pos:])
	}
	s.pos += n
	return out
}

func (s *byteStream) remaining() int {
	r := len(s.data) - s.pos
	if r < 0 {
		return 0
	}
	return r
}
