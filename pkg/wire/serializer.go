// Package wire implements the SOME/IP bit-exact header, payload and message
// codec (spec components C2/C3): an append-only Serializer, a cursor-based
// Deserializer, and the Header/Payload/Message value types built on top of
// them.
package wire

import "github.com/samsamfire/gosomeip/internal/bitcodec"

// DefaultShrinkThreshold is the number of consecutive low-utilization
// Reset calls tolerated before the backing buffer is released back to the
// allocator.
const DefaultShrinkThreshold = 8

// Serializer is an append-only byte buffer with size tracking and a
// configurable shrink policy, mirroring the teacher's pattern of a small
// ring/scratch buffer type per protocol (see internal/fifo.Fifo) adapted
// here to an append-only codec buffer.
type Serializer struct {
	buf              []byte
	shrinkThreshold  int
	belowHalfStreak  int
}

// NewSerializer creates a Serializer with the given shrink threshold. A
// threshold of 0 uses DefaultShrinkThreshold.
func NewSerializer(shrinkThreshold int) *Serializer {
	if shrinkThreshold <= 0 {
		shrinkThreshold = DefaultShrinkThreshold
	}
	return &Serializer{shrinkThreshold: shrinkThreshold}
}

// Bytes returns the accumulated buffer. The returned slice aliases the
// Serializer's internal storage and must not be retained across a Reset.
func (s *Serializer) Bytes() []byte {
	return s.buf
}

// Len returns the number of bytes appended so far.
func (s *Serializer) Len() int {
	return len(s.buf)
}

// PutU8 appends a single byte.
func (s *Serializer) PutU8(v uint8) {
	s.buf = bitcodec.PutU8(s.buf, v)
}

// PutU16 appends v big-endian.
func (s *Serializer) PutU16(v uint16) {
	s.buf = bitcodec.PutU16(s.buf, v)
}

// PutU32 appends v big-endian. When omitHighByte is true only the three
// low-order bytes are written (24-bit TTL fields).
func (s *Serializer) PutU32(v uint32, omitHighByte bool) {
	s.buf = bitcodec.PutU32(s.buf, v, omitHighByte)
}

// PutU64 appends v big-endian.
func (s *Serializer) PutU64(v uint64) {
	s.buf = bitcodec.PutU64(s.buf, v)
}

// PutBytes appends data verbatim.
func (s *Serializer) PutBytes(data []byte) {
	s.buf = bitcodec.PutBytes(s.buf, data)
}

// Reserve grows the backing array without changing the logical length,
// avoiding repeated reallocation for a caller that knows the final size
// up front.
func (s *Serializer) Reserve(n int) {
	if cap(s.buf)-len(s.buf) >= n {
		return
	}
	grown := make([]byte, len(s.buf), len(s.buf)+n)
	copy(grown, s.buf)
	s.buf = grown
}

// Reset clears the logical length. If the buffer's size after clearing
// stays below half of capacity across more than buffer_shrink_threshold
// consecutive calls, the backing array is released so a long-lived serializer used for
// many small messages does not retain a high-water-mark allocation forever.
func (s *Serializer) Reset() {
	capBefore := cap(s.buf)
	s.buf = s.buf[:0]
	if capBefore == 0 {
		return
	}
	if len(s.buf) < capBefore/2 {
		s.belowHalfStreak++
	} else {
		s.belowHalfStreak = 0
	}
	if s.belowHalfStreak > s.shrinkThreshold {
		s.buf = nil
		s.belowHalfStreak = 0
	}
}
