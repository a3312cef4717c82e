package wire

import "github.com/samsamfire/gosomeip/internal/bitcodec"

// Deserializer is a cursor-based reader over a byte buffer with
// remaining-length scoping, used to parse length-prefixed sub-arrays
// (SD entries, SD options, message payloads) without copying. Every Take*
// method returns an ok flag and leaves the cursor unchanged on failure,
// so an outer parser can fall through to its own error handling rather
// than unwind from a panic.
type Deserializer struct {
	data            []byte
	pos             int
	remainingLimit  int // absolute end offset of the current scope; -1 means "to end of data"
	shrinkThreshold int
	belowHalfStreak int
}

// NewDeserializer wraps data for cursor-based reading.
func NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{data: data, remainingLimit: -1, shrinkThreshold: DefaultShrinkThreshold}
}

// Remaining returns the number of unconsumed bytes within the current
// remaining-length scope.
func (d *Deserializer) Remaining() int {
	end := len(d.data)
	if d.remainingLimit >= 0 && d.remainingLimit < end {
		end = d.remainingLimit
	}
	if end < d.pos {
		return 0
	}
	return end - d.pos
}

// Pos returns the current cursor offset from the start of data.
func (d *Deserializer) Pos() int {
	return d.pos
}

// SetRemaining installs a tighter bound than "rest of buffer", used to
// scope a length-prefixed sub-array: the n bytes following the cursor.
// Passing a negative value removes the bound.
func (d *Deserializer) SetRemaining(n int) {
	if n < 0 {
		d.remainingLimit = -1
		return
	}
	d.remainingLimit = d.pos + n
}

// checkAvailable checks out n bytes from the current scope, returning false
// (without moving the cursor) if not enough remain.
func (d *Deserializer) checkAvailable(n int) bool {
	return n <= d.Remaining()
}

// TakeU8 consumes one byte.
func (d *Deserializer) TakeU8() (uint8, bool) {
	if !d.checkAvailable(1) {
		return 0, false
	}
	v, _ := bitcodec.TakeU8(d.data[d.pos:])
	d.pos++
	return v, true
}

// TakeU16 consumes a big-endian uint16.
func (d *Deserializer) TakeU16() (uint16, bool) {
	if !d.checkAvailable(2) {
		return 0, false
	}
	v, _ := bitcodec.TakeU16(d.data[d.pos:])
	d.pos += 2
	return v, true
}

// TakeU32 consumes a big-endian uint32, or three bytes when omitHighByte
// is set (24-bit TTL fields).
func (d *Deserializer) TakeU32(omitHighByte bool) (uint32, bool) {
	width := bitcodec.ConsumedWidth(omitHighByte)
	if !d.checkAvailable(width) {
		return 0, false
	}
	v, _ := bitcodec.TakeU32(d.data[d.pos:], omitHighByte)
	d.pos += width
	return v, true
}

// TakeU64 consumes a big-endian uint64.
func (d *Deserializer) TakeU64() (uint64, bool) {
	if !d.checkAvailable(8) {
		return 0, false
	}
	v, _ := bitcodec.TakeU64(d.data[d.pos:])
	d.pos += 8
	return v, true
}

// TakeBytes consumes and returns a copy of the next n bytes.
func (d *Deserializer) TakeBytes(n int) ([]byte, bool) {
	if n < 0 || !d.checkAvailable(n) {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, d.data[d.pos:d.pos+n])
	d.pos += n
	return out, true
}

// TakeString consumes n bytes and returns them as a string.
func (d *Deserializer) TakeString(n int) (string, bool) {
	b, ok := d.TakeBytes(n)
	if !ok {
		return "", false
	}
	return string(b), true
}

// TakeVec consumes every remaining byte in the current scope.
func (d *Deserializer) TakeVec() ([]byte, bool) {
	return d.TakeBytes(d.Remaining())
}

// LookAhead performs a non-consuming read of width bytes starting at
// offset bytes past the cursor.
func (d *Deserializer) LookAhead(offset, width int) ([]byte, bool) {
	if offset < 0 || width < 0 {
		return nil, false
	}
	start := d.pos + offset
	end := start + width
	limit := len(d.data)
	if d.remainingLimit >= 0 && d.remainingLimit < limit {
		limit = d.remainingLimit
	}
	if end > limit || start > limit {
		return nil, false
	}
	return d.data[start:end], true
}

// AppendData appends more bytes to the tail of the buffer, used by a
// streaming TCP framer that receives partial messages.
func (d *Deserializer) AppendData(data []byte) {
	d.data = append(d.data, data...)
}

// Drop discards n bytes already-consumed bytes from the front of the
// buffer, compacting the cursor. Used by TCP framing once a full message
// has been handed off.
func (d *Deserializer) Drop(n int) {
	if n <= 0 {
		return
	}
	if n > len(d.data) {
		n = len(d.data)
	}
	d.data = d.data[n:]
	d.pos -= n
	if d.pos < 0 {
		d.pos = 0
	}
	if d.remainingLimit >= 0 {
		d.remainingLimit = max(d.remainingLimit-n, 0)
	}
}

// Reset clears the buffer and cursor, applying the same shrink policy as
// Serializer.Reset.
func (d *Deserializer) Reset() {
	capBefore := cap(d.data)
	d.data = d.data[:0]
	d.pos = 0
	d.remainingLimit = -1
	if capBefore == 0 {
		return
	}
	if len(d.data) < capBefore/2 {
		d.belowHalfStreak++
	} else {
		d.belowHalfStreak = 0
	}
	if d.belowHalfStreak > d.shrinkThreshold {
		d.data = nil
		d.belowHalfStreak = 0
	}
}
