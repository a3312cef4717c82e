package tp

import (
	"testing"
	"time"

	"github.com/samsamfire/gosomeip/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseHeader() wire.Header {
	return wire.Header{
		Service: 0x1234, Method: 0x0042, Client: 0x0001, Session: 0x0001,
		ProtocolVer: 1, InterfaceVer: 1, MessageType: wire.TypeRequest, ReturnCode: wire.EOK,
	}
}

// buildSegment constructs one raw TP segment datagram.
func buildSegment(t *testing.T, hdr wire.Header, offset int, payload []byte, more bool) []byte {
	t.Helper()
	s := wire.NewSerializer(0)
	hdr.MessageType = hdr.MessageType.WithTP()
	wire.EncodeHeader(s, hdr, len(payload)+4)
	sub := SubHeader{Offset: uint32(offset), MoreSegments: more}
	subBytes := sub.Encode()
	s.PutBytes(subBytes[:])
	s.PutBytes(payload)
	return s.Bytes()
}

func fill(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestThreeSegmentRoundTripOutOfOrder(t *testing.T) {
	r := NewReassembler(0, 0)
	hdr := baseHeader()

	seg0 := buildSegment(t, hdr, 0, fill(1392, 0xAA), true)
	seg1 := buildSegment(t, hdr, 1392, fill(1392, 0xBB), true)
	seg2 := buildSegment(t, hdr, 2784, fill(1392, 0xCC), false)

	order := [][]byte{seg2, seg0, seg1}

	var assembled []byte
	var complete bool
	for _, seg := range order {
		var err error
		assembled, complete, err = r.Admit(seg, "10.0.0.1", 30509)
		require.NoError(t, err)
	}
	require.True(t, complete)
	assert.Len(t, assembled, wire.HeaderSize+3*1392)

	msg, err := wire.Decode(assembled)
	require.NoError(t, err)
	assert.Len(t, msg.Payload, 3*1392)
	assert.EqualValues(t, 3*1392+8, msg.Header.Length)
	assert.False(t, msg.Header.MessageType.IsTP())
}

func TestOverlapTrimmingEarlierSegmentWins(t *testing.T) {
	r := NewReassembler(0, 0)
	hdr := baseHeader()

	first := fill(1392, 0x11)
	second := fill(16, 0x22) // overlaps the tail 16 bytes of `first`

	seg0 := buildSegment(t, hdr, 0, first, true)
	seg1 := buildSegment(t, hdr, 1376, second, false)

	_, complete, err := r.Admit(seg0, "10.0.0.2", 30509)
	require.NoError(t, err)
	assert.False(t, complete)

	assembled, complete, err := r.Admit(seg1, "10.0.0.2", 30509)
	require.NoError(t, err)
	require.True(t, complete)

	payload := assembled[wire.HeaderSize:]
	require.Len(t, payload, 1392)
	// Bytes [1376..1392) come from the earlier segment (0x11), not the
	// later, overlapping one (0x22).
	for i := 1376; i < 1392; i++ {
		assert.Equalf(t, byte(0x11), payload[i], "byte %d should retain the earlier segment's value", i)
	}
}

func TestDuplicateAfterCompletionStartsFreshReassembly(t *testing.T) {
	r := NewReassembler(0, 0)
	hdr := baseHeader()
	seg := buildSegment(t, hdr, 0, fill(32, 0x01), false)

	_, complete1, err := r.Admit(seg, "10.0.0.3", 1)
	require.NoError(t, err)
	require.True(t, complete1)
	assert.Equal(t, 0, r.Len())

	// A duplicate arriving after completion starts a fresh reassembly of
	// one segment and completes again (spec only requires "two identical
	// segments yield exactly one completed message" within one
	// reassembly, not across a second run).
	_, complete2, err := r.Admit(seg, "10.0.0.3", 1)
	require.NoError(t, err)
	assert.True(t, complete2)
}

func TestDuplicateWithinOneReassemblyYieldsOneCompletion(t *testing.T) {
	r := NewReassembler(0, 0)
	hdr := baseHeader()
	segA := buildSegment(t, hdr, 0, fill(16, 0x01), true)
	segBDup := buildSegment(t, hdr, 0, fill(16, 0x99), false) // same start, different end-content

	_, complete, err := r.Admit(segA, "10.0.0.4", 1)
	require.NoError(t, err)
	assert.False(t, complete)

	_, complete, err = r.Admit(segBDup, "10.0.0.4", 1)
	require.NoError(t, err)
	require.True(t, complete)

	// A true duplicate of the completing segment must now start a new
	// reassembly rather than reopen the completed one.
	assert.Equal(t, 0, r.Len())
}

func TestSegmentExceedingMaxMessageSizeDropped(t *testing.T) {
	r := NewReassembler(100, 0)
	hdr := baseHeader()
	seg := buildSegment(t, hdr, 90, fill(32, 0x01), false)
	_, complete, err := r.Admit(seg, "10.0.0.5", 1)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.False(t, complete)
}

func TestNewSessionDiscardsPriorBuffer(t *testing.T) {
	r := NewReassembler(0, 0)
	hdr := baseHeader()
	hdr.Session = 1
	seg1 := buildSegment(t, hdr, 0, fill(16, 0x01), true)
	_, _, err := r.Admit(seg1, "10.0.0.6", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	hdr.Session = 2
	seg2 := buildSegment(t, hdr, 0, fill(16, 0x02), false)
	_, complete, err := r.Admit(seg2, "10.0.0.6", 1)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, 0, r.Len())
}

func TestReaperEvictsStaleEntryWithoutCompleting(t *testing.T) {
	r := NewReassembler(0, 0)
	r.staleTimeout = 30 * time.Millisecond
	hdr := baseHeader()
	seg := buildSegment(t, hdr, 0, fill(16, 0x01), true) // not final
	_, complete, err := r.Admit(seg, "10.0.0.7", 1)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 1, r.Len())

	evicted := make(chan int, 1)
	r.OnEviction(func(n int) { evicted <- n })

	select {
	case n := <-evicted:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("reaper did not evict stale entry in time")
	}
	assert.Equal(t, 0, r.Len())
}

func TestNonFinalSegmentMustBeAligned(t *testing.T) {
	r := NewReassembler(0, 0)
	hdr := baseHeader()
	seg := buildSegment(t, hdr, 0, fill(17, 0x01), true)
	_, _, err := r.Admit(seg, "10.0.0.8", 1)
	assert.ErrorIs(t, err, ErrSegmentNotAligned)
}
