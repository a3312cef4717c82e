package tp

import (
	"sort"
	"sync"
	"time"

	"github.com/samsamfire/gosomeip/pkg/wire"
	log "github.com/sirupsen/logrus"
)

// StaleTimeout is the fixed window the reaper uses to evict unfinished
// reassembly state, per spec.md §4.7.
const StaleTimeout = 5 * time.Second

// DefaultMaxSegmentLength is tp_max_segment_length's default.
const DefaultMaxSegmentLength = 1392

// key identifies one in-flight reassembly: (peer-ip, peer-port,
// message-id, session). message-id packs service, method, client,
// interface version and the message type with its TP flag cleared.
type key struct {
	peerIP    string
	peerPort  int
	messageID uint64
	session   uint16
}

func messageID(h wire.Header) uint64 {
	msgType := uint64(h.MessageType.WithoutTP())
	return uint64(h.Service)<<48 | uint64(h.Method)<<32 | uint64(h.Client)<<16 | uint64(h.InterfaceVer)<<8 | msgType
}

// interval is an inclusive [start, end] byte range within the
// reassembled payload. Per the resolved open question, intervals are
// keyed (and deduplicated) by start alone: two segments with the same
// start but different end are treated as duplicates of each other.
type interval struct {
	start, end int
}

type entryState struct {
	creation    time.Time
	lastSeenAt  time.Time
	maxSize     int
	currentSize int // sum of admitted segment_size bytes, for the admission cap only
	received    []interval
	buffer      []byte
	lastSegmentSeen bool
}

// Reassembler holds per-(peer, message-id, session) reassembly state and
// reaps entries created more than StaleTimeout ago. The zero value is not
// usable; construct with NewReassembler.
type Reassembler struct {
	mu             sync.Mutex
	entries        map[key]*entryState
	maxMessageSize int
	maxSegmentLen  int
	timer          *time.Timer
	stopped        bool
	staleTimeout   time.Duration

	onMetrics func(evicted int)
}

// NewReassembler creates a Reassembler. maxMessageSize bounds any single
// reassembled message (max_message_size); maxSegmentLen bounds any one
// segment (tp_max_segment_length). Zero values take the package defaults.
func NewReassembler(maxMessageSize, maxSegmentLen int) *Reassembler {
	if maxSegmentLen <= 0 {
		maxSegmentLen = DefaultMaxSegmentLength
	}
	r := &Reassembler{
		entries:        make(map[key]*entryState),
		maxMessageSize: maxMessageSize,
		maxSegmentLen:  maxSegmentLen,
		staleTimeout:   StaleTimeout,
	}
	return r
}

// OnEviction registers a callback invoked (outside the reassembler's
// lock) with the number of entries the reaper dropped on a given sweep.
func (r *Reassembler) OnEviction(cb func(evicted int)) {
	r.onMetrics = cb
}

// Admit processes one inbound TP segment. It returns (assembled, true,
// nil) once the segment completes its message; (nil, false, nil) if the
// segment was accepted but reassembly is still pending; and a non-nil
// error if the segment failed admission (in which case the existing
// reassembly state, if any, is left untouched).
func (r *Reassembler) Admit(data []byte, peerIP string, peerPort int) ([]byte, bool, error) {
	if len(data) < wire.HeaderSize+TPHeaderSize {
		segmentsDropped.WithLabelValues("segment_too_short").Inc()
		return nil, false, ErrSegmentTooShort
	}
	d := wire.NewDeserializer(data)
	hdr, ok := wire.DecodeHeader(d)
	if !ok {
		segmentsDropped.WithLabelValues("segment_too_short").Inc()
		return nil, false, ErrSegmentTooShort
	}
	if !hdr.MessageType.IsTP() {
		segmentsDropped.WithLabelValues("not_tp_segment").Inc()
		return nil, false, ErrNotTPSegment
	}
	if int(hdr.Length)+8 != len(data) {
		segmentsDropped.WithLabelValues("datagram_size_mismatch").Inc()
		return nil, false, ErrDatagramSizeMismatch
	}
	sub, ok := DecodeSubHeader(data[wire.HeaderSize:])
	if !ok {
		segmentsDropped.WithLabelValues("segment_too_short").Inc()
		return nil, false, ErrSegmentTooShort
	}
	segmentSize := int(hdr.Length) - 8 - TPHeaderSize
	if segmentSize < 0 {
		segmentsDropped.WithLabelValues("segment_size_mismatch").Inc()
		return nil, false, ErrSegmentSizeMismatch
	}
	if segmentSize > r.maxSegmentLen {
		segmentsDropped.WithLabelValues("segment_too_large").Inc()
		return nil, false, ErrSegmentTooLarge
	}
	if sub.MoreSegments && segmentSize%16 != 0 {
		segmentsDropped.WithLabelValues("segment_not_aligned").Inc()
		return nil, false, ErrSegmentNotAligned
	}
	offset := int(sub.Offset)
	if r.maxMessageSize > 0 && offset+segmentSize > r.maxMessageSize {
		segmentsDropped.WithLabelValues("message_too_large").Inc()
		return nil, false, ErrMessageTooLarge
	}
	payload := data[wire.HeaderSize+TPHeaderSize:]
	if len(payload) != segmentSize {
		segmentsDropped.WithLabelValues("segment_size_mismatch").Inc()
		return nil, false, ErrSegmentSizeMismatch
	}

	k := key{peerIP: peerIP, peerPort: peerPort, messageID: messageID(hdr), session: hdr.Session}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxMessageSize > 0 {
		var existing *entryState
		if e, ok := r.entries[k]; ok {
			existing = e
		}
		current := 0
		if existing != nil {
			current = existing.currentSize
		}
		if current+segmentSize > r.maxMessageSize {
			segmentsDropped.WithLabelValues("message_too_large").Inc()
			return nil, false, ErrMessageTooLarge
		}
	}

	state, known := r.sameMessageState(k, hdr)
	if !known {
		state = r.newEntry(k, hdr)
	}

	state.admit(offset, payload, sub.MoreSegments, hdr.ReturnCode)
	if !known {
		// The first segment seen supplies the assembled message's header.
		copy(state.buffer[:wire.HeaderSize], data[:wire.HeaderSize])
	}
	state.lastSeenAt = time.Now()

	if !state.complete() {
		return nil, false, nil
	}

	assembled := state.finalize(hdr.ReturnCode)
	delete(r.entries, k)
	segmentsReassembled.Inc()
	return assembled, true, nil
}

// sameMessageState returns the existing state for k if the caller's
// session still matches; if a different session is in flight for the
// same message-id it is discarded (a new subscription/request cycle
// always wins over a stale one).
func (r *Reassembler) sameMessageState(k key, hdr wire.Header) (*entryState, bool) {
	st, ok := r.entries[k]
	if !ok {
		for other, existing := range r.entries {
			if other.peerIP == k.peerIP && other.peerPort == k.peerPort && other.messageID == k.messageID && other.session != k.session {
				log.WithFields(log.Fields{"service": hdr.Service, "method": hdr.Method, "session": hdr.Session}).
					Debug("tp: new session for in-flight message-id, discarding prior buffer")
				delete(r.entries, other)
			}
		}
		return nil, false
	}
	return st, true
}

func (r *Reassembler) newEntry(k key, hdr wire.Header) *entryState {
	now := time.Now()
	st := &entryState{creation: now, lastSeenAt: now, maxSize: r.maxMessageSize}
	r.entries[k] = st
	r.armReaper()
	return st
}

// admit places one validated segment into st, applying the admission
// policy of spec.md §4.7. Called with the reassembler's lock held.
func (st *entryState) admit(offset int, payload []byte, more bool, rc wire.ReturnCode) {
	first := len(st.buffer) == 0 && len(st.received) == 0

	if first {
		hdrStub := make([]byte, wire.HeaderSize)
		st.buffer = hdrStub
		if offset == 0 {
			st.buffer = append(st.buffer, payload...)
		} else {
			st.buffer = growZeroed(st.buffer, wire.HeaderSize+offset)
			st.buffer = append(st.buffer, payload...)
		}
		st.received = []interval{{start: offset, end: offset + len(payload) - 1}}
		st.currentSize += len(payload)
		if !more {
			st.lastSegmentSeen = true
		}
		return
	}

	st.insertSegment(offset, payload, more)
}

// insertSegment handles every subsequent segment for an already-seen
// message-id/session, per the predecessor/successor overlap rules.
func (st *entryState) insertSegment(offset int, payload []byte, more bool) {
	// The terminal segment marks completion regardless of what the
	// duplicate/overlap admission policy below does with its bytes.
	if !more {
		st.lastSegmentSeen = true
	}

	newStart := offset
	newEnd := offset + len(payload) - 1

	idx := sort.Search(len(st.received), func(i int) bool { return st.received[i].start >= newStart })

	// Duplicate: an interval with this exact start already exists.
	if idx < len(st.received) && st.received[idx].start == newStart {
		log.WithField("offset", offset).Debug("tp: duplicate segment, dropping")
		return
	}

	var pred *interval
	if idx > 0 {
		pred = &st.received[idx-1]
	}
	var succ *interval
	if idx < len(st.received) {
		succ = &st.received[idx]
	}

	data := payload
	start := newStart

	if pred != nil && newStart <= pred.end {
		if newEnd <= pred.end {
			log.WithFields(log.Fields{"offset": offset}).Debug("tp: segment fully contained in predecessor, dropping")
			return
		}
		// Overlap with predecessor: earlier segment wins, skip the
		// overlapping prefix of the new one.
		skip := pred.end - newStart + 1
		data = data[skip:]
		start = pred.end + 1
		log.WithField("offset", offset).Debug("tp: segment overlaps predecessor, trimming overlap")
	}

	end := start + len(data) - 1
	if succ != nil && end >= succ.start {
		// Overlap with successor: truncate the new segment's tail.
		cut := end - succ.start + 1
		if cut >= len(data) {
			log.WithField("offset", offset).Debug("tp: segment fully contained in successor, dropping")
			return
		}
		data = data[:len(data)-cut]
		end = succ.start - 1
		log.WithField("offset", offset).Debug("tp: segment overlaps successor, trimming overlap")
	}

	requiredLen := wire.HeaderSize + end + 1
	if requiredLen > len(st.buffer) {
		st.buffer = growZeroed(st.buffer, requiredLen)
	}
	copy(st.buffer[wire.HeaderSize+start:wire.HeaderSize+end+1], data)

	newInterval := interval{start: start, end: end}
	st.received = append(st.received, interval{})
	copy(st.received[idx+1:], st.received[idx:])
	st.received[idx] = newInterval

	st.currentSize += len(payload)
}

// growZeroed extends buf to length n, zero-filling the new tail, without
// shrinking an already-larger buffer.
func growZeroed(buf []byte, n int) []byte {
	if len(buf) >= n {
		return buf
	}
	grown := make([]byte, n)
	copy(grown, buf)
	return grown
}

// complete reports whether the received intervals form one contiguous
// span from byte 0, and the final segment has been seen.
func (st *entryState) complete() bool {
	if !st.lastSegmentSeen || len(st.received) == 0 {
		return false
	}
	if st.received[0].start != 0 {
		return false
	}
	for i := 1; i < len(st.received); i++ {
		if st.received[i].start != st.received[i-1].end+1 {
			return false
		}
	}
	return true
}

// finalize rewrites the buffer's header Length field to the final
// assembled size and stamps in the completing segment's return code.
func (st *entryState) finalize(rc wire.ReturnCode) []byte {
	payloadLen := len(st.buffer) - wire.HeaderSize
	length := uint32(wire.HeaderSize-8) + uint32(payloadLen)
	st.buffer[4] = byte(length >> 24)
	st.buffer[5] = byte(length >> 16)
	st.buffer[6] = byte(length >> 8)
	st.buffer[7] = byte(length)
	// Clear the TP flag now that the message is whole.
	st.buffer[14] &^= byte(wire.TPFlag)
	st.buffer[15] = byte(rc)
	return st.buffer
}
