package tp

import "errors"

// Segment admission errors (spec.md §4.7 checks 1-8). Admission failures
// reject only the offending segment; any existing reassembly state for
// that message-id is left untouched.
var (
	ErrSegmentTooShort      = errors.New("tp: segment shorter than header+subheader")
	ErrNotTPSegment         = errors.New("tp: TP flag not set")
	ErrDatagramSizeMismatch = errors.New("tp: datagram size does not match header length")
	ErrSegmentSizeMismatch  = errors.New("tp: segment size does not match payload length")
	ErrSegmentTooLarge      = errors.New("tp: segment exceeds tp_max_segment_length")
	ErrSegmentNotAligned    = errors.New("tp: non-final segment size is not a multiple of 16")
	ErrMessageTooLarge      = errors.New("tp: reassembled message would exceed max_message_size")
)
