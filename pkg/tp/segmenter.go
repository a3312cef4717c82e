package tp

import "github.com/samsamfire/gosomeip/pkg/wire"

// Segment splits msg's encoded form into one or more TP segments, each no
// larger than maxSegment payload bytes (a multiple of 16, except
// possibly the final segment). It is the outbound counterpart of
// Reassembler, for an encoded message that exceeds the transport's
// datagram limit.
func Segment(msg *wire.Message, maxSegment int) [][]byte {
	maxSegment -= maxSegment % 16
	if maxSegment <= 0 {
		maxSegment = 16
	}

	payload := msg.Payload

	var segments [][]byte
	for offset := 0; offset < len(payload) || (offset == 0 && len(payload) == 0); {
		end := offset + maxSegment
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}
		chunk := payload[offset:end]

		s := wire.NewSerializer(0)
		hdr := msg.Header
		hdr.MessageType = hdr.MessageType.WithTP()
		wire.EncodeHeader(s, hdr, len(chunk)+4)
		sub := SubHeader{Offset: uint32(offset), MoreSegments: more}
		subBytes := sub.Encode()
		s.PutBytes(subBytes[:])
		s.PutBytes(chunk)
		segments = append(segments, s.Bytes())

		if !more {
			break
		}
		offset = end
	}
	return segments
}
