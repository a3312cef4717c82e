package netlink

// requestKind identifies which dump a pending sequence number belongs to,
// packed into the low byte of the sequence so a NLMSG_ERROR reply can be
// matched back to its retry state without a side table keyed by kind.
type requestKind uint8

const (
	kindGetAddr requestKind = 1
	kindGetLink requestKind = 2
	kindGetRoute requestKind = 3
)

// maxRetries is the number of resends attempted after a NLMSG_ERROR before
// a request is abandoned.
const maxRetries = 3

// encodeSeq packs request_kind | (retry_count << 8), per spec.md §4.9.
func encodeSeq(kind requestKind, retry int) uint32 {
	return uint32(kind) | uint32(retry)<<8
}

func decodeSeq(seq uint32) (requestKind, int) {
	return requestKind(seq & 0xFF), int(seq >> 8)
}
