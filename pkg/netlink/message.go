package netlink

import "encoding/binary"

// nlHeaderLen is the size of struct nlmsghdr: len, type, flags, seq, pid.
const nlHeaderLen = 16

// ifAddrMsgLen is the size of struct ifaddrmsg: family, prefixlen, flags,
// scope, index.
const ifAddrMsgLen = 8

// ifInfoMsgLen is the size of struct ifinfomsg: family, pad, type, index,
// flags, change.
const ifInfoMsgLen = 16

// rtMsgLen is the size of struct rtmsg up to and including the flags word.
const rtMsgLen = 12

// rtGenMsgLen is the size of struct rtgenmsg: family plus 3 bytes padding,
// the body a dump request (GETADDR/GETLINK/GETROUTE) carries.
const rtGenMsgLen = 4

// header is a decoded nlmsghdr.
type header struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	PID   uint32
}

func nlaAlign(n int) int { return (n + 3) &^ 3 }

// decodeMessages splits a raw netlink receive buffer into one header plus
// body slice per message. Messages that claim more bytes than remain are
// dropped, matching the Deserializer-style "truncated input yields nothing"
// contract used throughout this module.
func decodeMessages(buf []byte) []struct {
	Header header
	Body   []byte
} {
	var out []struct {
		Header header
		Body   []byte
	}
	for len(buf) >= nlHeaderLen {
		h := header{
			Len:   binary.LittleEndian.Uint32(buf[0:4]),
			Type:  binary.LittleEndian.Uint16(buf[4:6]),
			Flags: binary.LittleEndian.Uint16(buf[6:8]),
			Seq:   binary.LittleEndian.Uint32(buf[8:12]),
			PID:   binary.LittleEndian.Uint32(buf[12:16]),
		}
		if h.Len < nlHeaderLen || int(h.Len) > len(buf) {
			return out
		}
		body := buf[nlHeaderLen:h.Len]
		out = append(out, struct {
			Header header
			Body   []byte
		}{Header: h, Body: body})
		buf = buf[nlaAlign(int(h.Len)):]
	}
	return out
}

// parseAttrs walks a run of rtattr records (len, type, payload, padding)
// into a type -> payload map. Malformed trailing bytes are ignored.
func parseAttrs(buf []byte) map[uint16][]byte {
	attrs := make(map[uint16][]byte)
	for len(buf) >= 4 {
		attrLen := int(binary.LittleEndian.Uint16(buf[0:2]))
		attrType := binary.LittleEndian.Uint16(buf[2:4])
		if attrLen < 4 || attrLen > len(buf) {
			return attrs
		}
		attrs[attrType] = buf[4:attrLen]
		buf = buf[nlaAlign(attrLen):]
	}
	return attrs
}

func encodeHeader(msgType uint16, flags uint16, seq uint32, bodyLen int) []byte {
	out := make([]byte, nlHeaderLen)
	binary.LittleEndian.PutUint32(out[0:4], uint32(nlHeaderLen+bodyLen))
	binary.LittleEndian.PutUint16(out[4:6], msgType)
	binary.LittleEndian.PutUint16(out[6:8], flags)
	binary.LittleEndian.PutUint32(out[8:12], seq)
	binary.LittleEndian.PutUint32(out[12:16], 0)
	return out
}

// buildDumpRequest builds a NLM_F_REQUEST|NLM_F_DUMP message carrying a
// bare rtgenmsg body (family AF_UNSPEC), the shape GETADDR/GETLINK/GETROUTE
// dump requests share.
func buildDumpRequest(msgType uint16, flags uint16, seq uint32) []byte {
	h := encodeHeader(msgType, flags, seq, rtGenMsgLen)
	body := make([]byte, rtGenMsgLen)
	return append(h, body...)
}

type ifAddrMsg struct {
	Family    uint8
	PrefixLen uint8
	Flags     uint8
	Scope     uint8
	Index     int32
}

func parseIfAddrMsg(body []byte) (ifAddrMsg, map[uint16][]byte, bool) {
	if len(body) < ifAddrMsgLen {
		return ifAddrMsg{}, nil, false
	}
	m := ifAddrMsg{
		Family:    body[0],
		PrefixLen: body[1],
		Flags:     body[2],
		Scope:     body[3],
		Index:     int32(binary.LittleEndian.Uint32(body[4:8])),
	}
	return m, parseAttrs(body[ifAddrMsgLen:]), true
}

type ifInfoMsg struct {
	Family uint8
	Type   uint16
	Index  int32
	Flags  uint32
}

func parseIfInfoMsg(body []byte) (ifInfoMsg, map[uint16][]byte, bool) {
	if len(body) < ifInfoMsgLen {
		return ifInfoMsg{}, nil, false
	}
	m := ifInfoMsg{
		Family: body[0],
		Type:   binary.LittleEndian.Uint16(body[2:4]),
		Index:  int32(binary.LittleEndian.Uint32(body[4:8])),
		Flags:  binary.LittleEndian.Uint32(body[8:12]),
	}
	return m, parseAttrs(body[ifInfoMsgLen:]), true
}

type rtMsg struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

func parseRtMsg(body []byte) (rtMsg, map[uint16][]byte, bool) {
	if len(body) < rtMsgLen {
		return rtMsg{}, nil, false
	}
	m := rtMsg{
		Family:   body[0],
		DstLen:   body[1],
		SrcLen:   body[2],
		Table:    body[4],
		Protocol: body[5],
		Scope:    body[6],
		Type:     body[7],
		Flags:    binary.LittleEndian.Uint32(body[8:12]),
	}
	return m, parseAttrs(body[rtMsgLen:]), true
}

// ifaceName trims the trailing NUL the kernel pads IFLA_IFNAME with.
func ifaceName(attr []byte) string {
	for i, b := range attr {
		if b == 0 {
			return string(attr[:i])
		}
	}
	return string(attr)
}
