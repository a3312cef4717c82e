package wire

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// HeaderSize is the fixed SOME/IP header size in bytes.
const HeaderSize = 16

// TPHeaderSize is the size of the TP sub-header appended after the
// SOME/IP header when the TP flag is set.
const TPHeaderSize = 4

// ErrTruncated is returned when a buffer is shorter than the header or
// payload it claims to carry.
var ErrTruncated = errors.New("wire: truncated message")

// ErrLengthMismatch is returned when the header's Length field disagrees
// with the number of bytes actually available.
var ErrLengthMismatch = errors.New("wire: length field does not match datagram size")

// MessageType is the 8-bit SOME/IP message type. Bit 0x20 marks a
// TP-segmented message; it is orthogonal to the base type.
type MessageType uint8

const (
	TypeRequest           MessageType = 0x00
	TypeRequestNoReturn   MessageType = 0x01
	TypeNotification      MessageType = 0x02
	TypeRequestAck        MessageType = 0x40
	TypeRequestNoReturnAck MessageType = 0x41
	TypeNotificationAck   MessageType = 0x42
	TypeResponse          MessageType = 0x80
	TypeError             MessageType = 0x81
	TypeResponseAck       MessageType = 0xC0
	TypeErrorAck          MessageType = 0xC1

	// TPFlag marks a message as carrying a TP sub-header after the
	// SOME/IP header and a segment, rather than a complete payload.
	TPFlag MessageType = 0x20
)

// IsTP reports whether the TP flag is set.
func (t MessageType) IsTP() bool { return t&TPFlag != 0 }

// WithTP returns t with the TP flag set.
func (t MessageType) WithTP() MessageType { return t | TPFlag }

// WithoutTP returns t with the TP flag cleared.
func (t MessageType) WithoutTP() MessageType { return t &^ TPFlag }

// ReturnCode is the 8-bit SOME/IP return code. Values 0x40-0xFF are
// reserved for future AUTOSAR use.
type ReturnCode uint8

const (
	EOK                     ReturnCode = 0x00
	ENotOk                  ReturnCode = 0x01
	EUnknownService         ReturnCode = 0x02
	EUnknownMethod          ReturnCode = 0x03
	ENotReady               ReturnCode = 0x04
	ENotReachable           ReturnCode = 0x05
	ETimeout                ReturnCode = 0x06
	EWrongProtocolVersion   ReturnCode = 0x07
	EWrongInterfaceVersion  ReturnCode = 0x08
	EMalformedMessage       ReturnCode = 0x09
	EWrongMessageType       ReturnCode = 0x0A
	EReservedRangeStart     ReturnCode = 0x40
)

// Reserved reports whether rc falls in the AUTOSAR-reserved range.
func (rc ReturnCode) Reserved() bool { return rc >= EReservedRangeStart }

// Service discovery reserved addressing, per external interfaces (spec §6).
const (
	SDService  uint16 = 0xFFFF
	SDMethod   uint16 = 0x8100
	SDClient   uint16 = 0x0000
	SDProtocol uint8  = 0x01
	SDIface    uint8  = 0x01
)

// Header is the 16-byte fixed SOME/IP header. Length counts every byte
// after itself: Client, Session, ProtoVer, IfaceVer, MsgType, ReturnCode
// and the payload.
type Header struct {
	Service       uint16
	Method        uint16
	Length        uint32
	Client        uint16
	Session       uint16
	ProtocolVer   uint8
	InterfaceVer  uint8
	MessageType   MessageType
	ReturnCode    ReturnCode
}

// MessageID packs Service and Method into the 32-bit wire message-id.
func (h Header) MessageID() uint32 {
	return uint32(h.Service)<<16 | uint32(h.Method)
}

// Payload is a message's opaque application data. It is an alias, not a
// distinct type, since every wire-level helper otherwise wants a plain
// []byte; the name documents intent at call sites that deal with
// whole-payload values (runtime factory, SD body builders) rather than
// individual bytes.
type Payload = []byte

// Message is a full SOME/IP message: header plus payload, and the
// runtime-only metadata that travels with it but never appears on the
// wire. A Message exclusively owns its Payload slice; passing a Message
// between goroutines transfers that ownership, it is not copied.
type Message struct {
	Header  Header
	Payload Payload

	// Instance is carried out-of-band by transport routing; it is never
	// part of the wire header.
	Instance uint16

	IsReliable bool
	// IsInitial marks a message as freshly constructed by the runtime
	// rather than deserialized off the wire. Never serialized.
	IsInitial bool
	// CheckResult is zero when any configured E2E/CRC check passed (or
	// none is configured).
	CheckResult uint8
	// SecClient identifies the sending security client/process,
	// attached by the transport layer, not carried on the wire.
	SecClient uint32
	// Env names the sending environment/credential domain, attached by
	// the transport layer, not carried on the wire.
	Env string
}

// EncodeHeader writes h to s, big-endian, recomputing Length from
// payloadLen (the caller passes the actual payload size rather than
// relying on a stored field, eliminating the owning-message back-pointer
// the original codec used only to fetch this value).
func EncodeHeader(s *Serializer, h Header, payloadLen int) {
	length := uint32(HeaderSize-8) + uint32(payloadLen)
	s.PutU16(h.Service)
	s.PutU16(h.Method)
	s.PutU32(length, false)
	s.PutU16(h.Client)
	s.PutU16(h.Session)
	s.PutU8(h.ProtocolVer)
	s.PutU8(h.InterfaceVer)
	s.PutU8(uint8(h.MessageType))
	s.PutU8(uint8(h.ReturnCode))
}

// DecodeHeader reads a 16-byte header from d. ok is false, and the
// cursor is left unchanged, if fewer than HeaderSize bytes remain.
func DecodeHeader(d *Deserializer) (Header, bool) {
	startPos := d.Pos()
	service, ok1 := d.TakeU16()
	method, ok2 := d.TakeU16()
	length, ok3 := d.TakeU32(false)
	client, ok4 := d.TakeU16()
	session, ok5 := d.TakeU16()
	proto, ok6 := d.TakeU8()
	iface, ok7 := d.TakeU8()
	msgType, ok8 := d.TakeU8()
	retCode, ok9 := d.TakeU8()
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8 && ok9) {
		d.pos = startPos
		return Header{}, false
	}
	return Header{
		Service:      service,
		Method:       method,
		Length:       length,
		Client:       client,
		Session:      session,
		ProtocolVer:  proto,
		InterfaceVer: iface,
		MessageType:  MessageType(msgType),
		ReturnCode:   ReturnCode(retCode),
	}, true
}

// Encode serializes m's header then payload. Length is always recomputed
// from the current payload, never trusted from m.Header.Length.
func Encode(m *Message) []byte {
	s := NewSerializer(0)
	EncodeHeader(s, m.Header, len(m.Payload))
	s.PutBytes(m.Payload)
	return s.Bytes()
}

// Decode parses a complete SOME/IP datagram: header plus exactly
// Length-8 payload bytes. It enforces the invariant that datagram size
// equals Length+8.
func Decode(data []byte) (*Message, error) {
	d := NewDeserializer(data)
	hdr, ok := DecodeHeader(d)
	if !ok {
		return nil, ErrTruncated
	}
	if int(hdr.Length)+8 != len(data) {
		log.WithFields(log.Fields{
			"service": hdr.Service, "method": hdr.Method,
			"client": hdr.Client, "session": hdr.Session,
		}).Warn("wire: header length does not match datagram size")
		return nil, ErrLengthMismatch
	}
	payloadLen := int(hdr.Length) - (HeaderSize - 8)
	payload, ok := d.TakeBytes(payloadLen)
	if !ok {
		return nil, ErrTruncated
	}
	return &Message{Header: hdr, Payload: payload}, nil
}

// SetPayload replaces m's payload. An empty or nil value results in
// Length=8 and zero payload bytes once encoded.
func (m *Message) SetPayload(payload []byte) {
	m.Payload = payload
}
