package sd

import (
	"bytes"
	"net"
	"sort"

	"github.com/samsamfire/gosomeip/pkg/wire"
)

// ConfigEntry is one "key" or "key=value" token of a Configuration option.
// Duplicates are preserved in arrival order and addressed by ordinal.
type ConfigEntry struct {
	Key      string
	Value    string
	HasValue bool
}

// Option is a tagged union over every SD option variant. Exactly one of
// the type-specific fields is meaningful, selected by Type.
type Option struct {
	Type OptionType

	// Configuration
	Config []ConfigEntry

	// LoadBalancing
	Priority uint16
	Weight   uint16

	// Protection
	AliveCounter uint32
	CRC          uint32

	// IPv4Endpoint / IPv4Multicast
	IPv4  [4]byte
	// IPv6Endpoint / IPv6Multicast
	IPv6  [16]byte
	L4    L4Proto
	Port  uint16

	// Selective
	Clients []uint16

	// Unknown
	UnknownType OptionType
	Raw         []byte
}

// Equal compares two options by the type-specific equality spec.md §4.5
// prescribes: endpoint/multicast options compare (l4proto, port, addr);
// selective options compare by client set; configuration options compare
// by key/value multimap; unknown options compare by raw bytes.
func (o Option) Equal(other Option) bool {
	if o.Type != other.Type {
		return false
	}
	switch o.Type {
	case OptionIPv4Endpoint, OptionIPv4Multicast:
		return o.L4 == other.L4 && o.Port == other.Port && o.IPv4 == other.IPv4
	case OptionIPv6Endpoint, OptionIPv6Multicast:
		return o.L4 == other.L4 && o.Port == other.Port && o.IPv6 == other.IPv6
	case OptionLoadBalancing:
		return o.Priority == other.Priority && o.Weight == other.Weight
	case OptionProtection:
		return o.AliveCounter == other.AliveCounter && o.CRC == other.CRC
	case OptionSelective:
		return sameClientSet(o.Clients, other.Clients)
	case OptionConfiguration:
		return sameConfig(o.Config, other.Config)
	default:
		return bytes.Equal(o.Raw, other.Raw) && o.UnknownType == other.UnknownType
	}
}

func sameClientSet(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]uint16(nil), a...)
	sb := append([]uint16(nil), b...)
	sort.Slice(sa, func(i, j int) bool { return sa[i] < sa[j] })
	sort.Slice(sb, func(i, j int) bool { return sb[i] < sb[j] })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sameConfig(a, b []ConfigEntry) bool {
	if len(a) != len(b) {
		return false
	}
	// A stable sort by key keeps each key's values in ordinal order while
	// ignoring how tokens of different keys are interleaved.
	sa := append([]ConfigEntry(nil), a...)
	sb := append([]ConfigEntry(nil), b...)
	sort.SliceStable(sa, func(i, j int) bool { return sa[i].Key < sa[j].Key })
	sort.SliceStable(sb, func(i, j int) bool { return sb[i].Key < sb[j].Key })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// Body returns the option's type-specific body (everything after the
// 4-byte common header) and the concrete wire type to serialize.
func (o Option) body() ([]byte, OptionType) {
	switch o.Type {
	case OptionConfiguration:
		var buf []byte
		for _, e := range o.Config {
			var tok string
			if e.HasValue {
				tok = e.Key + "=" + e.Value
			} else {
				tok = e.Key
			}
			buf = append(buf, byte(len(tok)))
			buf = append(buf, tok...)
		}
		buf = append(buf, 0x00) // zero-length terminator
		return buf, o.Type
	case OptionLoadBalancing:
		return []byte{byte(o.Priority >> 8), byte(o.Priority), byte(o.Weight >> 8), byte(o.Weight)}, o.Type
	case OptionProtection:
		buf := make([]byte, 8)
		buf[0], buf[1], buf[2], buf[3] = byte(o.AliveCounter>>24), byte(o.AliveCounter>>16), byte(o.AliveCounter>>8), byte(o.AliveCounter)
		buf[4], buf[5], buf[6], buf[7] = byte(o.CRC>>24), byte(o.CRC>>16), byte(o.CRC>>8), byte(o.CRC)
		return buf, o.Type
	case OptionIPv4Endpoint, OptionIPv4Multicast:
		buf := make([]byte, 8)
		copy(buf[0:4], o.IPv4[:])
		buf[4] = 0
		buf[5] = byte(o.L4)
		buf[6], buf[7] = byte(o.Port>>8), byte(o.Port)
		return buf, o.Type
	case OptionIPv6Endpoint, OptionIPv6Multicast:
		buf := make([]byte, 20)
		copy(buf[0:16], o.IPv6[:])
		buf[16] = 0
		buf[17] = byte(o.L4)
		buf[18], buf[19] = byte(o.Port>>8), byte(o.Port)
		return buf, o.Type
	case OptionSelective:
		buf := make([]byte, 0, len(o.Clients)*2)
		for _, c := range o.Clients {
			buf = append(buf, byte(c>>8), byte(c))
		}
		return buf, o.Type
	default:
		return o.Raw, o.UnknownType
	}
}

// Serialize appends the option's 4-byte header and body to s.
func (o Option) Serialize(s *wire.Serializer) {
	body, typ := o.body()
	length := uint16(1 + 1 + len(body)) // type + reserved + body
	s.PutU16(length)
	s.PutU8(uint8(typ))
	s.PutU8(0) // reserved
	s.PutBytes(body)
}

// SerializedSize returns the number of wire bytes Serialize would write,
// without allocating a buffer.
func (o Option) SerializedSize() int {
	body, _ := o.body()
	return OptionHeaderSize + len(body)
}

// DeserializeOption reads one SD option from d: the common 4-byte header,
// then a variant-specific body selected by the type byte. A length that
// disagrees with a fixed-body variant's expected size fails parsing;
// Unknown accepts any length.
func DeserializeOption(d *wire.Deserializer) (Option, bool) {
	length, ok := d.TakeU16()
	if !ok {
		return Option{}, false
	}
	typByte, ok := d.TakeU8()
	if !ok {
		return Option{}, false
	}
	if _, ok = d.TakeU8(); !ok { // reserved
		return Option{}, false
	}
	bodyLen := int(length) - 2
	if bodyLen < 0 {
		return Option{}, false
	}
	body, ok := d.TakeBytes(bodyLen)
	if !ok {
		return Option{}, false
	}
	typ := OptionType(typByte)
	switch typ {
	case OptionConfiguration:
		cfg, ok := parseConfigBody(body)
		if !ok {
			return Option{}, false
		}
		return Option{Type: typ, Config: cfg}, true
	case OptionLoadBalancing:
		if len(body) != 4 {
			return Option{}, false
		}
		return Option{Type: typ,
			Priority: uint16(body[0])<<8 | uint16(body[1]),
			Weight:   uint16(body[2])<<8 | uint16(body[3])}, true
	case OptionProtection:
		if len(body) != 8 {
			return Option{}, false
		}
		ac := uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])
		crc := uint32(body[4])<<24 | uint32(body[5])<<16 | uint32(body[6])<<8 | uint32(body[7])
		return Option{Type: typ, AliveCounter: ac, CRC: crc}, true
	case OptionIPv4Endpoint, OptionIPv4Multicast:
		if len(body) != 8 {
			return Option{}, false
		}
		o := Option{Type: typ, L4: L4Proto(body[5]), Port: uint16(body[6])<<8 | uint16(body[7])}
		copy(o.IPv4[:], body[0:4])
		if typ == OptionIPv4Multicast && !net.IP(o.IPv4[:]).IsMulticast() {
			return Option{}, false
		}
		return o, true
	case OptionIPv6Endpoint, OptionIPv6Multicast:
		if len(body) != 20 {
			return Option{}, false
		}
		o := Option{Type: typ, L4: L4Proto(body[17]), Port: uint16(body[18])<<8 | uint16(body[19])}
		copy(o.IPv6[:], body[0:16])
		if typ == OptionIPv6Multicast && !net.IP(o.IPv6[:]).IsMulticast() {
			return Option{}, false
		}
		return o, true
	case OptionSelective:
		if len(body)%2 != 0 {
			return Option{}, false
		}
		clients := make([]uint16, 0, len(body)/2)
		for i := 0; i < len(body); i += 2 {
			clients = append(clients, uint16(body[i])<<8|uint16(body[i+1]))
		}
		return Option{Type: typ, Clients: clients}, true
	default:
		return Option{Type: typ, UnknownType: typ, Raw: body}, true
	}
}

func parseConfigBody(body []byte) ([]ConfigEntry, bool) {
	var entries []ConfigEntry
	i := 0
	for i < len(body) {
		tokLen := int(body[i])
		i++
		if tokLen == 0 {
			return entries, true // zero-length marker terminates the stream
		}
		if i+tokLen > len(body) {
			return nil, false
		}
		tok := body[i : i+tokLen]
		i += tokLen
		eq := bytes.IndexByte(tok, '=')
		var key, value string
		hasValue := eq >= 0
		if hasValue {
			key, value = string(tok[:eq]), string(tok[eq+1:])
		} else {
			key = string(tok)
		}
		if !validConfigKey(key) {
			return nil, false
		}
		entries = append(entries, ConfigEntry{Key: key, Value: value, HasValue: hasValue})
	}
	return entries, true
}

func validConfigKey(key string) bool {
	for _, c := range []byte(key) {
		if c < 0x20 || c > 0x7E || c == '=' {
			return false
		}
	}
	return true
}
