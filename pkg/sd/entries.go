package sd

import "github.com/samsamfire/gosomeip/pkg/wire"

// Entry is the common head of every SD entry plus whichever type-specific
// tail its Type implies. Rather than a Service/EventGroup sum type with
// two Go struct variants, the common fields and both tails live on one
// struct (mirroring the teacher's flat SDOMessage-over-raw-bytes style in
// pkg/sdo) since every field is a simple fixed-width integer.
type Entry struct {
	Type EntryType

	Index1  uint8
	Index2  uint8
	NumOpts1 uint8 // length of option run starting at Index1 (0..15)
	NumOpts2 uint8 // length of option run starting at Index2 (0..15)

	Service  uint16
	Instance uint16
	Major    uint8
	TTL      uint32 // 24 bits on the wire

	// ServiceEntry tail
	Minor uint32

	// EventGroupEntry tail
	EventGroup uint16
	// Counter distinguishes parallel subscriptions of one eventgroup; it
	// is packed into the low nibble of the 2-byte Reserved field and
	// wraps modulo 16 rather than saturating.
	Counter uint8
}

// IsStop reports whether this entry is the TTL==0 "stop"/"nack" variant
// of its type; the wire type code does not distinguish them.
func (e Entry) IsStop() bool { return e.TTL == 0 }

// IsEventGroup reports whether e carries the EventGroup tail fields.
func (e Entry) IsEventGroup() bool { return e.Type.isEventGroup() }

// OptionIndexes returns every option index this entry references, in
// order: run 1 then run 2.
func (e Entry) OptionIndexes() []int {
	var out []int
	for i := 0; i < int(e.NumOpts1); i++ {
		out = append(out, int(e.Index1)+i)
	}
	for i := 0; i < int(e.NumOpts2); i++ {
		out = append(out, int(e.Index2)+i)
	}
	return out
}

// Serialize writes the 16-byte entry to s.
func (e Entry) Serialize(s *wire.Serializer) {
	s.PutU8(uint8(e.Type))
	s.PutU8(e.Index1)
	s.PutU8(e.Index2)
	s.PutU8(e.NumOpts1<<4 | (e.NumOpts2 & 0x0F))
	s.PutU16(e.Service)
	s.PutU16(e.Instance)
	s.PutU8(e.Major)
	s.PutU32(e.TTL, true) // 24-bit TTL

	if e.IsEventGroup() {
		reserved := uint16(e.Counter & 0x0F)
		s.PutU16(reserved)
		s.PutU16(e.EventGroup)
	} else {
		s.PutU32(e.Minor, false)
	}
}

// DeserializeEntry reads one 16-byte SD entry from d.
func DeserializeEntry(d *wire.Deserializer) (Entry, bool) {
	typByte, ok := d.TakeU8()
	if !ok {
		return Entry{}, false
	}
	idx1, ok := d.TakeU8()
	if !ok {
		return Entry{}, false
	}
	idx2, ok := d.TakeU8()
	if !ok {
		return Entry{}, false
	}
	packed, ok := d.TakeU8()
	if !ok {
		return Entry{}, false
	}
	service, ok := d.TakeU16()
	if !ok {
		return Entry{}, false
	}
	instance, ok := d.TakeU16()
	if !ok {
		return Entry{}, false
	}
	major, ok := d.TakeU8()
	if !ok {
		return Entry{}, false
	}
	ttl, ok := d.TakeU32(true)
	if !ok {
		return Entry{}, false
	}

	e := Entry{
		Type: EntryType(typByte), Index1: idx1, Index2: idx2,
		NumOpts1: packed >> 4, NumOpts2: packed & 0x0F,
		Service: service, Instance: instance, Major: major, TTL: ttl,
	}

	if e.IsEventGroup() {
		reserved, ok := d.TakeU16()
		if !ok {
			return Entry{}, false
		}
		eventgroup, ok := d.TakeU16()
		if !ok {
			return Entry{}, false
		}
		e.Counter = uint8(reserved & 0x0F)
		e.EventGroup = eventgroup
	} else {
		minor, ok := d.TakeU32(false)
		if !ok {
			return Entry{}, false
		}
		e.Minor = minor
	}
	return e, true
}

// MatchesEventGroup reports whether e and other refer to the same
// eventgroup subscription for the purpose of recognizing re-subscriptions:
// (service, instance, eventgroup, major, counter) must agree, and either
// their option references are identical, or their referenced endpoint
// options compare equal by (l4proto, port, address).
func (e Entry) MatchesEventGroup(other Entry, options []Option) bool {
	if !e.IsEventGroup() || !other.IsEventGroup() {
		return false
	}
	if e.Service != other.Service || e.Instance != other.Instance ||
		e.EventGroup != other.EventGroup || e.Major != other.Major || e.Counter != other.Counter {
		return false
	}
	eIdx, oIdx := e.OptionIndexes(), other.OptionIndexes()
	if sameIntSlice(eIdx, oIdx) {
		return true
	}
	return sameEndpointOptions(eIdx, oIdx, options)
}

func sameIntSlice(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameEndpointOptions(aIdx, bIdx []int, options []Option) bool {
	aEp := endpointOptionsAt(aIdx, options)
	bEp := endpointOptionsAt(bIdx, options)
	if len(aEp) != len(bEp) || len(aEp) == 0 {
		return false
	}
	for i := range aEp {
		if !aEp[i].Equal(bEp[i]) {
			return false
		}
	}
	return true
}

func endpointOptionsAt(idx []int, options []Option) []Option {
	var out []Option
	for _, i := range idx {
		if i < 0 || i >= len(options) {
			continue
		}
		switch options[i].Type {
		case OptionIPv4Endpoint, OptionIPv4Multicast, OptionIPv6Endpoint, OptionIPv6Multicast:
			out = append(out, options[i])
		}
	}
	return out
}

// SelectiveOption locates e's Selective option, if any, among options,
// used to filter eventgroup subscribers by client id.
func (e Entry) SelectiveOption(options []Option) (Option, bool) {
	for _, i := range e.OptionIndexes() {
		if i < 0 || i >= len(options) {
			continue
		}
		if options[i].Type == OptionSelective {
			return options[i], true
		}
	}
	return Option{}, false
}

// NextCounter returns the next subscription counter value, wrapping
// modulo 16 (4-bit field) rather than saturating.
func NextCounter(current uint8) uint8 {
	return (current + 1) % 16
}
