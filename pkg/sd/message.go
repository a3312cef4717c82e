package sd

import (
	"errors"

	"github.com/samsamfire/gosomeip/pkg/wire"
)

// DefaultUDPPayloadCap is the ceiling on a single SD datagram's serialized
// size used when the caller does not configure udp_sd_payload_cap,
// aligned with a standard Ethernet MTU minus IP/UDP/SOME/IP headers.
const DefaultUDPPayloadCap = 1400

// ErrPayloadTooLarge is returned by AddEntry when adding the entry would
// push the serialized message past the configured UDP SD payload cap.
var ErrPayloadTooLarge = errors.New("sd: message would exceed udp_sd_payload_cap")

// Message is the SD entry/option arena: entries reference options by
// forward index into a shared, deduplicated options slice. There are no
// back-pointers; serialization only ever needs the forward indices.
//
// Message is not safe for concurrent writes; callers serialize access to
// one Message through their own routing layer (spec.md §5).
type Message struct {
	Reboot  bool
	Unicast bool

	Entries []Entry
	Options []Option

	payloadCap int
}

// NewMessage creates an empty SD message. A payloadCap of 0 uses
// DefaultUDPPayloadCap.
func NewMessage(payloadCap int) *Message {
	if payloadCap <= 0 {
		payloadCap = DefaultUDPPayloadCap
	}
	return &Message{payloadCap: payloadCap}
}

func (m *Message) flags() uint8 {
	var f uint8
	if m.Reboot {
		f |= FlagReboot
	}
	if m.Unicast {
		f |= FlagUnicast
	}
	return f
}

// SerializedSize returns the would-be wire size of the SD body (flags
// through end of options), without the outer 16-byte SOME/IP header.
func (m *Message) SerializedSize() int {
	size := 1 + 3 + 4 + len(m.Entries)*EntrySize + 4
	for _, o := range m.Options {
		size += o.SerializedSize()
	}
	return size
}

// FindOption linearly scans m.Options for one equal to opt by the
// type-specific equality rule and returns its index.
func (m *Message) FindOption(opt Option) (int, bool) {
	for i, existing := range m.Options {
		if existing.Equal(opt) {
			return i, true
		}
	}
	return -1, false
}

// addOption returns opt's index in m.Options, reusing an equal existing
// option or appending a new one.
func (m *Message) addOption(opt Option) int {
	if idx, ok := m.FindOption(opt); ok {
		return idx
	}
	m.Options = append(m.Options, opt)
	return len(m.Options) - 1
}

// assignOptionRun places idx into one of entry's two option-index runs.
// Policy: if run 1 is empty or idx is adjacent to it, extend run 1; else
// the same check against run 2; otherwise idx is unreachable from this
// entry and is dropped with a warning.
func assignOptionRun(e *Entry, idx int) {
	if idx < 0 || idx > 0xFF {
		logger.WithField("index", idx).Warn("option index out of range for entry, dropping reference")
		return
	}
	if e.NumOpts1 == 0 {
		e.Index1 = uint8(idx)
		e.NumOpts1 = 1
		return
	}
	if int(e.Index1)+int(e.NumOpts1) == idx && e.NumOpts1 < maxOptionsPerRun {
		e.NumOpts1++
		return
	}
	if e.NumOpts2 == 0 {
		e.Index2 = uint8(idx)
		e.NumOpts2 = 1
		return
	}
	if int(e.Index2)+int(e.NumOpts2) == idx && e.NumOpts2 < maxOptionsPerRun {
		e.NumOpts2++
		return
	}
	logger.WithFields(map[string]interface{}{
		"index": idx, "service": e.Service, "instance": e.Instance,
	}).Warn("option unreachable from entry, dropping reference")
}

// AddEntry attaches entry's options (deduplicating via FindOption),
// assigns the resulting option-index runs, and appends the entry. When
// other is non-nil it is a paired entry (e.g. a subscribe-ack mirroring
// a subscribe) attached with the identical option reference set. AddEntry
// fails without mutating the message if the result would exceed the
// configured UDP SD payload cap.
func (m *Message) AddEntry(entry Entry, options []Option, other *Entry) error {
	trial := *m
	trial.Options = append([]Option(nil), m.Options...)
	trial.Entries = append([]Entry(nil), m.Entries...)

	entry.NumOpts1, entry.NumOpts2 = 0, 0
	for _, opt := range options {
		idx := trial.addOption(opt)
		assignOptionRun(&entry, idx)
	}
	trial.Entries = append(trial.Entries, entry)

	if other != nil {
		paired := *other
		paired.Index1, paired.NumOpts1 = entry.Index1, entry.NumOpts1
		paired.Index2, paired.NumOpts2 = entry.Index2, entry.NumOpts2
		trial.Entries = append(trial.Entries, paired)
	}

	if trial.SerializedSize() > m.payloadCap {
		return ErrPayloadTooLarge
	}

	m.Options = trial.Options
	m.Entries = trial.Entries
	return nil
}

// Serialize writes the SD body (flags, reserved, length-prefixed entries
// array, length-prefixed options array) to s.
func (m *Message) Serialize(s *wire.Serializer) {
	s.PutU8(m.flags())
	s.PutU8(0)
	s.PutU8(0)
	s.PutU8(0)

	s.PutU32(uint32(len(m.Entries)*EntrySize), false)
	for _, e := range m.Entries {
		e.Serialize(s)
	}

	optionsStart := len(s.Bytes())
	s.PutU32(0, false) // placeholder, patched below
	for _, o := range m.Options {
		o.Serialize(s)
	}
	optionsLen := uint32(len(s.Bytes()) - optionsStart - 4)
	buf := s.Bytes()
	buf[optionsStart] = byte(optionsLen >> 24)
	buf[optionsStart+1] = byte(optionsLen >> 16)
	buf[optionsStart+2] = byte(optionsLen >> 8)
	buf[optionsStart+3] = byte(optionsLen)
}

// Deserialize parses an SD body from d using SetRemaining to scope first
// the entries array then the options array. Entries that fail to parse
// terminate the entries array early but the caller still receives
// whatever was parsed so far. Stray trailing bytes after the last option
// are discarded with a warning.
func Deserialize(d *wire.Deserializer) (*Message, bool) {
	flags, ok := d.TakeU8()
	if !ok {
		return nil, false
	}
	if _, ok := d.TakeBytes(3); !ok { // reserved
		return nil, false
	}
	entriesLen, ok := d.TakeU32(false)
	if !ok {
		return nil, false
	}

	m := &Message{
		Reboot:  flags&FlagReboot != 0,
		Unicast: flags&FlagUnicast != 0,
	}

	d.SetRemaining(int(entriesLen))
	for d.Remaining() > 0 {
		e, ok := DeserializeEntry(d)
		if !ok {
			logger.Warn("sd: failed to parse entry, truncating entries array")
			break
		}
		m.Entries = append(m.Entries, e)
	}
	d.SetRemaining(-1)

	optionsLen, ok := d.TakeU32(false)
	if !ok {
		return nil, false
	}
	d.SetRemaining(int(optionsLen))
	for d.Remaining() > 0 {
		o, ok := DeserializeOption(d)
		if !ok {
			logger.Warn("sd: failed to parse option, truncating options array")
			break
		}
		m.Options = append(m.Options, o)
	}
	if d.Remaining() > 0 {
		logger.WithField("strayBytes", d.Remaining()).Warn("sd: stray bytes after options array, discarding")
		d.TakeVec()
	}
	d.SetRemaining(-1)

	return m, true
}
