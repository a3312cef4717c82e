// Package sd implements the SOME/IP Service Discovery message layer: the
// SdMessage entry/option arena (C5) and the typed entries and options that
// populate it (C6). It deliberately stops short of any SD state machine —
// offer repetition phases and subscription scheduling are owned by a
// collaborator outside this package.
package sd

import log "github.com/sirupsen/logrus"

// EntryType is the 1-byte SD entry type code. The ttl==0 "stop"/"nack"
// variants are not distinct types on the wire; they are a predicate on
// the entry (see Entry.IsStop).
type EntryType uint8

const (
	FindService           EntryType = 0x00
	OfferService          EntryType = 0x01
	RequestService        EntryType = 0x02
	FindEventGroup         EntryType = 0x04
	PublishEventGroup      EntryType = 0x05
	SubscribeEventGroup    EntryType = 0x06
	SubscribeEventGroupAck EntryType = 0x07
)

func (t EntryType) isEventGroup() bool {
	switch t {
	case FindEventGroup, PublishEventGroup, SubscribeEventGroup, SubscribeEventGroupAck:
		return true
	}
	return false
}

// OptionType is the 1-byte SD option type code.
type OptionType uint8

const (
	OptionConfiguration OptionType = 0x01
	OptionLoadBalancing OptionType = 0x02
	OptionProtection    OptionType = 0x03
	OptionIPv4Endpoint  OptionType = 0x04
	OptionIPv6Endpoint  OptionType = 0x06
	OptionIPv4Multicast OptionType = 0x14
	OptionIPv6Multicast OptionType = 0x16
	OptionSelective     OptionType = 0x20
)

// L4Proto identifies the transport carried by an endpoint/multicast option.
type L4Proto uint8

const (
	L4TCP L4Proto = 0x06
	L4UDP L4Proto = 0x11
)

// Flag bits of the SD message header.
const (
	FlagReboot  uint8 = 0x80
	FlagUnicast uint8 = 0x40
)

// EntrySize is the fixed on-wire size of every SD entry, common head plus
// type-specific tail.
const EntrySize = 16

// OptionHeaderSize is the fixed size of an SD option's common header
// (length, type, reserved) that precedes every option body.
const OptionHeaderSize = 4

// maxOptionsPerRun bounds an entry's two option-index runs: the run
// length is packed into a 4-bit nibble, so at most 15 consecutive option
// indices can be referenced per run (nibble value 0 means "empty run").
const maxOptionsPerRun = 15

var logger = log.WithField("component", "sd")
