// Package config loads the small set of knobs this module's components
// recognize (spec.md §6) from an INI file, following the teacher's own
// EDS-parsing idiom in pkg/od/parser.go: gopkg.in/ini.v1 to load the
// file, one struct field read per recognized key, falling back to a
// documented default when a key is absent.
package config

import (
	"fmt"
	"net"

	"gopkg.in/ini.v1"
)

// Config holds the recognized knobs, each with its documented default.
type Config struct {
	// MaxMessageSize bounds the size of a message reassembled from TP
	// segments, in bytes.
	MaxMessageSize uint32
	// TPMaxSegmentLength is the largest TP segment emitted by the
	// segmenter, a multiple of 16.
	TPMaxSegmentLength uint32
	// BufferShrinkThreshold is the Serializer/Deserializer shrink-on-Reset
	// policy threshold: the number of consecutive low-utilization Reset
	// calls tolerated before the backing buffer is released.
	BufferShrinkThreshold int
	// UDPSDPayloadCap bounds a single UDP Service Discovery datagram's
	// payload size.
	UDPSDPayloadCap uint32
	// WatchdogTimeoutMs is the period an application's heartbeat is
	// expected within, surfaced by pkg/runtime's application registry.
	WatchdogTimeoutMs uint32
	// ListenAddress and MulticastAddress are the addresses pkg/netlink
	// watches for interface/route availability.
	ListenAddress    net.IP
	MulticastAddress net.IP
}

const (
	defaultMaxMessageSize        = 1 << 20
	defaultTPMaxSegmentLength    = 1392
	defaultBufferShrinkThreshold = 8
	defaultUDPSDPayloadCap       = 1400
	defaultWatchdogTimeoutMs     = 3000
)

// Default returns a Config populated with documented defaults and no
// watched addresses.
func Default() *Config {
	return &Config{
		MaxMessageSize:        defaultMaxMessageSize,
		TPMaxSegmentLength:    defaultTPMaxSegmentLength,
		BufferShrinkThreshold: defaultBufferShrinkThreshold,
		UDPSDPayloadCap:       defaultUDPSDPayloadCap,
		WatchdogTimeoutMs:     defaultWatchdogTimeoutMs,
	}
}

// section is the single INI section this module recognizes keys under.
const section = "someip"

// Load reads an INI file (path, []byte, or io.Reader, per ini.Load's own
// contract) and overlays any recognized keys onto the defaults. Unknown
// keys are ignored rather than rejected, matching the teacher's tolerant
// EDS parsing.
func Load(source any) (*Config, error) {
	cfg := Default()

	f, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if !f.HasSection(section) {
		return cfg, nil
	}
	sec := f.Section(section)

	if sec.HasKey("max_message_size") {
		v, err := sec.Key("max_message_size").Uint64()
		if err != nil {
			return nil, fmt.Errorf("config: max_message_size: %w", err)
		}
		cfg.MaxMessageSize = uint32(v)
	}
	if sec.HasKey("tp_max_segment_length") {
		v, err := sec.Key("tp_max_segment_length").Uint64()
		if err != nil {
			return nil, fmt.Errorf("config: tp_max_segment_length: %w", err)
		}
		cfg.TPMaxSegmentLength = uint32(v)
	}
	if sec.HasKey("buffer_shrink_threshold") {
		v, err := sec.Key("buffer_shrink_threshold").Int()
		if err != nil {
			return nil, fmt.Errorf("config: buffer_shrink_threshold: %w", err)
		}
		cfg.BufferShrinkThreshold = v
	}
	if sec.HasKey("udp_sd_payload_cap") {
		v, err := sec.Key("udp_sd_payload_cap").Uint64()
		if err != nil {
			return nil, fmt.Errorf("config: udp_sd_payload_cap: %w", err)
		}
		cfg.UDPSDPayloadCap = uint32(v)
	}
	if sec.HasKey("watchdog_timeout_ms") {
		v, err := sec.Key("watchdog_timeout_ms").Uint64()
		if err != nil {
			return nil, fmt.Errorf("config: watchdog_timeout_ms: %w", err)
		}
		cfg.WatchdogTimeoutMs = uint32(v)
	}
	if sec.HasKey("listen_address") {
		ip := net.ParseIP(sec.Key("listen_address").String())
		if ip == nil {
			return nil, fmt.Errorf("config: listen_address: invalid IP %q", sec.Key("listen_address").String())
		}
		cfg.ListenAddress = ip
	}
	if sec.HasKey("multicast_address") {
		ip := net.ParseIP(sec.Key("multicast_address").String())
		if ip == nil {
			return nil, fmt.Errorf("config: multicast_address: invalid IP %q", sec.Key("multicast_address").String())
		}
		cfg.MulticastAddress = ip
	}

	return cfg, nil
}
