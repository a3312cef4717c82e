// Package netlink implements the netlink-driven link availability
// supervisor (C9): a small request/retry state machine over a
// NETLINK_ROUTE socket that tracks whether the configured listen
// interface is up and running, and whether a route to the configured
// multicast group exists, surfacing both as boolean signals to a
// caller-supplied handler.
//
// Following the teacher's split between protocol-level logrus logging
// and orchestration-level slog, this package logs with log/slog: it is
// orchestration, not wire codec.
package netlink

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"sync"
)

// Signal is one of the two booleans the supervisor reports.
type Signal int

const (
	SignalInterface Signal = iota
	SignalRoute
)

func (s Signal) String() string {
	switch s {
	case SignalInterface:
		return "interface"
	case SignalRoute:
		return "route"
	default:
		return "unknown"
	}
}

// Handler is invoked on every availability transition: (signal, a
// human-readable name — interface name or route description — available).
type Handler func(signal Signal, name string, available bool)

// Config selects which address the supervisor watches.
type Config struct {
	ListenAddress    net.IP
	MulticastAddress net.IP
	// LinkRequired, when false, treats IFF_UP alone (without IFF_RUNNING)
	// as sufficient for interface availability.
	LinkRequired bool
}

type pendingRequest struct {
	kind  requestKind
	retry int
}

// Supervisor tracks interface/route availability for a single configured
// address. Zero value is not usable; construct with New.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	handle Handler

	// send transmits one encoded netlink message. Overridden by tests to
	// avoid opening a real socket; the production value is wired by
	// Start in socket.go.
	send func([]byte) error

	mu sync.Mutex

	ifIndexForAddress int // 0 = unknown
	ifFlags           map[int32]uint32
	ifNames           map[int32]string
	interfaceUp       bool
	routeUp           bool

	pending map[uint32]pendingRequest

	// fd and cancel are set by Start (socket.go) for the real-socket
	// path; left zero when a test drives dispatch directly via
	// handleMessage.
	fd     int
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Supervisor. Start must be called to open the socket and
// begin the discovery sequence.
func New(cfg Config, handle Handler) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		logger:  slog.Default(),
		handle:  handle,
		ifFlags: make(map[int32]uint32),
		ifNames: make(map[int32]string),
		pending: make(map[uint32]pendingRequest),
	}
}

// degrade invokes the handler with both signals forced available, the
// fallback path when the socket cannot be opened at all (spec.md §4.9
// step 1): the caller proceeds without link supervision rather than
// blocking forever.
func (s *Supervisor) degrade() {
	s.logger.Warn("netlink: operating in degraded mode, link supervision disabled")
	s.handle(SignalInterface, "n/a", true)
	s.handle(SignalRoute, "n/a", true)
}

func (s *Supervisor) sendRequest(kind requestKind, msgType uint16) {
	if s.send == nil {
		return
	}
	s.mu.Lock()
	seq := encodeSeq(kind, 0)
	s.pending[seq] = pendingRequest{kind: kind, retry: 0}
	s.mu.Unlock()

	msg := buildDumpRequest(msgType, flagRequestDump, seq)
	if err := s.send(msg); err != nil {
		s.logger.Warn("netlink: failed to send request", "kind", kind, "err", err)
	}
}

// handleMessage dispatches every netlink message found in buf. Used by
// the real receive loop in socket.go and for direct use by tests,
// which construct raw buffers the same way pkg/wire tests construct raw
// datagrams.
func (s *Supervisor) handleMessage(buf []byte) {
	for _, msg := range decodeMessages(buf) {
		s.dispatch(msg.Header, msg.Body)
	}
}

func (s *Supervisor) dispatch(h header, body []byte) {
	switch h.Type {
	case rtmNewAddr, rtmDelAddr:
		s.handleAddr(h.Type == rtmNewAddr, body)
	case rtmNewLink, rtmDelLink:
		s.handleLink(h.Type == rtmNewLink, body)
	case rtmNewRoute, rtmDelRoute:
		s.handleRoute(h.Type == rtmNewRoute, body)
	case nlmsgError:
		s.handleError(h.Seq, body)
	case nlmsgDone:
	}
}

func (s *Supervisor) handleError(seq uint32, body []byte) {
	s.mu.Lock()
	req, ok := s.pending[seq]
	delete(s.pending, seq)
	s.mu.Unlock()
	if !ok {
		return
	}
	errno := int32(0)
	if len(body) >= 4 {
		errno = int32(body[0]) | int32(body[1])<<8 | int32(body[2])<<16 | int32(body[3])<<24
	}
	if errno == 0 {
		return // ACK, not an error
	}
	if req.retry >= maxRetries {
		s.logger.Warn("netlink: request abandoned after retries", "kind", req.kind, "errno", errno)
		return
	}
	s.logger.Warn("netlink: request failed, retrying", "kind", req.kind, "retry", req.retry+1, "errno", errno)
	s.resend(req.kind, req.retry+1)
}

func (s *Supervisor) resend(kind requestKind, retry int) {
	msgType := map[requestKind]uint16{
		kindGetAddr:  rtmGetAddr,
		kindGetLink:  rtmGetLink,
		kindGetRoute: rtmGetRoute,
	}[kind]
	seq := encodeSeq(kind, retry)
	s.mu.Lock()
	s.pending[seq] = pendingRequest{kind: kind, retry: retry}
	s.mu.Unlock()
	if s.send == nil {
		return
	}
	if err := s.send(buildDumpRequest(msgType, flagRequestDump, seq)); err != nil {
		s.logger.Warn("netlink: retry send failed", "kind", kind, "err", err)
	}
}

func (s *Supervisor) handleAddr(isNew bool, body []byte) {
	m, attrs, ok := parseIfAddrMsg(body)
	if !ok {
		return
	}
	addrBytes, present := attrs[attrIFAAddress]
	if !present {
		addrBytes, present = attrs[attrIFALocal]
	}
	if !present {
		return
	}
	addr := parseAddrBytes(m.Family, addrBytes)
	if addr == nil || !addr.Equal(s.cfg.ListenAddress) {
		return
	}

	s.mu.Lock()
	if isNew {
		s.ifIndexForAddress = int(m.Index)
		s.mu.Unlock()
		s.sendRequest(kindGetLink, rtmGetLink)
		return
	}
	if int(m.Index) != s.ifIndexForAddress {
		s.mu.Unlock()
		return
	}
	s.ifIndexForAddress = 0
	wasUp, wasRouteUp := s.interfaceUp, s.routeUp
	name := s.ifNames[m.Index]
	s.interfaceUp, s.routeUp = false, false
	s.mu.Unlock()

	if wasUp {
		s.report(SignalInterface, name, false)
	}
	if wasRouteUp {
		s.report(SignalRoute, "n/a", false)
	}
}

func (s *Supervisor) handleLink(isNew bool, body []byte) {
	m, attrs, ok := parseIfInfoMsg(body)
	if !ok {
		return
	}
	name := ""
	if raw, present := attrs[attrIFLAIfname]; present {
		name = ifaceName(raw)
	}

	s.mu.Lock()
	if isNew {
		s.ifFlags[m.Index] = m.Flags
		s.ifNames[m.Index] = name
	} else {
		delete(s.ifFlags, m.Index)
	}
	if int(m.Index) != s.ifIndexForAddress {
		s.mu.Unlock()
		return
	}
	up := m.Flags&flagIFFUp != 0
	running := m.Flags&flagIFFRunning != 0
	available := isNew && up && (running || !s.cfg.LinkRequired)
	wasUp := s.interfaceUp
	s.interfaceUp = available
	s.mu.Unlock()

	if available == wasUp {
		return
	}
	s.report(SignalInterface, name, available)
	if available {
		s.sendRequest(kindGetRoute, rtmGetRoute)
	} else {
		s.reportRouteDown()
	}
}

func (s *Supervisor) reportRouteDown() {
	s.mu.Lock()
	wasUp := s.routeUp
	s.routeUp = false
	s.mu.Unlock()
	if wasUp {
		s.report(SignalRoute, "n/a", false)
	}
}

func (s *Supervisor) handleRoute(isNew bool, body []byte) {
	m, attrs, ok := parseRtMsg(body)
	if !ok {
		return
	}

	s.mu.Lock()
	ifIndex := s.ifIndexForAddress
	s.mu.Unlock()

	oif := -1
	if raw, present := attrs[attrRTAOif]; present && len(raw) >= 4 {
		oif = int(raw[0]) | int(raw[1])<<8 | int(raw[2])<<16 | int(raw[3])<<24
	}
	if ifIndex == 0 || oif != ifIndex {
		return
	}

	isDefaultRoute := m.DstLen == 0
	matchesMulticast := false
	if dst, present := attrs[attrRTADst]; present {
		ip := parseAddrBytes(m.Family, dst)
		matchesMulticast = ip != nil && s.cfg.MulticastAddress != nil && ip.Equal(s.cfg.MulticastAddress)
	}
	if !isDefaultRoute && !matchesMulticast {
		return
	}

	routeDesc := routeDescription(m, attrs)

	s.mu.Lock()
	wasUp := s.routeUp
	s.routeUp = isNew
	s.mu.Unlock()

	if isNew == wasUp {
		return
	}
	s.report(SignalRoute, routeDesc, isNew)
}

func routeDescription(m rtMsg, attrs map[uint16][]byte) string {
	if dst, present := attrs[attrRTADst]; present {
		ip := parseAddrBytes(m.Family, dst)
		if ip != nil {
			return ip.String()
		}
	}
	return "default"
}

func (s *Supervisor) report(signal Signal, name string, available bool) {
	recordTransition(signal, available)
	s.logger.Info("netlink: availability transition", "signal", signal, "name", name, "available", available)
	s.handle(signal, name, available)
}

func parseAddrBytes(family uint8, raw []byte) net.IP {
	switch family {
	case familyInet:
		if len(raw) != 4 {
			return nil
		}
		return net.IP(bytes.Clone(raw)).To4()
	case familyInet6:
		if len(raw) != 16 {
			return nil
		}
		return net.IP(bytes.Clone(raw))
	default:
		return nil
	}
}
