package netlink

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeAttr(attrType uint16, payload []byte) []byte {
	attrLen := 4 + len(payload)
	out := make([]byte, nlaAlign(attrLen))
	binary.LittleEndian.PutUint16(out[0:2], uint16(attrLen))
	binary.LittleEndian.PutUint16(out[2:4], attrType)
	copy(out[4:], payload)
	return out
}

func buildNewAddrMessage(index int32, ip net.IP) []byte {
	body := make([]byte, ifAddrMsgLen)
	body[0] = familyInet
	binary.LittleEndian.PutUint32(body[4:8], uint32(index))
	body = append(body, encodeAttr(attrIFAAddress, ip.To4())...)
	h := encodeHeader(rtmNewAddr, 0, 1, len(body))
	return append(h, body...)
}

func buildLinkMessage(msgType uint16, index int32, flags uint32, name string) []byte {
	body := make([]byte, ifInfoMsgLen)
	body[0] = familyInet
	binary.LittleEndian.PutUint32(body[4:8], uint32(index))
	binary.LittleEndian.PutUint32(body[8:12], flags)
	nameBytes := append([]byte(name), 0)
	body = append(body, encodeAttr(attrIFLAIfname, nameBytes)...)
	h := encodeHeader(msgType, 0, 1, len(body))
	return append(h, body...)
}

func TestScenarioNetlinkTransitionFiresOnce(t *testing.T) {
	var calls []struct {
		signal    Signal
		name      string
		available bool
	}
	s := New(Config{ListenAddress: net.ParseIP("127.0.0.1").To4(), LinkRequired: true},
		func(signal Signal, name string, available bool) {
			calls = append(calls, struct {
				signal    Signal
				name      string
				available bool
			}{signal, name, available})
		})
	s.send = func([]byte) error { return nil }

	s.handleMessage(buildNewAddrMessage(19, net.ParseIP("127.0.0.1")))
	require.Len(t, calls, 0, "address match alone must not report availability")

	s.handleMessage(buildLinkMessage(rtmNewLink, 19, uint32(flagIFFUp|flagIFFRunning), "lo"))

	require.Len(t, calls, 1)
	assert.Equal(t, SignalInterface, calls[0].signal)
	assert.Equal(t, "lo", calls[0].name)
	assert.True(t, calls[0].available)
}

func TestUnrelatedInterfaceIsIgnored(t *testing.T) {
	var calls int
	s := New(Config{ListenAddress: net.ParseIP("10.0.0.5").To4(), LinkRequired: true},
		func(Signal, string, bool) { calls++ })
	s.send = func([]byte) error { return nil }

	s.handleMessage(buildNewAddrMessage(19, net.ParseIP("10.0.0.5")))
	s.handleMessage(buildLinkMessage(rtmNewLink, 7, uint32(flagIFFUp|flagIFFRunning), "eth1"))

	assert.Equal(t, 0, calls)
}

func TestAddressDeletionReportsInterfaceAndRouteDown(t *testing.T) {
	var calls []Signal
	s := New(Config{ListenAddress: net.ParseIP("192.168.1.1").To4(), LinkRequired: true},
		func(signal Signal, _ string, available bool) {
			if !available {
				calls = append(calls, signal)
			}
		})
	s.send = func([]byte) error { return nil }

	s.handleMessage(buildNewAddrMessage(19, net.ParseIP("192.168.1.1")))
	s.handleMessage(buildLinkMessage(rtmNewLink, 19, uint32(flagIFFUp|flagIFFRunning), "eth0"))
	require.True(t, s.interfaceUp)
	s.handleMessage(buildDefaultRouteMessage(19))
	require.True(t, s.routeUp)

	s.handleMessage(buildAddrDelMessage(19, net.ParseIP("192.168.1.1")))

	assert.ElementsMatch(t, []Signal{SignalInterface, SignalRoute}, calls)
	assert.False(t, s.interfaceUp)
	assert.False(t, s.routeUp)
}

func buildDefaultRouteMessage(oif int32) []byte {
	body := make([]byte, rtMsgLen)
	body[0] = familyInet
	oifBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(oifBytes, uint32(oif))
	body = append(body, encodeAttr(attrRTAOif, oifBytes)...)
	h := encodeHeader(rtmNewRoute, 0, 1, len(body))
	return append(h, body...)
}

func buildAddrDelMessage(index int32, ip net.IP) []byte {
	body := make([]byte, ifAddrMsgLen)
	body[0] = familyInet
	binary.LittleEndian.PutUint32(body[4:8], uint32(index))
	body = append(body, encodeAttr(attrIFAAddress, ip.To4())...)
	h := encodeHeader(rtmDelAddr, 0, 1, len(body))
	return append(h, body...)
}

func TestDegradeReportsBothSignalsAvailable(t *testing.T) {
	var calls []struct {
		signal    Signal
		name      string
		available bool
	}
	s := New(Config{}, func(signal Signal, name string, available bool) {
		calls = append(calls, struct {
			signal    Signal
			name      string
			available bool
		}{signal, name, available})
	})

	s.degrade()

	require.Len(t, calls, 2)
	assert.Equal(t, "n/a", calls[0].name)
	assert.True(t, calls[0].available)
	assert.Equal(t, "n/a", calls[1].name)
	assert.True(t, calls[1].available)
}

func TestSequenceEncodeDecodeRoundTrip(t *testing.T) {
	seq := encodeSeq(kindGetRoute, 2)
	kind, retry := decodeSeq(seq)
	assert.Equal(t, kindGetRoute, kind)
	assert.Equal(t, 2, retry)
}

func TestRequestRetriesUpToLimitThenAbandons(t *testing.T) {
	var sent [][]byte
	s := New(Config{ListenAddress: net.ParseIP("127.0.0.1").To4()}, func(Signal, string, bool) {})
	s.send = func(msg []byte) error { sent = append(sent, msg); return nil }

	s.sendRequest(kindGetAddr, rtmGetAddr)
	require.Len(t, sent, 1)

	errBody := make([]byte, 4)
	binary.LittleEndian.PutUint32(errBody, uint32(int32(-1))) // nonzero errno

	for i := 1; i <= maxRetries; i++ {
		seq := encodeSeq(kindGetAddr, i-1)
		h := encodeHeader(nlmsgError, 0, seq, len(errBody))
		s.handleMessage(append(h, errBody...))
	}
	assert.Len(t, sent, 1+maxRetries)

	// one more error beyond the retry budget must not resend
	seq := encodeSeq(kindGetAddr, maxRetries)
	h := encodeHeader(nlmsgError, 0, seq, len(errBody))
	s.handleMessage(append(h, errBody...))
	assert.Len(t, sent, 1+maxRetries)
}

func TestAckErrorDoesNotRetry(t *testing.T) {
	var sent [][]byte
	s := New(Config{}, func(Signal, string, bool) {})
	s.send = func(msg []byte) error { sent = append(sent, msg); return nil }

	s.sendRequest(kindGetLink, rtmGetLink)
	require.Len(t, sent, 1)

	ackBody := make([]byte, 4) // errno 0 == ACK
	seq := encodeSeq(kindGetLink, 0)
	s.handleMessage(append(encodeHeader(nlmsgError, 0, seq, len(ackBody)), ackBody...))

	assert.Len(t, sent, 1)
}
