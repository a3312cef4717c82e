package wire_test

import (
	"testing"

	"github.com/samsamfire/gosomeip/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMinimalMessage(t *testing.T) {
	raw := []byte{
		0x11, 0x12, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08,
		0x22, 0x22, 0x00, 0x01, 0x01, 0x01, 0x00, 0x00,
	}
	msg, err := wire.Decode(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1112, msg.Header.Service)
	assert.EqualValues(t, 0x0001, msg.Header.Method)
	assert.EqualValues(t, 8, msg.Header.Length)
	assert.EqualValues(t, 0x2222, msg.Header.Client)
	assert.EqualValues(t, 0x0001, msg.Header.Session)
	assert.EqualValues(t, 1, msg.Header.ProtocolVer)
	assert.EqualValues(t, 1, msg.Header.InterfaceVer)
	assert.Equal(t, wire.TypeRequest, msg.Header.MessageType)
	assert.Equal(t, wire.EOK, msg.Header.ReturnCode)
	assert.Empty(t, msg.Payload)

	reencoded := wire.Encode(msg)
	assert.Equal(t, raw, reencoded)
}

func TestRoundTripWithPayload(t *testing.T) {
	m := &wire.Message{
		Header: wire.Header{
			Service: 0x1001, Method: 0x0002, Client: 0x0003, Session: 0x0004,
			ProtocolVer: 1, InterfaceVer: 1, MessageType: wire.TypeRequest, ReturnCode: wire.EOK,
		},
		Payload: []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	encoded := wire.Encode(m)
	decoded, err := wire.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, m.Payload, decoded.Payload)
	assert.EqualValues(t, 12, decoded.Header.Length)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := wire.Decode([]byte{0x00, 0x01})
	assert.ErrorIs(t, err, wire.ErrTruncated)
}

func TestDecodeLengthMismatch(t *testing.T) {
	raw := []byte{
		0x11, 0x12, 0x00, 0x01, 0x00, 0x00, 0x00, 0x09, // Length=9 but datagram is 16 bytes
		0x22, 0x22, 0x00, 0x01, 0x01, 0x01, 0x00, 0x00,
	}
	_, err := wire.Decode(raw)
	assert.ErrorIs(t, err, wire.ErrLengthMismatch)
}

func TestMessageTypeTPFlag(t *testing.T) {
	mt := wire.TypeRequest.WithTP()
	assert.True(t, mt.IsTP())
	assert.Equal(t, wire.TypeRequest, mt.WithoutTP())
}

func TestReturnCodeReserved(t *testing.T) {
	assert.False(t, wire.EOK.Reserved())
	assert.True(t, wire.ReturnCode(0x40).Reserved())
	assert.True(t, wire.ReturnCode(0xFF).Reserved())
}
