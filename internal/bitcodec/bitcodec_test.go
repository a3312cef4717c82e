package bitcodec_test

import (
	"testing"

	"github.com/samsamfire/gosomeip/internal/bitcodec"
	"github.com/stretchr/testify/assert"
)

func TestU16RoundTrip(t *testing.T) {
	buf := bitcodec.PutU16(nil, 0x1234)
	v, ok := bitcodec.TakeU16(buf)
	assert.True(t, ok)
	assert.EqualValues(t, 0x1234, v)
}

func TestU32OmitHighByteRoundTrip(t *testing.T) {
	buf := bitcodec.PutU32(nil, 0xAABBCCDD, true)
	assert.Len(t, buf, 3)
	v, ok := bitcodec.TakeU32(buf, true)
	assert.True(t, ok)
	assert.EqualValues(t, 0xAABBCCDD&0x00FFFFFF, v)
}

func TestU32FullRoundTrip(t *testing.T) {
	buf := bitcodec.PutU32(nil, 0x11223344, false)
	assert.Len(t, buf, 4)
	v, ok := bitcodec.TakeU32(buf, false)
	assert.True(t, ok)
	assert.EqualValues(t, 0x11223344, v)
}

func TestTakeShortBuffer(t *testing.T) {
	_, ok := bitcodec.TakeU16([]byte{0x01})
	assert.False(t, ok)
	_, ok = bitcodec.TakeU32([]byte{0x01, 0x02}, true)
	assert.False(t, ok)
}
