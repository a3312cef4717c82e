package config_test

import (
	"net"
	"testing"

	"github.com/samsamfire/gosomeip/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	raw := []byte(`
[someip]
max_message_size = 2048
tp_max_segment_length = 1024
listen_address = 127.0.0.1
multicast_address = 224.224.224.245
`)
	cfg, err := config.Load(raw)
	require.NoError(t, err)

	assert.EqualValues(t, 2048, cfg.MaxMessageSize)
	assert.EqualValues(t, 1024, cfg.TPMaxSegmentLength)
	assert.True(t, cfg.ListenAddress.Equal(net.ParseIP("127.0.0.1")))
	assert.True(t, cfg.MulticastAddress.Equal(net.ParseIP("224.224.224.245")))

	// untouched keys keep their documented defaults
	assert.EqualValues(t, 8, cfg.BufferShrinkThreshold)
	assert.EqualValues(t, 3000, cfg.WatchdogTimeoutMs)
}

func TestLoadMissingSectionReturnsDefaults(t *testing.T) {
	cfg, err := config.Load([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadRejectsInvalidAddress(t *testing.T) {
	raw := []byte("[someip]\nlisten_address = not-an-ip\n")
	_, err := config.Load(raw)
	assert.Error(t, err)
}
