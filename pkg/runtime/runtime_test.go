package runtime_test

import (
	"testing"

	"github.com/samsamfire/gosomeip/pkg/runtime"
	"github.com/samsamfire/gosomeip/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestStampsDefaults(t *testing.T) {
	rt := runtime.New(3)
	req := rt.NewRequest(0x1001, 0x0002, 0x0003, 0x0004, 7, true, false)
	assert.EqualValues(t, runtime.ProtocolVersion, req.Header.ProtocolVer)
	assert.EqualValues(t, 3, req.Header.InterfaceVer)
	assert.Equal(t, wire.EOK, req.Header.ReturnCode)
	assert.Equal(t, wire.TypeRequest, req.Header.MessageType)
	assert.True(t, req.IsInitial)
	assert.True(t, req.IsReliable)
	assert.EqualValues(t, 7, req.Instance)
}

func TestNewRequestNoReturn(t *testing.T) {
	rt := runtime.New(1)
	req := rt.NewRequest(1, 2, 3, 4, 0, false, true)
	assert.Equal(t, wire.TypeRequestNoReturn, req.Header.MessageType)
}

func TestNewResponseClonesRequestFields(t *testing.T) {
	rt := runtime.New(2)
	req := rt.NewRequest(0x1001, 0x0002, 0x0003, 0x0004, 9, true, false)
	resp := rt.NewResponse(req)

	assert.Equal(t, req.Header.Service, resp.Header.Service)
	assert.Equal(t, req.Header.Method, resp.Header.Method)
	assert.Equal(t, req.Header.Client, resp.Header.Client)
	assert.Equal(t, req.Header.Session, resp.Header.Session)
	assert.Equal(t, req.Header.InterfaceVer, resp.Header.InterfaceVer)
	assert.Equal(t, req.Instance, resp.Instance)
	assert.Equal(t, req.IsReliable, resp.IsReliable)
	assert.Equal(t, wire.TypeResponse, resp.Header.MessageType)
	assert.Equal(t, wire.EOK, resp.Header.ReturnCode)
}

func TestRegisterApplicationAppendsSuffixOnCollision(t *testing.T) {
	rt := runtime.New(1)
	name1, id1 := rt.RegisterApplication("ecu-gateway")
	name2, id2 := rt.RegisterApplication("ecu-gateway")
	name3, _ := rt.RegisterApplication("ecu-gateway")

	assert.Equal(t, "ecu-gateway", name1)
	assert.Equal(t, "ecu-gateway-1", name2)
	assert.Equal(t, "ecu-gateway-2", name3)
	assert.NotEqual(t, id1, id2)
	assert.ElementsMatch(t, []string{"ecu-gateway", "ecu-gateway-1", "ecu-gateway-2"}, rt.Applications())
}

func TestReleaseApplicationFreesNameForReuse(t *testing.T) {
	rt := runtime.New(1)
	name, _ := rt.RegisterApplication("diag")
	require.Equal(t, "diag", name)
	rt.ReleaseApplication(name)

	reused, _ := rt.RegisterApplication("diag")
	assert.Equal(t, "diag", reused)
}
