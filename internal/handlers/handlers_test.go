package handlers_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/events"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/handlers"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/protocol"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
)

func newContext(t *testing.T) *handlers.Context {
	t.Helper()
	obs := device.NewObservable(device.New(), events.New(8))
	return &handlers.Context{Observable: obs, Psets: pset.NewInMemoryRepository()}
}

func TestHandlers_CommunicationStart_S1(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	raw := []byte("00200001001         ")
	msg, err := protocol.ParseMessage(raw)
	require.NoError(t, err)
	require.Equal(t, 1, msg.MID)

	responses, err := registry.Handle(ctx, msg)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, 2, responses[0].MID)
	assert.Equal(t, 1, responses[0].Revision)

	body := string(responses[0].Body)
	assert.True(t, strings.HasPrefix(body, "010001"))
	assert.Contains(t, body, "03"+fmt.Sprintf("%-25s", "OpenProtocolSimulator"))
}

func TestHandlers_UnknownMidFails(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	_, err := registry.Handle(ctx, protocol.Message{MID: 7777, Revision: 1})
	require.Error(t, err)
}

func TestHandlers_PsetSelect_S2(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()
	sub := ctx.Observable.Subscribe()
	defer ctx.Observable.Unsubscribe(sub)

	responses, err := registry.Handle(ctx, protocol.Message{MID: 18, Revision: 1, Body: []byte("005")})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, 16, responses[0].MID)

	select {
	case e := <-sub.Events():
		require.Equal(t, events.KindPsetChanged, e.Kind)
		payload := e.Payload.(device.PsetChangedPayload)
		assert.Equal(t, uint32(5), payload.ID)
		assert.Equal(t, "Pset_5", payload.Name)
	default:
		t.Fatal("expected PsetChanged event")
	}
}

func TestHandlers_ErrorResponseBodyLength(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	responses, err := registry.Handle(ctx, protocol.Message{MID: 20, Revision: 1, Body: []byte("001")})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, 4, responses[0].MID)
	assert.Len(t, responses[0].Body, 6)
	assert.Equal(t, "002004", string(responses[0].Body))
}

func TestHandlers_ResetBatchSucceedsInBatchMode(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	_, err := registry.Handle(ctx, protocol.Message{MID: 19, Revision: 1, Body: []byte("0010003")})
	require.NoError(t, err)

	responses, err := registry.Handle(ctx, protocol.Message{MID: 20, Revision: 1, Body: []byte("001")})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, 5, responses[0].MID)
}

func TestHandlers_SetBatchSizeParsesSuffix(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	_, err := registry.Handle(ctx, protocol.Message{MID: 19, Revision: 1, Body: []byte("0010003")})
	require.NoError(t, err)

	ctx.Observable.Read(func(s *device.State) {
		assert.Equal(t, uint32(3), s.Tracker.BatchSize())
	})
}

func TestHandlers_ToolEnableDisable(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	_, err := registry.Handle(ctx, protocol.Message{MID: 42, Revision: 1})
	require.NoError(t, err)
	ctx.Observable.Read(func(s *device.State) { assert.False(t, s.ToolEnabled) })

	_, err = registry.Handle(ctx, protocol.Message{MID: 43, Revision: 1})
	require.NoError(t, err)
	ctx.Observable.Read(func(s *device.State) { assert.True(t, s.ToolEnabled) })
}

func TestHandlers_VehicleIdDownload(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	_, err := registry.Handle(ctx, protocol.Message{MID: 50, Revision: 1, Body: []byte("VIN12345                 ")})
	require.NoError(t, err)
	assert.Equal(t, "VIN12345", ctx.Observable.CurrentVehicleID())
}

func TestHandlers_KeepAliveEchoes(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	responses, err := registry.Handle(ctx, protocol.Message{MID: 9999, Revision: 7})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, 9999, responses[0].MID)
	assert.Equal(t, 7, responses[0].Revision)
	assert.Empty(t, responses[0].Body)
}

func TestHandlers_AckOnlyMidsEchoAcceptedMid(t *testing.T) {
	ctx := newContext(t)
	registry := handlers.NewDefaultRegistry()

	for _, mid := range []int{14, 17, 51, 53, 54, 60, 62, 63, 90, 92, 93, 100, 102, 103} {
		responses, err := registry.Handle(ctx, protocol.Message{MID: mid, Revision: 1})
		require.NoError(t, err)
		require.Len(t, responses, 1)
		assert.Equal(t, 5, responses[0].MID)
		assert.Equal(t, fmt.Sprintf("%04d", mid), string(responses[0].Body))
	}
}
