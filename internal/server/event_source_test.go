package server

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-state/mesh-state-server/internal/events"
	"github.com/mesh-state/mesh-state-server/internal/models"
	"github.com/mesh-state/mesh-state-server/internal/session"
)

func TestParseSubject(t *testing.T) {
	id, kind, err := parseSubject("mesh.device.42.event.node-info")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceID(42), id)
	assert.Equal(t, "node-info", kind)
}

func TestParseSubjectRejectsMalformed(t *testing.T) {
	for _, subject := range []string{
		"mesh.device.42.event",
		"mesh.device.42.event.node-info.extra",
		"mesh.gateway.42.event.node-info",
		"mesh.device.abc.event.node-info",
		"",
	} {
		_, _, err := parseSubject(subject)
		assert.Error(t, err, subject)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := map[string]struct {
		kind    string
		payload string
		want    events.Event
	}{
		"my-node-info": {
			kind:    "my-node-info",
			payload: `{"myNodeNum":100}`,
			want:    events.MyNodeInfo{MyNodeNum: 100},
		},
		"user-info": {
			kind:    "user-info",
			payload: `{"from":200,"user":{"longName":"Alice","shortName":"A"}}`,
			want:    events.UserInfo{From: 200, User: models.User{LongName: "Alice", ShortName: "A"}},
		},
		"routing-result": {
			kind:    "routing-result",
			payload: `{"from":300,"error":6}`,
			want:    events.RoutingResult{From: 300, Error: models.RoutingErrorNoChannel},
		},
		"device-status": {
			kind:    "device-status",
			payload: `{"status":"connected"}`,
			want:    events.DeviceStatus{Status: models.DeviceStatusConnected},
		},
		"pending-settings": {
			kind:    "pending-settings",
			payload: `{"pending":true}`,
			want:    events.PendingSettings{Pending: true},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ev, err := decodeEvent(tt.kind, []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeEventUnknownKind(t *testing.T) {
	_, err := decodeEvent("bogus", []byte(`{}`))
	assert.Error(t, err)
}

func TestDecodeEventBadPayload(t *testing.T) {
	_, err := decodeEvent("node-info", []byte(`not json`))
	assert.Error(t, err)
}

func TestEventSourceHandleMessageDelivers(t *testing.T) {
	registry := session.NewRegistry()
	s := NewEventSource(nil, registry, nil)
	ctx, cancel := context.WithCancel(context.Background())

	s.handleMessage(ctx, &nats.Msg{
		Subject: "mesh.device.7.event.my-node-info",
		Data:    []byte(`{"myNodeNum":100}`),
	})

	sess, ok := registry.Get(7)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return sess.Device.MyNodeNum() == 100
	}, time.Second, 10*time.Millisecond)

	cancel()
	s.shutdown()
}

func TestEventSourceDropsEventsAfterShutdown(t *testing.T) {
	registry := session.NewRegistry()
	s := NewEventSource(nil, registry, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NotNil(t, s.deviceChan(ctx, 1))

	cancel()
	s.shutdown()

	// A callback still in flight when teardown ran must drop its event
	// instead of sending into a torn-down loop or re-creating one.
	assert.Nil(t, s.deviceChan(ctx, 1))
	assert.Nil(t, s.deviceChan(ctx, 2))

	s.handleMessage(ctx, &nats.Msg{
		Subject: "mesh.device.2.event.my-node-info",
		Data:    []byte(`{"myNodeNum":100}`),
	})

	_, ok := registry.Get(2)
	assert.False(t, ok)
}

func TestDecodeEventCoversAllKinds(t *testing.T) {
	kinds := []string{
		"device-metadata", "routing-result", "telemetry", "device-status",
		"waypoint", "my-node-info", "user-info", "position", "node-info",
		"channel", "config", "module-config", "message", "traceroute",
		"pending-settings", "mesh-packet", "client-notification", "neighbor-info",
	}

	for _, kind := range kinds {
		ev, err := decodeEvent(kind, []byte(`{}`))
		require.NoError(t, err, kind)
		assert.NotNil(t, ev, kind)
	}
}
