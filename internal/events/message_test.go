package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-state/mesh-state-server/internal/models"
)

func TestToMessage(t *testing.T) {
	rxTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		packet    models.MessagePacket
		myNodeNum models.NodeNum
		wantType  models.MessageType
		wantState models.MessageState
	}{
		"direct incoming": {
			packet: models.MessagePacket{
				ID: 1, From: 200, To: 100, RxTime: rxTime, Data: []byte("hi"),
			},
			myNodeNum: 100,
			wantType:  models.MessageTypeDirect,
			wantState: models.MessageStateAck,
		},
		"broadcast incoming": {
			packet: models.MessagePacket{
				ID: 2, From: 200, To: models.BroadcastNum, Channel: 3, RxTime: rxTime, Data: []byte("all"),
			},
			myNodeNum: 100,
			wantType:  models.MessageTypeBroadcast,
			wantState: models.MessageStateAck,
		},
		"direct outgoing waits for ack": {
			packet: models.MessagePacket{
				ID: 3, From: 100, To: 200, RxTime: rxTime, Data: []byte("out"),
			},
			myNodeNum: 100,
			wantType:  models.MessageTypeDirect,
			wantState: models.MessageStateWaiting,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			msg, err := ToMessage(tt.packet, tt.myNodeNum)
			require.NoError(t, err)

			assert.Equal(t, tt.packet.ID, msg.ID)
			assert.Equal(t, tt.wantType, msg.Type)
			assert.Equal(t, tt.wantState, msg.State)
			assert.Equal(t, tt.packet.From, msg.From)
			assert.Equal(t, tt.packet.To, msg.To)
			assert.Equal(t, string(tt.packet.Data), msg.Text)
			assert.Equal(t, rxTime, msg.Date)
		})
	}
}

func TestToMessageInvalidPayload(t *testing.T) {
	_, err := ToMessage(models.MessagePacket{
		ID: 1, From: 200, To: 100, Data: []byte{0xff, 0xfe, 0xfd},
	}, 100)

	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestToMessageDeterministic(t *testing.T) {
	packet := models.MessagePacket{
		ID: 7, From: 10, To: 20, Channel: 1,
		RxTime: time.Unix(1700000000, 0), Data: []byte("same"),
	}

	first, err := ToMessage(packet, 20)
	require.NoError(t, err)
	second, err := ToMessage(packet, 20)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestToMessageAlertFlag(t *testing.T) {
	msg, err := ToMessage(models.MessagePacket{
		ID: 4, From: 200, To: models.BroadcastNum, Data: []byte("alert"), Alert: true,
	}, 100)
	require.NoError(t, err)

	assert.True(t, msg.IsAlert)
}
