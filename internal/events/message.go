package events

import (
	"errors"
	"unicode/utf8"

	"github.com/mesh-state/mesh-state-server/internal/models"
)

// ErrInvalidPayload is returned when a message payload cannot be decoded as
// text.
var ErrInvalidPayload = errors.New("invalid message payload")

// ToMessage converts a decoded text/alert packet into a canonical Message
// using the device's own node number for direction classification. It is
// deterministic and has no side effects; a malformed payload yields
// ErrInvalidPayload, never a panic.
func ToMessage(p models.MessagePacket, myNodeNum models.NodeNum) (models.Message, error) {
	if !utf8.Valid(p.Data) {
		return models.Message{}, ErrInvalidPayload
	}

	msgType := models.MessageTypeDirect
	if p.To == models.BroadcastNum {
		msgType = models.MessageTypeBroadcast
	}

	// Messages sent by this device are still waiting for an ack when they
	// echo back through the event stream.
	state := models.MessageStateAck
	if p.From == myNodeNum {
		state = models.MessageStateWaiting
	}

	return models.Message{
		ID:      p.ID,
		Type:    msgType,
		From:    p.From,
		To:      p.To,
		Channel: p.Channel,
		Date:    p.RxTime,
		Text:    string(p.Data),
		State:   state,
		IsAlert: p.Alert,
	}, nil
}
