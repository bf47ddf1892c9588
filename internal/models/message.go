package models

import (
	"time"
)

// MessageType classifies a message by its destination.
type MessageType string

const (
	MessageTypeDirect    MessageType = "direct"
	MessageTypeBroadcast MessageType = "broadcast"
)

// MessageState tracks delivery of a message.
type MessageState string

const (
	MessageStateAck     MessageState = "ack"
	MessageStateWaiting MessageState = "waiting"
	MessageStateFailed  MessageState = "failed"
)

// Message is a canonical text or alert message in the log.
type Message struct {
	ID      uint32       `json:"id"`
	Type    MessageType  `json:"type"`
	From    NodeNum      `json:"from"`
	To      NodeNum      `json:"to"`
	Channel uint32       `json:"channel"`
	Date    time.Time    `json:"date"`
	Text    string       `json:"text"`
	State   MessageState `json:"state"`
	IsAlert bool         `json:"isAlert,omitempty"`
}

// MessagePacket is a decoded text/alert packet before conversion to a
// canonical Message.
type MessagePacket struct {
	ID      uint32    `json:"id"`
	From    NodeNum   `json:"from"`
	To      NodeNum   `json:"to"`
	Channel uint32    `json:"channel"`
	RxTime  time.Time `json:"rxTime"`
	Data    []byte    `json:"data"`
	Alert   bool      `json:"alert"`
}
