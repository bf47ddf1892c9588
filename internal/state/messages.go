package state

import (
	"sync"

	"github.com/mesh-state/mesh-state-server/internal/models"
)

// ConversationKey identifies a conversation for unread accounting: the peer
// node number for direct messages, the channel number for broadcasts.
type ConversationKey struct {
	Type models.MessageType `json:"type"`
	ID   uint32             `json:"id"`
}

// DirectConversation keys the conversation with one peer node.
func DirectConversation(peer models.NodeNum) ConversationKey {
	return ConversationKey{Type: models.MessageTypeDirect, ID: uint32(peer)}
}

// BroadcastConversation keys the conversation on one channel.
func BroadcastConversation(channel uint32) ConversationKey {
	return ConversationKey{Type: models.MessageTypeBroadcast, ID: channel}
}

// UnreadCount is one conversation's unread counter, in snapshot form.
type UnreadCount struct {
	Conversation ConversationKey `json:"conversation"`
	Count        int             `json:"count"`
}

// MessageLog is the append-only message store for one device plus the
// derived per-conversation unread counters.
type MessageLog struct {
	mu       sync.RWMutex
	messages []models.Message
	unread   map[ConversationKey]int
}

// NewMessageLog creates an empty message log.
func NewMessageLog() *MessageLog {
	return &MessageLog{
		unread: make(map[ConversationKey]int),
	}
}

// Save appends a message to the log in arrival order.
func (l *MessageLog) Save(msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// IncrementUnread bumps the unread counter for a conversation.
func (l *MessageLog) IncrementUnread(key ConversationKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unread[key]++
}

// MarkRead resets the unread counter for a conversation.
func (l *MessageLog) MarkRead(key ConversationKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.unread, key)
}

// Unread returns the unread counter for a conversation.
func (l *MessageLog) Unread(key ConversationKey) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unread[key]
}

// UnreadCounts returns every non-zero unread counter.
func (l *MessageLog) UnreadCounts() []UnreadCount {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]UnreadCount, 0, len(l.unread))
	for key, count := range l.unread {
		out = append(out, UnreadCount{Conversation: key, Count: count})
	}
	return out
}

// Messages returns a copy of the log in arrival order.
func (l *MessageLog) Messages() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of stored messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
